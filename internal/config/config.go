package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDownloader          = "yt-dlp"
	defaultTranscoder          = "ffmpeg"
	defaultAudioFormat         = "mp3"
	defaultMaxConcurrentJobs   = 4
	defaultCancelGraceSeconds  = 5
	defaultSweepAgeSeconds     = 3600
	defaultSweepEverySeconds   = 600
	defaultShutdownWaitSeconds = 10
)

// ErrUsage marks invalid command-line arguments; the caller exits with code 2.
var ErrUsage = errors.New("usage: engine <port> [aux-binary-dir]")

// Config describes runtime configuration for the engine. Port and AuxBinDir
// come from argv; everything else has defaults overridable via engine.yml.
type Config struct {
	Port      int    `yaml:"-"`
	AuxBinDir string `yaml:"-"`

	Downloader          string `yaml:"downloader"`
	Transcoder          string `yaml:"transcoder"`
	AudioFormat         string `yaml:"audio_format"`
	ScratchRoot         string `yaml:"scratch_root"`
	MaxConcurrentJobs   int    `yaml:"max_concurrent_jobs"`
	CancelGraceSeconds  int    `yaml:"cancel_grace_seconds"`
	SweepAgeSeconds     int    `yaml:"sweep_age_seconds"`
	SweepEverySeconds   int    `yaml:"sweep_every_seconds"`
	ShutdownWaitSeconds int    `yaml:"shutdown_wait_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Downloader:          defaultDownloader,
		Transcoder:          defaultTranscoder,
		AudioFormat:         defaultAudioFormat,
		MaxConcurrentJobs:   defaultMaxConcurrentJobs,
		CancelGraceSeconds:  defaultCancelGraceSeconds,
		SweepAgeSeconds:     defaultSweepAgeSeconds,
		SweepEverySeconds:   defaultSweepEverySeconds,
		ShutdownWaitSeconds: defaultShutdownWaitSeconds,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Downloader == "" {
		cfg.Downloader = defaultDownloader
	}
	if cfg.Transcoder == "" {
		cfg.Transcoder = defaultTranscoder
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = defaultAudioFormat
	}
	if cfg.MaxConcurrentJobs < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_jobs: %d (must be >= 1)", cfg.MaxConcurrentJobs)
	}
	if cfg.CancelGraceSeconds < 1 {
		cfg.CancelGraceSeconds = defaultCancelGraceSeconds
	}
	return cfg, nil
}

// ParseArgs interprets the engine command line: <port> [aux-binary-dir].
func ParseArgs(args []string) (port int, auxDir string, err error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, "", ErrUsage
	}
	port, err = strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || port <= 0 || port > 65535 {
		return 0, "", fmt.Errorf("%w: invalid port %q", ErrUsage, args[0])
	}
	if len(args) == 2 {
		auxDir = args[1]
		if info, statErr := os.Stat(auxDir); statErr != nil || !info.IsDir() {
			return 0, "", fmt.Errorf("%w: aux binary dir %q is not a directory", ErrUsage, auxDir)
		}
	}
	return port, auxDir, nil
}

// CancelGrace is the time a child process group gets between SIGTERM and SIGKILL.
func (c Config) CancelGrace() time.Duration {
	return time.Duration(c.CancelGraceSeconds) * time.Second
}

// SweepAge is how old a terminal job must be before the sweeper reclaims it.
func (c Config) SweepAge() time.Duration {
	return time.Duration(c.SweepAgeSeconds) * time.Second
}

// SweepEvery is the interval between sweeper runs.
func (c Config) SweepEvery() time.Duration {
	return time.Duration(c.SweepEverySeconds) * time.Second
}

// ShutdownWait bounds graceful shutdown of the listener and in-flight jobs.
func (c Config) ShutdownWait() time.Duration {
	return time.Duration(c.ShutdownWaitSeconds) * time.Second
}
