package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediaengine/internal/api"
	"mediaengine/internal/config"
	"mediaengine/internal/job"
	"mediaengine/internal/scratch"
)

// readinessBanner is the literal token the desktop shell waits for on stdout
// before issuing its first request.
const readinessBanner = "Flask-Backend-Ready:%d\n"

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// stdout is reserved for the readiness banner; everything else goes to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	gin.SetMode(gin.ReleaseMode)

	port, auxDir, err := config.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	cfg, err := config.Load("engine.yml")
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return exitFatal
	}
	cfg.Port = port
	cfg.AuxBinDir = auxDir

	if auxDir != "" {
		// Children inherit PATH; the shell ships its own downloader/transcoder here.
		if err := os.Setenv("PATH", auxDir+string(os.PathListSeparator)+os.Getenv("PATH")); err != nil {
			log.Error().Err(err).Msg("failed to extend PATH")
			return exitFatal
		}
	}
	if _, err := exec.LookPath(cfg.Downloader); err != nil {
		log.Error().Str("binary", cfg.Downloader).Msg("required downloader binary not found")
		return exitFatal
	}
	if _, err := exec.LookPath(cfg.Transcoder); err != nil {
		log.Warn().Str("binary", cfg.Transcoder).Msg("transcoder binary not found; concatenation jobs will fail")
	}

	store := job.NewStore()
	manager := job.NewManager(store, scratch.NewWorkspace(cfg.ScratchRoot), cfg)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	manager.SetBaseContext(baseCtx)
	go manager.SweepLoop(baseCtx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestLogger())
	api.NewAPI(manager).RegisterRoutes(router)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		log.Error().Err(err).Int("port", cfg.Port).Msg("loopback bind failed")
		return exitFatal
	}

	const readHeaderTimeout = 5 * time.Second
	srv := &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	// The listener is accepting; tell the shell.
	fmt.Printf(readinessBanner, cfg.Port)
	log.Info().Int("port", cfg.Port).Msg("engine ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			return exitFatal
		}
	}

	manager.StartDrain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	baseCancel()
	if !manager.WaitAll(shutdownCtx) {
		log.Warn().Msg("background pipelines did not finish before timeout")
	}
	log.Info().Msg("engine exited cleanly")
	return exitOK
}
