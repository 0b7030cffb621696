// Package runner launches external executables and surfaces their output as
// line streams. Arguments are always delivered to the OS exec primitive as a
// vector; nothing is ever passed through a shell.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is a single line of child output with its originating stream.
type Line struct {
	Stream Stream
	Text   string
}

const (
	defaultGrace    = 5 * time.Second
	lineChanBuffer  = 256
	maxLineBytes    = 1024 * 1024
	initialLineSize = 64 * 1024
)

// ErrKilled reports that the child was terminated because its context was cancelled.
var ErrKilled = errors.New("process killed by cancellation")

// ExitError reports a non-zero child exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with status %d", e.Code)
}

// Spec describes a child process to launch.
type Spec struct {
	Path  string
	Args  []string
	Dir   string
	Env   []string // extra KEY=VALUE entries appended to the parent environment
	Stdin io.Reader
	Grace time.Duration // SIGTERM-to-SIGKILL window; defaults to 5s
}

// Process is a started child. Callers must drain Lines and then call Wait.
type Process struct {
	cmd     *exec.Cmd
	lines   chan Line
	grace   time.Duration
	killed  atomic.Bool
	done    chan struct{}
	pipesWG sync.WaitGroup
	waitOne sync.Once
	waitErr error
}

// Start launches the child in its own process group and begins scanning both
// output streams. When ctx is cancelled the whole group receives SIGTERM,
// then SIGKILL after the grace window.
func Start(ctx context.Context, spec Spec) (*Process, error) {
	if spec.Path == "" {
		return nil, errors.New("empty executable path")
	}
	grace := spec.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	p := &Process{
		cmd:   cmd,
		lines: make(chan Line, lineChanBuffer),
		grace: grace,
		done:  make(chan struct{}),
	}
	p.pipesWG.Add(2)
	go p.scan(stdout, StreamStdout)
	go p.scan(stderr, StreamStderr)
	go func() {
		p.pipesWG.Wait()
		close(p.lines)
	}()
	go p.supervise(ctx)
	return p, nil
}

// Lines returns the merged output stream. Lines from each stream preserve
// their source order; interleaving across streams follows arrival. The
// channel closes once the child has closed both streams.
func (p *Process) Lines() <-chan Line {
	return p.lines
}

// Wait reaps the child and reports its outcome: nil on exit 0, ErrKilled when
// cancellation terminated it, *ExitError otherwise. Safe to call repeatedly.
func (p *Process) Wait() error {
	p.waitOne.Do(func() {
		p.pipesWG.Wait()
		err := p.cmd.Wait()
		close(p.done)
		if p.killed.Load() {
			p.waitErr = ErrKilled
			return
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				p.waitErr = &ExitError{Code: exitErr.ExitCode()}
				return
			}
			p.waitErr = fmt.Errorf("wait: %w", err)
		}
	})
	return p.waitErr
}

func (p *Process) scan(r io.Reader, stream Stream) {
	defer p.pipesWG.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineSize), maxLineBytes)
	for scanner.Scan() {
		p.lines <- Line{Stream: stream, Text: scanner.Text()}
	}
}

func (p *Process) supervise(ctx context.Context) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.killed.Store(true)
		p.terminate()
	}
}

// terminate signals the child's process group: SIGTERM first, SIGKILL after
// the grace window if the child has not been reaped by then.
func (p *Process) terminate() {
	pgid := -p.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		log.Debug().Err(err).Int("pgid", -pgid).Msg("sigterm to process group failed")
	}
	select {
	case <-p.done:
	case <-time.After(p.grace):
		if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil {
			log.Debug().Err(err).Int("pgid", -pgid).Msg("sigkill to process group failed")
		}
	}
}
