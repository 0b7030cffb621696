package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mediaengine/internal/archive"
	"mediaengine/internal/media"
	"mediaengine/internal/progress"
	"mediaengine/internal/runner"
	"mediaengine/internal/scratch"
)

const cookiesFileName = "cookies.txt"

// artifact is the single final output of a pipeline.
type artifact struct {
	path string
	name string
}

// run drives one job from queued to a terminal state. The scratch dir is
// released on every exit path except completion, where it survives until the
// artifact has been streamed (or the record is deleted/swept).
func (m *Manager) run(jobID string) {
	base := m.base()
	select {
	case m.semaphore <- struct{}{}:
	case <-base.Done():
		m.finishCancelled(jobID)
		return
	}
	defer func() { <-m.semaphore }()

	if m.store.Cancelled(jobID) {
		m.finishCancelled(jobID)
		return
	}

	jobCtx, cancel := context.WithCancel(base)
	defer cancel()

	dir, err := m.workspace.Acquire(jobID)
	if err != nil {
		m.finishFailed(jobID, NewError(CodeInternal, err.Error()))
		return
	}
	m.store.AttachRuntime(jobID, cancel, dir)

	completed := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", jobID).Any("panic", r).Msg("pipeline panic")
			m.finishFailed(jobID, NewError(CodeInternal, fmt.Sprintf("panic: %v", r)))
		}
		if !completed {
			_ = dir.Release()
		}
	}()

	req, ok := m.store.Request(jobID)
	if !ok {
		return
	}

	_ = m.store.Update(jobID, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = time.Now()
		j.Message = "starting"
	})

	result, err := m.execute(jobCtx, jobID, req, dir)
	switch {
	case err == nil:
		completed = true
		m.finishCompleted(jobID, result)
	case errors.Is(err, runner.ErrKilled), jobCtx.Err() != nil, m.store.Cancelled(jobID):
		m.finishCancelled(jobID)
	default:
		var jobErr *Error
		if !errors.As(err, &jobErr) {
			jobErr = NewError(CodeInternal, err.Error())
		}
		m.finishFailed(jobID, jobErr)
	}
}

// execute runs the shared download step and the per-kind post-processing.
func (m *Manager) execute(ctx context.Context, jobID string, req Request, dir *scratch.Dir) (artifact, error) {
	cookiesPath := ""
	if req.Cookies != "" {
		path, err := dir.WriteFile(cookiesFileName, []byte(req.Cookies))
		if err != nil {
			return artifact{}, NewError(CodeInternal, err.Error())
		}
		cookiesPath = path
	}

	opts := media.DownloadOptions{
		URL:            req.URL,
		AudioFormat:    m.cfg.AudioFormat,
		Format:         req.Format,
		CookiesPath:    cookiesPath,
		FFmpegLocation: req.FFmpegLocation,
		Playlist:       req.Kind.Multi(),
	}
	tail := runner.NewTail(runner.DefaultTailLimit)
	if err := m.runDownloader(ctx, jobID, opts, dir, tail); err != nil {
		return artifact{}, err
	}

	switch req.Kind {
	case KindSingleAudio:
		return m.pickSingle(dir)
	case KindPlaylistArchive:
		return m.buildArchive(jobID, dir)
	case KindPlaylistConcat:
		return m.concatenate(ctx, jobID, dir, tail)
	}
	return artifact{}, NewError(CodeInternal, "unhandled kind "+string(req.Kind))
}

// runDownloader spawns the downloader in the scratch dir and feeds its output
// through the tail buffer and the progress parser.
func (m *Manager) runDownloader(ctx context.Context, jobID string, opts media.DownloadOptions, dir *scratch.Dir, tail *runner.Tail) error {
	proc, err := runner.Start(ctx, runner.Spec{
		Path:  m.cfg.Downloader,
		Args:  media.DownloadArgs(opts),
		Dir:   dir.Path(),
		Grace: m.cfg.CancelGrace(),
	})
	if err != nil {
		return NewError(CodeSpawnFailed, err.Error())
	}

	parser := progress.NewParser()
	for line := range proc.Lines() {
		tail.Add(line.Text)
		if ev, ok := parser.Feed(line.Text); ok {
			m.applyEvent(jobID, opts.Playlist, parser, ev)
		}
	}
	return waitMapped(proc, tail)
}

// applyEvent folds one parsed progress event into the job record. Progress is
// monotonic per sub-item; the [i/N] token is kept in Message for multi-item
// jobs so a UI can compute overall progress.
func (m *Manager) applyEvent(jobID string, multi bool, parser *progress.Parser, ev progress.Event) {
	index, total := parser.Position()
	prefix := ""
	if multi {
		prefix = fmt.Sprintf("[%d/%d] ", index, total)
	}
	_ = m.store.Update(jobID, func(j *Job) {
		sameItem := !multi || (j.CurrentIndex == index && j.TotalCount == total)
		if multi {
			j.CurrentIndex = index
			j.TotalCount = total
		}
		switch ev.Kind {
		case progress.KindItemStart:
			j.Progress = 0
			j.Message = strings.TrimSpace(prefix + "downloading " + ev.Title)
		case progress.KindItemProgress:
			if sameItem && ev.Percent < j.Progress {
				return
			}
			j.Progress = ev.Percent
			j.Message = fmt.Sprintf("%sdownloading %.1f%%", prefix, ev.Percent)
		case progress.KindStage:
			j.Message = prefix + string(ev.Stage)
		case progress.KindItemComplete:
			j.Progress = 100
			j.Message = prefix + "postprocessing"
		case progress.KindError:
			// retained in the tail buffer; fatality is decided by the exit status
		}
	})
}

// pickSingle resolves the single-audio artifact: exactly one file with the
// expected audio extension must exist.
func (m *Manager) pickSingle(dir *scratch.Dir) (artifact, error) {
	outputs, err := collectOutputs(dir.Path(), "."+m.cfg.AudioFormat)
	if err != nil {
		return artifact{}, NewError(CodeInternal, err.Error())
	}
	switch len(outputs) {
	case 0:
		return artifact{}, NewError(CodeNoOutput, "downloader produced no ."+m.cfg.AudioFormat+" file")
	case 1:
		return artifact{path: dir.Stage(outputs[0]), name: outputs[0]}, nil
	default:
		return artifact{}, NewError(CodeAmbiguousOutput, fmt.Sprintf("%d candidate output files", len(outputs)))
	}
}

// buildArchive zips the downloaded items in index order.
func (m *Manager) buildArchive(jobID string, dir *scratch.Dir) (artifact, error) {
	outputs, err := collectOutputs(dir.Path(), "."+m.cfg.AudioFormat)
	if err != nil {
		return artifact{}, NewError(CodeInternal, err.Error())
	}
	if len(outputs) == 0 {
		return artifact{}, NewError(CodeNoOutput, "downloader produced no ."+m.cfg.AudioFormat+" files")
	}

	name := fmt.Sprintf("playlist-%d.zip", time.Now().Unix())
	dest := dir.Stage(name)
	entries := make([]archive.Entry, 0, len(outputs))
	for _, output := range outputs {
		entries = append(entries, archive.Entry{Path: dir.Stage(output), Name: output})
	}
	_ = m.store.Update(jobID, func(j *Job) { j.Message = "archiving" })
	if err := archive.BuildArchive(dest, entries); err != nil {
		return artifact{}, NewError(CodeInternal, err.Error())
	}
	return artifact{path: dest, name: name}, nil
}

// concatenate merges the downloaded items into a single audio file via the
// transcoder's concat demuxer. A single input skips the transcoder entirely.
func (m *Manager) concatenate(ctx context.Context, jobID string, dir *scratch.Dir, tail *runner.Tail) (artifact, error) {
	outputs, err := collectOutputs(dir.Path(), "."+m.cfg.AudioFormat)
	if err != nil {
		return artifact{}, NewError(CodeInternal, err.Error())
	}
	switch len(outputs) {
	case 0:
		return artifact{}, NewError(CodeNoOutput, "downloader produced no ."+m.cfg.AudioFormat+" files")
	case 1:
		return artifact{path: dir.Stage(outputs[0]), name: outputs[0]}, nil
	}

	inputs := make([]string, 0, len(outputs))
	for _, output := range outputs {
		inputs = append(inputs, dir.Stage(output))
	}
	listPath := dir.Stage("concat.txt")
	if err := media.WriteConcatList(listPath, inputs); err != nil {
		return artifact{}, NewError(CodeInternal, err.Error())
	}

	name := fmt.Sprintf("playlist-%d.%s", time.Now().Unix(), m.cfg.AudioFormat)
	dest := dir.Stage(name)
	_ = m.store.Update(jobID, func(j *Job) { j.Message = "merging" })

	proc, err := runner.Start(ctx, runner.Spec{
		Path:  m.cfg.Transcoder,
		Args:  media.ConcatArgs(listPath, dest),
		Dir:   dir.Path(),
		Grace: m.cfg.CancelGrace(),
	})
	if err != nil {
		return artifact{}, NewError(CodeSpawnFailed, err.Error())
	}
	for line := range proc.Lines() {
		tail.Add(line.Text)
	}
	if err := waitMapped(proc, tail); err != nil {
		return artifact{}, err
	}
	return artifact{path: dest, name: name}, nil
}

// ListFormats invokes the downloader in metadata mode and returns the
// available formats for the URL.
func (m *Manager) ListFormats(ctx context.Context, url string) ([]media.Format, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	proc, err := runner.Start(ctx, runner.Spec{
		Path:  m.cfg.Downloader,
		Args:  media.FormatsArgs(url, ""),
		Grace: m.cfg.CancelGrace(),
	})
	if err != nil {
		return nil, NewError(CodeSpawnFailed, err.Error())
	}
	var stdout strings.Builder
	tail := runner.NewTail(runner.DefaultTailLimit)
	for line := range proc.Lines() {
		tail.Add(line.Text)
		if line.Stream == runner.StreamStdout {
			stdout.WriteString(line.Text)
			stdout.WriteByte('\n')
		}
	}
	if err := waitMapped(proc, tail); err != nil {
		return nil, err
	}
	return media.ParseFormats([]byte(stdout.String()))
}

// waitMapped reaps the child and maps the exit into the job error taxonomy,
// attaching the rolling diagnostics on non-zero exit.
func waitMapped(proc *runner.Process, tail *runner.Tail) error {
	err := proc.Wait()
	if err == nil {
		return nil
	}
	if errors.Is(err, runner.ErrKilled) {
		return err
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return NewError(CodeNonZeroExit, fmt.Sprintf("exit status %d\n%s", exitErr.Code, tail.String()))
	}
	return NewError(CodeInternal, err.Error())
}

func (m *Manager) finishCompleted(jobID string, result artifact) {
	err := m.store.Update(jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.CompletedAt = time.Now()
		j.Progress = 100
		j.Filename = result.name
		j.ArtifactPath = result.path
		j.Message = "completed"
	})
	if err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("mark completed rejected")
		return
	}
	log.Info().Str("job_id", jobID).Str("file", result.name).Msg("job completed")
}

func (m *Manager) finishFailed(jobID string, jobErr *Error) {
	err := m.store.Update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.CompletedAt = time.Now()
		j.Err = jobErr
		j.Message = "failed"
	})
	if err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("mark failed rejected")
		return
	}
	log.Warn().Str("job_id", jobID).Str("code", jobErr.Code).Msg("job failed")
}

func (m *Manager) finishCancelled(jobID string) {
	err := m.store.Update(jobID, func(j *Job) {
		j.Status = StatusCancelled
		j.CompletedAt = time.Now()
		j.Message = "cancelled"
	})
	if err != nil {
		return
	}
	log.Info().Str("job_id", jobID).Msg("job cancelled")
}
