package job

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"mediaengine/internal/config"
	"mediaengine/internal/scratch"
)

// Manager owns the job store, the scratch workspace and the bounded worker
// pool that gates concurrent pipelines. Accepted jobs beyond the pool size
// stay queued until a slot frees.
type Manager struct {
	store     *Store
	workspace scratch.Workspace
	cfg       config.Config

	semaphore chan struct{}
	workersWG sync.WaitGroup
	draining  atomic.Bool

	mu      sync.Mutex
	baseCtx context.Context
}

func NewManager(store *Store, workspace scratch.Workspace, cfg config.Config) *Manager {
	slots := cfg.MaxConcurrentJobs
	if slots < 1 {
		slots = 1
	}
	return &Manager{
		store:     store,
		workspace: workspace,
		cfg:       cfg,
		semaphore: make(chan struct{}, slots),
		baseCtx:   context.Background(),
	}
}

// SetBaseContext sets the context that bounds all pipelines. Cancelled at
// process shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

func (m *Manager) base() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseCtx
}

// Submit validates the request, records a queued job and launches its
// pipeline on a background goroutine.
func (m *Manager) Submit(req Request) (Job, error) {
	if m.draining.Load() {
		return Job{}, ErrShuttingDown
	}
	if strings.TrimSpace(req.URL) == "" {
		return Job{}, ErrEmptyURL
	}
	if _, ok := ParseKind(string(req.Kind)); !ok {
		return Job{}, ErrUnknownKind
	}

	created := m.store.Create(req)
	log.Info().Str("job_id", created.ID).Str("kind", string(created.Kind)).Msg("job accepted")

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		m.run(created.ID)
	}()
	return created, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, bool) {
	return m.store.Get(id)
}

// Cancel requests cancellation of a queued or running job.
func (m *Manager) Cancel(id string) error {
	return m.store.Cancel(id)
}

// Delete acknowledges a job: the record is dropped and its scratch dir released.
func (m *Manager) Delete(id string) bool {
	return m.store.Delete(id)
}

// StartDrain rejects further submissions while in-flight jobs continue.
func (m *Manager) StartDrain() {
	m.draining.Store(true)
}

// Draining reports whether the engine is shutting down.
func (m *Manager) Draining() bool {
	return m.draining.Load()
}

// WaitAll blocks until all in-flight pipelines finish or ctx is done.
// Returns true if all workers finished.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// SweepLoop periodically reclaims aged terminal jobs until ctx is done.
func (m *Manager) SweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepEvery())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.store.Sweep(m.cfg.SweepAge()); n > 0 {
				log.Info().Int("reclaimed", n).Msg("swept terminal jobs")
			}
		}
	}
}
