package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mediaengine/internal/scratch"
)

// record is the store-private mutable state of one job. The embedded runtime
// handles (cancel func, scratch dir) never leave the store as shared state.
type record struct {
	job       Job
	req       Request
	cancel    context.CancelFunc
	cancelled bool
	dir       *scratch.Dir
}

// Store is the concurrency-safe in-memory mapping from job ID to job record.
// All mutation goes through Update-style methods; Get returns by-value
// snapshots so readers always see a consistent view.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Create allocates an identifier and inserts a queued record.
func (s *Store) Create(req Request) Job {
	j := Job{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		URL:       req.URL,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.records[j.ID] = &record{job: j, req: req}
	s.mu.Unlock()
	return j
}

// Get returns a snapshot copy of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Job{}, false
	}
	return snapshot(rec), true
}

// Request returns the originating request parameters for the executor.
func (s *Store) Request(id string) (Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Request{}, false
	}
	return rec.req, true
}

// Update applies a mutation under exclusive access. Mutating a terminal
// record is rejected; use AnnotateError for the one legal late mutation.
func (s *Store) Update(id string, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.job.Status.Terminal() {
		return ErrTerminal
	}
	mutate(&rec.job)
	return nil
}

// AnnotateError attaches or extends error detail on an already-terminal job.
func (s *Store) AnnotateError(id, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.job.Err == nil {
		rec.job.Err = NewError(CodeInternal, detail)
		return nil
	}
	if rec.job.Err.Detail == "" {
		rec.job.Err.Detail = detail
	} else {
		rec.job.Err.Detail += "\n" + detail
	}
	return nil
}

// AttachRuntime binds the running pipeline's cancel func and scratch dir to
// the record. If the job was cancelled while still queued, the cancel fires
// immediately.
func (s *Store) AttachRuntime(id string, cancel context.CancelFunc, dir *scratch.Dir) {
	s.mu.Lock()
	rec, ok := s.records[id]
	var fireNow bool
	if ok {
		rec.cancel = cancel
		rec.dir = dir
		fireNow = rec.cancelled
	}
	s.mu.Unlock()
	if fireNow && cancel != nil {
		cancel()
	}
}

// Cancel flags the job and signals its active pipeline, if any. Returns
// ErrTerminal when the job already finished.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if rec.job.Status.Terminal() {
		s.mu.Unlock()
		return ErrTerminal
	}
	rec.cancelled = true
	cancel := rec.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Cancelled reports whether cancellation was requested for the job.
func (s *Store) Cancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return ok && rec.cancelled
}

// Delete removes the record and releases its scratch dir if still held.
// Used when a client acknowledges a terminal job.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := rec.dir.Release(); err != nil {
		log.Warn().Str("job_id", id).Err(err).Msg("release scratch on delete failed")
	}
	return true
}

// Sweep reclaims terminal records older than ageLimit along with their
// residual scratch dirs, returning how many were removed.
func (s *Store) Sweep(ageLimit time.Duration) int {
	cutoff := time.Now().Add(-ageLimit)
	var stale []*record
	s.mu.Lock()
	for id, rec := range s.records {
		if rec.job.Status.Terminal() && rec.job.CompletedAt.Before(cutoff) {
			delete(s.records, id)
			stale = append(stale, rec)
		}
	}
	s.mu.Unlock()
	for _, rec := range stale {
		if err := rec.dir.Release(); err != nil {
			log.Warn().Str("job_id", rec.job.ID).Err(err).Msg("release scratch on sweep failed")
		}
	}
	return len(stale)
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func snapshot(rec *record) Job {
	j := rec.job
	if rec.job.Err != nil {
		errCopy := *rec.job.Err
		j.Err = &errCopy
	}
	return j
}
