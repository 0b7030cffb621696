// Package scratch owns all per-job filesystem state: an acquired directory
// under a temporary root that is recursively removed on every exit path.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const dirPerm os.FileMode = 0o750

// Workspace creates per-job scratch directories under its root.
type Workspace struct {
	root string
}

// NewWorkspace returns a workspace rooted at root, or the system temporary
// root when empty.
func NewWorkspace(root string) Workspace {
	if root == "" {
		root = os.TempDir()
	}
	return Workspace{root: root}
}

// Acquire creates <root>/job-<jobID>/ and returns its owner.
func (w Workspace) Acquire(jobID string) (*Dir, error) {
	if jobID == "" {
		return nil, errors.New("empty job id")
	}
	path := filepath.Join(w.root, "job-"+jobID)
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, fmt.Errorf("acquire scratch dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Dir is an owned per-job scratch directory.
type Dir struct {
	path     string
	released atomic.Bool
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Stage reserves a path for an output file inside the directory.
func (d *Dir) Stage(name string) string {
	return filepath.Join(d.path, name)
}

// WriteFile materializes a file inside the directory with owner-only
// permissions and returns its path. Used for cookie payloads, which must
// never reach logs.
func (d *Dir) WriteFile(name string, data []byte) (string, error) {
	path := d.Stage(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

// Release removes the directory recursively. Idempotent and tolerant of
// already-missing files.
func (d *Dir) Release() error {
	if d == nil || d.released.Swap(true) {
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		log.Warn().Err(err).Str("path", d.path).Msg("scratch release failed")
		return fmt.Errorf("release scratch dir: %w", err)
	}
	return nil
}
