package job

import "errors"

// Error taxonomy codes surfaced on the job record and over HTTP.
const (
	CodeBadRequest      = "BadRequest"
	CodeSpawnFailed     = "SpawnFailed"
	CodeNonZeroExit     = "NonZeroExit"
	CodeNoOutput        = "NoOutputProduced"
	CodeAmbiguousOutput = "AmbiguousOutput"
	CodeCancelled       = "Cancelled"
	CodeInternal        = "Internal"
)

// Error is a short code plus detail, recorded on failed jobs.
type Error struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

func NewError(code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

var (
	ErrNotFound     = errors.New("job not found")
	ErrTerminal     = errors.New("job already terminal")
	ErrEmptyURL     = errors.New("url must not be empty")
	ErrUnknownKind  = errors.New("unknown job type")
	ErrShuttingDown = errors.New("engine is shutting down")
	ErrNotReady     = errors.New("job artifact not ready")
)
