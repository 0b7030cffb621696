package job

import "time"

type Kind string

const (
	KindSingleAudio     Kind = "single-audio"
	KindPlaylistArchive Kind = "playlist-archive"
	KindPlaylistConcat  Kind = "playlist-concatenate"
)

// ParseKind maps a request's jobType discriminator to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindSingleAudio, KindPlaylistArchive, KindPlaylistConcat:
		return Kind(s), true
	}
	return "", false
}

// Multi reports whether the kind downloads a playlist of items.
func (k Kind) Multi() bool {
	return k == KindPlaylistArchive || k == KindPlaylistConcat
}

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status never transitions again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request carries the client-supplied parameters of a job.
type Request struct {
	Kind           Kind
	URL            string
	Cookies        string // raw cookie payload, materialized into the scratch dir, never logged
	Format         string
	FFmpegLocation string
}

// Job is the by-value snapshot of a job record. Readers never share mutable
// state with the executor.
type Job struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	URL      string  `json:"url"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`

	// CurrentIndex/TotalCount are set for multi-item jobs while an item is in flight.
	CurrentIndex int    `json:"current_index,omitempty"`
	TotalCount   int    `json:"total_count,omitempty"`
	Message      string `json:"message,omitempty"`

	Filename     string `json:"file_name,omitempty"`
	ArtifactPath string `json:"-"`
	Err          *Error `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}
