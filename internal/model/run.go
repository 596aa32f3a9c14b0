package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one analysis run so operators can tell an empty result from a
// broken fetch.
type Run struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Filter    string      `json:"filter"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the diagnostics of a run, including failed ones.
type RunSummary struct {
	Pages             int   `json:"pages"`
	Rows              int   `json:"rows"`
	Leads             int   `json:"leads"`
	Markets           int   `json:"markets"`
	SkippedNoLocation int   `json:"skipped_no_location"`
	Malformed         int   `json:"malformed"`
	Opportunities     int   `json:"opportunities"`
	DurationMs        int64 `json:"duration_ms"`
	TimedOut          bool  `json:"timed_out,omitempty"`
}
