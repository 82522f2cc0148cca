package notify

import "context"

// Status is the outcome of an export run.
type Status string

const (
	StatusCompleted Status = "completed" // Every pair was written
	StatusPartial   Status = "partial"   // Some pairs failed, the rest were written
	StatusFailed    Status = "failed"    // The run aborted
)

// Summary describes a finished export run.
type Summary struct {
	Status   Status   `json:"status"`
	Months   []string `json:"months"`
	Kinds    []string `json:"kinds"`
	Files    []string `json:"files"`
	Samples  int64    `json:"samples"`
	Failures []string `json:"failures,omitempty"`
	Message  string   `json:"message"`
}

// Notifier delivers export summaries to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a summary.
	Send(ctx context.Context, summary Summary) error
}
