package model

import "time"

// RefreshStatus is the outcome of refreshing one reference table.
type RefreshStatus string

const (
	RefreshStatusOK      RefreshStatus = "ok"
	RefreshStatusSkipped RefreshStatus = "skipped" // upstream returned nothing; table left as-is
	RefreshStatusFailed  RefreshStatus = "failed"
)

// RefreshEntry is one row of the refresh log. Tables refreshed in the same
// run share a RunID but succeed or fail independently.
type RefreshEntry struct {
	RunID       string        `json:"run_id"`
	Table       string        `json:"table"`
	Status      RefreshStatus `json:"status"`
	Rows        int64         `json:"rows"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}
