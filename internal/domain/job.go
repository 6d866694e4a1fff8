package domain

import "time"

// JobStatus represents the status of a document generation job.
// JobStatusProcessing is initial; JobStatusCompleted and JobStatusFailed are terminal.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job tracks one asynchronous timesheet generation run. Jobs live only in the
// process-local registry; they are never persisted.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	RequestHash string    `json:"request_hash"`
	ResultURL   string    `json:"result_url,omitempty"`
	// DocumentURLs holds every document produced by the job in processing order.
	// ResultURL is the last of them.
	DocumentURLs []string  `json:"document_urls,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
