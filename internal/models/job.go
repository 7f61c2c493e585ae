package models

import "time"

// JobKind names the pipeline operation a job ran
type JobKind string

const (
	JobKindRender     JobKind = "render"
	JobKindTranscribe JobKind = "transcribe"
	JobKindSummarize  JobKind = "summarize"
)

// JobStatus is the lifecycle state of one pipeline invocation
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job stores information about a pipeline invocation
type Job struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	FileName  string    `json:"fileName,omitempty"`
	Result    string    `json:"result,omitempty"` // final path, or a short note
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
