package model

import "time"

// RunStatus tracks a queued grading run.
type RunStatus string

// Run states.
const (
	RunQueued RunStatus = "queued"
	RunGraded RunStatus = "graded"
)

// Job is a grading request submitted to the service.
type Job struct {
	RunID       string    `json:"run_id"`
	Participant string    `json:"participant"`
	WorkDir     string    `json:"workdir"`
	Transcript  string    `json:"transcript,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Run is a job together with its grading outcome.
type Run struct {
	Job
	Status   RunStatus `json:"status"`
	Result   *Result   `json:"result,omitempty"`
	GradedAt time.Time `json:"graded_at,omitzero"`
}

// RunRequest asks for an asynchronous grading of a working directory.
// An empty RunID is replaced by a generated one.
type RunRequest struct {
	RunID       string `json:"run_id,omitempty"`
	Participant string `json:"participant"`
	WorkDir     string `json:"workdir,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
}
