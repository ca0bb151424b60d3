package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorKind tags the terminal error recorded on a failed job.
type ErrorKind string

const (
	ErrorKindPipeline    ErrorKind = "PipelineError"
	ErrorKindTimeout     ErrorKind = "TimeoutError"
	ErrorKindInterrupted ErrorKind = "Interrupted"
)

// JobError is the failure detail persisted with a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AnalysisResult is the structured payload produced by the analysis
// pipeline for a completed job.
type AnalysisResult struct {
	Report           string `json:"report"`
	Recommendation   string `json:"recommendation"`
	DocumentLanguage string `json:"document_language,omitempty"`
	Model            string `json:"model,omitempty"`
}

// Job is the unit of analysis work and its outcome. Result is set iff the
// job completed; Error is set iff it failed.
type Job struct {
	ID          string          `json:"id"`
	InputRef    string          `json:"input_ref"`
	Query       string          `json:"query,omitempty"`
	Status      Status          `json:"status"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       *JobError       `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// JobOutcome is the poll view returned to callers. Ready is false while the
// job is still pending or running; it is a signal, not an error.
type JobOutcome struct {
	JobID  string          `json:"job_id"`
	Status Status          `json:"status"`
	Ready  bool            `json:"ready"`
	Result *AnalysisResult `json:"result,omitempty"`
	Error  *JobError       `json:"error,omitempty"`
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.Result != nil {
		res := *job.Result
		tmp.Result = &res
	}
	if job.Error != nil {
		jerr := *job.Error
		tmp.Error = &jerr
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		tmp.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		tmp.CompletedAt = &t
	}
	return &tmp
}
