package batch

import (
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
)

type Status string

const (
	StatusStarted    Status = "started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Job is the progress record of one batch submission. Counters only
// ever move forward; a job never leaves a terminal status.
type Job struct {
	JobID           string                       `json:"job_id"`
	Status          Status                       `json:"status"`
	Total           int                          `json:"total"`
	Completed       int                          `json:"completed"`
	Failed          int                          `json:"failed"`
	Results         []analysis.AnalysisRecord    `json:"results"`
	Errors          []analysis.FailureDescriptor `json:"errors"`
	StartedAt       time.Time                    `json:"started_at"`
	CompletedAt     *time.Time                   `json:"completed_at,omitempty"`
	ProgressPercent float64                      `json:"progress_percent"`
}

func (j *Job) terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusCancelled
}

func (j *Job) recalcProgress() {
	if j.Total == 0 {
		j.ProgressPercent = 100
		return
	}
	j.ProgressPercent = float64(j.Completed+j.Failed) / float64(j.Total) * 100
}

// clone returns a deep enough copy that callers can hold the snapshot
// without racing the worker pool.
func (j *Job) clone() *Job {
	cp := *j
	cp.Results = append([]analysis.AnalysisRecord(nil), j.Results...)
	cp.Errors = append([]analysis.FailureDescriptor(nil), j.Errors...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
