package model

import "time"

// StepState is the outcome of one pipeline step
type StepState string

const (
	StepDone  StepState = "done"
	StepError StepState = "error"
)

// StepOutcome is the persisted result of one step or agent
type StepOutcome struct {
	Status     StepState  `json:"status"`
	Output     *string    `json:"output"`
	FinishedAt *time.Time `json:"finished_at"`
}

// RunRecord is the per-document processing.json artifact
type RunRecord struct {
	DocID      string                 `json:"doc_id"`
	SourceFile string                 `json:"audio_file"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at"`
	Steps      map[string]StepOutcome `json:"steps"`
	Errors     []string               `json:"errors"`
}
