package model

import "time"

// StageMetrics represents metrics for a specific run stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	Status           string        `json:"status"` // "running", "completed", "failed"
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	ErrorCount       int64         `json:"error_count"`
}

// ErrorDetail is one error recorded against a run
type ErrorDetail struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunMetrics represents overall run execution metrics
type RunMetrics struct {
	RunID     string                  `json:"run_id"`
	Status    string                  `json:"status"`
	StartTime time.Time               `json:"start_time"`
	EndTime   *time.Time              `json:"end_time,omitempty"`
	Duration  time.Duration           `json:"duration"`
	Stages    map[string]StageMetrics `json:"stages"`
	Errors    []ErrorDetail           `json:"errors"`
}

// Run statuses recorded in the ledger
const (
	StatusPending     = "pending"
	StatusRunning     = "running"
	StatusLoading     = "loading"
	StatusReconciling = "reconciling"
	StatusExporting   = "exporting"
	StatusCompleted   = "completed"
	StatusPartial     = "completed_partial"
	StatusFailed      = "failed"
	StatusRetrying    = "retrying"
)

// Run is a reconciliation run as stored in the ledger
type Run struct {
	ID        string           `json:"id"`
	Spec      ReconcileJobSpec `json:"spec"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
