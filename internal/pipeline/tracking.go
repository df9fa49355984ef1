package pipeline

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/store"
)

// RunTracker records stage timings and errors of one run, mirroring them to
// the ledger as they happen. Safe for concurrent use by parallel stages.
type RunTracker struct {
	mu      sync.Mutex
	metrics model.RunMetrics
}

// NewRunTracker creates a tracker for runID
func NewRunTracker(runID string) *RunTracker {
	return &RunTracker{
		metrics: model.RunMetrics{
			RunID:     runID,
			Status:    model.StatusRunning,
			StartTime: time.Now(),
			Stages:    make(map[string]model.StageMetrics),
			Errors:    make([]model.ErrorDetail, 0),
		},
	}
}

// StartStage marks the start of a run stage
func (rt *RunTracker) StartStage(stage string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	rt.metrics.Stages[stage] = model.StageMetrics{
		StageName: stage,
		Status:    "running",
		StartTime: now,
	}
	ledgerWarn(rt.metrics.RunID, "save stage progress", store.SaveStageProgress(rt.metrics.RunID, stage, "running", &now, nil, 0, 0))
	log.WithFields(log.Fields{"run_id": rt.metrics.RunID, "stage": stage}).Debug("📊 Stage started")
}

// EndStage marks the end of a run stage. A non-nil err fails the stage and is
// recorded as a run error.
func (rt *RunTracker) EndStage(stage string, records int64, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	m := rt.metrics.Stages[stage]
	m.StageName = stage
	if m.StartTime.IsZero() {
		m.StartTime = now
	}
	m.EndTime = &now
	m.Duration = now.Sub(m.StartTime)
	m.RecordsProcessed = records
	m.Status = "completed"
	if err != nil {
		m.Status = "failed"
		m.ErrorCount++
		rt.recordError(stage, err)
	}
	rt.metrics.Stages[stage] = m

	ledgerWarn(rt.metrics.RunID, "save stage progress",
		store.SaveStageProgress(rt.metrics.RunID, stage, m.Status, &m.StartTime, m.EndTime, records, m.ErrorCount))
	log.WithFields(log.Fields{
		"run_id":   rt.metrics.RunID,
		"stage":    stage,
		"status":   m.Status,
		"records":  records,
		"duration": m.Duration,
	}).Info("📊 Stage finished")
}

// RecordError records an error that did not end its stage
func (rt *RunTracker) RecordError(stage string, err error) {
	if err == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.recordError(stage, err)
}

func (rt *RunTracker) recordError(stage string, err error) {
	rt.metrics.Errors = append(rt.metrics.Errors, model.ErrorDetail{
		Stage:     stage,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
	ledgerWarn(rt.metrics.RunID, "save run error", store.SaveRunError(rt.metrics.RunID, stage, err))
}

// Finish sets the final status of the run
func (rt *RunTracker) Finish(status string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	rt.metrics.EndTime = &now
	rt.metrics.Duration = now.Sub(rt.metrics.StartTime)
	rt.metrics.Status = status
	ledgerWarn(rt.metrics.RunID, "update run status", store.UpdateRunStatus(rt.metrics.RunID, status))
}

// Metrics returns a copy of the current run metrics
func (rt *RunTracker) Metrics() model.RunMetrics {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m := rt.metrics
	m.Stages = make(map[string]model.StageMetrics, len(rt.metrics.Stages))
	for k, v := range rt.metrics.Stages {
		m.Stages[k] = v
	}
	m.Errors = append([]model.ErrorDetail(nil), rt.metrics.Errors...)
	return m
}

// ledgerWarn logs a failed ledger write. The run itself goes on; only its
// bookkeeping is incomplete.
func ledgerWarn(runID, op string, err error) {
	if err != nil {
		log.WithFields(log.Fields{"run_id": runID, "op": op}).WithError(err).Warn("⚠️ Ledger write failed")
	}
}
