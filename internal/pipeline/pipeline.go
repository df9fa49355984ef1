// Package pipeline loads the fact and survey sources of a reconciliation run,
// prepares them, runs the reconciliation and exports the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/reconcile"
	"go-reconcile-pipeline/internal/store"
	"go-reconcile-pipeline/pkg/utils"
)

const (
	stageLoadFact   = "load:fact"
	stageLoadSurvey = "load:survey"
	stagePrepare    = "prepare"
	stageReconcile  = "reconcile"
	stageExport     = "export"
)

func jobTimeout(spec model.ReconcileJobSpec) time.Duration {
	return utils.ParseDuration(spec.JobTimeout)
}

// ------------------- Pipeline Runner -------------------

// Run executes one reconciliation run end to end and records its progress in
// the ledger. The run must already be saved with store.SaveRun.
func Run(ctx context.Context, runID string, spec model.ReconcileJobSpec) (rep reconcile.Report, err error) {
	start := time.Now()
	logger := log.WithField("run_id", runID)
	logger.Info("🚀 Starting reconciliation run")

	ledgerWarn(runID, "reset run results", store.ResetRunResults(runID))
	tracker := NewRunTracker(runID)
	ledgerWarn(runID, "update run status", store.UpdateRunStatus(runID, model.StatusLoading))
	defer func() {
		if err != nil {
			tracker.RecordError("run", err)
			tracker.Finish(model.StatusFailed)
			logger.WithError(err).Error("❌ Run failed")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout(spec))
	defer cancel()

	spec.Fields = spec.Fields.WithDefaults()
	facts, survey, err := loadSources(ctx, runID, spec, tracker)
	if err != nil {
		return rep, err
	}

	tracker.StartStage(stagePrepare)
	survey, err = prepare(facts, survey, spec)
	if err != nil {
		tracker.EndStage(stagePrepare, 0, err)
		return rep, err
	}
	tracker.EndStage(stagePrepare, int64(len(facts.Rows)+rowCount(survey)), nil)

	ledgerWarn(runID, "update run status", store.UpdateRunStatus(runID, model.StatusReconciling))
	tracker.StartStage(stageReconcile)
	rep, err = reconcile.Reconcile(reconcile.Input{
		Facts:           facts,
		Survey:          survey,
		Fields:          spec.Fields,
		PredicateValues: spec.PredicateValues,
	})
	if err != nil {
		tracker.EndStage(stageReconcile, 0, err)
		return rep, err
	}
	tracker.EndStage(stageReconcile, int64(rep.Coverage.FactRows+rep.Coverage.SurveyRows), nil)

	ledgerWarn(runID, "update run status", store.UpdateRunStatus(runID, model.StatusExporting))
	tracker.StartStage(stageExport)
	if err := store.SaveReport(runID, rep); err != nil {
		tracker.EndStage(stageExport, 0, err)
		return rep, fmt.Errorf("save report: %w", err)
	}
	var exportErr error
	exported := 0
	for _, r := range NewExportManager(runID, spec.Export).ExportReport(ctx, rep) {
		exported += r.RecordCount
		if !r.Success {
			exportErr = errors.Join(exportErr, fmt.Errorf("export %s %s: %s", r.Type, r.Path, r.Error))
		}
	}
	tracker.EndStage(stageExport, int64(exported), exportErr)

	status := model.StatusCompleted
	if rep.Partial {
		status = model.StatusPartial
	}
	tracker.Finish(status)
	metrics := tracker.Metrics()
	logger.WithFields(log.Fields{
		"verdict":  rep.Verdict.Kind,
		"partial":  rep.Partial,
		"stages":   len(metrics.Stages),
		"errors":   len(metrics.Errors),
		"duration": time.Since(start),
	}).Info("🏁 Run completed")
	return rep, nil
}

// loadSources loads the fact and survey sources concurrently. A survey failure
// is fatal unless the survey source is optional, in which case survey is nil.
func loadSources(ctx context.Context, runID string, spec model.ReconcileJobSpec, tracker *RunTracker) (facts, survey *model.Table, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tracker.StartStage(stageLoadFact)
		err := withRetry(gctx, runID, stageLoadFact, spec.Retry, func(ctx context.Context) error {
			t, err := LoadSource(ctx, "fact", spec.Fact)
			facts = t
			return err
		})
		tracker.EndStage(stageLoadFact, int64(rowCount(facts)), err)
		return err
	})

	if spec.Survey != nil {
		src := *spec.Survey
		g.Go(func() error {
			tracker.StartStage(stageLoadSurvey)
			err := withRetry(gctx, runID, stageLoadSurvey, spec.Retry, func(ctx context.Context) error {
				t, err := LoadSource(ctx, "survey", src)
				survey = t
				return err
			})
			if err != nil && src.Optional {
				tracker.EndStage(stageLoadSurvey, 0, err)
				log.WithField("run_id", runID).WithError(err).Warn("⚠️ Survey unavailable; continuing with fact-only analysis")
				survey = nil
				return nil
			}
			tracker.EndStage(stageLoadSurvey, int64(rowCount(survey)), err)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return facts, survey, nil
}

// prepare applies the configured transformations and resolves the schema of
// both tables. An optional survey that cannot be resolved is dropped.
func prepare(facts, survey *model.Table, spec model.ReconcileJobSpec) (*model.Table, error) {
	if err := TransformTable(facts, spec.Transformations); err != nil {
		return nil, err
	}
	if err := ValidateTable(facts, spec.Fact.Validation); err != nil {
		return nil, err
	}
	if rowCount(survey) == 0 {
		if survey != nil {
			log.WithField("source", survey.Name).Warn("⚠️ Survey has no rows; continuing with fact-only analysis")
		}
		return nil, nil
	}

	optional := spec.Survey != nil && spec.Survey.Optional
	var hints *model.ColumnHints
	var rules *model.ValidationRules
	if spec.Survey != nil {
		hints, rules = spec.Survey.Hints, spec.Survey.Validation
	}

	err := TransformTable(survey, spec.Transformations)
	if err == nil {
		_, err = ResolveSurveyColumns(survey, spec.Fields, hints)
	}
	if err == nil {
		err = ValidateTable(survey, rules)
	}
	if err != nil {
		if optional {
			log.WithError(err).Warn("⚠️ Survey unusable; continuing with fact-only analysis")
			return nil, nil
		}
		return nil, err
	}
	return survey, nil
}

func rowCount(t *model.Table) int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
