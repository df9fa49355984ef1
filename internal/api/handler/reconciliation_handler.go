package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/pipeline"
	"go-reconcile-pipeline/internal/reconcile"
	"go-reconcile-pipeline/internal/render"
	"go-reconcile-pipeline/internal/store"
	"go-reconcile-pipeline/pkg/utils"
)

const prefix = "/api/v1/reconciliations/"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// runID extracts the id between the collection prefix and suffix; suffix is
// empty for the run resource itself.
func runID(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := path[len(prefix) : len(path)-len(suffix)]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// storeError maps ledger errors to responses
func storeError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	log.WithError(err).Errorf("failed to load %s", what)
	writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

// CreateReconciliation submits a new reconciliation run
// @Summary Create a reconciliation run
// @Description Store the job spec and start the run in the background
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param spec body model.ReconcileJobSpec true "Reconciliation job spec"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /reconciliations [post]
func CreateReconciliation(w http.ResponseWriter, r *http.Request) {
	var spec model.ReconcileJobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if spec.Fact.URL == "" {
		writeError(w, http.StatusBadRequest, "fact.url is required")
		return
	}
	spec.Fields = spec.Fields.WithDefaults()

	id := uuid.New().String()
	if err := store.SaveRun(id, spec); err != nil {
		log.WithError(err).Error("failed to save run")
		writeError(w, http.StatusInternalServerError, "failed to save run")
		return
	}

	// Run applies the job timeout itself; the request context ends with the response.
	go pipeline.Run(context.Background(), id, spec)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Reconciliation started",
		"runID":     id,
		"status":    model.StatusPending,
		"createdAt": time.Now().UTC(),
	})
}

// ListReconciliations lists all runs
// @Summary List reconciliation runs
// @Tags reconciliations
// @Produce json
// @Success 200 {array} model.Run
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /reconciliations [get]
func ListReconciliations(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		storeError(w, err, "runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetReconciliation returns the job spec and status of a run
// @Summary Get a reconciliation run
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.Run
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /reconciliations/{id} [get]
func GetReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := store.GetRun(id)
	if err != nil {
		storeError(w, err, "run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetReconciliationReport returns the stored report of a run, as JSON or,
// with ?format=text, as the console tables.
// @Summary Get the report of a run
// @Tags reconciliations
// @Produce json,plain
// @Param id path string true "Run ID"
// @Param format query string false "json (default) or text"
// @Success 200 {object} reconcile.Report
// @Failure 404 {object} map[string]interface{} "Report not found"
// @Router /reconciliations/{id}/report [get]
func GetReconciliationReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := loadReport(w, r, "/report")
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := render.Report(w, rep); err != nil {
			log.WithError(err).Warn("failed to render report")
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetReconciliationConflicts lists orders found under more than one group.
// ?matched=true restricts the list to orders the survey answered.
// @Summary Get multi-group orders of a run
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Param matched query bool false "only orders with a survey response"
// @Success 200 {object} map[string]interface{} "Conflicts"
// @Failure 404 {object} map[string]interface{} "Report not found"
// @Router /reconciliations/{id}/conflicts [get]
func GetReconciliationConflicts(w http.ResponseWriter, r *http.Request) {
	rep, ok := loadReport(w, r, "/conflicts")
	if !ok {
		return
	}
	conflicts := rep.Conflicts
	if r.URL.Query().Get("matched") == "true" {
		conflicts = rep.MatchedConflicts
	}
	if conflicts == nil {
		conflicts = []reconcile.Conflict{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":             len(conflicts),
		"extra_memberships": rep.ExtraMemberships,
		"consistent":        rep.Consistent,
		"conflicts":         conflicts,
	})
}

// GetReconciliationGroups returns the per-group rows a run exported to the
// ledger; view is dashboard (default) or corrected.
// @Summary Get exported per-group counts of a run
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Param view query string false "dashboard (default) or corrected"
// @Success 200 {object} map[string]interface{} "Group counts"
// @Failure 400 {object} map[string]interface{} "Unknown view"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /reconciliations/{id}/groups [get]
func GetReconciliationGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "/groups")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "dashboard"
	}
	if view != "dashboard" && view != "corrected" {
		writeError(w, http.StatusBadRequest, "unknown view "+view)
		return
	}
	if _, err := store.GetRun(id); err != nil {
		storeError(w, err, "run")
		return
	}
	groups, err := store.GetGroupCounts(id, view)
	if err != nil {
		storeError(w, err, "group counts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runID":  id,
		"view":   view,
		"groups": groups,
	})
}

func loadReport(w http.ResponseWriter, r *http.Request, suffix string) (reconcile.Report, bool) {
	id, ok := runID(r.URL.Path, suffix)
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return reconcile.Report{}, false
	}
	rep, err := store.GetReport(id)
	if err != nil {
		storeError(w, err, "report")
		return rep, false
	}
	return rep, true
}

// GetReconciliationErrors lists the errors recorded for a run
// @Summary Get run errors
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /reconciliations/{id}/errors [get]
func GetReconciliationErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "/errors")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if _, err := store.GetRun(id); err != nil {
		storeError(w, err, "run")
		return
	}
	errs, err := store.GetRunErrors(id)
	if err != nil {
		storeError(w, err, "errors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runID":  id,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetReconciliationProgress returns the status and per-stage progress of a run
// @Summary Get run progress
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run progress"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /reconciliations/{id}/progress [get]
func GetReconciliationProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "/progress")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := store.GetRun(id)
	if err != nil {
		storeError(w, err, "run")
		return
	}
	stages, err := store.GetStageProgress(id)
	if err != nil {
		storeError(w, err, "progress")
		return
	}
	done := 0
	for _, s := range stages {
		if s.Status == "completed" || s.Status == "failed" {
			done++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runID":           id,
		"status":          run.Status,
		"stages":          stages,
		"completedStages": done,
	})
}

// RetryReconciliation re-executes a run with its stored spec
// @Summary Retry a run
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{} "Retry started"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run still in progress"
// @Router /reconciliations/{id}/retry [post]
func RetryReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "/retry")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := store.GetRun(id)
	if err != nil {
		storeError(w, err, "run")
		return
	}
	claimed, err := store.ClaimRetry(id)
	if err != nil {
		storeError(w, err, "run")
		return
	}
	if !claimed {
		writeError(w, http.StatusConflict, "run is still in progress")
		return
	}

	go func() {
		if err := pipeline.RetryRun(id, run.Spec); err != nil {
			log.WithField("run_id", id).WithError(err).Error("❌ Retry failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry initiated",
		"runID":   id,
		"status":  model.StatusRetrying,
	})
}

func finished(status string) bool {
	switch status {
	case model.StatusCompleted, model.StatusPartial, model.StatusFailed:
		return true
	}
	return false
}

// DeleteReconciliation removes a finished run, its ledger rows and output files
// @Summary Delete a run
// @Tags reconciliations
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run deleted"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run still in progress"
// @Router /reconciliations/{id} [delete]
func DeleteReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "")
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := store.GetRun(id)
	if err != nil {
		storeError(w, err, "run")
		return
	}
	if !finished(run.Status) {
		writeError(w, http.StatusConflict, "run is still "+run.Status)
		return
	}

	if run.Spec.Export != nil && run.Spec.Export.Dir != "" {
		if err := utils.NewOutputManager(run.Spec.Export.Dir).RemoveRunOutput(id); err != nil {
			log.WithField("run_id", id).WithError(err).Warn("failed to delete run output")
		}
	}
	if err := store.DeleteRun(id); err != nil {
		storeError(w, err, "run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Run deleted",
		"runID":   id,
	})
}
