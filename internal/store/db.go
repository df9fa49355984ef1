package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/reconcile"
)

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("run not found")

var db *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	spec TEXT,
	status TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	stage TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS stage_progress (
	run_id TEXT,
	stage TEXT,
	status TEXT,
	started_at DATETIME,
	ended_at DATETIME,
	records INTEGER,
	errors INTEGER,
	PRIMARY KEY (run_id, stage)
);
CREATE TABLE IF NOT EXISTS run_reports (
	run_id TEXT PRIMARY KEY,
	verdict TEXT,
	report TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS group_counts (
	run_id TEXT,
	view TEXT,
	grp TEXT,
	rows_all INTEGER,
	keys_all INTEGER,
	rows_predicate INTEGER,
	keys_predicate INTEGER,
	PRIMARY KEY (run_id, view, grp)
);
`

// Initialize DB connection
func InitDB(dbPath string) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("create ledger schema: %w", err)
	}
	if db != nil {
		db.Close()
	}
	db = conn
	return nil
}

// Close releases the ledger connection.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveRun stores a new reconciliation run in pending state
func SaveRun(runID string, spec model.ReconcileJobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// ClaimRetry moves a finished run to retrying. It returns false when the run is
// not finished, so only one caller can restart a given run.
func ClaimRetry(runID string) (bool, error) {
	res, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?, ?)`,
		model.StatusRetrying, time.Now().UTC(), runID,
		model.StatusCompleted, model.StatusPartial, model.StatusFailed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SaveRunError records an error for a run
func SaveRunError(runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// GetRunErrors lists the errors of a run, oldest first
func GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := db.Query(`SELECT stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.Stage, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListRuns returns all runs without their specs, newest first
func ListRuns() ([]model.Run, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status
func GetRun(runID string) (model.Run, error) {
	var r model.Run
	var specJSON string
	err := db.QueryRow(`SELECT id, spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &specJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(specJSON), &r.Spec); err != nil {
		return r, fmt.Errorf("decode spec of run %s: %w", runID, err)
	}
	return r, nil
}

// DeleteRun removes a run and everything recorded for it
func DeleteRun(runID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"run_errors", "stage_progress", "run_reports", "group_counts"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveStageProgress upserts the state of one stage of a run
func SaveStageProgress(runID, stage, status string, start, end *time.Time, records, errCount int64) error {
	_, err := db.Exec(`
		INSERT INTO stage_progress (run_id, stage, status, started_at, ended_at, records, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			records = excluded.records,
			errors = excluded.errors`,
		runID, stage, status, start, end, records, errCount)
	return err
}

// GetStageProgress lists the recorded stages of a run in start order
func GetStageProgress(runID string) ([]model.StageMetrics, error) {
	rows, err := db.Query(`SELECT stage, status, started_at, ended_at, records, errors
		FROM stage_progress WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StageMetrics{}
	for rows.Next() {
		var m model.StageMetrics
		var start, end sql.NullTime
		if err := rows.Scan(&m.StageName, &m.Status, &start, &end, &m.RecordsProcessed, &m.ErrorCount); err != nil {
			return nil, err
		}
		if start.Valid {
			m.StartTime = start.Time
		}
		if end.Valid {
			t := end.Time
			m.EndTime = &t
			m.Duration = t.Sub(m.StartTime)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveReport stores the report of a run, replacing any earlier one
func SaveReport(runID string, rep reconcile.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO run_reports (run_id, verdict, report, created_at) VALUES (?, ?, ?, ?)`,
		runID, string(rep.Verdict.Kind), string(body), time.Now().UTC())
	return err
}

// GetReport loads the stored report of a run
func GetReport(runID string) (reconcile.Report, error) {
	var rep reconcile.Report
	var body string
	err := db.QueryRow(`SELECT report FROM run_reports WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return rep, fmt.Errorf("decode report of run %s: %w", runID, err)
	}
	return rep, nil
}

// SaveGroupCounts replaces the rows of one report table of a run, one row per
// group. view names the table, e.g. "dashboard" or "corrected".
func SaveGroupCounts(runID, view string, groups []reconcile.GroupAggregate) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_counts WHERE run_id = ? AND view = ?`, runID, view); err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT INTO group_counts
		(run_id, view, grp, rows_all, keys_all, rows_predicate, keys_predicate) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, g := range groups {
		var rows, keys sql.NullInt64
		if g.Predicate != nil {
			rows = sql.NullInt64{Int64: int64(g.Predicate.Rows), Valid: true}
			keys = sql.NullInt64{Int64: int64(g.Predicate.Keys), Valid: true}
		}
		if _, err := stmt.Exec(runID, view, g.Group, g.All.Rows, g.All.Keys, rows, keys); err != nil {
			return 0, err
		}
	}
	return len(groups), tx.Commit()
}

// GetGroupCounts reads back the rows of one report table of a run, by group name
func GetGroupCounts(runID, view string) ([]reconcile.GroupAggregate, error) {
	rows, err := db.Query(`SELECT grp, rows_all, keys_all, rows_predicate, keys_predicate
		FROM group_counts WHERE run_id = ? AND view = ? ORDER BY grp`, runID, view)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reconcile.GroupAggregate{}
	for rows.Next() {
		var g reconcile.GroupAggregate
		var predRows, predKeys sql.NullInt64
		if err := rows.Scan(&g.Group, &g.All.Rows, &g.All.Keys, &predRows, &predKeys); err != nil {
			return nil, err
		}
		if predRows.Valid && predKeys.Valid {
			g.Predicate = &reconcile.Counts{Rows: int(predRows.Int64), Keys: int(predKeys.Int64)}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ResetRunResults drops the report, group counts and stage progress of a run so
// a re-execution under the same id starts clean. Recorded errors are kept.
func ResetRunResults(runID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"run_reports", "group_counts", "stage_progress"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}
