package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/reconcile"
	"go-reconcile-pipeline/internal/store"
	"go-reconcile-pipeline/pkg/utils"
)

// ExportManager writes the outputs of one run
type ExportManager struct {
	RunID      string
	ExportSpec *model.Export
	Output     *utils.OutputManager
}

// NewExportManager creates an export manager for runID; a nil spec disables file output.
func NewExportManager(runID string, spec *model.Export) *ExportManager {
	em := &ExportManager{RunID: runID, ExportSpec: spec}
	if spec != nil && spec.Dir != "" {
		em.Output = utils.NewOutputManager(spec.Dir)
	}
	return em
}

// ExportReport writes the report to every configured destination and returns
// one result per destination. A failed destination does not stop the others.
func (em *ExportManager) ExportReport(ctx context.Context, rep reconcile.Report) []model.ExportResult {
	var results []model.ExportResult
	if em.Output != nil {
		results = append(results,
			em.exportFile(ctx, "report.json", func(f *os.File) (int, error) { return em.writeJSON(f, rep) }),
			em.exportFile(ctx, "conflicts.csv", func(f *os.File) (int, error) { return writeConflictsCSV(f, rep.Conflicts) }),
		)
		if rep.Partial {
			results = append(results, em.exportFile(ctx, "fact_groups.csv", func(f *os.File) (int, error) {
				return writeFactGroupsCSV(f, rep.FactOnly)
			}))
		} else {
			results = append(results, em.exportFile(ctx, "groups.csv", func(f *os.File) (int, error) {
				return writeGroupsCSV(f, rep)
			}))
		}
	}
	if em.ExportSpec != nil && em.ExportSpec.DB && !rep.Partial {
		results = append(results, em.exportToDatabase(ctx, rep))
	}

	for _, r := range results {
		entry := log.WithFields(log.Fields{"run_id": em.RunID, "type": r.Type, "path": r.Path})
		if r.Success {
			entry.Infof("💾 Exported %d records", r.RecordCount)
		} else {
			entry.Errorf("❌ Export failed: %s", r.Error)
		}
	}
	return results
}

func (em *ExportManager) exportFile(ctx context.Context, name string, write func(*os.File) (int, error)) model.ExportResult {
	result := model.ExportResult{Type: em.Output.GetFileType(name), Timestamp: time.Now()}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	path, err := em.Output.GetOutputFilePath(em.RunID, name)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Path = path

	file, err := os.Create(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create file: %v", err)
		return result
	}
	n, err := write(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	result.RecordCount = n
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// writeJSON writes the report wrapped with export metadata
func (em *ExportManager) writeJSON(f *os.File, rep reconcile.Report) (int, error) {
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")

	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":      em.RunID,
			"exported_at": time.Now().UTC(),
			"partial":     rep.Partial,
			"verdict":     rep.Verdict.Kind,
		},
		"report": rep,
	}
	if err := encoder.Encode(exportData); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return 1, nil
}

// writeGroupsCSV writes the dashboard and corrected tables, one row per group
// followed by their sum, total and difference rows.
func writeGroupsCSV(f *os.File, rep reconcile.Report) (int, error) {
	writer := csv.NewWriter(f)
	header := []string{"view", "group", "rows", "distinct_orders", "predicate_rows", "predicate_distinct_orders"}
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	count := 0
	for _, view := range []struct {
		name  string
		table *reconcile.GroupTable
	}{{"dashboard", rep.Dashboard}, {"corrected", rep.Corrected}} {
		if view.table == nil {
			continue
		}
		for _, g := range view.table.Groups {
			if err := writer.Write(countsRow(view.name, g.Group, g.All, g.Predicate)); err != nil {
				return count, fmt.Errorf("failed to write row: %w", err)
			}
			count++
		}
		for _, m := range []struct {
			label string
			m     reconcile.Measures
		}{{"SUM", view.table.Sum}, {"TOTAL", view.table.Global}, {"DIFF", view.table.Diff}} {
			if err := writer.Write(countsRow(view.name, m.label, m.m.All, m.m.Predicate)); err != nil {
				return count, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}
	writer.Flush()
	return count, writer.Error()
}

func countsRow(view, label string, all reconcile.Counts, pred *reconcile.Counts) []string {
	row := []string{view, label, strconv.Itoa(all.Rows), strconv.Itoa(all.Keys), "", ""}
	if pred != nil {
		row[4] = strconv.Itoa(pred.Rows)
		row[5] = strconv.Itoa(pred.Keys)
	}
	return row
}

func writeConflictsCSV(f *os.File, conflicts []reconcile.Conflict) (int, error) {
	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"order_id", "groups", "group_count", "resolved"}); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i, c := range conflicts {
		row := []string{c.OrderID, strings.Join(c.Groups, "|"), strconv.Itoa(len(c.Groups)), c.Resolved}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return len(conflicts), writer.Error()
}

func writeFactGroupsCSV(f *os.File, s *reconcile.FactOnlySummary) (int, error) {
	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"group", "line_items", "distinct_orders", "factor"}); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	if s == nil {
		writer.Flush()
		return 0, writer.Error()
	}
	for i, g := range s.Groups {
		row := []string{g.Group, strconv.Itoa(g.LineItems), strconv.Itoa(g.Orders), strconv.FormatFloat(g.Factor, 'f', 2, 64)}
		if err := writer.Write(row); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return len(s.Groups), writer.Error()
}

// exportToDatabase stores the per-group tables in the run ledger
func (em *ExportManager) exportToDatabase(ctx context.Context, rep reconcile.Report) model.ExportResult {
	result := model.ExportResult{Type: "database", Path: "group_counts", Timestamp: time.Now()}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	total := 0
	for view, table := range map[string]*reconcile.GroupTable{"dashboard": rep.Dashboard, "corrected": rep.Corrected} {
		if table == nil {
			continue
		}
		n, err := store.SaveGroupCounts(em.RunID, view, table.Groups)
		if err != nil {
			result.Error = fmt.Sprintf("save %s group counts: %v", view, err)
			result.RecordCount = total
			return result
		}
		total += n
	}
	result.RecordCount = total
	result.Success = true
	return result
}
