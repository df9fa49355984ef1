package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-reconcile-pipeline/internal/reconcile"
)

func sampleReport() reconcile.Report {
	table := &reconcile.GroupTable{
		Groups: []reconcile.GroupAggregate{
			{Group: "CustA", All: reconcile.Counts{Rows: 1500, Keys: 2}},
			{Group: "CustB", All: reconcile.Counts{Rows: 2, Keys: 2}},
		},
		Sum:    reconcile.Measures{All: reconcile.Counts{Rows: 1502, Keys: 4}},
		Global: reconcile.Measures{All: reconcile.Counts{Rows: 3, Keys: 3}},
		Diff:   reconcile.Measures{All: reconcile.Counts{Rows: 1499, Keys: 1}},
	}
	var conflicts []reconcile.Conflict
	for i := 0; i < 12; i++ {
		conflicts = append(conflicts, reconcile.Conflict{OrderID: fmt.Sprintf("OS%d", i), Groups: []string{"CustA", "CustB"}, Resolved: "CustA"})
	}
	return reconcile.Report{
		Dashboard:        table,
		Corrected:        table,
		Conflicts:        conflicts,
		MatchedConflicts: conflicts,
		ExtraMemberships: 12,
		Regions:          []reconcile.RegionCount{{Region: "SP", Orders: 2}},
		Verdict:          reconcile.Verdict{Kind: reconcile.VerdictMultiGroupKeys, Text: "groups overlap"},
	}
}

func TestReport_Full(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, sampleReport()))
	out := buf.String()

	require.Contains(t, out, "Dashboard")
	require.Contains(t, out, "1,500")
	require.Contains(t, out, "... and 2 more")
	require.NotContains(t, out, "OS10")
	require.Contains(t, out, "Verdict [multi_group_keys]: groups overlap")
	require.Contains(t, out, "SP")
}

func TestReport_Partial(t *testing.T) {
	rep := reconcile.Report{
		Partial: true,
		FactOnly: &reconcile.FactOnlySummary{
			LineItems: 5, Orders: 3, Factor: 1.67,
			Groups: []reconcile.FactGroup{
				{Group: "CustB", LineItems: 1, Orders: 1, Factor: 1},
				{Group: "CustA", LineItems: 4, Orders: 2, Factor: 2},
			},
		},
		Verdict: reconcile.Verdict{Kind: reconcile.VerdictFactOnly},
	}
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, rep))
	out := buf.String()

	require.Contains(t, out, "1.67x")
	require.NotContains(t, out, "Dashboard")
	require.Less(t, strings.Index(out, "CustA"), strings.Index(out, "CustB"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("closed") }

func TestReport_WriteError(t *testing.T) {
	require.Error(t, Report(failingWriter{}, sampleReport()))
}
