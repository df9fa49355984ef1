package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"go-reconcile-pipeline/internal/model"
)

var fields = model.FieldMap{
	FactOrder:      "NumeroOS",
	FactGroup:      "NomeCliente",
	FactMerchant:   "NomeEC",
	FactRegion:     "UFEC",
	SurveyOrder:    "Número da ordem",
	SurveyResponse: "EC aceitou a negociação?",
}

func factTable(rows ...[]interface{}) *model.Table {
	t := &model.Table{Name: "fact", Columns: []string{"NumeroOS", "NomeCliente", "NomeEC", "UFEC"}}
	for _, r := range rows {
		rec := model.GenericRecord{}
		for i, c := range t.Columns {
			if i < len(r) {
				rec[c] = r[i]
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

func surveyTable(rows ...[]interface{}) *model.Table {
	t := &model.Table{Name: "survey", Columns: []string{"Número da ordem", "EC aceitou a negociação?", "Carimbo"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, model.GenericRecord{"Número da ordem": r[0], "EC aceitou a negociação?": r[1], "Carimbo": "2025-05-01"})
	}
	return t
}

func TestReconcile_LineItemInflation(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:           factTable([]interface{}{"OS1", "CustA", "EC1", "SP"}, []interface{}{"OS1", "CustA", "EC1", "SP"}, []interface{}{"OS2", "CustB", "EC2", "RJ"}),
		Survey:          surveyTable([]interface{}{"OS1", "Sim"}, []interface{}{" OS1", "Não"}, []interface{}{"OS2", "Sim"}),
		Fields:          fields,
		PredicateValues: []string{"Não"},
	})
	require.NoError(t, err)
	require.False(t, rep.Partial)

	d := rep.Dashboard
	require.Len(t, d.Groups, 2)
	require.Equal(t, "CustA", d.Groups[0].Group)
	require.Equal(t, Counts{Rows: 4, Keys: 1}, d.Groups[0].All)
	require.Equal(t, Counts{Rows: 2, Keys: 1}, *d.Groups[0].Predicate)
	require.Equal(t, Counts{Rows: 1, Keys: 1}, d.Groups[1].All)
	require.Equal(t, Counts{}, *d.Groups[1].Predicate)

	require.Equal(t, Counts{Rows: 5, Keys: 2}, d.Sum.All)
	require.Equal(t, Counts{Rows: 3, Keys: 2}, d.Global.All)
	require.Equal(t, Counts{Rows: 2, Keys: 0}, d.Diff.All)
	require.Equal(t, Counts{Rows: 1, Keys: 0}, *d.Diff.Predicate)

	require.Equal(t, Counts{Rows: 3, Keys: 2}, rep.Corrected.Sum.All)
	require.Equal(t, rep.Corrected.Global.All, rep.Corrected.Sum.All)

	require.Empty(t, rep.Conflicts)
	require.True(t, rep.Consistent)
	require.Equal(t, VerdictLineItemInflation, rep.Verdict.Kind)
	require.Contains(t, rep.Verdict.Text, "over-counts by 2 rows")

	require.Equal(t, 66.67, rep.Gaps.RowGap)
	require.Equal(t, 0.0, rep.Gaps.KeyGap)
	require.Equal(t, 150.0, rep.Gaps.OverCount)

	require.Equal(t, []RegionCount{{Region: "RJ", Orders: 1}, {Region: "SP", Orders: 1}}, rep.Regions)
	require.Equal(t, 3, rep.Responses.Answered)
	require.Equal(t, 1, rep.Responses.Predicate)
	require.Equal(t, 33.33, rep.Responses.PredicatePct)
	require.Equal(t, ValueCount{Value: "Sim", Count: 2}, rep.Responses.Values[0])
}

func TestReconcile_MultiGroupConflict(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:           factTable([]interface{}{"OS9", "CustA"}, []interface{}{"OS9", "CustB"}),
		Survey:          surveyTable([]interface{}{"OS9", "Sim"}),
		Fields:          fields,
		PredicateValues: []string{"Não"},
	})
	require.NoError(t, err)

	require.Equal(t, []Conflict{{OrderID: "OS9", Groups: []string{"CustA", "CustB"}, Resolved: "CustA"}}, rep.Conflicts)
	require.Equal(t, rep.Conflicts, rep.MatchedConflicts)
	require.Equal(t, 2, rep.Dashboard.Sum.All.Keys)
	require.Equal(t, 1, rep.Dashboard.Global.All.Keys)
	require.Equal(t, 1, rep.Dashboard.Diff.All.Keys)
	require.Equal(t, 1, rep.ExtraMemberships)
	require.Equal(t, 0, *rep.ExtraMembershipsPredicate)
	require.True(t, rep.Consistent)
	require.Equal(t, VerdictMultiGroupKeys, rep.Verdict.Kind)
	require.Contains(t, rep.Verdict.Text, "because 1 orders appear under more than one group")

	require.Len(t, rep.Corrected.Groups, 1)
	require.Equal(t, "CustA", rep.Corrected.Groups[0].Group)
	require.Equal(t, rep.Corrected.Global.All, rep.Corrected.Sum.All)
}

func TestBuildReport_ConflictCountMatchesDistinctGap(t *testing.T) {
	for c := 0; c <= 8; c++ {
		fs, ss := dataset(int64(c), 30, c)
		idx := ResolveGroups(fs, nil)
		rep := BuildReport(Snapshot{Facts: fs, Survey: ss}, idx, ResponseIn("Não"))

		require.Equal(t, c, rep.Dashboard.Diff.All.Keys)
		require.Len(t, rep.MatchedConflicts, c)
		require.Equal(t, c, rep.ExtraMemberships)
		require.True(t, rep.Consistent, "conflicted orders %d", c)
		if c > 0 {
			require.Equal(t, VerdictMultiGroupKeys, rep.Verdict.Kind)
		}
	}
}

func TestBuildReport_UnmatchedConflictNotCited(t *testing.T) {
	fs := facts("OS1", "CustA", "OS2", "CustA", "OS2", "CustB")
	ss := []SurveyResponse{{OrderID: "OS1", Response: "Sim"}}
	rep := BuildReport(Snapshot{Facts: fs, Survey: ss}, ResolveGroups(fs, nil), nil)

	require.Len(t, rep.Conflicts, 1)
	require.Empty(t, rep.MatchedConflicts)
	require.Equal(t, VerdictConsistent, rep.Verdict.Kind)
	require.Equal(t, 1, rep.Coverage.FactKeysWithoutResponse)
}

func TestReconcile_CoverageAndMalformedKeys(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:  factTable([]interface{}{"OS1", "CustA"}, []interface{}{nil, "CustA"}, []interface{}{"OS2", ""}),
		Survey: surveyTable([]interface{}{"OS1", "Sim"}, []interface{}{"nan", "Sim"}, []interface{}{"", "Não"}, []interface{}{"OS404", "Não"}),
		Fields: fields,
	})
	require.NoError(t, err)
	require.Equal(t, Coverage{
		FactRows:                2,
		FactExcluded:            1,
		SurveyRows:              2,
		SurveyExcluded:          2,
		MatchedResponses:        1,
		UnmatchedResponses:      1,
		FactKeys:                2,
		SurveyKeys:              2,
		CommonKeys:              1,
		FactKeysWithoutResponse: 1,
	}, rep.Coverage)
	require.Nil(t, rep.Dashboard.Sum.Predicate)
	require.Equal(t, VerdictConsistent, rep.Verdict.Kind)
}

func TestReconcile_UnassignedGroup(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:  factTable([]interface{}{"OS2", "  "}),
		Survey: surveyTable([]interface{}{"OS2", "Sim"}),
		Fields: fields,
	})
	require.NoError(t, err)
	require.Equal(t, UnassignedGroup, rep.Dashboard.Groups[0].Group)
}

func TestReconcile_PredicateFieldAbsentDegrades(t *testing.T) {
	survey := &model.Table{
		Name:    "survey",
		Columns: []string{"Número da ordem"},
		Rows:    []model.GenericRecord{{"Número da ordem": 1001}},
	}
	rep, err := Reconcile(Input{
		Facts:           factTable([]interface{}{1001.0, "CustA"}),
		Survey:          survey,
		Fields:          fields,
		PredicateValues: []string{"Não"},
	})
	require.NoError(t, err)
	require.Equal(t, Counts{Rows: 1, Keys: 1}, rep.Dashboard.Global.All)
	require.Nil(t, rep.Dashboard.Global.Predicate)
	require.Nil(t, rep.Dashboard.Diff.Predicate)
	require.Nil(t, rep.Dashboard.Groups[0].Predicate)
	require.Nil(t, rep.ExtraMembershipsPredicate)
	require.Zero(t, rep.Responses.Answered)
}

func TestReconcile_PartialWithoutSurvey(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts: factTable(
			[]interface{}{"OS1", "CustA"}, []interface{}{"OS1", "CustA"}, []interface{}{"OS1", "CustA"},
			[]interface{}{"OS2", "CustA"}, []interface{}{"OS3", "CustB"},
		),
		Fields: fields,
	})
	require.NoError(t, err)
	require.True(t, rep.Partial)
	require.Nil(t, rep.Dashboard)
	require.Equal(t, VerdictFactOnly, rep.Verdict.Kind)

	s := rep.FactOnly
	require.Equal(t, 5, s.LineItems)
	require.Equal(t, 3, s.Orders)
	require.Equal(t, 1.67, s.Factor)
	require.Equal(t, 1, s.MultiItemOrders)
	require.Equal(t, 33.33, s.MultiItemPct)
	require.Equal(t, []FactGroup{
		{Group: "CustA", LineItems: 4, Orders: 2, Factor: 2},
		{Group: "CustB", LineItems: 1, Orders: 1, Factor: 1},
	}, s.Groups)
}

func TestReconcile_PartialEmptyFacts(t *testing.T) {
	rep, err := Reconcile(Input{Facts: factTable(), Fields: fields})
	require.NoError(t, err)
	require.True(t, rep.Partial)
	require.Zero(t, rep.FactOnly.Factor)
	require.Empty(t, rep.FactOnly.Groups)
}

func TestReconcile_EmptySurveyTable(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:  factTable([]interface{}{"OS1", "CustA"}),
		Survey: surveyTable(),
		Fields: fields,
	})
	require.NoError(t, err)
	require.True(t, rep.Partial)
	require.Nil(t, rep.Dashboard)
	require.Equal(t, VerdictFactOnly, rep.Verdict.Kind)
	require.Equal(t, []FactGroup{{Group: "CustA", LineItems: 1, Orders: 1, Factor: 1}}, rep.FactOnly.Groups)
}

func TestReconcile_EmptySurveyWithoutColumns(t *testing.T) {
	rep, err := Reconcile(Input{
		Facts:  factTable([]interface{}{"OS1", "CustA"}, []interface{}{"OS1", "CustA"}),
		Survey: &model.Table{Name: "survey"},
		Fields: fields,
	})
	require.NoError(t, err)
	require.True(t, rep.Partial)
	require.Equal(t, VerdictFactOnly, rep.Verdict.Kind)
	require.Equal(t, 2.0, rep.FactOnly.Factor)
}

func TestReconcile_MissingRequiredField(t *testing.T) {
	facts := &model.Table{Name: "fact", Columns: []string{"NumeroOS"}}
	_, err := Reconcile(Input{Facts: facts, Fields: fields})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingField))
	require.Contains(t, err.Error(), "NomeCliente")

	_, err = Reconcile(Input{
		Facts:  factTable(),
		Survey: &model.Table{Name: "survey", Columns: []string{"Resposta"}, Rows: []model.GenericRecord{{"Resposta": "Sim"}}},
		Fields: fields,
	})
	require.ErrorIs(t, err, ErrMissingField)
}
