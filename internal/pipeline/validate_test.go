package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-reconcile-pipeline/internal/model"
)

func surveyWith(columns ...string) *model.Table {
	t := &model.Table{Name: "survey", Columns: columns}
	rec := model.GenericRecord{}
	for i, c := range columns {
		rec[c] = i
	}
	t.Rows = []model.GenericRecord{rec}
	return t
}

func TestResolveSurveyColumns_ByHints(t *testing.T) {
	tbl := surveyWith("Carimbo de data/hora", "Numero da Ordem de Serviço", "O EC aceitou a negociação?")
	hasResponse, err := ResolveSurveyColumns(tbl, model.DefaultFieldMap, nil)
	require.NoError(t, err)
	require.True(t, hasResponse)
	require.Equal(t, []string{"Carimbo de data/hora", "Número da ordem", "EC aceitou a negociação?"}, tbl.Columns)
	require.Equal(t, 1, tbl.Rows[0]["Número da ordem"])
	require.Equal(t, 2, tbl.Rows[0]["EC aceitou a negociação?"])
	require.NotContains(t, tbl.Rows[0], "Numero da Ordem de Serviço")
}

func TestResolveSurveyColumns_AccentsAndExactNames(t *testing.T) {
	tbl := surveyWith("NÚMERO DA ORDEM", "EC aceitou a negociação?")
	hasResponse, err := ResolveSurveyColumns(tbl, model.DefaultFieldMap, nil)
	require.NoError(t, err)
	require.True(t, hasResponse)
	require.Equal(t, "Número da ordem", tbl.Columns[0])
}

func TestResolveSurveyColumns_CustomHints(t *testing.T) {
	tbl := surveyWith("os", "resposta")
	fields := model.FieldMap{SurveyOrder: "order", SurveyResponse: "answer"}
	hasResponse, err := ResolveSurveyColumns(tbl, fields, &model.ColumnHints{Order: []string{"os"}, Response: []string{"resp"}})
	require.NoError(t, err)
	require.True(t, hasResponse)
	require.Equal(t, []string{"order", "answer"}, tbl.Columns)
}

func TestResolveSurveyColumns_MissingColumns(t *testing.T) {
	tbl := surveyWith("Ordem", "Comentário")
	hasResponse, err := ResolveSurveyColumns(tbl, model.DefaultFieldMap, nil)
	require.NoError(t, err)
	require.False(t, hasResponse)

	_, err = ResolveSurveyColumns(surveyWith("Carimbo", "Comentário"), model.DefaultFieldMap, nil)
	require.ErrorContains(t, err, "no order column")
}

func TestValidateTable(t *testing.T) {
	tbl := surveyWith("NumeroOS", "NomeCliente")
	require.NoError(t, ValidateTable(tbl, nil))
	require.NoError(t, ValidateTable(tbl, &model.ValidationRules{RequiredFields: []string{"NumeroOS"}}))

	err := ValidateTable(tbl, &model.ValidationRules{RequiredFields: []string{"NumeroOS", "UFEC", "NomeEC"}})
	require.ErrorContains(t, err, "UFEC, NomeEC")
}
