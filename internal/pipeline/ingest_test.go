package pipeline

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"go-reconcile-pipeline/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	p := filepath.Join(t.TempDir(), "survey.xlsx")
	require.NoError(t, f.SaveAs(p))
	return p
}

func TestLoadSource_CSV(t *testing.T) {
	p := writeFile(t, "facts.csv", "\ufeff\"NumeroOS\", NomeCliente ,UFEC\n1001,CustA,SP\n1001,CustA,SP\n00042,CustB,\n")

	tbl, err := LoadSource(context.Background(), "fact", model.Source{Type: "csv", URL: p})
	require.NoError(t, err)
	require.Equal(t, []string{"NumeroOS", "NomeCliente", "UFEC"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	require.Equal(t, 1001, tbl.Rows[0]["NumeroOS"])
	require.Equal(t, "00042", tbl.Rows[2]["NumeroOS"])
	require.Equal(t, "", tbl.Rows[2]["UFEC"])
}

func TestLoadSource_CSVErrors(t *testing.T) {
	_, err := LoadSource(context.Background(), "fact", model.Source{Type: "csv", URL: filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)
	require.False(t, isRetryableError(err))

	p := writeFile(t, "semi.csv", "NumeroOS;NomeCliente\n1;A\n")
	_, err = LoadSource(context.Background(), "fact", model.Source{Type: "csv", URL: p})
	require.ErrorContains(t, err, "semicolon")

	_, err = LoadSource(context.Background(), "fact", model.Source{Type: "parquet", URL: p})
	require.ErrorContains(t, err, "unknown source type")
	require.False(t, isRetryableError(err))
}

func TestLoadSource_JSONOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"Número da ordem": 1001, "Resposta": "Sim"}, {"Número da ordem": "1002", "Resposta": "Não"}, 7]`))
	}))
	defer srv.Close()

	tbl, err := LoadSource(context.Background(), "survey", model.Source{Type: "json", URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	require.ElementsMatch(t, []string{"Número da ordem", "Resposta"}, tbl.Columns)
	require.Equal(t, 1001, tbl.Rows[0]["Número da ordem"])
	require.Equal(t, "1002", tbl.Rows[1]["Número da ordem"])
}

func TestLoadSource_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := LoadSource(context.Background(), "survey", model.Source{Type: "csv", URL: srv.URL + "/survey.csv"})
	require.ErrorContains(t, err, "unexpected status")
}

func TestLoadSource_XLSXPicksPreferredSheet(t *testing.T) {
	p := writeWorkbook(t, "Respostas", [][]interface{}{
		{"Carimbo", "Nº da ordem", "O EC aceitou?"},
		{"2025-05-01", 1001, "Sim"},
		{nil, nil, nil},
		{"2025-05-02", 1002, "Não"},
	})

	tbl, err := LoadSource(context.Background(), "survey", model.Source{Type: "xlsx", URL: p})
	require.NoError(t, err)
	require.Equal(t, "survey", tbl.Name)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, 1002, tbl.Rows[1]["Nº da ordem"])
}

func TestPickSheet(t *testing.T) {
	require.Equal(t, "Form1", pickSheet([]string{"Resumo", "Form1"}, nil))
	require.Equal(t, "Resumo", pickSheet([]string{"Resumo", "Dados"}, nil))
	require.Equal(t, "Dados", pickSheet([]string{"Respostas", "Dados"}, []string{"Dados"}))
}

func TestLoadSource_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warehouse.db")
	conn, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE approvals (NumeroOS INTEGER, NomeCliente TEXT);
		INSERT INTO approvals VALUES (1001, 'CustA'), (1001, 'CustA'), (1002, 'CustB');`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	tbl, err := LoadSource(context.Background(), "fact", model.Source{
		Type:  "sqlite",
		URL:   dsn,
		Query: "SELECT NumeroOS, NomeCliente FROM approvals ORDER BY rowid",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"NumeroOS", "NomeCliente"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	require.EqualValues(t, 1002, tbl.Rows[2]["NumeroOS"])
	require.Equal(t, "CustB", tbl.Rows[2]["NomeCliente"])

	_, err = LoadSource(context.Background(), "fact", model.Source{Type: "postgres", URL: "postgres://u:p@localhost/x"})
	require.ErrorContains(t, err, "requires a query")
}

func TestRedact(t *testing.T) {
	require.Equal(t, "postgres://reader:***@db:5432/dw", redact("postgres://reader:s3cret@db:5432/dw"))
	require.Equal(t, "facts.csv", redact("facts.csv"))
}
