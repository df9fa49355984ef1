package pipeline

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/pkg/utils"
)

// DefaultSheets are tried in order when an xlsx source names no sheets.
var DefaultSheets = []string{"TabelaPrecoParceiro", "Respostas", "Form1", "Sheet1", "Planilha1"}

// ------------------- Ingestion -------------------

// LoadSource materializes one source into a table.
func LoadSource(ctx context.Context, name string, source model.Source) (*model.Table, error) {
	logger := log.WithFields(log.Fields{"source": name, "type": source.Type})
	logger.Infof("➡️ Starting ingestion from %s", redact(source.URL))

	var (
		t   *model.Table
		err error
	)
	switch strings.ToLower(source.Type) {
	case "csv":
		t, err = loadCSV(ctx, name, source.URL)
	case "json", "api":
		t, err = loadJSON(ctx, name, source.URL)
	case "xlsx", "excel":
		t, err = loadXLSX(name, source.URL, source.Sheets)
	case "postgres", "sqlite", "sqlite3":
		t, err = loadSQL(ctx, name, source)
	default:
		err = &permanentError{fmt.Errorf("unknown source type: %s", source.Type)}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	logger.WithField("rows", len(t.Rows)).Info("✅ Finished ingestion")
	return t, nil
}

func openReader(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to GET %s: %w", pathOrURL, err)
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: unexpected status %s", pathOrURL, resp.Status)
		}
		return resp.Body, nil
	}
	file, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// ------------------- CSV Ingestion -------------------
func loadCSV(ctx context.Context, name, pathOrURL string) (*model.Table, error) {
	reader, err := openReader(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(headers) == 1 && strings.Contains(headers[0], ";") {
		return nil, &permanentError{fmt.Errorf("CSV header looks semicolon-separated; export with commas")}
	}

	t := &model.Table{Name: name, Columns: cleanHeaders(headers)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("CSV read error at row %d: %w", len(t.Rows)+2, err)
		}

		rec := make(model.GenericRecord, len(t.Columns))
		for i, h := range t.Columns {
			if i < len(record) {
				rec[h] = utils.ParseValue(record[i])
			}
		}
		t.Rows = append(t.Rows, rec)
		if n := len(t.Rows); n%10000 == 0 {
			log.WithField("source", name).Debugf("📄 CSV: %d rows read", n)
		}
	}
	return t, nil
}

// cleanHeaders trims whitespace, quotes and a UTF-8 byte order mark from header names.
func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ReplaceAll(h, `"`, "")
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// ------------------- JSON / API Ingestion -------------------
func loadJSON(ctx context.Context, name, url string) (*model.Table, error) {
	reader, err := openReader(ctx, url)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var raw interface{}
	dec := json.NewDecoder(reader)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	var items []interface{}
	switch data := raw.(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		items = []interface{}{data}
	default:
		return nil, fmt.Errorf("unexpected JSON structure %T", raw)
	}

	t := &model.Table{Name: name}
	seen := make(map[string]struct{})
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rec := make(model.GenericRecord, len(m))
		for k, v := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				t.Columns = append(t.Columns, k)
			}
			if n, ok := v.(json.Number); ok {
				v = utils.ParseValue(n.String())
			}
			rec[k] = v
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ------------------- XLSX Ingestion -------------------
func loadXLSX(name, path string, preferred []string) (*model.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	sheet := pickSheet(sheets, preferred)
	log.WithFields(log.Fields{"source": name, "sheet": sheet, "available": sheets}).Info("📋 Using sheet")

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &model.Table{Name: name}, nil
	}

	t := &model.Table{Name: name, Columns: cleanHeaders(rows[0])}
	for _, row := range rows[1:] {
		rec := make(model.GenericRecord, len(t.Columns))
		empty := true
		for i, h := range t.Columns {
			if i < len(row) {
				rec[h] = utils.ParseValue(row[i])
				if strings.TrimSpace(row[i]) != "" {
					empty = false
				}
			}
		}
		if !empty {
			t.Rows = append(t.Rows, rec)
		}
	}
	return t, nil
}

// pickSheet returns the first preferred sheet present in the workbook, or the
// first sheet when none is. No preference means DefaultSheets.
func pickSheet(available, preferred []string) string {
	if len(preferred) == 0 {
		preferred = DefaultSheets
	}
	for _, want := range preferred {
		for _, s := range available {
			if s == want {
				return s
			}
		}
	}
	return available[0]
}

// ------------------- SQL Ingestion -------------------
func loadSQL(ctx context.Context, name string, source model.Source) (*model.Table, error) {
	if strings.TrimSpace(source.Query) == "" {
		return nil, &permanentError{fmt.Errorf("source type %s requires a query", source.Type)}
	}
	driver := "postgres"
	if strings.HasPrefix(strings.ToLower(source.Type), "sqlite") {
		driver = "sqlite3"
	}

	conn, err := sql.Open(driver, source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, source.Query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &model.Table{Name: name, Columns: cols}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(t.Rows)+1, err)
		}
		rec := make(model.GenericRecord, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return t, nil
}

// redact hides the password of a connection URL before it is logged.
func redact(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return url[:scheme+3] + creds[:colon] + ":***" + url[at:]
	}
	return url
}
