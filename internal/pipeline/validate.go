package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"go-reconcile-pipeline/internal/model"
)

// DefaultSurveyHints match the column names survey exports use for the order
// number and the negotiation answer.
var DefaultSurveyHints = model.ColumnHints{
	Order:    []string{"numero da ordem", "mero da ordem", "numero", "ordem"},
	Response: []string{"aceitou", "aceita"},
}

// ResolveSurveyColumns renames the survey columns that match the hints to the
// configured field names. Columns already carrying the configured name win.
// It reports whether the response column could be resolved.
func ResolveSurveyColumns(t *model.Table, fields model.FieldMap, hints *model.ColumnHints) (hasResponse bool, err error) {
	h := DefaultSurveyHints
	if hints != nil {
		if len(hints.Order) > 0 {
			h.Order = hints.Order
		}
		if len(hints.Response) > 0 {
			h.Response = hints.Response
		}
	}

	logger := log.WithField("source", t.Name)
	if col, ok := resolveColumn(t, fields.SurveyOrder, h.Order); ok {
		if col != fields.SurveyOrder {
			logger.Infof("🔎 Order column: %q", col)
		}
	} else {
		return false, fmt.Errorf("no order column in %q (columns: %s)", t.Name, strings.Join(t.Columns, ", "))
	}

	if fields.SurveyResponse == "" {
		return false, nil
	}
	col, ok := resolveColumn(t, fields.SurveyResponse, h.Response)
	if !ok {
		logger.Warnf("⚠️ Response column %q not found; predicate measures will be omitted", fields.SurveyResponse)
		return false, nil
	}
	if col != fields.SurveyResponse {
		logger.Infof("🔎 Response column: %q", col)
	}
	return true, nil
}

// resolveColumn finds the column for canonical and renames it in place.
// Hints are tried in order; the first column matching the earliest hint wins.
func resolveColumn(t *model.Table, canonical string, hints []string) (string, bool) {
	if t.HasColumn(canonical) {
		return canonical, true
	}
	for _, hint := range hints {
		want := foldName(hint)
		for _, col := range t.Columns {
			if strings.Contains(foldName(col), want) {
				renameColumn(t, col, canonical)
				return col, true
			}
		}
	}
	return "", false
}

func renameColumn(t *model.Table, from, to string) {
	for i, c := range t.Columns {
		if c == from {
			t.Columns[i] = to
		}
	}
	for _, row := range t.Rows {
		if v, ok := row[from]; ok {
			row[to] = v
			delete(row, from)
		}
	}
}

// foldName lowercases a column name and strips its diacritics.
func foldName(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// ValidateTable checks that every required field is a column of the table.
func ValidateTable(t *model.Table, rules *model.ValidationRules) error {
	if rules == nil {
		// No validation rules defined → pass through
		return nil
	}
	var missing []string
	for _, field := range rules.RequiredFields {
		if !t.HasColumn(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing required fields: %s", t.Name, strings.Join(missing, ", "))
	}
	return nil
}
