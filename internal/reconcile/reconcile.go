// Package reconcile explains why a dashboard's total row disagrees with the sum
// of its per-group rows when survey responses are joined to order line-items.
//
// Everything here is a pure, in-memory computation over snapshots that were
// already materialized by the ingestion layer.
package reconcile

import (
	"errors"
	"fmt"

	"go-reconcile-pipeline/internal/model"
)

// ErrMissingField is returned when a table lacks a field the run is configured to read.
var ErrMissingField = errors.New("required field missing from schema")

// Input bundles the two tables and the field names to read from them.
// Survey may be nil, in which case only the fact-side analysis is produced.
type Input struct {
	Facts           *model.Table
	Survey          *model.Table
	Fields          model.FieldMap
	PredicateValues []string
	TieBreak        TieBreak
}

// Reconcile runs the whole analysis. The only error it returns is ErrMissingField.
func Reconcile(in Input) (Report, error) {
	facts, factExcluded, err := FactsFromTable(in.Facts, in.Fields)
	if err != nil {
		return Report{}, err
	}
	idx := ResolveGroups(facts, in.TieBreak)

	if in.Survey == nil {
		return BuildPartialReport(Snapshot{Facts: facts, FactExcluded: factExcluded}, idx), nil
	}

	// A survey without any rows carries no responses to compare against, and
	// may carry no schema either (an empty JSON array or worksheet).
	if len(in.Survey.Rows) == 0 {
		return BuildPartialReport(Snapshot{Facts: facts, FactExcluded: factExcluded}, idx), nil
	}
	survey, surveyExcluded, err := SurveyFromTable(in.Survey, in.Fields)
	if err != nil {
		return Report{}, err
	}

	var pred Predicate
	if in.Survey.HasColumn(in.Fields.SurveyResponse) && len(in.PredicateValues) > 0 {
		pred = ResponseIn(in.PredicateValues...)
	}
	snap := Snapshot{
		Facts:          facts,
		Survey:         survey,
		FactExcluded:   factExcluded,
		SurveyExcluded: surveyExcluded,
	}
	return BuildReport(snap, idx, pred), nil
}

// FactsFromTable reads fact rows, skipping rows whose order key is absent.
func FactsFromTable(t *model.Table, f model.FieldMap) (facts []FactRecord, excluded int, err error) {
	if err := requireFields(t, f.FactOrder, f.FactGroup); err != nil {
		return nil, 0, err
	}
	facts = make([]FactRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		key, ok := NormalizeKey(row[f.FactOrder])
		if !ok {
			excluded++
			continue
		}
		group := NormalizeText(row[f.FactGroup])
		if group == "" {
			group = UnassignedGroup
		}
		facts = append(facts, FactRecord{
			OrderID:  key,
			Group:    group,
			Merchant: optionalText(row, f.FactMerchant),
			Region:   optionalText(row, f.FactRegion),
		})
	}
	return facts, excluded, nil
}

// SurveyFromTable reads survey rows, skipping rows whose order key is absent.
// Columns other than the key and the response are kept as metadata.
func SurveyFromTable(t *model.Table, f model.FieldMap) (survey []SurveyResponse, excluded int, err error) {
	if err := requireFields(t, f.SurveyOrder); err != nil {
		return nil, 0, err
	}
	hasResponse := t.HasColumn(f.SurveyResponse)
	survey = make([]SurveyResponse, 0, len(t.Rows))
	for _, row := range t.Rows {
		key, ok := NormalizeKey(row[f.SurveyOrder])
		if !ok {
			excluded++
			continue
		}
		s := SurveyResponse{OrderID: key, HasResponse: hasResponse}
		if hasResponse {
			s.Response = NormalizeText(row[f.SurveyResponse])
		}
		for col, v := range row {
			if col == f.SurveyOrder || col == f.SurveyResponse {
				continue
			}
			if s.Metadata == nil {
				s.Metadata = make(map[string]interface{})
			}
			s.Metadata[col] = v
		}
		survey = append(survey, s)
	}
	return survey, excluded, nil
}

func requireFields(t *model.Table, fields ...string) error {
	if t == nil {
		return fmt.Errorf("%w: no table supplied", ErrMissingField)
	}
	for _, field := range fields {
		if !t.HasColumn(field) {
			return fmt.Errorf("%w: %q not in table %q", ErrMissingField, field, t.Name)
		}
	}
	return nil
}

func optionalText(row model.GenericRecord, field string) string {
	if field == "" {
		return ""
	}
	return NormalizeText(row[field])
}
