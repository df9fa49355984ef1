package pipeline

import (
	"fmt"
	"strings"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/reconcile"
)

// Transformations lists the named row transformations a job may request.
var Transformations = map[string]func(model.GenericRecord) model.GenericRecord{
	"trimStrings":        trimStrings,
	"removeNulls":        removeNulls,
	"convertToUppercase": convertToUppercase,
	"convertToLowercase": convertToLowercase,
	"blankPlaceholders":  blankPlaceholders,
}

// TransformTable applies the named transformations, in order, to every row of t.
// Rows are rewritten in place; an unknown name fails before any row changes.
func TransformTable(t *model.Table, transformations []string) error {
	fns := make([]func(model.GenericRecord) model.GenericRecord, 0, len(transformations))
	for _, name := range transformations {
		fn, ok := Transformations[name]
		if !ok {
			return fmt.Errorf("unknown transformation: %s", name)
		}
		fns = append(fns, fn)
	}
	for i, rec := range t.Rows {
		for _, fn := range fns {
			rec = fn(rec)
		}
		t.Rows[i] = rec
	}
	return nil
}

// convertToLowercase converts string fields to lowercase
func convertToLowercase(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.ToLower(str)
		}
	}
	return rec
}

// trimStrings trims whitespace from all string fields
func trimStrings(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.TrimSpace(str)
		}
	}
	return rec
}

// convertToUppercase converts all string fields to uppercase
func convertToUppercase(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.ToUpper(str)
		}
	}
	return rec
}

// removeNulls removes null/nil values from the record
func removeNulls(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if val == nil {
			delete(rec, key)
		}
	}
	return rec
}

// blankPlaceholders replaces the stand-ins key normalization treats as absent
// ("nan", "null", ...) with nil.
func blankPlaceholders(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		str, ok := val.(string)
		if !ok {
			continue
		}
		if reconcile.IsPlaceholder(str) {
			rec[key] = nil
		}
	}
	return rec
}
