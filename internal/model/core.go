package model

import "time"

// GenericRecord is a schema-agnostic map for any data source
type GenericRecord map[string]interface{}

// Table is a fully materialized tabular snapshot handed from ingestion to the core
type Table struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns"`
	Rows    []GenericRecord `json:"-"`
}

// HasColumn reports whether the table schema carries the named column
func (t *Table) HasColumn(name string) bool {
	if t == nil || name == "" {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FieldMap names the columns the reconciliation reads after schema resolution
type FieldMap struct {
	FactOrder      string `json:"factOrder" mapstructure:"fact_order"`
	FactGroup      string `json:"factGroup" mapstructure:"fact_group"`
	FactMerchant   string `json:"factMerchant" mapstructure:"fact_merchant"`
	FactRegion     string `json:"factRegion" mapstructure:"fact_region"`
	SurveyOrder    string `json:"surveyOrder" mapstructure:"survey_order"`
	SurveyResponse string `json:"surveyResponse" mapstructure:"survey_response"`
}

// DefaultFieldMap names the columns of the service-order warehouse extract and
// of the negotiation survey form.
var DefaultFieldMap = FieldMap{
	FactOrder:      "NumeroOS",
	FactGroup:      "NomeCliente",
	FactMerchant:   "NomeEC",
	FactRegion:     "UFEC",
	SurveyOrder:    "Número da ordem",
	SurveyResponse: "EC aceitou a negociação?",
}

// WithDefaults fills the empty order, group and survey fields from DefaultFieldMap.
// Merchant and region stay optional.
func (f FieldMap) WithDefaults() FieldMap {
	if f.FactOrder == "" {
		f.FactOrder = DefaultFieldMap.FactOrder
	}
	if f.FactGroup == "" {
		f.FactGroup = DefaultFieldMap.FactGroup
	}
	if f.SurveyOrder == "" {
		f.SurveyOrder = DefaultFieldMap.SurveyOrder
	}
	if f.SurveyResponse == "" {
		f.SurveyResponse = DefaultFieldMap.SurveyResponse
	}
	return f
}

// ValidationRules defines validation requirements for a source
type ValidationRules struct {
	RequiredFields []string `json:"requiredFields" mapstructure:"required_fields"` // fields that must be present
}

// ColumnHints drives survey column resolution: the first column whose lowercased
// name contains one of the hints is renamed to the canonical field
type ColumnHints struct {
	Order    []string `json:"order" mapstructure:"order"`
	Response []string `json:"response" mapstructure:"response"`
}

// Source represents a data source for the pipeline
type Source struct {
	Type       string           `json:"type" mapstructure:"type"` // csv, json, xlsx, postgres, sqlite
	URL        string           `json:"url" mapstructure:"url"`   // file path, http URL or DSN
	Query      string           `json:"query,omitempty" mapstructure:"query"`
	Sheets     []string         `json:"sheets,omitempty" mapstructure:"sheets"` // preferred xlsx sheets, first match wins
	Optional   bool             `json:"optional,omitempty" mapstructure:"optional"`
	Hints      *ColumnHints     `json:"hints,omitempty" mapstructure:"hints"`
	Validation *ValidationRules `json:"validation,omitempty" mapstructure:"validation"`
}

// Export defines export targets
type Export struct {
	Dir string `json:"dir" mapstructure:"dir"` // per-run output directory root
	DB  bool   `json:"db" mapstructure:"db"`   // also store the report in the run ledger
}

// ExportResult reports one export destination of a run
type ExportResult struct {
	Type        string    `json:"type"` // csv, json or database
	Path        string    `json:"path"` // file path, or ledger table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RetryConfig defines retry behavior for source loading
type RetryConfig struct {
	MaxAttempts       int           `json:"maxAttempts" mapstructure:"max_attempts"`
	InitialDelay      time.Duration `json:"initialDelay" mapstructure:"initial_delay"`
	MaxDelay          time.Duration `json:"maxDelay" mapstructure:"max_delay"`
	BackoffMultiplier float64       `json:"backoffMultiplier" mapstructure:"backoff_multiplier"`
}

// ReconcileJobSpec defines one reconciliation run
type ReconcileJobSpec struct {
	Fact            Source      `json:"fact" mapstructure:"fact"`
	Survey          *Source     `json:"survey,omitempty" mapstructure:"survey"`
	Fields          FieldMap    `json:"fields" mapstructure:"fields"`
	PredicateValues []string    `json:"predicateValues" mapstructure:"predicate_values"` // e.g. ["Não"] for rejections
	Transformations []string    `json:"transformations" mapstructure:"transformations"`
	Export          *Export     `json:"export,omitempty" mapstructure:"export"`
	JobTimeout      string      `json:"jobTimeout" mapstructure:"job_timeout"` // e.g., "5m"
	Retry           RetryConfig `json:"retry" mapstructure:"retry"`
}
