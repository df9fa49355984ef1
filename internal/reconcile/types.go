package reconcile

// FactRecord is one line-item of an approved service order.
type FactRecord struct {
	OrderID  string `json:"order_id"`
	Group    string `json:"group"`
	Merchant string `json:"merchant,omitempty"`
	Region   string `json:"region,omitempty"`
}

// SurveyResponse is one respondent's answer about an order.
type SurveyResponse struct {
	OrderID     string                 `json:"order_id"`
	Response    string                 `json:"response,omitempty"`
	HasResponse bool                   `json:"has_response"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// JoinedRecord is a survey response matched to a fact group on its order identifier.
// ResponseID is the position of the originating survey row.
type JoinedRecord struct {
	OrderID    string `json:"order_id"`
	Group      string `json:"group"`
	ResponseID int    `json:"response_id"`
	Response   string `json:"response,omitempty"`
}

// Counts pairs COUNT and DISTINCT-COUNT semantics.
type Counts struct {
	Rows int `json:"rows"`
	Keys int `json:"keys"`
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{Rows: c.Rows + o.Rows, Keys: c.Keys + o.Keys}
}

// Sub returns the element-wise difference c - o.
func (c Counts) Sub(o Counts) Counts {
	return Counts{Rows: c.Rows - o.Rows, Keys: c.Keys - o.Keys}
}

// Predicate selects joined records for the restricted aggregates.
type Predicate func(JoinedRecord) bool

// GroupAggregate holds the measures of one group.
type GroupAggregate struct {
	Group     string  `json:"group"`
	All       Counts  `json:"all"`
	Predicate *Counts `json:"predicate,omitempty"`
}

// AggregateResult is the per-group and global outcome of one aggregation pass.
type AggregateResult struct {
	Groups          map[string]*GroupAggregate `json:"groups"`
	Global          Counts                     `json:"global"`
	GlobalPredicate *Counts                    `json:"global_predicate,omitempty"`
}
