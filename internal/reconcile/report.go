package reconcile

import (
	"fmt"
	"math"
	"sort"
)

// VerdictKind classifies the cause of a discrepancy.
type VerdictKind string

const (
	VerdictConsistent        VerdictKind = "consistent"
	VerdictLineItemInflation VerdictKind = "line_item_inflation"
	VerdictMultiGroupKeys    VerdictKind = "multi_group_keys"
	VerdictFactOnly          VerdictKind = "fact_only"
)

// Verdict is the human-readable explanation of a report.
type Verdict struct {
	Kind VerdictKind `json:"kind"`
	Text string      `json:"text"`
}

// Measures holds the four reported numbers; Predicate is nil when the
// predicate field was not available.
type Measures struct {
	All       Counts  `json:"all"`
	Predicate *Counts `json:"predicate,omitempty"`
}

// GroupTable is a per-group table with its summed, global and difference rows.
type GroupTable struct {
	Groups []GroupAggregate `json:"groups"`
	Sum    Measures         `json:"sum"`
	Global Measures         `json:"global"`
	Diff   Measures         `json:"diff"`
}

// Percentages expresses the gaps relative to the global values.
type Percentages struct {
	RowGap    float64 `json:"row_gap_pct"`
	KeyGap    float64 `json:"key_gap_pct"`
	OverCount float64 `json:"over_count_pct"`
}

// Coverage accounts for every input row, matched or not.
type Coverage struct {
	FactRows                int `json:"fact_rows"`
	FactExcluded            int `json:"fact_excluded"`
	SurveyRows              int `json:"survey_rows"`
	SurveyExcluded          int `json:"survey_excluded"`
	MatchedResponses        int `json:"matched_responses"`
	UnmatchedResponses      int `json:"unmatched_responses"`
	FactKeys                int `json:"fact_keys"`
	SurveyKeys              int `json:"survey_keys"`
	CommonKeys              int `json:"common_keys"`
	FactKeysWithoutResponse int `json:"fact_keys_without_response"`
}

// ValueCount is the number of matched responses carrying one response value.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ResponseBreakdown splits matched survey rows by response value.
type ResponseBreakdown struct {
	Values       []ValueCount `json:"values"`
	Answered     int          `json:"answered"`
	Predicate    int          `json:"predicate"`
	PredicatePct float64      `json:"predicate_pct"`
}

// RegionCount is the number of distinct orders recorded for a region.
type RegionCount struct {
	Region string `json:"region"`
	Orders int    `json:"orders"`
}

// FactGroup is a fact-only row: line-items against distinct orders.
type FactGroup struct {
	Group     string  `json:"group"`
	LineItems int     `json:"line_items"`
	Orders    int     `json:"orders"`
	Factor    float64 `json:"factor"`
}

// FactOnlySummary is the analysis available without survey data.
type FactOnlySummary struct {
	Groups          []FactGroup `json:"groups"`
	LineItems       int         `json:"line_items"`
	Orders          int         `json:"orders"`
	Factor          float64     `json:"factor"`
	MultiItemOrders int         `json:"multi_item_orders"`
	MultiItemPct    float64     `json:"multi_item_pct"`
}

// Report is the structured result of a reconciliation. Rendering is left to callers.
type Report struct {
	Partial   bool        `json:"partial"`
	Dashboard *GroupTable `json:"dashboard,omitempty"`
	Corrected *GroupTable `json:"corrected,omitempty"`
	Gaps      Percentages `json:"gaps"`

	Conflicts                 []Conflict `json:"conflicts"`
	MatchedConflicts          []Conflict `json:"matched_conflicts"`
	ExtraMemberships          int        `json:"extra_memberships"`
	ExtraMembershipsPredicate *int       `json:"extra_memberships_predicate,omitempty"`
	Consistent                bool       `json:"consistent"`

	Coverage  Coverage           `json:"coverage"`
	Responses *ResponseBreakdown `json:"responses,omitempty"`
	Regions   []RegionCount      `json:"regions,omitempty"`
	FactOnly  *FactOnlySummary   `json:"fact_only,omitempty"`
	Verdict   Verdict            `json:"verdict"`
}

// Snapshot is the normalized input of one run.
type Snapshot struct {
	Facts          []FactRecord
	Survey         []SurveyResponse
	FactExcluded   int
	SurveyExcluded int
}

// BuildReport compares the dashboard's many-to-many view against its total row
// and against the resolved one-group-per-order view. pred may be nil.
func BuildReport(snap Snapshot, idx *KeyGroupIndex, pred Predicate) Report {
	fanOut := JoinFanOut(snap.Facts, snap.Survey)
	resolved, unmatched := JoinResolved(idx, snap.Survey)

	dashboard := buildTable(Aggregate(fanOut, pred))
	corrected := buildTable(Aggregate(resolved, pred))

	rep := Report{
		Dashboard: &dashboard,
		Corrected: &corrected,
		Conflicts: idx.Conflicts(),
		Coverage:  coverage(snap, idx, len(resolved), unmatched),
		Regions:   regions(snap.Facts),
	}

	matchedKeys := make(map[string]struct{})
	predKeys := make(map[string]struct{})
	for _, r := range fanOut {
		matchedKeys[r.OrderID] = struct{}{}
		if pred != nil && pred(r) {
			predKeys[r.OrderID] = struct{}{}
		}
	}
	rep.MatchedConflicts = []Conflict{}
	extraPred := 0
	for _, c := range rep.Conflicts {
		if _, ok := matchedKeys[c.OrderID]; ok {
			rep.MatchedConflicts = append(rep.MatchedConflicts, c)
			rep.ExtraMemberships += len(c.Groups) - 1
		}
		if _, ok := predKeys[c.OrderID]; ok {
			extraPred += len(c.Groups) - 1
		}
	}
	rep.Consistent = dashboard.Diff.All.Keys == rep.ExtraMemberships
	if pred != nil {
		rep.ExtraMembershipsPredicate = &extraPred
		rep.Consistent = rep.Consistent && dashboard.Diff.Predicate.Keys == extraPred
	}

	rep.Gaps = Percentages{
		RowGap:    pct(dashboard.Diff.All.Rows, dashboard.Global.All.Rows),
		KeyGap:    pct(dashboard.Diff.All.Keys, dashboard.Global.All.Keys),
		OverCount: pct(dashboard.Sum.All.Rows-dashboard.Sum.All.Keys, dashboard.Sum.All.Keys),
	}
	rep.Responses = responses(resolved, pred)
	rep.Verdict = verdict(dashboard.Diff, len(rep.MatchedConflicts), rep.ExtraMemberships, rep.Consistent)
	return rep
}

// BuildPartialReport analyses the fact data alone, for runs without survey data.
func BuildPartialReport(snap Snapshot, idx *KeyGroupIndex) Report {
	summary := factOnly(snap.Facts)
	cov := coverage(Snapshot{Facts: snap.Facts, FactExcluded: snap.FactExcluded}, idx, 0, 0)
	return Report{
		Partial:          true,
		Conflicts:        idx.Conflicts(),
		MatchedConflicts: []Conflict{},
		Consistent:       true,
		Coverage:         cov,
		Regions:          regions(snap.Facts),
		FactOnly:         &summary,
		Verdict: Verdict{
			Kind: VerdictFactOnly,
			Text: fmt.Sprintf("No survey data: %d line-items over %d orders, so a row COUNT would inflate totals about %.2fx while DISTINCT-COUNT of orders would not.",
				summary.LineItems, summary.Orders, summary.Factor),
		},
	}
}

func buildTable(agg AggregateResult) GroupTable {
	sumAll, sumPred := agg.Sum()
	t := GroupTable{
		Groups: agg.Sorted(),
		Sum:    Measures{All: sumAll, Predicate: sumPred},
		Global: Measures{All: agg.Global, Predicate: agg.GlobalPredicate},
	}
	t.Diff.All = sumAll.Sub(agg.Global)
	if sumPred != nil && agg.GlobalPredicate != nil {
		d := sumPred.Sub(*agg.GlobalPredicate)
		t.Diff.Predicate = &d
	}
	return t
}

func verdict(diff Measures, conflicted, extra int, consistent bool) Verdict {
	switch {
	case diff.All.Rows == 0 && diff.All.Keys == 0:
		return Verdict{
			Kind: VerdictConsistent,
			Text: "Per-group rows add up to the total under both COUNT and DISTINCT-COUNT.",
		}
	case diff.All.Keys == 0:
		return Verdict{
			Kind: VerdictLineItemInflation,
			Text: fmt.Sprintf("COUNT over-counts by %d rows because orders with several line-items repeat each survey response once per line-item; DISTINCT-COUNT corrects it and its per-group sum matches the total.",
				diff.All.Rows),
		}
	}
	text := fmt.Sprintf("DISTINCT-COUNT per-group sum exceeds the total by %d because %d orders appear under more than one group and are counted once in each.",
		diff.All.Keys, conflicted)
	if diff.All.Rows > diff.All.Keys {
		text += fmt.Sprintf(" COUNT adds a further %d rows of line-item inflation.", diff.All.Rows-diff.All.Keys)
	}
	if !consistent {
		text += fmt.Sprintf(" The distinct gap does not match the %d extra group memberships in the conflict set.", extra)
	}
	return Verdict{Kind: VerdictMultiGroupKeys, Text: text}
}

func coverage(snap Snapshot, idx *KeyGroupIndex, matched, unmatched int) Coverage {
	surveyKeys := make(map[string]struct{})
	answered := make(map[string]struct{})
	for _, s := range snap.Survey {
		surveyKeys[s.OrderID] = struct{}{}
		if idx.Has(s.OrderID) {
			answered[s.OrderID] = struct{}{}
		}
	}
	return Coverage{
		FactRows:                len(snap.Facts),
		FactExcluded:            snap.FactExcluded,
		SurveyRows:              len(snap.Survey),
		SurveyExcluded:          snap.SurveyExcluded,
		MatchedResponses:        matched,
		UnmatchedResponses:      unmatched,
		FactKeys:                idx.Len(),
		SurveyKeys:              len(surveyKeys),
		CommonKeys:              len(answered),
		FactKeysWithoutResponse: idx.Len() - len(answered),
	}
}

func responses(joined []JoinedRecord, pred Predicate) *ResponseBreakdown {
	counts := make(map[string]int)
	b := &ResponseBreakdown{}
	for _, r := range joined {
		if r.Response == "" {
			continue
		}
		counts[r.Response]++
		b.Answered++
		if pred != nil && pred(r) {
			b.Predicate++
		}
	}
	for v, n := range counts {
		b.Values = append(b.Values, ValueCount{Value: v, Count: n})
	}
	sort.Slice(b.Values, func(i, j int) bool {
		if b.Values[i].Count != b.Values[j].Count {
			return b.Values[i].Count > b.Values[j].Count
		}
		return b.Values[i].Value < b.Values[j].Value
	})
	b.PredicatePct = pct(b.Predicate, b.Answered)
	return b
}

func regions(facts []FactRecord) []RegionCount {
	orders := make(map[string]map[string]struct{})
	for _, f := range facts {
		if f.Region == "" {
			continue
		}
		if orders[f.Region] == nil {
			orders[f.Region] = make(map[string]struct{})
		}
		orders[f.Region][f.OrderID] = struct{}{}
	}
	out := make([]RegionCount, 0, len(orders))
	for region, keys := range orders {
		out = append(out, RegionCount{Region: region, Orders: len(keys)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

func factOnly(facts []FactRecord) FactOnlySummary {
	type acc struct {
		items  int
		orders map[string]struct{}
	}
	byGroup := make(map[string]*acc)
	perOrder := make(map[string]int)
	for _, f := range facts {
		a, ok := byGroup[f.Group]
		if !ok {
			a = &acc{orders: make(map[string]struct{})}
			byGroup[f.Group] = a
		}
		a.items++
		a.orders[f.OrderID] = struct{}{}
		perOrder[f.OrderID]++
	}

	s := FactOnlySummary{LineItems: len(facts), Orders: len(perOrder)}
	for _, n := range perOrder {
		if n > 1 {
			s.MultiItemOrders++
		}
	}
	s.Factor = ratio(s.LineItems, s.Orders)
	s.MultiItemPct = pct(s.MultiItemOrders, s.Orders)

	for group, a := range byGroup {
		s.Groups = append(s.Groups, FactGroup{
			Group:     group,
			LineItems: a.items,
			Orders:    len(a.orders),
			Factor:    ratio(a.items, len(a.orders)),
		})
	}
	sort.Slice(s.Groups, func(i, j int) bool {
		if s.Groups[i].Factor != s.Groups[j].Factor {
			return s.Groups[i].Factor > s.Groups[j].Factor
		}
		return s.Groups[i].Group < s.Groups[j].Group
	})
	return s
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return round2(float64(a) / float64(b))
}

func pct(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return round2(100 * float64(a) / float64(b))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
