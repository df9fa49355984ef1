package reconcile

import (
	"sort"
	"strings"
)

// JoinResolved matches every survey response to the resolved group of its order.
// Responses whose order is not in the fact data are dropped and counted.
func JoinResolved(idx *KeyGroupIndex, survey []SurveyResponse) (joined []JoinedRecord, unmatched int) {
	joined = make([]JoinedRecord, 0, len(survey))
	for i, s := range survey {
		group, ok := idx.Resolve(s.OrderID)
		if !ok {
			unmatched++
			continue
		}
		joined = append(joined, JoinedRecord{
			OrderID:    s.OrderID,
			Group:      group,
			ResponseID: i,
			Response:   s.Response,
		})
	}
	return joined, unmatched
}

// JoinFanOut pairs every survey response with every fact line-item of the same
// order, the way a many-to-many relationship expands rows. Each pair takes the
// group of its line-item.
func JoinFanOut(facts []FactRecord, survey []SurveyResponse) []JoinedRecord {
	byKey := make(map[string][]int, len(facts))
	for i, f := range facts {
		byKey[f.OrderID] = append(byKey[f.OrderID], i)
	}
	var joined []JoinedRecord
	for i, s := range survey {
		for _, fi := range byKey[s.OrderID] {
			joined = append(joined, JoinedRecord{
				OrderID:    s.OrderID,
				Group:      facts[fi].Group,
				ResponseID: i,
				Response:   s.Response,
			})
		}
	}
	return joined
}

// ResponseIn builds a predicate matching records whose response equals one of
// values, ignoring case and surrounding whitespace.
func ResponseIn(values ...string) Predicate {
	want := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			want = append(want, v)
		}
	}
	return func(r JoinedRecord) bool {
		got := strings.TrimSpace(r.Response)
		for _, w := range want {
			if strings.EqualFold(got, w) {
				return true
			}
		}
		return false
	}
}

type tally struct {
	rows      int
	keys      map[string]struct{}
	responses map[int]struct{}
}

func newTally() *tally {
	return &tally{keys: make(map[string]struct{}), responses: make(map[int]struct{})}
}

func (t *tally) add(r JoinedRecord) {
	t.rows++
	t.keys[r.OrderID] = struct{}{}
	t.responses[r.ResponseID] = struct{}{}
}

func (t *tally) groupCounts() Counts {
	return Counts{Rows: t.rows, Keys: len(t.keys)}
}

// globalCounts counts each survey response once, however many records it produced.
func (t *tally) globalCounts() Counts {
	return Counts{Rows: len(t.responses), Keys: len(t.keys)}
}

// Aggregate computes COUNT and DISTINCT-COUNT per group and globally. With a
// non-nil predicate the same measures are computed over the matching records.
func Aggregate(records []JoinedRecord, pred Predicate) AggregateResult {
	all := make(map[string]*tally)
	restricted := make(map[string]*tally)
	global, globalPred := newTally(), newTally()

	for _, r := range records {
		t, ok := all[r.Group]
		if !ok {
			t = newTally()
			all[r.Group] = t
		}
		t.add(r)
		global.add(r)

		if pred != nil && pred(r) {
			pt, ok := restricted[r.Group]
			if !ok {
				pt = newTally()
				restricted[r.Group] = pt
			}
			pt.add(r)
			globalPred.add(r)
		}
	}

	res := AggregateResult{
		Groups: make(map[string]*GroupAggregate, len(all)),
		Global: global.globalCounts(),
	}
	for group, t := range all {
		ga := &GroupAggregate{Group: group, All: t.groupCounts()}
		if pred != nil {
			c := Counts{}
			if pt, ok := restricted[group]; ok {
				c = pt.groupCounts()
			}
			ga.Predicate = &c
		}
		res.Groups[group] = ga
	}
	if pred != nil {
		c := globalPred.globalCounts()
		res.GlobalPredicate = &c
	}
	return res
}

// Sum adds up the per-group measures.
func (a AggregateResult) Sum() (all Counts, pred *Counts) {
	if a.GlobalPredicate != nil {
		pred = &Counts{}
	}
	for _, g := range a.Groups {
		all = all.Add(g.All)
		if pred != nil && g.Predicate != nil {
			*pred = pred.Add(*g.Predicate)
		}
	}
	return all, pred
}

// Sorted returns the groups by descending row count, then by name.
func (a AggregateResult) Sorted() []GroupAggregate {
	out := make([]GroupAggregate, 0, len(a.Groups))
	for _, g := range a.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].All.Rows != out[j].All.Rows {
			return out[i].All.Rows > out[j].All.Rows
		}
		return out[i].Group < out[j].Group
	})
	return out
}
