package reconcile

import "sort"

// UnassignedGroup labels fact rows that carry an order identifier but no group.
const UnassignedGroup = "(unassigned)"

// TieBreak picks one group for an order identifier observed under several groups.
// groups is in first-seen order and always has at least two entries.
type TieBreak func(orderID string, groups []string) string

// FirstSeen keeps the group of the earliest fact row for the order. It is a
// reporting convenience: nothing in the data says which group owns the order.
func FirstSeen(_ string, groups []string) string {
	return groups[0]
}

// Conflict is an order identifier observed under more than one group.
type Conflict struct {
	OrderID  string   `json:"order_id"`
	Groups   []string `json:"groups"`
	Resolved string   `json:"resolved"`
}

// KeyGroupIndex maps order identifiers to the groups their fact rows carry.
type KeyGroupIndex struct {
	groups    map[string][]string
	resolved  map[string]string
	conflicts []Conflict
	order     []string
}

// ResolveGroups builds the key→group index from fact rows, visiting them in
// slice order. A nil tieBreak means FirstSeen.
func ResolveGroups(facts []FactRecord, tieBreak TieBreak) *KeyGroupIndex {
	if tieBreak == nil {
		tieBreak = FirstSeen
	}
	idx := &KeyGroupIndex{
		groups:   make(map[string][]string),
		resolved: make(map[string]string),
	}
	seenPair := make(map[[2]string]struct{})

	for _, f := range facts {
		pair := [2]string{f.OrderID, f.Group}
		if _, dup := seenPair[pair]; dup {
			continue
		}
		seenPair[pair] = struct{}{}
		if _, known := idx.groups[f.OrderID]; !known {
			idx.order = append(idx.order, f.OrderID)
		}
		idx.groups[f.OrderID] = append(idx.groups[f.OrderID], f.Group)
	}

	for _, key := range idx.order {
		groups := idx.groups[key]
		if len(groups) == 1 {
			idx.resolved[key] = groups[0]
			continue
		}
		pick := tieBreak(key, append([]string(nil), groups...))
		idx.resolved[key] = pick
		idx.conflicts = append(idx.conflicts, Conflict{
			OrderID:  key,
			Groups:   append([]string(nil), groups...),
			Resolved: pick,
		})
	}
	sort.Slice(idx.conflicts, func(i, j int) bool {
		return idx.conflicts[i].OrderID < idx.conflicts[j].OrderID
	})
	return idx
}

// Groups returns every group observed for the order, in first-seen order.
func (idx *KeyGroupIndex) Groups(orderID string) []string {
	return append([]string(nil), idx.groups[orderID]...)
}

// Resolve returns the single group assigned to the order.
func (idx *KeyGroupIndex) Resolve(orderID string) (string, bool) {
	g, ok := idx.resolved[orderID]
	return g, ok
}

// Has reports whether the order appears in the fact data at all.
func (idx *KeyGroupIndex) Has(orderID string) bool {
	_, ok := idx.groups[orderID]
	return ok
}

// Conflicts returns the complete conflict set sorted by order identifier.
func (idx *KeyGroupIndex) Conflicts() []Conflict {
	out := make([]Conflict, len(idx.conflicts))
	for i, c := range idx.conflicts {
		out[i] = Conflict{OrderID: c.OrderID, Groups: append([]string(nil), c.Groups...), Resolved: c.Resolved}
	}
	return out
}

// Keys returns the distinct order identifiers in first-seen order.
func (idx *KeyGroupIndex) Keys() []string {
	return append([]string(nil), idx.order...)
}

// Len is the number of distinct order identifiers.
func (idx *KeyGroupIndex) Len() int {
	return len(idx.order)
}
