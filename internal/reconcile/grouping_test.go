package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func facts(pairs ...string) []FactRecord {
	out := make([]FactRecord, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, FactRecord{OrderID: pairs[i], Group: pairs[i+1]})
	}
	return out
}

func TestResolveGroups_NoConflicts(t *testing.T) {
	idx := ResolveGroups(facts("OS1", "CustA", "OS1", "CustA", "OS2", "CustB"), nil)

	require.Empty(t, idx.Conflicts())
	require.Equal(t, 2, idx.Len())
	require.Equal(t, []string{"OS1", "OS2"}, idx.Keys())
	require.Equal(t, []string{"CustA"}, idx.Groups("OS1"))

	g, ok := idx.Resolve("OS2")
	require.True(t, ok)
	require.Equal(t, "CustB", g)

	_, ok = idx.Resolve("OS404")
	require.False(t, ok)
	require.False(t, idx.Has("OS404"))
}

func TestResolveGroups_ConflictFirstSeen(t *testing.T) {
	idx := ResolveGroups(facts(
		"OS9", "CustB",
		"OS3", "CustA",
		"OS9", "CustA",
		"OS9", "CustB",
		"OS3", "CustC",
		"OS3", "CustD",
	), nil)

	conflicts := idx.Conflicts()
	require.Len(t, conflicts, 2)
	require.Equal(t, Conflict{OrderID: "OS3", Groups: []string{"CustA", "CustC", "CustD"}, Resolved: "CustA"}, conflicts[0])
	require.Equal(t, Conflict{OrderID: "OS9", Groups: []string{"CustB", "CustA"}, Resolved: "CustB"}, conflicts[1])

	g, _ := idx.Resolve("OS9")
	require.Equal(t, "CustB", g)
}

func TestResolveGroups_CustomTieBreak(t *testing.T) {
	last := func(_ string, groups []string) string { return groups[len(groups)-1] }
	idx := ResolveGroups(facts("OS9", "CustA", "OS9", "CustB"), last)

	g, _ := idx.Resolve("OS9")
	require.Equal(t, "CustB", g)
	require.Equal(t, "CustB", idx.Conflicts()[0].Resolved)
	require.Equal(t, []string{"CustA", "CustB"}, idx.Conflicts()[0].Groups)
}

func TestResolveGroups_ConflictsAreCopies(t *testing.T) {
	idx := ResolveGroups(facts("OS9", "CustA", "OS9", "CustB"), nil)
	c := idx.Conflicts()
	c[0].Groups[0] = "mutated"
	require.Equal(t, []string{"CustA", "CustB"}, idx.Conflicts()[0].Groups)
}

func TestResolveGroups_Empty(t *testing.T) {
	idx := ResolveGroups(nil, nil)
	require.Zero(t, idx.Len())
	require.Empty(t, idx.Conflicts())
}
