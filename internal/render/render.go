// Package render prints a reconciliation report for a terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"go-reconcile-pipeline/internal/reconcile"
)

// MaxListed caps the conflict and fact-group listings.
const MaxListed = 10

// Report writes rep to w as aligned text tables.
func Report(w io.Writer, rep reconcile.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	p := &printer{w: tw}

	if rep.Partial {
		p.factOnly(rep.FactOnly)
	} else {
		p.table("Dashboard (one row per line-item x response)", rep.Dashboard)
		p.table("Corrected (one group per order)", rep.Corrected)
		p.gaps(rep)
		p.responses(rep.Responses)
	}
	p.conflicts(rep)
	p.coverage(rep.Coverage)
	p.regions(rep.Regions)
	p.line("")
	p.line("Verdict [%s]: %s", rep.Verdict.Kind, rep.Verdict.Text)

	if p.err != nil {
		return p.err
	}
	return tw.Flush()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) row(cells ...string) {
	p.line("%s\t", strings.Join(cells, "\t"))
}

func num(n int) string { return humanize.Comma(int64(n)) }

func optNum(c *reconcile.Counts, rows bool) string {
	if c == nil {
		return "-"
	}
	if rows {
		return num(c.Rows)
	}
	return num(c.Keys)
}

func (p *printer) table(title string, t *reconcile.GroupTable) {
	if t == nil {
		return
	}
	p.line("\n%s", title)
	p.row("group", "COUNT", "DISTINCT", "pred COUNT", "pred DISTINCT")
	for _, g := range t.Groups {
		p.row(g.Group, num(g.All.Rows), num(g.All.Keys), optNum(g.Predicate, true), optNum(g.Predicate, false))
	}
	for _, m := range []struct {
		label string
		m     reconcile.Measures
	}{{"SUM", t.Sum}, {"TOTAL", t.Global}, {"DIFF", t.Diff}} {
		p.row(m.label, num(m.m.All.Rows), num(m.m.All.Keys), optNum(m.m.Predicate, true), optNum(m.m.Predicate, false))
	}
}

func (p *printer) gaps(rep reconcile.Report) {
	p.line("\nGaps")
	p.row("row gap", fmt.Sprintf("%.2f%%", rep.Gaps.RowGap))
	p.row("key gap", fmt.Sprintf("%.2f%%", rep.Gaps.KeyGap))
	p.row("over-count", fmt.Sprintf("%.2f%%", rep.Gaps.OverCount))
}

func (p *printer) responses(r *reconcile.ResponseBreakdown) {
	if r == nil {
		return
	}
	p.line("\nResponses")
	for _, v := range r.Values {
		p.row(v.Value, num(v.Count))
	}
	p.row("predicate share", fmt.Sprintf("%s / %s (%.2f%%)", num(r.Predicate), num(r.Answered), r.PredicatePct))
}

func (p *printer) conflicts(rep reconcile.Report) {
	p.line("\nOrders under more than one group: %s (%s matched by the survey, %s extra memberships)",
		num(len(rep.Conflicts)), num(len(rep.MatchedConflicts)), num(rep.ExtraMemberships))
	list := rep.MatchedConflicts
	if rep.Partial {
		list = rep.Conflicts
	}
	for i, c := range list {
		if i == MaxListed {
			p.line("... and %s more", num(len(list)-MaxListed))
			break
		}
		p.row(c.OrderID, strings.Join(c.Groups, ", "), "-> "+c.Resolved)
	}
}

func (p *printer) coverage(c reconcile.Coverage) {
	p.line("\nCoverage")
	p.row("fact rows", num(c.FactRows), "excluded", num(c.FactExcluded))
	p.row("survey rows", num(c.SurveyRows), "excluded", num(c.SurveyExcluded))
	p.row("responses matched", num(c.MatchedResponses), "unmatched", num(c.UnmatchedResponses))
	p.row("orders in facts", num(c.FactKeys), "without response", num(c.FactKeysWithoutResponse))
	p.row("orders in survey", num(c.SurveyKeys), "common", num(c.CommonKeys))
}

func (p *printer) regions(regions []reconcile.RegionCount) {
	if len(regions) == 0 {
		return
	}
	p.line("\nOrders per region")
	for _, r := range regions {
		p.row(r.Region, num(r.Orders))
	}
}

// factOnly lists the groups with the highest line-item to order factor.
func (p *printer) factOnly(s *reconcile.FactOnlySummary) {
	if s == nil {
		return
	}
	p.line("\nFact-only analysis (no survey data)")
	p.row("line-items", num(s.LineItems))
	p.row("orders", num(s.Orders))
	p.row("factor", fmt.Sprintf("%.2fx", s.Factor))
	p.row("multi-item orders", fmt.Sprintf("%s (%.2f%%)", num(s.MultiItemOrders), s.MultiItemPct))

	groups := append([]reconcile.FactGroup(nil), s.Groups...)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Factor > groups[j].Factor })
	if len(groups) > MaxListed {
		groups = groups[:MaxListed]
	}
	p.line("\nTop groups by factor")
	p.row("group", "line-items", "orders", "factor")
	for _, g := range groups {
		p.row(g.Group, num(g.LineItems), num(g.Orders), fmt.Sprintf("%.2fx", g.Factor))
	}
}
