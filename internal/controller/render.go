package controller

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

var (
	worse  = color.New(color.FgRed).SprintFunc()
	better = color.New(color.FgGreen).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// formatDelta signs a delta and colors growth red and shrinkage green.
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return worse("+" + strconv.Itoa(delta))
	case delta < 0:
		return better(strconv.Itoa(delta))
	default:
		return faint("+0")
	}
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	return table
}

func renderCategories(counts, policy m.CategoryCounts, trend *m.TrendReport) string {
	var buf bytes.Buffer

	header := []string{"Category", "All", "Policy"}
	if trend != nil {
		header = append(header, "Δ All", "Δ Policy")
	}

	table := newTable(&buf, header)

	deltas := map[m.MutationCategory]m.CategoryDelta{}
	if trend != nil {
		for _, d := range trend.Categories {
			deltas[d.Category] = d
		}
	}

	for _, c := range m.AllCategories() {
		row := []string{string(c), strconv.Itoa(counts[c]), strconv.Itoa(policy[c])}
		if trend != nil {
			row = append(row, formatDelta(deltas[c].Delta), formatDelta(deltas[c].PolicyDelta))
		}

		table.Append(row)
	}

	footer := []string{"Total", strconv.Itoa(counts.Total()), strconv.Itoa(policy.Total())}
	if trend != nil {
		footer = append(footer, formatDelta(trend.TotalDelta), formatDelta(trend.PolicyTotalDelta))
	}

	table.SetFooter(footer)
	table.Render()

	return buf.String()
}

func renderFindings(findings []m.Finding) string {
	if len(findings) == 0 {
		return ""
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Location", "Category", "Symbol", "Policy"})

	for _, f := range findings {
		policy := "no"
		if f.PolicyRelevant {
			policy = "yes"
		}

		table.Append([]string{
			fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column),
			string(f.Category),
			f.Symbol,
			policy,
		})
	}

	table.Render()

	return buf.String()
}

func renderHotspots(fanIn, fanOut []m.Hotspot) string {
	var buf bytes.Buffer

	table := newTable(&buf, []string{"Fan-in", "Modules", "Fan-out", "Modules"})

	rows := max(len(fanIn), len(fanOut))
	for i := range rows {
		row := make([]string, 4)

		if i < len(fanIn) {
			row[0], row[1] = fanIn[i].Module, strconv.Itoa(fanIn[i].Degree)
		}

		if i < len(fanOut) {
			row[2], row[3] = fanOut[i].Module, strconv.Itoa(fanOut[i].Degree)
		}

		table.Append(row)
	}

	table.Render()

	return buf.String()
}

func renderEdges(edges []m.ImportEdge) string {
	if len(edges) == 0 {
		return ""
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"From", "To", "Imports"})

	for _, e := range edges {
		table.Append([]string{e.From, e.To, strconv.Itoa(e.Count)})
	}

	table.Render()

	return buf.String()
}

func renderCycles(cycles []m.Cycle) string {
	if len(cycles) == 0 {
		return "No import cycles.\n"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Import cycles (%d):\n", len(cycles))

	for _, c := range cycles {
		fmt.Fprintf(&b, "  %s\n", c)
	}

	return b.String()
}

// renderCycleDiff shows how the cycle set changed as a unified diff.
func renderCycleDiff(current []m.Cycle, trend *m.TrendReport) string {
	if trend == nil || (len(trend.CyclesAdded) == 0 && len(trend.CyclesResolved) == 0) {
		return ""
	}

	added := map[string]bool{}
	for _, c := range trend.CyclesAdded {
		added[c.Key()] = true
	}

	var now, before []string

	for _, c := range current {
		now = append(now, c.String())

		if !added[c.Key()] {
			before = append(before, c.String())
		}
	}

	for _, c := range trend.CyclesResolved {
		before = append(before, c.String())
	}

	sort.Strings(now)
	sort.Strings(before)

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(joinLines(before)),
		B:        difflib.SplitLines(joinLines(now)),
		FromFile: "previous",
		ToFile:   "current",
		Context:  1,
	})
	if err != nil {
		return ""
	}

	return diff
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

func renderSeries(series []m.SnapshotSummary) string {
	var buf bytes.Buffer

	table := newTable(&buf, []string{"Snapshot", "Total", "Δ"})

	for _, s := range series {
		table.Append([]string{s.Timestamp.Local().Format(time.DateTime), strconv.Itoa(s.Total), formatDelta(s.Delta)})
	}

	table.Render()

	return buf.String()
}

func renderWindow(trend *m.TrendReport) string {
	if trend.WindowSize == 0 {
		return ""
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Change over the last %d snapshot(s): %s\n", trend.WindowSize, formatDelta(trend.WindowTotalDelta))

	table := newTable(&buf, []string{"Category", "Then", "Now", "Δ"})

	for _, d := range trend.WindowCategories {
		table.Append([]string{string(d.Category), strconv.Itoa(d.Previous), strconv.Itoa(d.Current), formatDelta(d.Delta)})
	}

	table.Render()

	return buf.String()
}

func renderMovers(movers []m.Mover) string {
	if len(movers) == 0 {
		return ""
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Top movers", "Kind", "Previous", "Current", "Δ"})

	for _, mv := range movers {
		table.Append([]string{mv.Key, string(mv.Dimension), strconv.Itoa(mv.Previous), strconv.Itoa(mv.Current), formatDelta(mv.Delta)})
	}

	table.Render()

	return buf.String()
}

func renderWarnings(warnings []m.Warning) string {
	if len(warnings) == 0 {
		return ""
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Warning", "Path", "Message"})

	for _, w := range warnings {
		table.Append([]string{string(w.Kind), string(w.Path), w.Message})
	}

	table.Render()

	return buf.String()
}

// resultSections renders a full scan result as ordered text sections.
func resultSections(result m.Result, withFindings bool) []string {
	s := result.Snapshot

	sections := []string{
		fmt.Sprintf("Scanned %d file(s) under %s\n", s.FilesScanned, s.Root),
	}

	if withFindings {
		sections = append(sections, renderFindings(result.Findings))
	}

	sections = append(sections,
		renderCategories(s.AllCounts, s.PolicyCounts, result.Trend),
		renderHotspots(s.FanIn, s.FanOut),
		renderCycles(s.Cycles),
		renderCycleDiff(s.Cycles, result.Trend),
	)

	if result.Trend != nil {
		sections = append(sections, trendSections(*result.Trend)...)
	}

	return append(sections, renderWarnings(result.Warnings))
}

func graphSections(result m.Result) []string {
	s := result.Snapshot

	return []string{
		renderEdges(result.Edges),
		renderHotspots(s.FanIn, s.FanOut),
		renderCycles(s.Cycles),
		renderWarnings(result.Warnings),
	}
}

func trendSections(report m.TrendReport) []string {
	if len(report.Series) == 0 {
		return []string{"No snapshots recorded yet.\n"}
	}

	return []string{
		renderSeries(report.Series),
		renderWindow(&report),
		renderMovers(report.TopMovers),
	}
}

func joinSections(sections []string) string {
	var b strings.Builder

	for _, s := range sections {
		if s == "" {
			continue
		}

		b.WriteString(s)
		b.WriteString("\n")
	}

	return b.String()
}
