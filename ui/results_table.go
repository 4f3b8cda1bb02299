package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/go-scripts/climate/internal/types"
)

// ResultsTable renders the leading rows of the tidy dataset as an aligned
// text table.
type ResultsTable struct {
	columns     []string
	rows        [][]string
	total       int
	maxCell     int
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	style       lipgloss.Style
}

// NewResultsTable previews at most limit rows of ds. Null cells show as
// nullMarker.
func NewResultsTable(ds *types.Dataset, limit int, nullMarker string) *ResultsTable {
	t := &ResultsTable{
		columns: types.Schema,
		total:   ds.Len(),
		maxCell: 16,
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		cellStyle: lipgloss.NewStyle(),
		style: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")).
			PaddingLeft(1).
			PaddingRight(1),
	}
	for _, rec := range ds.Head(limit) {
		row := make([]string, len(t.columns))
		for i := range row {
			row[i] = nullMarker
			if i < len(rec) && rec[i].Valid {
				row[i] = rec[i].String
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// View renders the table.
func (t *ResultsTable) View() string {
	if len(t.rows) == 0 {
		return t.style.Render(infoStyle.Render("No data was collected"))
	}

	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		widths[i] = min(runewidth.StringWidth(col), t.maxCell)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], min(runewidth.StringWidth(cell), t.maxCell))
		}
	}

	var b strings.Builder
	b.WriteString(t.headerStyle.Render(t.line(t.columns, widths)))
	for _, row := range t.rows {
		b.WriteString("\n")
		b.WriteString(t.cellStyle.Render(t.line(row, widths)))
	}
	if t.total > len(t.rows) {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(plural(t.total-len(t.rows), "more row")))
	}
	return t.style.Render(b.String())
}

func (t *ResultsTable) line(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = runewidth.FillRight(truncate(cell, widths[i]), widths[i])
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func truncate(s string, w int) string {
	if runewidth.StringWidth(s) <= w {
		return s
	}
	return runewidth.Truncate(s, w, "…")
}
