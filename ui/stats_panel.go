package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/climate/internal/types"
)

// CrawlStats is the end-of-stage summary.
type CrawlStats struct {
	Stage     string
	Total     int
	Succeeded int
	Rows      int
	Dialogs   int
	Pages     int
	Repeated  int
	Elapsed   time.Duration
	Skipped   []types.Skip
	Outputs   []string
}

type stat struct {
	label string
	value string
}

// StatsPanel displays a stage summary and the skipped items.
type StatsPanel struct {
	stats      CrawlStats
	maxSkipped int
	style      lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
}

// NewStatsPanel creates a panel listing at most maxSkipped skipped items.
func NewStatsPanel(stats CrawlStats, maxSkipped int) *StatsPanel {
	return &StatsPanel{
		stats:      stats,
		maxSkipped: maxSkipped,
		style: borderStyle.
			BorderForeground(lipgloss.Color("99")).
			PaddingLeft(1).
			PaddingRight(1),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}

func (s *StatsPanel) View() string {
	rate := 0.0
	if s.stats.Total > 0 {
		rate = float64(s.stats.Succeeded) / float64(s.stats.Total) * 100
	}

	stats := []stat{
		{"Processed", fmt.Sprintf("%d", s.stats.Total)},
		{"Succeeded", fmt.Sprintf("%.1f%% (%d/%d)", rate, s.stats.Succeeded, s.stats.Total)},
		{"Skipped", fmt.Sprintf("%d", len(s.stats.Skipped))},
		{"Rows", fmt.Sprintf("%d", s.stats.Rows)},
		{"Dialogs", fmt.Sprintf("%d", s.stats.Dialogs)},
		{"Elapsed", formatElapsed(s.stats.Elapsed)},
	}
	if s.stats.Pages > 0 {
		stats = append(stats, stat{"Pages", fmt.Sprintf("%d distinct, %d repeated", s.stats.Pages, s.stats.Repeated)})
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(s.stats.Stage) + "\n\n")
	for _, st := range stats {
		content.WriteString(fmt.Sprintf("%-12s %s\n",
			s.labelStyle.Render(st.label+":"),
			s.valueStyle.Render(st.value)))
	}

	if len(s.stats.Outputs) > 0 {
		content.WriteString("\nWrote:\n")
		for _, path := range s.stats.Outputs {
			content.WriteString(infoStyle.Render("• "+path) + "\n")
		}
	}

	if len(s.stats.Skipped) > 0 {
		content.WriteString("\nSkipped:\n")
		shown := s.stats.Skipped
		if s.maxSkipped > 0 && len(shown) > s.maxSkipped {
			shown = shown[:s.maxSkipped]
		}
		for _, skip := range shown {
			content.WriteString(warningStyle.Render(fmt.Sprintf("• %s %s: %v", skip.Level, skip.Name, skip.Err)) + "\n")
		}
		if rest := len(s.stats.Skipped) - len(shown); rest > 0 {
			content.WriteString(infoStyle.Render(plural(rest, "more skipped item")) + "\n")
		}
	}

	return s.style.Render(strings.TrimRight(content.String(), "\n"))
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d",
		int(d.Hours()),
		int(d.Minutes())%60,
		int(d.Seconds())%60,
	)
}
