package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-scripts/climate/internal/types"
)

func dataset(n int) *types.Dataset {
	var ds types.Dataset
	for i := 0; i < n; i++ {
		rec := make(types.Record, len(types.Schema))
		rec[0] = types.Cell{String: "Europe", Valid: true}
		rec[1] = types.Cell{String: "France", Valid: true}
		rec[2] = types.Cell{String: "Saint-Rémy-de-Provence-sur-Mer", Valid: true}
		rec[3] = types.Cell{String: types.Months[i%12], Valid: true}
		rec[14] = types.Cell{String: "0", Valid: true}
		ds.Append(rec)
	}
	return &ds
}

func TestResultsTable_Preview(t *testing.T) {
	view := NewResultsTable(dataset(3), 2, "NA").View()

	assert.Contains(t, view, "Continent")
	assert.Contains(t, view, "January")
	assert.Contains(t, view, "February")
	assert.NotContains(t, view, "March")
	assert.Contains(t, view, "NA")
	assert.Contains(t, view, "… 1 more row")
	assert.Contains(t, view, "Saint-Rémy-de-P…")
}

func TestResultsTable_Empty(t *testing.T) {
	view := NewResultsTable(&types.Dataset{}, 5, "").View()
	assert.Contains(t, view, "No data was collected")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Paris", truncate("Paris", 10))
	assert.Equal(t, "Pari…", truncate("Parisian", 5))
}

func TestStatsPanel_View(t *testing.T) {
	panel := NewStatsPanel(CrawlStats{
		Stage:     "Climate data",
		Total:     4,
		Succeeded: 3,
		Rows:      36,
		Dialogs:   1,
		Pages:     3,
		Repeated:  1,
		Elapsed:   90 * time.Second,
		Outputs:   []string{"cleaned_data.csv"},
		Skipped: []types.Skip{
			{Level: types.LevelCity, Name: "Lyon", Err: errors.New("wait timed out")},
			{Level: types.LevelCity, Name: "Nice", Err: errors.New("no table")},
		},
	}, 1)

	view := panel.View()
	assert.Contains(t, view, "Climate data")
	assert.Contains(t, view, "75.0% (3/4)")
	assert.Contains(t, view, "00:01:30")
	assert.Contains(t, view, "3 distinct, 1 repeated")
	assert.Contains(t, view, "cleaned_data.csv")
	assert.Contains(t, view, "Lyon: wait timed out")
	assert.NotContains(t, view, "Nice")
	assert.Contains(t, view, "… 1 more skipped item")
}

func TestStatsPanel_NoWork(t *testing.T) {
	view := NewStatsPanel(CrawlStats{Stage: "URLs"}, 0).View()
	assert.Contains(t, view, "0.0% (0/0)")
	assert.NotContains(t, view, "distinct")
	assert.NotContains(t, view, "•")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "01:02:03", formatElapsed(time.Hour+2*time.Minute+3*time.Second))
}
