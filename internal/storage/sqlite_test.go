package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/climate/internal/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "climate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords(city, humidity string) []types.Record {
	records := make([]types.Record, len(types.Months))
	for i, m := range types.Months {
		rec := make(types.Record, len(types.Schema))
		rec[0] = types.Cell{String: "Europe", Valid: true}
		rec[1] = types.Cell{String: "France", Valid: true}
		rec[2] = types.Cell{String: city, Valid: true}
		rec[3] = types.Cell{String: m, Valid: true}
		rec[12] = types.Cell{String: humidity, Valid: true}
		rec[14] = types.Cell{String: "0", Valid: true}
		records[i] = rec
	}
	return records
}

func TestSaveTree_Upserts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	var tree types.Tree
	fr := tree.AddContinent("Europe", "e").SetCountry("France", "f")
	fr.SetCity("Paris", "p1")
	fr.SetCity("Lyon", "l")
	tree.Continent("Europe").SetCountry("Andorra", "a")

	require.NoError(t, s.SaveTree(ctx, &tree))
	n, err := s.CountURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fr.SetCity("Paris", "p2")
	require.NoError(t, s.SaveTree(ctx, &tree))
	n, err = s.CountURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var url string
	require.NoError(t, s.db.QueryRow("SELECT city_url FROM urls WHERE city = 'Paris'").Scan(&url))
	assert.Equal(t, "p2", url)
}

func TestLoad_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	target := types.Target{Continent: "Europe", Country: "France", City: "Paris", URL: "p"}

	require.NoError(t, s.Load(ctx, target, sampleRecords("Paris", "82")))

	got, err := s.cityRecords(ctx, "Europe", "France", "Paris")
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, sampleRecords("Paris", "82"), got)
	assert.Equal(t, "December", got[11].Get("Month").String)
	assert.False(t, got[0].Get("Avg. Temperature (°C)").Valid)
}

func TestLoad_ReplacesOnRerun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	target := types.Target{Continent: "Europe", Country: "France", City: "Lyon"}

	require.NoError(t, s.Load(ctx, target, sampleRecords("Lyon", "70")))
	require.NoError(t, s.Load(ctx, target, sampleRecords("Lyon", "71")))

	got, err := s.cityRecords(ctx, "Europe", "France", "Lyon")
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, "71", got[0].Get("Humidity(%)").String)
}

func TestNewStorage_BadPath(t *testing.T) {
	_, err := NewStorage(filepath.Join(t.TempDir(), "missing", "dir", "climate.db"))
	require.Error(t, err)
}

func TestClimateColumnsMatchSchema(t *testing.T) {
	assert.Len(t, climateColumns, len(types.Schema))
}
