package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/climate/internal/config"
	"github.com/go-scripts/climate/internal/fetcher"
	"github.com/go-scripts/climate/internal/metrics"
	"github.com/go-scripts/climate/internal/types"
)

type fakeFetcher struct {
	pages   map[string]string
	errs    map[string]error
	dialogs map[string]int
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, selectors ...string) (*fetcher.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, fetcher.ErrWaitTimeout)
	}
	return &fetcher.Page{URL: url, HTML: html, Matched: selectors[0], Dialogs: f.dialogs[url]}, nil
}

func (f *fakeFetcher) Close() error { return nil }

func countryList(names ...string) string {
	var sb strings.Builder
	sb.WriteString(`<ul class="f16">`)
	for _, n := range names {
		fmt.Fprintf(&sb, `<li><a href="/country/%s/">%s</a></li>`, strings.ToLower(n), n)
	}
	sb.WriteString(`</ul>`)
	return sb.String()
}

func cityTable(names ...string) string {
	var sb strings.Builder
	sb.WriteString(`<table>`)
	for i, n := range names {
		fmt.Fprintf(&sb, `<tr><td>%d</td><td></td><td></td><td><a href="/city/%s/">%s</a></td></tr>`, i, strings.ToLower(n), n)
	}
	sb.WriteString(`</table>`)
	return sb.String()
}

func testConfig(seeds ...config.Seed) *config.Config {
	cfg := config.Default()
	cfg.Continents = seeds
	cfg.DelaySeconds = 0
	return cfg
}

func testDeps(m *metrics.Metrics) Deps {
	return Deps{Logger: log.New(io.Discard), Metrics: m}
}

func TestWalk_BuildsTree(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://x.test/europe":          countryList("France", "Spain"),
		"https://x.test/country/france/": cityTable("Paris", "Lyon"),
		"https://x.test/country/spain/":  cityTable("Madrid"),
	}}
	cfg := testConfig(config.Seed{Name: "Europe", URL: "https://x.test/europe"})
	m := metrics.New()

	res, err := New(f, cfg, testDeps(m)).Walk(context.Background())
	require.NoError(t, err)

	europe := res.Tree.Continent("Europe")
	require.NotNil(t, europe)
	require.Len(t, europe.Countries, 2)
	assert.Equal(t, "France", europe.Countries[0].Name)
	assert.Equal(t, "https://x.test/country/france/", europe.Countries[0].URL)
	require.Len(t, europe.Countries[0].Cities, 2)
	assert.Equal(t, "https://x.test/city/paris/", europe.Countries[0].Cities[0].URL)
	assert.Equal(t, 3, res.Tree.CityCount())
	assert.Empty(t, res.Skipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Countries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Cities))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PageFetches.WithLabelValues(metrics.StageURLs, metrics.OutcomeOK)))
}

func TestWalk_MaxCountries(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://x.test/africa": countryList("Kenya", "Chad", "Mali", "Niger", "Togo"),
	}}
	cfg := testConfig(config.Seed{Name: "Africa", URL: "https://x.test/africa"})
	cfg.MaxCountries = 2

	res, err := New(f, cfg, testDeps(nil)).Walk(context.Background())
	require.NoError(t, err)

	africa := res.Tree.Continent("Africa")
	require.Len(t, africa.Countries, 2)
	assert.Equal(t, "Kenya", africa.Countries[0].Name)
	assert.Equal(t, "Chad", africa.Countries[1].Name)
	assert.NotContains(t, f.calls, "https://x.test/country/mali/")
}

func TestWalk_FailuresLeaveEmptyBranches(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			"https://x.test/asia":           countryList("Japan", "Nepal", "Laos"),
			"https://x.test/country/japan/": cityTable("Tokyo"),
		},
		errs: map[string]error{
			"https://x.test/oceania":        errors.New("net::ERR_NAME_NOT_RESOLVED"),
			"https://x.test/country/nepal/": errors.New("connection reset"),
		},
	}
	cfg := testConfig(
		config.Seed{Name: "Oceania", URL: "https://x.test/oceania"},
		config.Seed{Name: "Asia", URL: "https://x.test/asia"},
	)
	m := metrics.New()

	res, err := New(f, cfg, testDeps(m)).Walk(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Tree.Continent("Oceania").Countries)
	asia := res.Tree.Continent("Asia")
	require.Len(t, asia.Countries, 3)
	assert.Len(t, asia.Country("Japan").Cities, 1)
	assert.Empty(t, asia.Country("Nepal").Cities)
	assert.Empty(t, asia.Country("Laos").Cities)

	require.Len(t, res.Skipped, 3)
	assert.Equal(t, types.Skip{Level: types.LevelContinent, Name: "Oceania", URL: "https://x.test/oceania", Err: f.errs["https://x.test/oceania"]}, res.Skipped[0])
	assert.Equal(t, "Nepal", res.Skipped[1].Name)
	assert.ErrorIs(t, res.Skipped[2].Err, fetcher.ErrWaitTimeout)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ItemsSkipped.WithLabelValues(metrics.StageURLs)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageFetches.WithLabelValues(metrics.StageURLs, metrics.OutcomeTimeout)))
}

func TestWalk_CountsDialogs(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			"https://x.test/europe":          countryList("France"),
			"https://x.test/country/france/": cityTable("Paris"),
		},
		dialogs: map[string]int{"https://x.test/country/france/": 1},
	}
	m := metrics.New()

	res, err := New(f, testConfig(config.Seed{Name: "Europe", URL: "https://x.test/europe"}), testDeps(m)).Walk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dialogs)
	assert.Len(t, res.Tree.Continent("Europe").Country("France").Cities, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DialogsAccepted))
}

func TestWalk_DelayAfterEveryCountry(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://x.test/europe":          countryList("France", "Spain", "Italy"),
		"https://x.test/country/france/": cityTable("Paris"),
	}}
	cfg := testConfig(config.Seed{Name: "Europe", URL: "https://x.test/europe"})
	cfg.DelaySeconds = 0.3
	clock := clockwork.NewFakeClock()

	deps := testDeps(nil)
	deps.Clock = clock
	w := New(f, cfg, deps)

	done := make(chan error, 1)
	go func() {
		_, err := w.Walk(context.Background())
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(300 * time.Millisecond)
	}
	assert.NoError(t, <-done)
}

func TestWalk_Cancelled(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"https://x.test/europe": countryList("France")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(f, testConfig(config.Seed{Name: "Europe", URL: "https://x.test/europe"}), testDeps(nil)).Walk(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestWalk_StaticFetcherAgainstSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/continent/europe/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<ul class="f16">
			<li><a data-modified-href="1" href="/europe/france-5/">France</a></li>
			<li><a href="/europe/andorra-3/">Andorra</a></li></ul>`)
	})
	mux.HandleFunc("/europe/france-5/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, cityTable("Paris"))
	})
	mux.HandleFunc("/europe/andorra-3/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<p>no table</p>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	static := fetcher.NewStatic(fetcher.Options{Timeout: 2 * time.Second, Logger: log.New(io.Discard)})
	cfg := testConfig(config.Seed{Name: "Europe", URL: srv.URL + "/continent/europe/"})

	res, err := New(static, cfg, testDeps(nil)).Walk(context.Background())
	require.NoError(t, err)

	rows := res.Tree.Flatten()
	require.Len(t, rows, 2)
	assert.Equal(t, "Paris", rows[0].City)
	assert.Equal(t, srv.URL+"/city/paris/", rows[0].CityURL)
	assert.Equal(t, "Andorra", rows[1].Country)
	assert.Empty(t, rows[1].City)
	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, res.Skipped[0].Err, fetcher.ErrWaitTimeout)
}
