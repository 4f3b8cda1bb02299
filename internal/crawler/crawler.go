// Package crawler walks the continent -> country -> city link hierarchy.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/go-scripts/climate/internal/config"
	"github.com/go-scripts/climate/internal/extract"
	"github.com/go-scripts/climate/internal/fetcher"
	"github.com/go-scripts/climate/internal/metrics"
	"github.com/go-scripts/climate/internal/pace"
	"github.com/go-scripts/climate/internal/progress"
	"github.com/go-scripts/climate/internal/types"
)

// Selectors of the climate-data.org listing pages.
const (
	CountryPrimary  = "ul.f16 li a[data-modified-href]"
	CountryFallback = "ul.f16 li a"
	CountryLinks    = CountryPrimary + ", " + CountryFallback
	CityTable       = "table"
	CityLinks       = "table tr td:nth-child(4) a"
)

// Deps are the collaborators of a Walker. Nil fields get quiet defaults.
type Deps struct {
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Progress *progress.Tracker
	Clock    clockwork.Clock
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Progress == nil {
		d.Progress = progress.New(io.Discard, false)
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}

// Result is the outcome of a walk.
type Result struct {
	Tree    *types.Tree
	Skipped []types.Skip
	Dialogs int
}

// Walker builds the URL tree with a single fetcher, one page at a time.
type Walker struct {
	fetcher      fetcher.Fetcher
	seeds        []config.Seed
	maxCountries int
	pacer        *pace.Pacer

	log      *log.Logger
	metrics  *metrics.Metrics
	progress *progress.Tracker
}

// New creates a Walker for the seeds and limits in cfg.
func New(f fetcher.Fetcher, cfg *config.Config, deps Deps) *Walker {
	deps = deps.withDefaults()
	return &Walker{
		fetcher:      f,
		seeds:        cfg.Continents,
		maxCountries: cfg.MaxCountries,
		pacer:        pace.New(deps.Clock, cfg.Delay()),
		log:          deps.Logger,
		metrics:      deps.Metrics,
		progress:     deps.Progress,
	}
}

// Walk discovers the countries of every continent, then the cities of
// every country. A page that fails leaves its branch empty and the walk
// goes on; only cancellation of ctx aborts it.
func (w *Walker) Walk(ctx context.Context) (*Result, error) {
	res := &Result{Tree: &types.Tree{}}
	for _, seed := range w.seeds {
		res.Tree.AddContinent(seed.Name, seed.URL)
	}

	for _, continent := range res.Tree.Continents {
		if err := w.discoverCountries(ctx, continent, res); err != nil {
			return nil, err
		}
	}

	w.progress.Begin("Countries", res.Tree.CountryCount())
	defer w.progress.Finish()

	for _, continent := range res.Tree.Continents {
		for _, country := range continent.Countries {
			w.progress.Working(fmt.Sprintf("%s (%s)", country.Name, continent.Name))
			if err := w.discoverCities(ctx, continent, country, res); err != nil {
				return nil, err
			}
			w.progress.Advance()
			if err := w.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	w.log.Info("Walk finished",
		"continents", len(res.Tree.Continents),
		"countries", res.Tree.CountryCount(),
		"cities", res.Tree.CityCount(),
		"skipped", len(res.Skipped))
	return res, nil
}

func (w *Walker) discoverCountries(ctx context.Context, continent *types.Continent, res *Result) error {
	page, err := w.fetch(ctx, continent.URL, res, CountryPrimary, CountryFallback)
	if err != nil {
		return w.skip(ctx, res, types.Skip{Level: types.LevelContinent, Name: continent.Name, URL: continent.URL, Err: err})
	}

	links, err := extract.ExtractLinks(page.HTML, page.URL, CountryLinks, w.maxCountries)
	if err != nil {
		return w.skip(ctx, res, types.Skip{Level: types.LevelContinent, Name: continent.Name, URL: continent.URL, Err: err})
	}
	for _, link := range links {
		continent.SetCountry(link.Label, link.URL)
	}
	w.metrics.Countries.Add(float64(len(links)))
	w.log.Info("Countries found", "continent", continent.Name, "count", len(links))
	return nil
}

func (w *Walker) discoverCities(ctx context.Context, continent *types.Continent, country *types.Country, res *Result) error {
	page, err := w.fetch(ctx, country.URL, res, CityTable)
	if err != nil {
		return w.skip(ctx, res, types.Skip{Level: types.LevelCountry, Name: country.Name, URL: country.URL, Err: err})
	}

	links, err := extract.ExtractLinks(page.HTML, page.URL, CityLinks, 0)
	if err != nil {
		return w.skip(ctx, res, types.Skip{Level: types.LevelCountry, Name: country.Name, URL: country.URL, Err: err})
	}
	for _, link := range links {
		country.SetCity(link.Label, link.URL)
	}
	w.metrics.Cities.Add(float64(len(links)))
	w.log.Debug("Cities found", "continent", continent.Name, "country", country.Name, "count", len(links))
	return nil
}

func (w *Walker) fetch(ctx context.Context, url string, res *Result, selectors ...string) (*fetcher.Page, error) {
	start := time.Now()
	page, err := w.fetcher.Fetch(ctx, url, selectors...)
	w.metrics.FetchDuration.WithLabelValues(metrics.StageURLs).Observe(time.Since(start).Seconds())
	w.metrics.PageFetches.WithLabelValues(metrics.StageURLs, metrics.Outcome(err)).Inc()
	if page != nil && page.Dialogs > 0 {
		res.Dialogs += page.Dialogs
		w.metrics.DialogsAccepted.Add(float64(page.Dialogs))
		w.log.Warn("Dialog accepted while loading page", "url", url, "dialogs", page.Dialogs)
	}
	return page, err
}

// skip records a failed item. Cancellation is not an item failure and is
// returned instead.
func (w *Walker) skip(ctx context.Context, res *Result, s types.Skip) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	res.Skipped = append(res.Skipped, s)
	w.metrics.ItemsSkipped.WithLabelValues(metrics.StageURLs).Inc()
	if errors.Is(s.Err, fetcher.ErrWaitTimeout) {
		w.log.Warn("Timeout while loading page", s.Level, s.Name)
	} else {
		w.log.Warn("Error loading page", s.Level, s.Name, "err", s.Err)
	}
	return nil
}
