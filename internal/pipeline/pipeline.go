// Package pipeline runs the table stage: every city page of a URL tree is
// fetched, its climate table extracted and normalized into the tidy dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/go-scripts/climate/internal/config"
	"github.com/go-scripts/climate/internal/extract"
	"github.com/go-scripts/climate/internal/fetcher"
	"github.com/go-scripts/climate/internal/metrics"
	"github.com/go-scripts/climate/internal/normalize"
	"github.com/go-scripts/climate/internal/pace"
	"github.com/go-scripts/climate/internal/progress"
	"github.com/go-scripts/climate/internal/queue"
	"github.com/go-scripts/climate/internal/types"
)

// ErrInvalidURL marks a tree entry whose URL cannot be fetched.
var ErrInvalidURL = errors.New("invalid url")

// Loader receives the normalized rows of each city as soon as they exist.
type Loader interface {
	Load(ctx context.Context, target types.Target, records []types.Record) error
}

// Deps are the collaborators of a Pipeline. Nil fields get quiet defaults.
type Deps struct {
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Progress *progress.Tracker
	Clock    clockwork.Clock
	Loader   Loader
}

// Result summarizes a table stage run.
type Result struct {
	Dataset *types.Dataset
	Total   int
	Scraped int
	Skipped []types.Skip
	Dialogs int

	// Pages is the number of distinct city URLs fetched. Repeated counts
	// cities whose URL was already fetched under another label.
	Pages    int
	Repeated int
}

// Pipeline extracts, transforms and accumulates city tables sequentially.
type Pipeline struct {
	fetcher fetcher.Fetcher
	tableID string
	pacer   *pace.Pacer
	loader  Loader

	log      *log.Logger
	metrics  *metrics.Metrics
	progress *progress.Tracker
}

// New creates a Pipeline reading pages through f.
func New(f fetcher.Fetcher, cfg *config.Config, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Progress == nil {
		deps.Progress = progress.New(io.Discard, false)
	}
	return &Pipeline{
		fetcher:  f,
		tableID:  cfg.TableID,
		pacer:    pace.New(deps.Clock, cfg.Delay()),
		loader:   deps.Loader,
		log:      deps.Logger,
		metrics:  deps.Metrics,
		progress: deps.Progress,
	}
}

// Run processes every city of tree in order. Failing cities are skipped;
// cancellation and loader failures stop the run.
func (p *Pipeline) Run(ctx context.Context, tree *types.Tree) (*Result, error) {
	q := queue.FromTree(tree)
	res := &Result{Dataset: &types.Dataset{}, Total: q.Len()}

	p.progress.Begin("Cities", res.Total)
	defer p.progress.Finish()

	for {
		target, ok := q.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.progress.Working(fmt.Sprintf("%s - %s, %s", target.City, target.Country, target.Continent))

		if !validURL(target.URL) {
			p.skip(res, target, fmt.Errorf("%w %q", ErrInvalidURL, target.URL))
			p.progress.Advance()
			continue
		}
		if q.Visit(target.URL) {
			res.Repeated++
			p.log.Warn("City URL already fetched under another label",
				"city", target.City, "country", target.Country, "url", target.URL)
		}

		records, err := p.scrape(ctx, target, res)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			p.skip(res, target, err)
		default:
			if p.loader != nil {
				if err := p.loader.Load(ctx, target, records); err != nil {
					return nil, fmt.Errorf("failed to store %s: %w", target.City, err)
				}
			}
			res.Dataset.Append(records...)
			res.Scraped++
			p.metrics.Rows.Add(float64(len(records)))
		}

		p.progress.Advance()
		if err := p.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	res.Pages = q.VisitedCount()
	p.log.Info("Table stage finished",
		"cities", res.Total,
		"pages", res.Pages,
		"scraped", res.Scraped,
		"skipped", len(res.Skipped),
		"rows", res.Dataset.Len())
	return res, nil
}

func (p *Pipeline) scrape(ctx context.Context, target types.Target, res *Result) ([]types.Record, error) {
	start := time.Now()
	page, err := p.fetcher.Fetch(ctx, target.URL, "#"+p.tableID, "table")
	p.metrics.FetchDuration.WithLabelValues(metrics.StageData).Observe(time.Since(start).Seconds())
	p.metrics.PageFetches.WithLabelValues(metrics.StageData, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if page.Dialogs > 0 {
		res.Dialogs += page.Dialogs
		p.metrics.DialogsAccepted.Add(float64(page.Dialogs))
		p.log.Warn("Dialog accepted while loading page", "city", target.City, "dialogs", page.Dialogs)
	}

	grid, err := extract.ExtractTable(page.HTML, p.tableID)
	if err != nil {
		return nil, err
	}

	out := normalize.Normalize(grid, normalize.Location{
		Continent: target.Continent,
		Country:   target.Country,
		City:      target.City,
	})
	if out.Truncated > 0 {
		p.log.Warn("Table has more than twelve data columns, extra ones dropped",
			"city", target.City, "dropped", out.Truncated)
	}
	return out.Records, nil
}

func (p *Pipeline) skip(res *Result, target types.Target, err error) {
	res.Skipped = append(res.Skipped, types.Skip{
		Level: types.LevelCity,
		Name:  target.City,
		URL:   target.URL,
		Err:   err,
	})
	p.metrics.ItemsSkipped.WithLabelValues(metrics.StageData).Inc()

	switch {
	case errors.Is(err, fetcher.ErrWaitTimeout):
		p.log.Warn("No weather table found", "city", target.City, "country", target.Country)
	case errors.Is(err, extract.ErrNoTable), errors.Is(err, extract.ErrEmptyTable):
		p.log.Warn("No usable data in table", "city", target.City, "country", target.Country)
	case errors.Is(err, ErrInvalidURL):
		p.log.Warn("Invalid URL, skipping", "city", target.City, "url", target.URL)
	default:
		p.log.Warn("Error scraping city", "city", target.City, "err", err)
	}
}

func validURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
