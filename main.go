package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/go-scripts/climate/internal/config"
	"github.com/go-scripts/climate/internal/crawler"
	"github.com/go-scripts/climate/internal/fetcher"
	"github.com/go-scripts/climate/internal/metrics"
	"github.com/go-scripts/climate/internal/pipeline"
	"github.com/go-scripts/climate/internal/progress"
	"github.com/go-scripts/climate/internal/storage"
	"github.com/go-scripts/climate/internal/types"
	"github.com/go-scripts/climate/internal/writer"
	"github.com/go-scripts/climate/ui"
)

const defaultConfigPath = "config.yaml"

// unset marks numeric flags that were not given on the command line.
const unset = -1

// Globals are the flags shared by every command.
type Globals struct {
	Config       string  `help:"Path to configuration file" default:"config.yaml"`
	LogLevel     string  `help:"Log level (debug, info, warn, error)" enum:",debug,info,warn,error" default:""`
	Fetcher      string  `help:"Page loader (browser or static)" enum:",browser,static" default:""`
	Headed       bool    `help:"Show the browser window"`
	MaxCountries int     `help:"Countries per continent, 0 for all" default:"-1" short:"n"`
	Timeout      float64 `help:"Selector wait timeout in seconds" default:"-1"`
	Delay        float64 `help:"Pause between page loads in seconds" default:"-1"`
	SQLite       string  `help:"Also store results in this SQLite database" name:"sqlite" type:"path"`
	MetricsFile  string  `help:"Write Prometheus metrics to this file" type:"path"`
	Preview      int     `help:"Rows of the tidy table to print" default:"-1"`
	NoProgress   bool    `help:"Disable the progress spinner"`
}

// Overrides converts the flags into config overrides. Numeric flags left
// at their sentinel keep the configured value.
func (g *Globals) Overrides() config.Overrides {
	o := config.Overrides{
		Fetcher:     g.Fetcher,
		Headed:      g.Headed,
		LogLevel:    g.LogLevel,
		SQLitePath:  g.SQLite,
		MetricsFile: g.MetricsFile,
	}
	if g.MaxCountries != unset {
		o.MaxCountries = &g.MaxCountries
	}
	if g.Timeout != unset {
		o.WaitTimeout = &g.Timeout
	}
	if g.Delay != unset {
		o.Delay = &g.Delay
	}
	if g.Preview != unset {
		o.Preview = &g.Preview
	}
	return o
}

// URLsCmd walks the site hierarchy and writes the URL tree.
type URLsCmd struct {
	JSON string `help:"URL tree output (JSON)" type:"path"`
	CSV  string `help:"Flattened URL tree output (CSV)" type:"path"`
}

func (c *URLsCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	a.setPaths(c.JSON, c.CSV, "", "")
	if err := a.start(); err != nil {
		return a.finish(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.collectURLs(ctx)
	return a.finish(err)
}

// DataCmd scrapes the climate table of every city in a URL tree.
type DataCmd struct {
	URLs   string `help:"URL tree to read (JSON)" name:"urls" type:"path"`
	Output string `help:"Tidy dataset output (CSV)" short:"o" type:"path"`
}

func (c *DataCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	a.setPaths("", "", c.URLs, c.Output)
	tree, err := writer.ReadTree(a.cfg.URLsJSON)
	if err != nil {
		return a.finish(err)
	}
	if err := a.start(); err != nil {
		return a.finish(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.finish(a.collectData(ctx, tree))
}

// RunCmd runs both stages back to back.
type RunCmd struct {
	Output string `help:"Tidy dataset output (CSV)" short:"o" type:"path"`
}

func (c *RunCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	a.setPaths("", "", "", c.Output)
	if err := a.start(); err != nil {
		return a.finish(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree, err := a.collectURLs(ctx)
	if err != nil {
		return a.finish(err)
	}
	return a.finish(a.collectData(ctx, tree))
}

// CLI is the command-line interface.
type CLI struct {
	Globals

	URLs URLsCmd `cmd:"" name:"urls" help:"Collect continent, country and city URLs."`
	Data DataCmd `cmd:"" help:"Scrape and normalize the climate table of every city."`
	Run  RunCmd  `cmd:"" help:"Collect URLs, then climate data."`
}

// app holds the collaborators of one command invocation.
type app struct {
	cfg      *config.Config
	log      *log.Logger
	out      io.Writer
	metrics  *metrics.Metrics
	progress *progress.Tracker
	fetcher  fetcher.Fetcher
	store    *storage.Storage
	writer   *writer.FileWriter
}

func newApp(g *Globals) (*app, error) {
	cfg, err := config.Load(g.Config, g.Config != defaultConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(g.Overrides()); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)
	animate := !g.NoProgress && isatty.IsTerminal(os.Stderr.Fd())

	return &app{
		cfg:      cfg,
		log:      logger,
		out:      os.Stdout,
		metrics:  metrics.New(),
		progress: progress.New(os.Stderr, animate),
		writer:   writer.New(cfg.NullMarker),
	}, nil
}

// start opens the optional database and the page fetcher. The browser is
// launched here, so commands call it once their inputs are known to be good.
func (a *app) start() error {
	if a.cfg.SQLitePath != "" {
		store, err := storage.NewStorage(a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.store = store
	}
	f, err := fetcher.New(a.cfg, a.log)
	if err != nil {
		return err
	}
	a.fetcher = f
	return nil
}

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "climate",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func (a *app) setPaths(urlsJSON, urlsCSV, input, dataCSV string) {
	if urlsJSON != "" {
		a.cfg.URLsJSON = urlsJSON
	}
	if urlsCSV != "" {
		a.cfg.URLsCSV = urlsCSV
	}
	if input != "" {
		a.cfg.URLsJSON = input
	}
	if dataCSV != "" {
		a.cfg.DataCSV = dataCSV
	}
}

func (a *app) close() {
	if a.fetcher != nil {
		if err := a.fetcher.Close(); err != nil {
			a.log.Warn("Failed to close fetcher", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

// collectURLs runs the hierarchy walk and persists the tree.
func (a *app) collectURLs(ctx context.Context) (*types.Tree, error) {
	start := time.Now()
	walker := crawler.New(a.fetcher, a.cfg, crawler.Deps{
		Logger:   a.log,
		Metrics:  a.metrics,
		Progress: a.progress,
	})

	res, err := walker.Walk(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.writer.WriteTree(a.cfg.URLsJSON, res.Tree); err != nil {
		return nil, err
	}
	if err := a.writer.WriteFlatCSV(a.cfg.URLsCSV, res.Tree.Flatten()); err != nil {
		return nil, err
	}
	if a.store != nil {
		if err := a.store.SaveTree(ctx, res.Tree); err != nil {
			return nil, err
		}
		n, err := a.store.CountURLs(ctx)
		if err != nil {
			return nil, err
		}
		a.log.Info("URL tree stored", "db", a.cfg.SQLitePath, "rows", n)
	}

	elapsed := time.Since(start)
	a.metrics.StageDuration.WithLabelValues(metrics.StageURLs).Set(elapsed.Seconds())

	countries := res.Tree.CountryCount()
	fmt.Fprintln(a.out, ui.NewStatsPanel(ui.CrawlStats{
		Stage:     "URL collection",
		Total:     len(res.Tree.Continents) + countries,
		Succeeded: len(res.Tree.Continents) + countries - len(res.Skipped),
		Rows:      res.Tree.CityCount(),
		Dialogs:   res.Dialogs,
		Elapsed:   elapsed,
		Skipped:   res.Skipped,
		Outputs:   []string{a.cfg.URLsJSON, a.cfg.URLsCSV},
	}, 10).View())
	return res.Tree, nil
}

// collectData runs the table stage over tree and writes the tidy dataset.
func (a *app) collectData(ctx context.Context, tree *types.Tree) error {
	start := time.Now()
	deps := pipeline.Deps{
		Logger:   a.log,
		Metrics:  a.metrics,
		Progress: a.progress,
	}
	if a.store != nil {
		deps.Loader = a.store
	}

	res, err := pipeline.New(a.fetcher, a.cfg, deps).Run(ctx, tree)
	if err != nil {
		return err
	}

	stats := ui.CrawlStats{
		Stage:     "Climate data",
		Total:     res.Total,
		Succeeded: res.Scraped,
		Rows:      res.Dataset.Len(),
		Dialogs:   res.Dialogs,
		Pages:     res.Pages,
		Repeated:  res.Repeated,
		Skipped:   res.Skipped,
	}

	if res.Dataset.Empty() {
		a.log.Warn("No data was collected", "cities", res.Total)
	} else {
		if err := a.writer.WriteDataset(a.cfg.DataCSV, res.Dataset); err != nil {
			return err
		}
		stats.Outputs = []string{a.cfg.DataCSV}
		if a.cfg.SQLitePath != "" {
			stats.Outputs = append(stats.Outputs, a.cfg.SQLitePath)
		}
	}

	stats.Elapsed = time.Since(start)
	a.metrics.StageDuration.WithLabelValues(metrics.StageData).Set(stats.Elapsed.Seconds())

	if a.cfg.Preview > 0 || res.Dataset.Empty() {
		fmt.Fprintln(a.out, ui.NewResultsTable(res.Dataset, a.cfg.Preview, a.cfg.NullMarker).View())
	}
	fmt.Fprintln(a.out, ui.NewStatsPanel(stats, 10).View())
	return nil
}

// finish writes the metrics file, whatever the outcome of the run.
func (a *app) finish(err error) error {
	if errors.Is(err, context.Canceled) {
		a.log.Warn("Interrupted, nothing written")
	}
	if a.cfg.MetricsFile != "" {
		if mErr := a.metrics.WriteTextfile(a.cfg.MetricsFile); mErr != nil {
			a.log.Error("Failed to write metrics", "error", mErr)
		}
	}
	return err
}

// errorMessage tells a browser that never started apart from other failures.
func errorMessage(err error) string {
	var sessionErr *fetcher.SessionError
	if errors.As(err, &sessionErr) {
		return "Failed to start: " + sessionErr.Err.Error()
	}
	return "Error: " + err.Error()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("climate"),
		kong.Description("Crawl climate-data.org into a tidy monthly climate table."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error(errorMessage(err)))
		os.Exit(1)
	}
}
