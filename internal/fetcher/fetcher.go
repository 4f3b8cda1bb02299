// Package fetcher loads pages and waits for content selectors to appear.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-scripts/climate/internal/config"
)

// ErrWaitTimeout is returned when none of the requested selectors appeared
// within the wait budget.
var ErrWaitTimeout = errors.New("timed out waiting for selector")

// SessionError reports that the browsing session could not be created.
// It is fatal for the whole run.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("failed to start browser session: %v", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Page is a loaded document.
type Page struct {
	URL     string
	HTML    string
	Matched string // selector that satisfied the wait, empty when none was requested
	Dialogs int    // JavaScript dialogs accepted while loading
}

// Fetcher loads a URL and waits for the first selector of the chain that
// shows up. Each selector gets the full wait budget.
type Fetcher interface {
	Fetch(ctx context.Context, url string, selectors ...string) (*Page, error)
	Close() error
}

// Options configures a fetcher.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	Headless   bool
	ChromePath string
	Logger     *log.Logger
}

// OptionsFromConfig maps run configuration onto fetcher options.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger) Options {
	return Options{
		Timeout:    cfg.WaitTimeout(),
		UserAgent:  cfg.UserAgent,
		Headless:   cfg.Headless,
		ChromePath: cfg.ChromePath,
		Logger:     logger,
	}
}

// New creates the fetcher selected by cfg.Fetcher.
func New(cfg *config.Config, logger *log.Logger) (Fetcher, error) {
	opts := OptionsFromConfig(cfg, logger)
	switch cfg.Fetcher {
	case config.FetcherStatic:
		return NewStatic(opts), nil
	case config.FetcherBrowser:
		return NewBrowser(opts)
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 10 * time.Second
	}
	return o.Timeout
}
