package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

// Static fetches pages over plain HTTP with colly. Scripts are not run, so
// waiting for a selector means checking that the delivered document already
// contains it.
type Static struct {
	collector *colly.Collector
	log       *log.Logger
}

// NewStatic creates a sequential collector that may revisit URLs.
func NewStatic(opts Options) *Static {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	c.SetRequestTimeout(opts.timeout())
	return &Static{collector: c, log: opts.logger()}
}

// Fetch downloads url and returns it if one of the selectors matches.
func (s *Static) Fetch(ctx context.Context, url string, selectors ...string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	var fetched *Page
	c.OnResponse(func(r *colly.Response) {
		fetched = &Page{URL: r.Request.URL.String(), HTML: string(r.Body)}
	})
	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, fmt.Errorf("fetch %s: empty response", url)
	}
	if len(selectors) == 0 {
		return fetched, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetched.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			fetched.Matched = sel
			return fetched, nil
		}
		s.log.Debug("Selector not present", "selector", sel, "url", url)
	}
	return nil, fmt.Errorf("%s: %w", url, ErrWaitTimeout)
}

// Close is a no-op; colly keeps no session.
func (s *Static) Close() error {
	return nil
}
