// Package extract pulls links and tables out of fetched markup.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor label and its absolute target.
type Link struct {
	Label string
	URL   string
}

// Links is an ordered label -> URL mapping. Setting an existing label
// replaces its URL in place.
type Links []Link

// Set stores url under label, last write wins.
func (l Links) Set(label, url string) Links {
	for i := range l {
		if l[i].Label == label {
			l[i].URL = url
			return l
		}
	}
	return append(l, Link{Label: label, URL: url})
}

// Get returns the URL stored for label.
func (l Links) Get(label string) (string, bool) {
	for _, link := range l {
		if link.Label == label {
			return link.URL, true
		}
	}
	return "", false
}

// ExtractLinks collects the anchors matching selector in document order.
// Anchors with empty text or empty href are ignored. Relative hrefs are
// resolved against baseURL. When limit is positive, extraction stops after
// limit anchors were accepted.
func ExtractLinks(markup, baseURL, selector string, limit int) (Links, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
		}
	}

	var links Links
	accepted := 0
	doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := collapseSpace(a.Text())
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if label == "" || href == "" {
			return true
		}
		target, ok := resolve(base, href)
		if !ok {
			return true
		}
		links = links.Set(label, target)
		accepted++
		return limit <= 0 || accepted < limit
	})
	return links, nil
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
