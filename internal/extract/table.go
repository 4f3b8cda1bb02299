package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// ErrNoTable means the document has no table element.
	ErrNoTable = errors.New("no table found")
	// ErrEmptyTable means a table was found but none of its rows had a
	// non-empty data cell.
	ErrEmptyTable = errors.New("table has no usable cells")
)

// Grid is a parsed table: rows of non-empty cell texts. Rows may differ in
// width.
type Grid [][]string

// Width returns the length of the widest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// ExtractTable parses the table with id preferredID, or the first table of
// the document when there is none. An element with that id that is not a
// table itself is searched for a nested table.
func ExtractTable(markup, preferredID string) (Grid, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	table := findTable(doc, preferredID)
	if table == nil {
		return nil, ErrNoTable
	}

	rows := table.Find("thead").First().Find("tr")
	rows = rows.AddSelection(table.Find("tbody").First().Find("tr"))
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}

	var grid Grid
	rows.Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			if text := cellText(td.Nodes[0]); text != "" {
				cells = append(cells, text)
			}
		})
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	})
	if len(grid) == 0 {
		return nil, ErrEmptyTable
	}
	return grid, nil
}

func findTable(doc *goquery.Document, id string) *goquery.Selection {
	if id != "" {
		if el := doc.Find("#" + id).First(); el.Length() > 0 {
			if goquery.NodeName(el) == "table" {
				return el
			}
			if nested := el.Find("table").First(); nested.Length() > 0 {
				return nested
			}
		}
	}
	if first := doc.Find("table").First(); first.Length() > 0 {
		return first
	}
	return nil
}

// cellText joins the trimmed text fragments below n, skipping blank ones.
// "21.9°C <br> (71.4) °F" becomes "21.9°C(71.4) °F".
func cellText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
