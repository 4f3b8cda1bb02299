// Package progress renders a spinner with a completion bar for the item
// currently being crawled.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"
)

// Tracker counts processed items of a stage. When animated, a spinner on
// the writer shows the bar and the current item.
type Tracker struct {
	mu      sync.Mutex
	bar     progress.Model
	spin    *spinner.Spinner
	title   string
	current string
	total   int
	done    int
}

// New creates a tracker. Without animate nothing is drawn and the tracker
// only counts.
func New(w io.Writer, animate bool) *Tracker {
	t := &Tracker{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
	if animate {
		t.spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	}
	return t
}

// Begin resets the counters for a new stage and starts the spinner.
func (t *Tracker) Begin(title string, total int) {
	t.mu.Lock()
	t.title = title
	t.total = total
	t.done = 0
	t.current = ""
	t.mu.Unlock()

	t.refresh()
	if t.spin != nil {
		t.spin.Start()
	}
}

// Working names the item being processed.
func (t *Tracker) Working(item string) {
	t.mu.Lock()
	t.current = item
	t.mu.Unlock()
	t.refresh()
}

// Advance marks one item as processed.
func (t *Tracker) Advance() {
	t.mu.Lock()
	t.done++
	t.mu.Unlock()
	t.refresh()
}

// Finish stops the spinner.
func (t *Tracker) Finish() {
	if t.spin != nil {
		t.spin.Stop()
	}
}

// fraction returns the completed share in [0, 1]. Callers hold mu.
func (t *Tracker) fraction() float64 {
	if t.total <= 0 {
		return 0
	}
	return min(float64(t.done)/float64(t.total), 1)
}

func (t *Tracker) view() string {
	line := fmt.Sprintf("%s %s %d/%d", t.title, t.bar.ViewAs(t.fraction()), t.done, t.total)
	if t.current != "" {
		line += " " + t.current
	}
	return line
}

func (t *Tracker) refresh() {
	if t.spin == nil {
		return
	}
	t.mu.Lock()
	suffix := " " + t.view()
	t.mu.Unlock()

	t.spin.Lock()
	t.spin.Suffix = suffix
	t.spin.Unlock()
}
