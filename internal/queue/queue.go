package queue

import (
	"github.com/go-scripts/climate/internal/types"
)

// Queue is a FIFO of city pages waiting for table extraction. It remembers
// which URLs were visited so a page listed under two city labels can be
// reported.
type Queue struct {
	targets []types.Target
	visited map[string]int
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		targets: make([]types.Target, 0),
		visited: make(map[string]int),
	}
}

// FromTree queues every city of tree in tree order.
func FromTree(tree *types.Tree) *Queue {
	q := New()
	for _, t := range tree.Targets() {
		q.Add(t)
	}
	return q
}

// Add appends a target.
func (q *Queue) Add(t types.Target) {
	q.targets = append(q.targets, t)
}

// Next pops the next target.
func (q *Queue) Next() (types.Target, bool) {
	if len(q.targets) == 0 {
		return types.Target{}, false
	}
	t := q.targets[0]
	q.targets = q.targets[1:]
	return t, true
}

// Visit records a fetch of url and reports whether it was fetched before.
func (q *Queue) Visit(url string) (repeated bool) {
	q.visited[url]++
	return q.visited[url] > 1
}

// Len returns the number of targets still queued.
func (q *Queue) Len() int {
	return len(q.targets)
}

// VisitedCount returns the number of distinct URLs visited.
func (q *Queue) VisitedCount() int {
	return len(q.visited)
}
