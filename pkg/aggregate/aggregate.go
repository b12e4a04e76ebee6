// Package aggregate collects per-module theme CSS for one build and joins it
// into the final theme stylesheet.
package aggregate

import (
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Aggregator is an insertion-ordered set of module id -> extracted CSS.
// Entries are only added or overwritten; an overwrite keeps the module's
// first-seen position.
type Aggregator struct {
	mu      sync.Mutex
	modules *orderedmap.OrderedMap[string, string]
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{modules: orderedmap.New[string, string]()}
}

// Add records css for id. The first Add for an id fixes its position in the
// final output; later calls only replace its text.
func (a *Aggregator) Add(id, css string) {
	a.mu.Lock()
	a.modules.Set(id, css)
	a.mu.Unlock()
}

// Finalize concatenates all entries in first-seen order. It does not
// mutate the set and may be called repeatedly.
func (a *Aggregator) Finalize() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for pair := a.modules.Oldest(); pair != nil; pair = pair.Next() {
		b.WriteString(pair.Value)
	}
	return b.String()
}

// Reorder moves the modules named in ids to the front, in the order given.
// Unknown ids are ignored and the remaining modules keep their order after
// them.
func (a *Aggregator) Reorder(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(ids) - 1; i >= 0; i-- {
		_ = a.modules.MoveToFront(ids[i])
	}
}

// Has reports whether id has been added.
func (a *Aggregator) Has(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.modules.Get(id)
	return ok
}

// IDs returns module ids in first-seen order.
func (a *Aggregator) IDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, a.modules.Len())
	for pair := a.modules.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Len returns the number of modules.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.modules.Len()
}
