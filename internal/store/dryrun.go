package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DryRunPrefix starts every id handed out by a DryRun store.
const DryRunPrefix = "dry-run-"

// DryRun reads from the wrapped store but never writes to it. Appends
// return placeholder ids and are counted per collection.
type DryRun struct {
	next Store

	mu      sync.Mutex
	appends map[string]int
}

// NewDryRun wraps next.
func NewDryRun(next Store) *DryRun {
	return &DryRun{next: next, appends: make(map[string]int)}
}

// Get implements Store by delegating to the wrapped store.
func (d *DryRun) Get(ctx context.Context, collection string) (map[string]Record, error) {
	return d.next.Get(ctx, collection)
}

// Append implements Store without writing anything.
func (d *DryRun) Append(ctx context.Context, collection string, record interface{}) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.appends[collection]++
	return DryRunPrefix + uuid.NewString(), nil
}

// Appends returns how many appends were suppressed for a collection.
func (d *DryRun) Appends(collection string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.appends[collection]
}

var _ Store = (*DryRun)(nil)
