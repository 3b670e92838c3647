package migrate

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

// montevideo is a fixed UTC-3 zone so date tests do not depend on the host.
var montevideo = time.FixedZone("UYT", -3*60*60)

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeStore wraps a MemoryStore with failure injection and call counting.
type fakeStore struct {
	*store.MemoryStore

	GetErr    map[string]error
	AppendErr map[string]error
	EmptyID   map[string]bool

	mu      sync.Mutex
	appends map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		MemoryStore: store.NewMemoryStore(),
		GetErr:      map[string]error{},
		AppendErr:   map[string]error{},
		EmptyID:     map[string]bool{},
		appends:     map[string]int{},
	}
}

func (f *fakeStore) Get(ctx context.Context, collection string) (map[string]store.Record, error) {
	if err := f.GetErr[collection]; err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, collection)
}

func (f *fakeStore) Append(ctx context.Context, collection string, record interface{}) (string, error) {
	f.mu.Lock()
	f.appends[collection]++
	f.mu.Unlock()

	if err := f.AppendErr[collection]; err != nil {
		return "", err
	}
	if f.EmptyID[collection] {
		return "", nil
	}
	return f.MemoryStore.Append(ctx, collection, record)
}

func (f *fakeStore) appendCalls(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends[collection]
}

func ts(year int, month time.Month, day, hour, min int) *int64 {
	ms := time.Date(year, month, day, hour, min, 0, 0, montevideo).UnixMilli()
	return &ms
}

func tx(id, concept, description string, amount interface{}, accountID string) legacy.Transaction {
	return legacy.Transaction{
		ID:          id,
		Concept:     concept,
		Description: description,
		Amount:      legacy.NewRawAmount(amount),
		AccountID:   accountID,
		Timestamp:   ts(2023, time.March, 15, 14, 30),
	}
}
