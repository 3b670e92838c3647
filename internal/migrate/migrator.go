package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/dvloznov/cashflow-migration/internal/store"
	"github.com/google/uuid"
)

// Options configures a Migrator. Zero values pick the defaults.
type Options struct {
	// Sink receives diagnostics; nil discards them.
	Sink Sink

	// Location decides the calendar day of a transaction; nil is time.Local.
	Location *time.Location

	// Now is used for transactions without a timestamp; nil is time.Now.
	Now func() time.Time

	// RunID labels the run; empty generates a UUID.
	RunID string
}

// Migrator runs the closures migration against a destination store.
type Migrator struct {
	store      store.Store
	resolver   *mapping.Resolver
	reconciler *Reconciler
	sink       Sink
	loc        *time.Location
	now        func() time.Time
	runID      string
}

// New creates a Migrator writing to st with the mapping cfg.
func New(st store.Store, cfg *mapping.Config, opts Options) *Migrator {
	m := &Migrator{
		store:    st,
		resolver: mapping.NewResolver(cfg),
		sink:     opts.Sink,
		loc:      opts.Location,
		now:      opts.Now,
		runID:    opts.RunID,
	}
	if m.sink == nil {
		m.sink = DiscardSink
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	m.reconciler = NewReconciler(st, m.resolver, m.sink)
	return m
}

// RunID returns the id of the run.
func (m *Migrator) RunID() string {
	return m.runID
}

// Pipeline returns the standard four-step migration pipeline.
func (m *Migrator) Pipeline() *Pipeline {
	return NewPipeline(
		&ExtractStep{},
		&ReconcileAccountsStep{m: m},
		&ReconcileCategoriesStep{m: m},
		&MigrateTransactionsStep{m: m},
	)
}

// Run migrates ds. Per-entity failures are counted in the Result and never
// stop the run; an error is returned only when ctx ends early. The Result
// is returned in both cases.
func (m *Migrator) Run(ctx context.Context, ds *legacy.Dataset) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("Run: dataset is nil")
	}

	state := &RunState{
		Dataset: ds,
		Result:  NewResult(m.runID),
	}

	err := m.Pipeline().Execute(ctx, state)
	m.sink.Emit(Event{Kind: EventSummary, Result: state.Result})
	if err != nil {
		return state.Result, fmt.Errorf("Run: %w", err)
	}
	return state.Result, nil
}

// report emits the diagnostics of one classified transaction.
func (m *Migrator) report(closureID string, tx legacy.Transaction, o Outcome, result *Result) {
	base := Event{ClosureID: closureID, TransactionID: tx.ID, Concept: tx.Concept}

	if res := o.Resolution; res != nil && res.Source == mapping.SourceRule {
		e := base
		e.Kind = EventRuleMatched
		e.Keyword = res.Keyword
		e.Name = res.Category.Name
		m.sink.Emit(e)
	}

	switch o.Kind() {
	case OutcomeRecord:
		if result.Migrated%ProgressEvery == 0 {
			m.sink.Emit(Event{Kind: EventProgress, Done: result.Migrated, Total: result.Planned})
		}
	case OutcomeSkip:
		e := base
		e.Kind = EventTransactionSkipped
		e.Reason = o.Reason
		e.Fields = o.Fields
		m.sink.Emit(e)
	case OutcomeError:
		e := base
		e.Kind = EventTransactionFailed
		e.Reason = o.Reason
		e.Fields = o.Fields
		m.sink.Emit(e)
	}
}

// CountPlanned counts the transactions expected to migrate: not transfers,
// resolved by the mapping and not explicitly skipped.
func CountPlanned(ds *legacy.Dataset, resolver *mapping.Resolver) int {
	n := 0
	ds.Transactions(func(_ *legacy.Closure, tx *legacy.Transaction) {
		if tx.IsTransfer() {
			return
		}
		if res, ok := resolver.Resolve(*tx); ok && !res.Category.Skip {
			n++
		}
	})
	return n
}
