package migrate

import (
	"context"
	"fmt"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

// Step is a single stage of a migration run.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *RunState) error
}

// RunState holds the shared state across all steps of a run.
type RunState struct {
	Dataset *legacy.Dataset

	Accounts   *AccountRegistry
	Categories *CategoryRegistry

	AccountMap map[string]CanonicalAccount
	CategoryIx CategoryIndex

	Result *Result
}

// ExtractStep builds the account and category registries.
type ExtractStep struct{}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *RunState) error {
	state.Accounts = ExtractAccounts(state.Dataset)
	state.Categories = ExtractCategories(state.Dataset)

	state.Result.Closures = state.Dataset.Len()
	state.Result.Accounts = state.Accounts.Len()
	state.Result.Categories = state.Categories.Len()
	return nil
}

// ReconcileAccountsStep resolves legacy accounts to target accounts,
// creating the ones that do not exist yet.
type ReconcileAccountsStep struct {
	m *Migrator
}

func (s *ReconcileAccountsStep) Name() string { return "reconcile_accounts" }

func (s *ReconcileAccountsStep) Execute(ctx context.Context, state *RunState) error {
	rec := s.m.reconciler.ReconcileAccounts(ctx, state.Accounts)
	state.AccountMap = rec.ByLegacyID

	state.Result.AccountsReused = rec.Reused
	state.Result.AccountsCreated = rec.Created
	state.Result.AccountsFailed = rec.Failed
	return ctx.Err()
}

// ReconcileCategoriesStep verifies that mapped categories exist.
type ReconcileCategoriesStep struct {
	m *Migrator
}

func (s *ReconcileCategoriesStep) Name() string { return "reconcile_categories" }

func (s *ReconcileCategoriesStep) Execute(ctx context.Context, state *RunState) error {
	rec := s.m.reconciler.ReconcileCategories(ctx, state.Categories)
	state.CategoryIx = rec.Index

	state.Result.CategoriesFound = rec.Found
	state.Result.MissingCategories = rec.Missing
	return ctx.Err()
}

// MigrateTransactionsStep transforms and appends every transaction.
type MigrateTransactionsStep struct {
	m *Migrator
}

func (s *MigrateTransactionsStep) Name() string { return "migrate_transactions" }

func (s *MigrateTransactionsStep) Execute(ctx context.Context, state *RunState) error {
	m := s.m
	result := state.Result
	tf := NewTransformer(m.resolver, state.AccountMap, state.CategoryIx, WithLocation(m.loc), WithClock(m.now))

	result.Planned = CountPlanned(state.Dataset, m.resolver)

	for ci := range state.Dataset.Closures {
		closure := &state.Dataset.Closures[ci]
		for ti := range closure.Transactions {
			if err := ctx.Err(); err != nil {
				return err
			}
			tx := closure.Transactions[ti]

			outcome := tf.Transform(tx)
			if outcome.Kind() == OutcomeRecord {
				id, err := m.store.Append(ctx, store.CollectionTransactions, outcome.Record)
				if err != nil || id == "" {
					outcome = outcome.asPersistenceError(err)
				}
			}

			result.Add(outcome)
			m.report(closure.ID, tx, outcome, result)
		}
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first error.
func (p *Pipeline) Execute(ctx context.Context, state *RunState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
