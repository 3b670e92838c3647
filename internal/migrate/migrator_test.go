package migrate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/dvloznov/cashflow-migration/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationExport = `{
  "2023-01": {
    "accounts": [{"id": "A1", "name": "Checking"}, {"id": "A2", "name": "Wallet"}],
    "transactions": [
      {"id": "t1", "concept": "(+)SALARY", "description": "", "amount": 1500, "accountId": "A1", "timestamp": 1673802000000},
      {"id": "t2", "concept": "", "description": "STARBUCKS COFFEE", "amount": -4.5, "accountId": "A2", "timestamp": 1673805600000},
      {"id": "t3", "concept": "(+)SALARY", "description": "", "amount": "abc", "accountId": "A1", "timestamp": 1673805600000},
      {"id": "t4", "concept": "(-)PETS", "description": "vet", "amount": -30, "accountId": "A1", "timestamp": 1673805600000},
      {"id": "t5", "concept": "", "description": "to savings", "amount": -100, "accountId": "A1", "transferId": "x1", "timestamp": 1673805600000}
    ]
  },
  "2023-02": {
    "accounts": [{"id": "A1", "name": "Checking (renamed)"}],
    "transactions": [
      {"id": "t6", "concept": "INTERNAL", "description": "", "amount": 10, "accountId": "A1", "timestamp": 1676480400000},
      {"id": "t7", "concept": "GIFTS", "description": "", "amount": -20, "accountId": "A1", "timestamp": 1676480400000},
      {"id": "t8", "concept": "(+)SALARY", "description": "February", "amount": "1500.50", "accountId": "GHOST", "timestamp": 1676480400000}
    ]
  }
}`

func seededStore() *fakeStore {
	st := newFakeStore()
	st.Put(store.CollectionAccounts, "acc-main", store.Record{"name": "Main Checking"})
	st.Put(store.CollectionCategories, "cat-salary", store.Record{"name": "Salary", "type": "income"})
	st.Put(store.CollectionCategories, "cat-dining", store.Record{"name": "Dining", "type": "expense"})
	return st
}

func newTestMigrator(st store.Store, sink Sink) *Migrator {
	return New(st, testConfig(), Options{
		Sink:     sink,
		Location: montevideo,
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, montevideo) },
		RunID:    "run-1",
	})
}

func TestMigrator_Run(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)

	st := seededStore()
	rec := &recorder{}
	result, err := newTestMigrator(st, rec).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 2, result.Closures)
	assert.Equal(t, 2, result.Accounts)
	assert.Equal(t, 4, result.Categories) // SALARY, PETS, INTERNAL, GIFTS
	assert.Equal(t, 1, result.AccountsReused)
	assert.Equal(t, 1, result.AccountsCreated)

	assert.Equal(t, 2, result.Migrated)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 3, result.Errors)
	assert.Equal(t, 8, result.Processed())

	assert.Equal(t, map[Reason]int{
		ReasonTransfer:         1,
		ReasonUnmappedCategory: 1,
		ReasonExplicitSkip:     1,
	}, result.SkipReasons)
	assert.Equal(t, map[Reason]int{
		ReasonInvalidAmount:            1,
		ReasonCategoryNotFoundInTarget: 1,
		ReasonAccountNotMapped:         1,
	}, result.ErrorReasons)

	// t1, t2, t3, t7, t8 resolve to a non-skipped mapping.
	assert.Equal(t, 5, result.Planned)

	records := mustRecords(t, st, store.CollectionTransactions)
	require.Len(t, records, 2)

	var salary, dining store.Record
	for _, r := range records {
		switch r["categoryName"] {
		case "Salary":
			salary = r
		case "Dining":
			dining = r
		}
	}
	require.NotNil(t, salary)
	require.NotNil(t, dining)
	assert.Equal(t, "income", salary["type"])
	assert.Equal(t, 1500.0, salary["amount"])
	assert.Equal(t, "acc-main", salary["accountId"])
	assert.Equal(t, "Main Checking", salary["accountName"])
	assert.Nil(t, salary["notes"])
	assert.Equal(t, "expense", dining["type"])
	assert.Equal(t, 4.5, dining["amount"])
	assert.Equal(t, "Wallet", dining["accountName"])

	// Categories are verified, never created.
	assert.Zero(t, st.appendCalls(store.CollectionCategories))

	failed := rec.ofKind(EventTransactionFailed)
	require.Len(t, failed, 3)
	assert.Equal(t, "t3", failed[0].TransactionID)
	assert.Equal(t, "2023-01", failed[0].ClosureID)
	assert.Equal(t, "abc", failed[0].Fields["amount"])
	assert.Len(t, rec.ofKind(EventRuleMatched), 1)
	assert.Len(t, rec.ofKind(EventSummary), 1)
}

func TestMigrator_LooseExportFields(t *testing.T) {
	ds, err := legacy.Parse([]byte(`{
	  "2023-01": {
	    "accounts": [{"id": 1, "name": "Checking"}],
	    "transactions": [
	      {"id": 7, "concept": 123, "description": "", "amount": -10, "accountId": 1, "timestamp": 1673802000000.0},
	      {"id": "t2", "concept": "(+)SALARY", "description": "", "amount": 1500, "accountId": 1, "timestamp": "1673802000000"}
	    ]
	  }
	}`))
	require.NoError(t, err)

	st := seededStore()
	rec := &recorder{}
	result, err := newTestMigrator(st, rec).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accounts)
	assert.Equal(t, 2, result.Processed())
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, map[Reason]int{ReasonUnmappedCategory: 1}, result.SkipReasons)
	assert.Zero(t, result.Errors)

	skipped := rec.ofKind(EventTransactionSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "7", skipped[0].TransactionID)

	records := mustRecords(t, st, store.CollectionTransactions)
	require.Len(t, records, 1)
	for _, r := range records {
		assert.Equal(t, "Salary", r["categoryName"])
		assert.Equal(t, "Checking", r["accountName"])
	}
}

func TestMigrator_RerunReusesAccounts(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)

	st := seededStore()
	m := newTestMigrator(st, nil)

	first, err := m.Run(context.Background(), ds)
	require.NoError(t, err)
	second, err := m.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, first.AccountsCreated)
	assert.Zero(t, second.AccountsCreated)
	assert.Equal(t, 2, second.AccountsReused)
	assert.Equal(t, 1, st.appendCalls(store.CollectionAccounts))

	// Transactions carry no idempotency key: a rerun appends them again.
	assert.Equal(t, 4, st.Len(store.CollectionTransactions))
}

func TestMigrator_PersistenceFailure(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)

	st := seededStore()
	st.AppendErr[store.CollectionTransactions] = errors.New("quota exceeded")

	result, err := newTestMigrator(st, nil).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Zero(t, result.Migrated)
	assert.Equal(t, 2, result.ErrorReasons[ReasonPersistenceFailed])
	assert.Equal(t, 5, result.Errors)
	assert.Equal(t, 8, result.Processed())
}

func TestMigrator_EmptyIDIsPersistenceFailure(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)

	st := seededStore()
	st.EmptyID[store.CollectionTransactions] = true

	result, err := newTestMigrator(st, nil).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorReasons[ReasonPersistenceFailed])
}

func TestMigrator_Progress(t *testing.T) {
	var txs []legacy.Transaction
	for i := 0; i < 25; i++ {
		txs = append(txs, tx(fmt.Sprintf("t%d", i), "(+)SALARY", "", 100+i, "A1"))
	}
	ds := &legacy.Dataset{Closures: []legacy.Closure{{
		ID:           "c1",
		Accounts:     []legacy.Account{{ID: "A1", Name: "Checking"}},
		Transactions: txs,
	}}}

	rec := &recorder{}
	result, err := newTestMigrator(seededStore(), rec).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 25, result.Migrated)

	progress := rec.ofKind(EventProgress)
	require.Len(t, progress, 2)
	assert.Equal(t, 10, progress[0].Done)
	assert.Equal(t, 20, progress[1].Done)
	assert.Equal(t, 25, progress[1].Total)
}

func TestMigrator_CancelledContext(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestMigrator(seededStore(), nil).Run(ctx, ds)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Migrated)
}

func TestMigrator_NilDataset(t *testing.T) {
	_, err := newTestMigrator(seededStore(), nil).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestCountPlanned(t *testing.T) {
	ds, err := legacy.Parse([]byte(migrationExport))
	require.NoError(t, err)
	assert.Equal(t, 5, CountPlanned(ds, mapping.NewResolver(testConfig())))
	assert.Zero(t, CountPlanned(ds, mapping.NewResolver(nil)))
}

func mustRecords(t *testing.T, st store.Store, collection string) map[string]store.Record {
	t.Helper()
	records, err := st.Get(context.Background(), collection)
	require.NoError(t, err)
	return records
}
