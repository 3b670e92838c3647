package migrate

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// Transformer turns legacy transactions into canonical records. It is pure:
// it never talks to the store and emits no events.
type Transformer struct {
	resolver   *mapping.Resolver
	accounts   map[string]CanonicalAccount
	categories CategoryIndex
	loc        *time.Location
	now        func() time.Time
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithLocation sets the time zone used to find a transaction's calendar day.
func WithLocation(loc *time.Location) TransformerOption {
	return func(t *Transformer) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithClock sets the clock used for transactions without a timestamp.
func WithClock(now func() time.Time) TransformerOption {
	return func(t *Transformer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTransformer creates a Transformer over reconciled accounts (keyed by
// legacy id) and the index of existing categories.
func NewTransformer(resolver *mapping.Resolver, accounts map[string]CanonicalAccount, categories CategoryIndex, opts ...TransformerOption) *Transformer {
	t := &Transformer{
		resolver:   resolver,
		accounts:   accounts,
		categories: categories,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform classifies tx. Checks run in a fixed order and the first one
// that applies decides the outcome.
func (t *Transformer) Transform(tx legacy.Transaction) Outcome {
	if tx.IsTransfer() {
		return skipOutcome(ReasonTransfer, nil, map[string]interface{}{"transfer_id": tx.TransferID})
	}

	cleanConcept := tx.CleanConcept()
	res, ok := t.resolver.Resolve(tx)
	if !ok {
		return skipOutcome(ReasonUnmappedCategory, nil, map[string]interface{}{
			"concept":       tx.Concept,
			"clean_concept": cleanConcept,
			"description":   tx.Description,
		})
	}
	if res.Category.Skip {
		return skipOutcome(ReasonExplicitSkip, &res, map[string]interface{}{"concept": tx.Concept})
	}

	amount, err := legacy.ParseAmount(tx.Amount)
	if err != nil {
		reason := ReasonInvalidAmount
		if errors.Is(err, legacy.ErrMissingAmount) {
			reason = ReasonMissingAmount
		}
		return errorOutcome(reason, &res, map[string]interface{}{
			"amount":      tx.Amount.String(),
			"amount_type": tx.Amount.TypeName(),
			"concept":     tx.Concept,
			"description": tx.Description,
		})
	}
	if amount.IsZero() {
		return errorOutcome(ReasonZeroAmount, &res, map[string]interface{}{
			"concept":     tx.Concept,
			"description": tx.Description,
		})
	}

	txType := mapping.TypeExpense
	if tx.HasIncomeMarker() || (tx.Concept == "" && amount.IsPositive()) {
		txType = mapping.TypeIncome
	}

	categoryName := strings.TrimSpace(res.Category.Name)
	if categoryName == "" {
		return errorOutcome(ReasonCategoryMissingName, &res, map[string]interface{}{
			"concept": tx.Concept,
			"mapping": res.Category,
		})
	}
	categoryType := res.Category.Type.Normalize()
	if categoryType == "" {
		categoryType = txType
	}
	category, ok := t.categories.Lookup(categoryName, categoryType)
	if !ok {
		return errorOutcome(ReasonCategoryNotFoundInTarget, &res, map[string]interface{}{
			"category_name": categoryName,
			"category_type": string(categoryType),
			"lookup_key":    NewCategoryKey(categoryName, categoryType).String(),
			"concept":       tx.Concept,
			"description":   tx.Description,
		})
	}

	if tx.AccountID == "" {
		return errorOutcome(ReasonMissingAccount, &res, map[string]interface{}{
			"concept":     tx.Concept,
			"description": tx.Description,
		})
	}
	account, ok := t.accounts[tx.AccountID]
	if !ok {
		return errorOutcome(ReasonAccountNotMapped, &res, map[string]interface{}{
			"account_id": tx.AccountID,
			"concept":    tx.Concept,
		})
	}

	createdAt := t.now().UnixMilli()
	if tx.Timestamp != nil {
		createdAt = *tx.Timestamp
	}

	description := strings.TrimSpace(tx.Description)
	var notes *string
	if description != "" {
		n := description
		notes = &n
	} else if cleanConcept != "" {
		description = cleanConcept
	} else {
		description = DefaultDescription
	}

	return recordOutcome(&CanonicalTransaction{
		Type:         txType,
		Description:  description,
		Amount:       amount.Abs().InexactFloat64(),
		CategoryID:   category.ID,
		CategoryName: categoryName,
		AccountID:    account.ID,
		AccountName:  t.accountName(tx.AccountID, account),
		Date:         NormalizeDate(createdAt, t.loc),
		Notes:        notes,
		CreatedAt:    createdAt,
	}, &res)
}

func (t *Transformer) accountName(legacyID string, account CanonicalAccount) string {
	if name := strings.TrimSpace(account.Name); name != "" {
		return name
	}
	if name, ok := t.resolver.Config().AccountName(legacyID); ok {
		return name
	}
	return DefaultAccountName
}

// NormalizeDate truncates an epoch-millisecond timestamp to midnight of its
// calendar day in loc and returns it in epoch milliseconds.
func NormalizeDate(ms int64, loc *time.Location) int64 {
	if loc == nil {
		loc = time.Local
	}
	day := civil.DateOf(time.UnixMilli(ms).In(loc))
	return day.In(loc).UnixMilli()
}
