package migrate

import (
	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// LegacyAccount is a distinct account found in the export.
type LegacyAccount struct {
	LegacyID string
	Name     string
}

// AccountRegistry holds distinct legacy accounts in first-seen order.
type AccountRegistry struct {
	order []string
	byID  map[string]LegacyAccount
}

// Len returns the number of distinct accounts.
func (r *AccountRegistry) Len() int {
	return len(r.order)
}

// Get returns the account registered under a legacy id.
func (r *AccountRegistry) Get(legacyID string) (LegacyAccount, bool) {
	a, ok := r.byID[legacyID]
	return a, ok
}

// All returns the accounts in first-seen order.
func (r *AccountRegistry) All() []LegacyAccount {
	out := make([]LegacyAccount, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// LegacyCategory is a distinct cleaned concept found in the export.
type LegacyCategory struct {
	// Concept is the cleaned concept, which is also the registry key.
	Concept         string
	Type            mapping.CategoryType
	OriginalConcept string
}

// CategoryRegistry holds distinct legacy categories in first-seen order.
type CategoryRegistry struct {
	order     []string
	byConcept map[string]LegacyCategory
}

// Len returns the number of distinct categories.
func (r *CategoryRegistry) Len() int {
	return len(r.order)
}

// Get returns the category registered under a cleaned concept.
func (r *CategoryRegistry) Get(concept string) (LegacyCategory, bool) {
	c, ok := r.byConcept[concept]
	return c, ok
}

// All returns the categories in first-seen order.
func (r *CategoryRegistry) All() []LegacyCategory {
	out := make([]LegacyCategory, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.byConcept[c])
	}
	return out
}

// ExtractAccounts collects the distinct accounts of every closure. The first
// occurrence of an id wins; accounts without an id are ignored.
func ExtractAccounts(ds *legacy.Dataset) *AccountRegistry {
	reg := &AccountRegistry{byID: make(map[string]LegacyAccount)}
	if ds == nil {
		return reg
	}

	for _, closure := range ds.Closures {
		for _, acc := range closure.Accounts {
			if acc.ID == "" {
				continue
			}
			if _, seen := reg.byID[acc.ID]; seen {
				continue
			}
			reg.byID[acc.ID] = LegacyAccount{LegacyID: acc.ID, Name: acc.Name}
			reg.order = append(reg.order, acc.ID)
		}
	}
	return reg
}

// ExtractCategories collects the distinct cleaned concepts of every
// non-transfer transaction. The first occurrence of a cleaned concept wins
// and decides its type: income when the raw concept carries the "(+)"
// marker or, failing that, when the amount is positive.
func ExtractCategories(ds *legacy.Dataset) *CategoryRegistry {
	reg := &CategoryRegistry{byConcept: make(map[string]LegacyCategory)}
	if ds == nil {
		return reg
	}

	ds.Transactions(func(_ *legacy.Closure, tx *legacy.Transaction) {
		if tx.IsTransfer() {
			return
		}
		concept := tx.CleanConcept()
		if concept == "" {
			return
		}
		if _, seen := reg.byConcept[concept]; seen {
			return
		}

		typ := mapping.TypeExpense
		if tx.HasIncomeMarker() || isPositive(tx.Amount) {
			typ = mapping.TypeIncome
		}

		reg.byConcept[concept] = LegacyCategory{
			Concept:         concept,
			Type:            typ,
			OriginalConcept: tx.Concept,
		}
		reg.order = append(reg.order, concept)
	})
	return reg
}

// isPositive reports whether the amount parses to a value above zero.
// Unparseable amounts count as not positive.
func isPositive(a legacy.RawAmount) bool {
	d, err := legacy.ParseAmount(a)
	return err == nil && d.IsPositive()
}
