// Package migrate moves legacy closures into the destination ledger: it
// extracts accounts and categories, reconciles them with what already
// exists in the store, and transforms every transaction into the
// canonical record shape.
package migrate

import (
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// CanonicalAccount is an account of the destination store.
type CanonicalAccount struct {
	ID   string
	Name string
}

// CanonicalCategory is a category of the destination store.
type CanonicalCategory struct {
	ID   string
	Name string
	Type mapping.CategoryType
}

// CanonicalTransaction is the record appended to the transactions
// collection. Field names are those of the cash-flow app.
type CanonicalTransaction struct {
	Type         mapping.CategoryType `json:"type"`
	Description  string               `json:"description"`
	Amount       float64              `json:"amount"`
	CategoryID   string               `json:"categoryId"`
	CategoryName string               `json:"categoryName"`
	AccountID    string               `json:"accountId"`
	AccountName  string               `json:"accountName"`
	Date         int64                `json:"date"`
	Notes        *string              `json:"notes"`
	CreatedAt    int64                `json:"createdAt"`
}

// accountRecord is the record appended when an account is created.
type accountRecord struct {
	Name string `json:"name"`
}

// CategoryKey identifies a category case-insensitively by name and type.
type CategoryKey struct {
	Name string
	Type mapping.CategoryType
}

// NewCategoryKey normalizes name (trim, upper case) and type (trim, lower case).
func NewCategoryKey(name string, typ mapping.CategoryType) CategoryKey {
	return CategoryKey{Name: normalizeName(name), Type: typ.Normalize()}
}

func (k CategoryKey) String() string {
	return k.Name + "|" + string(k.Type)
}

// CategoryIndex looks existing categories up by CategoryKey.
type CategoryIndex map[CategoryKey]CanonicalCategory

// Lookup finds the category called name with the given type.
func (idx CategoryIndex) Lookup(name string, typ mapping.CategoryType) (CanonicalCategory, bool) {
	c, ok := idx[NewCategoryKey(name, typ)]
	return c, ok
}

// AccountIndex looks existing accounts up by normalized name.
type AccountIndex map[string]CanonicalAccount

// Lookup finds the account called name.
func (idx AccountIndex) Lookup(name string) (CanonicalAccount, bool) {
	a, ok := idx[normalizeName(name)]
	return a, ok
}

func (idx AccountIndex) add(a CanonicalAccount) {
	key := normalizeName(a.Name)
	if _, exists := idx[key]; !exists {
		idx[key] = a
	}
}

// normalizeName upper-cases and trims a name for case-insensitive matching.
func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
