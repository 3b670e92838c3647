// Package legacy holds the closure export read by the migration tools.
// Records in this package are read-only once decoded.
package legacy

import "strings"

// Sign markers used as concept prefixes in the closures app.
const (
	IncomeMarker  = "(+)"
	ExpenseMarker = "(-)"
)

// Closure is one period-end snapshot of the legacy closures app.
type Closure struct {
	ID           string        `json:"-"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// Account is an account as referenced by a closure.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is a legacy transaction line.
type Transaction struct {
	ID          string    `json:"id"`
	Concept     string    `json:"concept"`
	Description string    `json:"description"`
	Amount      RawAmount `json:"amount"`
	AccountID   string    `json:"accountId"`
	Timestamp   *int64    `json:"timestamp"`
	TransferID  string    `json:"transferId,omitempty"`
}

// IsTransfer reports whether the transaction moves money between two
// accounts. Transfers are never migrated.
func (t Transaction) IsTransfer() bool {
	return t.TransferID != ""
}

// CleanConcept strips the sign markers from the concept and trims it.
func (t Transaction) CleanConcept() string {
	return CleanConcept(t.Concept)
}

// HasIncomeMarker reports whether the raw concept starts with "(+)".
func (t Transaction) HasIncomeMarker() bool {
	return strings.HasPrefix(t.Concept, IncomeMarker)
}

// CleanConcept removes every "(+)" and "(-)" marker from concept and trims
// surrounding whitespace.
func CleanConcept(concept string) string {
	s := strings.ReplaceAll(concept, IncomeMarker, "")
	s = strings.ReplaceAll(s, ExpenseMarker, "")
	return strings.TrimSpace(s)
}
