package migrate

import (
	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// Reason classifies why a transaction was skipped or failed.
type Reason string

// Skip reasons.
const (
	ReasonTransfer         Reason = "transfer"
	ReasonUnmappedCategory Reason = "unmapped-category"
	ReasonExplicitSkip     Reason = "explicit-skip"
)

// Error reasons.
const (
	ReasonMissingAmount            Reason = "missing-amount"
	ReasonInvalidAmount            Reason = "invalid-amount"
	ReasonZeroAmount               Reason = "zero-amount"
	ReasonCategoryMissingName      Reason = "category-missing-name"
	ReasonCategoryNotFoundInTarget Reason = "category-not-found-in-target"
	ReasonMissingAccount           Reason = "missing-account"
	ReasonAccountNotMapped         Reason = "account-not-mapped"
	ReasonPersistenceFailed        Reason = "persistence-failed"
)

// OutcomeKind says which of the three results an Outcome holds.
type OutcomeKind int

const (
	OutcomeRecord OutcomeKind = iota + 1
	OutcomeSkip
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecord:
		return "record"
	case OutcomeSkip:
		return "skip"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the classification of one legacy transaction. Exactly one of
// Record, a skip reason or an error reason is set.
type Outcome struct {
	kind   OutcomeKind
	Record *CanonicalTransaction
	Reason Reason

	// Resolution is set whenever the category mapping resolved.
	Resolution *mapping.Resolution

	// Fields carries the offending values for diagnostics.
	Fields map[string]interface{}
}

// Kind returns the outcome kind.
func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

func recordOutcome(rec *CanonicalTransaction, res *mapping.Resolution) Outcome {
	return Outcome{kind: OutcomeRecord, Record: rec, Resolution: res}
}

func skipOutcome(reason Reason, res *mapping.Resolution, fields map[string]interface{}) Outcome {
	return Outcome{kind: OutcomeSkip, Reason: reason, Resolution: res, Fields: fields}
}

func errorOutcome(reason Reason, res *mapping.Resolution, fields map[string]interface{}) Outcome {
	return Outcome{kind: OutcomeError, Reason: reason, Resolution: res, Fields: fields}
}

// asPersistenceError turns a record outcome into a persistence failure.
func (o Outcome) asPersistenceError(err error) Outcome {
	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	return errorOutcome(ReasonPersistenceFailed, o.Resolution, fields)
}
