package migrate

// MissingCategory is a mapped category that does not exist in the
// destination store.
type MissingCategory struct {
	Name string
	Type string

	// Concept is the first legacy concept mapped to it; empty when the
	// category only comes from a description rule.
	Concept string
}

// Result accumulates the counters of one run. Every transaction adds to
// exactly one of Migrated, Skipped and Errors.
type Result struct {
	RunID string `json:"run_id"`

	Closures   int `json:"closures"`
	Accounts   int `json:"accounts"`
	Categories int `json:"categories"`

	AccountsReused  int `json:"accounts_reused"`
	AccountsCreated int `json:"accounts_created"`
	AccountsFailed  int `json:"accounts_failed"`

	CategoriesFound   int               `json:"categories_found"`
	MissingCategories []MissingCategory `json:"missing_categories,omitempty"`

	// Planned is the number of transactions expected to migrate: mapped,
	// not skipped, not transfers.
	Planned int `json:"planned"`

	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`

	SkipReasons  map[Reason]int `json:"skip_reasons"`
	ErrorReasons map[Reason]int `json:"error_reasons"`
}

// NewResult returns an empty Result for a run.
func NewResult(runID string) *Result {
	return &Result{
		RunID:        runID,
		SkipReasons:  make(map[Reason]int),
		ErrorReasons: make(map[Reason]int),
	}
}

// Add counts one classified transaction.
func (r *Result) Add(o Outcome) {
	switch o.Kind() {
	case OutcomeRecord:
		r.Migrated++
	case OutcomeSkip:
		r.Skipped++
		r.SkipReasons[o.Reason]++
	case OutcomeError:
		r.Errors++
		r.ErrorReasons[o.Reason]++
	}
}

// Processed returns the number of transactions counted so far.
func (r *Result) Processed() int {
	return r.Migrated + r.Skipped + r.Errors
}
