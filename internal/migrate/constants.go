package migrate

// Defaults carried over from the cash-flow app.
const (
	// DefaultDescription is used when a transaction has neither a
	// description nor a concept.
	DefaultDescription = "Sin descripción"

	// DefaultAccountName is used when no name is known for a target account.
	DefaultAccountName = "Sin cuenta"

	// ProgressEvery is how many migrated transactions separate two progress events.
	ProgressEvery = 10
)
