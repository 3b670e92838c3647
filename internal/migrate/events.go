package migrate

import (
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/rs/zerolog"
)

// EventKind names a diagnostic event.
type EventKind string

const (
	EventAccountReused      EventKind = "account_reused"
	EventAccountCreated     EventKind = "account_created"
	EventAccountFailed      EventKind = "account_failed"
	EventCategoryFound      EventKind = "category_found"
	EventCategoryMissing    EventKind = "category_missing"
	EventCategorySkipped    EventKind = "category_skipped"
	EventCategoryIncomplete EventKind = "category_incomplete"
	EventStoreReadFailed    EventKind = "store_read_failed"
	EventRuleMatched        EventKind = "rule_matched"
	EventTransactionSkipped EventKind = "transaction_skipped"
	EventTransactionFailed  EventKind = "transaction_failed"
	EventProgress           EventKind = "progress"
	EventSummary            EventKind = "summary"
)

// Event is one structured diagnostic. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	ClosureID     string
	TransactionID string
	LegacyID      string
	Concept       string

	Name     string
	Type     mapping.CategoryType
	TargetID string
	Keyword  string

	Collection string
	Reason     Reason
	Err        error
	Fields     map[string]interface{}

	Done, Total int
	Result      *Result
}

// Sink receives diagnostic events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// DiscardSink drops every event.
var DiscardSink Sink = SinkFunc(func(Event) {})

// LogSink writes events through a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink logging to log.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	var ev *zerolog.Event
	var msg string

	switch e.Kind {
	case EventAccountReused:
		ev, msg = s.log.Info(), "Account already exists"
	case EventAccountCreated:
		ev, msg = s.log.Info(), "Account created"
	case EventAccountFailed:
		ev, msg = s.log.Error(), "Account could not be created"
	case EventCategoryFound:
		ev, msg = s.log.Debug(), "Category found"
	case EventCategoryMissing:
		ev, msg = s.log.Error(), "Mapped category does not exist in the destination store"
	case EventCategorySkipped:
		ev, msg = s.log.Info(), "Category skipped by mapping"
	case EventCategoryIncomplete:
		ev, msg = s.log.Warn(), "Category mapping lacks name or type"
	case EventStoreReadFailed:
		ev, msg = s.log.Warn(), "Store read failed, continuing with an empty collection"
	case EventRuleMatched:
		ev, msg = s.log.Debug(), "Category resolved by description keyword"
	case EventTransactionSkipped:
		ev, msg = s.log.Debug(), "Transaction skipped"
		if e.Reason == ReasonUnmappedCategory {
			ev = s.log.Warn()
		}
	case EventTransactionFailed:
		ev, msg = s.log.Error(), "Transaction not migrated"
	case EventProgress:
		ev, msg = s.log.Info(), "Migration progress"
	case EventSummary:
		ev, msg = s.log.Info(), "Migration completed"
	default:
		ev, msg = s.log.Info(), string(e.Kind)
	}

	ev = ev.Str("event", string(e.Kind))
	if e.ClosureID != "" {
		ev = ev.Str("closure_id", e.ClosureID)
	}
	if e.TransactionID != "" {
		ev = ev.Str("transaction_id", e.TransactionID)
	}
	if e.LegacyID != "" {
		ev = ev.Str("legacy_id", e.LegacyID)
	}
	if e.Concept != "" {
		ev = ev.Str("concept", e.Concept)
	}
	if e.Name != "" {
		ev = ev.Str("name", e.Name)
	}
	if e.Type != "" {
		ev = ev.Str("type", string(e.Type))
	}
	if e.TargetID != "" {
		ev = ev.Str("target_id", e.TargetID)
	}
	if e.Keyword != "" {
		ev = ev.Str("keyword", e.Keyword)
	}
	if e.Collection != "" {
		ev = ev.Str("collection", e.Collection)
	}
	if e.Reason != "" {
		ev = ev.Str("reason", string(e.Reason))
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	if e.Kind == EventProgress {
		ev = ev.Int("done", e.Done).Int("total", e.Total)
	}
	if r := e.Result; r != nil {
		ev = ev.Int("closures", r.Closures).
			Int("accounts", r.Accounts).
			Int("categories", r.Categories).
			Int("migrated", r.Migrated).
			Int("skipped", r.Skipped).
			Int("errors", r.Errors)
	}

	ev.Msg(msg)
}
