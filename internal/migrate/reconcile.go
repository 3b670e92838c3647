package migrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

// Reconciler matches resolved accounts and categories against the records
// that already exist in the destination store.
type Reconciler struct {
	store    store.Store
	resolver *mapping.Resolver
	sink     Sink
}

// NewReconciler creates a Reconciler. A nil sink discards events.
func NewReconciler(st store.Store, resolver *mapping.Resolver, sink Sink) *Reconciler {
	if sink == nil {
		sink = DiscardSink
	}
	return &Reconciler{store: st, resolver: resolver, sink: sink}
}

// readCollection reads a collection, degrading to an empty one on failure.
func (r *Reconciler) readCollection(ctx context.Context, collection string) map[string]store.Record {
	records, err := r.store.Get(ctx, collection)
	if err != nil {
		r.sink.Emit(Event{Kind: EventStoreReadFailed, Collection: collection, Err: err})
		return map[string]store.Record{}
	}
	return records
}

// BuildAccountIndex indexes accounts by normalized name. When names
// collide the record with the lowest id wins.
func BuildAccountIndex(records map[string]store.Record) AccountIndex {
	idx := make(AccountIndex, len(records))
	for _, id := range store.SortedIDs(records) {
		name := records[id].String("name")
		if name == "" {
			continue
		}
		idx.add(CanonicalAccount{ID: id, Name: name})
	}
	return idx
}

// BuildCategoryIndex indexes categories by normalized name and type.
// Records without a name or type are ignored; on collisions the record
// with the lowest id wins.
func BuildCategoryIndex(records map[string]store.Record) CategoryIndex {
	idx := make(CategoryIndex, len(records))
	for _, id := range store.SortedIDs(records) {
		rec := records[id]
		name := rec.String("name")
		typ := mapping.CategoryType(rec.String("type")).Normalize()
		if name == "" || typ == "" {
			continue
		}
		key := NewCategoryKey(name, typ)
		if _, exists := idx[key]; exists {
			continue
		}
		idx[key] = CanonicalCategory{ID: id, Name: name, Type: typ}
	}
	return idx
}

// AccountReconciliation is the outcome of ReconcileAccounts.
type AccountReconciliation struct {
	// ByLegacyID maps every reconciled legacy account to its target.
	ByLegacyID map[string]CanonicalAccount

	Reused, Created, Failed int
}

// ReconcileAccounts resolves every registered account to a target account,
// reusing accounts whose name already exists and creating the others.
// Existing accounts are read once; names match case-insensitively.
func (r *Reconciler) ReconcileAccounts(ctx context.Context, reg *AccountRegistry) *AccountReconciliation {
	out := &AccountReconciliation{ByLegacyID: make(map[string]CanonicalAccount, reg.Len())}
	idx := BuildAccountIndex(r.readCollection(ctx, store.CollectionAccounts))
	cfg := r.resolver.Config()

	for _, acc := range reg.All() {
		name := TargetAccountName(cfg, acc)

		if existing, ok := idx.Lookup(name); ok {
			out.ByLegacyID[acc.LegacyID] = existing
			out.Reused++
			r.sink.Emit(Event{Kind: EventAccountReused, LegacyID: acc.LegacyID, Name: existing.Name, TargetID: existing.ID})
			continue
		}

		id, err := r.store.Append(ctx, store.CollectionAccounts, accountRecord{Name: name})
		if err == nil && id == "" {
			err = fmt.Errorf("store returned no id")
		}
		if err != nil {
			out.Failed++
			r.sink.Emit(Event{Kind: EventAccountFailed, LegacyID: acc.LegacyID, Name: name, Collection: store.CollectionAccounts, Err: err})
			continue
		}

		created := CanonicalAccount{ID: id, Name: name}
		idx.add(created)
		out.ByLegacyID[acc.LegacyID] = created
		out.Created++
		r.sink.Emit(Event{Kind: EventAccountCreated, LegacyID: acc.LegacyID, Name: name, TargetID: id})
	}

	return out
}

// TargetAccountName is the display name an account gets in the
// destination: the mapped name, else the legacy name, else the legacy id.
func TargetAccountName(cfg *mapping.Config, acc LegacyAccount) string {
	if name, ok := cfg.AccountName(acc.LegacyID); ok {
		return strings.TrimSpace(name)
	}
	if name := strings.TrimSpace(acc.Name); name != "" {
		return name
	}
	return acc.LegacyID
}

// CategoryReconciliation is the outcome of ReconcileCategories.
type CategoryReconciliation struct {
	// ByConcept maps cleaned legacy concepts to existing category ids.
	ByConcept map[string]string

	// Index holds every existing category, for the transformer.
	Index CategoryIndex

	// Found counts distinct mapped categories present in the store.
	Found int

	// Missing lists each distinct mapped category absent from the store once.
	Missing []MissingCategory
}

// ReconcileCategories checks that every mapped category exists in the
// destination store. It never creates categories. Concepts that are not
// mapped are ignored here and show up later as skipped transactions.
func (r *Reconciler) ReconcileCategories(ctx context.Context, reg *CategoryRegistry) *CategoryReconciliation {
	out := &CategoryReconciliation{
		ByConcept: make(map[string]string),
		Index:     BuildCategoryIndex(r.readCollection(ctx, store.CollectionCategories)),
	}
	checked := make(map[CategoryKey]bool)

	check := func(cat mapping.CategoryMapping, concept string) (CanonicalCategory, bool) {
		key := NewCategoryKey(cat.Name, cat.Type)
		existing, ok := out.Index[key]
		if checked[key] {
			return existing, ok
		}
		checked[key] = true

		if ok {
			out.Found++
			r.sink.Emit(Event{Kind: EventCategoryFound, Concept: concept, Name: existing.Name, Type: existing.Type, TargetID: existing.ID})
			return existing, true
		}
		out.Missing = append(out.Missing, MissingCategory{Name: cat.Name, Type: string(cat.Type.Normalize()), Concept: concept})
		r.sink.Emit(Event{Kind: EventCategoryMissing, Concept: concept, Name: cat.Name, Type: cat.Type.Normalize()})
		return CanonicalCategory{}, false
	}

	for _, lc := range reg.All() {
		res, ok := r.resolver.ResolveConcept(lc.OriginalConcept, lc.Concept)
		if !ok {
			continue
		}
		cat := res.Category
		if cat.Skip {
			r.sink.Emit(Event{Kind: EventCategorySkipped, Concept: lc.Concept})
			continue
		}
		if strings.TrimSpace(cat.Name) == "" || cat.Type.Normalize() == "" {
			r.sink.Emit(Event{Kind: EventCategoryIncomplete, Concept: lc.Concept, Name: cat.Name, Type: cat.Type})
			continue
		}
		if existing, ok := check(cat, lc.Concept); ok {
			out.ByConcept[lc.Concept] = existing.ID
		}
	}

	for _, rule := range r.resolver.Config().DescriptionRules {
		cat := rule.Category
		if cat.Skip || strings.TrimSpace(cat.Name) == "" || cat.Type.Normalize() == "" {
			continue
		}
		check(cat, "")
	}

	// Static entries that no extracted concept reaches are verified too.
	cfg := r.resolver.Config()
	concepts := make([]string, 0, len(cfg.Categories))
	for concept := range cfg.Categories {
		concepts = append(concepts, concept)
	}
	sort.Strings(concepts)
	for _, concept := range concepts {
		cat := cfg.Categories[concept]
		if cat.Skip || strings.TrimSpace(cat.Name) == "" || cat.Type.Normalize() == "" {
			continue
		}
		check(cat, legacy.CleanConcept(concept))
	}

	return out
}
