package mapping

import (
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
)

// Source tells which layer of the mapping produced a resolution.
type Source int

const (
	SourceConcept Source = iota + 1
	SourceCleanConcept
	SourceRule
)

func (s Source) String() string {
	switch s {
	case SourceConcept:
		return "concept"
	case SourceCleanConcept:
		return "clean_concept"
	case SourceRule:
		return "description_rule"
	default:
		return "unknown"
	}
}

// Resolution is a successful category lookup.
type Resolution struct {
	Category CategoryMapping
	Source   Source

	// Set when Source is SourceRule.
	RuleIndex int
	Keyword   string
}

// Resolver resolves transactions against a Config. It is safe to reuse
// across transactions; it never mutates the Config.
type Resolver struct {
	cfg   *Config
	rules []compiledRule
}

type compiledRule struct {
	keywords []string // lower-cased, in declared order
	original []string
	category CategoryMapping
}

// NewResolver prepares the description rules of cfg.
func NewResolver(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = New()
	}

	rules := make([]compiledRule, 0, len(cfg.DescriptionRules))
	for _, rule := range cfg.DescriptionRules {
		cr := compiledRule{category: rule.Category}
		for _, kw := range rule.Keywords {
			// An empty keyword would match every description.
			if kw == "" {
				continue
			}
			cr.keywords = append(cr.keywords, strings.ToLower(kw))
			cr.original = append(cr.original, kw)
		}
		rules = append(rules, cr)
	}

	return &Resolver{cfg: cfg, rules: rules}
}

// Config returns the configuration the resolver was built from.
func (r *Resolver) Config() *Config {
	return r.cfg
}

// Resolve finds the category for tx: raw concept, then cleaned concept,
// then the first description rule with a matching keyword.
func (r *Resolver) Resolve(tx legacy.Transaction) (Resolution, bool) {
	if res, ok := r.ResolveConcept(tx.Concept, tx.CleanConcept()); ok {
		return res, true
	}
	return r.ResolveDescription(tx.Description)
}

// ResolveConcept looks the concept up in the static category table only.
func (r *Resolver) ResolveConcept(rawConcept, cleanConcept string) (Resolution, bool) {
	if rawConcept != "" {
		if cat, ok := r.cfg.Categories[rawConcept]; ok {
			return Resolution{Category: cat, Source: SourceConcept}, true
		}
	}
	if cleanConcept != "" {
		if cat, ok := r.cfg.Categories[cleanConcept]; ok {
			return Resolution{Category: cat, Source: SourceCleanConcept}, true
		}
	}
	return Resolution{}, false
}

// ResolveDescription applies the description rules in declared order.
func (r *Resolver) ResolveDescription(description string) (Resolution, bool) {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return Resolution{}, false
	}

	for i, rule := range r.rules {
		for j, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return Resolution{
					Category:  rule.category,
					Source:    SourceRule,
					RuleIndex: i,
					Keyword:   rule.original[j],
				}, true
			}
		}
	}
	return Resolution{}, false
}
