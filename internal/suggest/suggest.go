// Package suggest asks a language model to propose description rules for
// descriptions the mapping file does not cover yet. Proposals are only
// printed for review; they are never merged into the mapping automatically.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// DefaultBatchSize caps how many descriptions go into one prompt.
const DefaultBatchSize = 200

// Rejection is a proposed rule that failed validation.
type Rejection struct {
	Rule   mapping.DescriptionRule
	Reason string
}

// Result holds the accepted rules and the rejected proposals.
type Result struct {
	Rules    []mapping.DescriptionRule
	Rejected []Rejection
}

// Fragment is the mapping-file shape the accepted rules are printed in.
type Fragment struct {
	DescriptionRules []mapping.DescriptionRule `json:"descriptionRules"`
}

// JSON renders the accepted rules as a descriptionRules fragment.
func (r *Result) JSON() ([]byte, error) {
	rules := r.Rules
	if rules == nil {
		rules = []mapping.DescriptionRule{}
	}
	return json.MarshalIndent(Fragment{DescriptionRules: rules}, "", "  ")
}

// Suggester builds prompts from the mapping and validates the replies.
type Suggester struct {
	gen       Generator
	batchSize int
}

// New returns a Suggester using gen.
func New(gen Generator) *Suggester {
	return &Suggester{gen: gen, batchSize: DefaultBatchSize}
}

// WithBatchSize overrides DefaultBatchSize.
func (s *Suggester) WithBatchSize(n int) *Suggester {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Suggest proposes rules for descriptions. Only categories already known
// to cfg may be proposed.
func (s *Suggester) Suggest(ctx context.Context, cfg *mapping.Config, descriptions []string) (*Result, error) {
	categories := KnownCategories(cfg)
	if len(categories) == 0 {
		return nil, fmt.Errorf("Suggest: mapping defines no categories to choose from")
	}

	res := &Result{}
	if len(descriptions) == 0 {
		return res, nil
	}

	v := newValidator(categories)
	for start := 0; start < len(descriptions); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := start + s.batchSize
		if end > len(descriptions) {
			end = len(descriptions)
		}

		raw, err := s.gen.Generate(ctx, buildPrompt(categories, descriptions[start:end]))
		if err != nil {
			return res, fmt.Errorf("Suggest: batch %d-%d: %w", start, end, err)
		}

		proposals, err := parseRules(raw)
		if err != nil {
			return res, fmt.Errorf("Suggest: batch %d-%d: %w", start, end, err)
		}

		for _, p := range proposals {
			rule, err := v.validate(p)
			if err != nil {
				res.Rejected = append(res.Rejected, Rejection{Rule: p, Reason: err.Error()})
				continue
			}
			res.Rules = append(res.Rules, rule)
		}
	}

	return res, nil
}

// KnownCategories lists the distinct named, typed categories of cfg sorted
// by type and name.
func KnownCategories(cfg *mapping.Config) []mapping.CategoryMapping {
	if cfg == nil {
		return nil
	}

	seen := map[string]bool{}
	var out []mapping.CategoryMapping
	add := func(c mapping.CategoryMapping) {
		name := strings.TrimSpace(c.Name)
		typ := c.Type.Normalize()
		if c.Skip || name == "" || (typ != mapping.TypeIncome && typ != mapping.TypeExpense) {
			return
		}
		key := strings.ToUpper(name) + "|" + string(typ)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, mapping.CategoryMapping{Name: name, Type: typ})
	}

	for _, c := range cfg.Categories {
		add(c)
	}
	for _, r := range cfg.DescriptionRules {
		add(r.Category)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}
