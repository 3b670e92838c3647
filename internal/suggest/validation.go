package suggest

import (
	"fmt"
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// minKeywordLen rejects keywords short enough to match unrelated text.
const minKeywordLen = 3

type validator struct {
	// upper-cased name|type -> canonical spelling
	categories map[string]mapping.CategoryMapping
}

func newValidator(categories []mapping.CategoryMapping) *validator {
	v := &validator{categories: make(map[string]mapping.CategoryMapping, len(categories))}
	for _, c := range categories {
		v.categories[categoryKey(c.Name, c.Type)] = c
	}
	return v
}

// validate normalizes a proposed rule and checks it against the known
// categories. The returned rule uses the mapping's own spelling.
func (v *validator) validate(rule mapping.DescriptionRule) (mapping.DescriptionRule, error) {
	cat, ok := v.categories[categoryKey(rule.Category.Name, rule.Category.Type)]
	if !ok {
		return mapping.DescriptionRule{}, fmt.Errorf("unknown category %q (%s)", rule.Category.Name, rule.Category.Type)
	}

	seen := map[string]bool{}
	var keywords []string
	for _, kw := range rule.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) < minKeywordLen || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		return mapping.DescriptionRule{}, fmt.Errorf("no usable keywords in %v", rule.Keywords)
	}

	return mapping.DescriptionRule{Keywords: keywords, Category: cat}, nil
}

func categoryKey(name string, typ mapping.CategoryType) string {
	return strings.ToUpper(strings.TrimSpace(name)) + "|" + string(typ.Normalize())
}
