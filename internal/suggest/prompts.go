package suggest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// buildPrompt asks for description rules restricted to categories.
func buildPrompt(categories []mapping.CategoryMapping, descriptions []string) string {
	var b strings.Builder

	b.WriteString("You help migrate a personal finance ledger.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Group the transaction descriptions below by the category they belong to.\n")
	b.WriteString("- For each group propose short lowercase keywords that appear in those descriptions.\n")
	b.WriteString("- Output STRICT JSON only: an array of objects.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"keywords\": array of strings, each a substring of at least one description\n")
	b.WriteString("- \"category\": object with \"name\" and \"type\" (\"income\" or \"expense\")\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.Type)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. Category name and type must be EXACTLY one of the pairs above.\n")
	b.WriteString("2. Leave out descriptions you cannot classify confidently.\n")
	b.WriteString("3. Never propose a keyword shorter than 3 characters.\n")
	b.WriteString("4. Do NOT wrap the response in code fences. Output must begin with \"[\" and end with \"]\".\n")

	b.WriteString("\nDescriptions:\n")
	for _, d := range descriptions {
		b.WriteString("  - " + d + "\n")
	}

	return b.String()
}

// parseRules decodes the model reply into rules.
func parseRules(raw string) ([]mapping.DescriptionRule, error) {
	clean := cleanModelJSON(raw)

	var rules []mapping.DescriptionRule
	if err := json.Unmarshal([]byte(clean), &rules); err != nil {
		return nil, fmt.Errorf("parseRules: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return rules, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
