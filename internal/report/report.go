// Package report summarizes the descriptions and concepts of a closures
// export so the mapping file can be written against real data.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
)

// DefaultTop is how many descriptions the frequency ranking shows.
const DefaultTop = 50

// Entry is a distinct description or concept with its frequency.
type Entry struct {
	Text  string
	Count int

	// Unmapped counts the occurrences whose transaction resolves to no
	// category. Only filled when the report is built with a resolver.
	Unmapped int
}

// Report holds the frequencies of a dataset. Entries keep first-seen order.
type Report struct {
	Closures     int
	Transactions int
	Descriptions []Entry
	Concepts     []Entry

	mapped bool
}

// Build counts the non-transfer descriptions and concepts of ds. When
// resolver is not nil, every occurrence is also checked against the mapping.
func Build(ds *legacy.Dataset, resolver *mapping.Resolver) *Report {
	r := &Report{mapped: resolver != nil}
	if ds == nil {
		return r
	}
	r.Closures = ds.Len()

	descIdx := map[string]int{}
	conceptIdx := map[string]int{}

	ds.Transactions(func(_ *legacy.Closure, tx *legacy.Transaction) {
		if tx.IsTransfer() {
			return
		}
		r.Transactions++

		unmapped := false
		if resolver != nil {
			_, ok := resolver.Resolve(*tx)
			unmapped = !ok
		}

		if desc := strings.TrimSpace(tx.Description); desc != "" {
			r.Descriptions = count(r.Descriptions, descIdx, desc, unmapped)
		}
		if concept := strings.TrimSpace(tx.Concept); concept != "" {
			r.Concepts = count(r.Concepts, conceptIdx, concept, unmapped)
		}
	})

	return r
}

func count(entries []Entry, idx map[string]int, text string, unmapped bool) []Entry {
	i, ok := idx[text]
	if !ok {
		i = len(entries)
		idx[text] = i
		entries = append(entries, Entry{Text: text})
	}
	entries[i].Count++
	if unmapped {
		entries[i].Unmapped++
	}
	return entries
}

// Top returns the n most frequent descriptions. Ties keep first-seen order.
func (r *Report) Top(n int) []Entry {
	out := append([]Entry(nil), r.Descriptions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortedDescriptions returns every distinct description alphabetically.
func (r *Report) SortedDescriptions() []Entry {
	return alphabetical(r.Descriptions)
}

// SortedConcepts returns every distinct concept alphabetically.
func (r *Report) SortedConcepts() []Entry {
	return alphabetical(r.Concepts)
}

// Unmapped returns the descriptions with at least one unmapped occurrence,
// most frequent first.
func (r *Report) Unmapped() []Entry {
	var out []Entry
	for _, e := range r.Descriptions {
		if e.Unmapped > 0 {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Unmapped > out[j].Unmapped })
	return out
}

func alphabetical(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// WriteText renders the report as plain text.
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	section(bw, "SUMMARY")
	fmt.Fprintf(bw, "Closures: %d\n", r.Closures)
	fmt.Fprintf(bw, "Transactions (excluding transfers): %d\n", r.Transactions)
	fmt.Fprintf(bw, "Unique descriptions: %d\n", len(r.Descriptions))
	fmt.Fprintf(bw, "Unique concepts: %d\n", len(r.Concepts))
	if r.mapped {
		fmt.Fprintf(bw, "Unmapped descriptions: %d\n", len(r.Unmapped()))
	}

	section(bw, fmt.Sprintf("TOP %d DESCRIPTIONS", DefaultTop))
	r.writeEntries(bw, r.Top(DefaultTop))

	section(bw, "ALL DESCRIPTIONS (alphabetical)")
	r.writeEntries(bw, r.SortedDescriptions())

	section(bw, "CONCEPTS")
	r.writeEntries(bw, r.SortedConcepts())

	if r.mapped {
		section(bw, "UNMAPPED DESCRIPTIONS")
		r.writeEntries(bw, r.Unmapped())
	}

	return bw.Flush()
}

func (r *Report) writeEntries(w io.Writer, entries []Entry) {
	for _, e := range entries {
		marker := ""
		if r.mapped && e.Unmapped > 0 {
			marker = " *"
		}
		fmt.Fprintf(w, "  [%4d] %s%s\n", e.Count, e.Text, marker)
	}
}

func section(w io.Writer, title string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
}
