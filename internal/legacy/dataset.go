package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dataset is the full closures export in file order. Order matters because
// the extractor keeps the first occurrence of every account and concept.
type Dataset struct {
	Closures []Closure
}

// Len returns the number of closures.
func (d *Dataset) Len() int {
	return len(d.Closures)
}

// Transactions calls fn for every transaction of every closure, in order.
func (d *Dataset) Transactions(fn func(closure *Closure, tx *Transaction)) {
	for i := range d.Closures {
		c := &d.Closures[i]
		for j := range c.Transactions {
			fn(c, &c.Transactions[j])
		}
	}
}

// UnmarshalJSON decodes the export object `closureId -> closure` keeping the
// key order of the document.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("Dataset: reading opening token: %w", err)
	}
	if tok == nil {
		d.Closures = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("Dataset: export must be a JSON object keyed by closure id, got %v", tok)
	}

	d.Closures = d.Closures[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("Dataset: reading closure id: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("Dataset: closure id is %T, want string", keyTok)
		}

		var raw rawClosure
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("Dataset: closure %q: %w", id, err)
		}
		closure, err := raw.toClosure(id)
		if err != nil {
			return fmt.Errorf("Dataset: closure %q: %w", id, err)
		}
		d.Closures = append(d.Closures, closure)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("Dataset: reading closing token: %w", err)
	}
	return nil
}

// rawClosure defers decoding of the collections so that closures whose
// accounts or transactions are not lists are tolerated and treated as empty.
type rawClosure struct {
	Accounts     json.RawMessage `json:"accounts"`
	Transactions json.RawMessage `json:"transactions"`
}

func (r rawClosure) toClosure(id string) (Closure, error) {
	c := Closure{ID: id}
	if isJSONArray(r.Accounts) {
		if err := json.Unmarshal(r.Accounts, &c.Accounts); err != nil {
			return Closure{}, fmt.Errorf("accounts: %w", err)
		}
	}
	if isJSONArray(r.Transactions) {
		if err := json.Unmarshal(r.Transactions, &c.Transactions); err != nil {
			return Closure{}, fmt.Errorf("transactions: %w", err)
		}
	}
	return c, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Parse decodes a closures export.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("Parse: decoding closures export: %w", err)
	}
	return &ds, nil
}
