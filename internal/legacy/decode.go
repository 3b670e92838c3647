package legacy

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The closures app never enforced types on transaction and account fields,
// so a single odd value must not make the whole export unreadable. Strings
// are kept, numbers become their literal text and anything else is empty.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	v, err := decodeScalar(data)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*s = looseString(x)
	case json.Number:
		*s = looseString(x.String())
	default:
		*s = ""
	}
	return nil
}

// looseTimestamp accepts integral JSON numbers, including ones written with
// a fraction or exponent, and numeric strings. Anything else is no timestamp.
type looseTimestamp struct {
	ms *int64
}

func (ts *looseTimestamp) UnmarshalJSON(data []byte) error {
	v, err := decodeScalar(data)
	if err != nil {
		return err
	}
	ts.ms = nil
	switch x := v.(type) {
	case json.Number:
		ts.ms = parseMillis(x.String())
	case string:
		ts.ms = parseMillis(strings.TrimSpace(x))
	}
	return nil
}

func parseMillis(s string) *int64 {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func decodeScalar(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// isJSONObject reports whether data holds an object. Entries of the
// accounts and transactions lists that are not objects decode as zero values.
func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Account) UnmarshalJSON(data []byte) error {
	*a = Account{}
	if !isJSONObject(data) {
		return nil
	}
	var raw struct {
		ID   looseString `json:"id"`
		Name looseString `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.ID = string(raw.ID)
	a.Name = string(raw.Name)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	*t = Transaction{}
	if !isJSONObject(data) {
		return nil
	}
	var raw struct {
		ID          looseString    `json:"id"`
		Concept     looseString    `json:"concept"`
		Description looseString    `json:"description"`
		Amount      RawAmount      `json:"amount"`
		AccountID   looseString    `json:"accountId"`
		Timestamp   looseTimestamp `json:"timestamp"`
		TransferID  looseString    `json:"transferId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction{
		ID:          string(raw.ID),
		Concept:     string(raw.Concept),
		Description: string(raw.Description),
		Amount:      raw.Amount,
		AccountID:   string(raw.AccountID),
		Timestamp:   raw.Timestamp.ms,
		TransferID:  string(raw.TransferID),
	}
	return nil
}
