// Package store defines the destination ledger store consumed by the
// migration and its backends.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Collections used by the migration.
const (
	CollectionAccounts     = "accounts"
	CollectionCategories   = "categories"
	CollectionTransactions = "transactions"
)

// Record is a destination record as returned by Get.
type Record map[string]interface{}

// String returns the trimmed string value of key, or "" when the key is
// absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return strings.TrimSpace(s)
}

// Store is the destination ledger. Get returns every record of a
// collection keyed by id; Append creates a record and returns its new id.
type Store interface {
	Get(ctx context.Context, collection string) (map[string]Record, error)
	Append(ctx context.Context, collection string, record interface{}) (string, error)
}

// SortedIDs returns the ids of records in lexical order. Push ids are
// chronological, so the first id is the oldest record.
func SortedIDs(records map[string]Record) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// toRecord converts any JSON-encodable value into a Record.
func toRecord(v interface{}) (Record, error) {
	if r, ok := v.(Record); ok {
		return r, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("toRecord: encoding: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("toRecord: record must encode to a JSON object: %w", err)
	}
	return rec, nil
}

// decodeCollection turns a `{id: record}` JSON object into records. Null
// bodies yield an empty map; entries that are not objects are dropped.
func decodeCollection(data []byte) (map[string]Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decodeCollection: %w", err)
	}

	records := make(map[string]Record, len(raw))
	for id, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil || rec == nil {
			continue
		}
		records[id] = rec
	}
	return records, nil
}
