package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rl1809/catalog-sync/internal/port"
)

// jsonRecord is a stored item held as a JSON document.
type jsonRecord []byte

func (r jsonRecord) Decode(v any) error {
	return json.Unmarshal(r, v)
}

func marshalDoc(item any) ([]byte, error) {
	doc, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding item: %w", err)
	}
	return doc, nil
}

// matchFilter evaluates f against a JSON document. Values are compared by
// their canonical JSON encoding so int64(5) in a filter matches 5 in a document.
// A missing attribute never matches.
func matchFilter(doc []byte, f port.Filter) (bool, error) {
	if f.Empty() {
		return true, nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return false, fmt.Errorf("decoding document: %w", err)
	}

	for _, c := range f {
		got, ok := attrs[c.Field]
		if !ok {
			return false, nil
		}
		gotJSON, err := json.Marshal(got)
		if err != nil {
			return false, fmt.Errorf("encoding attribute %s: %w", c.Field, err)
		}
		wantJSON, err := json.Marshal(c.Value)
		if err != nil {
			return false, fmt.Errorf("encoding filter value for %s: %w", c.Field, err)
		}
		if !bytes.Equal(gotJSON, wantJSON) {
			return false, nil
		}
	}
	return true, nil
}
