package cache

import (
	"encoding/json"
	"time"
)

// Entry is the envelope every cached value is stored in.
type Entry struct {
	Key       string          `json:"-"`
	Tier      Tier            `json:"tier"`
	WrittenAt time.Time       `json:"written_at"`
	Value     json.RawMessage `json:"value"`

	// Writer and Generation identify the manager that stored the entry and
	// the namespace generation its value was loaded under.
	Writer     string `json:"writer,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
}

// Decode unmarshals the cached value into v.
func (e *Entry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}
