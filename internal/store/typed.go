package store

import (
	"fmt"
	"time"
)

// PutValue gob-encodes v and writes it under key, stamped with storedAt.
func PutValue(s *Store, key string, v any, storedAt time.Time) error {
	b, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(key, Record{Payload: b, StoredAt: storedAt.UnixNano()})
}

// GetValue decodes the record under key into v and returns its store time.
func GetValue(s *Store, key string, v any) (time.Time, bool) {
	rec, ok := s.Get(key)
	if !ok {
		return time.Time{}, false
	}
	if err := decodeGob(rec.Payload, v); err != nil {
		return time.Time{}, false
	}
	return rec.Time(), true
}
