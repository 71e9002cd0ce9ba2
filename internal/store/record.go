package store

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Record is one persisted value. Payloads are gob-encoded by the caller's
// type so the store itself stays schema-free.
type Record struct {
	Payload  []byte
	StoredAt int64 // unix nanoseconds, UTC
}

// Time returns StoredAt as a time.Time.
func (r Record) Time() time.Time {
	return time.Unix(0, r.StoredAt).UTC()
}

type meta struct {
	Size       int64
	LastAccess int64
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return dec.Decode(v)
}
