package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tesslc/internal/cache"
	"tesslc/internal/tess"
)

const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultSessionCapacity = 64
)

// Session is the state one viewer carries between page views: the target
// being shown, catalog summaries already fetched for this viewer, and the
// in-flight background fetch. A Session is driven by one page view at a
// time; callers serialize access.
type Session struct {
	ID string

	identifier tess.Identifier
	metadata   *cache.TTL[tess.Identifier, string]
	handle     *handle
}

// NewSession creates a session with its own metadata slot cache.
func NewSession(ttl time.Duration, capacity int, clock cache.Clock) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	md, err := cache.NewTTL[tess.Identifier, string](capacity, ttl, clock)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Session{ID: uuid.NewString(), metadata: md}, nil
}

// Identifier is the target the session currently shows.
func (s *Session) Identifier() tess.Identifier { return s.identifier }

// Metadata returns the stored catalog summary for id, if any.
func (s *Session) Metadata(id tess.Identifier) (string, bool) {
	return s.metadata.Get(id)
}

// Pending reports whether a background fetch is attached to the session.
func (s *Session) Pending() bool { return s.handle != nil }
