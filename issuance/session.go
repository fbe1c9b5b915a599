package issuance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stanbar/stellot-sub000/config"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("issuance session not found or expired")

// Session is an open issuance session of one identity in one election.
type Session struct {
	ID         string
	ElectionID uint64
	IdentityID string
	Created    time.Time
}

// SessionStore tracks issuance sessions keyed by (election, identity).
// A session is created by Open, consumed at most once by Consume and
// otherwise expires after the TTL. Consumed identities are remembered for
// the life of the store so that a second session cannot be opened.
type SessionStore struct {
	mu     sync.Mutex
	live   *expirable.LRU[string, *Session]
	issued map[string]struct{}
	now    func() time.Time
}

// NewSessionStore creates a store holding up to size live sessions, each
// valid for ttl. Zero values select the config defaults.
func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = config.DefaultIssuanceSessions
	}
	if ttl <= 0 {
		ttl = config.DefaultIssuanceSessionTTL
	}
	return &SessionStore{
		live:   expirable.NewLRU[string, *Session](size, nil, ttl),
		issued: make(map[string]struct{}),
		now:    time.Now,
	}
}

func sessionKey(eid uint64, identity string) string {
	return fmt.Sprintf("%d/%s", eid, identity)
}

// Open creates a session, or returns the live one if it already exists.
func (s *SessionStore) Open(eid uint64, identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("empty identity")
	}
	key := sessionKey(eid, identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issued[key]; ok {
		return "", fmt.Errorf("%w: identity %q in election %d", ErrAlreadyIssued, identity, eid)
	}
	if sess, ok := s.live.Get(key); ok {
		return sess.ID, nil
	}
	sess := &Session{
		ID:         uuid.NewString(),
		ElectionID: eid,
		IdentityID: identity,
		Created:    s.now(),
	}
	s.live.Add(key, sess)
	return sess.ID, nil
}

// Consume closes the session id of identity. It fails if the session does
// not exist, expired, or was already consumed.
func (s *SessionStore) Consume(eid uint64, identity, id string) error {
	key := sessionKey(eid, identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issued[key]; ok {
		return fmt.Errorf("%w: identity %q in election %d", ErrAlreadyIssued, identity, eid)
	}
	sess, ok := s.live.Get(key)
	if !ok || sess.ID != id {
		return ErrSessionNotFound
	}
	s.live.Remove(key)
	s.issued[key] = struct{}{}
	return nil
}

// Live returns the number of open sessions.
func (s *SessionStore) Live() int {
	return s.live.Len()
}
