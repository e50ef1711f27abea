// Package sessions provides the per-user conversational session store.
//
// The store holds one bounded, time-decayed conversation per user key. All
// structural and per-session mutation happens under one mutex: session
// mutation is cheap relative to generation latency, and keeping a single
// lock domain makes get-or-create plus append atomic with respect to
// concurrent callers. Collaborator calls must never happen while this lock
// is held; callers snapshot the history instead.
package sessions

import (
	"sync"
	"time"

	"github.com/obsidian-neural/loop-service/internal/domain/models"
)

const (
	// DefaultHistoryCeiling bounds the turn sequence length. When an append
	// pushes a session past the ceiling, the oldest user+assistant pair
	// after the system turn is dropped.
	DefaultHistoryCeiling = 9

	// DefaultIdleTTL is the inactivity window after which a session is
	// eligible for eviction.
	DefaultIdleTTL = time.Hour
)

// Store is the process-wide session store.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]*models.Session
	systemPrompt string
	ceiling      int
}

// Config holds the configuration for the session store.
type Config struct {
	// SystemPrompt seeds every new session as its first turn.
	SystemPrompt string

	// HistoryCeiling bounds the turn sequence length. Zero means
	// DefaultHistoryCeiling.
	HistoryCeiling int
}

// NewStore creates a new session store.
func NewStore(cfg Config) *Store {
	ceiling := cfg.HistoryCeiling
	if ceiling == 0 {
		ceiling = DefaultHistoryCeiling
	}

	return &Store{
		sessions:     make(map[string]*models.Session),
		systemPrompt: cfg.SystemPrompt,
		ceiling:      ceiling,
	}
}

// GetOrCreate returns the session for userKey, creating it seeded with the
// system turn if it does not exist.
func (s *Store) GetOrCreate(userKey string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(userKey)
}

// AppendTurn appends one turn to the user's session, updates the
// last-activity timestamp and applies the window trim policy.
func (s *Store) AppendTurn(userKey string, role models.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(userKey)
	session.Turns = append(session.Turns, models.Turn{Role: role, Content: content})
	session.LastActivity = time.Now().UTC()
	s.trimLocked(session)
}

// AppendExchange appends a user turn and its assistant reply as one atomic
// mutation. The decision engine commits an exchange only after the language
// model produced a valid directive, so a malformed response leaves the turn
// sequence completely unchanged.
func (s *Store) AppendExchange(userKey, userContent, assistantContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(userKey)
	session.Turns = append(session.Turns,
		models.Turn{Role: models.RoleUser, Content: userContent},
		models.Turn{Role: models.RoleAssistant, Content: assistantContent},
	)
	session.LastActivity = time.Now().UTC()
	s.trimLocked(session)
}

// Snapshot returns a copy of the session's turn sequence, creating the
// session if needed. The copy is safe to hand to a blocking collaborator
// call without holding the store lock.
func (s *Store) Snapshot(userKey string) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(userKey)
	turns := make([]models.Turn, len(session.Turns))
	copy(turns, session.Turns)
	return turns
}

// Reset replaces the user's session with a fresh one holding only the
// system turn.
func (s *Store) Reset(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userKey] = s.newSession(userKey)
}

// EvictIdle removes every session whose last activity is older than
// now-ttl and returns the number removed.
func (s *Store) EvictIdle(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-ttl)
	evicted := 0
	for userKey, session := range s.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(s.sessions, userKey)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) getOrCreateLocked(userKey string) *models.Session {
	session, ok := s.sessions[userKey]
	if !ok {
		session = s.newSession(userKey)
		s.sessions[userKey] = session
	}
	return session
}

func (s *Store) newSession(userKey string) *models.Session {
	return &models.Session{
		UserKey: userKey,
		Turns: []models.Turn{
			{Role: models.RoleSystem, Content: s.systemPrompt},
		},
		LastActivity: time.Now().UTC(),
	}
}

// trimLocked drops the oldest non-system exchange while the sequence
// exceeds the ceiling. The system turn is never dropped.
func (s *Store) trimLocked(session *models.Session) {
	for len(session.Turns) > s.ceiling && len(session.Turns) > 3 {
		session.Turns = append(session.Turns[:1], session.Turns[3:]...)
	}
}
