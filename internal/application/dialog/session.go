package dialog

import (
	"sync"

	"github.com/surimil/mediabot/internal/domain/content"
)

// Kind identifies an independent conversation type. A user may have one
// active session per kind at a time.
type Kind string

const (
	KindQuiz   Kind = "quiz"
	KindDebunk Kind = "debunk"
	KindChat   Kind = "chat"
)

// State is the tagged union of per-kind session progress. Each concrete
// state carries only the fields its dialog needs, so illegal field access
// is impossible.
type State interface {
	Kind() Kind
}

// QuizState tracks an in-flight quiz run.
type QuizState struct {
	Questions []content.QuizQuestion
	Index     int
	Score     int
}

func (*QuizState) Kind() Kind { return KindQuiz }

// DebunkState tracks an in-flight debunk investigation.
type DebunkState struct {
	Case *content.DebunkCase
	Step int
}

func (*DebunkState) Kind() Kind { return KindDebunk }

// ChatTurn is one message of an AI conversation.
type ChatTurn struct {
	Role string // "user" or "model"
	Text string
}

// ChatState holds the accumulated AI conversation history.
type ChatState struct {
	History []ChatTurn
}

func (*ChatState) Kind() Kind { return KindChat }

type sessionKey struct {
	telegramID int64
	kind       Kind
}

// SessionStore holds active dialog sessions keyed by (user, kind). Session
// state lives only in memory for the duration of a conversation; it is
// safe for concurrent access, while each session's contents are only ever
// mutated by the single in-flight handler for that user's event.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]State
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[sessionKey]State)}
}

// Get returns the active session of the given kind, or nil.
func (s *SessionStore) Get(telegramID int64, kind Kind) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionKey{telegramID, kind}]
}

// Put installs a session, silently replacing any stale one of the same kind.
func (s *SessionStore) Put(telegramID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey{telegramID, state.Kind()}] = state
}

// Delete clears the session of the given kind. Deleting an absent session
// is a no-op.
func (s *SessionStore) Delete(telegramID int64, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{telegramID, kind})
}

// ActiveKinds reports which dialog kinds the user currently has open.
func (s *SessionStore) ActiveKinds(telegramID int64) []Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kinds []Kind
	for _, k := range []Kind{KindQuiz, KindDebunk, KindChat} {
		if _, ok := s.sessions[sessionKey{telegramID, k}]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
