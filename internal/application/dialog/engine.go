// Package dialog implements the conversation state machines: quiz, debunk
// investigation and AI chat. Each dialog runs as an explicit finite-state
// machine keyed by (user, kind), consuming one inbound event at a time and
// producing outbound messages plus a next state.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/economy"
	"github.com/surimil/mediabot/internal/domain/shared"
	"github.com/surimil/mediabot/internal/domain/user"
)

// XPPerCorrectAnswer is granted for each correct quiz answer.
const XPPerCorrectAnswer = 10

// Localizer renders translated strings.
type Localizer interface {
	Render(key string, lang user.Language, params map[string]string) string
}

// AIClient continues an AI conversation with one new user turn.
type AIClient interface {
	Continue(ctx context.Context, history []ChatTurn, question string, lang user.Language) (string, error)
}

// ChatQuota limits how many AI questions a user may ask per day. A nil
// quota means unlimited.
type ChatQuota interface {
	Allow(ctx context.Context, telegramID int64) (bool, error)
}

// ReplyCache caches AI replies to opening questions. A nil cache disables
// caching.
type ReplyCache interface {
	Get(ctx context.Context, lang user.Language, question string) (string, bool, error)
	Put(ctx context.Context, lang user.Language, question, reply string) error
}

// Engine drives all dialog state machines.
type Engine struct {
	sessions *SessionStore
	users    user.Repository
	catalog  content.Store
	economy  *economy.Service
	ai       AIClient
	quota    ChatQuota
	cache    ReplyCache
	events   shared.EventPublisher
	texts    Localizer
	logger   *slog.Logger

	// shuffle randomizes quiz question order. Injectable for tests; the
	// default is an unseeded uniform permutation so each run differs.
	shuffle func(n int, swap func(i, j int))
}

// Options configures optional engine collaborators.
type Options struct {
	Quota   ChatQuota
	Cache   ReplyCache
	Events  shared.EventPublisher
	Logger  *slog.Logger
	Shuffle func(n int, swap func(i, j int))
}

// NewEngine creates the dialog engine.
func NewEngine(
	sessions *SessionStore,
	users user.Repository,
	catalog content.Store,
	econ *economy.Service,
	ai AIClient,
	texts Localizer,
	opts Options,
) *Engine {
	e := &Engine{
		sessions: sessions,
		users:    users,
		catalog:  catalog,
		economy:  econ,
		ai:       ai,
		quota:    opts.Quota,
		cache:    opts.Cache,
		events:   opts.Events,
		texts:    texts,
		logger:   opts.Logger,
		shuffle:  opts.Shuffle,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.shuffle == nil {
		e.shuffle = rand.Shuffle
	}
	return e
}

// CancelAll forcibly clears every active session for the user, whatever the
// progress, and emits one confirmation per cancelled dialog.
func (e *Engine) CancelAll(ctx context.Context, telegramID int64) ([]Outbound, error) {
	profile, err := e.users.GetOrCreate(ctx, telegramID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var out []Outbound
	for _, kind := range e.sessions.ActiveKinds(telegramID) {
		e.sessions.Delete(telegramID, kind)

		var key string
		switch kind {
		case KindQuiz:
			key = "quiz_cancelled"
		case KindDebunk:
			key = "debunk_cancelled"
		case KindChat:
			key = "ai_cancelled"
		}
		out = append(out, TextMessage{Text: e.texts.Render(key, profile.Language, nil)})
	}
	return out, nil
}

// profile loads (or creates) the user's profile.
func (e *Engine) profile(ctx context.Context, telegramID int64) (*user.Profile, error) {
	p, err := e.users.GetOrCreate(ctx, telegramID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (e *Engine) publish(ctx context.Context, event shared.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event", "type", event.EventType(), "error", err)
	}
}
