package dialog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoChatSession is returned when a chat turn arrives without an
	// open AI dialog.
	ErrNoChatSession = errors.New("dialog: no active chat session")

	// ErrChatQuotaExceeded is returned when the user is over the daily AI
	// question quota.
	ErrChatQuotaExceeded = errors.New("dialog: chat quota exceeded")
)

// StartChat opens an AI dialog with an empty conversation history. The
// dialog does not self-terminate; it continues until explicitly cancelled.
func (e *Engine) StartChat(ctx context.Context, telegramID int64) ([]Outbound, error) {
	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	e.sessions.Put(telegramID, &ChatState{})
	return []Outbound{TextMessage{Text: e.texts.Render("ai_welcome_prompt", profile.Language, nil)}}, nil
}

// HasActiveChat reports whether the user currently has an AI dialog open.
// The router uses this to decide whether free text is a question.
func (e *Engine) HasActiveChat(telegramID int64) bool {
	_, ok := e.sessions.Get(telegramID, KindChat).(*ChatState)
	return ok
}

// ChatReply sends the accumulated history plus one new user turn to the AI
// collaborator and returns its reply. On failure the history is left
// untouched and the session stays open, so the turn can simply be retried.
func (e *Engine) ChatReply(ctx context.Context, telegramID int64, question string) (string, error) {
	state, ok := e.sessions.Get(telegramID, KindChat).(*ChatState)
	if !ok {
		return "", ErrNoChatSession
	}

	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return "", err
	}

	if e.quota != nil {
		allowed, err := e.quota.Allow(ctx, telegramID)
		if err != nil {
			// A broken quota backend must not take the dialog down.
			e.logger.Warn("chat quota check failed", "telegram_id", telegramID, "error", err)
		} else if !allowed {
			return "", ErrChatQuotaExceeded
		}
	}

	// Opening questions have no history, so identical ones get identical
	// replies and can be served from cache.
	opening := len(state.History) == 0
	if opening && e.cache != nil {
		if cached, ok, err := e.cache.Get(ctx, profile.Language, question); err != nil {
			e.logger.Warn("reply cache lookup failed", "telegram_id", telegramID, "error", err)
		} else if ok {
			state.History = append(state.History,
				ChatTurn{Role: "user", Text: question},
				ChatTurn{Role: "model", Text: cached},
			)
			return cached, nil
		}
	}

	reply, err := e.ai.Continue(ctx, state.History, question, profile.Language)
	if err != nil {
		return "", fmt.Errorf("ai reply: %w", err)
	}

	if opening && e.cache != nil {
		if err := e.cache.Put(ctx, profile.Language, question, reply); err != nil {
			e.logger.Warn("reply cache store failed", "telegram_id", telegramID, "error", err)
		}
	}

	state.History = append(state.History,
		ChatTurn{Role: "user", Text: question},
		ChatTurn{Role: "model", Text: reply},
	)
	return reply, nil
}
