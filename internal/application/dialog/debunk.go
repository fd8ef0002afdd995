package dialog

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/surimil/mediabot/internal/domain/shared"
	"github.com/surimil/mediabot/internal/domain/user"
)

// StartDebunk begins a debunk investigation with a random case the user has
// not yet solved. With no cases left the dialog terminates immediately.
func (e *Engine) StartDebunk(ctx context.Context, telegramID int64) ([]Outbound, error) {
	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	solved, err := e.users.SolvedCaseIDs(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("load solved cases: %w", err)
	}

	newCase, err := e.catalog.RandomUnsolvedCase(ctx, profile.Language, solved)
	if err != nil {
		return nil, fmt.Errorf("draw case: %w", err)
	}
	if newCase == nil {
		return []Outbound{TextMessage{Text: e.texts.Render("debunk_no_cases", profile.Language, nil)}}, nil
	}

	state := &DebunkState{Case: newCase}
	e.sessions.Put(telegramID, state)

	var out []Outbound
	if newCase.InitialPhoto != "" {
		out = append(out, PhotoMessage{
			Path:      newCase.InitialPhoto,
			Caption:   newCase.InitialMessage,
			ParseMode: "Markdown",
		})
	} else {
		out = append(out, TextMessage{Text: newCase.InitialMessage, ParseMode: "Markdown"})
	}
	out = append(out, e.debunkPrompt(state, profile.Language))
	return out, nil
}

// HandleDebunkAnswer processes one step answer. A wrong answer re-presents
// the same step unchanged: no penalty, unlimited retries. The final correct
// answer awards the case reward and permanently marks the case solved.
func (e *Engine) HandleDebunkAnswer(ctx context.Context, telegramID int64, messageID int, optionKey string) ([]Outbound, error) {
	state, ok := e.sessions.Get(telegramID, KindDebunk).(*DebunkState)
	if !ok {
		return nil, nil
	}

	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	lang := profile.Language

	step := state.Case.Steps[state.Step]
	optionText, known := step.Options[optionKey]
	if !known {
		return nil, nil
	}

	// The answered prompt goes away either way; feedback and the next (or
	// repeated) question replace it.
	out := []Outbound{DeleteMessage{MessageID: messageID}}

	if optionKey != step.CorrectOption {
		out = append(out, TextMessage{
			Text:      fmt.Sprintf("*%s*\n\n_%s_", optionText, step.HintWrong),
			ParseMode: "Markdown",
		})
		out = append(out, e.debunkPrompt(state, lang))
		return out, nil
	}

	out = append(out, TextMessage{
		Text:      fmt.Sprintf("*%s*\n\n_%s_", optionText, step.FeedbackOK),
		ParseMode: "Markdown",
	})

	next := state.Step + 1
	if next < len(state.Case.Steps) {
		state.Step = next
		out = append(out, e.debunkPrompt(state, lang))
		return out, nil
	}

	// Case solved: award XP and record the solve before clearing the
	// session, so a storage failure leaves the final step pending.
	reward := state.Case.Reward()
	if _, err := e.economy.GrantXP(ctx, telegramID, reward, "debunk"); err != nil {
		return nil, fmt.Errorf("award case reward: %w", err)
	}
	if err := e.users.MarkCaseSolved(ctx, telegramID, state.Case.ID); err != nil {
		return nil, fmt.Errorf("mark case solved: %w", err)
	}

	e.sessions.Delete(telegramID, KindDebunk)
	e.publish(ctx, &shared.CaseSolvedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventCaseSolved, fmt.Sprintf("user:%d", telegramID)),
		TelegramID: telegramID,
		CaseID:     state.Case.ID,
		Reward:     reward,
	})

	out = append(out,
		TextMessage{Text: state.Case.FinalMessage, ParseMode: "Markdown"},
		TextMessage{Text: e.texts.Render("debunk_xp_award", lang, map[string]string{
			"xp": strconv.Itoa(reward),
		})},
	)
	return out, nil
}

// HandleDebunkCancel discards the in-progress investigation: no XP, no
// solved-record.
func (e *Engine) HandleDebunkCancel(ctx context.Context, telegramID int64, messageID int) ([]Outbound, error) {
	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	var out []Outbound
	if messageID > 0 {
		out = append(out, DeleteMessage{MessageID: messageID})
	}

	e.sessions.Delete(telegramID, KindDebunk)
	out = append(out, TextMessage{Text: e.texts.Render("debunk_cancelled", profile.Language, nil)})
	return out, nil
}

// debunkPrompt renders the current step's question with one button per
// option plus a cancel row. Option order is stable across re-renders.
func (e *Engine) debunkPrompt(state *DebunkState, lang user.Language) TextMessage {
	step := state.Case.Steps[state.Step]

	keys := make([]string, 0, len(step.Options))
	for key := range step.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buttons := make([][]Button, 0, len(keys)+1)
	for _, key := range keys {
		buttons = append(buttons, []Button{{
			Text: step.Options[key],
			Data: Token(DomainDebunk, ActionAnswer, key),
		}})
	}
	buttons = append(buttons, []Button{{
		Text: e.texts.Render("cancel_button", lang, nil),
		Data: Token(DomainDebunk, ActionCancel, ""),
	}})

	return TextMessage{
		Text:      step.Question,
		ParseMode: "Markdown",
		Keyboard:  buttons,
	}
}
