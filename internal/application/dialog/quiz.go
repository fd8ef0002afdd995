package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/surimil/mediabot/internal/domain/shared"
	"github.com/surimil/mediabot/internal/domain/user"
)

// StartQuiz begins a quiz run. The question pool is every quiz question
// whose module the user has seen in the trailing 7 days, shuffled. With no
// eligible modules the dialog terminates immediately without a session.
func (e *Engine) StartQuiz(ctx context.Context, telegramID int64) ([]Outbound, error) {
	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	seen, err := e.users.ModulesSeenSince(ctx, telegramID, 7)
	if err != nil {
		return nil, fmt.Errorf("load seen modules: %w", err)
	}
	if len(seen) == 0 {
		return []Outbound{TextMessage{Text: e.texts.Render("quiz_no_modules", profile.Language, nil)}}, nil
	}

	questions, err := e.catalog.QuestionsForModules(ctx, profile.Language, seen)
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	if len(questions) == 0 {
		return []Outbound{TextMessage{Text: e.texts.Render("quiz_no_modules", profile.Language, nil)}}, nil
	}

	e.shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	state := &QuizState{Questions: questions}
	e.sessions.Put(telegramID, state)

	return []Outbound{
		TextMessage{Text: e.texts.Render("quiz_intro", profile.Language, nil)},
		e.quizPrompt(state, profile.Language),
	}, nil
}

// HandleQuizAnswer processes one answer button press. Presses without an
// active session, or referencing a question that is no longer pending, are
// rejected silently.
func (e *Engine) HandleQuizAnswer(ctx context.Context, telegramID int64, messageID int, payload string) ([]Outbound, error) {
	state, ok := e.sessions.Get(telegramID, KindQuiz).(*QuizState)
	if !ok {
		return nil, nil
	}

	qIndex, option, ok := parseQuizPayload(payload)
	if !ok || qIndex != state.Index {
		return nil, nil
	}

	profile, err := e.profile(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	lang := profile.Language

	question := state.Questions[state.Index]
	if option < 0 || option >= len(question.Options) {
		return nil, nil
	}

	correct := option == question.Correct
	score := state.Score
	if correct {
		score++
	}

	var verdict string
	if correct {
		verdict = e.texts.Render("quiz_correct", lang, nil)
	} else {
		verdict = e.texts.Render("quiz_incorrect", lang, map[string]string{
			"correct_answer": question.Options[question.Correct],
		})
	}

	// Retract the answered prompt so its buttons cannot fire again.
	recap := EditMessage{
		MessageID: messageID,
		Text: fmt.Sprintf("<b>%s</b>\n\n<i>%s %s</i>\n\n%s",
			question.Question,
			e.texts.Render("quiz_your_answer", lang, nil),
			question.Options[option],
			verdict,
		),
		ParseMode: "HTML",
	}

	next := state.Index + 1
	if next < len(state.Questions) {
		state.Index = next
		state.Score = score
		return []Outbound{recap, e.quizPrompt(state, lang)}, nil
	}

	// Quiz finished: persist XP before touching session state so a storage
	// failure leaves the run resumable.
	total := len(state.Questions)
	xpEarned := score * XPPerCorrectAnswer
	if xpEarned > 0 {
		if _, err := e.economy.GrantXP(ctx, telegramID, xpEarned, "quiz"); err != nil {
			return nil, fmt.Errorf("award quiz xp: %w", err)
		}
	}

	e.sessions.Delete(telegramID, KindQuiz)
	e.publish(ctx, &shared.QuizCompletedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventQuizCompleted, fmt.Sprintf("user:%d", telegramID)),
		TelegramID: telegramID,
		Score:      score,
		Total:      total,
		XPEarned:   xpEarned,
	})

	results := strings.Join([]string{
		e.texts.Render("quiz_results_title", lang, nil),
		e.texts.Render("quiz_results_score", lang, map[string]string{
			"score": strconv.Itoa(score),
			"total": strconv.Itoa(total),
		}),
		e.texts.Render("quiz_results_xp", lang, map[string]string{
			"xp": strconv.Itoa(xpEarned),
		}),
	}, "\n")

	return []Outbound{recap, TextMessage{Text: results}}, nil
}

// quizPrompt renders the currently pending question with one button per
// option. The token carries the question index so stale presses from an
// earlier question are detectable.
func (e *Engine) quizPrompt(state *QuizState, lang user.Language) TextMessage {
	question := state.Questions[state.Index]

	title := e.texts.Render("quiz_question_title", lang, map[string]string{
		"current": strconv.Itoa(state.Index + 1),
		"total":   strconv.Itoa(len(state.Questions)),
	})

	buttons := make([][]Button, 0, len(question.Options))
	for i, option := range question.Options {
		buttons = append(buttons, []Button{{
			Text: option,
			Data: Token(DomainQuiz, ActionAnswer, fmt.Sprintf("%d_%d", state.Index, i)),
		}})
	}

	return TextMessage{
		Text:      fmt.Sprintf("%s\n\n<b>%s</b>", title, question.Question),
		ParseMode: "HTML",
		Keyboard:  buttons,
	}
}

// parseQuizPayload splits a "questionIndex_optionIndex" token payload.
func parseQuizPayload(payload string) (qIndex, option int, ok bool) {
	idx, opt, found := strings.Cut(payload, "_")
	if !found {
		return 0, 0, false
	}
	qIndex, err := strconv.Atoi(idx)
	if err != nil {
		return 0, 0, false
	}
	option, err = strconv.Atoi(opt)
	if err != nil {
		return 0, 0, false
	}
	return qIndex, option, true
}
