// Package content defines the immutable learning content: daily lesson
// modules, quiz questions, debunk cases and the sticker catalog.
package content

import (
	"context"
	"errors"

	"github.com/surimil/mediabot/internal/domain/user"
)

var (
	// ErrModuleNotFound is returned when no module exists for a day slot.
	ErrModuleNotFound = errors.New("content: module not found")

	// ErrStickerNotFound is returned when a sticker id is unknown.
	ErrStickerNotFound = errors.New("content: sticker not found")
)

// Module is a scheduled daily lesson. One module per day-of-week slot.
type Module struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// QuizQuestion is a single-choice question tied to a lesson module.
type QuizQuestion struct {
	ModuleID int      `json:"module_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
}

// DebunkStep is one step of a debunk investigation. Options are keyed so a
// step can have stable callback tokens regardless of display order.
type DebunkStep struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectOption string            `json:"correct_option"`
	FeedbackOK    string            `json:"feedback_correct"`
	HintWrong     string            `json:"hint_incorrect"`
}

// DebunkCase is a multi-step debunking exercise. A user solves it once,
// permanently.
type DebunkCase struct {
	ID             string       `json:"id"`
	InitialMessage string       `json:"initial_message"`
	InitialPhoto   string       `json:"initial_photo,omitempty"`
	Steps          []DebunkStep `json:"steps"`
	FinalMessage   string       `json:"final_message"`
	XPReward       int          `json:"xp_reward,omitempty"`
}

// DefaultCaseReward is awarded when a case does not declare its own reward.
const DefaultCaseReward = 25

// Reward returns the XP granted for solving the case.
func (c *DebunkCase) Reward() int {
	if c.XPReward > 0 {
		return c.XPReward
	}
	return DefaultCaseReward
}

// StickerItem is a purchasable reward-store item.
type StickerItem struct {
	ID       string                   `json:"id"`
	Names    map[user.Language]string `json:"name"`
	Price    int                      `json:"price"`
	FilePath string                   `json:"file_path"`
}

// Name returns the display name for lang, falling back to English.
func (s *StickerItem) Name(lang user.Language) string {
	if n, ok := s.Names[lang]; ok && n != "" {
		return n
	}
	return s.Names[user.LangEN]
}

// Store is the read-only lookup interface over loaded content.
type Store interface {
	// TodayModule returns the lesson for the current day-of-week slot
	// (Monday = slot 0) in the given language.
	TodayModule(ctx context.Context, lang user.Language) (*Module, error)

	// QuestionsForModules returns every quiz question whose module id is in
	// moduleIDs, in catalog order.
	QuestionsForModules(ctx context.Context, lang user.Language, moduleIDs []int) ([]QuizQuestion, error)

	// RandomUnsolvedCase draws one case at random from the language's case
	// set, excluding excludeIDs. Returns nil when none remain.
	RandomUnsolvedCase(ctx context.Context, lang user.Language, excludeIDs []string) (*DebunkCase, error)

	// StoreItems returns the sticker catalog.
	StoreItems(ctx context.Context) ([]StickerItem, error)

	// StickerByID looks up a single catalog item.
	StickerByID(ctx context.Context, id string) (*StickerItem, error)
}
