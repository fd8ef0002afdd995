// Package catalog implements the content.Store interface over immutable
// JSON files loaded once at startup.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/user"
)

// Catalog is an in-memory, read-only content store.
type Catalog struct {
	modules  map[user.Language][]content.Module
	quizzes  map[user.Language][]content.QuizQuestion
	debunks  map[user.Language][]content.DebunkCase
	stickers []content.StickerItem

	// now is injectable so day-of-week selection is testable.
	now func() time.Time

	// pick draws a random index below n.
	pick func(n int) int
}

// Option configures the catalog.
type Option func(*Catalog)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithPicker overrides random case selection.
func WithPicker(pick func(n int) int) Option {
	return func(c *Catalog) { c.pick = pick }
}

// Load reads every content file from contentDir and the sticker catalog
// from assetsDir. Expected files: modules_{ru,en}.json, quizzes_{ru,en}.json,
// debunks_{ru,en}.json and stickers.json.
func Load(contentDir, assetsDir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		modules: make(map[user.Language][]content.Module),
		quizzes: make(map[user.Language][]content.QuizQuestion),
		debunks: make(map[user.Language][]content.DebunkCase),
		now:     time.Now,
		pick:    rand.Intn,
	}

	for _, lang := range []user.Language{user.LangRU, user.LangEN} {
		var modules []content.Module
		if err := readJSON(filepath.Join(contentDir, fmt.Sprintf("modules_%s.json", lang)), &modules); err != nil {
			return nil, err
		}
		c.modules[lang] = modules

		var questions []content.QuizQuestion
		if err := readJSON(filepath.Join(contentDir, fmt.Sprintf("quizzes_%s.json", lang)), &questions); err != nil {
			return nil, err
		}
		if err := validateQuestions(lang, questions); err != nil {
			return nil, err
		}
		c.quizzes[lang] = questions

		var cases []content.DebunkCase
		if err := readJSON(filepath.Join(contentDir, fmt.Sprintf("debunks_%s.json", lang)), &cases); err != nil {
			return nil, err
		}
		if err := validateCases(lang, cases); err != nil {
			return nil, err
		}
		c.debunks[lang] = cases
	}

	if err := readJSON(filepath.Join(assetsDir, "stickers.json"), &c.stickers); err != nil {
		return nil, err
	}

	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// New builds a catalog from in-memory data. Used by tests.
func New(
	modules map[user.Language][]content.Module,
	quizzes map[user.Language][]content.QuizQuestion,
	debunks map[user.Language][]content.DebunkCase,
	stickers []content.StickerItem,
	opts ...Option,
) *Catalog {
	c := &Catalog{
		modules:  modules,
		quizzes:  quizzes,
		debunks:  debunks,
		stickers: stickers,
		now:      time.Now,
		pick:     rand.Intn,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// validateQuestions rejects questions a quiz could not render or score.
// Broken content fails startup rather than a user's session.
func validateQuestions(lang user.Language, questions []content.QuizQuestion) error {
	for i, q := range questions {
		if len(q.Options) == 0 {
			return fmt.Errorf("quizzes_%s.json: question %d has no options", lang, i)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("quizzes_%s.json: question %d: correct index %d out of range", lang, i, q.Correct)
		}
	}
	return nil
}

// validateCases rejects debunk cases that could never be solved.
func validateCases(lang user.Language, cases []content.DebunkCase) error {
	for _, dc := range cases {
		if dc.ID == "" {
			return fmt.Errorf("debunks_%s.json: case with empty id", lang)
		}
		if len(dc.Steps) == 0 {
			return fmt.Errorf("debunks_%s.json: case %s has no steps", lang, dc.ID)
		}
		for i, step := range dc.Steps {
			if _, ok := step.Options[step.CorrectOption]; !ok {
				return fmt.Errorf("debunks_%s.json: case %s step %d: correct option %q not among options", lang, dc.ID, i, step.CorrectOption)
			}
		}
	}
	return nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read content file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse content file %s: %w", path, err)
	}
	return nil
}

// TodayModule returns the lesson for the current day-of-week slot, with
// Monday as slot 0.
func (c *Catalog) TodayModule(_ context.Context, lang user.Language) (*content.Module, error) {
	modules := c.langModules(lang)

	// time.Weekday counts Sunday as 0; the content week starts on Monday.
	slot := (int(c.now().Weekday()) + 6) % 7
	if slot >= len(modules) {
		return nil, fmt.Errorf("%w: no module for day slot %d", content.ErrModuleNotFound, slot)
	}

	module := modules[slot]
	return &module, nil
}

// QuestionsForModules returns quiz questions for the given module ids in
// catalog order.
func (c *Catalog) QuestionsForModules(_ context.Context, lang user.Language, moduleIDs []int) ([]content.QuizQuestion, error) {
	wanted := make(map[int]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		wanted[id] = true
	}

	var questions []content.QuizQuestion
	for _, q := range c.langQuizzes(lang) {
		if wanted[q.ModuleID] {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// RandomUnsolvedCase draws one case uniformly from the language's pool,
// excluding already-solved case ids. Returns nil when the pool is empty.
func (c *Catalog) RandomUnsolvedCase(_ context.Context, lang user.Language, excludeIDs []string) (*content.DebunkCase, error) {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var pool []content.DebunkCase
	for _, dc := range c.langDebunks(lang) {
		if !excluded[dc.ID] {
			pool = append(pool, dc)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	drawn := pool[c.pick(len(pool))]
	return &drawn, nil
}

// StoreItems returns the sticker catalog.
func (c *Catalog) StoreItems(_ context.Context) ([]content.StickerItem, error) {
	items := make([]content.StickerItem, len(c.stickers))
	copy(items, c.stickers)
	return items, nil
}

// StickerByID looks up one catalog item.
func (c *Catalog) StickerByID(_ context.Context, id string) (*content.StickerItem, error) {
	for _, s := range c.stickers {
		if s.ID == id {
			item := s
			return &item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", content.ErrStickerNotFound, id)
}

// langModules falls back to English for unknown languages, matching the
// localization resolver.
func (c *Catalog) langModules(lang user.Language) []content.Module {
	if m, ok := c.modules[lang]; ok {
		return m
	}
	return c.modules[user.LangEN]
}

func (c *Catalog) langQuizzes(lang user.Language) []content.QuizQuestion {
	if q, ok := c.quizzes[lang]; ok {
		return q
	}
	return c.quizzes[user.LangEN]
}

func (c *Catalog) langDebunks(lang user.Language) []content.DebunkCase {
	if d, ok := c.debunks[lang]; ok {
		return d
	}
	return c.debunks[user.LangEN]
}
