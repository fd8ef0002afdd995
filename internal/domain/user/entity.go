// Package user contains the user profile aggregate: identity, language
// preference, XP balance and the per-user learning history (seen modules,
// solved debunk cases).
package user

import (
	"errors"
	"time"
)

// Language is a supported interface language.
type Language string

const (
	LangRU Language = "ru"
	LangEN Language = "en"

	// DefaultLanguage is assigned to new profiles until the user picks one.
	DefaultLanguage = LangRU
)

// ParseLanguage normalizes a language code, falling back to the default for
// anything unrecognized.
func ParseLanguage(code string) Language {
	switch code {
	case "ru":
		return LangRU
	case "en":
		return LangEN
	default:
		return DefaultLanguage
	}
}

// Profile is a bot user. Created on first interaction, never deleted.
type Profile struct {
	// TelegramID is the opaque user identity.
	TelegramID int64

	// DisplayName is the Telegram username or first name at creation time.
	DisplayName string

	// Language is the preferred interface language.
	Language Language

	// XP is the experience point balance. Never negative.
	XP int

	CreatedAt time.Time
}

// SeenModule records that a user was shown a daily lesson module.
type SeenModule struct {
	TelegramID int64
	ModuleID   int
	SeenAt     time.Time
}

// SolvedCase records that a user solved a debunk case. First solve wins,
// the record is never overwritten.
type SolvedCase struct {
	TelegramID int64
	CaseID     string
	SolvedAt   time.Time
}

var (
	// ErrNotFound is returned when a profile does not exist.
	ErrNotFound = errors.New("user: profile not found")
)
