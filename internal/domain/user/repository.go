package user

import "context"

// Repository is the persistence contract for user profiles and their
// learning history. Implementations must make ChangeXP an atomic increment:
// concurrent XP changes for the same user must not lose updates.
type Repository interface {
	// GetOrCreate returns the profile for telegramID, creating it with the
	// default language and zero XP on first interaction.
	GetOrCreate(ctx context.Context, telegramID int64, displayName string) (*Profile, error)

	// SetLanguage updates the preferred language.
	SetLanguage(ctx context.Context, telegramID int64, lang Language) error

	// ChangeXP atomically adds delta (which may be negative) to the XP
	// balance and returns the new balance.
	ChangeXP(ctx context.Context, telegramID int64, delta int) (int, error)

	// MarkModuleSeen upserts a seen-module record keyed by (user, module).
	// Marking the same module twice is idempotent.
	MarkModuleSeen(ctx context.Context, telegramID int64, moduleID int) error

	// ModulesSeenSince returns the distinct module ids the user has seen in
	// the trailing number of days.
	ModulesSeenSince(ctx context.Context, telegramID int64, days int) ([]int, error)

	// MarkCaseSolved inserts a solved-case record if absent. An existing
	// record is left untouched so a case can only be credited once.
	MarkCaseSolved(ctx context.Context, telegramID int64, caseID string) error

	// SolvedCaseIDs returns all case ids the user has ever solved.
	SolvedCaseIDs(ctx context.Context, telegramID int64) ([]string, error)

	// ListAll returns every known profile, used by the daily broadcast.
	ListAll(ctx context.Context) ([]*Profile, error)
}
