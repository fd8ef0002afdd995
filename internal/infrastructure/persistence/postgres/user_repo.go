package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/surimil/mediabot/internal/domain/user"
)

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// GetOrCreate returns the profile for telegramID, inserting it on first
// interaction. The insert races safely against concurrent first events
// from the same user: on conflict the existing row wins.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, displayName string) (*user.Profile, error) {
	query := `
		INSERT INTO users (telegram_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE
		SET display_name = CASE
			WHEN users.display_name = '' AND EXCLUDED.display_name <> ''
			THEN EXCLUDED.display_name
			ELSE users.display_name
		END
		RETURNING telegram_id, display_name, language_code, xp, created_at
	`

	row := r.conn.QueryRow(ctx, query, telegramID, displayName)
	return scanProfile(row)
}

// SetLanguage updates the preferred language.
func (r *UserRepository) SetLanguage(ctx context.Context, telegramID int64, lang user.Language) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE users SET language_code = $1 WHERE telegram_id = $2`,
		string(lang), telegramID,
	)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// ChangeXP atomically increments the XP balance. The increment happens in
// a single UPDATE statement, so concurrent changes for the same user are
// serialized by the database and no update is lost.
func (r *UserRepository) ChangeXP(ctx context.Context, telegramID int64, delta int) (int, error) {
	var balance int
	err := r.conn.QueryRow(ctx,
		`UPDATE users SET xp = xp + $1 WHERE telegram_id = $2 RETURNING xp`,
		delta, telegramID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, user.ErrNotFound
		}
		return 0, fmt.Errorf("change xp: %w", err)
	}
	return balance, nil
}

// MarkModuleSeen upserts the seen-module record keyed by (user, module),
// refreshing the seen date.
func (r *UserRepository) MarkModuleSeen(ctx context.Context, telegramID int64, moduleID int) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO seen_modules (telegram_id, module_id, seen_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (telegram_id, module_id) DO UPDATE SET seen_at = NOW()
	`, telegramID, moduleID)
	if err != nil {
		return fmt.Errorf("mark module seen: %w", err)
	}
	return nil
}

// ModulesSeenSince returns distinct module ids seen in the trailing days.
func (r *UserRepository) ModulesSeenSince(ctx context.Context, telegramID int64, days int) ([]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT module_id FROM seen_modules
		WHERE telegram_id = $1 AND seen_at >= NOW() - ($2 * INTERVAL '1 day')
	`, telegramID, days)
	if err != nil {
		return nil, fmt.Errorf("load seen modules: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan module id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkCaseSolved inserts a solved-case record if absent. First write wins;
// the solve date of an existing record is never touched.
func (r *UserRepository) MarkCaseSolved(ctx context.Context, telegramID int64, caseID string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO solved_cases (telegram_id, case_id, solved_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (telegram_id, case_id) DO NOTHING
	`, telegramID, caseID)
	if err != nil {
		return fmt.Errorf("mark case solved: %w", err)
	}
	return nil
}

// SolvedCaseIDs returns every case id the user has solved.
func (r *UserRepository) SolvedCaseIDs(ctx context.Context, telegramID int64) ([]string, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT case_id FROM solved_cases WHERE telegram_id = $1`,
		telegramID,
	)
	if err != nil {
		return nil, fmt.Errorf("load solved cases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan case id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAll returns every known profile.
func (r *UserRepository) ListAll(ctx context.Context) ([]*user.Profile, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT telegram_id, display_name, language_code, xp, created_at FROM users ORDER BY telegram_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var profiles []*user.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (*user.Profile, error) {
	var p user.Profile
	var langCode string

	if err := row.Scan(&p.TelegramID, &p.DisplayName, &langCode, &p.XP, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.Language = user.ParseLanguage(langCode)
	return &p, nil
}
