package postgres

import (
	"context"
	"fmt"
)

const migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    telegram_id BIGINT PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    language_code VARCHAR(5) NOT NULL DEFAULT 'ru',
    xp INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_language CHECK (language_code IN ('ru', 'en')),
    CONSTRAINT valid_xp CHECK (xp >= 0)
);
`

const migration002SeenModules = `
CREATE TABLE IF NOT EXISTS seen_modules (
    telegram_id BIGINT NOT NULL REFERENCES users(telegram_id),
    module_id INTEGER NOT NULL,
    seen_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (telegram_id, module_id)
);

CREATE INDEX IF NOT EXISTS idx_seen_modules_seen_at ON seen_modules(telegram_id, seen_at);
`

const migration003SolvedCases = `
CREATE TABLE IF NOT EXISTS solved_cases (
    telegram_id BIGINT NOT NULL REFERENCES users(telegram_id),
    case_id VARCHAR(64) NOT NULL,
    solved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (telegram_id, case_id)
);
`

// Migrate applies the schema. Every statement is idempotent, so running it
// on every startup is safe.
func Migrate(ctx context.Context, conn *Connection) error {
	migrations := []struct {
		name string
		sql  string
	}{
		{"001_users", migration001Users},
		{"002_seen_modules", migration002SeenModules},
		{"003_solved_cases", migration003SolvedCases},
	}

	for _, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("postgres: migration %s failed: %w", m.name, err)
		}
	}
	return nil
}
