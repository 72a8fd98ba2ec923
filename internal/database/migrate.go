package database

import (
	"database/sql"
	"fmt"
)

// Schema statements are ordered; each one is idempotent so the migrator
// can be re-run safely.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		avatar TEXT,
		level INT NOT NULL DEFAULT 1,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credits (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id BIGSERIAL PRIMARY KEY,
		credit_id UUID NOT NULL REFERENCES credits(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('earn', 'spend', 'refund')),
		reason TEXT NOT NULL,
		bonus_day DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// One daily sign-in bonus per account per day. bonus_day is only set
	// on bonus rows, so regular earns are unaffected.
	`CREATE UNIQUE INDEX IF NOT EXISTS credit_transactions_bonus_day_idx
		ON credit_transactions (credit_id, bonus_day)
		WHERE bonus_day IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS credit_transactions_history_idx
		ON credit_transactions (credit_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		icon TEXT,
		parent_id UUID REFERENCES categories(id),
		sort_order INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		count INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		content TEXT NOT NULL,
		thumbnail TEXT,
		author TEXT NOT NULL,
		author_url TEXT,
		source_url TEXT NOT NULL,
		repository_url TEXT NOT NULL,
		difficulty TEXT NOT NULL DEFAULT 'beginner'
			CHECK (difficulty IN ('beginner', 'intermediate', 'advanced')),
		view_count BIGINT NOT NULL DEFAULT 0,
		favorite_count BIGINT NOT NULL DEFAULT 0,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS skill_categories (
		skill_id UUID NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (skill_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS skill_tags (
		skill_id UUID NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (skill_id, tag_id)
	)`,
}

// Migrate applies the schema to the given database.
func Migrate(db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
