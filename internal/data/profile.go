package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// profileRepo implements the Profile repository on sqlite.
type profileRepo struct {
	db *sql.DB
}

// NewProfileRepo opens (creating if needed) the profile database at dbPath.
func NewProfileRepo(dbPath string) (repo.ProfileRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			jid        TEXT PRIMARY KEY,
			xp         INTEGER NOT NULL DEFAULT 0,
			level      INTEGER NOT NULL DEFAULT 0,
			title      TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles(xp DESC)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &profileRepo{db: db}, nil
}

// Get returns the profile for jid, or nil when the user was never seen.
func (r *profileRepo) Get(ctx context.Context, jid string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT jid, xp, level, title
		FROM profiles
		WHERE jid = ?
	`, jid)

	var profile domain.Profile
	err := row.Scan(&profile.JID, &profile.XP, &profile.Level, &profile.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &profile, nil
}

// Upsert writes the profile keyed by identity. Repeating the same write is a
// no-op apart from the timestamp.
func (r *profileRepo) Upsert(ctx context.Context, profile *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (jid, xp, level, title, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			xp = excluded.xp,
			level = excluded.level,
			title = excluded.title,
			updated_at = excluded.updated_at
	`, profile.JID, profile.XP, profile.Level, profile.Title, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Top returns up to limit profiles ordered by XP.
func (r *profileRepo) Top(ctx context.Context, limit int) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT jid, xp, level, title
		FROM profiles
		ORDER BY xp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		var profile domain.Profile
		if err := rows.Scan(&profile.JID, &profile.XP, &profile.Level, &profile.Title); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, &profile)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (r *profileRepo) Close() error {
	return r.db.Close()
}
