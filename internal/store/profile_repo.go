package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/models"
)

// ProfileRepo provides access to the "profiles" table.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get returns the profile of userID.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*models.Profile, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, email, full_name, avatar_url, created_at, updated_at FROM profiles WHERE id = ?`), userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return p, nil
}

// Upsert creates or replaces the writable fields of userID's profile.
func (r *ProfileRepo) Upsert(ctx context.Context, userID string, in models.ProfileUpsert) (*models.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: upsert profile: user_id is required")
	}
	ts := now()
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
		RETURNING id, email, full_name, avatar_url, created_at, updated_at`),
		userID, in.Email, nullString(in.FullName), nullString(in.AvatarURL), ts, ts,
	)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("store: upsert profile: %w", err)
	}
	return p, nil
}

func scanProfile(s rowScanner) (*models.Profile, error) {
	var (
		p                   models.Profile
		fullName, avatarURL sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Email, &fullName, &avatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.FullName = ptrString(fullName)
	p.AvatarURL = ptrString(avatarURL)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
