// File path: internal/sqlite/profiles.go
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
)

// ProfileByToken resolves a bearer token.
func (s *Store) ProfileByToken(ctx context.Context, token string) (*chat.Profile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	var profile chat.Profile
	if err := s.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE token = ?`, token); err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

func (s *Store) ProfileByUserID(ctx context.Context, userID string) (*chat.Profile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var profile chat.Profile
	if err := s.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = ?`, userID); err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// CreateProfile stores a profile together with its home workspace. Missing
// ids and tokens are generated.
func (s *Store) CreateProfile(ctx context.Context, p chat.Profile) (*chat.Profile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Username) == "" {
		return nil, errors.New("username required")
	}
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	if p.Token == "" {
		p.Token = "pgpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if p.Plan == "" {
		p.Plan = "free"
	}
	p.CreatedAt = now()
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO profiles(user_id, username, profile_context, plan, token, created_at)
                VALUES(:user_id, :username, :profile_context, :plan, :token, :created_at)`, p); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		home := Workspace{
			ID:                    uuid.NewString(),
			UserID:                p.UserID,
			Name:                  "Home",
			IsHome:                true,
			DefaultModel:          chat.ModelPGPT35,
			DefaultTemperature:    0.5,
			DefaultContextLength:  4096,
			IncludeProfileContext: true,
			CreatedAt:             p.CreatedAt,
		}
		return insertWorkspace(ctx, tx, home)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfileContext replaces the free-form profile context.
func (s *Store) UpdateProfileContext(ctx context.Context, userID, profileContext string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET profile_context = ? WHERE user_id = ?`, profileContext, userID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
