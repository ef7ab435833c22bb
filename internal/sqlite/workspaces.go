// File path: internal/sqlite/workspaces.go
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrWorkspaceLimit is returned when a user already owns the maximum number
// of workspaces.
var ErrWorkspaceLimit = errors.New("workspace limit reached")

// DefaultWorkspaceLimit applies when CreateWorkspace gets a non-positive
// limit.
const DefaultWorkspaceLimit = 10

// HomeWorkspaceID returns the id of the user's home workspace.
func (s *Store) HomeWorkspaceID(ctx context.Context, userID string) (string, error) {
	if err := s.ensureReady(); err != nil {
		return "", err
	}
	var id string
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM workspaces WHERE user_id = ? AND is_home = 1`, userID); err != nil {
		return "", notFound(err)
	}
	return id, nil
}

// WorkspaceByID returns nil without error when the workspace does not exist.
func (s *Store) WorkspaceByID(ctx context.Context, id string) (*Workspace, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var ws Workspace
	if err := s.db.GetContext(ctx, &ws, `SELECT * FROM workspaces WHERE id = ?`, id); err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch workspace: %w", err)
	}
	return &ws, nil
}

func (s *Store) WorkspaceCount(ctx context.Context, userID string) (int, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM workspaces WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("count workspaces: %w", err)
	}
	return count, nil
}

// WorkspacesByUserID lists workspaces newest first.
func (s *Store) WorkspacesByUserID(ctx context.Context, userID string) ([]Workspace, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	workspaces := []Workspace{}
	if err := s.db.SelectContext(ctx, &workspaces, `SELECT * FROM workspaces WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID); err != nil {
		return nil, fmt.Errorf("select workspaces: %w", err)
	}
	return workspaces, nil
}

// CreateWorkspace inserts ws unless the user already owns limit workspaces.
func (s *Store) CreateWorkspace(ctx context.Context, ws Workspace, limit int) (*Workspace, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ws.UserID) == "" {
		return nil, errors.New("workspace user required")
	}
	if strings.TrimSpace(ws.Name) == "" {
		return nil, errors.New("workspace name required")
	}
	if limit <= 0 {
		limit = DefaultWorkspaceLimit
	}
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	ws.IsHome = false
	ws.CreatedAt = now()
	ws.UpdatedAt = nil
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM workspaces WHERE user_id = ?`, ws.UserID); err != nil {
			return fmt.Errorf("count workspaces: %w", err)
		}
		if count >= limit {
			return ErrWorkspaceLimit
		}
		return insertWorkspace(ctx, tx, ws)
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func insertWorkspace(ctx context.Context, tx *sqlx.Tx, ws Workspace) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO workspaces(id, user_id, name, description, instructions, is_home,
                default_model, default_temperature, default_context_length, include_profile_context, created_at, updated_at)
                VALUES(:id, :user_id, :name, :description, :instructions, :is_home,
                :default_model, :default_temperature, :default_context_length, :include_profile_context, :created_at, :updated_at)`, ws)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// UpdateWorkspace applies the non-nil fields of u.
func (s *Store) UpdateWorkspace(ctx context.Context, id string, u WorkspaceUpdate) (*Workspace, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, errors.New("workspace name required")
		}
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Instructions != nil {
		add("instructions", *u.Instructions)
	}
	if u.DefaultModel != nil {
		add("default_model", *u.DefaultModel)
	}
	if u.DefaultTemperature != nil {
		add("default_temperature", *u.DefaultTemperature)
	}
	if u.DefaultContextLength != nil {
		add("default_context_length", *u.DefaultContextLength)
	}
	if u.IncludeProfileContext != nil {
		add("include_profile_context", *u.IncludeProfileContext)
	}
	add("updated_at", now())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE workspaces SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	ws, err := s.WorkspaceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrNotFound
	}
	return ws, nil
}

func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}
