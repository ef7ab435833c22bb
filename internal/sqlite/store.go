// File path: internal/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nicodishanthj/pentestgpt/internal/common"
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a pooled sqlx.DB connection to the chat database.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store for the database at path with pool settings from
// the environment.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store and migrates the schema.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	cfg.applyDefaults()
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", abs, int(cfg.BusyTimeout/time.Millisecond))
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	common.Logger().Info("sqlite: store ready", "path", abs, "max_open_conns", cfg.MaxOpenConns)
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for packages that own their own tables.
func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) ensureReady() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() time.Time {
	return time.Now().UTC()
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
                user_id TEXT PRIMARY KEY,
                username TEXT NOT NULL,
                profile_context TEXT NOT NULL DEFAULT '',
                plan TEXT NOT NULL DEFAULT 'free',
                token TEXT NOT NULL UNIQUE,
                created_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS workspaces (
                id TEXT PRIMARY KEY,
                user_id TEXT NOT NULL,
                name TEXT NOT NULL,
                description TEXT NOT NULL DEFAULT '',
                instructions TEXT NOT NULL DEFAULT '',
                is_home INTEGER NOT NULL DEFAULT 0,
                default_model TEXT NOT NULL DEFAULT '',
                default_temperature REAL NOT NULL DEFAULT 0.5,
                default_context_length INTEGER NOT NULL DEFAULT 4096,
                include_profile_context INTEGER NOT NULL DEFAULT 1,
                created_at DATETIME NOT NULL,
                updated_at DATETIME,
                FOREIGN KEY(user_id) REFERENCES profiles(user_id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS chats (
                id TEXT PRIMARY KEY,
                user_id TEXT NOT NULL,
                workspace_id TEXT NOT NULL,
                name TEXT NOT NULL,
                model TEXT NOT NULL DEFAULT '',
                created_at DATETIME NOT NULL,
                updated_at DATETIME,
                FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
                id TEXT PRIMARY KEY,
                chat_id TEXT NOT NULL,
                user_id TEXT NOT NULL,
                role TEXT NOT NULL,
                content TEXT NOT NULL,
                model TEXT NOT NULL DEFAULT '',
                plugin TEXT NOT NULL DEFAULT 'none',
                image_paths TEXT NOT NULL DEFAULT '[]',
                sequence_number INTEGER NOT NULL,
                rag_used INTEGER NOT NULL DEFAULT 0,
                rag_id TEXT,
                created_at DATETIME NOT NULL,
                updated_at DATETIME,
                FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE,
                UNIQUE(chat_id, sequence_number)
        );`,
	`CREATE TABLE IF NOT EXISTS files (
                id TEXT PRIMARY KEY,
                user_id TEXT NOT NULL,
                name TEXT NOT NULL,
                type TEXT NOT NULL DEFAULT '',
                size INTEGER NOT NULL DEFAULT 0,
                tokens INTEGER NOT NULL DEFAULT 0,
                description TEXT NOT NULL DEFAULT '',
                created_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS file_items (
                id TEXT PRIMARY KEY,
                file_id TEXT NOT NULL,
                user_id TEXT NOT NULL,
                content TEXT NOT NULL,
                tokens INTEGER NOT NULL DEFAULT 0,
                created_at DATETIME NOT NULL,
                FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS chat_files (
                user_id TEXT NOT NULL,
                chat_id TEXT NOT NULL,
                file_id TEXT NOT NULL,
                created_at DATETIME NOT NULL,
                PRIMARY KEY (chat_id, file_id),
                FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE,
                FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS message_file_items (
                message_id TEXT NOT NULL,
                file_item_id TEXT NOT NULL,
                PRIMARY KEY (message_id, file_item_id),
                FOREIGN KEY(message_id) REFERENCES messages(id) ON DELETE CASCADE,
                FOREIGN KEY(file_item_id) REFERENCES file_items(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS rate_limit_events (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                user_id TEXT NOT NULL,
                limit_key TEXT NOT NULL,
                at_ms INTEGER NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_workspaces_user_created ON workspaces(user_id, created_at);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_home ON workspaces(user_id) WHERE is_home = 1;`,
	`CREATE INDEX IF NOT EXISTS idx_chats_workspace ON chats(workspace_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_sequence ON messages(chat_id, sequence_number);`,
	`CREATE INDEX IF NOT EXISTS idx_file_items_file ON file_items(file_id);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_user_key_at ON rate_limit_events(user_id, limit_key, at_ms);`,
}
