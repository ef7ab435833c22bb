// File path: internal/sqlite/chats.go
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

func (s *Store) CreateChat(ctx context.Context, c Chat) (*Chat, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if c.UserID == "" || c.WorkspaceID == "" {
		return nil, errors.New("chat user and workspace required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "New Chat"
	}
	c.CreatedAt = now()
	if _, err := s.db.NamedExecContext(ctx, `INSERT INTO chats(id, user_id, workspace_id, name, model, created_at)
                VALUES(:id, :user_id, :workspace_id, :name, :model, :created_at)`, c); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return &c, nil
}

func (s *Store) ChatByID(ctx context.Context, id string) (*Chat, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var c Chat
	if err := s.db.GetContext(ctx, &c, `SELECT * FROM chats WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ChatsByWorkspaceID lists the chats of a workspace, newest first.
func (s *Store) ChatsByWorkspaceID(ctx context.Context, workspaceID string) ([]Chat, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	chats := []Chat{}
	if err := s.db.SelectContext(ctx, &chats, `SELECT * FROM chats WHERE workspace_id = ? ORDER BY created_at DESC, rowid DESC`, workspaceID); err != nil {
		return nil, fmt.Errorf("select chats: %w", err)
	}
	return chats, nil
}

// CreateMessage appends msg to its chat. A zero sequence number is replaced
// by the next free one; fileItemIDs are linked to the message.
func (s *Store) CreateMessage(ctx context.Context, msg chat.Message, fileItemIDs ...string) (*chat.Message, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if msg.ChatID == "" {
		return nil, errors.New("message chat required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Plugin == "" {
		msg.Plugin = chat.PluginNone
	}
	if msg.ImagePaths == nil {
		msg.ImagePaths = chat.StringList{}
	}
	msg.CreatedAt = now()
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if msg.SequenceNumber == 0 {
			if err := tx.GetContext(ctx, &msg.SequenceNumber, `SELECT COALESCE(MAX(sequence_number), -1) + 1 FROM messages WHERE chat_id = ?`, msg.ChatID); err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO messages(id, chat_id, user_id, role, content, model, plugin, image_paths,
                        sequence_number, rag_used, rag_id, created_at)
                        VALUES(:id, :chat_id, :user_id, :role, :content, :model, :plugin, :image_paths,
                        :sequence_number, :rag_used, :rag_id, :created_at)`, msg); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		for _, itemID := range fileItemIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO message_file_items(message_id, file_item_id) VALUES(?, ?)`, msg.ID, itemID); err != nil {
				return fmt.Errorf("link file item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MessagesByChatID returns the chat history in sequence order.
func (s *Store) MessagesByChatID(ctx context.Context, chatID string) ([]chat.Message, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	messages := []chat.Message{}
	if err := s.db.SelectContext(ctx, &messages, `SELECT * FROM messages WHERE chat_id = ? ORDER BY sequence_number`, chatID); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return messages, nil
}

// FileItemsByMessageIDs groups the linked file items per message.
func (s *Store) FileItemsByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]chat.FileItem, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	out := make(map[string][]chat.FileItem, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	type row struct {
		MessageID string `db:"message_id"`
		chat.FileItem
	}
	query, args, err := sqlx.In(`SELECT mfi.message_id, fi.* FROM message_file_items mfi
                INNER JOIN file_items fi ON fi.id = mfi.file_item_id
                WHERE mfi.message_id IN (?)
                ORDER BY fi.created_at, fi.rowid`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("build file item query: %w", err)
	}
	rows := []row{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select file items: %w", err)
	}
	for _, r := range rows {
		out[r.MessageID] = append(out[r.MessageID], r.FileItem)
	}
	return out, nil
}

// ChatMessages loads the history of a chat in the shape the prompt builder
// consumes.
func (s *Store) ChatMessages(ctx context.Context, chatID string) ([]chat.ChatMessage, error) {
	messages, err := s.MessagesByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	items, err := s.FileItemsByMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]chat.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chat.ChatMessage{Message: m, FileItems: items[m.ID]})
	}
	return out, nil
}

// CreateFile stores a file and its items in one transaction.
func (s *Store) CreateFile(ctx context.Context, f File, items []chat.FileItem) (*File, []chat.FileItem, error) {
	if err := s.ensureReady(); err != nil {
		return nil, nil, err
	}
	if f.UserID == "" || strings.TrimSpace(f.Name) == "" {
		return nil, nil, errors.New("file user and name required")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = now()
	f.Tokens = 0
	stored := make([]chat.FileItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.FileID = f.ID
		item.UserID = f.UserID
		item.CreatedAt = f.CreatedAt
		f.Tokens += item.Tokens
		stored = append(stored, item)
	}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO files(id, user_id, name, type, size, tokens, description, created_at)
                        VALUES(:id, :user_id, :name, :type, :size, :tokens, :description, :created_at)`, f); err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		for _, item := range stored {
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO file_items(id, file_id, user_id, content, tokens, created_at)
                                VALUES(:id, :file_id, :user_id, :content, :tokens, :created_at)`, item); err != nil {
				return fmt.Errorf("insert file item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &f, stored, nil
}

func (s *Store) FileItemsByFileID(ctx context.Context, fileID string) ([]chat.FileItem, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	items := []chat.FileItem{}
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM file_items WHERE file_id = ? ORDER BY created_at, rowid`, fileID); err != nil {
		return nil, fmt.Errorf("select file items: %w", err)
	}
	return items, nil
}

// ChatFilesByChatID returns nil without error when the chat does not exist.
func (s *Store) ChatFilesByChatID(ctx context.Context, chatID string) (*ChatFiles, error) {
	c, err := s.ChatByID(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch chat files: %w", err)
	}
	files := []File{}
	if err := s.db.SelectContext(ctx, &files, `SELECT f.* FROM files f
                INNER JOIN chat_files cf ON cf.file_id = f.id
                WHERE cf.chat_id = ?
                ORDER BY cf.created_at, f.rowid`, chatID); err != nil {
		return nil, fmt.Errorf("select chat files: %w", err)
	}
	return &ChatFiles{ID: c.ID, Name: c.Name, Files: files}, nil
}

func (s *Store) CreateChatFile(ctx context.Context, cf ChatFile) (*ChatFile, error) {
	created, err := s.CreateChatFiles(ctx, []ChatFile{cf})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateChatFiles links every file in one transaction.
func (s *Store) CreateChatFiles(ctx context.Context, links []ChatFile) ([]ChatFile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []ChatFile{}, nil
	}
	created := make([]ChatFile, 0, len(links))
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, link := range links {
			if link.ChatID == "" || link.FileID == "" {
				return errors.New("chat file needs chat and file ids")
			}
			link.CreatedAt = now()
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO chat_files(user_id, chat_id, file_id, created_at)
                                VALUES(:user_id, :chat_id, :file_id, :created_at)`, link); err != nil {
				return fmt.Errorf("insert chat file: %w", err)
			}
			created = append(created, link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
