// File path: internal/sqlite/store_test.go
package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenWithConfig(DefaultConfig(filepath.Join(t.TempDir(), "nested", "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createProfile(t *testing.T, s *Store, name string) *chat.Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), chat.Profile{Username: name, ProfileContext: "I am " + name})
	require.NoError(t, err)
	return p
}

func TestConfigMergeAndDefaults(t *testing.T) {
	cfg := DefaultConfig("a.db").Merge(Config{MaxOpenConns: 2, BusyTimeout: time.Second})
	assert.Equal(t, "a.db", cfg.Path)
	assert.Equal(t, 2, cfg.MaxOpenConns)
	assert.Equal(t, 8, cfg.MaxIdleConns)
	assert.Equal(t, time.Second, cfg.BusyTimeout)

	t.Setenv("SQLITE_MAX_OPEN_CONNS", "3")
	t.Setenv("SQLITE_BUSY_TIMEOUT", "250ms")
	loaded, err := LoadConfig("b.db")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.MaxOpenConns)
	assert.Equal(t, 250*time.Millisecond, loaded.BusyTimeout)

	t.Setenv("SQLITE_MAX_OPEN_CONNS", "many")
	_, err = LoadConfig("b.db")
	assert.Error(t, err)

	_, err = OpenWithConfig(Config{})
	assert.Error(t, err)
}

func TestOpenFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	s, err := OpenWithConfig(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	var mode string
	require.NoError(t, s.db.GetContext(ctx, &mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)

	var foreignKeys int
	require.NoError(t, s.db.GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)

	var tables []string
	require.NoError(t, s.db.SelectContext(ctx, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name"))
	assert.Contains(t, tables, "profiles")
	assert.Contains(t, tables, "rate_limit_events")

	reopened, err := OpenWithConfig(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestProfiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProfile(t, s, "alice")
	assert.NotEmpty(t, p.UserID)
	assert.Contains(t, p.Token, "pgpt_")
	assert.Equal(t, "free", p.Plan)

	byToken, err := s.ProfileByToken(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, byToken.UserID)
	assert.Equal(t, "I am alice", byToken.ProfileContext)

	_, err = s.ProfileByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ProfileByToken(ctx, " ")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateProfileContext(ctx, p.UserID, "new context"))
	byID, err := s.ProfileByUserID(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, "new context", byID.ProfileContext)
	assert.ErrorIs(t, s.UpdateProfileContext(ctx, "missing", "x"), ErrNotFound)

	_, err = s.CreateProfile(ctx, chat.Profile{})
	assert.Error(t, err)
}

func TestWorkspaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProfile(t, s, "bob")

	homeID, err := s.HomeWorkspaceID(ctx, p.UserID)
	require.NoError(t, err)
	home, err := s.WorkspaceByID(ctx, homeID)
	require.NoError(t, err)
	require.NotNil(t, home)
	assert.True(t, home.IsHome)
	assert.True(t, home.IncludeProfileContext)

	missing, err := s.WorkspaceByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, err = s.HomeWorkspaceID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.CreateWorkspace(ctx, Workspace{UserID: p.UserID, Name: "recon"}, 3)
	require.NoError(t, err)
	second, err := s.CreateWorkspace(ctx, Workspace{UserID: p.UserID, Name: "exploit", IsHome: true}, 3)
	require.NoError(t, err)
	assert.False(t, second.IsHome)

	_, err = s.CreateWorkspace(ctx, Workspace{UserID: p.UserID, Name: "too many"}, 3)
	assert.ErrorIs(t, err, ErrWorkspaceLimit)

	count, err := s.WorkspaceCount(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, err := s.WorkspacesByUserID(ctx, p.UserID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{second.ID, first.ID, homeID}, []string{list[0].ID, list[1].ID, list[2].ID})

	name := "recon-2"
	temp := 0.2
	updated, err := s.UpdateWorkspace(ctx, first.ID, WorkspaceUpdate{Name: &name, DefaultTemperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "recon-2", updated.Name)
	assert.Equal(t, 0.2, updated.DefaultTemperature)
	require.NotNil(t, updated.UpdatedAt)

	_, err = s.UpdateWorkspace(ctx, "missing", WorkspaceUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	blank := " "
	_, err = s.UpdateWorkspace(ctx, first.ID, WorkspaceUpdate{Name: &blank})
	assert.Error(t, err)

	require.NoError(t, s.DeleteWorkspace(ctx, first.ID))
	gone, err := s.WorkspaceByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestChatsMessagesAndFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := createProfile(t, s, "carol")
	homeID, err := s.HomeWorkspaceID(ctx, p.UserID)
	require.NoError(t, err)

	c, err := s.CreateChat(ctx, Chat{UserID: p.UserID, WorkspaceID: homeID})
	require.NoError(t, err)
	assert.Equal(t, "New Chat", c.Name)

	chats, err := s.ChatsByWorkspaceID(ctx, homeID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, c.ID, chats[0].ID)

	file, items, err := s.CreateFile(ctx, File{UserID: p.UserID, Name: "notes.txt", Type: "text/plain", Size: 20}, []chat.FileItem{
		{Content: "chunk one", Tokens: 2},
		{Content: "chunk two", Tokens: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, file.Tokens)
	require.Len(t, items, 2)
	assert.Equal(t, file.ID, items[0].FileID)

	stored, err := s.FileItemsByFileID(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	ragID := "rag-1"
	user, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, UserID: p.UserID, Role: chat.RoleUser, Content: "summarize", ImagePaths: chat.StringList{"a.png"}}, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, user.SequenceNumber)
	assistant, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, UserID: p.UserID, Role: chat.RoleAssistant, Content: "done", RAGUsed: true, RAGID: &ragID})
	require.NoError(t, err)
	assert.Equal(t, 1, assistant.SequenceNumber)

	history, err := s.ChatMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "summarize", history[0].Message.Content)
	assert.Equal(t, chat.StringList{"a.png"}, history[0].Message.ImagePaths)
	assert.Equal(t, chat.PluginNone, history[0].Message.Plugin)
	require.Len(t, history[0].FileItems, 1)
	assert.Equal(t, "chunk one", history[0].FileItems[0].Content)
	assert.Empty(t, history[1].FileItems)
	assert.True(t, history[1].Message.RAGUsed)
	require.NotNil(t, history[1].Message.RAGID)
	assert.Equal(t, "rag-1", *history[1].Message.RAGID)

	none, err := s.ChatFilesByChatID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.CreateChatFile(ctx, ChatFile{UserID: p.UserID, ChatID: c.ID, FileID: file.ID})
	require.NoError(t, err)
	chatFiles, err := s.ChatFilesByChatID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, chatFiles)
	assert.Equal(t, c.ID, chatFiles.ID)
	require.Len(t, chatFiles.Files, 1)
	assert.Equal(t, "notes.txt", chatFiles.Files[0].Name)

	_, err = s.CreateChatFiles(ctx, []ChatFile{{ChatID: c.ID}})
	assert.Error(t, err)
}
