// File path: internal/api/chats_handler.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/files"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

const multipartMemory = 8 << 20

var errChatNotFound = &httpError{status: http.StatusNotFound, err: errors.New("chat not found")}

func (s *Server) ownedChat(ctx context.Context, id string) (*sqlite.Chat, error) {
	c, err := s.orch.Store().ChatByID(ctx, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, errChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != profileFrom(ctx).UserID {
		return nil, errChatNotFound
	}
	return c, nil
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	ctx := r.Context()
	profile := profileFrom(ctx)
	store := s.orch.Store()
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		home, err := store.HomeWorkspaceID(ctx, profile.UserID)
		if err != nil {
			writeError(w, r, statusOf(err), err)
			return
		}
		workspaceID = home
	}
	ws, err := store.WorkspaceByID(ctx, workspaceID)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if ws == nil || ws.UserID != profile.UserID {
		err := &httpError{status: http.StatusNotFound, err: errors.New("workspace not found")}
		writeError(w, r, statusOf(err), err)
		return
	}
	model := req.Model
	if model == "" {
		model = ws.DefaultModel
	}
	created, err := store.CreateChat(ctx, sqlite.Chat{UserID: profile.UserID, WorkspaceID: ws.ID, Name: req.Name, Model: model})
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleChatMessages returns the history with its file items and the chat's
// attached files, loaded concurrently.
func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	store := s.orch.Store()
	var (
		messages []chat.ChatMessage
		attached *sqlite.ChatFiles
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		messages, err = store.ChatMessages(gctx, c.ID)
		return err
	})
	g.Go(func() error {
		var err error
		attached, err = store.ChatFilesByChatID(gctx, c.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if messages == nil {
		messages = []chat.ChatMessage{}
	}
	fileList := []sqlite.File{}
	if attached != nil {
		fileList = attached.Files
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":     messages,
		"files":        fileList,
		"lastSequence": chat.LastSequenceNumber(messages),
	})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	switch req.Role {
	case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
	default:
		err := badRequest("unsupported role %q", req.Role)
		writeError(w, r, statusOf(err), err)
		return
	}
	msg := chat.Message{
		ChatID:     c.ID,
		UserID:     c.UserID,
		Role:       req.Role,
		Content:    req.Content,
		Model:      req.Model,
		Plugin:     req.Plugin,
		ImagePaths: chat.StringList(req.ImagePaths),
		RAGUsed:    req.RAGUsed,
		RAGID:      req.RAGID,
	}
	if msg.Model == "" {
		msg.Model = c.Model
	}
	if req.SequenceNumber != nil {
		msg.SequenceNumber = *req.SequenceNumber
	}
	created, err := s.orch.Store().CreateMessage(r.Context(), msg, req.FileItemIDs...)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleChatFiles(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	attached, err := s.orch.Store().ChatFilesByChatID(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if attached == nil {
		writeError(w, r, http.StatusNotFound, errChatNotFound)
		return
	}
	writeJSON(w, http.StatusOK, attached)
}

// handleUploadChatFile stores a multipart "file" as retrievable chunks and
// attaches it to the chat.
func (s *Server) handleUploadChatFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.ownedChat(ctx, chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	limit := int64(s.orch.Config().UploadLimitBytes)
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory/8)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, r, status, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	upload, header, err := r.FormFile("file")
	if err != nil {
		err = badRequest("multipart field \"file\" is required")
		writeError(w, r, statusOf(err), err)
		return
	}
	defer upload.Close()

	contentType := header.Header.Get("Content-Type")
	text, err := files.ReadText(upload, header.Filename, contentType, limit)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	file, items, err := s.orch.Files().Process(ctx, sqlite.File{
		UserID:      c.UserID,
		Name:        header.Filename,
		Type:        contentType,
		Size:        header.Size,
		Description: r.FormValue("description"),
	}, text)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if _, err := s.orch.Store().CreateChatFile(ctx, sqlite.ChatFile{UserID: c.UserID, ChatID: c.ID, FileID: file.ID}); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	common.LoggerFrom(ctx).Info("api: file attached", "chat_id", c.ID, "file_id", file.ID, "items", len(items))
	writeJSON(w, http.StatusCreated, uploadResponse{File: *file, FileItems: items})
}

func (s *Server) handleCreateChatFiles(w http.ResponseWriter, r *http.Request) {
	var req chatFilesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	ctx := r.Context()
	userID := profileFrom(ctx).UserID
	checked := make(map[string]bool)
	for i := range req.Files {
		req.Files[i].UserID = userID
		chatID := req.Files[i].ChatID
		if chatID == "" || req.Files[i].FileID == "" {
			err := badRequest("every chat file needs chat_id and file_id")
			writeError(w, r, statusOf(err), err)
			return
		}
		if checked[chatID] {
			continue
		}
		if _, err := s.ownedChat(ctx, chatID); err != nil {
			writeError(w, r, statusOf(err), err)
			return
		}
		checked[chatID] = true
	}
	created, err := s.orch.Store().CreateChatFiles(ctx, req.Files)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
