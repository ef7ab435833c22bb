// File path: internal/api/workspace_handler.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

var errWorkspaceLimit = &httpError{status: http.StatusForbidden, err: errors.New("Workspace limit reached")}

// ownedWorkspace loads the workspace named in the URL. Workspaces of other
// users are reported as missing.
func (s *Server) ownedWorkspace(ctx context.Context, r *http.Request) (*sqlite.Workspace, error) {
	id := chi.URLParam(r, "workspaceID")
	ws, err := s.orch.Store().WorkspaceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil || ws.UserID != profileFrom(ctx).UserID {
		return nil, &httpError{status: http.StatusNotFound, err: errors.New("workspace not found")}
	}
	return ws, nil
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.orch.Store().WorkspacesByUserID(r.Context(), profileFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (s *Server) handleHomeWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := s.orch.Store().HomeWorkspaceID(r.Context(), profileFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		err := badRequest("workspace name is required")
		writeError(w, r, statusOf(err), err)
		return
	}
	ws := sqlite.Workspace{
		UserID:                profileFrom(r.Context()).UserID,
		Name:                  strings.TrimSpace(req.Name),
		Description:           req.Description,
		Instructions:          req.Instructions,
		DefaultModel:          req.DefaultModel,
		DefaultTemperature:    0.5,
		DefaultContextLength:  req.DefaultContextLength,
		IncludeProfileContext: true,
	}
	if ws.DefaultModel == "" {
		ws.DefaultModel = chat.ModelPGPT35
	}
	if req.DefaultTemperature != nil {
		ws.DefaultTemperature = *req.DefaultTemperature
	}
	if ws.DefaultContextLength <= 0 {
		ws.DefaultContextLength = 4096
	}
	if req.IncludeProfileContext != nil {
		ws.IncludeProfileContext = *req.IncludeProfileContext
	}
	created, err := s.orch.Store().CreateWorkspace(r.Context(), ws, s.orch.Config().WorkspaceLimit)
	if errors.Is(err, sqlite.ErrWorkspaceLimit) {
		err = errWorkspaceLimit
	}
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	common.LoggerFrom(r.Context()).Info("api: workspace created", "workspace_id", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.ownedWorkspace(r.Context(), r)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.ownedWorkspace(r.Context(), r)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	var update sqlite.WorkspaceUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		err := badRequest("workspace name is required")
		writeError(w, r, statusOf(err), err)
		return
	}
	updated, err := s.orch.Store().UpdateWorkspace(r.Context(), ws.ID, update)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.ownedWorkspace(r.Context(), r)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	if ws.IsHome {
		err := &httpError{status: http.StatusForbidden, err: errors.New("the home workspace cannot be deleted")}
		writeError(w, r, statusOf(err), err)
		return
	}
	if err := s.orch.Store().DeleteWorkspace(r.Context(), ws.ID); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	ws, err := s.ownedWorkspace(r.Context(), r)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	chats, err := s.orch.Store().ChatsByWorkspaceID(r.Context(), ws.ID)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}
