// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/data/orchestrator"
	"github.com/nicodishanthj/pentestgpt/internal/files"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

type Server struct {
	router   chi.Router
	orch     *orchestrator.Orchestrator
	profiles *expirable.LRU[string, *chat.Profile]
	cfg      Config
}

// Config controls authentication caching, admin access and image loading.
type Config struct {
	ProfileCacheSize int
	ProfileCacheTTL  time.Duration
	// AdminToken guards the admin endpoints; empty disables them.
	AdminToken string
	// ImageRoot resolves stored image paths that arrive without inline data.
	ImageRoot string
	// ImageConcurrency bounds parallel image reads per request.
	ImageConcurrency int
}

// DefaultConfig returns the standard configuration used when no overrides are
// provided.
func DefaultConfig() Config {
	return Config{
		ProfileCacheSize: 1024,
		ProfileCacheTTL:  time.Minute,
		ImageRoot:        filepath.Join("data", "images"),
		ImageConcurrency: 4,
	}
}

// Merge overlays the non-zero fields of override onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if override.ProfileCacheSize > 0 {
		result.ProfileCacheSize = override.ProfileCacheSize
	}
	if override.ProfileCacheTTL > 0 {
		result.ProfileCacheTTL = override.ProfileCacheTTL
	}
	if strings.TrimSpace(override.AdminToken) != "" {
		result.AdminToken = strings.TrimSpace(override.AdminToken)
	}
	if strings.TrimSpace(override.ImageRoot) != "" {
		result.ImageRoot = strings.TrimSpace(override.ImageRoot)
	}
	if override.ImageConcurrency > 0 {
		result.ImageConcurrency = override.ImageConcurrency
	}
	return result
}

func NewServer(ctx context.Context, orch *orchestrator.Orchestrator, cfg *Config) (*Server, error) {
	logger := common.LoggerFrom(ctx)
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	if orch.Store() == nil {
		return nil, fmt.Errorf("sqlite store unavailable")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	srv := &Server{
		router:   chi.NewRouter(),
		orch:     orch,
		profiles: expirable.NewLRU[string, *chat.Profile](configuration.ProfileCacheSize, nil, configuration.ProfileCacheTTL),
		cfg:      configuration,
	}
	srv.routes()
	logger.Info("api: server ready",
		"admin", configuration.AdminToken != "",
		"image_root", configuration.ImageRoot)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	r.With(s.adminOnly).Get("/api/admin/logs", s.handleLogs)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/api/chat/openai", s.handleOpenAIChat)
		r.Post("/api/chat/mistral", s.handleMistralChat)
		r.Post("/api/chat/plugins/web-search", s.handleWebSearch)
		r.Post("/api/chat/plugins/browser", s.handleBrowser)
		r.Post("/api/v3/chat/plugins/browser", s.handleBrowserV3)
		r.Post("/api/chat/build-prompt", s.handleBuildPrompt)

		r.Get("/api/profile", s.handleGetProfile)
		r.Patch("/api/profile", s.handleUpdateProfile)

		r.Route("/api/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Post("/", s.handleCreateWorkspace)
			r.Get("/home", s.handleHomeWorkspace)
			r.Get("/{workspaceID}", s.handleGetWorkspace)
			r.Patch("/{workspaceID}", s.handleUpdateWorkspace)
			r.Delete("/{workspaceID}", s.handleDeleteWorkspace)
			r.Get("/{workspaceID}/chats", s.handleListChats)
		})

		r.Route("/api/chats", func(r chi.Router) {
			r.Post("/", s.handleCreateChat)
			r.Get("/{chatID}", s.handleGetChat)
			r.Get("/{chatID}/messages", s.handleChatMessages)
			r.Post("/{chatID}/messages", s.handleCreateMessage)
			r.Get("/{chatID}/files", s.handleChatFiles)
			r.Post("/{chatID}/files", s.handleUploadChatFile)
		})
		r.Post("/api/chat-files", s.handleCreateChatFiles)
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	if level := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("level"))); level != "" {
		filtered := entries[:0:0]
		for _, entry := range entries {
			if strings.EqualFold(entry.Level, level) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []common.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError responds with {"message": ...}, the shape chat clients read.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := common.LoggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
	message := "An unexpected error occurred"
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{"message": message})
}

// statusCoder is implemented by errors that know their HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, files.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrWorkspaceLimit):
		return http.StatusForbidden
	case errors.Is(err, files.ErrEmptyFile), errors.Is(err, files.ErrUnsupportedType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// httpError attaches a status to a client facing error.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string   { return e.err.Error() }
func (e *httpError) Unwrap() error   { return e.err }
func (e *httpError) HTTPStatus() int { return e.status }

func badRequest(format string, args ...interface{}) error {
	return &httpError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
