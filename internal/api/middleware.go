// File path: internal/api/middleware.go
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

type profileKey struct{}

// requestLogger stores a logger tagged with the request id on the context
// and logs each request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := common.Logger().With("request_id", middleware.GetReqID(r.Context()))
		ctx := common.WithLogger(r.Context(), logger)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur", time.Since(start), "remote", r.RemoteAddr)
	})
}

// authenticate resolves the bearer token to a profile. Lookups are cached
// briefly so streaming clients do not hit the database on every request.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, errors.New("Unauthorized"))
			return
		}
		profile, ok := s.profiles.Get(token)
		if !ok {
			found, err := s.orch.Store().ProfileByToken(r.Context(), token)
			if errors.Is(err, sqlite.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, errors.New("Unauthorized"))
				return
			}
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			profile = found
			s.profiles.Add(token, profile)
		}
		ctx := context.WithValue(r.Context(), profileKey{}, profile)
		ctx = common.WithLogger(ctx, common.LoggerFrom(ctx).With("user_id", profile.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly requires the configured admin token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, r, http.StatusForbidden, errors.New("admin access is disabled"))
			return
		}
		token := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, r, http.StatusUnauthorized, errors.New("Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// forgetProfile drops a cached profile after it changed.
func (s *Server) forgetProfile(p *chat.Profile) {
	if p != nil && p.Token != "" {
		s.profiles.Remove(p.Token)
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func profileFrom(ctx context.Context) *chat.Profile {
	p, _ := ctx.Value(profileKey{}).(*chat.Profile)
	if p == nil {
		return &chat.Profile{}
	}
	return p
}
