// File path: internal/api/profile_handler.go
package api

import (
	"net/http"

	"github.com/nicodishanthj/pentestgpt/internal/common"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	writeJSON(w, http.StatusOK, profileResponse{Profile: *profile, IsPro: profile.IsPro()})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	profile := profileFrom(r.Context())
	if err := s.orch.Store().UpdateProfileContext(r.Context(), profile.UserID, req.ProfileContext); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	s.forgetProfile(profile)
	updated := *profile
	updated.ProfileContext = req.ProfileContext
	common.LoggerFrom(r.Context()).Info("api: profile context updated", "length", len(req.ProfileContext))
	writeJSON(w, http.StatusOK, profileResponse{Profile: updated, IsPro: updated.IsPro()})
}
