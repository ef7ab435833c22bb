// File path: internal/api/prompt_handler.go
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
)

func (s *Server) handleBuildPrompt(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	msgs, budget, err := s.buildMessages(r.Context(), profileFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, buildPromptResponse{Messages: msgs, Budget: budget})
}

// loadImages fills in inline data for images that only carry a stored path.
// Unreadable images are skipped; the builder then sends the path as is.
func (s *Server) loadImages(ctx context.Context, images []chat.MessageImage) ([]chat.MessageImage, error) {
	if len(images) == 0 {
		return nil, nil
	}
	out := make([]chat.MessageImage, len(images))
	copy(out, images)
	logger := common.LoggerFrom(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ImageConcurrency)
	for i := range out {
		if out[i].Base64 != "" || strings.TrimSpace(out[i].Path) == "" {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			encoded, err := s.readImage(out[i].Path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					logger.Warn("api: image not found", "path", out[i].Path)
					return nil
				}
				return err
			}
			out[i].Base64 = encoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readImage returns the file under the image root as a data URL.
func (s *Server) readImage(path string) (string, error) {
	rel := filepath.Clean("/" + filepath.FromSlash(path))
	data, err := os.ReadFile(filepath.Join(s.cfg.ImageRoot, rel))
	if err != nil {
		return "", err
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
