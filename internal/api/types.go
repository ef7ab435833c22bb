// File path: internal/api/types.go
package api

import (
	"github.com/nicodishanthj/pentestgpt/internal/chat"
	ctxbuilder "github.com/nicodishanthj/pentestgpt/internal/context"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
)

// chatRequest is the body of the openai, mistral and web search routes.
type chatRequest struct {
	Messages     []chat.BuiltMessage `json:"messages"`
	ChatSettings chat.ChatSettings   `json:"chatSettings"`
	// DetectedModerationLevel is absent for unmoderated clients.
	DetectedModerationLevel *float64 `json:"detectedModerationLevel"`
	IsRetrieval             bool     `json:"isRetrieval"`
	IsContinuation          bool     `json:"isContinuation"`
	IsRagEnabled            bool     `json:"isRagEnabled"`
}

// moderationLevel returns the detected level, or -1 when none was sent.
func (r chatRequest) moderationLevel() float64 {
	if r.DetectedModerationLevel == nil {
		return -1
	}
	return *r.DetectedModerationLevel
}

type browserRequest struct {
	Messages     []chat.BuiltMessage `json:"messages"`
	ChatSettings chat.ChatSettings   `json:"chatSettings"`
	OpenURL      string              `json:"open_url"`
}

type payloadRequest struct {
	Payload        chat.ChatPayload    `json:"payload"`
	ChatImages     []chat.MessageImage `json:"chatImages"`
	SelectedPlugin chat.PluginID       `json:"selectedPlugin"`
	UseRAG         bool                `json:"useRAG"`
	OpenURL        string              `json:"open_url"`
}

type buildPromptResponse struct {
	Messages []chat.BuiltMessage `json:"messages"`
	Budget   ctxbuilder.Budget   `json:"budget"`
}

type updateProfileRequest struct {
	ProfileContext string `json:"profile_context"`
}

type profileResponse struct {
	chat.Profile
	IsPro bool `json:"is_pro"`
}

type createWorkspaceRequest struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Instructions          string   `json:"instructions"`
	DefaultModel          string   `json:"default_model"`
	DefaultTemperature    *float64 `json:"default_temperature"`
	DefaultContextLength  int      `json:"default_context_length"`
	IncludeProfileContext *bool    `json:"include_profile_context"`
}

type createChatRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Model       string `json:"model"`
}

type createMessageRequest struct {
	Role           chat.Role     `json:"role"`
	Content        string        `json:"content"`
	Model          string        `json:"model"`
	Plugin         chat.PluginID `json:"plugin"`
	ImagePaths     []string      `json:"image_paths"`
	SequenceNumber *int          `json:"sequence_number"`
	RAGUsed        bool          `json:"rag_used"`
	RAGID          *string       `json:"rag_id"`
	FileItemIDs    []string      `json:"file_item_ids"`
}

type chatFilesRequest struct {
	Files []sqlite.ChatFile `json:"files"`
}

type uploadResponse struct {
	File      sqlite.File     `json:"file"`
	FileItems []chat.FileItem `json:"fileItems"`
}
