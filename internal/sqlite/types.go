// File path: internal/sqlite/types.go
package sqlite

import "time"

// Workspace groups chats and carries their default chat settings.
type Workspace struct {
	ID                    string     `json:"id" db:"id"`
	UserID                string     `json:"user_id" db:"user_id"`
	Name                  string     `json:"name" db:"name"`
	Description           string     `json:"description" db:"description"`
	Instructions          string     `json:"instructions" db:"instructions"`
	IsHome                bool       `json:"is_home" db:"is_home"`
	DefaultModel          string     `json:"default_model" db:"default_model"`
	DefaultTemperature    float64    `json:"default_temperature" db:"default_temperature"`
	DefaultContextLength  int        `json:"default_context_length" db:"default_context_length"`
	IncludeProfileContext bool       `json:"include_profile_context" db:"include_profile_context"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at" db:"updated_at"`
}

// WorkspaceUpdate holds the fields a caller may change; nil means keep.
type WorkspaceUpdate struct {
	Name                  *string  `json:"name"`
	Description           *string  `json:"description"`
	Instructions          *string  `json:"instructions"`
	DefaultModel          *string  `json:"default_model"`
	DefaultTemperature    *float64 `json:"default_temperature"`
	DefaultContextLength  *int     `json:"default_context_length"`
	IncludeProfileContext *bool    `json:"include_profile_context"`
}

type Chat struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	Name        string     `json:"name" db:"name"`
	Model       string     `json:"model" db:"model"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at" db:"updated_at"`
}

// File is an uploaded document; its text lives in file items.
type File struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Type        string    `json:"type" db:"type"`
	Size        int64     `json:"size" db:"size"`
	Tokens      int       `json:"tokens" db:"tokens"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ChatFile links a file to a chat.
type ChatFile struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	FileID    string    `json:"file_id" db:"file_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChatFiles is a chat with its attached files.
type ChatFiles struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Files []File `json:"files"`
}
