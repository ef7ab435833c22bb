// File path: internal/chat/types.go
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Model ids selected by clients.
const (
	ModelGPT4o         = "gpt-4o"
	ModelPGPT4         = "mistral-large"
	ModelPGPT35        = "mistral-medium"
	ModelGPT4oMini     = "openai/gpt-4o-mini"
	ModelMistralNemo   = "mistralai/mistral-nemo"
	ModelSonarSmall    = "perplexity/llama-3.1-sonar-small-128k-online"
	ModelSonarLarge    = "perplexity/llama-3.1-sonar-large-128k-online"
	ModelGPT4oSnapshot = "gpt-4o-2024-08-06"
)

type PluginID string

const (
	PluginNone            PluginID = "none"
	PluginWebSearch       PluginID = "websearch"
	PluginBrowser         PluginID = "browser"
	PluginCodeInterpreter PluginID = "code_interpreter"
	PluginKatana          PluginID = "katana"
	PluginCVEMap          PluginID = "cvemap"
	PluginNuclei          PluginID = "nuclei"
	PluginSubfinder       PluginID = "subfinder"
	PluginLinkFinder      PluginID = "linkfinder"
	PluginPortScanner     PluginID = "portscanner"
	PluginSSLScanner      PluginID = "sslscanner"
	PluginDNSScanner      PluginID = "dnsscanner"
	PluginSQLiExploiter   PluginID = "sqliexploiter"
	PluginWhois           PluginID = "whois"
	PluginWAFDetector     PluginID = "wafdetector"
)

var scannerPlugins = map[PluginID]struct{}{
	PluginKatana:        {},
	PluginCVEMap:        {},
	PluginNuclei:        {},
	PluginSubfinder:     {},
	PluginLinkFinder:    {},
	PluginPortScanner:   {},
	PluginSSLScanner:    {},
	PluginDNSScanner:    {},
	PluginSQLiExploiter: {},
	PluginWhois:         {},
	PluginWAFDetector:   {},
}

// IsScanner reports whether the plugin runs a security tool whose replies
// only need a short history window.
func (p PluginID) IsScanner() bool {
	_, ok := scannerPlugins[p]
	return ok
}

// Message is a persisted chat message.
type Message struct {
	ID             string     `json:"id" db:"id"`
	ChatID         string     `json:"chat_id" db:"chat_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	Role           Role       `json:"role" db:"role"`
	Content        string     `json:"content" db:"content"`
	Model          string     `json:"model" db:"model"`
	Plugin         PluginID   `json:"plugin" db:"plugin"`
	ImagePaths     StringList `json:"image_paths" db:"image_paths"`
	SequenceNumber int        `json:"sequence_number" db:"sequence_number"`
	RAGUsed        bool       `json:"rag_used" db:"rag_used"`
	RAGID          *string    `json:"rag_id" db:"rag_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at" db:"updated_at"`
}

// FileItem is one retrievable chunk of an uploaded file.
type FileItem struct {
	ID        string    `json:"id" db:"id"`
	FileID    string    `json:"file_id" db:"file_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	Tokens    int       `json:"tokens" db:"tokens"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChatMessage pairs a message with the file items retrieved for it.
type ChatMessage struct {
	Message   Message    `json:"message"`
	FileItems []FileItem `json:"fileItems"`
}

type ChatSettings struct {
	Model                 string  `json:"model"`
	Temperature           float64 `json:"temperature"`
	ContextLength         int     `json:"contextLength"`
	IncludeProfileContext bool    `json:"includeProfileContext"`
}

type ChatPayload struct {
	ChatSettings     ChatSettings  `json:"chatSettings"`
	ChatMessages     []ChatMessage `json:"chatMessages"`
	MessageFileItems []FileItem    `json:"messageFileItems"`
}

// MessageImage maps a stored image path to its inline data URL.
type MessageImage struct {
	MessageID string `json:"messageId"`
	Path      string `json:"path"`
	Base64    string `json:"base64"`
}

type Profile struct {
	UserID         string    `json:"user_id" db:"user_id"`
	Username       string    `json:"username" db:"username"`
	ProfileContext string    `json:"profile_context" db:"profile_context"`
	Plan           string    `json:"plan" db:"plan"`
	Token          string    `json:"-" db:"token"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IsPro reports whether the profile is on a paid plan.
func (p Profile) IsPro() bool {
	switch strings.ToLower(strings.TrimSpace(p.Plan)) {
	case "pro", "premium", "team":
		return true
	}
	return false
}

type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// BuiltMessage is a message in model input shape. Content is either plain
// text or a list of parts; Parts wins when non-empty.
type BuiltMessage struct {
	Role    Role
	Content string
	Parts   []ContentPart
}

type builtMessageJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m BuiltMessage) MarshalJSON() ([]byte, error) {
	var content interface{} = m.Content
	if len(m.Parts) > 0 {
		content = m.Parts
	}
	return json.Marshal(struct {
		Role    Role        `json:"role"`
		Content interface{} `json:"content"`
	}{Role: m.Role, Content: content})
}

func (m *BuiltMessage) UnmarshalJSON(data []byte) error {
	var raw builtMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = Role(strings.ToLower(string(raw.Role)))
	m.Content = ""
	m.Parts = nil
	trimmed := bytes.TrimSpace(raw.Content)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return nil
	case trimmed[0] == '"':
		return json.Unmarshal(trimmed, &m.Content)
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &m.Parts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
		return nil
	default:
		return errors.New("message content must be a string or an array of parts")
	}
}

// Text returns the message text. Part lists are joined with a space and
// image parts contribute nothing.
func (m BuiltMessage) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	texts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Type == PartText {
			texts = append(texts, part.Text)
		} else {
			texts = append(texts, "")
		}
	}
	return strings.Join(texts, " ")
}

// HasImages reports whether any part is an image.
func (m BuiltMessage) HasImages() bool {
	for _, part := range m.Parts {
		if part.Type == PartImageURL {
			return true
		}
	}
	return false
}

// LastSequenceNumber returns the highest sequence number, or 0.
func LastSequenceNumber(messages []ChatMessage) int {
	max := 0
	for _, msg := range messages {
		if msg.Message.SequenceNumber > max {
			max = msg.Message.SequenceNumber
		}
	}
	return max
}

// CloneMessages returns a copy whose part slices are independent of msgs.
func CloneMessages(msgs []BuiltMessage) []BuiltMessage {
	out := make([]BuiltMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = msg
		if len(msg.Parts) > 0 {
			out[i].Parts = append([]ContentPart(nil), msg.Parts...)
		}
	}
	return out
}
