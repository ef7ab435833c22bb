// File path: internal/files/files.go
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 200
)

var (
	ErrEmptyFile       = errors.New("file has no text content")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
)

// Store persists a file with its items.
type Store interface {
	CreateFile(ctx context.Context, f sqlite.File, items []chat.FileItem) (*sqlite.File, []chat.FileItem, error)
}

// Processor turns uploaded documents into retrievable file items.
type Processor struct {
	store    Store
	counter  tokens.Counter
	splitter textsplitter.TextSplitter
}

func NewProcessor(store Store, counter tokens.Counter, chunkSize, overlap int) *Processor {
	if counter == nil {
		counter = tokens.Default()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}
	return &Processor{
		store:   store,
		counter: counter,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Split returns the non-blank chunks of text.
func (p *Processor) Split(text string) ([]string, error) {
	chunks, err := p.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// Process splits text, counts tokens per chunk and stores the file.
func (p *Processor) Process(ctx context.Context, f sqlite.File, text string) (*sqlite.File, []chat.FileItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyFile
	}
	chunks, err := p.Split(text)
	if err != nil {
		return nil, nil, err
	}
	items := make([]chat.FileItem, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, chat.FileItem{Content: c, Tokens: p.counter.Count(c)})
	}
	stored, storedItems, err := p.store.CreateFile(ctx, f, items)
	if err != nil {
		return nil, nil, err
	}
	common.LoggerFrom(ctx).Info("files: processed", "file_id", stored.ID, "name", stored.Name, "chunks", len(storedItems), "tokens", stored.Tokens)
	return stored, storedItems, nil
}

// ReadText reads at most limit bytes of r and returns its text. HTML is
// reduced to its visible text; other content must be valid UTF-8.
func ReadText(r io.Reader, name, contentType string, limit int64) (string, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	if isHTML(name, contentType) {
		return tools.ExtractText(bytes.NewReader(data))
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", ErrUnsupportedType
	}
	return string(data), nil
}

func isHTML(name, contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/html" {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
