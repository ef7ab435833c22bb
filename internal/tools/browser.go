// File path: internal/tools/browser.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/net/html"

	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// BrowseVersion selects how fetch failures are reported.
type BrowseVersion int

const (
	// BrowseV1 reports failures as a "No content could be retrieved" page.
	BrowseV1 BrowseVersion = iota + 1
	// BrowseV3 reports failures as a "Failed to browse the URL" message.
	BrowseV3
)

// FailedBrowsePrefix starts every v3 failure message.
const FailedBrowsePrefix = "Failed to browse the URL:"

// ErrReaderTokenMissing is returned when no reader token is configured and
// direct fetching is off.
var ErrReaderTokenMissing = errors.New("JINA_API_TOKEN is not set in the environment variables")

// Browser fetches page text through the Jina reader, or directly when
// configured without a token.
type Browser struct {
	readerURL   string
	token       string
	allowDirect bool
	maxLength   int
	httpClient  *http.Client
	cache       *expirable.LRU[string, string]
}

func NewBrowser(cfg config.Browser, httpClient *http.Client) *Browser {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	readerURL := strings.TrimSpace(cfg.ReaderURL)
	if readerURL == "" {
		readerURL = config.DefaultJinaReaderURL
	}
	if !strings.HasSuffix(readerURL, "/") {
		readerURL += "/"
	}
	b := &Browser{
		readerURL:   readerURL,
		token:       strings.TrimSpace(cfg.JinaToken),
		allowDirect: cfg.AllowDirect,
		maxLength:   cfg.MaxPageLength,
		httpClient:  httpClient,
	}
	if cfg.CacheSize > 0 {
		b.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return b
}

// Browse returns the page text for url. Fetch failures are folded into the
// returned text in the style of version; only a missing token is an error.
func (b *Browser) Browse(ctx context.Context, url string, version BrowseVersion) (string, error) {
	logger := common.LoggerFrom(ctx)
	url = strings.TrimSpace(url)
	if b.cache != nil {
		if content, ok := b.cache.Get(url); ok {
			telemetry.RecordBrowserCacheHit()
			logger.Debug("browser: cache hit", "url", url)
			return content, nil
		}
	}

	var (
		content string
		status  int
		err     error
	)
	switch {
	case b.token != "":
		content, status, err = b.fetchReader(ctx, url, version)
	case b.allowDirect:
		content, status, err = b.fetchDirect(ctx, url)
	default:
		logger.Error("browser: reader token missing")
		return "", ErrReaderTokenMissing
	}

	if err != nil {
		logger.Warn("browser: fetch failed", "url", url, "error", err)
		if version == BrowseV3 {
			return fmt.Sprintf("%s %s. Error: %s", FailedBrowsePrefix, url, err.Error()), nil
		}
		return noContent(url), nil
	}
	if status < 200 || status >= 300 {
		logger.Warn("browser: unexpected status", "url", url, "status", status)
		if version == BrowseV3 {
			return fmt.Sprintf("%s %s. Error: HTTP error! status: %d", FailedBrowsePrefix, url, status), nil
		}
		return fmt.Sprintf("%s HTTP status: %d", noContent(url), status), nil
	}
	if content == "" {
		logger.Warn("browser: empty content", "url", url)
		return noContent(url), nil
	}

	content = truncate(content, b.maxLength)
	if b.cache != nil {
		b.cache.Add(url, content)
	}
	return content, nil
}

func noContent(url string) string {
	return fmt.Sprintf("No content could be retrieved from the URL: %s. The webpage might be empty, unavailable, or there could be an issue with the content retrieval process.", url)
}

func (b *Browser) fetchReader(ctx context.Context, url string, version BrowseVersion) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.readerURL+url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("X-With-Generated-Alt", "true")
	if version == BrowseV3 {
		req.Header.Set("X-Timeout", "15")
	} else {
		req.Header.Set("X-No-Cache", "true")
	}
	return b.do(req, false)
}

func (b *Browser) fetchDirect(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")
	return b.do(req, true)
}

func (b *Browser) do(req *http.Request, extract bool) (string, int, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}
	if extract && strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		text, err := ExtractText(resp.Body)
		return text, resp.StatusCode, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return strings.TrimSpace(string(data)), resp.StatusCode, nil
}

// ExtractText renders the readable text of an HTML document, one block per
// line, with the title first.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var (
		title string
		lines []string
		line  strings.Builder
	)
	flush := func() {
		if text := strings.Join(strings.Fields(line.String()), " "); text != "" {
			lines = append(lines, text)
		}
		line.Reset()
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "svg", "template", "iframe":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			line.WriteString(n.Data)
			line.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}
	walk(doc)
	flush()
	if title != "" {
		lines = append([]string{"Title: " + title, ""}, lines...)
	}
	return strings.Join(lines, "\n"), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true, "footer": true,
	"li": true, "ul": true, "ol": true, "tr": true, "table": true, "br": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "blockquote": true,
	"main": true, "nav": true, "aside": true, "body": true,
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
