// File path: internal/tools/tools.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
)

// Tool names as the model sees them.
const (
	NameWebSearch = "webSearch"
	NamePython    = "python"
	NameBrowser   = "browser"
)

// WebSearch is resolved by the client; only the call is streamed.
func WebSearch() providers.Tool {
	return providers.Tool{
		Name:        NameWebSearch,
		Description: "Search the web for latest information",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"search": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether to perform a web search",
				},
			},
			"required": []string{"search"},
		},
	}
}

// BrowserTool is resolved by the client. urlParam is "open_url" on the mistral
// route and "url" on the openai route.
func BrowserTool(urlParam, description string) providers.Tool {
	return providers.Tool{
		Name:        NameBrowser,
		Description: description,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				urlParam: map[string]interface{}{
					"type":        "string",
					"format":      "uri",
					"description": "The URL of the webpage to browse",
				},
			},
			"required": []string{urlParam},
		},
	}
}

type pythonArgs struct {
	Packages []string `json:"packages"`
	Code     string   `json:"code"`
}

// Python runs cells server side through exec.
func Python(exec Executor, userID string) providers.Tool {
	return providers.Tool{
		Name:        NamePython,
		Description: "Runs Python code. Only one execution is allowed per request.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"packages": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of third-party packages to install using pip before running the code.",
				},
				"code": map[string]interface{}{
					"type":        "string",
					"description": "The Python code to execute in a single cell.",
				},
			},
			"required": []string{"packages", "code"},
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var args pythonArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode python arguments: %w", err)
			}
			if args.Packages == nil {
				args.Packages = []string{}
			}
			return exec.Execute(ctx, userID, args.Code, args.Packages)
		},
	}
}

// ForMistral returns the tool set of the mistral route. Only the small
// tool-calling model gets tools; every call builds a fresh one-cell guard.
func ForMistral(model string, exec Executor, userID string) []providers.Tool {
	if model != chat.ModelGPT4oMini {
		return nil
	}
	return []providers.Tool{
		WebSearch(),
		BrowserTool("open_url", "Browse a webpage and extract its text content. For HTML retrieval or more complex web scraping don't use this tool."),
		Python(NewOnceExecutor(exec), userID),
	}
}

// ForOpenAI returns the tool set of the openai route.
func ForOpenAI(exec Executor, userID string) []providers.Tool {
	return []providers.Tool{
		WebSearch(),
		BrowserTool("url", "Browse a webpage and extract its text content. For HTML retrieval or more complex web scraping, use the Python tool."),
		Python(NewOnceExecutor(exec), userID),
	}
}
