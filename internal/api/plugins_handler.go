// File path: internal/api/plugins_handler.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	ctxbuilder "github.com/nicodishanthj/pentestgpt/internal/context"
	"github.com/nicodishanthj/pentestgpt/internal/llm"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
	"github.com/nicodishanthj/pentestgpt/internal/ratelimit"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

const unknownQuery = "Unknown query"

// rateKeyFor maps the client model onto its limit bucket.
func rateKeyFor(model string) string {
	switch model {
	case chat.ModelGPT4o:
		return ratelimit.KeyGPT4
	case chat.ModelPGPT4:
		return ratelimit.KeyPentestGPTPro
	default:
		return ratelimit.KeyPentestGPT
	}
}

func webSearchModel(model string) string {
	if model == chat.ModelPGPT4 || model == chat.ModelGPT4o {
		return chat.ModelSonarLarge
	}
	return chat.ModelSonarSmall
}

// moderateHistory merges same-role turns for mid-range moderation levels and
// otherwise only drops empty assistant messages.
func moderateHistory(msgs []chat.BuiltMessage, level float64) []chat.BuiltMessage {
	switch {
	case level == 1, level >= 0 && level <= 0.1, level >= 0.8 && level < 1:
		return prompt.FilterEmptyAssistantMessages(msgs)
	case level > 0.3 && level < 0.8:
		return prompt.HandleAssistantMessages(msgs)
	default:
		return prompt.FilterEmptyAssistantMessages(msgs)
	}
}

func (s *Server) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, "web-search", func(ctx context.Context, profile *chat.Profile) (*chatCall, error) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if len(req.Messages) == 0 {
			return nil, badRequest("messages are required")
		}
		if err := s.checkRate(ctx, profile, rateKeyFor(req.ChatSettings.Model)); err != nil {
			return nil, err
		}
		msgs := prompt.UpdateOrAddSystemMessage(req.Messages, s.orch.Prompts().PentestGPTWebSearch)
		msgs = moderateHistory(msgs, req.moderationLevel())
		return &chatCall{
			provider: llm.OpenRouter,
			request: providers.Request{
				Model:       webSearchModel(req.ChatSettings.Model),
				Messages:    msgs,
				Temperature: temperatureDefault,
				Headers:     openRouterHeaders("web-search", "web-search"),
			},
		}, nil
	})
}

func (s *Server) handleBrowser(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, "browser", func(ctx context.Context, profile *chat.Profile) (*chatCall, error) {
		var req browserRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if len(req.Messages) == 0 {
			return nil, badRequest("messages are required")
		}
		if strings.TrimSpace(req.OpenURL) == "" {
			return nil, badRequest("open_url is required")
		}
		if err := s.checkRate(ctx, profile, rateKeyFor(req.ChatSettings.Model)); err != nil {
			return nil, err
		}
		msgs := prompt.UpdateSystemMessage(req.Messages, s.orch.Prompts().GPT4oWithTools, profile.ProfileContext)
		msgs = prompt.FilterEmptyAssistantMessages(msgs)
		page, err := s.orch.Browser().Browse(ctx, req.OpenURL, tools.BrowseV1)
		if err != nil {
			return nil, err
		}
		return s.browserCall(msgs, prompt.BrowserPrompt(page, prompt.LastUserText(msgs, unknownQuery))), nil
	})
}

func (s *Server) handleBrowserV3(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, "browser-v3", func(ctx context.Context, profile *chat.Profile) (*chatCall, error) {
		var req payloadRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.OpenURL) == "" {
			return nil, badRequest("open_url is required")
		}
		if err := s.checkRate(ctx, profile, rateKeyFor(req.Payload.ChatSettings.Model)); err != nil {
			return nil, err
		}
		// The v3 browser never budgets with the retrieval chunk size.
		req.UseRAG = false
		built, _, err := s.buildMessages(ctx, profile, req)
		if err != nil {
			return nil, err
		}
		msgs := prompt.UpdateOrAddSystemMessage(built, s.orch.Prompts().PentestGPTBrowser)
		msgs = prompt.FilterEmptyAssistantMessages(msgs)
		page, err := s.orch.Browser().Browse(ctx, req.OpenURL, tools.BrowseV3)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(page, tools.FailedBrowsePrefix) {
			return nil, errors.New(page)
		}
		return s.browserCall(msgs, prompt.BrowserPromptV3(page, prompt.LastUserText(msgs, unknownQuery))), nil
	})
}

// browserCall replaces the trailing message with the page prompt.
func (s *Server) browserCall(msgs []chat.BuiltMessage, content string) *chatCall {
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	msgs = append(msgs, chat.BuiltMessage{Role: chat.RoleUser, Content: content})
	return &chatCall{
		provider: llm.OpenRouter,
		request: providers.Request{
			Model:       chat.ModelGPT4oMini,
			Messages:    msgs,
			Temperature: temperatureOpenAI,
			Headers:     openRouterHeaders("browser", "browser"),
		},
	}
}

// buildMessages loads missing images and assembles the budgeted history.
func (s *Server) buildMessages(ctx context.Context, profile *chat.Profile, req payloadRequest) ([]chat.BuiltMessage, ctxbuilder.Budget, error) {
	images, err := s.loadImages(ctx, req.ChatImages)
	if err != nil {
		return nil, ctxbuilder.Budget{}, err
	}
	msgs, budget, err := s.orch.Builder().BuildFinalMessages(ctxbuilder.Request{
		Payload: req.Payload,
		Profile: *profile,
		Images:  images,
		Plugin:  req.SelectedPlugin,
		UseRAG:  req.UseRAG,
	})
	switch {
	case errors.Is(err, ctxbuilder.ErrMessageTooLong):
		return nil, budget, &httpError{status: http.StatusRequestEntityTooLarge, err: err}
	case errors.Is(err, ctxbuilder.ErrIncompletePayload):
		return nil, budget, &httpError{status: http.StatusBadRequest, err: err}
	case err != nil:
		return nil, budget, err
	}
	return msgs, budget, nil
}
