// File path: internal/api/chat_handler.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/llm"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
	"github.com/nicodishanthj/pentestgpt/internal/rag"
	"github.com/nicodishanthj/pentestgpt/internal/ratelimit"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

const (
	temperatureDefault = 0.4
	temperatureNemo    = 0.3
	temperatureOpenAI  = 0.5
)

// chatCall is a prepared model request and the data parts sent before it.
type chatCall struct {
	provider string
	request  providers.Request
	data     []interface{}
}

type prepareFunc func(ctx context.Context, profile *chat.Profile) (*chatCall, error)

// serveChat prepares a model call and streams its output. Errors raised
// before the first part are answered as JSON with their status.
func (s *Server) serveChat(w http.ResponseWriter, r *http.Request, route string, prepare prepareFunc) {
	start := time.Now()
	ctx, end := telemetry.StartSpan(r.Context(), "chat."+route)
	r = r.WithContext(ctx)
	logger := common.LoggerFrom(ctx)
	profile := profileFrom(ctx)

	call, err := prepare(ctx, profile)
	if err != nil {
		writeError(w, r, statusOf(err), err)
		telemetry.RecordChatRequest(route, time.Since(start), err)
		end("error", err)
		return
	}
	if call.request.MaxTokens <= 0 {
		call.request.MaxTokens = providers.DefaultMaxTokens
	}

	sink := newStreamSink(w, r)
	if call.data != nil {
		_ = sink.Data(call.data...)
	}
	provider := s.orch.Providers().Get(call.provider)
	result, err := provider.Stream(ctx, call.request, sink)
	if err != nil {
		if sink.Started() {
			logger.Error("api: stream failed", "route", route, "provider", provider.Name(), "error", err)
		}
		sink.Fail(err)
	} else {
		sink.Finish()
	}
	telemetry.RecordChatRequest(route, time.Since(start), err)
	end("provider", provider.Name(), "model", call.request.Model, "finish", result.FinishReason, "tool_calls", len(result.ToolCalls))
}

// checkRate applies the per user limit for key.
func (s *Server) checkRate(ctx context.Context, profile *chat.Profile, key string) error {
	return s.orch.Limiter().Check(ctx, profile.UserID, key, profile.IsPro())
}

func openRouterHeaders(referer, title string) map[string]string {
	return map[string]string{
		"HTTP-Referer": "https://pentestgpt.com/" + referer,
		"X-Title":      title,
	}
}

func (s *Server) handleOpenAIChat(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, "openai", func(ctx context.Context, profile *chat.Profile) (*chatCall, error) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if len(req.Messages) == 0 {
			return nil, badRequest("messages are required")
		}
		if err := s.checkRate(ctx, profile, ratelimit.KeyGPT4); err != nil {
			return nil, err
		}
		msgs := prompt.UpdateSystemMessage(req.Messages, s.orch.Prompts().GPT4oWithTools, profile.ProfileContext)
		msgs = prompt.FilterEmptyAssistantMessages(msgs)
		msgs = prompt.ReplaceWordsInLastUserMessage(msgs, prompt.DefaultWordReplacements)
		return &chatCall{
			provider: llm.OpenAI,
			request: providers.Request{
				Model:         chat.ModelGPT4oSnapshot,
				Messages:      msgs,
				Temperature:   temperatureOpenAI,
				Tools:         tools.ForOpenAI(s.orch.Executor(), profile.UserID),
				IncludeImages: true,
			},
		}, nil
	})
}

func (s *Server) handleMistralChat(w http.ResponseWriter, r *http.Request) {
	s.serveChat(w, r, "mistral", func(ctx context.Context, profile *chat.Profile) (*chatCall, error) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		if len(req.Messages) < 2 {
			return nil, badRequest("messages must include the user message and an assistant placeholder")
		}
		pro := req.ChatSettings.Model == chat.ModelPGPT4
		models := s.orch.Config().Models
		model, rateKey := models.Default, ratelimit.KeyPentestGPT
		if pro {
			model, rateKey = models.Pro, ratelimit.KeyPentestGPTPro
		}
		if err := s.checkRate(ctx, profile, rateKey); err != nil {
			return nil, err
		}
		temperature := temperatureDefault
		if model == chat.ModelMistralNemo {
			temperature = temperatureNemo
		}
		headers := openRouterHeaders(req.ChatSettings.Model, req.ChatSettings.Model)

		level := req.moderationLevel()
		lowModeration := !pro && level >= 0 && level <= 0.3
		prompts := s.orch.Prompts()
		system := prompts.PentestGPTChat
		if lowModeration {
			system = prompts.PGPT35WithTools
		}
		msgs := prompt.UpdateSystemMessage(req.Messages, system, profile.ProfileContext)

		ragUsed, ragID := false, (*string)(nil)
		client := s.orch.RAG()
		if !req.IsRetrieval && client.Eligible(msgs, req.IsRagEnabled, req.IsContinuation) {
			question := rag.StandaloneQuestion(ctx, s.orch.Providers().Get(llm.OpenRouter), rag.QuestionRequest{
				Messages:     msgs,
				Target:       msgs[len(msgs)-2].Text(),
				Model:        models.StandaloneQuestion,
				SystemPrompt: prompts.PentestGPTCurrentDateOnly,
				Headers:      headers,
				TopK:         client.TopK(),
				MaxLength:    client.MaxMessageLength(),
			})
			result, err := client.Query(ctx, question.Standalone, question.Atomic, client.TopK())
			if err != nil {
				common.LoggerFrom(ctx).Warn("api: rag enrichment skipped", "error", err)
			} else {
				if result.Content != "" {
					ragUsed = true
					msgs[0] = chat.BuiltMessage{Role: chat.RoleSystem, Content: prompt.RAGSystemMessage(prompts.RAG, result.Content)}
				}
				ragID = result.ResultID
			}
		}

		if lowModeration {
			model = chat.ModelGPT4oMini
		}
		msgs = prompt.FilterEmptyAssistantMessages(msgs)

		return &chatCall{
			provider: llm.OpenRouter,
			request: providers.Request{
				Model:       model,
				Messages:    msgs,
				Temperature: temperature,
				Headers:     headers,
				Tools:       tools.ForMistral(model, s.orch.Executor(), profile.UserID),
			},
			data: []interface{}{map[string]interface{}{"ragUsed": ragUsed, "ragId": ragID}},
		}, nil
	})
}
