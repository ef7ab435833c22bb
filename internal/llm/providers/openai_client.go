// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/stream"
)

// OpenAIConfig configures a client for an OpenAI compatible endpoint.
type OpenAIConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	// ProviderOrder pins OpenRouter provider routing.
	ProviderOrder []string
	MaxRetries    int
}

// OpenAIProvider talks to OpenAI or OpenRouter through the chat completions
// API.
type OpenAIProvider struct {
	name   string
	client openai.Client
	order  []string
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	common.Logger().Info("llm: provider configured", "provider", name, "base_url", cfg.BaseURL, "routing", cfg.ProviderOrder)
	return &OpenAIProvider{name: name, client: openai.NewClient(opts...), order: cfg.ProviderOrder}
}

func (o *OpenAIProvider) Name() string {
	return o.name
}

func (o *OpenAIProvider) params(req Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toOpenAIMessages(req.Messages, req.IncludeImages),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(req.Temperature),
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		})
	}
	return params
}

func (o *OpenAIProvider) requestOptions(req Request) []option.RequestOption {
	opts := make([]option.RequestOption, 0, len(req.Headers)+1)
	for key, value := range req.Headers {
		opts = append(opts, option.WithHeader(key, value))
	}
	if len(o.order) > 0 {
		opts = append(opts, option.WithJSONSet("provider", map[string]interface{}{"order": o.order}))
	}
	return opts
}

func (o *OpenAIProvider) Stream(ctx context.Context, req Request, sink Sink) (Result, error) {
	if len(req.Messages) == 0 {
		return Result{}, ErrNoMessages
	}
	logger := common.LoggerFrom(ctx)
	logger.Debug("llm: streaming chat completion", "provider", o.name, "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	params := o.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	events := o.client.Chat.Completions.NewStreaming(ctx, params, o.requestOptions(req)...)
	defer events.Close()

	acc := openai.ChatCompletionAccumulator{}
	callIDs := make(map[int64]string)
	done := make(map[string]bool)
	var text strings.Builder
	var calls []ToolCall

	finish := func(call ToolCall) error {
		if done[call.ID] {
			return nil
		}
		done[call.ID] = true
		calls = append(calls, call)
		telemetry.RecordToolCall(call.Name)
		return runTool(ctx, req.Tools, call, sink)
	}

	for events.Next() {
		chunk := events.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				text.WriteString(delta.Content)
				if err := sink.Text(delta.Content); err != nil {
					return Result{}, err
				}
			}
			for _, tc := range delta.ToolCalls {
				if tc.ID != "" {
					callIDs[tc.Index] = tc.ID
					if err := sink.ToolCallStart(tc.ID, tc.Function.Name); err != nil {
						return Result{}, err
					}
				}
				if tc.Function.Arguments != "" {
					if err := sink.ToolCallDelta(callIDs[tc.Index], tc.Function.Arguments); err != nil {
						return Result{}, err
					}
				}
			}
		}
		if fc, ok := acc.JustFinishedToolCall(); ok {
			call := ToolCall{ID: fc.ID, Name: fc.Name, Arguments: fc.Arguments}
			if err := finish(call); err != nil {
				return Result{}, err
			}
		}
	}
	if err := events.Err(); err != nil {
		return Result{}, o.wrapError(err)
	}

	reason := ""
	if len(acc.Choices) > 0 {
		reason = acc.Choices[0].FinishReason
		for _, tc := range acc.Choices[0].Message.ToolCalls {
			call := ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
			if err := finish(call); err != nil {
				return Result{}, err
			}
		}
	}
	usage := stream.Usage{PromptTokens: acc.Usage.PromptTokens, CompletionTokens: acc.Usage.CompletionTokens}
	result := Result{Text: text.String(), FinishReason: finishReason(reason), Usage: usage, ToolCalls: calls}
	if err := sink.FinishStep(result.FinishReason, usage, false); err != nil {
		return result, err
	}
	if err := sink.FinishMessage(result.FinishReason, usage); err != nil {
		return result, err
	}
	logger.Debug("llm: stream finished", "provider", o.name, "finish_reason", result.FinishReason, "tool_calls", len(calls), "completion_tokens", usage.CompletionTokens)
	return result, nil
}

func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req), o.requestOptions(req)...)
	if err != nil {
		common.LoggerFrom(ctx).Error("llm: chat completion failed", "provider", o.name, "model", req.Model, "error", err)
		return "", o.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", o.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("%s request failed with status %d", o.name, apiErr.StatusCode)
		}
		return &APIError{Provider: o.name, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &APIError{Provider: o.name, Err: err}
}

// toOpenAIMessages converts built messages. Without images every message is
// sent as plain text.
func toOpenAIMessages(msgs []chat.BuiltMessage, includeImages bool) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case chat.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text()))
		default:
			if includeImages && msg.HasImages() {
				out = append(out, openai.UserMessage(userParts(msg)))
				continue
			}
			out = append(out, openai.UserMessage(msg.Text()))
		}
	}
	return out
}

func userParts(msg chat.BuiltMessage) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case chat.PartText:
			parts = append(parts, openai.TextContentPart(part.Text))
		case chat.PartImageURL:
			if part.ImageURL == nil || part.ImageURL.URL == "" {
				continue
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: part.ImageURL.URL}))
		}
	}
	return parts
}
