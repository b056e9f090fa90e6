// Package openai adapts the OpenAI chat-completions SDK to the
// internal/llm.Provider capability set. Ollama's OpenAI-compatible local
// endpoint reuses this client unchanged, pointed at a local BaseURL.
package openai

import (
	"context"
	"iter"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/observability"
)

// Config is the subset of config.OpenAIConfig this client needs; kept
// distinct so the same client can be constructed for Ollama with synthetic
// values (an API key placeholder, a local BaseURL).
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client adapts the OpenAI chat-completions SDK to llm.Provider.
type Client struct {
	sdk         sdk.Client
	model       string
	temperature float64
	logger      zerolog.Logger
}

// New builds a Client. temperature applies to both Complete and Stream.
func New(cfg Config, temperature float64, httpClient *http.Client, logger zerolog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model, temperature: temperature, logger: logger}
}

func (c *Client) buildMessages(system string, messages []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, sdk.SystemMessage(system))
	}
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, sdk.AssistantMessage(m.Content))
		} else {
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

// Complete blocks until the full response is available.
func (c *Client) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(c.model),
		Messages:    c.buildMessages(system, messages),
		Temperature: sdk.Float(c.temperature),
	}
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
			Err(err).Msg("openai_completion_failed")
		return "", apperr.Wrap(apperr.UpstreamFailure, "openai chat completion", err)
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return comp.Choices[0].Message.Content, nil
}

// Stream yields content deltas as they arrive. The underlying SDK stream is
// closed as soon as the caller's range loop stops (break, return, or
// context cancellation), which aborts the in-flight HTTP request.
func (c *Client) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := sdk.ChatCompletionNewParams{
			Model:       sdk.ChatModel(c.model),
			Messages:    c.buildMessages(system, messages),
			Temperature: sdk.Float(c.temperature),
		}
		stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
				Err(err).Msg("openai_stream_failed")
			yield("", apperr.Wrap(apperr.UpstreamFailure, "openai chat stream", err))
		}
	}
}
