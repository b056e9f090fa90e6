// Package anthropic adapts the anthropic-sdk-go Messages API to the
// internal/llm.Provider capability set.
package anthropic

import (
	"context"
	"iter"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/observability"
)

const defaultMaxTokens int64 = 1024

// Client adapts the Anthropic Messages API to llm.Provider.
type Client struct {
	sdk         sdk.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      zerolog.Logger
}

// New builds a Client configured from cfg.
func New(cfg config.AnthropicConfig, temperature float64, httpClient *http.Client, logger zerolog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := cfg.Model
	if model == "" {
		model = string(sdk.ModelClaude3_7SonnetLatest)
	}
	return &Client{
		sdk:         sdk.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   defaultMaxTokens,
		logger:      logger,
	}
}

func toMessages(messages []llm.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		} else {
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return out
}

func textFrom(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var out string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// Complete blocks until the full response is available.
func (c *Client) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		Messages:    toMessages(messages),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
			Err(err).Msg("anthropic_message_create_failed")
		return "", apperr.Wrap(apperr.UpstreamFailure, "anthropic message create", err)
	}
	return textFrom(resp), nil
}

// Stream yields content deltas as they arrive.
func (c *Client) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := sdk.MessageNewParams{
			Model:       sdk.Model(c.model),
			Messages:    toMessages(messages),
			MaxTokens:   c.maxTokens,
			Temperature: sdk.Float(c.temperature),
		}
		if system != "" {
			params.System = []sdk.TextBlockParam{{Text: system}}
		}

		stream := c.sdk.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent); ok {
				if textDelta, ok := delta.Delta.AsAny().(sdk.TextDelta); ok && textDelta.Text != "" {
					if !yield(textDelta.Text, nil) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
				Err(err).Msg("anthropic_message_stream_failed")
			yield("", apperr.Wrap(apperr.UpstreamFailure, "anthropic message stream", err))
		}
	}
}
