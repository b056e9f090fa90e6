// Package google adapts the google.golang.org/genai SDK to the
// internal/llm.Provider capability set.
package google

import (
	"context"
	"iter"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/observability"
)

// Client adapts genai to llm.Provider.
type Client struct {
	client      *genai.Client
	model       string
	temperature float64
	logger      zerolog.Logger
}

// New builds a Client backed by a genai client configured from cfg.
func New(cfg config.GoogleConfig, temperature float64, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSuffix(cfg.BaseURL, "/"); base != "" {
		httpOpts.BaseURL = base + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "init google genai client", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{client: client, model: model, temperature: temperature, logger: logger}, nil
}

func toContents(system string, messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages)+1)
	if system != "" {
		contents = append(contents, genai.NewContentFromText(system, genai.RoleUser))
	}
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func textFrom(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// Complete blocks until the full response is available.
func (c *Client) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(c.temperature))}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(system, messages), config)
	if err != nil {
		c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
			Err(err).Msg("google_generate_content_failed")
		return "", apperr.Wrap(apperr.UpstreamFailure, "google generate content", err)
	}
	return textFrom(resp), nil
}

// Stream yields content deltas as they arrive, consuming genai's own
// iter.Seq2-shaped GenerateContentStream directly.
func (c *Client) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		config := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(c.temperature))}
		stream := c.client.Models.GenerateContentStream(ctx, c.model, toContents(system, messages), config)
		for resp, err := range stream {
			if err != nil {
				c.logger.Warn().Str("model", c.model).Str("system", observability.RedactString(system)).
					Err(err).Msg("google_generate_content_stream_failed")
				yield("", apperr.Wrap(apperr.UpstreamFailure, "google generate content stream", err))
				return
			}
			if chunk := textFrom(resp); chunk != "" {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}
