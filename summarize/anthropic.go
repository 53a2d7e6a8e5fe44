package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Anthropic defaults.
const (
	AnthropicURL     = "https://api.anthropic.com/v1/messages"
	AnthropicModel   = "claude-3-haiku-20240307"
	AnthropicVersion = "2023-06-01"
)

// Anthropic calls the messages API. The API's usage block is ignored and
// token counts are estimated from character counts.
type Anthropic struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewAnthropic returns an Anthropic client; zero fields take the defaults.
func NewAnthropic(cfg ClientConfig) *Anthropic {
	if cfg.Endpoint == "" {
		cfg.Endpoint = AnthropicURL
	}
	if cfg.Model == "" {
		cfg.Model = AnthropicModel
	}
	return &Anthropic{endpoint: cfg.Endpoint, model: cfg.Model, client: cfg.httpClient()}
}

func (a *Anthropic) Name() string { return "anthropic" }

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Summarize sends one messages request.
func (a *Anthropic) Summarize(ctx context.Context, req Request) (*Result, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic", ErrMissingAPIKey)
	}
	input := Truncate(req.Text, MaxInputChars)
	body, err := json.Marshal(messagesRequest{
		Model:       a.model,
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
		System:      SystemPrompt(req.Language),
		Messages:    []chatMessage{{Role: "user", Content: input}},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: anthropic: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("summarize: anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", AnthropicVersion)

	data, err := do(a.client, httpReq, a.Name())
	if err != nil {
		return nil, err
	}

	var resp messagesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("summarize: anthropic: decode: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("summarize: anthropic: empty content")
	}

	text := resp.Content[0].Text
	in, out := EstimateTokens(input), EstimateTokens(text)
	return &Result{
		Summary: strings.TrimSpace(text),
		Usage: Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
			Cost:         Cost(a.model, in, out),
			Provider:     a.Name(),
			Model:        a.model,
		},
		Estimate: true,
	}, nil
}
