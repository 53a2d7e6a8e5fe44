package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/tldr/horosafe"
)

// OpenAI defaults.
const (
	OpenAIURL   = "https://api.openai.com/v1/chat/completions"
	OpenAIModel = "gpt-3.5-turbo"
)

// ClientConfig configures a provider client.
type ClientConfig struct {
	Endpoint string        // full request URL
	Model    string
	Timeout  time.Duration // default 60s
	HTTP     *http.Client  // overrides Timeout when set
}

func (c *ClientConfig) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return &http.Client{Timeout: c.Timeout}
}

// OpenAI calls the chat completions API. Usage figures are exact.
type OpenAI struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOpenAI returns an OpenAI client; zero fields take the defaults.
func NewOpenAI(cfg ClientConfig) *OpenAI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = OpenAIURL
	}
	if cfg.Model == "" {
		cfg.Model = OpenAIModel
	}
	return &OpenAI{endpoint: cfg.Endpoint, model: cfg.Model, client: cfg.httpClient()}
}

func (o *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Summarize sends one chat completion request.
func (o *OpenAI) Summarize(ctx context.Context, req Request) (*Result, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("%w: openai", ErrMissingAPIKey)
	}
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req.Language)},
			{Role: "user", Content: Truncate(req.Text, MaxInputChars)},
		},
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: openai: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("summarize: openai: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	data, err := do(o.client, httpReq, o.Name())
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("summarize: openai: decode: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("summarize: openai: empty choices")
	}

	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	return &Result{
		Summary: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  resp.Usage.TotalTokens,
			Cost:         Cost(o.model, in, out),
			Provider:     o.Name(),
			Model:        o.model,
		},
	}, nil
}

// do executes req and returns the body of a 2xx response. Any other status
// becomes an *APIError carrying error.message from the JSON body when there
// is one.
func do(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarize: %s: POST %s: %w", provider, req.URL.Host, err)
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("summarize: %s: read: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: provider, Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}
	return data, nil
}

func errorMessage(body []byte, status int) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("API request failed with status %d", status)
}
