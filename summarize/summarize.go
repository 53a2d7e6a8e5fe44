// Package summarize turns a block of page text into a short summary through
// one of the hosted chat providers, and accounts for the tokens it cost.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// MaxInputChars is the longest text sent to a provider before truncation.
const MaxInputChars = 4000

// MaxOutputTokens bounds the summary length on both providers.
const MaxOutputTokens = 500

// Temperature used for every request.
const Temperature = 0.3

// ErrMissingAPIKey is returned when the selected provider has no key.
var ErrMissingAPIKey = errors.New("summarize: API key not set")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("summarize: %s: %s", e.Provider, e.Message)
}

// Request is one summarization call.
type Request struct {
	Text     string
	Language string
	APIKey   string
}

// Usage is the token and cost accounting of one call.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
}

// Result is a summary plus its usage. Estimate is set when the provider's
// token counts were approximated from character counts.
type Result struct {
	Summary  string `json:"summary"`
	Usage    Usage  `json:"usage"`
	Estimate bool   `json:"estimate"`
}

// Provider is a hosted chat model.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, req Request) (*Result, error)
}

// SystemPrompt is the instruction sent ahead of the page text.
func SystemPrompt(lang string) string {
	return "You are a helpful assistant that creates concise summaries of texts the user is currently reading on the internet. \n" +
		"Provide a brief TLDR summary of the text, capturing the main points in a few sentences. \n" +
		fmt.Sprintf("Your summary should be in the language specified by this locale: %q.\n", lang) +
		`Just return the summary, no other text. Never start your response with "Here's a summary of the text:", "TLDR:" or anything similar.`
}

// Truncate cuts text to max runes and appends "..." when it was longer.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i] + "..."
		}
		n++
	}
	return text
}

// Price is a per-token rate pair in dollars.
type Price struct {
	Input  float64
	Output float64
}

// Prices per model.
var Prices = map[string]Price{
	OpenAIModel:    {Input: 0.0015 / 1000, Output: 0.002 / 1000},
	AnthropicModel: {Input: 0.25 / 1_000_000, Output: 1.25 / 1_000_000},
}

// Cost prices the token counts for model, rounded to 5 decimals. Unknown
// models cost 0.
func Cost(model string, in, out int) float64 {
	p := Prices[model]
	c := float64(in)*p.Input + float64(out)*p.Output
	return math.Round(c*1e5) / 1e5
}

// EstimateTokens approximates a token count as one per four characters.
func EstimateTokens(s string) int {
	return int(math.Round(float64(utf8.RuneCountInString(s)) / 4))
}

// Language normalises a BCP 47 tag ("en-us" → "en-US"). Empty or invalid
// tags yield "en".
func Language(tag string) string {
	if tag == "" {
		return "en"
	}
	t, err := language.Parse(tag)
	if err != nil || t == language.Und {
		return "en"
	}
	return t.String()
}
