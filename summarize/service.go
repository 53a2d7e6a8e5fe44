package summarize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/tldr/settings"
)

// Config configures a Service.
type Config struct {
	Settings  settings.Source
	OpenAI    Provider // default NewOpenAI(ClientConfig{})
	Anthropic Provider // default NewAnthropic(ClientConfig{})
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.OpenAI == nil {
		c.OpenAI = NewOpenAI(ClientConfig{})
	}
	if c.Anthropic == nil {
		c.Anthropic = NewAnthropic(ClientConfig{})
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service picks the provider named by the current settings for each call.
type Service struct {
	cfg Config
}

// NewService returns a Service. Settings is required.
func NewService(cfg Config) (*Service, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("summarize: Settings is required")
	}
	cfg.defaults()
	return &Service{cfg: cfg}, nil
}

// Summarize reads the settings, then makes exactly one provider call.
func (s *Service) Summarize(ctx context.Context, text, lang string) (*Result, error) {
	st, err := s.cfg.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarize: settings: %w", err)
	}
	p := s.provider(st.Provider)
	key := st.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, p.Name())
	}

	lang = Language(lang)
	s.cfg.Logger.Debug("summarize: request", "provider", p.Name(), "chars", len(text), "lang", lang)
	res, err := p.Summarize(ctx, Request{Text: text, Language: lang, APIKey: key})
	if err != nil {
		return nil, err
	}
	s.cfg.Logger.Debug("summarize: done", "provider", p.Name(),
		"tokens", res.Usage.TotalTokens, "cost", res.Usage.Cost, "estimate", res.Estimate)
	return res, nil
}

// ShowCost reports the current show-cost flag; errors read as true.
func (s *Service) ShowCost(ctx context.Context) bool {
	st, err := s.cfg.Settings.Get(ctx)
	if err != nil {
		return true
	}
	return st.ShowCost
}

// Provider names the provider the next Summarize call would use, or ""
// when the settings cannot be read.
func (s *Service) Provider(ctx context.Context) string {
	st, err := s.cfg.Settings.Get(ctx)
	if err != nil {
		return ""
	}
	return s.provider(st.Provider).Name()
}

// Any provider other than anthropic falls through to OpenAI.
func (s *Service) provider(name string) Provider {
	if name == settings.ProviderAnthropic {
		return s.cfg.Anthropic
	}
	return s.cfg.OpenAI
}
