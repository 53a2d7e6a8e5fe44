// Package config loads the tldr companion configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tldr/horosafe"
)

// Config is the top-level companion configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Chord     ChordConfig     `yaml:"chord"`
	Locate    LocateConfig    `yaml:"locate"`
	Sites     []SiteConfig    `yaml:"sites"`
	Pages     []PageConfig    `yaml:"pages"`
	DB        DBConfig        `yaml:"db"`
	Options   OptionsConfig   `yaml:"options"`
	Language  string          `yaml:"language"`
	Providers ProvidersConfig `yaml:"providers"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// ChordConfig is the trigger key sequence.
type ChordConfig struct {
	Sequence []string      `yaml:"sequence"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LocateConfig tunes the target locator.
type LocateConfig struct {
	MinChars int `yaml:"min_chars"`
}

// SiteConfig adds a container strategy for the listed hosts.
type SiteConfig struct {
	Name      string   `yaml:"name"`
	Hosts     []string `yaml:"hosts"`
	Container string   `yaml:"container"`
}

// PageConfig is a page to open and attach to at start.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// DBConfig locates the SQLite database.
type DBConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// OptionsConfig is the options UI listener.
type OptionsConfig struct {
	Addr string `yaml:"addr"`
}

// ProvidersConfig overrides provider endpoints.
type ProvidersConfig struct {
	OpenAIURL    string        `yaml:"openai_url"`
	AnthropicURL string        `yaml:"anthropic_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headful"
	}
	if len(c.Chord.Sequence) == 0 {
		c.Chord.Sequence = []string{"t", "l", "d", "r"}
	}
	if c.Chord.Timeout <= 0 {
		c.Chord.Timeout = time.Second
	}
	if c.Locate.MinChars <= 0 {
		c.Locate.MinChars = 100
	}
	if c.DB.Path == "" {
		c.DB.Path = "tldr.db"
	}
	if c.DB.RetentionDays <= 0 {
		c.DB.RetentionDays = 90
	}
	if c.Options.Addr == "" {
		c.Options.Addr = "127.0.0.1:8787"
	}
	if c.Providers.Timeout <= 0 {
		c.Providers.Timeout = 60 * time.Second
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

func (c *Config) validate() error {
	switch c.Browser.Stealth {
	case "", "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth: unknown mode %q", c.Browser.Stealth)
	}
	for i, s := range c.Sites {
		if s.Container == "" || len(s.Hosts) == 0 {
			return fmt.Errorf("config: sites[%d]: hosts and container are required", i)
		}
	}
	for i, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: pages[%d]: url is required", i)
		}
		if err := horosafe.ValidateURL(p.URL); err != nil {
			return fmt.Errorf("config: pages[%d]: %w", i, err)
		}
	}
	for name, u := range map[string]string{
		"providers.openai_url":    c.Providers.OpenAIURL,
		"providers.anthropic_url": c.Providers.AnthropicURL,
	} {
		if u == "" {
			continue
		}
		if err := horosafe.ValidateURL(u); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}
