package companion

import (
	"github.com/hazyhaar/tldr/companion/internal/config"
)

// Config is the top-level companion configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig is a page opened at start.
type PageConfig = config.PageConfig

// SiteConfig adds a container strategy.
type SiteConfig = config.SiteConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
