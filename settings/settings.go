// Package settings persists the user's provider choice, API keys and the
// show-cost flag in SQLite.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/tldr/dbopen"
)

// Provider identifiers as stored.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrUnknownProvider is returned by Save for a provider other than
// ProviderOpenAI or ProviderAnthropic.
var ErrUnknownProvider = errors.New("settings: unknown provider")

// Settings is the full user configuration.
type Settings struct {
	PrimaryAPIKey   string `json:"openai_api_key"`
	SecondaryAPIKey string `json:"anthropic_api_key"`
	Provider        string `json:"ai_provider"`
	ShowCost        bool   `json:"show_token_cost"`
}

// Defaults returns the settings used for any key never saved.
func Defaults() Settings {
	return Settings{Provider: ProviderOpenAI, ShowCost: true}
}

// APIKey returns the key of the selected provider.
func (s Settings) APIKey() string {
	if s.Provider == ProviderAnthropic {
		return s.SecondaryAPIKey
	}
	return s.PrimaryAPIKey
}

// Validate checks the provider identifier.
func (s Settings) Validate() error {
	switch s.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
}

// Source is anything that can hand out the current settings.
type Source interface {
	Get(ctx context.Context) (Settings, error)
}

// Static is a fixed Source.
type Static Settings

// Get returns s.
func (s Static) Get(context.Context) (Settings, error) { return Settings(s), nil }

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

const (
	keyOpenAI    = "openai_api_key"
	keyAnthropic = "anthropic_api_key"
	keyProvider  = "ai_provider"
	keyShowCost  = "show_token_cost"
)

// Store is the SQLite-backed Source.
type Store struct {
	db *sql.DB
}

// NewStore applies the schema and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("settings: DB is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("settings: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get loads the stored settings; missing keys keep their defaults.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	out := Defaults()
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return out, fmt.Errorf("settings: get: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return out, fmt.Errorf("settings: scan: %w", err)
		}
		switch k {
		case keyOpenAI:
			out.PrimaryAPIKey = v
		case keyAnthropic:
			out.SecondaryAPIKey = v
		case keyProvider:
			out.Provider = v
		case keyShowCost:
			if b, err := strconv.ParseBool(v); err == nil {
				out.ShowCost = b
			}
		}
	}
	return out, rows.Err()
}

// Save writes every field in one transaction. Keys are trimmed.
func (s *Store) Save(ctx context.Context, in Settings) error {
	in.PrimaryAPIKey = strings.TrimSpace(in.PrimaryAPIKey)
	in.SecondaryAPIKey = strings.TrimSpace(in.SecondaryAPIKey)
	if err := in.Validate(); err != nil {
		return err
	}

	now := time.Now().Unix()
	values := map[string]string{
		keyOpenAI:    in.PrimaryAPIKey,
		keyAnthropic: in.SecondaryAPIKey,
		keyProvider:  in.Provider,
		keyShowCost:  strconv.FormatBool(in.ShowCost),
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for k, v := range values {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now)
			if err != nil {
				return fmt.Errorf("settings: save %s: %w", k, err)
			}
		}
		return nil
	})
}
