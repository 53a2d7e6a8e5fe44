// Package observability keeps a local ledger of chord invocations: what was
// summarized where, by which provider, and what it cost.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tldr/idgen"
)

// Outcomes of an invocation.
const (
	OutcomeSummarized = "summarized"
	OutcomeNoTarget   = "no_target"
	OutcomeTooShort   = "too_short"
	OutcomeFailed     = "failed"
)

// Event is one chord invocation.
type Event struct {
	ID           string        `json:"event_id"` // default: a fresh idgen.Invocation
	PageURL      string        `json:"page_url,omitempty"`
	Host         string        `json:"host,omitempty"`
	Strategy     string        `json:"strategy,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	TotalTokens  int           `json:"total_tokens"`
	Cost         float64       `json:"cost"`
	Estimate     bool          `json:"estimate,omitempty"`
	Outcome      string        `json:"outcome"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Ledger writes Events and answers usage queries.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLedger applies the schema and returns a Ledger. A nil logger means
// slog.Default().
func NewLedger(db *sql.DB, logger *slog.Logger) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: DB is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := Init(db); err != nil {
		return nil, err
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Record stores ev. Failures are logged and swallowed so a broken ledger
// never turns a summary into an error.
func (l *Ledger) Record(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = idgen.Invocation()
	}
	var errText *string
	if ev.Error != "" {
		errText = &ev.Error
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO summary_events (
			event_id, page_url, host, strategy, provider, model,
			input_tokens, output_tokens, total_tokens, cost, estimate,
			outcome, error, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.PageURL, ev.Host, ev.Strategy, ev.Provider, ev.Model,
		ev.InputTokens, ev.OutputTokens, ev.TotalTokens, ev.Cost, ev.Estimate,
		ev.Outcome, errText, ev.Duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		l.logger.Error("observability: record", "error", err, "event", ev.ID, "outcome", ev.Outcome)
	}
}

// Totals aggregates usage per provider.
type Totals struct {
	Provider    string  `json:"provider"`
	Invocations int     `json:"invocations"`
	Summaries   int     `json:"summaries"`
	TotalTokens int     `json:"total_tokens"`
	Cost        float64 `json:"cost"`
}

// Totals returns one row per provider that was ever called, ordered by name.
// Invocations rejected before a provider was chosen are not counted.
func (l *Ledger) Totals(ctx context.Context) ([]Totals, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT provider,
		       COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM summary_events
		WHERE provider != ''
		GROUP BY provider
		ORDER BY provider`, OutcomeSummarized)
	if err != nil {
		return nil, fmt.Errorf("observability: totals: %w", err)
	}
	defer rows.Close()

	var out []Totals
	for rows.Next() {
		var t Totals
		if err := rows.Scan(&t.Provider, &t.Invocations, &t.Summaries, &t.TotalTokens, &t.Cost); err != nil {
			return nil, fmt.Errorf("observability: totals scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Recent returns the last n events, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, page_url, host, strategy, provider, model,
		       input_tokens, output_tokens, total_tokens, cost, estimate,
		       outcome, COALESCE(error, ''), duration_ms, created_at
		FROM summary_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("observability: recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var ms, created int64
		if err := rows.Scan(&ev.ID, &ev.PageURL, &ev.Host, &ev.Strategy, &ev.Provider, &ev.Model,
			&ev.InputTokens, &ev.OutputTokens, &ev.TotalTokens, &ev.Cost, &ev.Estimate,
			&ev.Outcome, &ev.Error, &ms, &created); err != nil {
			return nil, fmt.Errorf("observability: recent scan: %w", err)
		}
		ev.Duration = time.Duration(ms) * time.Millisecond
		ev.CreatedAt = time.Unix(created, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero or negative days keeps
// everything.
func (l *Ledger) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	res, err := l.db.ExecContext(ctx, `DELETE FROM summary_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		l.logger.Info("observability: cleanup", "deleted", n, "days", days)
	}
	return n, nil
}
