package observability

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tldr/dbopen"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(dbopen.OpenMemory(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestRecordAndTotals(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.Record(ctx, Event{Host: "example.com", Outcome: OutcomeTooShort})
	l.Record(ctx, Event{Provider: "openai", Outcome: OutcomeSummarized, TotalTokens: 160, Cost: 0.00026})
	l.Record(ctx, Event{Provider: "openai", Outcome: OutcomeSummarized, TotalTokens: 40, Cost: 0.0001})
	l.Record(ctx, Event{Provider: "openai", Outcome: OutcomeFailed, Error: "401"})
	l.Record(ctx, Event{Provider: "anthropic", Outcome: OutcomeSummarized, TotalTokens: 1011, Cost: 0.00026, Estimate: true})

	totals, err := l.Totals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %+v", totals)
	}
	an, oa := totals[0], totals[1]
	if an.Provider != "anthropic" || an.Summaries != 1 || an.TotalTokens != 1011 {
		t.Errorf("anthropic = %+v", an)
	}
	if oa.Invocations != 3 || oa.Summaries != 2 || oa.TotalTokens != 200 {
		t.Errorf("openai = %+v", oa)
	}
}

func TestRecent(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.Record(ctx, Event{ID: "sum_1", Outcome: OutcomeNoTarget})
	l.Record(ctx, Event{ID: "sum_2", Outcome: OutcomeFailed, Error: "boom", Duration: 1500 * time.Millisecond})

	evs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].ID != "sum_2" {
		t.Fatalf("recent = %+v", evs)
	}
	if evs[0].Error != "boom" || evs[0].Duration != 1500*time.Millisecond {
		t.Errorf("event = %+v", evs[0])
	}
	if evs[1].Error != "" {
		t.Errorf("nil error should read empty, got %q", evs[1].Error)
	}
}

func TestRecordDuplicateIsSwallowed(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.Record(ctx, Event{ID: "sum_x", Outcome: OutcomeSummarized})
	l.Record(ctx, Event{ID: "sum_x", Outcome: OutcomeSummarized})

	evs, _ := l.Recent(ctx, 10)
	if len(evs) != 1 {
		t.Fatalf("got %d events", len(evs))
	}
}

func TestCleanup(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.Record(ctx, Event{ID: "new", Outcome: OutcomeSummarized})
	old := time.Now().Add(-40 * 24 * time.Hour).Unix()
	if _, err := l.db.Exec(`INSERT INTO summary_events (event_id, outcome, created_at) VALUES ('old', 'summarized', ?)`, old); err != nil {
		t.Fatal(err)
	}

	if n, _ := l.Cleanup(ctx, 0); n != 0 {
		t.Fatalf("days=0 deleted %d", n)
	}
	n, err := l.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted %d, want 1", n)
	}
}
