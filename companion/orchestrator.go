package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/idgen"
	"github.com/hazyhaar/tldr/locate"
	"github.com/hazyhaar/tldr/observability"
	"github.com/hazyhaar/tldr/present"
	"github.com/hazyhaar/tldr/summarize"
)

var (
	// ErrNoTarget means no block of text qualified near the cursor.
	ErrNoTarget = errors.New("companion: no suitable text near cursor")
	// ErrTooShort means the located text is under the minimum length.
	ErrTooShort = errors.New("companion: text too short to summarize")
)

// Page is a live page the orchestrator can snapshot and render into.
// Snapshot keeps the element list its node indexes refer to under key until
// Release, so overlapping invocations each anchor to their own snapshot.
type Page interface {
	present.Page
	Snapshot(ctx context.Context, key string) (*dom.Document, error)
	Release(ctx context.Context, key string) error
}

// Summarizer produces summaries with the user's current settings.
type Summarizer interface {
	Summarize(ctx context.Context, text, lang string) (*summarize.Result, error)
	ShowCost(ctx context.Context) bool
	Provider(ctx context.Context) string
}

// Recorder stores invocation outcomes.
type Recorder interface {
	Record(ctx context.Context, ev observability.Event)
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Locator    *locate.Locator
	Summarizer Summarizer
	Presenter  *present.Presenter // default present.New
	Ledger     Recorder           // optional
	// Language overrides the page's locale for summaries.
	Language string
	Logger   *slog.Logger
}

func (c *OrchestratorConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Locator == nil {
		c.Locator = locate.New(locate.Config{Logger: c.Logger})
	}
	if c.Presenter == nil {
		c.Presenter = present.New(present.Config{Logger: c.Logger})
	}
}

// Orchestrator runs one chord invocation end to end.
type Orchestrator struct {
	cfg OrchestratorConfig
}

// NewOrchestrator returns an Orchestrator. Summarizer is required.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("companion: Summarizer is required")
	}
	cfg.defaults()
	return &Orchestrator{cfg: cfg}, nil
}

// Locator returns the locator in use.
func (o *Orchestrator) Locator() *locate.Locator { return o.cfg.Locator }

// Summarizer returns the summarizer in use.
func (o *Orchestrator) Summarizer() Summarizer { return o.cfg.Summarizer }

// OnTrigger locates the text near cursor, shows a loading indicator, asks
// for a summary and renders it. Every failure is shown to the user as a
// notice; the returned error is for logging and tests.
func (o *Orchestrator) OnTrigger(ctx context.Context, page Page, cursor dom.Point) error {
	id := idgen.Invocation()
	start := time.Now()
	log := o.cfg.Logger.With("invocation", id)

	ev := observability.Event{ID: id}
	record := func(outcome string, err error) {
		if o.cfg.Ledger == nil {
			return
		}
		ev.Outcome = outcome
		ev.Duration = time.Since(start)
		if err != nil {
			ev.Error = err.Error()
		}
		o.cfg.Ledger.Record(context.WithoutCancel(ctx), ev)
	}

	doc, err := page.Snapshot(ctx, id)
	if err != nil {
		log.Error("companion: snapshot", "error", err)
		o.notify(ctx, page, present.ErrorMessage)
		err = fmt.Errorf("companion: snapshot: %w", err)
		record(observability.OutcomeFailed, err)
		return err
	}
	defer func() {
		if err := page.Release(context.WithoutCancel(ctx), id); err != nil {
			log.Debug("companion: release snapshot", "error", err)
		}
	}()
	ev.PageURL, ev.Host = doc.URL, doc.Host

	target, ok := o.cfg.Locator.Locate(doc, cursor)
	if !ok {
		log.Info("companion: no target", "host", doc.Host, "x", cursor.X, "y", cursor.Y)
		o.notify(ctx, page, present.NoTargetMessage)
		record(observability.OutcomeNoTarget, nil)
		return ErrNoTarget
	}
	ev.Strategy = target.Strategy

	if n := utf8.RuneCountInString(strings.TrimSpace(target.Text)); n < o.cfg.Locator.MinChars() {
		log.Info("companion: text too short", "chars", n, "strategy", target.Strategy)
		o.notify(ctx, page, present.TooShortMessage)
		record(observability.OutcomeTooShort, nil)
		return ErrTooShort
	}

	log.Info("companion: summarizing", "host", doc.Host, "strategy", target.Strategy,
		"selection", target.FromSelection, "chars", len(target.Text))

	loading, err := o.cfg.Presenter.ShowLoading(ctx, page, target.Node)
	if err != nil {
		log.Warn("companion: loading indicator", "error", err)
	}

	ev.Provider = o.cfg.Summarizer.Provider(ctx)
	res, err := o.cfg.Summarizer.Summarize(ctx, target.Text, o.language(doc))

	if loading != nil {
		if rerr := loading.Remove(ctx); rerr != nil {
			log.Warn("companion: remove loading", "error", rerr)
		}
	}

	if err != nil {
		log.Error("companion: summarize", "error", err)
		o.notify(ctx, page, present.ErrorMessage)
		record(observability.OutcomeFailed, err)
		return err
	}

	ev.Provider, ev.Model = res.Usage.Provider, res.Usage.Model
	ev.InputTokens, ev.OutputTokens, ev.TotalTokens = res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.TotalTokens
	ev.Cost, ev.Estimate = res.Usage.Cost, res.Estimate

	if _, err := o.cfg.Presenter.ShowResult(ctx, page, target.Node, res, o.cfg.Summarizer.ShowCost(ctx)); err != nil {
		log.Error("companion: show result", "error", err)
		o.notify(ctx, page, present.ErrorMessage)
		record(observability.OutcomeFailed, err)
		return err
	}
	record(observability.OutcomeSummarized, nil)
	log.Info("companion: summarized", "tokens", res.Usage.TotalTokens, "cost", res.Usage.Cost,
		"duration", time.Since(start))
	return nil
}

func (o *Orchestrator) language(doc *dom.Document) string {
	if o.cfg.Language != "" {
		return o.cfg.Language
	}
	return summarize.Language(doc.Language)
}

func (o *Orchestrator) notify(ctx context.Context, page Page, msg string) {
	if err := o.cfg.Presenter.Notify(ctx, page, msg); err != nil {
		o.cfg.Logger.Warn("companion: notify", "error", err)
	}
}
