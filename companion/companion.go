// Package companion is the tldr daemon core. It drives a Chrome instance,
// attaches a Session to each page, and turns a completed key chord into an
// inline summary of the text under the pointer.
package companion

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/tldr/companion/internal/browser"
	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/idgen"
	"github.com/hazyhaar/tldr/locate"
	"github.com/hazyhaar/tldr/observability"
	"github.com/hazyhaar/tldr/present"
	"github.com/hazyhaar/tldr/settings"
	"github.com/hazyhaar/tldr/summarize"
)

type attached struct {
	tab     *browser.Tab
	session *Session
	cancel  context.CancelFunc
	owned   bool // opened by us, closed on Stop
}

// Companion owns the browser, the stores and every page session.
type Companion struct {
	cfg      *Config
	mgr      *browser.Manager
	settings *settings.Store
	ledger   *observability.Ledger
	orch     *Orchestrator
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*attached // keyed by page ID
	unwatch  context.CancelFunc   // stops following remote tabs
}

// New builds a Companion on db. The browser is not started until Start.
func New(cfg *Config, db *sql.DB, logger *slog.Logger) (*Companion, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	store, err := settings.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("companion: %w", err)
	}
	ledger, err := observability.NewLedger(db, logger)
	if err != nil {
		return nil, fmt.Errorf("companion: %w", err)
	}
	orch, err := buildOrchestrator(cfg, store, ledger, logger)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Companion{
		cfg:      cfg,
		mgr:      mgr,
		settings: store,
		ledger:   ledger,
		orch:     orch,
		logger:   logger,
		sessions: make(map[string]*attached),
	}, nil
}

func buildOrchestrator(cfg *Config, src settings.Source, ledger Recorder, logger *slog.Logger) (*Orchestrator, error) {
	sites, err := Sites(cfg.Sites)
	if err != nil {
		return nil, err
	}
	client := summarize.ClientConfig{Timeout: cfg.Providers.Timeout}
	oa, an := client, client
	oa.Endpoint, an.Endpoint = cfg.Providers.OpenAIURL, cfg.Providers.AnthropicURL

	svc, err := summarize.NewService(summarize.Config{
		Settings:  src,
		OpenAI:    summarize.NewOpenAI(oa),
		Anthropic: summarize.NewAnthropic(an),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("companion: %w", err)
	}
	return NewOrchestrator(OrchestratorConfig{
		Locator:    locate.New(locate.Config{MinChars: cfg.Locate.MinChars, Sites: sites, Logger: logger}),
		Summarizer: svc,
		Presenter:  present.New(present.Config{Logger: logger}),
		Ledger:     ledger,
		Language:   cfg.Language,
		Logger:     logger,
	})
}

// NewOfflineOrchestrator builds the pipeline from cfg without a database:
// default settings and no ledger. Enough for Locate.
func NewOfflineOrchestrator(cfg *Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return buildOrchestrator(cfg, settings.Static(settings.Defaults()), nil, logger)
}

// Sites returns the built-in site strategies followed by the configured
// ones.
func Sites(extra []SiteConfig) ([]locate.Strategy, error) {
	sites := locate.DefaultSites()
	for i, sc := range extra {
		sel, err := dom.ParseSelector(sc.Container)
		if err != nil {
			return nil, fmt.Errorf("companion: sites[%d]: %w", i, err)
		}
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("site-%d", i+1)
		}
		sites = append(sites, locate.NewContainer(name, sc.Hosts, sel))
	}
	return sites, nil
}

// Settings returns the settings store.
func (c *Companion) Settings() *settings.Store { return c.settings }

// Ledger returns the usage ledger.
func (c *Companion) Ledger() *observability.Ledger { return c.ledger }

// Orchestrator returns the invocation pipeline.
func (c *Companion) Orchestrator() *Orchestrator { return c.orch }

// Start launches the browser and attaches to every configured page. With a
// remote browser and no configured pages, it attaches to the tabs already
// open and to every tab opened later.
func (c *Companion) Start(ctx context.Context) error {
	if _, err := c.mgr.Start(ctx); err != nil {
		return fmt.Errorf("companion: start browser: %w", err)
	}
	c.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: c.detachAll,
		// The manager holds its lock while calling back; OpenTab needs it.
		AfterRecycle: func(*rod.Browser) { go c.reattach(ctx) },
	})

	if c.followsTabs() {
		return c.attachRemote(ctx)
	}
	for _, p := range c.cfg.Pages {
		if err := c.AttachPage(ctx, p); err != nil {
			c.logger.Error("companion: attach page", "url", p.URL, "error", err)
		}
	}
	return nil
}

// followsTabs reports whether the companion attaches to the user's own tabs
// instead of opening configured pages.
func (c *Companion) followsTabs() bool {
	return len(c.cfg.Pages) == 0 && c.cfg.Browser.Remote != ""
}

func (c *Companion) attachRemote(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.unwatch != nil {
		c.unwatch()
	}
	c.unwatch = cancel
	c.mu.Unlock()

	err := browser.WatchTabs(wctx, c.mgr, func(tab *browser.Tab) {
		if err := c.attach(wctx, tab, false); err != nil {
			c.logger.Error("companion: attach new tab", "url", tab.URL, "error", err)
		}
	}, c.detach)
	if err != nil {
		return fmt.Errorf("companion: %w", err)
	}

	tabs, err := browser.AttachTabs(c.mgr)
	if err != nil {
		return fmt.Errorf("companion: %w", err)
	}
	for _, tab := range tabs {
		if err := c.attach(wctx, tab, false); err != nil {
			c.logger.Error("companion: attach tab", "url", tab.URL, "error", err)
		}
	}
	return nil
}

// AttachPage opens p in a new tab and starts its session.
func (c *Companion) AttachPage(ctx context.Context, p PageConfig) error {
	if p.ID == "" {
		p.ID = idgen.Session()
	}
	tab, err := browser.OpenTab(ctx, c.mgr, p.URL, p.ID)
	if err != nil {
		return fmt.Errorf("companion: open tab: %w", err)
	}
	if err := c.attach(ctx, tab, true); err != nil {
		tab.Close()
		return err
	}
	return nil
}

func (c *Companion) attach(ctx context.Context, tab *browser.Tab, owned bool) error {
	sctx, cancel := context.WithCancel(ctx)
	bridge := browser.NewBridge(tab, c.logger)
	if err := bridge.Install(sctx); err != nil {
		cancel()
		return fmt.Errorf("companion: install bridge: %w", err)
	}

	sess := NewSession(SessionConfig{
		ID:       tab.ID,
		Page:     tab,
		Trigger:  c.orch,
		Sequence: c.cfg.Chord.Sequence,
		Timeout:  c.cfg.Chord.Timeout,
		Mirror:   bridge,
		Logger:   c.logger,
	})

	c.mu.Lock()
	if old, ok := c.sessions[tab.ID]; ok {
		old.cancel()
	}
	c.sessions[tab.ID] = &attached{tab: tab, session: sess, cancel: cancel, owned: owned}
	c.mu.Unlock()

	go func() {
		if err := sess.Run(sctx, bridge.Events()); err != nil && sctx.Err() == nil {
			c.logger.Warn("companion: session ended", "page", tab.ID, "error", err)
		}
	}()
	c.logger.Info("companion: attached", "page", tab.ID, "url", tab.URL)
	return nil
}

// OpenURL opens rawURL in a new tab of the controlled browser.
func (c *Companion) OpenURL(_ context.Context, rawURL string) error {
	return browser.Open(c.mgr, rawURL)
}

// Sessions returns the number of attached pages.
func (c *Companion) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Stop ends every session, waits for in-flight invocations, closes the
// tabs it opened and shuts the browser down.
func (c *Companion) Stop() {
	c.detachAll()
	c.mgr.Close()
}

func (c *Companion) detachAll() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*attached)
	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
	c.mu.Unlock()

	for id, a := range sessions {
		c.end(id, a)
	}
}

// detach ends the session of a page that went away.
func (c *Companion) detach(id string) {
	c.mu.Lock()
	a, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if ok {
		c.end(id, a)
	}
}

func (c *Companion) end(id string, a *attached) {
	a.cancel()
	a.session.Wait()
	if a.owned {
		a.tab.Close()
	}
	c.logger.Info("companion: detached", "page", id)
}

func (c *Companion) reattach(ctx context.Context) {
	if c.followsTabs() {
		if err := c.attachRemote(ctx); err != nil {
			c.logger.Error("companion: reattach tabs", "error", err)
		}
		return
	}
	for _, p := range c.cfg.Pages {
		if err := c.AttachPage(ctx, p); err != nil {
			c.logger.Error("companion: reattach page", "url", p.URL, "error", err)
		}
	}
}
