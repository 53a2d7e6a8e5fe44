// Package present renders the loading indicator, the summary panel and the
// transient notices, and places them in a live page.
package present

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/idgen"
	"github.com/hazyhaar/tldr/summarize"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// User-facing strings.
const (
	LoadingMessage  = "Generating summary..."
	NoTargetMessage = "Could not find suitable text to summarize near cursor"
	TooShortMessage = "Text is too short to summarize (minimum 100 characters)"
	ErrorMessage    = "Error generating summary. Please check your API key."
)

// NoticeTTL is how long a notice stays on screen.
const NoticeTTL = 3 * time.Second

// scrollMargin keeps the panel this far below the top edge after scrolling.
const scrollMargin = 100

// Position says where a fragment goes relative to its container.
type Position int

const (
	// Prepend inserts as the container's first child.
	Prepend Position = iota
	// Before inserts as the container's preceding sibling.
	Before
)

func (p Position) String() string {
	if p == Before {
		return "before"
	}
	return "prepend"
}

// Placement picks Before for article and list-item containers, whose
// insides are owned by the host page, and Prepend for everything else.
func Placement(n *dom.Node) Position {
	if n == nil {
		return Prepend
	}
	if n.Tag == "article" || n.Attr("role") == "listitem" {
		return Before
	}
	return Prepend
}

// ScrollTarget returns the scroll offset that brings a freshly inserted
// panel into view, or false when it is already fully visible.
func ScrollTarget(panel dom.Rect, vp dom.Size, scrollY float64) (float64, bool) {
	if panel.Within(vp) {
		return 0, false
	}
	return scrollY + panel.Y - scrollMargin, true
}

// Page is the live document fragments are inserted into. Anchors address
// the element list of the snapshot the target was located in.
type Page interface {
	Insert(ctx context.Context, id string, anchor dom.Anchor, pos Position, fragment string) error
	Remove(ctx context.Context, id string) error
	Rect(ctx context.Context, id string) (dom.Rect, error)
	Viewport(ctx context.Context) (vp dom.Size, scrollY float64, err error)
	ScrollTo(ctx context.Context, y float64) error
	Notify(ctx context.Context, id, fragment string, ttl time.Duration) error
}

// Config configures a Presenter.
type Config struct {
	IDs    idgen.Generator // default idgen.Prefixed("tldr-", idgen.Short(10))
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.IDs == nil {
		c.IDs = idgen.Prefixed("tldr-", idgen.Short(10))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Presenter renders fragments and hands them to a Page.
type Presenter struct {
	cfg    Config
	policy *bluemonday.Policy
}

// New returns a Presenter.
func New(cfg Config) *Presenter {
	cfg.defaults()
	return &Presenter{cfg: cfg, policy: bluemonday.StrictPolicy()}
}

// Panel is a fragment inserted in a page.
type Panel struct {
	ID   string
	page Page
}

// Remove takes the panel out of the page.
func (p *Panel) Remove(ctx context.Context) error {
	return p.page.Remove(ctx, p.ID)
}

// ShowLoading inserts the loading indicator next to target.
func (p *Presenter) ShowLoading(ctx context.Context, page Page, target *dom.Node) (*Panel, error) {
	id := p.cfg.IDs()
	frag, err := render("loading", struct{ ID, Message string }{id, LoadingMessage})
	if err != nil {
		return nil, err
	}
	if err := page.Insert(ctx, id, target.Anchor(), Placement(target), frag); err != nil {
		return nil, fmt.Errorf("present: insert loading: %w", err)
	}
	return &Panel{ID: id, page: page}, nil
}

// Footer is the usage line under a summary.
type Footer struct {
	Tokens string
	Cost   string
}

// NewFooter formats usage the way the panel shows it.
func NewFooter(res *summarize.Result) *Footer {
	est := ""
	if res.Estimate {
		est = " (estimated)"
	}
	u := res.Usage
	return &Footer{
		Tokens: fmt.Sprintf("Tokens%s: %d in + %d out = %d total", est, u.InputTokens, u.OutputTokens, u.TotalTokens),
		Cost:   fmt.Sprintf("%s cost: $%.5f", ProviderLabel(u), u.Cost),
	}
}

// ProviderLabel is the provider name shown in the footer.
func ProviderLabel(u summarize.Usage) string {
	if u.Provider == "anthropic" {
		model := u.Model
		if model == "" {
			model = "Unknown model"
		}
		return "Claude (" + model + ")"
	}
	return "GPT-3.5"
}

// ShowResult inserts the summary panel next to target and scrolls it into
// view when needed. A scroll failure is logged, not returned.
func (p *Presenter) ShowResult(ctx context.Context, page Page, target *dom.Node, res *summarize.Result, showCost bool) (*Panel, error) {
	id := p.cfg.IDs()
	data := struct {
		ID      string
		Summary string
		Footer  *Footer
	}{ID: id, Summary: p.PlainText(res.Summary)}
	if showCost {
		data.Footer = NewFooter(res)
	}
	frag, err := render("result", data)
	if err != nil {
		return nil, err
	}
	if err := page.Insert(ctx, id, target.Anchor(), Placement(target), frag); err != nil {
		return nil, fmt.Errorf("present: insert result: %w", err)
	}
	panel := &Panel{ID: id, page: page}

	if err := p.scrollIntoView(ctx, page, id); err != nil {
		p.cfg.Logger.Warn("present: scroll", "panel", id, "error", err)
	}
	return panel, nil
}

func (p *Presenter) scrollIntoView(ctx context.Context, page Page, id string) error {
	rect, err := page.Rect(ctx, id)
	if err != nil {
		return err
	}
	vp, scrollY, err := page.Viewport(ctx)
	if err != nil {
		return err
	}
	if y, ok := ScrollTarget(rect, vp, scrollY); ok {
		return page.ScrollTo(ctx, y)
	}
	return nil
}

// Notify shows msg in a fixed corner notice that disappears after NoticeTTL.
func (p *Presenter) Notify(ctx context.Context, page Page, msg string) error {
	id := p.cfg.IDs()
	frag, err := render("notice", struct{ ID, Message string }{id, msg})
	if err != nil {
		return err
	}
	if err := page.Notify(ctx, id, frag, NoticeTTL); err != nil {
		return fmt.Errorf("present: notify: %w", err)
	}
	return nil
}

// PlainText strips any markup from model output. The template escapes the
// result again on render.
func (p *Presenter) PlainText(s string) string {
	return html.UnescapeString(p.policy.Sanitize(s))
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("present: render %s: %w", name, err)
	}
	return buf.String(), nil
}
