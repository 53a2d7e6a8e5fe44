// Package locate picks the block of page text a summary should cover: the
// user's selection when there is a long enough one, otherwise the content
// block nearest to the cursor. Sites whose content lives in well-known
// containers (webmail threads, microblog timelines) get a container strategy
// instead of the generic nearest-text search.
package locate

import (
	"log/slog"
	"strings"

	"github.com/hazyhaar/tldr/dom"
)

// DefaultMinChars is the minimum trimmed text length of a summarisable block.
const DefaultMinChars = 100

var (
	articleSel  = dom.MustSelector("article")
	listItemSel = dom.MustSelector("[role=listitem]")
)

// Target is the located block.
type Target struct {
	Node *dom.Node
	// Text is what should be summarised: the selected text when the target
	// came from the selection, the element's rendered text otherwise.
	Text          string
	Strategy      string
	FromSelection bool
}

// Strategy finds a target element for a cursor position.
type Strategy interface {
	Name() string
	// Match reports whether the strategy handles pages on host.
	Match(host string) bool
	// Locate returns the chosen element or nil.
	Locate(doc *dom.Document, p dom.Point) *dom.Node
}

// Config for creating a Locator.
type Config struct {
	// MinChars is the minimum trimmed text length. Default: DefaultMinChars.
	MinChars int
	// Sites are host-specific strategies, tried in order before the generic
	// search. Nil selects DefaultSites.
	Sites  []Strategy
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MinChars <= 0 {
		c.MinChars = DefaultMinChars
	}
	if c.Sites == nil {
		c.Sites = DefaultSites()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Locator resolves targets. It holds no per-page state.
type Locator struct {
	minChars int
	sites    []Strategy
	generic  *Generic
	logger   *slog.Logger
}

// New creates a Locator.
func New(cfg Config) *Locator {
	cfg.defaults()
	return &Locator{
		minChars: cfg.MinChars,
		sites:    cfg.Sites,
		generic:  NewGeneric(cfg.MinChars),
		logger:   cfg.Logger,
	}
}

// MinChars returns the configured minimum text length.
func (l *Locator) MinChars() int { return l.minChars }

// Locate returns the target for cursor p, or false when no block qualifies.
func (l *Locator) Locate(doc *dom.Document, p dom.Point) (Target, bool) {
	if t, ok := l.fromSelection(doc); ok {
		return t, true
	}

	s := l.strategyFor(doc.Host)
	n := s.Locate(doc, p)
	if n == nil {
		l.logger.Debug("locate: no target", "host", doc.Host, "strategy", s.Name(),
			"x", p.X, "y", p.Y)
		return Target{}, false
	}
	return Target{Node: n, Text: n.Text, Strategy: s.Name()}, true
}

// strategyFor returns the first site strategy matching host, or the generic one.
func (l *Locator) strategyFor(host string) Strategy {
	for _, s := range l.sites {
		if s.Match(host) {
			return s
		}
	}
	return l.generic
}

// fromSelection widens a long enough selection to its logical unit.
func (l *Locator) fromSelection(doc *dom.Document) (Target, bool) {
	sel := doc.Selection
	if sel == nil || len([]rune(strings.TrimSpace(sel.Text))) < l.minChars {
		return Target{}, false
	}

	n := sel.Anchor
	if n == nil {
		n = doc.Body
	}
	if n == nil {
		return Target{}, false
	}
	if a := n.Closest(articleSel); a != nil {
		n = a
	} else if li := n.Closest(listItemSel); li != nil {
		n = li
	}
	return Target{Node: n, Text: sel.Text, Strategy: "selection", FromSelection: true}, true
}

// nearest returns the node whose rectangle centre is closest to p. Nodes with
// an empty rectangle are skipped. Ties keep the earlier node.
func nearest(nodes []*dom.Node, p dom.Point) *dom.Node {
	var best *dom.Node
	bestDist := 0.0
	for _, n := range nodes {
		if n.Rect.Empty() {
			continue
		}
		d := dom.Distance(n.Rect.Center(), p)
		if best == nil || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
