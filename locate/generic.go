package locate

import (
	"slices"

	"github.com/hazyhaar/tldr/dom"
)

// ignoredTags never hold readable content; their subtrees are not searched.
var ignoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"button":   true,
	"input":    true,
	"textarea": true,
	"select":   true,
	"template": true,
}

// Candidate is a visible element with enough text, ranked by distance.
type Candidate struct {
	Node     *dom.Node
	Rect     dom.Rect
	Text     string
	Distance float64
}

// Generic is the nearest-text strategy used on every site without a
// container strategy.
type Generic struct {
	minChars int
}

// NewGeneric creates the generic strategy.
func NewGeneric(minChars int) *Generic {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Generic{minChars: minChars}
}

func (g *Generic) Name() string { return "generic" }

// Match always reports true.
func (g *Generic) Match(string) bool { return true }

// Locate picks the nearest candidate and widens it to an enclosing article.
func (g *Generic) Locate(doc *dom.Document, p dom.Point) *dom.Node {
	cands := g.Candidates(doc, p)
	if len(cands) == 0 {
		return nil
	}
	n := cands[0].Node
	if a := n.Closest(articleSel); a != nil {
		return a
	}
	return n
}

// Candidates returns the qualifying elements under the body, sorted by
// ascending centre distance to p. Equal distances keep document order.
func (g *Generic) Candidates(doc *dom.Document, p dom.Point) []Candidate {
	if doc.Body == nil {
		return nil
	}

	var out []Candidate
	for _, child := range doc.Body.Children {
		child.Walk(func(n *dom.Node) bool {
			if ignoredTags[n.Tag] {
				return false
			}
			text := n.TrimmedText()
			if len([]rune(text)) < g.minChars {
				// Too short: skip this node but keep looking below it.
				return true
			}
			r := n.Rect
			if r.Empty() || !r.Intersects(doc.Viewport) {
				return true
			}
			out = append(out, Candidate{
				Node:     n,
				Rect:     r,
				Text:     text,
				Distance: dom.Distance(r.Center(), p),
			})
			return true
		})
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return out
}
