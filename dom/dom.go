// Package dom is a read-only layout snapshot of a web page: the element tree
// with attributes, rendered text and client rectangles, plus the viewport
// and the current text selection. Snapshots come either from the in-page
// snapshot script (Snapshot) or from static HTML annotated with layout
// attributes (Parse).
package dom

import (
	"sort"
	"strings"
)

// Node is one element of the snapshot.
type Node struct {
	// Index identifies the element in the page-side registry of the
	// snapshot that produced it. Parse numbers elements in document order.
	Index    int
	Tag      string // lowercase
	Attrs    map[string]string
	Text     string // rendered text (innerText)
	Rect     Rect
	Parent   *Node
	Children []*Node

	snapshot string
}

// Anchor addresses an element in the page-side registry of one snapshot.
type Anchor struct {
	Snapshot string
	Index    int
}

// Anchor returns the registry address of n.
func (n *Node) Anchor() Anchor {
	return Anchor{Snapshot: n.snapshot, Index: n.Index}
}

// Attr returns the value of attribute name, or "".
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	if n == nil || n.Attrs == nil {
		return false
	}
	_, ok := n.Attrs[name]
	return ok
}

// TrimmedText returns the rendered text without surrounding whitespace.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}

// Closest returns n or its nearest ancestor matching sel, or nil.
func (n *Node) Closest(sel Selector) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if sel.Match(cur) {
			return cur
		}
	}
	return nil
}

// Depth returns the number of ancestors of n.
func (n *Node) Depth() int {
	d := 0
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		d++
	}
	return d
}

// Walk visits n and its descendants in document order. If fn returns false
// the children of the visited node are skipped.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Selection is the user's current text selection.
type Selection struct {
	Text string
	// Anchor is the element containing the whole range (the range's common
	// ancestor, or its parent element when that is a text node).
	Anchor *Node
}

// Document is a layout snapshot of one page.
type Document struct {
	// Key names the page-side element list this snapshot's indexes refer
	// to. Empty until SetKey.
	Key       string
	URL       string
	Host      string
	Language  string
	Viewport  Size
	ScrollY   float64
	Body      *Node
	Selection *Selection

	nodes []*Node // document order
	byIdx map[int]*Node
}

// SetKey names the element list the snapshot was registered under and
// stamps it into every node's Anchor.
func (d *Document) SetKey(key string) {
	d.Key = key
	for _, n := range d.nodes {
		n.snapshot = key
	}
}

// Nodes returns all elements in document order.
func (d *Document) Nodes() []*Node { return d.nodes }

// Node returns the element with the given registry index.
func (d *Document) Node(index int) *Node {
	if d.byIdx == nil {
		return nil
	}
	return d.byIdx[index]
}

// ElementsFromPoint hit-tests p against element rectangles. Elements with an
// empty rectangle never match. The result is ordered innermost first; among
// elements at equal depth, later ones in document order come first, as they
// paint on top.
func (d *Document) ElementsFromPoint(p Point) []*Node {
	type hit struct {
		n     *Node
		depth int
		order int
	}
	var hits []hit
	for i, n := range d.nodes {
		if n.Rect.Empty() || !n.Rect.Contains(p) {
			continue
		}
		hits = append(hits, hit{n: n, depth: n.Depth(), order: i})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].depth != hits[j].depth {
			return hits[i].depth > hits[j].depth
		}
		return hits[i].order > hits[j].order
	})
	out := make([]*Node, len(hits))
	for i, h := range hits {
		out[i] = h.n
	}
	return out
}

// QueryAll returns every element matching sel, in document order.
func (d *Document) QueryAll(sel Selector) []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if sel.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// index records the document-order node list. root is the document element.
func (d *Document) index(root *Node) {
	d.nodes = d.nodes[:0]
	d.byIdx = make(map[int]*Node)
	root.Walk(func(n *Node) bool {
		d.nodes = append(d.nodes, n)
		if n.Index >= 0 {
			d.byIdx[n.Index] = n
		}
		if d.Body == nil && n.Tag == "body" {
			d.Body = n
		}
		return true
	})
}
