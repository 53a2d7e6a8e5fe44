package locate

import (
	"strings"

	"github.com/hazyhaar/tldr/dom"
)

// Container locates the container element under the cursor on sites whose
// content units share one selector: a webmail message list item, a
// microblog post article.
type Container struct {
	name  string
	hosts []string
	sel   dom.Selector
}

// NewContainer creates a container strategy for hosts. A host matches itself
// and its subdomains.
func NewContainer(name string, hosts []string, sel dom.Selector) *Container {
	hs := make([]string, len(hosts))
	for i, h := range hosts {
		hs[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return &Container{name: name, hosts: hs, sel: sel}
}

// Webmail handles Gmail message threads.
func Webmail() *Container {
	return NewContainer("webmail", []string{"mail.google.com"}, listItemSel)
}

// Microblog handles Twitter / X timelines.
func Microblog() *Container {
	return NewContainer("microblog", []string{"twitter.com", "x.com"}, articleSel)
}

// DefaultSites returns the built-in site strategies.
func DefaultSites() []Strategy {
	return []Strategy{Webmail(), Microblog()}
}

func (c *Container) Name() string { return c.name }

// Selector returns the container selector.
func (c *Container) Selector() dom.Selector { return c.sel }

func (c *Container) Match(host string) bool {
	host = strings.ToLower(host)
	for _, h := range c.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Locate hit-tests p and walks up from each hit element to the nearest
// container. When nothing under the cursor is inside a container, the
// container nearest to p wins.
func (c *Container) Locate(doc *dom.Document, p dom.Point) *dom.Node {
	for _, el := range doc.ElementsFromPoint(p) {
		if found := el.Closest(c.sel); found != nil {
			return found
		}
	}
	return nearest(doc.QueryAll(c.sel), p)
}
