package dom

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse builds a Document from static HTML. Layout comes from data-rect
// attributes ("x y width height", commas allowed); elements without one have
// an empty rectangle and are treated as not rendered. An element carrying
// data-selected marks the selection: the attribute value is the selected text,
// or the element's own text when the value is empty.
func Parse(r io.Reader, pageURL string, viewport Size) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}

	var docEl *html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			docEl = c
			break
		}
	}
	if docEl == nil {
		return nil, fmt.Errorf("dom: no document element")
	}

	next := 0
	var selected *Node
	var build func(h *html.Node, parent *Node) *Node
	build = func(h *html.Node, parent *Node) *Node {
		n := &Node{
			Index:  next,
			Tag:    h.Data,
			Attrs:  make(map[string]string, len(h.Attr)),
			Text:   collectText(h),
			Parent: parent,
		}
		next++
		for _, a := range h.Attr {
			n.Attrs[a.Key] = a.Val
		}
		if v, ok := n.Attrs["data-rect"]; ok {
			rect, err := parseRect(v)
			if err == nil {
				n.Rect = rect
			}
		}
		if _, ok := n.Attrs["data-selected"]; ok && selected == nil {
			selected = n
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				n.Children = append(n.Children, build(c, n))
			}
		}
		return n
	}
	top := build(docEl, nil)

	doc := &Document{
		URL:      pageURL,
		Host:     hostOf(pageURL),
		Language: top.Attr("lang"),
		Viewport: viewport,
	}
	doc.index(top)

	if selected != nil {
		text := selected.Attr("data-selected")
		if text == "" {
			text = selected.Text
		}
		if strings.TrimSpace(text) != "" {
			doc.Selection = &Selection{Text: text, Anchor: selected}
		}
	}
	return doc, nil
}

func parseRect(v string) (Rect, error) {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return Rect{}, fmt.Errorf("dom: data-rect needs 4 numbers, got %q", v)
	}
	var nums [4]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Rect{}, fmt.Errorf("dom: data-rect %q: %w", v, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Rect{}, fmt.Errorf("dom: data-rect %q: non-finite value", v)
		}
		nums[i] = x
	}
	return Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}, nil
}

// collectText approximates innerText: text nodes joined by single spaces,
// skipping elements that never render text.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
