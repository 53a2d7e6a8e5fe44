package dom

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Snapshot is the wire form produced by the in-page snapshot script.
// Nodes are listed in document order, every parent before its children.
type Snapshot struct {
	URL       string             `json:"url"`
	Language  string             `json:"lang"`
	Viewport  Size               `json:"viewport"`
	ScrollY   float64            `json:"scroll_y"`
	Nodes     []SnapshotNode     `json:"nodes"`
	Selection *SnapshotSelection `json:"selection,omitempty"`
}

// SnapshotNode is one element. Parent is the Index of the parent element,
// -1 for the document element.
type SnapshotNode struct {
	Index  int               `json:"i"`
	Parent int               `json:"p"`
	Tag    string            `json:"tag"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Text   string            `json:"text"`
	Rect   Rect              `json:"rect"`
}

// SnapshotSelection is the selection text and the registry index of its
// containing element.
type SnapshotSelection struct {
	Text   string `json:"text"`
	Anchor int    `json:"anchor"`
}

// DecodeSnapshot parses the JSON produced by the snapshot script.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dom: decode snapshot: %w", err)
	}
	return &s, nil
}

// Document builds the element tree.
func (s *Snapshot) Document() (*Document, error) {
	if len(s.Nodes) == 0 {
		return nil, fmt.Errorf("dom: snapshot has no nodes")
	}

	byIdx := make(map[int]*Node, len(s.Nodes))
	var root *Node
	for _, sn := range s.Nodes {
		n := &Node{
			Index: sn.Index,
			Tag:   strings.ToLower(sn.Tag),
			Attrs: sn.Attrs,
			Text:  sn.Text,
			Rect:  sn.Rect,
		}
		if _, dup := byIdx[sn.Index]; dup {
			return nil, fmt.Errorf("dom: duplicate node index %d", sn.Index)
		}
		byIdx[sn.Index] = n

		if sn.Parent < 0 {
			if root != nil {
				return nil, fmt.Errorf("dom: snapshot has more than one root")
			}
			root = n
			continue
		}
		parent, ok := byIdx[sn.Parent]
		if !ok {
			return nil, fmt.Errorf("dom: node %d references unknown parent %d", sn.Index, sn.Parent)
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}
	if root == nil {
		return nil, fmt.Errorf("dom: snapshot has no root")
	}

	doc := &Document{
		URL:      s.URL,
		Host:     hostOf(s.URL),
		Language: s.Language,
		Viewport: s.Viewport,
		ScrollY:  s.ScrollY,
	}
	doc.index(root)

	if s.Selection != nil && strings.TrimSpace(s.Selection.Text) != "" {
		doc.Selection = &Selection{
			Text:   s.Selection.Text,
			Anchor: byIdx[s.Selection.Anchor],
		}
	}
	return doc, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
