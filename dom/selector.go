package dom

import (
	"fmt"
	"strings"
)

// Selector is a parsed CSS selector subset:
//   - tag: "article", "div"
//   - .class, #id, [attr], [attr=val] and combinations ("div[role=listitem]")
//   - descendant combinator: "main article"
//   - selector lists: "article, [role=listitem]"
type Selector struct {
	raw    string
	groups [][]simpleSelector // alternatives; each is a descendant chain
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

// ParseSelector parses s.
func ParseSelector(s string) (Selector, error) {
	sel := Selector{raw: strings.TrimSpace(s)}
	for _, alt := range strings.Split(s, ",") {
		parts := strings.Fields(alt)
		if len(parts) == 0 {
			return Selector{}, fmt.Errorf("dom: empty selector in %q", s)
		}
		chain := make([]simpleSelector, 0, len(parts))
		for _, p := range parts {
			ss, err := parseSimple(p)
			if err != nil {
				return Selector{}, fmt.Errorf("dom: selector %q: %w", s, err)
			}
			chain = append(chain, ss)
		}
		sel.groups = append(sel.groups, chain)
	}
	return sel, nil
}

// MustSelector is ParseSelector for package-level constants.
func MustSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func (s Selector) String() string { return s.raw }

// IsZero reports whether s was never parsed.
func (s Selector) IsZero() bool { return len(s.groups) == 0 }

// Match reports whether n matches any alternative of s.
func (s Selector) Match(n *Node) bool {
	if n == nil {
		return false
	}
	for _, chain := range s.groups {
		if matchChain(n, chain) {
			return true
		}
	}
	return false
}

// matchChain matches the last compound against n and the preceding ones
// against successive ancestors.
func matchChain(n *Node, chain []simpleSelector) bool {
	last := len(chain) - 1
	if !chain[last].match(n) {
		return false
	}
	i := last - 1
	for cur := n.Parent; cur != nil && i >= 0; cur = cur.Parent {
		if chain[i].match(cur) {
			i--
		}
	}
	return i < 0
}

func parseSimple(sel string) (simpleSelector, error) {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		if !strings.HasSuffix(sel, "]") {
			return s, fmt.Errorf("unterminated attribute in %q", sel)
		}
		attrPart := sel[idx+1 : len(sel)-1]
		sel = sel[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = strings.TrimSpace(attrPart[:eq])
			s.attrVal = strings.Trim(strings.TrimSpace(attrPart[eq+1:]), `"'`)
			s.hasVal = true
		} else {
			s.attrKey = strings.TrimSpace(attrPart)
		}
		if s.attrKey == "" {
			return s, fmt.Errorf("empty attribute name in %q", sel)
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	if s.tag == "*" {
		s.tag = ""
	}
	return s, nil
}

func (s simpleSelector) match(n *Node) bool {
	if s.tag != "" && n.Tag != s.tag {
		return false
	}
	if s.id != "" && n.Attr("id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(n.Attr("class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		if !n.HasAttr(s.attrKey) {
			return false
		}
		if s.hasVal && n.Attr(s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}
