package present

import (
	"context"
	"errors"
	"html"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/summarize"
)

type inserted struct {
	id       string
	anchor   dom.Anchor
	pos      Position
	fragment string
}

// fakePage records every call in order.
type fakePage struct {
	calls    []string
	inserts  []inserted
	notices  []string
	rect     dom.Rect
	vp       dom.Size
	scrollY  float64
	scrolled []float64
	live     map[string]bool
	rectErr  error
}

func newFakePage() *fakePage {
	return &fakePage{vp: dom.Size{Width: 1000, Height: 800}, live: map[string]bool{},
		rect: dom.Rect{X: 10, Y: 10, Width: 300, Height: 100}}
}

func (f *fakePage) Insert(_ context.Context, id string, anchor dom.Anchor, pos Position, frag string) error {
	f.calls = append(f.calls, "insert:"+id)
	f.inserts = append(f.inserts, inserted{id, anchor, pos, frag})
	f.live[id] = true
	return nil
}

func (f *fakePage) Remove(_ context.Context, id string) error {
	f.calls = append(f.calls, "remove:"+id)
	delete(f.live, id)
	return nil
}

func (f *fakePage) Rect(context.Context, string) (dom.Rect, error) { return f.rect, f.rectErr }

func (f *fakePage) Viewport(context.Context) (dom.Size, float64, error) {
	return f.vp, f.scrollY, nil
}

func (f *fakePage) ScrollTo(_ context.Context, y float64) error {
	f.scrolled = append(f.scrolled, y)
	return nil
}

func (f *fakePage) Notify(_ context.Context, id, frag string, ttl time.Duration) error {
	if ttl != 3*time.Second {
		return errors.New("unexpected ttl")
	}
	f.calls = append(f.calls, "notify:"+id)
	f.notices = append(f.notices, frag)
	return nil
}

func TestPlacement(t *testing.T) {
	tests := []struct {
		node *dom.Node
		want Position
	}{
		{&dom.Node{Tag: "article"}, Before},
		{&dom.Node{Tag: "div", Attrs: map[string]string{"role": "listitem"}}, Before},
		{&dom.Node{Tag: "li", Attrs: map[string]string{"role": "listitem"}}, Before},
		{&dom.Node{Tag: "div"}, Prepend},
		{&dom.Node{Tag: "p"}, Prepend},
		{nil, Prepend},
	}
	for _, tt := range tests {
		if got := Placement(tt.node); got != tt.want {
			t.Errorf("Placement(%+v) = %v, want %v", tt.node, got, tt.want)
		}
	}
}

func TestScrollTarget(t *testing.T) {
	vp := dom.Size{Width: 1000, Height: 800}
	if _, ok := ScrollTarget(dom.Rect{X: 0, Y: 100, Width: 500, Height: 200}, vp, 0); ok {
		t.Error("visible panel must not scroll")
	}
	y, ok := ScrollTarget(dom.Rect{X: 0, Y: 700, Width: 500, Height: 200}, vp, 1500)
	if !ok || y != 2100 {
		t.Errorf("below fold: got %v, %v; want 2100, true", y, ok)
	}
	y, ok = ScrollTarget(dom.Rect{X: 0, Y: -50, Width: 500, Height: 200}, vp, 1000)
	if !ok || y != 850 {
		t.Errorf("above: got %v, %v; want 850, true", y, ok)
	}
}

func TestShowLoading(t *testing.T) {
	p := New(Config{})
	page := newFakePage()
	target := &dom.Node{Index: 7, Tag: "article"}

	panel, err := p.ShowLoading(context.Background(), page, target)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.inserts) != 1 {
		t.Fatalf("inserts = %d", len(page.inserts))
	}
	in := page.inserts[0]
	if in.anchor.Index != 7 || in.pos != Before || in.id != panel.ID {
		t.Errorf("insert = %+v", in)
	}
	if !strings.Contains(in.fragment, "Generating summary...") || !strings.Contains(in.fragment, `data-tldr-id="`+panel.ID+`"`) {
		t.Errorf("fragment = %s", in.fragment)
	}

	if err := panel.Remove(context.Background()); err != nil {
		t.Fatal(err)
	}
	if page.live[panel.ID] {
		t.Error("panel still live after Remove")
	}
}

func TestShowResult(t *testing.T) {
	res := &summarize.Result{
		Summary: "The <b>gist</b> & more.",
		Usage: summarize.Usage{InputTokens: 1001, OutputTokens: 10, TotalTokens: 1011,
			Cost: 0.00026, Provider: "anthropic", Model: summarize.AnthropicModel},
		Estimate: true,
	}

	t.Run("with footer", func(t *testing.T) {
		page := newFakePage()
		_, err := New(Config{}).ShowResult(context.Background(), page, &dom.Node{Index: 3, Tag: "div"}, res, true)
		if err != nil {
			t.Fatal(err)
		}
		frag := page.inserts[0].fragment
		if !strings.Contains(frag, "The gist &amp; more.") {
			t.Errorf("summary not escaped:\n%s", frag)
		}
		text := html.UnescapeString(frag)
		for _, want := range []string{
			"Tokens (estimated): 1001 in + 10 out = 1011 total",
			"Claude (claude-3-haiku-20240307) cost: $0.00026",
			"data-tldr-close=",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("fragment missing %q:\n%s", want, text)
			}
		}
		if strings.Contains(text, "<b>") {
			t.Error("markup leaked into panel")
		}
		if page.inserts[0].pos != Prepend {
			t.Errorf("pos = %v", page.inserts[0].pos)
		}
		if len(page.scrolled) != 0 {
			t.Errorf("visible panel scrolled: %v", page.scrolled)
		}
	})

	t.Run("without footer", func(t *testing.T) {
		page := newFakePage()
		_, err := New(Config{}).ShowResult(context.Background(), page, &dom.Node{Tag: "div"}, res, false)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(page.inserts[0].fragment, "tldr-token-info") {
			t.Error("footer rendered with showCost off")
		}
	})

	t.Run("scrolls when off screen", func(t *testing.T) {
		page := newFakePage()
		page.rect = dom.Rect{X: 0, Y: 900, Width: 300, Height: 100}
		page.scrollY = 400
		if _, err := New(Config{}).ShowResult(context.Background(), page, &dom.Node{Tag: "div"}, res, false); err != nil {
			t.Fatal(err)
		}
		if len(page.scrolled) != 1 || page.scrolled[0] != 1200 {
			t.Errorf("scrolled = %v, want [1200]", page.scrolled)
		}
	})

	t.Run("scroll failure is not fatal", func(t *testing.T) {
		page := newFakePage()
		page.rectErr = errors.New("detached")
		if _, err := New(Config{}).ShowResult(context.Background(), page, &dom.Node{Tag: "div"}, res, false); err != nil {
			t.Fatalf("got %v", err)
		}
	})
}

func TestFooter_OpenAI(t *testing.T) {
	f := NewFooter(&summarize.Result{Usage: summarize.Usage{
		InputTokens: 120, OutputTokens: 40, TotalTokens: 160, Cost: 0.00026, Provider: "openai"}})
	if f.Tokens != "Tokens: 120 in + 40 out = 160 total" {
		t.Errorf("Tokens = %q", f.Tokens)
	}
	if f.Cost != "GPT-3.5 cost: $0.00026" {
		t.Errorf("Cost = %q", f.Cost)
	}
}

func TestNotify(t *testing.T) {
	page := newFakePage()
	if err := New(Config{}).Notify(context.Background(), page, TooShortMessage); err != nil {
		t.Fatal(err)
	}
	if len(page.notices) != 1 || !strings.Contains(page.notices[0], "Text is too short to summarize (minimum 100 characters)") {
		t.Fatalf("notices = %v", page.notices)
	}
	if !strings.Contains(page.notices[0], "position:fixed") {
		t.Error("notice must be fixed-position")
	}
}

func TestIDsAreUnique(t *testing.T) {
	p := New(Config{})
	page := newFakePage()
	a, _ := p.ShowLoading(context.Background(), page, &dom.Node{Tag: "div"})
	b, _ := p.ShowLoading(context.Background(), page, &dom.Node{Tag: "div"})
	if a.ID == b.ID {
		t.Fatal("duplicate panel IDs")
	}
}
