package companion

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/idgen"
	"github.com/hazyhaar/tldr/kit"
	"github.com/hazyhaar/tldr/observability"
	"github.com/hazyhaar/tldr/present"
)

// RegisterMCP registers the companion tools on an MCP server.
func (c *Companion) RegisterMCP(srv *mcp.Server) {
	RegisterTools(srv, c.orch, c.ledger)
}

// RegisterTools registers tldr_summarize, tldr_locate and, when ledger is
// set, tldr_usage.
func RegisterTools(srv *mcp.Server, orch *Orchestrator, ledger *observability.Ledger) {
	mw := kit.Chain(kit.WithRequestIDs(idgen.Invocation), kit.WithLogging(orch.cfg.Logger, "mcp"))
	registerSummarizeTool(srv, orch, mw)
	registerLocateTool(srv, orch, mw)
	if ledger != nil {
		registerUsageTool(srv, ledger, mw)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- tldr_summarize ---

type summarizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func registerSummarizeTool(srv *mcp.Server, orch *Orchestrator, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "tldr_summarize",
		Description: "Summarize a block of text with the configured provider. Returns the summary with token usage and cost.",
		InputSchema: inputSchema(map[string]any{
			"text":     map[string]any{"type": "string", "description": "Text to summarize (at least the configured minimum length)"},
			"language": map[string]any{"type": "string", "description": "BCP 47 locale of the summary (default en)"},
		}, []string{"text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*summarizeRequest)
		min := orch.Locator().MinChars()
		if len([]rune(strings.TrimSpace(r.Text))) < min {
			return nil, fmt.Errorf("%w (minimum %d characters)", ErrTooShort, min)
		}
		lang := r.Language
		if lang == "" {
			lang = orch.cfg.Language
		}
		return orch.Summarizer().Summarize(ctx, r.Text, lang)
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[summarizeRequest]())
}

// --- tldr_locate ---

// LocateRequest is annotated HTML plus a cursor position.
type LocateRequest struct {
	HTML           string  `json:"html"`
	URL            string  `json:"url"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ViewportWidth  float64 `json:"viewport_width,omitempty"`
	ViewportHeight float64 `json:"viewport_height,omitempty"`
}

// LocateResult describes the element a summary would cover.
type LocateResult struct {
	Found         bool   `json:"found"`
	Tag           string `json:"tag,omitempty"`
	Index         int    `json:"index,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
	FromSelection bool   `json:"from_selection,omitempty"`
	Placement     string `json:"placement,omitempty"`
	Chars         int    `json:"chars,omitempty"`
	Text          string `json:"text,omitempty"`
}

func registerLocateTool(srv *mcp.Server, orch *Orchestrator, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name: "tldr_locate",
		Description: "Run the target locator over HTML annotated with data-rect=\"x y w h\" layout " +
			"(and optionally data-selected) for a cursor position. Returns the element a summary would cover.",
		InputSchema: inputSchema(map[string]any{
			"html":            map[string]any{"type": "string", "description": "Annotated HTML document"},
			"url":             map[string]any{"type": "string", "description": "Page URL, used for site strategies"},
			"x":               map[string]any{"type": "number", "description": "Cursor x in viewport pixels"},
			"y":               map[string]any{"type": "number", "description": "Cursor y in viewport pixels"},
			"viewport_width":  map[string]any{"type": "number", "description": "Default 1280"},
			"viewport_height": map[string]any{"type": "number", "description": "Default 800"},
		}, []string{"html", "x", "y"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return Locate(orch, req.(*LocateRequest))
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[LocateRequest]())
}

// Locate runs the locator over annotated HTML.
func Locate(orch *Orchestrator, r *LocateRequest) (*LocateResult, error) {
	vp := dom.Size{Width: r.ViewportWidth, Height: r.ViewportHeight}
	if vp.Width <= 0 {
		vp.Width = 1280
	}
	if vp.Height <= 0 {
		vp.Height = 800
	}
	doc, err := dom.Parse(strings.NewReader(r.HTML), r.URL, vp)
	if err != nil {
		return nil, err
	}
	t, ok := orch.Locator().Locate(doc, dom.Point{X: r.X, Y: r.Y})
	if !ok {
		return &LocateResult{}, nil
	}
	return &LocateResult{
		Found:         true,
		Tag:           t.Node.Tag,
		Index:         t.Node.Index,
		Strategy:      t.Strategy,
		FromSelection: t.FromSelection,
		Placement:     present.Placement(t.Node).String(),
		Chars:         len([]rune(strings.TrimSpace(t.Text))),
		Text:          t.Text,
	}, nil
}

// --- tldr_usage ---

type usageRequest struct {
	Recent int `json:"recent,omitempty"`
}

func registerUsageTool(srv *mcp.Server, ledger *observability.Ledger, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "tldr_usage",
		Description: "Token and cost totals per provider, plus the most recent invocations.",
		InputSchema: inputSchema(map[string]any{
			"recent": map[string]any{"type": "integer", "description": "Number of recent invocations to include (default 10)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*usageRequest)
		if r.Recent <= 0 {
			r.Recent = 10
		}
		totals, err := ledger.Totals(ctx)
		if err != nil {
			return nil, err
		}
		recent, err := ledger.Recent(ctx, r.Recent)
		if err != nil {
			return nil, err
		}
		return map[string]any{"totals": totals, "recent": recent}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[usageRequest]())
}
