package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/present"
)

const insertJS = `(key, anchor, pos, html) => {
	const list = (window.__tldr_nodes || {})[key] || [];
	const el = list[anchor];
	if (!el || !el.isConnected) throw new Error("anchor " + key + "/" + anchor + " is no longer in the page");
	const tpl = document.createElement("template");
	tpl.innerHTML = html;
	const node = tpl.content.firstElementChild;
	if (pos === "before" && el.parentNode) {
		el.parentNode.insertBefore(node, el);
	} else {
		el.insertBefore(node, el.firstChild);
	}
	if (node.animate) {
		node.animate([{ opacity: 0, transform: "translateY(-10px)" }, { opacity: 1, transform: "translateY(0)" }],
			{ duration: 300, easing: "ease-out" });
	}
}`

const removeJS = `(id) => {
	const el = document.querySelector('[data-tldr-id="' + id + '"]');
	if (el) el.remove();
}`

const rectJS = `(id) => {
	const el = document.querySelector('[data-tldr-id="' + id + '"]');
	if (!el) throw new Error("panel " + id + " not found");
	const r = el.getBoundingClientRect();
	return JSON.stringify({ x: r.left, y: r.top, width: r.width, height: r.height });
}`

const viewportJS = `() => JSON.stringify({ width: window.innerWidth, height: window.innerHeight, scroll_y: window.scrollY })`

const scrollJS = `(y) => window.scrollTo({ top: y, behavior: "smooth" })`

const notifyJS = `(html, ttl) => {
	const tpl = document.createElement("template");
	tpl.innerHTML = html;
	const node = tpl.content.firstElementChild;
	document.body.appendChild(node);
	setTimeout(() => {
		node.style.opacity = "0";
		setTimeout(() => node.remove(), 500);
	}, ttl);
}`

var _ present.Page = (*Tab)(nil)

// Insert places fragment relative to the registry element anchor.
func (t *Tab) Insert(ctx context.Context, id string, anchor dom.Anchor, pos present.Position, fragment string) error {
	if _, err := t.Page.Context(ctx).Eval(insertJS, anchor.Snapshot, anchor.Index, pos.String(), fragment); err != nil {
		return fmt.Errorf("browser: insert %s: %w", id, err)
	}
	return nil
}

// Remove deletes the fragment tagged id, if still present.
func (t *Tab) Remove(ctx context.Context, id string) error {
	if _, err := t.Page.Context(ctx).Eval(removeJS, id); err != nil {
		return fmt.Errorf("browser: remove %s: %w", id, err)
	}
	return nil
}

// Rect returns the client rectangle of fragment id.
func (t *Tab) Rect(ctx context.Context, id string) (dom.Rect, error) {
	var r dom.Rect
	res, err := t.Page.Context(ctx).Eval(rectJS, id)
	if err != nil {
		return r, fmt.Errorf("browser: rect %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &r); err != nil {
		return r, fmt.Errorf("browser: rect %s: %w", id, err)
	}
	return r, nil
}

// Viewport returns the window size and vertical scroll offset.
func (t *Tab) Viewport(ctx context.Context) (dom.Size, float64, error) {
	res, err := t.Page.Context(ctx).Eval(viewportJS)
	if err != nil {
		return dom.Size{}, 0, fmt.Errorf("browser: viewport: %w", err)
	}
	var v struct {
		dom.Size
		ScrollY float64 `json:"scroll_y"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &v); err != nil {
		return dom.Size{}, 0, fmt.Errorf("browser: viewport: %w", err)
	}
	return v.Size, v.ScrollY, nil
}

// ScrollTo smooth-scrolls the window to y.
func (t *Tab) ScrollTo(ctx context.Context, y float64) error {
	if _, err := t.Page.Context(ctx).Eval(scrollJS, y); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// Notify appends a notice to the body and removes it after ttl.
func (t *Tab) Notify(ctx context.Context, id, fragment string, ttl time.Duration) error {
	if _, err := t.Page.Context(ctx).Eval(notifyJS, fragment, ttl.Milliseconds()); err != nil {
		return fmt.Errorf("browser: notify %s: %w", id, err)
	}
	return nil
}
