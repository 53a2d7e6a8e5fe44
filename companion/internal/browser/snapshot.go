package browser

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/hazyhaar/tldr/dom"
)

//go:embed snapshot.js
var snapshotJS string

// MaxNodeText caps the rendered text captured per element.
const MaxNodeText = 8000

// MaxRegistries bounds the element lists kept in the page when Release is
// never called for some keys.
const MaxRegistries = 16

const releaseJS = `(key) => { if (window.__tldr_nodes) delete window.__tldr_nodes[key]; }`

// Snapshot captures the page layout and stores the element list that node
// indexes refer to under key. Lists of other keys are left untouched, so
// overlapping invocations keep their own anchors.
func (t *Tab) Snapshot(ctx context.Context, key string) (*dom.Document, error) {
	res, err := t.Page.Context(ctx).Eval(snapshotJS, MaxNodeText, key, MaxRegistries)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	snap, err := dom.DecodeSnapshot([]byte(res.Value.Str()))
	if err != nil {
		return nil, err
	}
	doc, err := snap.Document()
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot %s: %w", t.URL, err)
	}
	doc.SetKey(key)
	return doc, nil
}

// Release drops the element list stored under key.
func (t *Tab) Release(ctx context.Context, key string) error {
	if _, err := t.Page.Context(ctx).Eval(releaseJS, key); err != nil {
		return fmt.Errorf("browser: release %s: %w", key, err)
	}
	return nil
}
