package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed bridge.js
var bridgeJS string

const bindingName = "__tldr_binding"

// InputEvent is a key-down or pointer-move forwarded by the bridge script.
type InputEvent struct {
	Type     string  `json:"type"` // "keydown" | "move"
	Key      string  `json:"key,omitempty"`
	Meta     bool    `json:"meta,omitempty"`
	Ctrl     bool    `json:"ctrl,omitempty"`
	Alt      bool    `json:"alt,omitempty"`
	Shift    bool    `json:"shift,omitempty"`
	Editable bool    `json:"editable,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	// At is the receive time in Go.
	At time.Time `json:"-"`
}

// Event types.
const (
	EventKeyDown = "keydown"
	EventMove    = "move"
)

// DecodeEvent parses one binding payload.
func DecodeEvent(payload string, at time.Time) (InputEvent, error) {
	var ev InputEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("browser: decode event: %w", err)
	}
	switch ev.Type {
	case EventKeyDown, EventMove:
	default:
		return ev, fmt.Errorf("browser: unknown event type %q", ev.Type)
	}
	ev.At = at
	return ev, nil
}

// Bridge forwards page input events to Go and publishes the chord mirror
// the bridge script consults to suppress chord keys.
type Bridge struct {
	tab    *Tab
	events chan InputEvent
	logger *slog.Logger
}

// NewBridge prepares a bridge for tab. Call Install before reading Events.
func NewBridge(tab *Tab, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{tab: tab, events: make(chan InputEvent, 256), logger: logger}
}

// Events delivers decoded events. Closed when the listening context ends.
func (b *Bridge) Events() <-chan InputEvent { return b.events }

// Install adds the CDP binding, injects the bridge script into the current
// document and every future one, and starts listening until ctx ends.
func (b *Bridge) Install(ctx context.Context) error {
	page := b.tab.Page
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(bridgeJS); err != nil {
		b.logger.Warn("browser: eval on new document failed", "error", err)
	}
	if _, err := page.Eval(`() => {` + bridgeJS + `}`); err != nil {
		return fmt.Errorf("browser: inject bridge: %w", err)
	}

	wait := page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		ev, err := DecodeEvent(e.Payload, time.Now())
		if err != nil {
			b.logger.Debug("browser: bad bridge payload", "error", err)
			return
		}
		select {
		case b.events <- ev:
		default:
			b.logger.Warn("browser: event queue full, dropping", "type", ev.Type, "page", b.tab.ID)
		}
	})
	go func() {
		wait()
		close(b.events)
	}()

	b.logger.Debug("browser: bridge installed", "page", b.tab.ID, "url", b.tab.URL)
	return nil
}

// ChordState is the matcher state mirrored into the page. The bridge script
// advances its copy locally on every chord key and accepts a published state
// only when Keys has caught up with the key-downs it has sent, so a state
// still in flight never rewinds local progress.
type ChordState struct {
	Sequence []string `json:"seq"`
	Step     int      `json:"step"`
	Timeout  int64    `json:"timeout"`  // ms
	Deadline int64    `json:"deadline"` // unix ms, 0 when idle
	Keys     int      `json:"keys"`
}

const publishJS = `(st) => {
	if (st.keys >= (window.__tldr_sent || 0)) window.__tldr_chord = st;
}`

// PublishChord replaces the page-side chord state.
func (b *Bridge) PublishChord(ctx context.Context, st ChordState) error {
	if _, err := b.tab.Page.Context(ctx).Eval(publishJS, st); err != nil {
		return fmt.Errorf("browser: publish chord: %w", err)
	}
	return nil
}
