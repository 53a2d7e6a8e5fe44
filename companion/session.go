package companion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tldr/chord"
	"github.com/hazyhaar/tldr/companion/internal/browser"
	"github.com/hazyhaar/tldr/dom"
	"github.com/hazyhaar/tldr/pointer"
)

// Event is one input event forwarded from a page.
type Event = browser.InputEvent

// Event types.
const (
	EventKeyDown = browser.EventKeyDown
	EventMove    = browser.EventMove
)

// Trigger is what a completed chord invokes.
type Trigger interface {
	OnTrigger(ctx context.Context, page Page, cursor dom.Point) error
}

// ChordState is the matcher state mirrored into the page.
type ChordState = browser.ChordState

// ChordMirror receives the matcher state after every chord key so the page
// can suppress chord keys before they reach the host page's handlers.
type ChordMirror interface {
	PublishChord(ctx context.Context, st ChordState) error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	ID       string
	Page     Page
	Trigger  Trigger
	Sequence []string      // default chord.DefaultSequence
	Timeout  time.Duration // default chord.DefaultTimeout
	Mirror   ChordMirror   // optional
	Logger   *slog.Logger
}

// Session is the per-page event loop: it owns the chord matcher and the
// pointer tracker, and launches one invocation per completed chord.
type Session struct {
	id      string
	page    Page
	trigger Trigger
	matcher *chord.Matcher
	tracker pointer.Tracker
	mirror  ChordMirror
	logger  *slog.Logger

	keys int // key-downs handled, compared against the page's count

	wg       sync.WaitGroup
	mu       sync.Mutex
	triggers int
}

// NewSession creates a Session. Create one per page load.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		id:      cfg.ID,
		page:    cfg.Page,
		trigger: cfg.Trigger,
		matcher: chord.New(cfg.Sequence, cfg.Timeout),
		mirror:  cfg.Mirror,
		logger:  cfg.Logger.With("session", cfg.ID),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run consumes events until the channel closes or ctx ends. Invocations
// started by Run keep ctx as their context.
func (s *Session) Run(ctx context.Context, events <-chan Event) error {
	s.publish(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ctx, ev)
		}
	}
}

// Handle processes one event. Exported for callers that drive the session
// from their own loop; it must not be called concurrently.
func (s *Session) Handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventMove:
		s.tracker.Move(ev.X, ev.Y)
	case EventKeyDown:
		s.keys++
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		before := s.matcher.Len()
		d := s.matcher.Press(chord.Key{
			Key: ev.Key, Meta: ev.Meta, Ctrl: ev.Ctrl, Alt: ev.Alt, Shift: ev.Shift,
			Editable: ev.Editable, At: at,
		})
		if d.Fired {
			s.fire(ctx, s.tracker.Position())
		}
		if d.Intercept || before != s.matcher.Len() {
			s.publish(ctx, at)
		}
	}
}

func (s *Session) fire(ctx context.Context, cursor dom.Point) {
	s.mu.Lock()
	s.triggers++
	s.mu.Unlock()

	if s.tracker.Seen() {
		s.logger.Debug("session: chord fired", "x", cursor.X, "y", cursor.Y)
	} else {
		s.logger.Info("session: chord fired before any pointer move, using the page origin")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("session: invocation panicked", "panic", r)
			}
		}()
		if err := s.trigger.OnTrigger(ctx, s.page, cursor); err != nil {
			s.logger.Debug("session: invocation ended", "error", err)
		}
	}()
}

func (s *Session) publish(ctx context.Context, now time.Time) {
	if s.mirror == nil {
		return
	}
	st := ChordState{
		Sequence: s.matcher.Sequence(),
		Step:     s.matcher.Len(),
		Timeout:  s.matcher.Timeout().Milliseconds(),
		Keys:     s.keys,
	}
	if d := s.matcher.Deadline(); !d.IsZero() && now.Before(d) {
		st.Deadline = d.UnixMilli()
	} else {
		st.Step = 0
	}
	if err := s.mirror.PublishChord(ctx, st); err != nil {
		s.logger.Debug("session: publish chord", "error", err)
	}
}

// Wait blocks until every invocation started so far has returned.
func (s *Session) Wait() { s.wg.Wait() }

// Triggers returns how many times the chord fired.
func (s *Session) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}
