// Package chord recognises a fixed key sequence typed outside editable
// fields. The matcher is a strict "next expected symbol" state machine: a key
// either advances the partial match, restarts it from the first symbol, or
// clears it. Only keys that belong to an in-progress chord are reported as
// intercepted, so unrelated keys keep reaching the host page.
package chord

import (
	"strings"
	"time"
)

// DefaultSequence is the chord that triggers a summary.
var DefaultSequence = []string{"t", "l", "d", "r"}

// DefaultTimeout is the maximum gap between two chord keys.
const DefaultTimeout = 1000 * time.Millisecond

// Key is one key-down event as observed in the page.
type Key struct {
	Key      string // KeyboardEvent.key
	Meta     bool
	Ctrl     bool
	Alt      bool
	Shift    bool
	Editable bool // focus was in an input, textarea or contenteditable element
	At       time.Time
}

// Decision is the matcher's verdict for one key.
type Decision struct {
	// Intercept reports that the page's default handling should be suppressed.
	Intercept bool
	// Fired reports that this key completed the chord.
	Fired bool
}

// Matcher holds the partial chord. It is not safe for concurrent use; a page
// session feeds it from a single goroutine.
type Matcher struct {
	target  []string
	timeout time.Duration
	buf     []string
	last    time.Time
}

// New creates a Matcher for sequence. An empty sequence selects
// DefaultSequence, a non-positive timeout selects DefaultTimeout.
func New(sequence []string, timeout time.Duration) *Matcher {
	if len(sequence) == 0 {
		sequence = DefaultSequence
	}
	target := make([]string, len(sequence))
	for i, s := range sequence {
		target[i] = strings.ToLower(s)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Matcher{
		target:  target,
		timeout: timeout,
		buf:     make([]string, 0, len(target)),
	}
}

// Press feeds one key to the matcher.
func (m *Matcher) Press(k Key) Decision {
	if ignored(k) {
		return Decision{}
	}

	if len(m.buf) > 0 && k.At.Sub(m.last) > m.timeout {
		m.buf = m.buf[:0]
	}
	m.last = k.At

	key := strings.ToLower(k.Key)

	if key == m.target[len(m.buf)] {
		m.buf = append(m.buf, key)
		if len(m.buf) == len(m.target) {
			m.buf = m.buf[:0]
			return Decision{Intercept: true, Fired: true}
		}
		return Decision{Intercept: true}
	}

	if key == m.target[0] {
		m.buf = append(m.buf[:0], key)
		return Decision{Intercept: true}
	}

	m.buf = m.buf[:0]
	return Decision{}
}

// Len returns the length of the partial match.
func (m *Matcher) Len() int { return len(m.buf) }

// Reset clears any partial match.
func (m *Matcher) Reset() { m.buf = m.buf[:0] }

// Sequence returns a copy of the chord.
func (m *Matcher) Sequence() []string {
	out := make([]string, len(m.target))
	copy(out, m.target)
	return out
}

// Timeout returns the maximum gap between two chord keys.
func (m *Matcher) Timeout() time.Duration { return m.timeout }

// Expect returns the symbol that the next key must equal to advance the
// match at time now. Progress older than the timeout counts as expired.
func (m *Matcher) Expect(now time.Time) string {
	if len(m.buf) == 0 || now.Sub(m.last) > m.timeout {
		return m.target[0]
	}
	return m.target[len(m.buf)]
}

// Deadline returns the instant after which the partial match expires.
// Zero when there is no partial match.
func (m *Matcher) Deadline() time.Time {
	if len(m.buf) == 0 {
		return time.Time{}
	}
	return m.last.Add(m.timeout)
}

func ignored(k Key) bool {
	if k.Editable || k.Meta || k.Ctrl || k.Alt || k.Shift {
		return true
	}
	return k.Key == ""
}
