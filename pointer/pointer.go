// Package pointer keeps the last known cursor position of a page.
package pointer

import "github.com/hazyhaar/tldr/dom"

// Tracker records pointer-move coordinates. It is owned by one page session
// and mutated only from that session's event loop.
type Tracker struct {
	pos   dom.Point
	moves uint64
}

// Move records a pointer-move to client coordinates (x, y).
func (t *Tracker) Move(x, y float64) {
	t.pos = dom.Point{X: x, Y: y}
	t.moves++
}

// Position returns the last recorded position, (0,0) before any move.
func (t *Tracker) Position() dom.Point { return t.pos }

// Seen reports whether any pointer-move has been recorded.
func (t *Tracker) Seen() bool { return t.moves > 0 }
