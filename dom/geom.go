package dom

import "math"

// Point is a position in viewport (client) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a viewport size in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a bounding client rectangle. X and Y are the left and top edges.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether r has zero width or height.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Intersects reports whether any part of r lies inside a viewport of size vp.
// Partially off-screen rectangles intersect.
func (r Rect) Intersects(vp Size) bool {
	return !(r.Y > vp.Height || r.Bottom() < 0 || r.X > vp.Width || r.Right() < 0)
}

// Within reports whether r lies entirely inside a viewport of size vp.
func (r Rect) Within(vp Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= vp.Width && r.Bottom() <= vp.Height
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
