// Package geom holds the pure geometry behind the crop editor: clamping,
// handle hit-testing and handle-driven resizing of the crop rectangle.
//
// All values are in display space unless stated otherwise. Nothing in this
// package allocates, logs or returns errors; out-of-range input is clamped.
package geom

import (
	"fmt"
	"math"
)

// MinCropSize is the smallest width or height a crop area may have.
const MinCropSize = 50.0

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Rect is an axis-aligned rectangle given by its top-left corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("rect(x=%.2f,y=%.2f,w=%.2f,h=%.2f)", r.X, r.Y, r.W, r.H)
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Scale multiplies every component of r by (sx, sy).
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// Valid reports whether all components are finite and the size is positive.
func (r Rect) Valid() bool {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.W > 0 && r.H > 0
}

// Shape is the visible and clipped outline of the crop area.
type Shape int

const (
	Rectangle Shape = iota
	Circle
)

func (s Shape) String() string {
	if s == Circle {
		return "circle"
	}
	return "rect"
}

// ParseShape accepts "rect", "rectangle" and "circle". An empty string is a
// rectangle.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "", "rect", "rectangle":
		return Rectangle, nil
	case "circle":
		return Circle, nil
	}
	return Rectangle, fmt.Errorf("unknown crop shape %q", s)
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	v, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Clamp limits v to [lo, hi]. When lo > hi the lower bound wins.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
