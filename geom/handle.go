package geom

import "fmt"

// Handle identifies what a drag acts on: one of the eight resize anchors on
// the crop boundary, the whole crop area (Move), or nothing (None), which the
// editor treats as a pan of the underlying image.
type Handle int

const (
	None Handle = iota
	Move
	NW
	N
	NE
	E
	SE
	S
	SW
	W
)

// ringOrder is the order handles are tested and drawn in: corners and edge
// midpoints clockwise from the top-left.
var ringOrder = [8]Handle{NW, N, NE, E, SE, S, SW, W}

var handleNames = map[Handle]string{
	None: "none",
	Move: "move",
	NW:   "nw",
	N:    "n",
	NE:   "ne",
	E:    "e",
	SE:   "se",
	S:    "s",
	SW:   "sw",
	W:    "w",
}

func (h Handle) String() string {
	if name, ok := handleNames[h]; ok {
		return name
	}
	return fmt.Sprintf("handle(%d)", int(h))
}

func ParseHandle(s string) (Handle, error) {
	for h, name := range handleNames {
		if name == s {
			return h, nil
		}
	}
	return None, fmt.Errorf("unknown handle %q", s)
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(text []byte) error {
	v, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// IsResize reports whether h is one of the eight boundary handles.
func (h Handle) IsResize() bool {
	return h >= NW && h <= W
}

// Cursor is the CSS cursor a host should show while hovering h.
func (h Handle) Cursor() string {
	switch h {
	case NW, SE:
		return "nwse-resize"
	case NE, SW:
		return "nesw-resize"
	case N, S:
		return "ns-resize"
	case E, W:
		return "ew-resize"
	case Move:
		return "move"
	}
	return "grab"
}

func (h Handle) movesLeft() bool   { return h == NW || h == W || h == SW }
func (h Handle) movesRight() bool  { return h == NE || h == E || h == SE }
func (h Handle) movesTop() bool    { return h == NW || h == N || h == NE }
func (h Handle) movesBottom() bool { return h == SW || h == S || h == SE }

// Anchor returns the point on r that h sits on. Move and None map to the
// center.
func (h Handle) Anchor(r Rect) Point {
	c := r.Center()
	switch h {
	case NW:
		return Point{r.X, r.Y}
	case N:
		return Point{c.X, r.Y}
	case NE:
		return Point{r.Right(), r.Y}
	case E:
		return Point{r.Right(), c.Y}
	case SE:
		return Point{r.Right(), r.Bottom()}
	case S:
		return Point{c.X, r.Bottom()}
	case SW:
		return Point{r.X, r.Bottom()}
	case W:
		return Point{r.X, c.Y}
	}
	return c
}

// HandleRects returns the square marker of side size centered on each of the
// eight boundary handles, in ring order.
func HandleRects(r Rect, size float64) [8]Rect {
	var out [8]Rect
	for i, h := range ringOrder {
		p := h.Anchor(r)
		out[i] = Rect{X: p.X - size/2, Y: p.Y - size/2, W: size, H: size}
	}
	return out
}

// RingHandles returns the eight boundary handles in the order HandleRects
// lays them out.
func RingHandles() []Handle {
	return append([]Handle(nil), ringOrder[:]...)
}

// HitTestHandle returns the handle under p. Boundary zones are squares of
// side size grown by tolerance on every side and win over Move. Circle crops
// offer no boundary handles. None means p is outside the crop area.
func HitTestHandle(p Point, area Rect, shape Shape, size, tolerance float64) Handle {
	if shape == Rectangle {
		for i, zone := range HandleRects(area, size) {
			zone = Rect{
				X: zone.X - tolerance,
				Y: zone.Y - tolerance,
				W: zone.W + 2*tolerance,
				H: zone.H + 2*tolerance,
			}
			if zone.Contains(p) {
				return ringOrder[i]
			}
		}
	}
	if area.Contains(p) {
		return Move
	}
	return None
}
