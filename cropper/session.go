package cropper

import (
	"math"

	"cropstudio/geom"
)

// ViewTransform is how the image is drawn under the crop window. It never
// affects the crop area's own coordinates.
type ViewTransform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// State is an immutable copy of a Session, shared with the renderer, the
// extractor and the host.
type State struct {
	Native   geom.Size     `json:"native"`
	Display  geom.Size     `json:"display"`
	CropArea geom.Rect     `json:"cropArea"`
	View     ViewTransform `json:"view"`
	Spec     OutputSpec    `json:"spec"`
}

// ToImage maps a display-space point to native image pixels, undoing the
// view transform.
func (s State) ToImage(p geom.Point) geom.Point {
	return geom.Point{
		X: (p.X - s.View.OffsetX) / s.View.Scale * (s.Native.W / s.Display.W),
		Y: (p.Y - s.View.OffsetY) / s.View.Scale * (s.Native.H / s.Display.H),
	}
}

// Session holds the mutable crop state for one image. It is not safe for
// concurrent use; one Controller owns it.
type Session struct {
	cfg   Config
	state State
}

// NewSession fits an image of the given native size into the display box and
// places the initial crop area.
func NewSession(native geom.Size, spec OutputSpec, cfg Config) *Session {
	s := &Session{cfg: cfg}
	s.Initialize(native, spec)
	return s
}

// Initialize resets the session for an image and returns the initial crop
// area: the largest rectangle with the requested ratio inside a box of
// InitialFraction of the display, centered.
func (s *Session) Initialize(native geom.Size, spec OutputSpec) geom.Rect {
	display := FitDisplay(native, s.cfg.MaxDisplayWidth, s.cfg.MaxDisplayHeight)
	s.state = State{
		Native:  native,
		Display: display,
		View:    ViewTransform{Scale: 1},
		Spec:    spec,
	}
	s.state.CropArea = initialCropArea(display, spec.AspectRatio, s.cfg.InitialFraction)
	return s.state.CropArea
}

// FitDisplay scales native down to fit inside maxW x maxH, keeping its
// aspect. Images already inside the box keep their native size.
func FitDisplay(native geom.Size, maxW, maxH int) geom.Size {
	k := math.Min(1, math.Min(float64(maxW)/native.W, float64(maxH)/native.H))
	return geom.Size{
		W: math.Max(1, math.Round(native.W*k)),
		H: math.Max(1, math.Round(native.H*k)),
	}
}

func initialCropArea(display geom.Size, aspect, fraction float64) geom.Rect {
	var w, h float64
	if aspect > 0 {
		w = display.W * fraction
		h = w / aspect
		if limit := display.H * fraction; h > limit {
			h = limit
			w = h * aspect
		}
	} else {
		w = math.Min(display.W, display.H) * fraction
		h = w
	}

	// Grow to the minimum size when the display allows it, never past it.
	minW, minH := geom.MinCropSize, geom.MinCropSize
	if aspect > 0 {
		minW = math.Max(minW, minH*aspect)
		minH = minW / aspect
	}
	if w < minW || h < minH {
		w, h = minW, minH
	}
	if w > display.W {
		w = display.W
		if aspect > 0 {
			h = w / aspect
		}
	}
	if h > display.H {
		h = display.H
		if aspect > 0 {
			w = h * aspect
		}
	}
	return geom.Rect{
		X: (display.W - w) / 2,
		Y: (display.H - h) / 2,
		W: w,
		H: h,
	}
}

func (s *Session) Snapshot() State { return s.state }

func (s *Session) CropArea() geom.Rect { return s.state.CropArea }

func (s *Session) View() ViewTransform { return s.state.View }

func (s *Session) Shape() geom.Shape { return s.state.Spec.CropShape }

// ApplyResize sets the crop area to from dragged by (dx, dy) with handle h.
// from is the area captured when the drag started.
func (s *Session) ApplyResize(from geom.Rect, h geom.Handle, dx, dy float64) {
	s.state.CropArea = geom.ResizeCropArea(from, h, dx, dy, s.state.Display, s.state.Spec.AspectRatio)
}

// ApplyPan moves the image under the crop window. Panning is unbounded.
func (s *Session) ApplyPan(dx, dy float64) {
	if !finite(dx) || !finite(dy) {
		return
	}
	s.state.View.OffsetX += dx
	s.state.View.OffsetY += dy
}

// ApplyZoom steps the scale down for delta > 0 and up for delta < 0, and
// moves the offset so the image point under pointer stays put. It reports
// whether the scale changed.
func (s *Session) ApplyZoom(delta float64, pointer geom.Point) bool {
	if delta == 0 || !finite(delta) {
		return false
	}
	step := s.cfg.ZoomStep
	if delta > 0 {
		step = -step
	}
	old := s.state.View.Scale
	// Rounding keeps repeated steps on the 1/1000 grid.
	scale := geom.Clamp(math.Round((old+step)*1000)/1000, s.cfg.MinScale, s.cfg.MaxScale)
	if scale == old {
		return false
	}
	k := scale / old
	s.state.View = ViewTransform{
		Scale:   scale,
		OffsetX: pointer.X - (pointer.X-s.state.View.OffsetX)*k,
		OffsetY: pointer.Y - (pointer.Y-s.state.View.OffsetY)*k,
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
