package cropper

import (
	"github.com/rs/zerolog"

	"cropstudio/geom"
)

// Renderer redraws the crop surface from a state snapshot.
type Renderer interface {
	Render(State) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(State) error

func (f RendererFunc) Render(s State) error { return f(s) }

// drag is captured at pointer-down and dropped at pointer-up.
type drag struct {
	handle    geom.Handle
	start     geom.Point
	last      geom.Point
	startArea geom.Rect
}

// Controller turns pointer and wheel events into Session mutations, and
// redraws after every mutation. It has two states: idle (drag == nil) and
// dragging.
//
// Resize and move are computed from the drag's start so many small events
// don't accumulate rounding; panning is incremental from the previous event.
type Controller struct {
	session  *Session
	renderer Renderer
	cfg      Config
	logger   zerolog.Logger

	drag   *drag
	hover  geom.Handle
	redraw error
}

func NewController(session *Session, renderer Renderer, cfg Config, logger zerolog.Logger) *Controller {
	return &Controller{
		session:  session,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		hover:    geom.None,
	}
}

func (c *Controller) Session() *Session { return c.session }

// Dragging reports whether a drag is active.
func (c *Controller) Dragging() bool { return c.drag != nil }

// ActiveHandle is the handle of the current drag, or None.
func (c *Controller) ActiveHandle() geom.Handle {
	if c.drag == nil {
		return geom.None
	}
	return c.drag.handle
}

// PointerDown starts a drag. Inside the crop area it moves or resizes the
// crop; elsewhere on the surface it pans the image. Presses outside the
// surface are ignored.
func (c *Controller) PointerDown(p geom.Point) {
	st := c.session.Snapshot()
	surface := geom.Rect{W: st.Display.W, H: st.Display.H}
	if !surface.Contains(p) {
		return
	}
	h := c.hitTest(p)
	c.drag = &drag{
		handle:    h,
		start:     p,
		last:      p,
		startArea: st.CropArea,
	}
	c.hover = h
}

// PointerMove updates the drag, or only the hover cursor when idle.
func (c *Controller) PointerMove(p geom.Point) {
	if c.drag == nil {
		c.hover = c.hitTest(p)
		return
	}
	d := c.drag
	if d.handle == geom.None {
		c.session.ApplyPan(p.X-d.last.X, p.Y-d.last.Y)
	} else {
		delta := p.Sub(d.start)
		c.session.ApplyResize(d.startArea, d.handle, delta.X, delta.Y)
	}
	d.last = p
	c.render()
}

// PointerUp ends the drag.
func (c *Controller) PointerUp() {
	c.drag = nil
}

// PointerLeave ends the drag like PointerUp and clears the hover state.
func (c *Controller) PointerLeave() {
	c.drag = nil
	c.hover = geom.None
}

// Wheel zooms regardless of drag state and redraws, even when the scale was
// already at a limit.
func (c *Controller) Wheel(deltaY float64, p geom.Point) {
	c.session.ApplyZoom(deltaY, p)
	c.render()
}

// Cursor is the CSS cursor for the current pointer position.
func (c *Controller) Cursor() string {
	if c.drag != nil && c.drag.handle == geom.None {
		return "grabbing"
	}
	return c.hover.Cursor()
}

// Redraw renders the current state without mutating it.
func (c *Controller) Redraw() error {
	c.render()
	return c.redraw
}

func (c *Controller) hitTest(p geom.Point) geom.Handle {
	return geom.HitTestHandle(p, c.session.CropArea(), c.session.Shape(), c.cfg.HandleSize, c.cfg.HandleTolerance)
}

// render never fails the event: a failed redraw is logged and kept for
// Redraw to report.
func (c *Controller) render() {
	if c.renderer == nil {
		return
	}
	c.redraw = c.renderer.Render(c.session.Snapshot())
	if c.redraw != nil {
		c.logger.Debug().Err(c.redraw).Msg("redraw failed")
	}
}
