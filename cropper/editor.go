package cropper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"cropstudio/geom"
)

// Editor is one crop session as seen by the host: it owns the decoded
// source, the Session, its Controller, the canvas and the extractor.
//
// Input calls are synchronous and are expected from a single goroutine. The
// mutex only guards against a commit running alongside them.
type Editor struct {
	mu         sync.Mutex
	src        image.Image
	session    *Session
	controller *Controller
	canvas     *CanvasRenderer
	extractor  *Extractor
	logger     zerolog.Logger

	closed     bool
	committing bool
}

// Option customizes an Editor.
type Option func(*Editor)

// WithEncoder replaces the output encoder.
func WithEncoder(enc Encoder) Option {
	return func(e *Editor) {
		e.extractor.encoder = enc
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// CreateSession decodes buf, honoring EXIF orientation, and starts an editor
// for it. Undecodable input fails with ErrRenderUnavailable.
func CreateSession(ctx context.Context, buf []byte, spec OutputSpec, cfg Config, opts ...Option) (*Editor, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	src, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrRenderUnavailable, err)
	}
	return NewEditor(ctx, src, spec, cfg, opts...)
}

// NewEditor starts an editor for an already decoded image.
func NewEditor(ctx context.Context, src image.Image, spec OutputSpec, cfg Config, opts ...Option) (*Editor, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source image not decoded", ErrRenderUnavailable)
	}
	b := src.Bounds()
	native := geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	if native.W < 1 || native.H < 1 {
		return nil, fmt.Errorf("%w: empty image", ErrRenderUnavailable)
	}

	session := NewSession(native, spec, cfg)
	canvas, err := NewCanvasRenderer(src, session.Snapshot().Display, cfg)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		src:       src,
		session:   session,
		canvas:    canvas,
		extractor: NewExtractor(cfg, nil),
		logger:    *log.Ctx(ctx),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.controller = NewController(session, canvas, cfg, e.logger)
	if err := e.controller.Redraw(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderUnavailable, err)
	}

	st := session.Snapshot()
	e.logger.Debug().
		Stringer("spec", spec).
		Float64("display_w", st.Display.W).
		Float64("display_h", st.Display.H).
		Stringer("crop", st.CropArea).
		Msg("crop session created")
	return e, nil
}

// PointerDown, PointerMove, PointerUp, PointerLeave and Wheel forward
// surface-local input to the controller. They are no-ops once the editor
// is closed.
func (e *Editor) PointerDown(x, y float64) {
	e.input(func(c *Controller) { c.PointerDown(geom.Pt(x, y)) })
}

func (e *Editor) PointerMove(x, y float64) {
	e.input(func(c *Controller) { c.PointerMove(geom.Pt(x, y)) })
}

func (e *Editor) PointerUp() {
	e.input(func(c *Controller) { c.PointerUp() })
}

func (e *Editor) PointerLeave() {
	e.input(func(c *Controller) { c.PointerLeave() })
}

func (e *Editor) Wheel(deltaY, x, y float64) {
	e.input(func(c *Controller) { c.Wheel(deltaY, geom.Pt(x, y)) })
}

func (e *Editor) input(fn func(*Controller)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	fn(e.controller)
}

// State returns a snapshot of the crop session.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Snapshot()
}

// Cursor is the CSS cursor for the last pointer position, "default" once
// the editor is closed.
func (e *Editor) Cursor() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.controller == nil {
		return "default"
	}
	return e.controller.Cursor()
}

// Frame returns the last rendered surface, nil once the editor is closed.
func (e *Editor) Frame() image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.canvas == nil {
		return nil
	}
	return e.canvas.Frame()
}

// Closed reports whether the editor was committed or cancelled.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Cancel discards the session without output.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.release()
}

// release closes the editor and drops the image and canvas buffers. The
// session state stays readable. Callers hold mu.
func (e *Editor) release() {
	e.closed = true
	e.src = nil
	e.canvas = nil
	e.controller = nil
}

// CommitResult is what CommitAsync delivers.
type CommitResult struct {
	Result *Result
	Err    error
}

// CommitAsync rasterizes and encodes the current crop in the background and
// delivers exactly one CommitResult on the returned channel. Success closes
// the editor; ErrEncodeFailed leaves it open for another attempt. The state
// is captured when the call is made.
func (e *Editor) CommitAsync(ctx context.Context) <-chan CommitResult {
	ch := make(chan CommitResult, 1)

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		ch <- CommitResult{Err: ErrSessionClosed}
		return ch
	case e.committing:
		e.mu.Unlock()
		ch <- CommitResult{Err: ErrCommitInProgress}
		return ch
	}
	e.committing = true
	src, st := e.src, e.session.Snapshot()
	e.mu.Unlock()

	go func() {
		res, err := e.extractor.Extract(src, st)

		e.mu.Lock()
		e.committing = false
		if err == nil {
			e.release()
		}
		e.mu.Unlock()

		logger := log.Ctx(ctx)
		if err != nil {
			logger.Debug().Err(err).Stringer("crop", st.CropArea).Msg("commit failed")
		} else {
			logger.Debug().Int("width", res.Width).Int("height", res.Height).Str("format", string(res.Format)).Msg("commit resolved")
		}
		ch <- CommitResult{Result: res, Err: err}
	}()
	return ch
}

// Commit is the blocking form of CommitAsync. Giving up on ctx does not stop
// the encode; its outcome still applies to the editor.
func (e *Editor) Commit(ctx context.Context) (*Result, error) {
	select {
	case r := <-e.CommitAsync(ctx):
		return r.Result, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
