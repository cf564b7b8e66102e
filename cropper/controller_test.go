package cropper

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"cropstudio/geom"
)

type countingRenderer struct {
	calls int
	last  State
	err   error
}

func (r *countingRenderer) Render(s State) error {
	r.calls++
	r.last = s
	return r.err
}

func newTestController(t *testing.T, spec OutputSpec) (*Controller, *countingRenderer) {
	t.Helper()
	cfg := DefaultConfig()
	r := &countingRenderer{}
	s := NewSession(geom.Size{W: 400, H: 400}, spec, cfg)
	return NewController(s, r, cfg, zerolog.Nop()), r
}

func TestControllerResizeThenMove(t *testing.T) {
	c, r := newTestController(t, OutputSpec{AspectRatio: 1})

	c.PointerDown(geom.Pt(360, 360))
	if got := c.ActiveHandle(); got != geom.SE {
		t.Fatalf("active handle = %v, want se", got)
	}
	c.PointerMove(geom.Pt(380, 380))
	c.PointerMove(geom.Pt(410, 410))
	c.PointerUp()

	want := geom.Rect{X: 40, Y: 40, W: 360, H: 360}
	if diff := cmp.Diff(want, c.Session().CropArea(), approx); diff != "" {
		t.Errorf("after se drag (-want +got):\n%s", diff)
	}
	if c.Dragging() {
		t.Error("still dragging after pointer up")
	}

	c.PointerDown(geom.Pt(200, 200))
	if got := c.ActiveHandle(); got != geom.Move {
		t.Fatalf("active handle = %v, want move", got)
	}
	c.PointerMove(geom.Pt(190, 190))
	c.PointerUp()

	want = geom.Rect{X: 30, Y: 30, W: 360, H: 360}
	if diff := cmp.Diff(want, c.Session().CropArea(), approx); diff != "" {
		t.Errorf("after move (-want +got):\n%s", diff)
	}
	if r.calls != 3 {
		t.Errorf("renders = %d, want one per move event (3)", r.calls)
	}
	if diff := cmp.Diff(c.Session().Snapshot(), r.last); diff != "" {
		t.Errorf("last render saw stale state (-session +rendered):\n%s", diff)
	}
}

func TestControllerResizeIsAbsoluteFromStart(t *testing.T) {
	c, _ := newTestController(t, OutputSpec{})

	c.PointerDown(geom.Pt(40, 200))
	for x := 41.0; x <= 100; x += 0.7 {
		c.PointerMove(geom.Pt(x, 200))
	}
	c.PointerMove(geom.Pt(100, 200))

	want := geom.Rect{X: 100, Y: 40, W: 260, H: 320}
	if diff := cmp.Diff(want, c.Session().CropArea(), approx); diff != "" {
		t.Errorf("w drag drifted (-want +got):\n%s", diff)
	}
}

func TestControllerPanIsIncremental(t *testing.T) {
	c, r := newTestController(t, OutputSpec{AspectRatio: 1})
	area := c.Session().CropArea()

	c.PointerDown(geom.Pt(10, 10))
	if got := c.ActiveHandle(); got != geom.None {
		t.Fatalf("active handle = %v, want none (pan)", got)
	}
	if got := c.Cursor(); got != "grabbing" {
		t.Errorf("cursor = %q, want grabbing", got)
	}
	c.PointerMove(geom.Pt(20, 25))
	c.PointerMove(geom.Pt(30, 30))
	c.PointerLeave()

	want := ViewTransform{Scale: 1, OffsetX: 20, OffsetY: 20}
	if diff := cmp.Diff(want, c.Session().View()); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(area, c.Session().CropArea()); diff != "" {
		t.Errorf("pan moved the crop area (-want +got):\n%s", diff)
	}
	if r.calls != 2 {
		t.Errorf("renders = %d, want 2", r.calls)
	}

	c.PointerMove(geom.Pt(100, 100))
	if c.Session().View().OffsetX != 20 {
		t.Error("move after pointer leave still panned")
	}
}

func TestControllerHoverDoesNotMutate(t *testing.T) {
	c, r := newTestController(t, OutputSpec{AspectRatio: 1})
	before := c.Session().Snapshot()

	tests := []struct {
		p    geom.Point
		want string
	}{
		{geom.Pt(40, 40), "nwse-resize"},
		{geom.Pt(360, 40), "nesw-resize"},
		{geom.Pt(200, 360), "ns-resize"},
		{geom.Pt(200, 200), "move"},
		{geom.Pt(5, 5), "grab"},
	}
	for _, tt := range tests {
		c.PointerMove(tt.p)
		if got := c.Cursor(); got != tt.want {
			t.Errorf("cursor at %v = %q, want %q", tt.p, got, tt.want)
		}
	}
	if r.calls != 0 {
		t.Errorf("hover rendered %d times", r.calls)
	}
	if diff := cmp.Diff(before, c.Session().Snapshot()); diff != "" {
		t.Errorf("hover mutated state (-want +got):\n%s", diff)
	}
}

func TestControllerWheelWhileDragging(t *testing.T) {
	c, r := newTestController(t, OutputSpec{AspectRatio: 1})

	c.PointerDown(geom.Pt(200, 200))
	c.Wheel(-100, geom.Pt(200, 200))
	if !c.Dragging() {
		t.Error("wheel ended the drag")
	}
	c.PointerUp()
	c.Wheel(-100, geom.Pt(200, 200))

	if got := c.Session().View().Scale; got != 1.2 {
		t.Errorf("scale = %v, want 1.2", got)
	}
	if r.calls != 2 {
		t.Errorf("renders = %d, want 2", r.calls)
	}
}

func TestControllerIgnoresPressOutsideSurface(t *testing.T) {
	c, _ := newTestController(t, OutputSpec{})
	c.PointerDown(geom.Pt(-5, 100))
	if c.Dragging() {
		t.Error("press outside the surface started a drag")
	}
}

func TestControllerCircleOffersOnlyMove(t *testing.T) {
	c, _ := newTestController(t, OutputSpec{AspectRatio: 1, CropShape: geom.Circle})

	c.PointerDown(geom.Pt(40, 40))
	if got := c.ActiveHandle(); got != geom.Move {
		t.Errorf("active handle = %v, want move", got)
	}
	c.PointerMove(geom.Pt(30, 50))
	c.PointerUp()

	want := geom.Rect{X: 30, Y: 50, W: 320, H: 320}
	if diff := cmp.Diff(want, c.Session().CropArea(), approx); diff != "" {
		t.Errorf("circle drag (-want +got):\n%s", diff)
	}
}

func TestControllerSurvivesRenderFailure(t *testing.T) {
	c, r := newTestController(t, OutputSpec{})
	r.err = errors.New("surface lost")

	c.PointerDown(geom.Pt(200, 200))
	c.PointerMove(geom.Pt(210, 200))

	if got := c.Session().CropArea().X; got != 50 {
		t.Errorf("x = %v, want 50", got)
	}
	if err := c.Redraw(); !errors.Is(err, r.err) {
		t.Errorf("Redraw() = %v, want %v", err, r.err)
	}
}

func TestControllerResizeStaysInsideNarrowDisplay(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSession(geom.Size{W: 100, H: 1000}, OutputSpec{}, cfg)
	c := NewController(s, &countingRenderer{}, cfg, zerolog.Nop())

	if diff := cmp.Diff(geom.Size{W: 40, H: 400}, s.Snapshot().Display); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
	c.PointerDown(geom.Pt(40, 225))
	if got := c.ActiveHandle(); got != geom.SE {
		t.Fatalf("active handle = %v, want se", got)
	}
	c.PointerMove(geom.Pt(43, 228))

	want := geom.Rect{X: 0, Y: 175, W: 40, H: 53}
	if diff := cmp.Diff(want, s.CropArea(), approx); diff != "" {
		t.Errorf("crop after se drag (-want +got):\n%s", diff)
	}
}

func TestControllerWheelAlwaysRedraws(t *testing.T) {
	c, r := newTestController(t, OutputSpec{AspectRatio: 1})

	c.Wheel(0, geom.Pt(200, 200))
	for i := 0; i < 30; i++ {
		c.Wheel(1, geom.Pt(200, 200))
	}
	if got := c.Session().View().Scale; got != 0.5 {
		t.Errorf("scale = %v, want 0.5", got)
	}
	if r.calls != 31 {
		t.Errorf("renders = %d, want one per wheel event (31)", r.calls)
	}
}
