package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"cropstudio/geom"
)

// CanvasRenderer draws the editing surface: the image under the view
// transform, a dimmed overlay with the crop shape cut out, the crop boundary
// and, for rectangles, the eight handle markers. Every call redraws from
// scratch.
type CanvasRenderer struct {
	cfg     Config
	preview *gg.ImageBuf
	dc      *gg.Context
	frame   image.Image
}

// NewCanvasRenderer prepares a surface of the display size. The source is
// resampled once to display resolution so redraws only scale by the zoom.
func NewCanvasRenderer(src image.Image, display geom.Size, cfg Config) (*CanvasRenderer, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source image not decoded", ErrRenderUnavailable)
	}
	w, h := int(display.W), int(display.H)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: invalid surface %dx%d", ErrRenderUnavailable, w, h)
	}
	fitted := imaging.Resize(src, w, h, imaging.Lanczos)
	return &CanvasRenderer{
		cfg:     cfg,
		preview: gg.ImageBufFromImage(fitted),
		dc:      gg.NewContext(w, h),
	}, nil
}

// Frame is the most recently rendered surface, nil before the first Render.
func (r *CanvasRenderer) Frame() image.Image {
	return r.frame
}

func (r *CanvasRenderer) Render(s State) error {
	dc := r.dc
	if dc == nil {
		return ErrRenderUnavailable
	}
	w, h := float64(dc.Width()), float64(dc.Height())
	area := s.CropArea

	dc.Clear()
	dc.DrawImageEx(r.preview, gg.DrawImageOptions{
		X:             s.View.OffsetX,
		Y:             s.View.OffsetY,
		DstWidth:      s.Display.W * s.View.Scale,
		DstHeight:     s.Display.H * s.View.Scale,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})

	// Overlay with the crop shape as a hole: even-odd fill of the surface
	// rectangle plus the shape.
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.DrawRectangle(0, 0, w, h)
	r.traceShape(area, s.Spec.CropShape)
	dc.SetColor(paint(r.cfg.OverlayColor, r.cfg.OverlayOpacity).Color())
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("fill overlay: %w", err)
	}
	dc.SetFillRule(gg.FillRuleNonZero)

	stroke := paint(r.cfg.StrokeColor, 1).Color()
	dc.SetColor(stroke)
	dc.SetLineWidth(r.cfg.StrokeWidth)
	r.traceShape(area, s.Spec.CropShape)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("stroke boundary: %w", err)
	}

	if s.Spec.CropShape == geom.Rectangle {
		for _, m := range geom.HandleRects(area, r.cfg.HandleSize) {
			dc.DrawRectangle(m.X, m.Y, m.W, m.H)
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("fill handles: %w", err)
		}
	}

	r.frame = dc.Image()
	return nil
}

func (r *CanvasRenderer) traceShape(area geom.Rect, shape geom.Shape) {
	if shape == geom.Circle {
		c := area.Center()
		r.dc.DrawCircle(c.X, c.Y, min(area.W, area.H)/2)
		return
	}
	r.dc.DrawRectangle(area.X, area.Y, area.W, area.H)
}
