package cropper

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"cropstudio/geom"
)

// Result is a committed crop.
type Result struct {
	Buffer   []byte `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   Format `json:"format"`
	MIMEType string `json:"mimeType"`
}

// Encoder writes a rasterized crop in a concrete format.
type Encoder interface {
	Encode(w io.Writer, img image.Image, f Format) error
}

// ImagingEncoder encodes JPEG and PNG with imaging and WebP with libwebp.
type ImagingEncoder struct {
	JPEGQuality  int
	WebPLossless bool
}

func (e ImagingEncoder) Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{
			Lossless: e.WebPLossless,
			Quality:  float32(e.JPEGQuality),
		})
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.JPEGQuality))
	}
}

// Extractor maps a final session state back to native pixels and produces
// the output image.
type Extractor struct {
	cfg     Config
	encoder Encoder
}

func NewExtractor(cfg Config, encoder Encoder) *Extractor {
	if encoder == nil {
		encoder = ImagingEncoder{JPEGQuality: cfg.JPEGQuality, WebPLossless: cfg.WebPLossless}
	}
	return &Extractor{cfg: cfg, encoder: encoder}
}

// NativeRegion maps the crop area from display space into native image space,
// undoing pan and zoom, and clamps it inside the image.
func NativeRegion(s State) geom.Rect {
	bx := s.Native.W / s.Display.W
	by := s.Native.H / s.Display.H
	scale := s.View.Scale
	actual := geom.Rect{
		X: (s.CropArea.X - s.View.OffsetX) / scale * bx,
		Y: (s.CropArea.Y - s.View.OffsetY) / scale * by,
		W: s.CropArea.W / scale * bx,
		H: s.CropArea.H / scale * by,
	}
	if !actual.Valid() {
		return geom.Rect{W: s.Native.W, H: s.Native.H}
	}
	return clampRegion(actual, s.Native)
}

// clampRegion keeps at least one pixel of the region inside [0,W]x[0,H].
func clampRegion(r geom.Rect, bounds geom.Size) geom.Rect {
	r.X = geom.Clamp(r.X, 0, bounds.W-1)
	r.Y = geom.Clamp(r.Y, 0, bounds.H-1)
	r.W = geom.Clamp(r.W, 1, bounds.W-r.X)
	r.H = geom.Clamp(r.H, 1, bounds.H-r.Y)
	return r
}

// OutputSize scales (w, h) uniformly so its long side is at least minSize and
// at most maxSize. Sizes already in range are kept.
func OutputSize(w, h float64, minSize, maxSize int) (int, int) {
	long := math.Max(w, h)
	k := 1.0
	switch {
	case long < float64(minSize):
		k = float64(minSize) / long
	case long > float64(maxSize):
		k = float64(maxSize) / long
	}
	return max(1, int(math.Round(w*k))), max(1, int(math.Round(h*k)))
}

// Rasterize draws the native region of src into a new image of the output
// size. Circle crops are clipped to the inscribed circle with transparent
// corners.
func (e *Extractor) Rasterize(src image.Image, s State) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source image not decoded", ErrRenderUnavailable)
	}
	region := NativeRegion(s)
	minOut, maxOut := e.cfg.OutputBounds(s.Spec.Type)
	outW, outH := OutputSize(region.W, region.H, minOut, maxOut)

	b := src.Bounds()
	rect := image.Rect(
		b.Min.X+int(math.Round(region.X)),
		b.Min.Y+int(math.Round(region.Y)),
		b.Min.X+int(math.Round(region.Right())),
		b.Min.Y+int(math.Round(region.Bottom())),
	).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty source region %v", ErrRenderUnavailable, rect)
	}

	out := imaging.Crop(src, rect)
	if out.Bounds().Dx() != outW || out.Bounds().Dy() != outH {
		out = imaging.Resize(out, outW, outH, imaging.Lanczos)
	}
	if s.Spec.CropShape != geom.Circle {
		return out, nil
	}

	dc := gg.NewContext(outW, outH)
	defer dc.Close()
	dc.SetFillPattern(dc.CreateImagePattern(gg.ImageBufFromImage(out), 0, 0, outW, outH))
	dc.DrawCircle(float64(outW)/2, float64(outH)/2, float64(min(outW, outH))/2)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("%w: circle clip: %v", ErrRenderUnavailable, err)
	}
	return dc.Image(), nil
}

// Extract rasterizes and encodes the crop. It never returns a partial buffer.
func (e *Extractor) Extract(src image.Image, s State) (*Result, error) {
	img, err := e.Rasterize(src, s)
	if err != nil {
		return nil, err
	}
	format := e.cfg.Format.resolve(s.Spec.CropShape)

	var buf bytes.Buffer
	if err := e.encoder.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder produced no data", ErrEncodeFailed)
	}
	b := img.Bounds()
	return &Result{
		Buffer:   buf.Bytes(),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Format:   format,
		MIMEType: format.MIMEType(),
	}, nil
}
