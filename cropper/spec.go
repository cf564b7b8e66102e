package cropper

import (
	"fmt"

	"cropstudio/geom"
)

// OutputType selects the size policy for the final image.
type OutputType int

const (
	Avatar OutputType = iota
	Banner
)

func (t OutputType) String() string {
	if t == Banner {
		return "banner"
	}
	return "avatar"
}

func (t OutputType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *OutputType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "avatar":
		*t = Avatar
	case "banner":
		*t = Banner
	default:
		return fmt.Errorf("unknown output type %q", text)
	}
	return nil
}

// OutputSpec is what the host asks for when a session starts.
type OutputSpec struct {
	Type OutputType `json:"type"`
	// AspectRatio is width/height. Zero leaves the crop free-form.
	AspectRatio float64    `json:"aspectRatio"`
	CropShape   geom.Shape `json:"cropShape"`
}

func (s OutputSpec) String() string {
	return fmt.Sprintf("%s(ratio=%.3f,shape=%s)", s.Type, s.AspectRatio, s.CropShape)
}

func (s OutputSpec) validate() error {
	if s.AspectRatio < 0 {
		return fmt.Errorf("negative aspect ratio %g", s.AspectRatio)
	}
	return nil
}

// Format is the encoding of the committed image.
type Format string

const (
	// FormatAuto picks PNG for circle crops so the corners stay transparent,
	// JPEG otherwise.
	FormatAuto Format = "auto"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

func (f Format) MarshalText() ([]byte, error) {
	switch f {
	case FormatAuto, FormatJPEG, FormatPNG, FormatWebP:
		return []byte(f), nil
	case "":
		return []byte(FormatAuto), nil
	}
	return nil, fmt.Errorf("unknown output format %q", string(f))
}

func (f *Format) UnmarshalText(text []byte) error {
	v := Format(text)
	if v == "jpg" {
		v = FormatJPEG
	}
	if _, err := v.MarshalText(); err != nil {
		return err
	}
	if v == "" {
		v = FormatAuto
	}
	*f = v
	return nil
}

// resolve picks the concrete encoding for a shape.
func (f Format) resolve(shape geom.Shape) Format {
	if f != FormatAuto && f != "" {
		return f
	}
	if shape == geom.Circle {
		return FormatPNG
	}
	return FormatJPEG
}

// MIMEType of a concrete format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	}
	return "image/jpeg"
}

// Ext is the file extension for a concrete format, dot included.
func (f Format) Ext() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	}
	return ".jpg"
}
