package cropper

import (
	"errors"
	"fmt"

	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// Config holds every tunable of the editor. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	MaxDisplayWidth  int     `help:"Width of the box the image is fitted into for editing" default:"400" env:"CROP_MAX_DISPLAY_WIDTH"`
	MaxDisplayHeight int     `help:"Height of the box the image is fitted into for editing" default:"400" env:"CROP_MAX_DISPLAY_HEIGHT"`
	InitialFraction  float64 `help:"Fraction of the display the initial crop area covers" default:"0.8" env:"CROP_INITIAL_FRACTION"`
	HandleSize       float64 `help:"Side of a resize handle marker in pixels" default:"8" env:"CROP_HANDLE_SIZE"`
	HandleTolerance  float64 `help:"Extra hit-test margin around handles in pixels" default:"4" env:"CROP_HANDLE_TOLERANCE"`
	ZoomStep         float64 `help:"Scale change per wheel event" default:"0.1" env:"CROP_ZOOM_STEP"`
	MinScale         float64 `help:"Smallest zoom scale" default:"0.5" env:"CROP_MIN_SCALE"`
	MaxScale         float64 `help:"Largest zoom scale" default:"3.0" env:"CROP_MAX_SCALE"`
	AvatarMinOutput  int     `help:"Minimum long side of avatar output" default:"400" env:"CROP_AVATAR_MIN_OUTPUT"`
	BannerMinOutput  int     `help:"Minimum long side of banner output" default:"600" env:"CROP_BANNER_MIN_OUTPUT"`
	MaxOutput        int     `help:"Maximum long side of any output" default:"1200" env:"CROP_MAX_OUTPUT"`
	OverlayColor     string  `help:"Color of the dimmed overlay outside the crop" default:"#000000" env:"CROP_OVERLAY_COLOR"`
	OverlayOpacity   float64 `help:"Opacity of the dimmed overlay" default:"0.5" env:"CROP_OVERLAY_OPACITY"`
	StrokeColor      string  `help:"Color of the crop boundary and handles" default:"#ffffff" env:"CROP_STROKE_COLOR"`
	StrokeWidth      float64 `help:"Width of the crop boundary stroke" default:"2" env:"CROP_STROKE_WIDTH"`
	Format           Format  `help:"Output encoding: auto, jpeg, png or webp" default:"auto" enum:"auto,jpeg,png,webp" env:"CROP_FORMAT"`
	JPEGQuality      int     `help:"JPEG and lossy WebP quality (1-100)" default:"90" env:"CROP_JPEG_QUALITY"`
	WebPLossless     bool    `help:"Encode WebP output losslessly" env:"CROP_WEBP_LOSSLESS"`
}

func DefaultConfig() Config {
	return Config{
		MaxDisplayWidth:  400,
		MaxDisplayHeight: 400,
		InitialFraction:  0.8,
		HandleSize:       8,
		HandleTolerance:  4,
		ZoomStep:         0.1,
		MinScale:         0.5,
		MaxScale:         3.0,
		AvatarMinOutput:  400,
		BannerMinOutput:  600,
		MaxOutput:        1200,
		OverlayColor:     "#000000",
		OverlayOpacity:   0.5,
		StrokeColor:      "#ffffff",
		StrokeWidth:      2,
		Format:           FormatAuto,
		JPEGQuality:      90,
	}
}

// Validate checks that the values are consistent with each other.
func (c Config) Validate() error {
	if c.MaxDisplayWidth < 1 || c.MaxDisplayHeight < 1 {
		return errors.New("max display size must be positive")
	}
	if c.InitialFraction <= 0 || c.InitialFraction > 1 {
		return errors.New("initial fraction must be in (0, 1]")
	}
	if c.ZoomStep <= 0 {
		return errors.New("zoom step must be positive")
	}
	if c.MinScale <= 0 || c.MinScale > c.MaxScale {
		return fmt.Errorf("invalid scale range [%g, %g]", c.MinScale, c.MaxScale)
	}
	if c.AvatarMinOutput < 1 || c.BannerMinOutput < 1 {
		return errors.New("minimum output sizes must be positive")
	}
	if c.MaxOutput < c.AvatarMinOutput || c.MaxOutput < c.BannerMinOutput {
		return fmt.Errorf("max output %d is below a minimum output size", c.MaxOutput)
	}
	if c.OverlayOpacity < 0 || c.OverlayOpacity > 1 {
		return errors.New("overlay opacity must be between 0 and 1")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("jpeg quality must be between 1 and 100")
	}
	if _, err := c.Format.MarshalText(); err != nil {
		return err
	}
	for _, hex := range []string{c.OverlayColor, c.StrokeColor} {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("invalid color %q: %w", hex, err)
		}
	}
	return nil
}

// OutputBounds returns the minimum and maximum long side for an output type.
func (c Config) OutputBounds(t OutputType) (int, int) {
	if t == Banner {
		return c.BannerMinOutput, c.MaxOutput
	}
	return c.AvatarMinOutput, c.MaxOutput
}

// paint converts a hex color plus opacity to a canvas color. Invalid input
// falls back to opaque black; Validate reports it beforehand.
func paint(hex string, opacity float64) gg.RGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return gg.RGBA2(0, 0, 0, opacity)
	}
	return gg.RGBA2(c.R, c.G, c.B, opacity)
}
