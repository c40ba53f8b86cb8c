package imageprocessing

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
)

const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
)

// OrientationParams represents typed parameters for orientation command
type OrientationParams struct {
	Orientation string
	Clockwise   bool
}

// NewOrientationParamsFromMap creates OrientationParams from a generic map
func NewOrientationParamsFromMap(params map[string]any) (*OrientationParams, error) {
	typed := &OrientationParams{
		Orientation: getStringParam(params, "orientation", OrientationLandscape),
		Clockwise:   getBoolParam(params, "clockwise", true),
	}
	if typed.Orientation != OrientationLandscape && typed.Orientation != OrientationPortrait {
		return nil, fmt.Errorf("invalid orientation: %s (must be 'portrait' or 'landscape')", typed.Orientation)
	}
	return typed, nil
}

// OrientationCommand turns the image by 90 degrees when it does not match
// the configured orientation. Phone photos of an animal taken side on are
// often stored upright; square images are left alone.
type OrientationCommand struct {
	name   string
	params *OrientationParams
}

// NewOrientationCommand creates a new orientation command from configuration parameters
func NewOrientationCommand(params map[string]any) (Command, error) {
	typed, err := NewOrientationParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &OrientationCommand{
		name:   "OrientationCommand",
		params: typed,
	}, nil
}

func (c *OrientationCommand) Name() string {
	return c.name
}

// GetOrientation returns the configured orientation
func (c *OrientationCommand) GetOrientation() string {
	return c.params.Orientation
}

func (c *OrientationCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == height {
		return img, nil
	}

	isPortrait := height > width
	if isPortrait == (c.params.Orientation == OrientationPortrait) {
		return img, nil
	}

	slog.Debug("rotating image to match orientation",
		"width", width,
		"height", height,
		"target_orientation", c.params.Orientation,
		"clockwise", c.params.Clockwise)

	return rotate90(img, c.params.Clockwise), nil
}

// rotate90 returns img turned a quarter turn; the result starts at (0,0).
func rotate90(img image.Image, clockwise bool) *image.NRGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(src, src.Bounds(), img, bounds.Min, draw.Src)

	dst := image.NewNRGBA(image.Rect(0, 0, height, width))
	parallelRows(height, func(y int) {
		for x := 0; x < width; x++ {
			var dx, dy int
			if clockwise {
				// (x,y) -> (height-1-y, x)
				dx, dy = height-1-y, x
			} else {
				// (x,y) -> (y, width-1-x)
				dx, dy = y, width-1-x
			}
			si := src.PixOffset(x, y)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	})
	return dst
}

func init() {
	mustRegister("OrientationCommand", NewOrientationCommand)
}
