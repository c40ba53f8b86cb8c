package imageprocessing

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"

	"github.com/nfnt/resize"
)

const (
	ScaleModeStretch = "stretch"
	ScaleModeFit     = "fit"
)

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// ParseInterpolation maps a configured name to a resize kernel; empty means
// nearest, the Keras image loader default.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	if name == "" {
		return resize.NearestNeighbor, nil
	}
	interp, ok := interpolations[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown interpolation: %s", name)
	}
	return interp, nil
}

// ScaleParams represents typed parameters for scale command
type ScaleParams struct {
	Width         int
	Height        int
	Mode          string
	Interpolation string
}

// NewScaleParamsFromMap creates ScaleParams from a generic map
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	if err := validateRequiredParams(params, []string{"height", "width"}); err != nil {
		return nil, err
	}

	typed := &ScaleParams{
		Width:         getIntParam(params, "width", 0),
		Height:        getIntParam(params, "height", 0),
		Mode:          strings.ToLower(getStringParam(params, "mode", ScaleModeStretch)),
		Interpolation: getStringParam(params, "interpolation", "nearest"),
	}
	if err := typed.validate(); err != nil {
		return nil, err
	}
	return typed, nil
}

func (p *ScaleParams) validate() error {
	if p.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", p.Width)
	}
	if p.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", p.Height)
	}
	if p.Mode != ScaleModeStretch && p.Mode != ScaleModeFit {
		return fmt.Errorf("invalid mode: %s (must be '%s' or '%s')", p.Mode, ScaleModeStretch, ScaleModeFit)
	}
	if _, err := ParseInterpolation(p.Interpolation); err != nil {
		return err
	}
	return nil
}

// ScaleCommand resizes to a fixed size. stretch ignores the aspect ratio,
// fit keeps it and pads the remainder with white.
type ScaleCommand struct {
	name   string
	params *ScaleParams
	interp resize.InterpolationFunction
}

// NewScaleCommand creates a new scale command from configuration parameters
func NewScaleCommand(params map[string]any) (Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return newScaleCommand(typedParams)
}

// NewScaleCommandWithParams creates a scale command from concrete typed parameters
func NewScaleCommandWithParams(width, height int, mode, interpolation string) (*ScaleCommand, error) {
	typedParams := &ScaleParams{
		Width:         width,
		Height:        height,
		Mode:          strings.ToLower(mode),
		Interpolation: interpolation,
	}
	if err := typedParams.validate(); err != nil {
		return nil, err
	}
	return newScaleCommand(typedParams)
}

func newScaleCommand(params *ScaleParams) (*ScaleCommand, error) {
	interp, err := ParseInterpolation(params.Interpolation)
	if err != nil {
		return nil, err
	}
	return &ScaleCommand{
		name:   "ScaleCommand",
		params: params,
		interp: interp,
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *ScaleCommand) GetParams() *ScaleParams {
	return c.params
}

// Execute resizes the image to the configured dimensions
func (c *ScaleCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, fmt.Errorf("cannot scale empty image")
	}

	targetWidth, targetHeight := c.params.Width, c.params.Height
	if originalWidth == targetWidth && originalHeight == targetHeight {
		return img, nil
	}

	if c.params.Mode == ScaleModeStretch {
		return resize.Resize(uint(targetWidth), uint(targetHeight), img, c.interp), nil
	}

	scaledWidth, scaledHeight := computeScaledDimensions(originalWidth, originalHeight, targetWidth, targetHeight)
	scaled := resize.Resize(uint(scaledWidth), uint(scaledHeight), img, c.interp)

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	offsetX := (targetWidth - scaledWidth) / 2
	offsetY := (targetHeight - scaledHeight) / 2
	dstRect := image.Rect(offsetX, offsetY, offsetX+scaledWidth, offsetY+scaledHeight)
	draw.Draw(canvas, dstRect, scaled, scaled.Bounds().Min, draw.Over)

	slog.Debug("ScaleCommand: fitted image",
		"scaled_width", scaledWidth,
		"scaled_height", scaledHeight,
		"offset_x", offsetX,
		"offset_y", offsetY)

	return canvas, nil
}

// computeScaledDimensions fits the original into the target keeping the aspect ratio.
func computeScaledDimensions(originalWidth, originalHeight, targetWidth, targetHeight int) (int, int) {
	originalAspect := float64(originalWidth) / float64(originalHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)
	if originalAspect > targetAspect {
		return targetWidth, max(1, int(float64(targetWidth)/originalAspect))
	}
	return max(1, int(float64(targetHeight)*originalAspect)), targetHeight
}

func init() {
	mustRegister("ScaleCommand", NewScaleCommand)
}
