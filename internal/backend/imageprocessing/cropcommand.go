package imageprocessing

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
)

// CropParams describes a center crop either to an aspect ratio
// (width/height) or to absolute pixel dimensions.
type CropParams struct {
	AspectRatio float64
	Width       int
	Height      int
}

// NewCropParamsFromMap creates CropParams from a generic map
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	typed := &CropParams{
		AspectRatio: getFloatParam(params, "aspectRatio", 0),
		Width:       getIntParam(params, "width", 0),
		Height:      getIntParam(params, "height", 0),
	}

	if typed.AspectRatio == 0 && typed.Width == 0 && typed.Height == 0 {
		return nil, fmt.Errorf("crop needs either aspectRatio or width and height")
	}
	if typed.AspectRatio < 0 {
		return nil, fmt.Errorf("aspectRatio must be positive, got %v", typed.AspectRatio)
	}
	if typed.AspectRatio == 0 {
		if typed.Width <= 0 {
			return nil, fmt.Errorf("width must be positive, got %d", typed.Width)
		}
		if typed.Height <= 0 {
			return nil, fmt.Errorf("height must be positive, got %d", typed.Height)
		}
	}
	return typed, nil
}

// CropCommand cuts the centered region out of the image
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a new crop command from configuration parameters
func NewCropCommand(params map[string]any) (Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &CropCommand{
		name:   "CropCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *CropCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

// Execute crops the image around its center
func (c *CropCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()

	cropWidth, cropHeight := c.cropSize(originalWidth, originalHeight)
	if cropWidth >= originalWidth && cropHeight >= originalHeight {
		return img, nil
	}
	cropWidth = min(cropWidth, originalWidth)
	cropHeight = min(cropHeight, originalHeight)

	x0 := bounds.Min.X + (originalWidth-cropWidth)/2
	y0 := bounds.Min.Y + (originalHeight-cropHeight)/2
	region := image.Rect(x0, y0, x0+cropWidth, y0+cropHeight)

	slog.Debug("CropCommand: performing center crop",
		"crop_x", x0,
		"crop_y", y0,
		"crop_width", cropWidth,
		"crop_height", cropHeight)

	cropped := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Draw(cropped, cropped.Bounds(), img, region.Min, draw.Src)
	return cropped, nil
}

func (c *CropCommand) cropSize(width, height int) (int, int) {
	if c.params.AspectRatio == 0 {
		return c.params.Width, c.params.Height
	}
	current := float64(width) / float64(height)
	if current > c.params.AspectRatio {
		return max(1, int(float64(height)*c.params.AspectRatio)), height
	}
	return width, max(1, int(float64(width)/c.params.AspectRatio))
}

func init() {
	mustRegister("CropCommand", NewCropCommand)
}
