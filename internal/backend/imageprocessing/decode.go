package imageprocessing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned for uploads that are not a supported image.
var ErrUndecodable = errors.New("not a decodable image")

// DefaultMaxPixels bounds raster uploads when Decoder.MaxPixels is unset.
const DefaultMaxPixels = 40_000_000

// Decoder turns uploaded bytes into an image. Raster formats register
// themselves with the image package; SVG is rasterized separately.
type Decoder struct {
	// SVG files without explicit width/height are rendered at this size.
	SVGFallbackWidth  int
	SVGFallbackHeight int
	// MaxPixels rejects rasters whose header claims more pixels; 0 uses DefaultMaxPixels.
	MaxPixels int
}

// Decode returns the decoded image and its format name.
func (d Decoder) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", ErrUndecodable)
	}

	if isSVGData(data) {
		img, err := d.decodeSVG(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		return img, "svg", nil
	}

	if err := d.checkDimensions(data); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrUndecodable)
	}

	slog.Debug("decoded upload",
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"input_size_bytes", len(data))

	return img, format, nil
}

// checkDimensions reads only the header so oversized images are refused
// before any pixel buffer is allocated.
func (d Decoder) checkDimensions(data []byte) error {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	limit := d.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("%w: image has no pixels", ErrUndecodable)
	}
	if int64(config.Width)*int64(config.Height) > int64(limit) {
		slog.Warn("rejected oversized upload",
			"format", format,
			"width", config.Width,
			"height", config.Height,
			"max_pixels", limit)
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodable, config.Width, config.Height, limit)
	}
	return nil
}

func (d Decoder) decodeSVG(data []byte) (image.Image, error) {
	if w, h, ok := parseSvgExplicitSize(data); ok {
		return renderSVG(data, w, h)
	}
	if d.SVGFallbackWidth <= 0 || d.SVGFallbackHeight <= 0 {
		return nil, fmt.Errorf("SVG fallback size not set; cannot render SVG without explicit size")
	}
	return renderSVG(data, d.SVGFallbackWidth, d.SVGFallbackHeight)
}
