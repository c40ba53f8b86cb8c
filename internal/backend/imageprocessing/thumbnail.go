package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// Thumbnail encodes a PNG at most width pixels wide, keeping the aspect ratio.
func Thumbnail(img image.Image, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("thumbnail width must be positive, got %d", width)
	}

	thumb := img
	if img.Bounds().Dx() > width {
		thumb = resize.Resize(uint(width), 0, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
