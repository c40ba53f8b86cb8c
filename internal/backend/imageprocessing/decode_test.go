package imageprocessing

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"testing"
)

func TestDecoder_RasterFormats(t *testing.T) {
	img := newSolidImage(12, 8, color.RGBA{R: 10, G: 120, B: 200, A: 255})

	for _, format := range []string{"png", "jpeg", "gif", "bmp"} {
		t.Run(format, func(t *testing.T) {
			data := encodeTestImage(t, img, format)
			decoded, got, err := Decoder{}.Decode(data)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got != format {
				t.Errorf("Expected format %s, got %s", format, got)
			}
			if decoded.Bounds().Dx() != 12 || decoded.Bounds().Dy() != 8 {
				t.Errorf("Expected 12x8, got %v", decoded.Bounds())
			}
		})
	}
}

func TestDecoder_RejectsNonImages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Text", []byte("this is not an image at all")},
		{"Truncated PNG", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decoder{}.Decode(tt.data)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, ErrUndecodable) {
				t.Errorf("Expected ErrUndecodable, got %v", err)
			}
		})
	}
}

func TestDecoder_SVGExplicitSize(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">
<rect x="0" y="0" width="40" height="20" fill="#000000"/></svg>`)

	img, format, err := Decoder{}.Decode(svg)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if format != "svg" {
		t.Errorf("Expected svg format, got %s", format)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("Expected 40x20, got %v", img.Bounds())
	}
}

func TestDecoder_SVGFallbackSize(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><circle cx="5" cy="5" r="4" stroke-width="1"/></svg>`)

	if _, _, err := (Decoder{}).Decode(svg); err == nil {
		t.Error("Expected error without explicit size or fallback")
	}

	img, _, err := Decoder{SVGFallbackWidth: 64, SVGFallbackHeight: 32}.Decode(svg)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("Expected fallback 64x32, got %v", img.Bounds())
	}
}

func TestParseSvgExplicitSize_IgnoresStrokeWidth(t *testing.T) {
	_, _, ok := parseSvgExplicitSize([]byte(`<svg stroke-width="3" height="10">`))
	if ok {
		t.Error("stroke-width must not be read as width")
	}

	w, h, ok := parseSvgExplicitSize([]byte(`<svg width="120px" height='80'>`))
	if !ok || w != 120 || h != 80 {
		t.Errorf("Expected 120x80, got %dx%d (ok=%v)", w, h, ok)
	}
}

// pngWithClaimedSize encodes a 1x1 PNG and rewrites its IHDR to claim
// width x height without carrying the pixel data.
func pngWithClaimedSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := encodeTestImage(t, image.NewGray(image.Rect(0, 0, 1, 1)), "png")
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecoder_RejectsOversizedRasters(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		maxPixels int
	}{
		{"Header claims 12000x12000", pngWithClaimedSize(t, 12000, 12000), 0},
		{"Header claims 100000x1", pngWithClaimedSize(t, 100000, 1), 50000},
		{"Real image above limit", encodeTestImage(t, newSolidImage(20, 20, color.White), "png"), 399},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decoder{MaxPixels: tt.maxPixels}.Decode(tt.data)
			if !errors.Is(err, ErrUndecodable) {
				t.Errorf("Expected ErrUndecodable, got %v", err)
			}
		})
	}
}

func TestDecoder_AcceptsImageAtLimit(t *testing.T) {
	data := encodeTestImage(t, newSolidImage(20, 20, color.White), "png")
	img, _, err := Decoder{MaxPixels: 400}.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Errorf("Expected 20x20, got %v", img.Bounds())
	}
}
