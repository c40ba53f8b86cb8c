package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Raster width/height beyond this are refused to keep uploads bounded.
const maxSVGDimension = 4096

// isSVGData reports whether the first few KB look like an SVG document.
func isSVGData(data []byte) bool {
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`)) ||
		bytes.Contains(header, []byte(`xmlns='http://www.w3.org/2000/svg'`))
}

// parseSvgExplicitSize extracts numeric width and height attributes from
// the <svg> start tag. viewBox is not treated as a pixel size.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	s := strings.ToLower(string(data[:n]))
	start := strings.Index(s, "<svg")
	if start < 0 {
		return 0, 0, false
	}
	end := strings.Index(s[start:], ">")
	if end < 0 {
		end = len(s)
	} else {
		end += start
	}
	tag := s[start:end]

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if wOk && hOk {
		return w, h, true
	}
	return 0, 0, false
}

// parseNumericAttr reads the leading integer of attr="123px" style values.
func parseNumericAttr(tag, attr string) (int, bool) {
	for offset := 0; offset < len(tag); {
		pos := strings.Index(tag[offset:], attr+"=")
		if pos < 0 {
			return 0, false
		}
		pos += offset
		// skip matches inside longer names such as stroke-width
		if pos > 0 && tag[pos-1] != ' ' && tag[pos-1] != '\t' && tag[pos-1] != '\n' {
			offset = pos + len(attr)
			continue
		}

		val := strings.TrimLeft(tag[pos+len(attr)+1:], `"'`)
		digits := 0
		for digits < len(val) && val[digits] >= '0' && val[digits] <= '9' {
			digits++
		}
		num, err := strconv.Atoi(val[:digits])
		if err != nil || num <= 0 {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

// renderSVG rasterizes an SVG onto a white canvas of the given size.
func renderSVG(svgData []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 || width > maxSVGDimension || height > maxSVGDimension {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", width, height)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)

	return dst, nil
}
