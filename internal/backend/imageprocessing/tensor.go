package imageprocessing

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"

	// NormalizationMobileNetV2 scales pixels to [-1, 1] (x/127.5 - 1).
	NormalizationMobileNetV2 = "mobilenet_v2"
	// NormalizationUnit scales pixels to [0, 1].
	NormalizationUnit = "unit"
	// NormalizationImageNet standardizes [0, 1] pixels with ImageNet mean/std.
	NormalizationImageNet = "imagenet"
)

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// TensorSpec is the input format the model expects: a single RGB image.
type TensorSpec struct {
	Width         int
	Height        int
	Layout        string
	Normalization string
}

// NewTensorSpec derives width and height from a model input shape such as
// [1,224,224,3] (nhwc) or [1,3,224,224] (nchw).
func NewTensorSpec(shape []int64, layout, normalization string) (TensorSpec, error) {
	layout = strings.ToLower(layout)
	if layout == "" {
		layout = LayoutNHWC
	}
	normalization = strings.ToLower(normalization)
	if normalization == "" {
		normalization = NormalizationMobileNetV2
	}
	switch normalization {
	case NormalizationMobileNetV2, NormalizationUnit, NormalizationImageNet:
	default:
		return TensorSpec{}, fmt.Errorf("unknown normalization: %s", normalization)
	}

	if len(shape) != 4 {
		return TensorSpec{}, fmt.Errorf("expected a 4 dimensional input shape, got %v", shape)
	}
	if shape[0] != 1 {
		return TensorSpec{}, fmt.Errorf("expected batch size 1, got %d", shape[0])
	}

	var height, width, channels int64
	switch layout {
	case LayoutNHWC:
		height, width, channels = shape[1], shape[2], shape[3]
	case LayoutNCHW:
		channels, height, width = shape[1], shape[2], shape[3]
	default:
		return TensorSpec{}, fmt.Errorf("unknown tensor layout: %s", layout)
	}
	if channels != 3 {
		return TensorSpec{}, fmt.Errorf("expected 3 color channels, got %d", channels)
	}
	if width <= 0 || height <= 0 {
		return TensorSpec{}, fmt.Errorf("invalid input resolution %dx%d", width, height)
	}

	return TensorSpec{
		Width:         int(width),
		Height:        int(height),
		Layout:        layout,
		Normalization: normalization,
	}, nil
}

// Size is the number of float32 values in the tensor.
func (s TensorSpec) Size() int {
	return 3 * s.Width * s.Height
}

// ToTensor converts an image already sized Width x Height into a flat
// float32 tensor. Alpha is dropped without compositing.
func (s TensorSpec) ToTensor(img image.Image) ([]float32, error) {
	bounds := img.Bounds()
	if bounds.Dx() != s.Width || bounds.Dy() != s.Height {
		return nil, fmt.Errorf("image is %dx%d, tensor expects %dx%d", bounds.Dx(), bounds.Dy(), s.Width, s.Height)
	}

	data := make([]float32, s.Size())
	plane := s.Width * s.Height

	parallelRows(s.Height, func(y int) {
		for x := 0; x < s.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			rgb := [3]float32{
				s.normalize(0, c.R),
				s.normalize(1, c.G),
				s.normalize(2, c.B),
			}

			pixel := y*s.Width + x
			for ch := 0; ch < 3; ch++ {
				if s.Layout == LayoutNCHW {
					data[ch*plane+pixel] = rgb[ch]
				} else {
					data[pixel*3+ch] = rgb[ch]
				}
			}
		}
	})
	return data, nil
}

func (s TensorSpec) normalize(channel int, value uint8) float32 {
	v := float32(value)
	switch s.Normalization {
	case NormalizationUnit:
		return v / 255
	case NormalizationImageNet:
		return (v/255 - imageNetMean[channel]) / imageNetStd[channel]
	default:
		return v/127.5 - 1
	}
}
