package effects

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

// Filter types.
const (
	FilterNone      = "none"
	FilterGrayscale = "grayscale"
	FilterInvert    = "invert"
	FilterDither    = "dither"
	FilterEdges     = "edges"
)

// FilterParams select a whole-image filter. Threshold drives the dither
// and edges filters.
type FilterParams struct {
	Type      string
	Threshold int
}

func defaultFilter() transform.Params {
	return FilterParams{Type: FilterNone, Threshold: 127}
}

// Set implements transform.Params.
func (p FilterParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "type":
		p.Type, err = oneOf(name, v, FilterNone, FilterGrayscale, FilterInvert, FilterDither, FilterEdges)
	case "threshold":
		p.Threshold, err = intIn(name, v, 0, 255)
	default:
		return nil, transform.UnknownParam(KindFilter, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p FilterParams) Values() transform.Values {
	return transform.Values{"type": p.Type, "threshold": p.Threshold}
}

func applyFilter(src *transform.Buffer, p FilterParams) (*transform.Buffer, error) {
	switch p.Type {
	case FilterGrayscale:
		return transform.Wrap(grayscale(src.Clone())), nil
	case FilterInvert:
		return transform.Wrap(imaging.Invert(src.Image())), nil
	case FilterDither:
		return transform.Wrap(dither(src.Clone(), uint8(p.Threshold))), nil
	case FilterEdges:
		return transform.Wrap(sobel(src.Clone(), float64(p.Threshold))), nil
	}
	return src, nil
}

func luminance(r, g, b uint8) uint8 {
	return uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
}

// grayscale converts img to grayscale in place, keeping the alpha channel.
func grayscale(img *image.NRGBA) *image.NRGBA {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		l := luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = l, l, l
	}
	return img
}

// grayPixels returns the luminance of every pixel in row order.
func grayPixels(img *image.NRGBA) []uint8 {
	dx, dy := img.Rect.Dx(), img.Rect.Dy()
	gray := make([]uint8, dx*dy)
	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			i := img.PixOffset(x, y)
			gray[y*dx+x] = luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}
	return gray
}

// dither converts img to black and white in place, where the white is opaque
// and the rest fully transparent.
func dither(img *image.NRGBA, threshold uint8) *image.NRGBA {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if img.Pix[i] > threshold && img.Pix[i+1] > threshold && img.Pix[i+2] > threshold {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0xff, 0xff, 0xff, 0xff
			continue
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
	}
	return img
}

var (
	sobelX = [3][3]int32{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]int32{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// sobel detects image edges. Gradient magnitudes not above threshold are
// dropped. The window is clamped at the borders by repeating the edge pixels.
// See https://en.wikipedia.org/wiki/Sobel_operator
func sobel(img *image.NRGBA, threshold float64) *image.NRGBA {
	dx, dy := img.Rect.Dx(), img.Rect.Dy()
	gray := grayPixels(img)
	dst := image.NewNRGBA(image.Rect(0, 0, dx, dy))

	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			var sumX, sumY int32
			for ky := 0; ky < 3; ky++ {
				row := utils.Clamp(y+ky-1, 0, dy-1)
				for kx := 0; kx < 3; kx++ {
					px := int32(gray[row*dx+utils.Clamp(x+kx-1, 0, dx-1)])
					sumX += px * sobelX[ky][kx]
					sumY += px * sobelY[ky][kx]
				}
			}
			magnitude := math.Min(math.Sqrt(float64(sumX*sumX+sumY*sumY)), 255)
			if magnitude <= threshold {
				magnitude = 0
			}
			i := dst.PixOffset(x, y)
			m := uint8(magnitude)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = m, m, m, 0xff
		}
	}
	return dst
}
