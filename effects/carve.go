package effects

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// CarveParams resize the image by removing or inserting the vertical and
// horizontal seams of least energy, so the salient content keeps its
// proportions. A zero dimension is kept.
//
// The energy map is the Sobel gradient of the image after a stack blur of
// radius Blur; gradients not above Threshold count as flat. With Rescale,
// an image shrunk on both axes is first scaled down preserving its aspect
// ratio and only the remaining pixels are carved.
type CarveParams struct {
	Width, Height int
	Blur          int
	Threshold     int
	Rescale       bool
}

func defaultCarve() transform.Params {
	return CarveParams{Blur: 4, Threshold: 2}
}

// Set implements transform.Params.
func (p CarveParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "width":
		p.Width, err = intIn(name, v, 0, 1<<15)
	case "height":
		p.Height, err = intIn(name, v, 0, 1<<15)
	case "blur":
		p.Blur, err = intIn(name, v, 0, maxStackRadius)
	case "threshold":
		p.Threshold, err = intIn(name, v, 0, 255)
	case "rescale":
		p.Rescale, err = transform.ToBool(name, v)
	default:
		return nil, transform.UnknownParam(KindCarve, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p CarveParams) Values() transform.Values {
	return transform.Values{
		"width":     p.Width,
		"height":    p.Height,
		"blur":      p.Blur,
		"threshold": p.Threshold,
		"rescale":   p.Rescale,
	}
}

func applyCarve(src *transform.Buffer, p CarveParams) (*transform.Buffer, error) {
	w, h := src.Width(), src.Height()
	tw, th := p.Width, p.Height
	if tw == 0 {
		tw = w
	}
	if th == 0 {
		th = h
	}
	if (tw == w && th == h) || w == 0 || h == 0 {
		return src, nil
	}

	img := src.Clone()
	if p.Rescale && tw < w && th < h {
		img = fit(img, tw, th)
	}
	img = carveWidth(img, tw, p)
	if img.Rect.Dy() != th {
		// horizontal seams are the vertical seams of the rotated image
		img = imaging.Rotate90(img)
		img = carveWidth(img, th, p)
		img = imaging.Rotate270(img)
	}
	return transform.Wrap(img), nil
}

// fit scales img down preserving its aspect ratio until one side reaches
// its target and the other is still at least as large as its own.
func fit(img *image.NRGBA, tw, th int) *image.NRGBA {
	w, h := float64(img.Rect.Dx()), float64(img.Rect.Dy())
	scale := math.Max(float64(tw)/w, float64(th)/h)
	nw := int(math.Max(math.Round(w*scale), float64(tw)))
	nh := int(math.Max(math.Round(h*scale), float64(th)))
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

// carveWidth removes or inserts one vertical seam at a time until img is width wide.
func carveWidth(img *image.NRGBA, width int, p CarveParams) *image.NRGBA {
	for img.Rect.Dx() != width {
		seam := newSeamTable(energyMap(img, p)).seam()
		if img.Rect.Dx() > width {
			img = removeSeam(img, seam)
		} else {
			img = insertSeam(img, seam)
		}
	}
	return img
}

func energyMap(img *image.NRGBA, p CarveParams) *image.NRGBA {
	e := imaging.Clone(img)
	if p.Blur > 0 {
		e = stackBlur(e, p.Blur)
	}
	return sobel(e, float64(p.Threshold))
}

// seamTable holds, for every pixel, the cumulative energy of the cheapest
// vertical seam reaching it from the top row.
type seamTable struct {
	width, height int
	cost          []float64
}

func (t *seamTable) at(x, y int) float64 {
	return t.cost[x+y*t.width]
}

func newSeamTable(energy *image.NRGBA) *seamTable {
	w, h := energy.Rect.Dx(), energy.Rect.Dy()
	t := &seamTable{width: w, height: h, cost: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t.cost[x+y*w] = float64(energy.Pix[energy.PixOffset(x, y)])
		}
	}

	// each entry adds the cheapest of its three neighbours on the row above
	for y := 1; y < h; y++ {
		for x := 0; x < w; x++ {
			best := t.at(x, y-1)
			if x > 0 {
				best = math.Min(best, t.at(x-1, y-1))
			}
			if x < w-1 {
				best = math.Min(best, t.at(x+1, y-1))
			}
			t.cost[x+y*w] += best
		}
	}
	return t
}

// seam walks back from the cheapest pixel of the bottom row and returns
// the seam column of every row, top to bottom.
func (t *seamTable) seam() []int {
	xs := make([]int, t.height)
	last := t.height - 1

	px := 0
	for x := 1; x < t.width; x++ {
		if t.at(x, last) < t.at(px, last) {
			px = x
		}
	}
	xs[last] = px

	for y := last - 1; y >= 0; y-- {
		best := px
		for _, x := range [2]int{px - 1, px + 1} {
			if x >= 0 && x < t.width && t.at(x, y) < t.at(best, y) {
				best = x
			}
		}
		px = best
		xs[y] = px
	}
	return xs
}

func removeSeam(img *image.NRGBA, seam []int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w-1, h))
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(0, y) : img.PixOffset(0, y)+w*4]
		row := dst.Pix[dst.PixOffset(0, y):]
		cut := seam[y] * 4
		copy(row, src[:cut])
		copy(row[cut:], src[cut+4:])
	}
	return dst
}

// insertSeam duplicates the seam, the new pixel being the average of the
// seam pixel and its right neighbour.
func insertSeam(img *image.NRGBA, seam []int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w+1, h))
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(0, y) : img.PixOffset(0, y)+w*4]
		row := dst.Pix[dst.PixOffset(0, y):]
		at := (seam[y] + 1) * 4
		copy(row, src[:at])

		next := at
		if seam[y] == w-1 {
			next = at - 4
		}
		for c := 0; c < 4; c++ {
			row[at+c] = uint8((int(src[at-4+c]) + int(src[next+c]) + 1) / 2)
		}
		copy(row[at+4:], src[at:])
	}
	return dst
}
