package effects

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// CropParams select a rectangle of the input. A zero width or height
// extends the rectangle to the image edge.
type CropParams struct {
	X, Y          int
	Width, Height int
}

func defaultCrop() transform.Params { return CropParams{} }

// Set implements transform.Params.
func (p CropParams) Set(name string, v any) (transform.Params, error) {
	n, err := intAtLeast(name, v, 0)
	if err != nil {
		return nil, err
	}
	switch name {
	case "x":
		p.X = n
	case "y":
		p.Y = n
	case "width":
		p.Width = n
	case "height":
		p.Height = n
	default:
		return nil, transform.UnknownParam(KindCrop, name)
	}
	return p, nil
}

// Values implements transform.Params.
func (p CropParams) Values() transform.Values {
	return transform.Values{"x": p.X, "y": p.Y, "width": p.Width, "height": p.Height}
}

func applyCrop(src *transform.Buffer, p CropParams) (*transform.Buffer, error) {
	if p == (CropParams{}) {
		return src, nil
	}
	w, h := p.Width, p.Height
	if w == 0 {
		w = src.Width() - p.X
	}
	if h == 0 {
		h = src.Height() - p.Y
	}
	rect := image.Rect(p.X, p.Y, p.X+w, p.Y+h).Intersect(image.Rect(0, 0, src.Width(), src.Height()))
	if rect.Empty() {
		return transform.Transparent(0, 0), nil
	}
	return transform.Wrap(imaging.Crop(src.Image(), rect)), nil
}

// Flip directions.
const (
	FlipNone       = "none"
	FlipHorizontal = "horizontal"
	FlipVertical   = "vertical"
)

// RotateParams rotate the image counter clockwise by Angle degrees, then
// flip it. Angles are normalised to [0, 360).
type RotateParams struct {
	Angle float64
	Flip  string
}

func defaultRotate() transform.Params { return RotateParams{Flip: FlipNone} }

// Set implements transform.Params.
func (p RotateParams) Set(name string, v any) (transform.Params, error) {
	switch name {
	case "angle":
		a, err := transform.ToFloat(name, v)
		if err != nil {
			return nil, err
		}
		a = math.Mod(a, 360)
		if a < 0 {
			a += 360
		}
		p.Angle = a
	case "flip":
		f, err := oneOf(name, v, FlipNone, FlipHorizontal, FlipVertical)
		if err != nil {
			return nil, err
		}
		p.Flip = f
	default:
		return nil, transform.UnknownParam(KindRotate, name)
	}
	return p, nil
}

// Values implements transform.Params.
func (p RotateParams) Values() transform.Values {
	return transform.Values{"angle": p.Angle, "flip": p.Flip}
}

func applyRotate(src *transform.Buffer, p RotateParams) (*transform.Buffer, error) {
	if p.Angle == 0 && p.Flip == FlipNone {
		return src, nil
	}
	var dst *image.NRGBA
	switch p.Angle {
	case 0:
		dst = imaging.Clone(src.Image())
	case 90:
		dst = imaging.Rotate90(src.Image())
	case 180:
		dst = imaging.Rotate180(src.Image())
	case 270:
		dst = imaging.Rotate270(src.Image())
	default:
		dst = imaging.Rotate(src.Image(), p.Angle, color.Transparent)
	}
	switch p.Flip {
	case FlipHorizontal:
		dst = imaging.FlipH(dst)
	case FlipVertical:
		dst = imaging.FlipV(dst)
	}
	return transform.Wrap(dst), nil
}

var resampleFilters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"linear":     imaging.Linear,
	"nearest":    imaging.NearestNeighbor,
	"catmullrom": imaging.CatmullRom,
}

// ResizeParams scale the image. A zero dimension keeps the aspect ratio;
// both zero leave the image untouched.
type ResizeParams struct {
	Width, Height int
	Filter        string
}

func defaultResize() transform.Params { return ResizeParams{Filter: "lanczos"} }

// Set implements transform.Params.
func (p ResizeParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "width":
		p.Width, err = intIn(name, v, 0, 1<<15)
	case "height":
		p.Height, err = intIn(name, v, 0, 1<<15)
	case "filter":
		p.Filter, err = oneOf(name, v, "lanczos", "linear", "nearest", "catmullrom")
	default:
		return nil, transform.UnknownParam(KindResize, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p ResizeParams) Values() transform.Values {
	return transform.Values{"width": p.Width, "height": p.Height, "filter": p.Filter}
}

func applyResize(src *transform.Buffer, p ResizeParams) (*transform.Buffer, error) {
	if p.Width == 0 && p.Height == 0 {
		return src, nil
	}
	if src.Width() == 0 || src.Height() == 0 {
		return src, nil
	}
	return transform.Wrap(imaging.Resize(src.Image(), p.Width, p.Height, resampleFilters[p.Filter])), nil
}

// BorderParams surround the image with a solid frame.
type BorderParams struct {
	Width int
	Color color.NRGBA
}

func defaultBorder() transform.Params {
	return BorderParams{Color: color.NRGBA{A: 0xff}}
}

// Set implements transform.Params.
func (p BorderParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "width":
		p.Width, err = intIn(name, v, 0, 1<<12)
	case "color":
		p.Color, err = transform.ToColor(name, v)
	default:
		return nil, transform.UnknownParam(KindBorder, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p BorderParams) Values() transform.Values {
	return transform.Values{"width": p.Width, "color": transform.HexColor(p.Color)}
}

func applyBorder(src *transform.Buffer, p BorderParams) (*transform.Buffer, error) {
	if p.Width == 0 {
		return src, nil
	}
	bg := imaging.New(src.Width()+2*p.Width, src.Height()+2*p.Width, p.Color)
	return transform.Wrap(imaging.Paste(bg, src.Image(), image.Pt(p.Width, p.Width))), nil
}
