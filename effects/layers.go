package effects

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// The kernels of this file ignore their input pixels: they generate layers
// meant to be placed inside a group with the layer.* parameters.

// FillParams produce a solid rectangle. A zero dimension takes the input's.
type FillParams struct {
	Color         color.NRGBA
	Width, Height int
}

func defaultFill() transform.Params { return FillParams{} }

// Set implements transform.Params.
func (p FillParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "color":
		p.Color, err = transform.ToColor(name, v)
	case "width":
		p.Width, err = intIn(name, v, 0, 1<<15)
	case "height":
		p.Height, err = intIn(name, v, 0, 1<<15)
	default:
		return nil, transform.UnknownParam(KindFill, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p FillParams) Values() transform.Values {
	return transform.Values{"color": transform.HexColor(p.Color), "width": p.Width, "height": p.Height}
}

func applyFill(src *transform.Buffer, p FillParams) (*transform.Buffer, error) {
	w, h := p.Width, p.Height
	if w == 0 {
		w = src.Width()
	}
	if h == 0 {
		h = src.Height()
	}
	return transform.Solid(w, h, p.Color), nil
}

// TextParams render a label with the basic bitmap font, enlarged by an
// integral scale factor. Lines are separated by "\n".
type TextParams struct {
	Content string
	Scale   int
	Color   color.NRGBA
}

func defaultText() transform.Params {
	return TextParams{Scale: 1, Color: color.NRGBA{A: 0xff}}
}

// Set implements transform.Params.
func (p TextParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "content":
		p.Content, err = transform.ToString(name, v)
	case "scale":
		p.Scale, err = intIn(name, v, 1, 32)
	case "color":
		p.Color, err = transform.ToColor(name, v)
	default:
		return nil, transform.UnknownParam(KindText, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p TextParams) Values() transform.Values {
	return transform.Values{"content": p.Content, "scale": p.Scale, "color": transform.HexColor(p.Color)}
}

func applyText(_ *transform.Buffer, p TextParams) (*transform.Buffer, error) {
	if p.Content == "" {
		return transform.Transparent(0, 0), nil
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	lines := strings.Split(p.Content, "\n")

	d := &font.Drawer{Face: face, Src: image.NewUniform(p.Color)}
	width := 0
	for _, l := range lines {
		if w := d.MeasureString(l).Ceil(); w > width {
			width = w
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, lineHeight*len(lines)))
	d.Dst = img
	for i, l := range lines {
		d.Dot = fixed.P(0, i*lineHeight+metrics.Ascent.Ceil())
		d.DrawString(l)
	}

	if p.Scale > 1 {
		img = imaging.Resize(img, img.Rect.Dx()*p.Scale, img.Rect.Dy()*p.Scale, imaging.NearestNeighbor)
	}
	return transform.Wrap(img), nil
}

// AssetProvider resolves sticker names to images.
type AssetProvider interface {
	Asset(name string) (*transform.Buffer, error)
}

// MapAssets serves stickers from memory.
type MapAssets map[string]*transform.Buffer

// Asset implements AssetProvider.
func (m MapAssets) Asset(name string) (*transform.Buffer, error) {
	b, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown sticker %q", name)
	}
	return b, nil
}

// DirAssets serves stickers from image files in a directory. The name is
// the file name relative to the directory.
type DirAssets string

// Asset implements AssetProvider.
func (d DirAssets) Asset(name string) (*transform.Buffer, error) {
	clean := filepath.Clean("/" + name)
	return transform.DecodeFile(filepath.Join(string(d), clean))
}

// StickerParams place a named asset scaled by Scale.
type StickerParams struct {
	Asset string
	Scale float64

	assets AssetProvider
	image  *transform.Buffer
}

func stickerDefaults(assets AssetProvider) func() transform.Params {
	return func() transform.Params {
		return StickerParams{Scale: 1, assets: assets}
	}
}

// Set implements transform.Params. The asset must resolve when set.
func (p StickerParams) Set(name string, v any) (transform.Params, error) {
	switch name {
	case "asset":
		s, err := transform.ToString(name, v)
		if err != nil {
			return nil, err
		}
		if s == "" {
			p.Asset, p.image = "", nil
			return p, nil
		}
		img, err := p.assets.Asset(s)
		if err != nil {
			return nil, transform.InvalidParam(name, v, err.Error())
		}
		p.Asset, p.image = s, img
	case "scale":
		f, err := floatIn(name, v, 0.01, 100)
		if err != nil {
			return nil, err
		}
		p.Scale = f
	default:
		return nil, transform.UnknownParam(KindSticker, name)
	}
	return p, nil
}

// Values implements transform.Params.
func (p StickerParams) Values() transform.Values {
	return transform.Values{"asset": p.Asset, "scale": p.Scale}
}

func applySticker(_ *transform.Buffer, p StickerParams) (*transform.Buffer, error) {
	if p.image == nil {
		return transform.Transparent(0, 0), nil
	}
	if p.Scale == 1 {
		return p.image, nil
	}
	w := int(math.Round(float64(p.image.Width()) * p.Scale))
	h := int(math.Round(float64(p.image.Height()) * p.Scale))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), p.image.Image(), p.image.Image().Bounds(), xdraw.Src, nil)
	return transform.Wrap(dst), nil
}
