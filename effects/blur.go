package effects

import (
	"github.com/disintegration/imaging"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// Blur methods.
const (
	BlurGaussian = "gaussian"
	BlurStack    = "stack"
)

// BlurParams blur the whole image. A zero radius leaves it untouched.
type BlurParams struct {
	Method string
	Radius float64
}

func defaultBlur() transform.Params { return BlurParams{Method: BlurGaussian} }

// Set implements transform.Params.
func (p BlurParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "method":
		p.Method, err = oneOf(name, v, BlurGaussian, BlurStack)
	case "radius":
		p.Radius, err = floatIn(name, v, 0, maxStackRadius)
	default:
		return nil, transform.UnknownParam(KindBlur, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p BlurParams) Values() transform.Values {
	return transform.Values{"method": p.Method, "radius": p.Radius}
}

func applyBlur(src *transform.Buffer, p BlurParams) (*transform.Buffer, error) {
	if p.Radius == 0 {
		return src, nil
	}
	if p.Method == BlurStack {
		return transform.Wrap(stackBlur(src.Clone(), int(p.Radius+0.5))), nil
	}
	return transform.Wrap(imaging.Blur(src.Image(), p.Radius)), nil
}

// SharpenParams sharpen the image with an unsharp mask of the given sigma.
type SharpenParams struct {
	Sigma float64
}

func defaultSharpen() transform.Params { return SharpenParams{} }

// Set implements transform.Params.
func (p SharpenParams) Set(name string, v any) (transform.Params, error) {
	if name != "sigma" {
		return nil, transform.UnknownParam(KindSharpen, name)
	}
	sigma, err := floatIn(name, v, 0, 100)
	if err != nil {
		return nil, err
	}
	p.Sigma = sigma
	return p, nil
}

// Values implements transform.Params.
func (p SharpenParams) Values() transform.Values {
	return transform.Values{"sigma": p.Sigma}
}

func applySharpen(src *transform.Buffer, p SharpenParams) (*transform.Buffer, error) {
	if p.Sigma == 0 {
		return src, nil
	}
	return transform.Wrap(imaging.Sharpen(src.Image(), p.Sigma)), nil
}
