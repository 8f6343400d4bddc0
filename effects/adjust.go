package effects

import (
	"github.com/disintegration/imaging"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// AdjustParams are tonal corrections. Percentages are in [-100, 100].
type AdjustParams struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	Gamma      float64
}

func defaultAdjust() transform.Params { return AdjustParams{Gamma: 1} }

// Set implements transform.Params.
func (p AdjustParams) Set(name string, v any) (transform.Params, error) {
	var err error
	switch name {
	case "brightness":
		p.Brightness, err = floatIn(name, v, -100, 100)
	case "contrast":
		p.Contrast, err = floatIn(name, v, -100, 100)
	case "saturation":
		p.Saturation, err = floatIn(name, v, -100, 100)
	case "gamma":
		p.Gamma, err = floatIn(name, v, 0.01, 10)
	default:
		return nil, transform.UnknownParam(KindAdjust, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Values implements transform.Params.
func (p AdjustParams) Values() transform.Values {
	return transform.Values{
		"brightness": p.Brightness,
		"contrast":   p.Contrast,
		"saturation": p.Saturation,
		"gamma":      p.Gamma,
	}
}

func applyAdjust(src *transform.Buffer, p AdjustParams) (*transform.Buffer, error) {
	if p == defaultAdjust() {
		return src, nil
	}
	dst := imaging.Clone(src.Image())
	if p.Brightness != 0 {
		dst = imaging.AdjustBrightness(dst, p.Brightness)
	}
	if p.Contrast != 0 {
		dst = imaging.AdjustContrast(dst, p.Contrast)
	}
	if p.Saturation != 0 {
		dst = imaging.AdjustSaturation(dst, p.Saturation)
	}
	if p.Gamma != 1 {
		dst = imaging.AdjustGamma(dst, p.Gamma)
	}
	return transform.Wrap(dst), nil
}
