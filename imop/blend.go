// Package imop implements the Porter-Duff composition operators and the
// separable blend modes used for painting a layer over its backdrop.
// The image/draw core package implements only source-over and source,
// this package covers the remaining operators so a render group can
// composite each child with its own operator, blend mode and opacity.
package imop

import "github.com/filestack/transformations-ui-ios-sub001/utils"

// Supported blend modes.
const (
	Normal     = "normal"
	Darken     = "darken"
	Lighten    = "lighten"
	Multiply   = "multiply"
	Screen     = "screen"
	Overlay    = "overlay"
	Difference = "difference"
	Exclusion  = "exclusion"
)

var blendModes = []string{Normal, Darken, Lighten, Multiply, Screen, Overlay, Difference, Exclusion}

// Blend holds the currently active blend mode.
type Blend struct {
	OpType string
}

// NewBlend initializes a new Blend in normal mode.
func NewBlend() *Blend {
	return &Blend{OpType: Normal}
}

// Set activates one of the supported blend modes.
func (o *Blend) Set(opType string) error {
	if !IsBlendMode(opType) {
		return errUnsupported("blend mode", opType)
	}
	o.OpType = opType
	return nil
}

// Get returns the currently active blend mode.
func (o *Blend) Get() string {
	if o == nil || len(o.OpType) == 0 {
		return Normal
	}
	return o.OpType
}

// IsBlendMode reports whether mode is supported.
func IsBlendMode(mode string) bool {
	return utils.Contains(blendModes, mode)
}

// BlendModes returns the supported blend modes.
func BlendModes() []string {
	return append([]string(nil), blendModes...)
}

// mix applies the blend function B(cb, cs) to one normalised channel.
func (o *Blend) mix(cb, cs float64) float64 {
	switch o.Get() {
	case Darken:
		return utils.Min(cb, cs)
	case Lighten:
		return utils.Max(cb, cs)
	case Multiply:
		return cb * cs
	case Screen:
		return cb + cs - cb*cs
	case Overlay:
		// Overlay is hard-light with the layers swapped.
		if cb <= 0.5 {
			return 2 * cb * cs
		}
		return 1 - 2*(1-cb)*(1-cs)
	case Difference:
		return utils.Abs(cb - cs)
	case Exclusion:
		return cb + cs - 2*cb*cs
	}
	return cs
}
