package transform

import (
	"fmt"
	"strings"

	"github.com/filestack/transformations-ui-ios-sub001/imop"
)

// Parameter names shared by every element. They only matter when the
// element is the child of a group: root stages ignore their layer.
const (
	ParamLayerX       = "layer.x"
	ParamLayerY       = "layer.y"
	ParamLayerOpacity = "layer.opacity"
	ParamLayerBlend   = "layer.blend"
	ParamLayerOp      = "layer.op"
)

// Parameter names of groups.
const (
	ParamGroupWidth  = "group.width"
	ParamGroupHeight = "group.height"
)

// MaxGroupExtent bounds the declared width and height of a group.
const MaxGroupExtent = 1 << 15

// KindGroup is the kind reported for groups in snapshots and layouts.
const KindGroup Kind = "group"

// Layer describes how an element is painted inside its group.
type Layer struct {
	X, Y    int
	Opacity float64
	Blend   string
	Op      string
}

// DefaultLayer is an opaque, source-over layer at the group origin.
func DefaultLayer() Layer {
	return Layer{Opacity: 1, Blend: imop.Normal, Op: imop.SrcOver}
}

func isLayerParam(name string) bool {
	return strings.HasPrefix(name, "layer.")
}

// set returns a copy of l with name updated.
func (l Layer) set(name string, v any) (Layer, error) {
	switch name {
	case ParamLayerX:
		x, err := ToInt(name, v)
		if err != nil {
			return l, err
		}
		l.X = x
	case ParamLayerY:
		y, err := ToInt(name, v)
		if err != nil {
			return l, err
		}
		l.Y = y
	case ParamLayerOpacity:
		o, err := ToFloat(name, v)
		if err != nil {
			return l, err
		}
		if o < 0 || o > 1 {
			return l, InvalidParam(name, v, "must be within [0, 1]")
		}
		l.Opacity = o
	case ParamLayerBlend:
		s, err := ToString(name, v)
		if err != nil {
			return l, err
		}
		if !imop.IsBlendMode(s) {
			return l, InvalidParam(name, v, "unsupported blend mode")
		}
		l.Blend = s
	case ParamLayerOp:
		s, err := ToString(name, v)
		if err != nil {
			return l, err
		}
		if !imop.IsOperator(s) {
			return l, InvalidParam(name, v, "unsupported composite operation")
		}
		l.Op = s
	default:
		return l, InvalidParam(name, v, "unknown layer parameter")
	}
	return l, nil
}

func (l Layer) values(dst Values) {
	dst[ParamLayerX] = l.X
	dst[ParamLayerY] = l.Y
	dst[ParamLayerOpacity] = l.Opacity
	dst[ParamLayerBlend] = l.Blend
	dst[ParamLayerOp] = l.Op
}

// groupParams is the parameter set of a group: its declared extent.
// A zero dimension means the group takes it from its input.
type groupParams struct {
	Width, Height int
}

func (g groupParams) set(name string, v any) (groupParams, error) {
	n, err := ToInt(name, v)
	if err != nil {
		return g, err
	}
	if n < 0 || n > MaxGroupExtent {
		return g, InvalidParam(name, v, fmt.Sprintf("must be within [0, %d]", MaxGroupExtent))
	}
	switch name {
	case ParamGroupWidth:
		g.Width = n
	case ParamGroupHeight:
		g.Height = n
	default:
		return g, UnknownParam(KindGroup, name)
	}
	return g, nil
}

func (g groupParams) values(dst Values) {
	dst[ParamGroupWidth] = g.Width
	dst[ParamGroupHeight] = g.Height
}
