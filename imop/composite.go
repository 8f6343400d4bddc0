package imop

import (
	"fmt"
	"image"
	"math"

	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

// Porter-Duff composition operators.
const (
	Clear   = "clear"
	Copy    = "copy"
	Dst     = "dst"
	SrcOver = "src_over"
	DstOver = "dst_over"
	SrcIn   = "src_in"
	DstIn   = "dst_in"
	SrcOut  = "src_out"
	DstOut  = "dst_out"
	SrcAtop = "src_atop"
	DstAtop = "dst_atop"
	Xor     = "xor"
)

var operators = []string{Clear, Copy, Dst, SrcOver, DstOver, SrcIn, DstIn, SrcOut, DstOut, SrcAtop, DstAtop, Xor}

// Composite holds the active composition operator.
type Composite struct {
	current string
}

// InitOp returns a Composite using source-over, the painter's algorithm default.
func InitOp() *Composite {
	return &Composite{current: SrcOver}
}

// Set activates one of the supported operators.
func (op *Composite) Set(cop string) error {
	if !IsOperator(cop) {
		return errUnsupported("composite operation", cop)
	}
	op.current = cop
	return nil
}

// Get returns the active operator.
func (op *Composite) Get() string {
	return op.current
}

// IsOperator reports whether cop is a supported operator.
func IsOperator(cop string) bool {
	return utils.Contains(operators, cop)
}

// Operators returns the supported operators.
func Operators() []string {
	return append([]string(nil), operators...)
}

// factors returns the Porter-Duff fractions Fa and Fb of the active operator
// for the given source and backdrop alphas.
func (op *Composite) factors(as, ab float64) (float64, float64) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 1, 0
	case Dst:
		return 0, 1
	case DstOver:
		return 1 - ab, 1
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 1 - ab, 0
	case DstOut:
		return 0, 1 - as
	case SrcAtop:
		return ab, 1 - as
	case DstAtop:
		return 1 - ab, as
	case Xor:
		return 1 - ab, 1 - as
	}
	// source-over
	return 1, 1 - as
}

// Draw composites src onto dst in place. The top-left corner of src lands
// on the point at of dst; opacity in [0,1] scales the source alpha and
// blend mixes the colors where both layers are present (nil means normal).
// Every dst pixel is visited because operators like src_in also affect the
// area the source does not cover.
func (op *Composite) Draw(dst, src *image.NRGBA, at image.Point, opacity float64, blend *Blend) {
	opacity = utils.Clamp(opacity, 0, 1)
	srcRect := src.Bounds().Sub(src.Bounds().Min).Add(at)
	db := dst.Bounds()

	for y := db.Min.Y; y < db.Max.Y; y++ {
		for x := db.Min.X; x < db.Max.X; x++ {
			var rs, gs, bs, as float64
			if (image.Point{X: x, Y: y}).In(srcRect) {
				si := src.PixOffset(x-at.X+src.Rect.Min.X, y-at.Y+src.Rect.Min.Y)
				rs = float64(src.Pix[si+0]) / 255
				gs = float64(src.Pix[si+1]) / 255
				bs = float64(src.Pix[si+2]) / 255
				as = float64(src.Pix[si+3]) / 255 * opacity
			}
			di := dst.PixOffset(x, y)
			rb := float64(dst.Pix[di+0]) / 255
			gb := float64(dst.Pix[di+1]) / 255
			bb := float64(dst.Pix[di+2]) / 255
			ab := float64(dst.Pix[di+3]) / 255

			// The blended source color replaces the plain one where the backdrop is opaque.
			if blend != nil && blend.Get() != Normal && ab > 0 {
				rs = (1-ab)*rs + ab*blend.mix(rb, rs)
				gs = (1-ab)*gs + ab*blend.mix(gb, gs)
				bs = (1-ab)*bs + ab*blend.mix(bb, bs)
			}

			fa, fb := op.factors(as, ab)
			an := as*fa + ab*fb
			if an <= 0 {
				dst.Pix[di+0], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = 0, 0, 0, 0
				continue
			}
			rn := (as*fa*rs + ab*fb*rb) / an
			gn := (as*fa*gs + ab*fb*gb) / an
			bn := (as*fa*bs + ab*fb*bb) / an

			dst.Pix[di+0] = toByte(rn)
			dst.Pix[di+1] = toByte(gn)
			dst.Pix[di+2] = toByte(bn)
			dst.Pix[di+3] = toByte(an)
		}
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(utils.Clamp(v, 0, 1) * 255))
}

func errUnsupported(what, name string) error {
	return fmt.Errorf("unsupported %s: %q", what, name)
}
