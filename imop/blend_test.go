package imop

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlend_Basic(t *testing.T) {
	assert := assert.New(t)

	op := NewBlend()
	assert.Equal(Normal, op.Get())

	assert.NoError(op.Set(Darken))
	assert.Equal(Darken, op.Get())

	assert.Error(op.Set("unsupported_blend_mode"))
	assert.Equal(Darken, op.Get())

	var empty *Blend
	assert.Equal(Normal, empty.Get())
	assert.Equal(Normal, (&Blend{}).Get())

	assert.True(IsBlendMode(Exclusion))
	assert.False(IsBlendMode("hue"))
	assert.Len(BlendModes(), 8)
}

func TestBlend_Modes(t *testing.T) {
	backdrop := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	source := color.NRGBA{R: 100, G: 150, B: 50, A: 255}

	testCases := []struct {
		mode string
		want color.NRGBA
	}{
		{Normal, source},
		{Darken, color.NRGBA{R: 100, G: 100, B: 50, A: 255}},
		{Lighten, color.NRGBA{R: 200, G: 150, B: 50, A: 255}},
		{Multiply, color.NRGBA{R: 78, G: 59, B: 10, A: 255}},
		{Screen, color.NRGBA{R: 222, G: 191, B: 90, A: 255}},
		{Overlay, color.NRGBA{R: 188, G: 118, B: 20, A: 255}},
		{Difference, color.NRGBA{R: 100, G: 50, B: 0, A: 255}},
		{Exclusion, color.NRGBA{R: 143, G: 132, B: 80, A: 255}},
	}

	for _, tc := range testCases {
		t.Run(tc.mode, func(t *testing.T) {
			dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			dst.SetNRGBA(0, 0, backdrop)
			src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			src.SetNRGBA(0, 0, source)

			blend := NewBlend()
			assert.NoError(t, blend.Set(tc.mode))
			InitOp().Draw(dst, src, image.Point{}, 1, blend)

			assert.Equal(t, tc.want, dst.NRGBAAt(0, 0))
		})
	}
}

func TestBlend_TransparentBackdrop(t *testing.T) {
	source := color.NRGBA{R: 100, G: 150, B: 50, A: 255}

	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, source)

	// Without a backdrop there is nothing to blend with.
	blend := NewBlend()
	assert.NoError(t, blend.Set(Multiply))
	InitOp().Draw(dst, src, image.Point{}, 1, blend)

	assert.Equal(t, source, dst.NRGBAAt(0, 0))
}
