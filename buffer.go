package transform

import (
	"bytes"
	"image"
	"image/color"
	"sync/atomic"
)

// bufferSeq hands out buffer identities. Zero is never used.
var bufferSeq atomic.Uint64

// Buffer is an immutable image handle: pixel data plus extent.
// Buffers are never mutated once published, so they can be shared between
// nodes, caches and goroutines without locking.
type Buffer struct {
	id     uint64
	pix    *image.NRGBA
	origin image.Point
}

// NewBuffer copies img into a new buffer. Any image type is accepted;
// the pixels are converted to NRGBA with the min point moved to (0, 0)
// and the original min point kept as the buffer origin.
func NewBuffer(img image.Image) *Buffer {
	return &Buffer{
		id:     bufferSeq.Add(1),
		pix:    toNRGBA(img, true),
		origin: img.Bounds().Min,
	}
}

// Wrap creates a buffer that takes ownership of img without copying it.
// The caller must not modify img afterwards.
func Wrap(img *image.NRGBA) *Buffer {
	b := img.Bounds()
	if b.Min != (image.Point{}) {
		return NewBuffer(img)
	}
	return &Buffer{id: bufferSeq.Add(1), pix: img}
}

// Transparent returns a fully transparent buffer of the given size.
func Transparent(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Wrap(image.NewNRGBA(image.Rect(0, 0, width, height)))
}

// Solid returns a buffer of the given size filled with c.
func Solid(width, height int, c color.Color) *Buffer {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = nc.R
		img.Pix[i+1] = nc.G
		img.Pix[i+2] = nc.B
		img.Pix[i+3] = nc.A
	}
	return Wrap(img)
}

// ID returns the buffer identity.
func (b *Buffer) ID() uint64 {
	if b == nil {
		return 0
	}
	return b.id
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.pix.Rect.Dx() }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.pix.Rect.Dy() }

// Size returns the extent as a point.
func (b *Buffer) Size() image.Point { return b.pix.Rect.Size() }

// Origin returns the min point the source image had before normalisation.
func (b *Buffer) Origin() image.Point { return b.origin }

// Image exposes the pixels read-only. The returned value must not be
// type-asserted and modified; use Clone for a writable copy.
func (b *Buffer) Image() image.Image { return b.pix }

// Clone returns a writable copy of the pixels.
func (b *Buffer) Clone() *image.NRGBA {
	dst := image.NewNRGBA(b.pix.Rect)
	copy(dst.Pix, b.pix.Pix)
	return dst
}

// At returns the pixel at (x, y) in buffer coordinates.
func (b *Buffer) At(x, y int) color.NRGBA {
	return b.pix.NRGBAAt(x, y)
}

// Same reports whether a and b are the same buffer instance.
func Same(a, b *Buffer) bool {
	return a.ID() == b.ID()
}

// Equal reports whether a and b have the same extent and pixel values.
func Equal(a, b *Buffer) bool {
	if a == nil || b == nil {
		return a == b
	}
	if Same(a, b) {
		return true
	}
	return a.pix.Rect == b.pix.Rect && bytes.Equal(a.pix.Pix, b.pix.Pix)
}

// toNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
// If force is false an NRGBA image already anchored at the origin is returned as is.
func toNRGBA(img image.Image, force bool) *image.NRGBA {
	srcBounds := img.Bounds()
	if !force && srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := dstW * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}
