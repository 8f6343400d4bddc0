// Package effects is the built-in catalogue of edit kernels for the
// transform render graph: tonal adjustments, filters, blurs, geometry
// (including seam carving) and layer generators such as fills, text and
// stickers.
//
// Every kind has a typed parameter struct whose zero-effect defaults make
// the kernel return its input unchanged.
package effects

import (
	"fmt"

	pigo "github.com/esimov/pigo/core"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// Kinds registered by this package.
const (
	KindAdjust  transform.Kind = "adjust"
	KindFilter  transform.Kind = "filter"
	KindBlur    transform.Kind = "blur"
	KindSharpen transform.Kind = "sharpen"
	KindCrop    transform.Kind = "crop"
	KindRotate  transform.Kind = "rotate"
	KindResize  transform.Kind = "resize"
	KindBorder  transform.Kind = "border"
	KindFill    transform.Kind = "fill"
	KindText    transform.Kind = "text"
	KindSticker transform.Kind = "sticker"
	KindRedact  transform.Kind = "redact"
	KindCarve   transform.Kind = "carve"
)

type options struct {
	assets  AssetProvider
	cascade []byte
}

// Option configures Register.
type Option func(*options)

// WithAssets sets where sticker images come from.
func WithAssets(a AssetProvider) Option {
	return func(o *options) { o.assets = a }
}

// WithCascade enables the redact kernel with a pigo face detection cascade.
func WithCascade(cascade []byte) Option {
	return func(o *options) { o.cascade = cascade }
}

// Register adds every kernel of the catalogue to reg. The redact kernel is
// only registered when a cascade is supplied.
func Register(reg *transform.Registry, opts ...Option) error {
	o := options{assets: MapAssets{}}
	for _, opt := range opts {
		opt(&o)
	}

	kernels := []transform.Kernel{
		kernel(KindAdjust, defaultAdjust, applyAdjust),
		kernel(KindFilter, defaultFilter, applyFilter),
		kernel(KindBlur, defaultBlur, applyBlur),
		kernel(KindSharpen, defaultSharpen, applySharpen),
		kernel(KindCrop, defaultCrop, applyCrop),
		kernel(KindRotate, defaultRotate, applyRotate),
		kernel(KindResize, defaultResize, applyResize),
		kernel(KindBorder, defaultBorder, applyBorder),
		kernel(KindCarve, defaultCarve, applyCarve),
		kernel(KindFill, defaultFill, applyFill),
		kernel(KindText, defaultText, applyText),
		kernel(KindSticker, stickerDefaults(o.assets), applySticker),
	}
	if o.cascade != nil {
		detector, err := unpackCascade(o.cascade)
		if err != nil {
			return fmt.Errorf("error unpacking the cascade file: %w", err)
		}
		kernels = append(kernels, redactKernel(detector))
	}

	for _, k := range kernels {
		if err := reg.Register(k); err != nil {
			return err
		}
	}
	return nil
}

// unpackCascade decodes a pigo cascade. pigo indexes the packet without
// bounds checks, so a truncated file panics.
func unpackCascade(cascade []byte) (det *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			det, err = nil, fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(cascade)
}

// NewRegistry returns a registry holding the identity kernel and the catalogue.
func NewRegistry(opts ...Option) (*transform.Registry, error) {
	reg := transform.NewRegistry()
	if err := Register(reg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}

func kernel[T transform.Params](kind transform.Kind, defaults func() transform.Params, apply func(*transform.Buffer, T) (*transform.Buffer, error)) transform.Kernel {
	return transform.Kernel{
		Kind:     kind,
		Version:  1,
		Defaults: defaults,
		Apply: func(src *transform.Buffer, p transform.Params) (*transform.Buffer, error) {
			tp, ok := p.(T)
			if !ok {
				return nil, fmt.Errorf("%s: unexpected parameters %T", kind, p)
			}
			return apply(src, tp)
		},
	}
}
