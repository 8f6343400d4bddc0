package transform

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// kindPaint fills its whole input extent with a gray level.
const kindPaint Kind = "paint"

// kindShift adds a value to the red channel of its input.
const kindShift Kind = "shift"

type paintParams struct {
	Value int
	Fail  bool
	Panic bool
}

func (p paintParams) Set(name string, v any) (Params, error) {
	switch name {
	case "value":
		n, err := ToInt(name, v)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 255 {
			return nil, InvalidParam(name, v, "must be within [0, 255]")
		}
		p.Value = n
	case "fail":
		b, err := ToBool(name, v)
		if err != nil {
			return nil, err
		}
		p.Fail = b
	case "panic":
		b, err := ToBool(name, v)
		if err != nil {
			return nil, err
		}
		p.Panic = b
	default:
		return nil, UnknownParam(kindPaint, name)
	}
	return p, nil
}

func (p paintParams) Values() Values {
	return Values{"value": p.Value, "fail": p.Fail, "panic": p.Panic}
}

type shiftParams struct{ Value int }

func (p shiftParams) Set(name string, v any) (Params, error) {
	if name != "value" {
		return nil, UnknownParam(kindShift, name)
	}
	n, err := ToInt(name, v)
	if err != nil {
		return nil, err
	}
	p.Value = n
	return p, nil
}

func (p shiftParams) Values() Values { return Values{"value": p.Value} }

// blocker lets tests hold a paint computation until they release it.
type blocker struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
}

// block makes paint computations of value wait until the returned channel is closed.
func (pr *blocker) block(value int) chan struct{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	gate := make(chan struct{})
	pr.gates[value] = gate
	return gate
}

func (pr *blocker) paint(src *Buffer, p Params) (*Buffer, error) {
	pp := p.(paintParams)

	pr.mu.Lock()
	gate := pr.gates[pp.Value]
	pr.mu.Unlock()
	if gate != nil {
		pr.started <- pp.Value
		<-gate
	}

	if pp.Panic {
		panic("paint exploded")
	}
	if pp.Fail {
		return nil, errors.New("paint failed")
	}
	return Solid(src.Width(), src.Height(), gray(pp.Value)), nil
}

func shift(src *Buffer, p Params) (*Buffer, error) {
	sp := p.(shiftParams)
	dst := src.Clone()
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8(int(dst.Pix[i]) + sp.Value)
	}
	return Wrap(dst), nil
}

func gray(v int) color.NRGBA {
	return color.NRGBA{R: uint8(v), G: uint8(v), B: uint8(v), A: 0xff}
}

func newTestRegistry(t *testing.T) (*Registry, *blocker) {
	t.Helper()
	pr := &blocker{gates: make(map[int]chan struct{}), started: make(chan int, 1)}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Kernel{
		Kind:     kindPaint,
		Version:  1,
		Defaults: func() Params { return paintParams{} },
		Apply:    pr.paint,
	}))
	require.NoError(t, reg.Register(Kernel{
		Kind:     kindShift,
		Version:  1,
		Defaults: func() Params { return shiftParams{} },
		Apply:    shift,
	}))
	return reg, pr
}

// sequentialIDs returns an id generator producing n1, n2, ...
func sequentialIDs() func() ID {
	var (
		mu sync.Mutex
		n  int
	)
	return func() ID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return ID(fmt.Sprintf("n%d", n))
	}
}

var testSource = color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *blocker, *Metrics) {
	t.Helper()
	reg, pr := newTestRegistry(t)
	m := NewMetrics(nil)
	opts = append([]Option{WithMetrics(m), WithIDGenerator(sequentialIDs())}, opts...)
	p, err := NewPipeline(Solid(4, 4, testSource), reg, opts...)
	require.NoError(t, err)
	return p, pr, m
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *Metrics) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	m := NewMetrics(nil)
	opts = append([]Option{WithMetrics(m), WithIDGenerator(sequentialIDs())}, opts...)
	s, err := NewSession(testContext(t), StaticSource(Solid(4, 4, testSource)), reg, opts...)
	require.NoError(t, err)
	return s, m
}
