package transform

import (
	"context"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func computes(m *Metrics, kind Kind) float64 {
	return testutil.ToFloat64(m.Computes.WithLabelValues(string(kind)))
}

func TestRender_EmptyPipelineReturnsSource(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.True(t, Same(p.Source(), out))
}

func TestRender_Deterministic(t *testing.T) {
	build := func() *Pipeline {
		p, _, _ := newTestPipeline(t)
		_, err := p.AddNode("", kindPaint, Values{"value": 40})
		require.NoError(t, err)
		_, err = p.AddNode("", kindShift, Values{"value": 5})
		require.NoError(t, err)
		return p
	}

	p := build()
	first, err := p.Render(testContext(t))
	require.NoError(t, err)
	second, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.True(t, Same(first, second), "a clean pipeline serves its cache")

	other, err := build().Render(testContext(t))
	require.NoError(t, err)
	assert.True(t, Equal(first, other))
	assert.Equal(t, color.NRGBA{R: 45, G: 40, B: 40, A: 0xff}, first.At(1, 1))
}

func TestRender_InvalidationRecomputesDownstreamOnly(t *testing.T) {
	p, _, m := newTestPipeline(t, WithOutputCache(0))
	paint, _ := p.AddNode("", kindPaint, Values{"value": 40})
	sh, _ := p.AddNode("", kindShift, Values{"value": 5})

	_, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, computes(m, kindPaint))
	assert.Equal(t, 1.0, computes(m, kindShift))

	require.NoError(t, p.SetParameter(sh, "value", 6))
	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, computes(m, kindPaint), "upstream stage is clean")
	assert.Equal(t, 2.0, computes(m, kindShift))
	assert.Equal(t, uint8(46), out.At(0, 0).R)

	require.NoError(t, p.SetParameter(paint, "value", 10))
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 2.0, computes(m, kindPaint))
	assert.Equal(t, 3.0, computes(m, kindShift), "new input invalidates the next stage")
	assert.Equal(t, uint8(16), out.At(0, 0).R)
}

func TestRender_MemoServesEarlierParameters(t *testing.T) {
	p, _, m := newTestPipeline(t)
	id, _ := p.AddNode("", kindPaint, Values{"value": 1})

	first, err := p.Render(testContext(t))
	require.NoError(t, err)
	require.NoError(t, p.SetParameter(id, "value", 2))
	_, err = p.Render(testContext(t))
	require.NoError(t, err)
	require.NoError(t, p.SetParameter(id, "value", 1))
	again, err := p.Render(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 2.0, computes(m, kindPaint))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MemoHits))
	assert.True(t, Same(first, again))
}

func TestRender_SourceReplacement(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, _ = p.AddNode("", kindShift, Values{"value": 1})

	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint8(11), out.At(0, 0).R)

	require.NoError(t, p.Apply(Solid(2, 2, color.NRGBA{R: 100, A: 0xff})))
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Width())
	assert.Equal(t, uint8(101), out.At(0, 0).R)

	assert.ErrorIs(t, p.Apply(nil), ErrInvalidParameter)
}

func TestRender_CompositeOrder(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	g, _ := p.AddGroup("", nil)
	x, _ := p.AddNode(g, kindPaint, Values{"value": 10})
	y, _ := p.AddNode(g, kindPaint, Values{"value": 200})

	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, gray(200), out.At(2, 2), "the last child paints on top")

	require.NoError(t, p.MoveNode(y, 0))
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, gray(10), out.At(2, 2))

	require.NoError(t, p.SetParameter(x, ParamLayerOpacity, 0.5))
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, gray(105), out.At(2, 2))
}

func TestRender_GroupPlacement(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	g, _ := p.AddGroup("", Values{ParamGroupWidth: 6, ParamGroupHeight: 5})
	_, _ = p.AddNode(g, kindPaint, Values{"value": 50, ParamLayerX: 2, ParamLayerY: 1})

	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 6, out.Width())
	assert.Equal(t, 5, out.Height())
	assert.Equal(t, color.NRGBA{}, out.At(1, 1))
	assert.Equal(t, color.NRGBA{}, out.At(3, 0))
	assert.Equal(t, gray(50), out.At(2, 1))
	assert.Equal(t, gray(50), out.At(5, 4))
}

func TestRender_EmptyGroupIsTransparent(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, _ = p.AddGroup("", nil)

	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width())
	assert.Equal(t, color.NRGBA{}, out.At(0, 0))
}

func TestRender_StructuralEditRecomposites(t *testing.T) {
	p, _, m := newTestPipeline(t, WithOutputCache(0))
	g, _ := p.AddGroup("", nil)
	x, _ := p.AddNode(g, kindPaint, Values{"value": 10})
	y, _ := p.AddNode(g, kindPaint, Values{"value": 200})

	_, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Composites))
	assert.Equal(t, 2.0, computes(m, kindPaint))

	_, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Composites), "clean groups are not recomposited")

	require.NoError(t, p.RemoveNode(y))
	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Composites))
	assert.Equal(t, 2.0, computes(m, kindPaint), "the remaining child is served from its cache")
	assert.Equal(t, gray(10), out.At(0, 0))

	_, err = p.AddNode(g, kindPaint, Values{"value": 90})
	require.NoError(t, err)
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Composites))
	assert.Equal(t, gray(90), out.At(0, 0))

	require.NoError(t, p.SetParameter(x, ParamLayerX, 1))
	_, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Composites), "a layer change reaches the group")
}

func TestRender_NestedGroupChangePropagates(t *testing.T) {
	p, _, m := newTestPipeline(t, WithOutputCache(0))
	outer, _ := p.AddGroup("", nil)
	inner, _ := p.AddGroup(outer, nil)
	leaf, _ := p.AddNode(inner, kindPaint, Values{"value": 10})
	_, _ = p.AddNode("", kindShift, Values{"value": 1})

	_, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Composites))

	require.NoError(t, p.SetParameter(leaf, "value", 20))
	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Composites))
	assert.Equal(t, 2.0, computes(m, kindShift))
	assert.Equal(t, color.NRGBA{R: 21, G: 20, B: 20, A: 0xff}, out.At(0, 0))
}

func TestRender_ComputeFailureKeepsLastGood(t *testing.T) {
	p, _, m := newTestPipeline(t)
	id, _ := p.AddNode("", kindPaint, Values{"value": 30})

	good, err := p.Render(testContext(t))
	require.NoError(t, err)

	require.NoError(t, p.SetParameter(id, "fail", true))
	out, err := p.Render(testContext(t))
	assert.ErrorIs(t, err, ErrComputeFailure)
	require.NotNil(t, out)
	assert.True(t, Same(good, out))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComputeFailures.WithLabelValues(string(kindPaint))))

	require.NoError(t, p.SetParameter(id, "fail", false))
	require.NoError(t, p.SetParameter(id, "value", 31))
	out, err = p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, gray(31), out.At(0, 0))
}

func TestRender_ComputeFailurePassesInputThrough(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, _ = p.AddNode("", kindPaint, Values{"panic": true})
	_, _ = p.AddNode("", kindShift, Values{"value": 1})

	out, err := p.Render(testContext(t))
	assert.ErrorIs(t, err, ErrComputeFailure)
	assert.ErrorContains(t, err, "paint exploded")
	require.NotNil(t, out)
	assert.Equal(t, uint8(11), out.At(0, 0).R)

	// failures are not cached: the next render tries again
	_, err = p.Render(testContext(t))
	assert.ErrorIs(t, err, ErrComputeFailure)
}

func TestRender_CanceledContext(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, _ = p.AddNode("", kindPaint, nil)

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	out, err := p.Render(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestRender_StaleResultIsNotPublished(t *testing.T) {
	p, pr, m := newTestPipeline(t, WithOutputCache(0))
	id, _ := p.AddNode("", kindPaint, Values{"value": 1})

	gate := pr.block(1)
	pending := p.RenderAsync(testContext(t))
	select {
	case <-pr.started:
	case <-time.After(5 * time.Second):
		t.Fatal("async render did not start")
	}

	require.NoError(t, p.SetParameter(id, "value", 2))
	latest, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, gray(2), latest.At(0, 0))

	close(gate)
	res := <-pending
	require.NoError(t, res.Err)
	assert.Equal(t, gray(1), res.Output.At(0, 0), "the frame reflects the state it was planned from")
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.StaleResults), 1.0)

	before := computes(m, kindPaint)
	out, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.True(t, Same(latest, out), "the cache holds the latest parameters")
	assert.Equal(t, before, computes(m, kindPaint))
}

func TestRender_ConcurrentRendersAgree(t *testing.T) {
	p, _, _ := newTestPipeline(t, WithWorkers(2))
	g, _ := p.AddGroup("", nil)
	for i := 0; i < 6; i++ {
		_, err := p.AddNode(g, kindPaint, Values{"value": i * 10, ParamLayerOpacity: 0.5})
		require.NoError(t, err)
	}

	want, err := p.Render(testContext(t))
	require.NoError(t, err)

	results := make([]<-chan RenderResult, 4)
	for i := range results {
		results[i] = p.RenderAsync(testContext(t))
	}
	for _, ch := range results {
		res := <-ch
		require.NoError(t, res.Err)
		assert.True(t, Equal(want, res.Output))
	}
}

func TestRender_CompositeFailureFallsBack(t *testing.T) {
	p, _, m := newTestPipeline(t)
	outer, _ := p.AddGroup("", nil)
	inner, err := p.AddGroup(outer, nil)
	require.NoError(t, err)
	_, err = p.AddNode(inner, kindPaint, Values{"value": 50})
	require.NoError(t, err)

	// extents are bounded when set; force one whose canvas cannot be allocated
	p.mu.Lock()
	p.elems[inner].(*group).params = groupParams{Width: math.MaxInt32, Height: math.MaxInt32}
	p.mu.Unlock()

	out, err := p.Render(testContext(t))
	assert.ErrorIs(t, err, ErrComputeFailure)
	assert.ErrorContains(t, err, "composite panic")
	require.NotNil(t, out)
	assert.Equal(t, 4, out.Width())
	assert.Equal(t, testSource, out.At(0, 0), "the failed group passes its input through")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComputeFailures.WithLabelValues(string(KindGroup))))
}

func TestRender_StaleResultKeepsDownstreamCache(t *testing.T) {
	p, pr, m := newTestPipeline(t, WithOutputCache(0))
	first, _ := p.AddNode("", kindPaint, Values{"value": 1})
	second, _ := p.AddNode("", kindShift, Values{"value": 5})

	gate := pr.block(1)
	pending := p.RenderAsync(testContext(t))
	select {
	case <-pr.started:
	case <-time.After(5 * time.Second):
		t.Fatal("async render did not start")
	}

	// only the upstream stage changes, the downstream generation stays put
	require.NoError(t, p.SetParameter(first, "value", 2))
	latest, err := p.Render(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 7, G: 2, B: 2, A: 0xff}, latest.At(0, 0))

	close(gate)
	res := <-pending
	require.NoError(t, res.Err)
	assert.Equal(t, color.NRGBA{R: 6, G: 1, B: 1, A: 0xff}, res.Output.At(0, 0))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.StaleResults), 2.0)

	p.mu.Lock()
	upstream := *p.elems[first].common()
	downstream := *p.elems[second].common()
	p.mu.Unlock()
	assert.True(t, Same(latest, downstream.cache.out), "the newer frame stays cached")
	assert.True(t, Same(latest, downstream.lastGood))
	assert.Equal(t, upstream.cache.out.ID(), downstream.cache.key)
}
