package transform

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/filestack/transformations-ui-ios-sub001/imop"
)

// RenderResult is delivered by RenderAsync.
type RenderResult struct {
	Output *Buffer
	Err    error
}

// planElem is a copy of an element's state taken under the pipeline lock.
type planElem struct {
	id       ID
	gen      uint64
	layer    Layer
	kernel   Kernel
	params   Params
	isGroup  bool
	extent   groupParams
	children []*planElem
	cached   cacheSlot
	lastGood *Buffer
}

type renderPlan struct {
	source *Buffer
	gen    uint64
	cached cacheSlot
	stages []*planElem
}

// plan must be called with p.mu held.
func (p *Pipeline) plan() *renderPlan {
	rp := &renderPlan{source: p.source, gen: p.gen}
	if p.cache.out != nil && p.cache.gen == p.gen && p.cache.key == p.source.ID() {
		rp.cached = p.cache
	}
	for _, id := range p.stages {
		rp.stages = append(rp.stages, p.planElem(id))
	}
	return rp
}

func (p *Pipeline) planElem(id ID) *planElem {
	e := p.elems[id]
	b := e.common()
	pe := &planElem{id: id, gen: b.gen, layer: b.layer, lastGood: b.lastGood}
	if b.cache.out != nil && b.cache.gen == b.gen {
		pe.cached = b.cache
	}
	switch e := e.(type) {
	case *node:
		pe.kernel, pe.params = e.kernel, e.params
	case *group:
		pe.isGroup, pe.extent = true, e.params
		for _, c := range e.children {
			pe.children = append(pe.children, p.planElem(c))
		}
	}
	return pe
}

// Render returns the output of the pipeline for its current state.
// Clean elements are served from their caches; dirty ones are recomputed.
//
// A kernel failure does not abort the render: the failing node contributes
// its last good output, or its input when it never succeeded, and the error
// is returned alongside a usable buffer. The error wraps ErrComputeFailure.
func (p *Pipeline) Render(ctx context.Context) (*Buffer, error) {
	p.mu.Lock()
	rp := p.plan()
	p.mu.Unlock()

	return p.execute(ctx, rp)
}

// RenderAsync plans the render immediately and computes it in the background.
// The frame reflects the state at the time of the call; results that are
// outdated by the time they complete are delivered but never cached.
func (p *Pipeline) RenderAsync(ctx context.Context) <-chan RenderResult {
	p.mu.Lock()
	rp := p.plan()
	p.mu.Unlock()

	ch := make(chan RenderResult, 1)
	go func() {
		defer close(ch)
		out, err := p.execute(ctx, rp)
		ch <- RenderResult{Output: out, Err: err}
	}()
	return ch
}

func (p *Pipeline) execute(ctx context.Context, rp *renderPlan) (*Buffer, error) {
	if c := rp.cached; c.out != nil {
		p.cfg.metrics.CacheHits.Inc()
		return c.out, nil
	}

	r := &renderer{ctx: ctx, cfg: &p.cfg, memo: p.memo}
	out, ok, err := r.run(rp)

	p.mu.Lock()
	p.publish(rp, r.results, out, ok && err == nil)
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return out, errors.Join(r.errs...)
}

// publish stores computed results whose element did not change since the
// plan was taken. Must be called with p.mu held.
func (p *Pipeline) publish(rp *renderPlan, results []result, out *Buffer, ok bool) {
	for _, res := range results {
		e, found := p.elems[res.id]
		if !found {
			continue
		}
		b := e.common()
		// an upstream edit leaves the element generation alone, so a slot
		// published by a later plan also makes this result stale
		if b.gen != res.gen || (b.cache.out != nil && b.cache.plan > rp.gen) {
			p.cfg.metrics.StaleResults.Inc()
			p.cfg.logger.Debug("discard stale result",
				slog.String("node", string(res.id)),
				slog.Uint64("planned", res.gen),
				slog.Uint64("current", b.gen),
				slog.Uint64("plan", rp.gen),
			)
			continue
		}
		b.cache = cacheSlot{out: res.out, key: res.key, gen: res.gen, plan: rp.gen}
		b.lastGood = res.out
	}
	if !ok {
		return
	}
	if p.gen != rp.gen {
		p.cfg.metrics.StaleResults.Inc()
		return
	}
	p.cache = cacheSlot{out: out, key: rp.source.ID(), gen: rp.gen, plan: rp.gen}
}

type result struct {
	id  ID
	gen uint64
	key uint64
	out *Buffer
}

// renderer evaluates a plan without holding the pipeline lock.
type renderer struct {
	ctx  context.Context
	cfg  *config
	memo *outputCache

	mu      sync.Mutex
	results []result
	errs    []error
}

func (r *renderer) run(rp *renderPlan) (*Buffer, bool, error) {
	cur, ok := rp.source, true
	for _, st := range rp.stages {
		if err := r.ctx.Err(); err != nil {
			return nil, false, err
		}
		out, good := r.eval(st, cur)
		cur, ok = out, ok && good
	}
	if err := r.ctx.Err(); err != nil {
		return nil, false, err
	}
	return cur, ok, nil
}

// eval returns the output of e for input in, and whether it is a fresh,
// fully successful result.
func (r *renderer) eval(e *planElem, in *Buffer) (*Buffer, bool) {
	if c := e.cached; c.out != nil && c.key == in.ID() {
		r.cfg.metrics.CacheHits.Inc()
		return c.out, true
	}
	if e.isGroup {
		return r.compose(e, in)
	}
	return r.apply(e, in)
}

func (r *renderer) apply(e *planElem, in *Buffer) (*Buffer, bool) {
	var key memoKey
	if r.memo != nil {
		key = newMemoKey(e.kernel, in, e.params)
		if out, ok := r.memo.get(key); ok {
			r.cfg.metrics.MemoHits.Inc()
			r.publish(e, in, out)
			return out, true
		}
	}

	kind := string(e.kernel.Kind)
	start := time.Now()
	out, err := safeApply(e.kernel, in, e.params)
	r.cfg.metrics.Computes.WithLabelValues(kind).Inc()
	r.cfg.metrics.ComputeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err == nil && (out == nil || out.pix == nil) {
		err = errors.New("kernel returned no image")
	}
	if err != nil {
		return r.failed(e, kind, in, err)
	}

	if r.memo != nil {
		r.memo.add(key, out)
	}
	r.publish(e, in, out)
	return out, true
}

// compose evaluates the children of a group concurrently and paints them
// over a transparent canvas in index order.
func (r *renderer) compose(e *planElem, in *Buffer) (*Buffer, bool) {
	outs := make([]*Buffer, len(e.children))
	oks := make([]bool, len(e.children))

	var g errgroup.Group
	g.SetLimit(r.cfg.workers)
	for i, c := range e.children {
		i, c := i, c
		g.Go(func() error {
			outs[i], oks[i] = r.eval(c, in)
			return nil
		})
	}
	_ = g.Wait()

	canvas, err := e.paint(in, outs)
	if err != nil {
		return r.failed(e, string(KindGroup), in, err)
	}
	ok := !slices.Contains(oks, false)
	r.cfg.metrics.Composites.Inc()

	out := Wrap(canvas)
	if ok {
		r.publish(e, in, out)
	}
	return out, ok
}

// paint draws the children outputs in index order over a transparent canvas
// of the group extent. A panic while drawing is returned as an error.
func (e *planElem) paint(in *Buffer, outs []*Buffer) (canvas *image.NRGBA, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			canvas, err = nil, fmt.Errorf("composite panic: %v", rec)
		}
	}()

	w, h := e.extent.Width, e.extent.Height
	if w == 0 {
		w = in.Width()
	}
	if h == 0 {
		h = in.Height()
	}
	canvas = image.NewNRGBA(image.Rect(0, 0, w, h))

	for i, c := range e.children {
		// layer values are validated when set
		op := imop.InitOp()
		_ = op.Set(c.layer.Op)
		blend := &imop.Blend{OpType: c.layer.Blend}
		op.Draw(canvas, outs[i].pix, image.Pt(c.layer.X, c.layer.Y), c.layer.Opacity, blend)
	}
	return canvas, nil
}

// failed records err for e and returns what e contributes instead: its last
// good output, or its input when it never succeeded.
func (r *renderer) failed(e *planElem, kind string, in *Buffer, err error) (*Buffer, bool) {
	r.cfg.metrics.ComputeFailures.WithLabelValues(kind).Inc()
	r.cfg.logger.Warn("compute failed",
		slog.String("node", string(e.id)),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	r.fail(fmt.Errorf("%w: %s %s: %w", ErrComputeFailure, kind, e.id, err))
	if e.lastGood != nil {
		return e.lastGood, false
	}
	return in, false
}

func (r *renderer) publish(e *planElem, in, out *Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result{id: e.id, gen: e.gen, key: in.ID(), out: out})
}

func (r *renderer) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// safeApply runs a kernel, turning a panic into an error.
func safeApply(k Kernel, in *Buffer, p Params) (out *Buffer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("kernel panic: %v", rec)
		}
	}()
	return k.Apply(in, p)
}
