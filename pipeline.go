package transform

import (
	"fmt"
	"slices"
	"sync"
)

// groupVersion is the serialisation version of group snapshots.
const groupVersion = 1

// cacheSlot holds a computed output together with what it was computed from.
type cacheSlot struct {
	out  *Buffer
	key  uint64 // id of the input buffer
	gen  uint64 // element generation at planning time
	plan uint64 // pipeline generation of the render that produced it
}

// base is the state shared by nodes and groups.
type base struct {
	id       ID
	parent   ID // handle into the pipeline arena, "" for root stages
	layer    Layer
	gen      uint64
	cache    cacheSlot
	lastGood *Buffer
	initial  Snapshot // state when added to the graph
}

func (b *base) common() *base { return b }

// element is a node or a group stored in the pipeline arena.
type element interface {
	common() *base
	kind() Kind
	set(name string, v any) error
	restore(s Snapshot) error
	snapshot() Snapshot
}

// node is a single edit stage.
type node struct {
	base
	kernel Kernel
	params Params
}

func (n *node) kind() Kind { return n.kernel.Kind }

func (n *node) set(name string, v any) error {
	return n.apply(Values{name: v})
}

// apply sets every value or none of them.
func (n *node) apply(v Values) error {
	params, layer := n.params, n.layer
	for _, k := range v.Keys() {
		var err error
		if isLayerParam(k) {
			layer, err = layer.set(k, v[k])
		} else {
			params, err = params.Set(k, v[k])
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", n.kernel.Kind, n.id, err)
		}
	}
	n.params, n.layer = params, layer
	return nil
}

func (n *node) restore(s Snapshot) error {
	if s.Version > n.kernel.Version {
		return fmt.Errorf("%w: %s snapshot version %d is newer than %d",
			ErrInvalidParameter, s.Kind, s.Version, n.kernel.Version)
	}
	fresh := node{kernel: n.kernel, params: n.kernel.Defaults()}
	fresh.id, fresh.layer = n.id, DefaultLayer()
	if err := fresh.apply(s.Values); err != nil {
		return err
	}
	n.params, n.layer = fresh.params, fresh.layer
	return nil
}

func (n *node) snapshot() Snapshot {
	v := n.params.Values().Clone()
	n.layer.values(v)
	return Snapshot{Node: n.id, Kind: n.kernel.Kind, Version: n.kernel.Version, Values: v}
}

// group composites its children back to front.
type group struct {
	base
	params   groupParams
	children []ID
}

func (g *group) kind() Kind { return KindGroup }

func (g *group) set(name string, v any) error {
	return g.apply(Values{name: v})
}

func (g *group) apply(v Values) error {
	params, layer := g.params, g.layer
	for _, k := range v.Keys() {
		var err error
		if isLayerParam(k) {
			layer, err = layer.set(k, v[k])
		} else {
			params, err = params.set(k, v[k])
		}
		if err != nil {
			return fmt.Errorf("group %s: %w", g.id, err)
		}
	}
	g.params, g.layer = params, layer
	return nil
}

func (g *group) restore(s Snapshot) error {
	if s.Version > groupVersion {
		return fmt.Errorf("%w: group snapshot version %d is newer than %d",
			ErrInvalidParameter, s.Version, groupVersion)
	}
	fresh := group{}
	fresh.id, fresh.layer = g.id, DefaultLayer()
	if err := fresh.apply(s.Values); err != nil {
		return err
	}
	g.params, g.layer = fresh.params, fresh.layer
	return nil
}

func (g *group) snapshot() Snapshot {
	v := Values{}
	g.params.values(v)
	g.layer.values(v)
	return Snapshot{Node: g.id, Kind: KindGroup, Version: groupVersion, Values: v}
}

// Notification tells observers that an element changed. Finished is set
// when the change marks the end of a discrete edit. Node is empty when the
// pipeline source was replaced.
type Notification struct {
	Node     ID
	Finished bool
}

// LayoutEntry is one element of a pipeline layout: where it sits and what
// state it holds.
type LayoutEntry struct {
	Parent ID       `json:"parent,omitempty" yaml:"parent,omitempty"`
	State  Snapshot `json:"state" yaml:"state"`
}

// Pipeline is the root of the render graph. It owns every node and group
// through an arena keyed by id; child to parent links are ids resolved
// through that arena, so there is a single ownership edge per element.
//
// All mutation and cache publication happens under one mutex. Rendering
// plans under the mutex, computes without it and publishes under it again.
type Pipeline struct {
	mu        sync.Mutex
	reg       *Registry
	cfg       config
	memo      *outputCache
	source    *Buffer
	stages    []ID
	elems     map[ID]element
	gen       uint64
	cache     cacheSlot
	observers []func(Notification)
	pending   []Notification
	holds     int
}

// NewPipeline creates an empty pipeline over src.
func NewPipeline(src *Buffer, reg *Registry, opts ...Option) (*Pipeline, error) {
	return newPipeline(src, reg, newConfig(opts))
}

func newPipeline(src *Buffer, reg *Registry, cfg config) (*Pipeline, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	if src == nil {
		src = Transparent(0, 0)
	}
	memo, err := newOutputCache(cfg.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		reg:    reg,
		cfg:    cfg,
		memo:   memo,
		source: src,
		elems:  make(map[ID]element),
	}, nil
}

// unlock releases the mutex and then delivers the queued notifications,
// so observers may call back into the pipeline. While a hold is active the
// notifications stay queued.
func (p *Pipeline) unlock() {
	if p.holds > 0 {
		p.mu.Unlock()
		return
	}
	pending := p.pending
	p.pending = nil
	observers := slices.Clone(p.observers)
	p.mu.Unlock()

	for _, n := range pending {
		for _, fn := range observers {
			fn(n)
		}
	}
}

// hold defers notification delivery until the matching release.
func (p *Pipeline) hold() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holds++
}

// release ends a hold and delivers the notifications queued during it once
// no hold is left.
func (p *Pipeline) release() {
	p.mu.Lock()
	defer p.unlock()
	p.holds--
}

// Observe registers fn to be called after every change.
func (p *Pipeline) Observe(fn func(Notification)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Registry returns the kernel registry the pipeline resolves kinds with.
func (p *Pipeline) Registry() *Registry { return p.reg }

// Source returns the current source image.
func (p *Pipeline) Source() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Apply replaces the source image. Every stage keeps its parameters and is
// recomputed from the new source on the next render.
func (p *Pipeline) Apply(src *Buffer) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrInvalidParameter)
	}
	p.mu.Lock()
	defer p.unlock()

	p.source = src
	p.gen++
	p.pending = append(p.pending, Notification{})
	return nil
}

// AddNode appends a node of the given kind to parent, the empty id being the
// pipeline root. The initial values are validated before the node is attached.
func (p *Pipeline) AddNode(parent ID, kind Kind, v Values) (ID, error) {
	p.mu.Lock()
	defer p.unlock()
	return p.add(parent, p.cfg.newID(), kind, v)
}

// AddGroup appends a group to parent.
func (p *Pipeline) AddGroup(parent ID, v Values) (ID, error) {
	return p.AddNode(parent, KindGroup, v)
}

func (p *Pipeline) add(parent, id ID, kind Kind, v Values) (ID, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidParameter)
	}
	if _, dup := p.elems[id]; dup {
		return "", fmt.Errorf("%w: duplicate id %s", ErrInvalidParameter, id)
	}
	if parent != "" {
		pe, ok := p.elems[parent]
		if !ok {
			return "", notFound(parent)
		}
		if _, ok := pe.(*group); !ok {
			return "", fmt.Errorf("%w: %s is not a group", ErrInvalidParameter, parent)
		}
	}

	var e element
	if kind == KindGroup {
		g := &group{}
		g.id, g.parent, g.layer = id, parent, DefaultLayer()
		if err := g.apply(v); err != nil {
			return "", err
		}
		e = g
	} else {
		k, err := p.reg.Lookup(kind)
		if err != nil {
			return "", err
		}
		n := &node{kernel: k, params: k.Defaults()}
		n.id, n.parent, n.layer = id, parent, DefaultLayer()
		if err := n.apply(v); err != nil {
			return "", err
		}
		e = n
	}

	e.common().initial = e.snapshot()
	p.elems[id] = e
	if parent == "" {
		p.stages = append(p.stages, id)
	} else {
		g := p.elems[parent].(*group)
		g.children = append(g.children, id)
	}
	p.nodeChanged(id)
	return id, nil
}

// RemoveNode detaches id, and everything below it when it is a group.
func (p *Pipeline) RemoveNode(id ID) error {
	_, err := p.detach(id)
	return err
}

// detach is RemoveNode returning the ids of every dropped element.
func (p *Pipeline) detach(id ID) ([]ID, error) {
	p.mu.Lock()
	defer p.unlock()
	return p.remove(id)
}

// remove returns the ids of every element dropped from the arena.
func (p *Pipeline) remove(id ID) ([]ID, error) {
	e, ok := p.elems[id]
	if !ok {
		return nil, notFound(id)
	}
	parent := e.common().parent
	if parent == "" {
		p.stages = removeID(p.stages, id)
	} else {
		g := p.elems[parent].(*group)
		g.children = removeID(g.children, id)
	}
	removed := p.drop(id, nil)
	p.invalidate(parent)
	p.pending = append(p.pending, Notification{Node: id})
	return removed, nil
}

func (p *Pipeline) drop(id ID, acc []ID) []ID {
	if g, ok := p.elems[id].(*group); ok {
		for _, c := range g.children {
			acc = p.drop(c, acc)
		}
	}
	delete(p.elems, id)
	return append(acc, id)
}

func removeID(ids []ID, id ID) []ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// MoveNode moves id to position index among its siblings.
func (p *Pipeline) MoveNode(id ID, index int) error {
	p.mu.Lock()
	defer p.unlock()

	e, ok := p.elems[id]
	if !ok {
		return notFound(id)
	}
	parent := e.common().parent
	siblings := &p.stages
	if parent != "" {
		siblings = &p.elems[parent].(*group).children
	}
	if index < 0 || index >= len(*siblings) {
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidParameter, index, len(*siblings))
	}
	rest := removeID(*siblings, id)
	moved := make([]ID, 0, len(rest)+1)
	moved = append(moved, rest[:index]...)
	moved = append(moved, id)
	moved = append(moved, rest[index:]...)
	*siblings = moved

	p.invalidate(parent)
	p.pending = append(p.pending, Notification{Node: id})
	return nil
}

// Children returns the ordered children of parent, back to front.
// The empty id lists the root stages in apply order.
func (p *Pipeline) Children(parent ID) ([]ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if parent == "" {
		return append([]ID(nil), p.stages...), nil
	}
	e, ok := p.elems[parent]
	if !ok {
		return nil, notFound(parent)
	}
	g, ok := e.(*group)
	if !ok {
		return nil, nil
	}
	return append([]ID(nil), g.children...), nil
}

// Parent returns the container of id, empty for root stages.
func (p *Pipeline) Parent(id ID) (ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.elems[id]
	if !ok {
		return "", notFound(id)
	}
	return e.common().parent, nil
}

// Kind returns the kind of id.
func (p *Pipeline) Kind(id ID) (Kind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.elems[id]
	if !ok {
		return "", notFound(id)
	}
	return e.kind(), nil
}

// Len returns the number of elements in the graph.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.elems)
}

// SetParameter validates and sets one parameter of id. On failure nothing
// changes; on success the element and every ancestor are invalidated.
func (p *Pipeline) SetParameter(id ID, name string, v any) error {
	p.mu.Lock()
	defer p.unlock()

	e, ok := p.elems[id]
	if !ok {
		return notFound(id)
	}
	if err := e.set(name, v); err != nil {
		return err
	}
	p.nodeChanged(id)
	return nil
}

// Parameters returns the current values of id.
func (p *Pipeline) Parameters(id ID) (Values, error) {
	s, err := p.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return s.Values, nil
}

// Snapshot captures the restorable state of id.
func (p *Pipeline) Snapshot(id ID) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.elems[id]
	if !ok {
		return Snapshot{}, notFound(id)
	}
	return e.snapshot(), nil
}

// Restore re-validates s and applies it to the live element it names,
// going through the same invalidation path as SetParameter.
func (p *Pipeline) Restore(s Snapshot) error {
	p.mu.Lock()
	defer p.unlock()

	e, ok := p.elems[s.Node]
	if !ok {
		return notFound(s.Node)
	}
	if e.kind() != s.Kind {
		return fmt.Errorf("%w: snapshot of %s cannot restore %s %s", ErrInvalidParameter, s.Kind, e.kind(), s.Node)
	}
	if err := e.restore(s); err != nil {
		return err
	}
	p.nodeChanged(s.Node)
	return nil
}

// initialState returns the state id had when it was added to the graph.
func (p *Pipeline) initialState(id ID) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.elems[id]
	if !ok {
		return Snapshot{}, notFound(id)
	}
	return e.common().initial, nil
}

// FinishChanging marks the end of a discrete edit on id and returns the
// state to record. It does not touch any cache.
func (p *Pipeline) FinishChanging(id ID) (Snapshot, error) {
	p.mu.Lock()
	defer p.unlock()

	e, ok := p.elems[id]
	if !ok {
		return Snapshot{}, notFound(id)
	}
	p.pending = append(p.pending, Notification{Node: id, Finished: true})
	return e.snapshot(), nil
}

// Layout lists every element parent first, siblings in order. Together
// with the source it is all that is needed to regenerate the output.
func (p *Pipeline) Layout() []LayoutEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []LayoutEntry
	var walk func(ids []ID)
	walk = func(ids []ID) {
		for _, id := range ids {
			e := p.elems[id]
			out = append(out, LayoutEntry{Parent: e.common().parent, State: e.snapshot()})
			if g, ok := e.(*group); ok {
				walk(g.children)
			}
		}
	}
	walk(p.stages)
	return out
}

// Load rebuilds elements from a layout, keeping their ids. It stops at the
// first entry that cannot be added.
func (p *Pipeline) Load(layout []LayoutEntry) error {
	p.mu.Lock()
	defer p.unlock()

	for _, le := range layout {
		if _, err := p.add(le.Parent, le.State.Node, le.State.Kind, nil); err != nil {
			return err
		}
		e := p.elems[le.State.Node]
		if err := e.restore(le.State); err != nil {
			_, _ = p.remove(le.State.Node)
			return err
		}
		e.common().initial = e.snapshot()
	}
	return nil
}

// nodeChanged invalidates id and every ancestor up to the pipeline root.
func (p *Pipeline) nodeChanged(id ID) {
	p.invalidate(id)
	p.pending = append(p.pending, Notification{Node: id})
}

// invalidate bumps the generation of id, its ancestors and the pipeline.
// Caches are never recomputed here; the next render pulls fresh results.
func (p *Pipeline) invalidate(id ID) {
	for cur := id; cur != ""; {
		e, ok := p.elems[cur]
		if !ok {
			break
		}
		b := e.common()
		b.gen++
		cur = b.parent
	}
	p.gen++
}
