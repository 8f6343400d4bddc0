package transform

import (
	"fmt"
	"sort"
	"sync"
)

// Kind names a node type. The catalogue of kinds is open: any package can
// register a kernel for a new kind.
type Kind string

// KindIdentity is the only kind the core registers itself. Its output is its input.
const KindIdentity Kind = "identity"

// Params is the typed parameter set of one node kind.
// Implementations are values: Set never modifies the receiver, it returns
// an updated copy or an error wrapping ErrInvalidParameter.
type Params interface {
	// Set validates value and returns a copy with name updated.
	Set(name string, value any) (Params, error)
	// Values serialises every parameter.
	Values() Values
}

// ApplyFunc is a pure rendering operation. For the same input buffer and
// parameters it must produce the same pixels, and it must not modify src.
type ApplyFunc func(src *Buffer, p Params) (*Buffer, error)

// Kernel binds a kind to its parameter defaults and its rendering operation.
type Kernel struct {
	Kind Kind
	// Version of the parameter serialisation. Snapshots written by a newer
	// version are rejected on restore.
	Version  int
	Defaults func() Params
	Apply    ApplyFunc
}

// Registry maps kinds to kernels. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	kernels map[Kind]Kernel
}

// NewRegistry returns a registry holding only the identity kernel.
func NewRegistry() *Registry {
	r := &Registry{kernels: make(map[Kind]Kernel)}
	r.MustRegister(Kernel{
		Kind:     KindIdentity,
		Version:  1,
		Defaults: func() Params { return NoParams{Kind: KindIdentity} },
		Apply:    func(src *Buffer, _ Params) (*Buffer, error) { return src, nil },
	})
	return r
}

// Register adds k to the registry.
func (r *Registry) Register(k Kernel) error {
	if k.Kind == "" || k.Defaults == nil || k.Apply == nil {
		return fmt.Errorf("register %q: kernel is incomplete", k.Kind)
	}
	if k.Kind == KindGroup {
		return fmt.Errorf("%w: %s is reserved", ErrDuplicateKind, k.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kernels[k.Kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, k.Kind)
	}
	r.kernels[k.Kind] = k
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package initialisation of built-in catalogues.
func (r *Registry) MustRegister(k Kernel) {
	if err := r.Register(k); err != nil {
		panic(err)
	}
}

// Lookup returns the kernel registered for kind.
func (r *Registry) Lookup(kind Kind) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.kernels[kind]
	if !ok {
		return Kernel{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return k, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.kernels))
	for k := range r.kernels {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// NoParams is the parameter set of kinds that take no parameters.
type NoParams struct {
	Kind Kind
}

// Set always fails: there is nothing to set.
func (p NoParams) Set(name string, _ any) (Params, error) {
	return nil, UnknownParam(p.Kind, name)
}

// Values returns an empty set.
func (NoParams) Values() Values { return Values{} }
