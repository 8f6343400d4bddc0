package transform

// ID identifies a node or group in a pipeline. It stays stable for the
// lifetime of the element and is what history entries refer to.
type ID string

// Snapshot is the restorable state of one element at a point in time.
// It holds values only, never references into the live graph.
type Snapshot struct {
	Node    ID     `json:"node" yaml:"node"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Version int    `json:"version" yaml:"version"`
	Values  Values `json:"values" yaml:"values"`
}

// Equal reports whether s and o describe the same element state.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Node == o.Node && s.Kind == o.Kind && s.Version == o.Version && s.Values.Equal(o.Values)
}

// Restorer applies snapshots to a live graph.
type Restorer interface {
	Restore(Snapshot) error
}
