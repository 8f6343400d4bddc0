package transform

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoKey identifies a kernel result: the same kernel version applied to the
// same input buffer with the same parameters always yields the same pixels.
type memoKey struct {
	kind    Kind
	version int
	input   uint64
	params  string
}

// outputCache remembers recent kernel results so that undo and redo, which
// bring back earlier parameter sets, do not pay for the computation again.
type outputCache struct {
	lru *lru.Cache[memoKey, *Buffer]
}

func newOutputCache(size int) (*outputCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[memoKey, *Buffer](size)
	if err != nil {
		return nil, fmt.Errorf("create output cache: %w", err)
	}
	return &outputCache{lru: c}, nil
}

func (c *outputCache) get(k memoKey) (*Buffer, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(k)
}

func (c *outputCache) add(k memoKey, b *Buffer) {
	if c == nil {
		return
	}
	c.lru.Add(k, b)
}

func (c *outputCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func newMemoKey(k Kernel, in *Buffer, p Params) memoKey {
	return memoKey{
		kind:    k.Kind,
		version: k.Version,
		input:   in.ID(),
		params:  canonical(p.Values()),
	}
}

// canonical renders v with sorted keys and typed values.
func canonical(v Values) string {
	var sb strings.Builder
	for _, k := range v.Keys() {
		fmt.Fprintf(&sb, "%s=%#v;", k, v[k])
	}
	return sb.String()
}
