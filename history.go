package transform

import (
	"container/list"
	"errors"
	"fmt"
)

// Change is the state of one element before and after a committed edit.
type Change struct {
	Node   ID       `json:"node" yaml:"node"`
	Before Snapshot `json:"before" yaml:"before"`
	After  Snapshot `json:"after" yaml:"after"`
}

// Entry is one undo step. It may cover several elements.
type Entry struct {
	Label   string   `json:"label,omitempty" yaml:"label,omitempty"`
	Changes []Change `json:"changes" yaml:"changes"`
}

// Archive is the serialisable form of a history. Cursor is the number of
// entries currently applied.
type Archive struct {
	Entries []Entry `json:"entries" yaml:"entries"`
	Cursor  int     `json:"cursor" yaml:"cursor"`
}

// History is a linear undo/redo list with a cursor. It stores snapshot
// values only and never references the live graph, so it outlives any
// element it mentions. History is not safe for concurrent use; Session
// guards it with its own lock.
type History struct {
	entries *list.List
	// cursor is the last applied entry, nil when nothing is applied.
	cursor *list.Element
	limit  int
}

// NewHistory returns an empty history keeping at most limit entries.
// A limit of zero keeps everything.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{entries: list.New(), limit: limit}
}

// Len returns the number of entries, applied or not.
func (h *History) Len() int { return h.entries.Len() }

// Cursor returns the number of applied entries.
func (h *History) Cursor() int {
	n := 0
	for e := h.cursor; e != nil; e = e.Prev() {
		n++
	}
	return n
}

// CanUndo reports whether an entry is applied.
func (h *History) CanUndo() bool { return h.cursor != nil }

// CanRedo reports whether an undone entry is waiting ahead of the cursor.
func (h *History) CanRedo() bool { return h.next() != nil }

func (h *History) next() *list.Element {
	if h.cursor == nil {
		return h.entries.Front()
	}
	return h.cursor.Next()
}

// Record drops every entry ahead of the cursor, appends e and moves the
// cursor onto it. When the limit is exceeded the oldest entries go first.
func (h *History) Record(e Entry) {
	for el := h.next(); el != nil; {
		next := el.Next()
		h.entries.Remove(el)
		el = next
	}
	h.cursor = h.entries.PushBack(e)
	if h.limit > 0 {
		for h.entries.Len() > h.limit {
			h.entries.Remove(h.entries.Front())
		}
	}
}

// Undo restores the state every change of the applied entry had before it
// was recorded, then moves the cursor back.
func (h *History) Undo(r Restorer) error {
	if h.cursor == nil {
		return ErrNothingToUndo
	}
	e := h.cursor.Value.(Entry)
	h.cursor = h.cursor.Prev()

	snaps := make([]Snapshot, 0, len(e.Changes))
	for i := len(e.Changes) - 1; i >= 0; i-- {
		snaps = append(snaps, e.Changes[i].Before)
	}
	return restoreAll(r, snaps)
}

// Redo moves the cursor forward and restores the state the entry recorded.
func (h *History) Redo(r Restorer) error {
	el := h.next()
	if el == nil {
		return ErrNothingToRedo
	}
	h.cursor = el
	e := el.Value.(Entry)

	snaps := make([]Snapshot, 0, len(e.Changes))
	for _, c := range e.Changes {
		snaps = append(snaps, c.After)
	}
	return restoreAll(r, snaps)
}

// restoreAll applies every snapshot even when some of them fail.
// Snapshots of elements that no longer exist are reported as stale.
func restoreAll(r Restorer, snaps []Snapshot) error {
	var errs []error
	for _, s := range snaps {
		err := r.Restore(s)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			errs = append(errs, fmt.Errorf("%w: %s", ErrStaleReference, s.Node))
		default:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// current returns the applied entry.
func (h *History) current() (Entry, bool) {
	if h.cursor == nil {
		return Entry{}, false
	}
	return h.cursor.Value.(Entry), true
}

// upcoming returns the entry Redo would apply.
func (h *History) upcoming() (Entry, bool) {
	el := h.next()
	if el == nil {
		return Entry{}, false
	}
	return el.Value.(Entry), true
}

// Entries returns a copy of every entry in order.
func (h *History) Entries() []Entry {
	out := make([]Entry, 0, h.entries.Len())
	for el := h.entries.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Entry))
	}
	return out
}

// Clear drops every entry.
func (h *History) Clear() {
	h.entries.Init()
	h.cursor = nil
}

// Export returns the serialisable form of the history.
func (h *History) Export() Archive {
	return Archive{Entries: h.Entries(), Cursor: h.Cursor()}
}

// Import replaces the history with a. The live graph is expected to be in
// the state the archive cursor describes. Over the limit, the oldest applied
// entries are dropped; entries ahead of the cursor are always kept.
func (h *History) Import(a Archive) error {
	if a.Cursor < 0 || a.Cursor > len(a.Entries) {
		return fmt.Errorf("%w: history cursor %d out of range [0, %d]", ErrInvalidParameter, a.Cursor, len(a.Entries))
	}
	h.Clear()
	for i, e := range a.Entries {
		el := h.entries.PushBack(e)
		if i < a.Cursor {
			h.cursor = el
		}
	}
	// only applied entries are dropped; the redo chain must start from the
	// live state
	for h.limit > 0 && h.entries.Len() > h.limit && h.cursor != nil {
		front := h.entries.Front()
		if front == h.cursor {
			h.cursor = nil
		}
		h.entries.Remove(front)
	}
	return nil
}
