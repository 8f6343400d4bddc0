package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRestorer is a graph of single-valued elements.
type memRestorer map[ID]int

func (m memRestorer) Restore(s Snapshot) error {
	if _, ok := m[s.Node]; !ok {
		return notFound(s.Node)
	}
	n, err := ToInt("value", s.Values["value"])
	if err != nil {
		return err
	}
	m[s.Node] = n
	return nil
}

func snap(id ID, v int) Snapshot {
	return Snapshot{Node: id, Kind: kindPaint, Version: 1, Values: Values{"value": v}}
}

func change(id ID, before, after int) Entry {
	return Entry{Changes: []Change{{Node: id, Before: snap(id, before), After: snap(id, after)}}}
}

func TestHistory_UndoRedo(t *testing.T) {
	h := NewHistory(0)
	g := memRestorer{"a": 0}

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.ErrorIs(t, h.Undo(g), ErrNothingToUndo)
	assert.ErrorIs(t, h.Redo(g), ErrNothingToRedo)

	h.Record(change("a", 0, 1))
	g["a"] = 1
	h.Record(change("a", 1, 2))
	g["a"] = 2
	assert.Equal(t, 2, h.Cursor())

	require.NoError(t, h.Undo(g))
	assert.Equal(t, 1, g["a"])
	require.NoError(t, h.Undo(g))
	assert.Equal(t, 0, g["a"])
	assert.Equal(t, 0, h.Cursor())
	assert.ErrorIs(t, h.Undo(g), ErrNothingToUndo)

	require.NoError(t, h.Redo(g))
	require.NoError(t, h.Redo(g))
	assert.Equal(t, 2, g["a"])
	assert.ErrorIs(t, h.Redo(g), ErrNothingToRedo)
}

func TestHistory_RecordDropsRedoTail(t *testing.T) {
	h := NewHistory(0)
	g := memRestorer{"a": 0}

	h.Record(change("a", 0, 1))
	h.Record(change("a", 1, 2))
	require.NoError(t, h.Undo(g))
	assert.True(t, h.CanRedo())

	h.Record(change("a", 1, 3))
	assert.False(t, h.CanRedo())
	assert.Equal(t, 2, h.Len())
	assert.ErrorIs(t, h.Redo(g), ErrNothingToRedo)

	entries := h.Entries()
	assert.Equal(t, 3, entries[1].Changes[0].After.Values["value"])
}

func TestHistory_MultiElementEntry(t *testing.T) {
	h := NewHistory(0)
	g := memRestorer{"a": 1, "b": 1}
	h.Record(Entry{Label: "both", Changes: []Change{
		{Node: "a", Before: snap("a", 0), After: snap("a", 1)},
		{Node: "b", Before: snap("b", 0), After: snap("b", 1)},
	}})

	require.NoError(t, h.Undo(g))
	assert.Equal(t, memRestorer{"a": 0, "b": 0}, g)
	require.NoError(t, h.Redo(g))
	assert.Equal(t, memRestorer{"a": 1, "b": 1}, g)
}

func TestHistory_StaleReference(t *testing.T) {
	h := NewHistory(0)
	g := memRestorer{"a": 1, "b": 1}
	h.Record(Entry{Changes: []Change{
		{Node: "a", Before: snap("a", 0), After: snap("a", 1)},
		{Node: "b", Before: snap("b", 0), After: snap("b", 1)},
	}})
	delete(g, "a")

	err := h.Undo(g)
	assert.ErrorIs(t, err, ErrStaleReference)
	assert.NotErrorIs(t, err, ErrNothingToUndo)
	assert.Equal(t, 0, g["b"], "the live element is still restored")
	assert.Equal(t, 0, h.Cursor(), "the cursor moves past the stale entry")
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory(2)
	g := memRestorer{"a": 3}
	for i := 0; i < 3; i++ {
		h.Record(change("a", i, i+1))
	}
	assert.Equal(t, 2, h.Len())

	require.NoError(t, h.Undo(g))
	require.NoError(t, h.Undo(g))
	assert.Equal(t, 1, g["a"])
	assert.ErrorIs(t, h.Undo(g), ErrNothingToUndo)
}

func TestHistory_ExportImport(t *testing.T) {
	h := NewHistory(0)
	h.Record(change("a", 0, 1))
	h.Record(change("a", 1, 2))
	g := memRestorer{"a": 2}
	require.NoError(t, h.Undo(g))

	a := h.Export()
	assert.Equal(t, 1, a.Cursor)
	require.Len(t, a.Entries, 2)

	other := NewHistory(0)
	require.NoError(t, other.Import(a))
	assert.Equal(t, 1, other.Cursor())
	assert.True(t, other.CanRedo())
	require.NoError(t, other.Redo(g))
	assert.Equal(t, 2, g["a"])

	assert.ErrorIs(t, other.Import(Archive{Cursor: 1}), ErrInvalidParameter)
	assert.ErrorIs(t, other.Import(Archive{Entries: a.Entries, Cursor: -1}), ErrInvalidParameter)

	require.NoError(t, other.Import(Archive{}))
	assert.Zero(t, other.Len())
	assert.False(t, other.CanUndo())
}

func TestHistory_ImportOverLimitKeepsRedoChain(t *testing.T) {
	var entries []Entry
	for i := 0; i < 4; i++ {
		entries = append(entries, change("a", i, i+1))
	}

	cases := []struct {
		cursor     int
		wantLen    int
		wantCursor int
		wantFirst  int
	}{
		{cursor: 0, wantLen: 4, wantCursor: 0, wantFirst: 0},
		{cursor: 1, wantLen: 3, wantCursor: 0, wantFirst: 1},
		{cursor: 3, wantLen: 2, wantCursor: 1, wantFirst: 2},
		{cursor: 4, wantLen: 2, wantCursor: 2, wantFirst: 2},
	}
	for _, tc := range cases {
		h := NewHistory(2)
		require.NoError(t, h.Import(Archive{Entries: entries, Cursor: tc.cursor}))
		assert.Equal(t, tc.wantLen, h.Len(), "cursor %d", tc.cursor)
		assert.Equal(t, tc.wantCursor, h.Cursor(), "cursor %d", tc.cursor)
		assert.Equal(t, snap("a", tc.wantFirst), h.Entries()[0].Changes[0].Before, "cursor %d", tc.cursor)
	}

	// redo from an untrimmed cursor walks the whole chain from the live state
	h := NewHistory(2)
	require.NoError(t, h.Import(Archive{Entries: entries}))
	g := memRestorer{"a": 0}
	for h.CanRedo() {
		require.NoError(t, h.Redo(g))
	}
	assert.Equal(t, 4, g["a"])
}
