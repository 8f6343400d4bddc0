package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// SourceProvider supplies the image a session edits.
type SourceProvider interface {
	Source(ctx context.Context) (*Buffer, error)
}

// SourceFunc adapts a function to SourceProvider.
type SourceFunc func(ctx context.Context) (*Buffer, error)

// Source calls f.
func (f SourceFunc) Source(ctx context.Context) (*Buffer, error) { return f(ctx) }

// StaticSource provides a buffer that is already in memory.
func StaticSource(b *Buffer) SourceProvider {
	return SourceFunc(func(context.Context) (*Buffer, error) { return b, nil })
}

// Document is everything needed to resume an editing session over the
// same source: the graph layout and the undo history.
type Document struct {
	Layout  []LayoutEntry `json:"layout" yaml:"layout"`
	History Archive       `json:"history" yaml:"history"`
}

// Session is the editing handle handed to a presentation layer. It owns a
// pipeline and the history of committed edits over it.
//
// Parameter changes are intermediate until committed: CommitChange compares
// the element with its state at the previous commit, or with the state it was
// added in, and records the pair as one undo step. Edits that end where they
// started record nothing.
type Session struct {
	mu       sync.Mutex
	pipeline *Pipeline
	history  *History
	baseline map[ID]Snapshot
	cfg      config
}

// NewSession loads the source and creates a session with an empty pipeline.
func NewSession(ctx context.Context, src SourceProvider, reg *Registry, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	buf, err := src.Source(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	p, err := newPipeline(buf, reg, cfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		pipeline: p,
		history:  NewHistory(cfg.historyLimit),
		baseline: make(map[ID]Snapshot),
		cfg:      cfg,
	}, nil
}

// NewSessionFromDocument rebuilds a saved session: the graph is recreated
// with its original ids and the history is restored with its cursor.
func NewSessionFromDocument(ctx context.Context, src SourceProvider, reg *Registry, doc Document, opts ...Option) (*Session, error) {
	s, err := NewSession(ctx, src, reg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.Load(doc.Layout); err != nil {
		return nil, fmt.Errorf("load layout: %w", err)
	}
	if err := s.ImportHistory(doc.History); err != nil {
		return nil, err
	}
	return s, nil
}

// lock takes the session lock and holds back graph notifications, which
// unlock delivers once the session is consistent and unlocked again.
func (s *Session) lock() {
	s.mu.Lock()
	s.pipeline.hold()
}

func (s *Session) unlock() {
	s.mu.Unlock()
	s.pipeline.release()
}

// Pipeline returns the render graph the session edits.
func (s *Session) Pipeline() *Pipeline { return s.pipeline }

// SetParameter changes one parameter without recording history.
func (s *Session) SetParameter(id ID, name string, v any) error {
	return s.pipeline.SetParameter(id, name, v)
}

// CommitChange marks the end of an edit on id and records it as one undo step.
func (s *Session) CommitChange(id ID) error {
	return s.CommitChanges("", id)
}

// CommitChanges records the edits made to ids since their last commit as a
// single undo step. Unknown ids abort the commit before anything is recorded.
func (s *Session) CommitChanges(label string, ids ...ID) error {
	s.lock()
	defer s.unlock()

	var changes []Change
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		after, err := s.pipeline.FinishChanging(id)
		if err != nil {
			return err
		}
		before, ok := s.baseline[id]
		if !ok {
			if before, err = s.pipeline.initialState(id); err != nil {
				return err
			}
		}
		if before.Equal(after) {
			continue
		}
		changes = append(changes, Change{Node: id, Before: before, After: after})
	}
	if len(changes) == 0 {
		return nil
	}

	s.history.Record(Entry{Label: label, Changes: changes})
	for _, c := range changes {
		s.baseline[c.Node] = c.After
	}
	s.cfg.metrics.HistoryRecords.Inc()
	s.cfg.metrics.HistorySize.Set(float64(s.history.Len()))
	s.cfg.logger.Info("commit",
		slog.String("label", label),
		slog.Int("changes", len(changes)),
		slog.Int("cursor", s.history.Cursor()),
	)
	return nil
}

// Undo reverts the last committed step.
func (s *Session) Undo() error {
	s.lock()
	defer s.unlock()

	e, ok := s.history.current()
	if !ok {
		return ErrNothingToUndo
	}
	err := s.history.Undo(s.pipeline)
	s.resync(e)
	s.cfg.metrics.Undos.Inc()
	s.logStep("undo", e, err)
	return err
}

// Redo reapplies the last undone step.
func (s *Session) Redo() error {
	s.lock()
	defer s.unlock()

	e, ok := s.history.upcoming()
	if !ok {
		return ErrNothingToRedo
	}
	err := s.history.Redo(s.pipeline)
	s.resync(e)
	s.cfg.metrics.Redos.Inc()
	s.logStep("redo", e, err)
	return err
}

func (s *Session) logStep(msg string, e Entry, err error) {
	if err != nil {
		s.cfg.logger.Warn(msg+" hit stale references",
			slog.String("label", e.Label),
			slog.String("error", err.Error()),
		)
	}
	s.cfg.logger.Info(msg,
		slog.String("label", e.Label),
		slog.Int("changes", len(e.Changes)),
		slog.Int("cursor", s.history.Cursor()),
	)
}

// resync moves the commit baseline of every element of e to its live state.
func (s *Session) resync(e Entry) {
	for _, c := range e.Changes {
		snap, err := s.pipeline.Snapshot(c.Node)
		if err != nil {
			delete(s.baseline, c.Node)
			continue
		}
		s.baseline[c.Node] = snap
	}
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// CurrentOutput renders the pipeline.
func (s *Session) CurrentOutput(ctx context.Context) (*Buffer, error) {
	return s.pipeline.Render(ctx)
}

// AddNode adds a node to parent, the empty id being the pipeline root.
// Its first commit is compared with the state it is added in.
func (s *Session) AddNode(parent ID, kind Kind, v Values) (ID, error) {
	return s.pipeline.AddNode(parent, kind, v)
}

// AddGroup adds an empty group to parent.
func (s *Session) AddGroup(parent ID, v Values) (ID, error) {
	return s.AddNode(parent, KindGroup, v)
}

// RemoveNode removes id and its descendants. History entries that mention
// them become stale.
func (s *Session) RemoveNode(id ID) error {
	s.lock()
	defer s.unlock()

	removed, err := s.pipeline.detach(id)
	if err != nil {
		return err
	}
	for _, r := range removed {
		delete(s.baseline, r)
	}
	return nil
}

// MoveNode reorders id among its siblings.
func (s *Session) MoveNode(id ID, index int) error {
	return s.pipeline.MoveNode(id, index)
}

// Apply replaces the source image and keeps every edit.
func (s *Session) Apply(src *Buffer) error {
	return s.pipeline.Apply(src)
}

// Snapshot returns the live state of id.
func (s *Session) Snapshot(id ID) (Snapshot, error) {
	return s.pipeline.Snapshot(id)
}

// Children lists the children of parent in paint order.
func (s *Session) Children(parent ID) ([]ID, error) {
	return s.pipeline.Children(parent)
}

// Layout lists every element of the graph.
func (s *Session) Layout() []LayoutEntry {
	return s.pipeline.Layout()
}

// Observe registers fn to be called after each change to the graph.
// fn runs once the graph and session locks are released, so it may call
// any method of the session, CanUndo and CanRedo included.
func (s *Session) Observe(fn func(Notification)) {
	s.pipeline.Observe(fn)
}

// ExportHistory returns the history in serialisable form.
func (s *Session) ExportHistory() Archive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Export()
}

// ImportHistory replaces the history. The live graph is taken as the state
// at the archive cursor.
func (s *Session) ImportHistory(a Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, e := range a.Entries {
		for _, c := range e.Changes {
			if c.Before.Node != c.Node || c.After.Node != c.Node {
				errs = append(errs, fmt.Errorf("%w: change of %s holds snapshots of other elements", ErrInvalidParameter, c.Node))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := s.history.Import(a); err != nil {
		return err
	}

	s.baseline = make(map[ID]Snapshot)
	for _, le := range s.pipeline.Layout() {
		s.baseline[le.State.Node] = le.State
	}
	s.cfg.metrics.HistorySize.Set(float64(s.history.Len()))
	return nil
}

// Document captures the session for persistence.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Document{Layout: s.pipeline.Layout(), History: s.history.Export()}
}
