/*
Package transform is a non-destructive image editing engine: a render graph
of parameterised edit stages over an immutable source image, with a linear
undo/redo history of committed edits.

A Pipeline applies its root stages in order. A stage is either a node, which
runs a kernel looked up by kind in a Registry, or a group, which renders its
children from the same input and composites them back to front. Every
element caches its output; a parameter change invalidates the element and
its ancestors only, and the next render pulls fresh results.

A Session wraps a pipeline for an interactive editor. Intermediate changes
go through SetParameter; CommitChange closes a discrete edit and records it
in the history so it can be undone:

	reg := transform.NewRegistry()
	effects.Register(reg)

	s, err := transform.NewSession(ctx, transform.StaticSource(src), reg)
	if err != nil {
		return err
	}
	id, _ := s.AddNode("", effects.KindAdjust, transform.Values{"brightness": 20})
	_ = s.SetParameter(id, "contrast", 15)
	_ = s.CommitChange(id)

	out, err := s.CurrentOutput(ctx)

The command line tool in cmd/transform drives the same engine from recipe
files:

	$ transform --help
*/
package transform
