// Package recipe describes edit sessions declaratively in YAML: the stages
// of the render graph, the edits applied to them, and how many steps to
// undo or redo at the end.
//
//	stages:
//	  - id: tone
//	    kind: adjust
//	    params: {brightness: 10}
//	  - id: overlay
//	    group: {width: 0, height: 0}
//	    children:
//	      - id: photo
//	        kind: identity
//	      - id: caption
//	        kind: text
//	        params: {content: "hello", layer.x: 8, layer.y: 8}
//	edits:
//	  - node: tone
//	    set: {contrast: 20}
//	    commit: true
//	undo: 1
package recipe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// Recipe is a parsed edit script.
type Recipe struct {
	Stages []Stage `yaml:"stages"`
	Edits  []Edit  `yaml:"edits,omitempty"`
	Undo   int     `yaml:"undo,omitempty"`
	Redo   int     `yaml:"redo,omitempty"`
}

// Stage is a node, or a group when it declares a group extent or children.
type Stage struct {
	ID       string         `yaml:"id"`
	Kind     string         `yaml:"kind,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
	Group    *Extent        `yaml:"group,omitempty"`
	Children []Stage        `yaml:"children,omitempty"`
}

// Extent is the declared size of a group. Zero takes the input's.
type Extent struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Edit changes parameters of a stage, and optionally commits them as one undo step.
type Edit struct {
	Node   string         `yaml:"node"`
	Set    map[string]any `yaml:"set"`
	Commit bool           `yaml:"commit,omitempty"`
	Label  string         `yaml:"label,omitempty"`
}

func (st Stage) isGroup() bool {
	return st.Kind == string(transform.KindGroup) || st.Group != nil || len(st.Children) > 0
}

// Load reads and parses the recipe file at path.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a recipe.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the structure of the recipe. Parameter values are
// validated by the kernels when the recipe is built.
func (r *Recipe) Validate() error {
	var errs []error
	ids := make(map[string]bool)

	var walk func(stages []Stage)
	walk = func(stages []Stage) {
		for _, st := range stages {
			switch {
			case st.ID == "":
				errs = append(errs, errors.New("stage without id"))
			case ids[st.ID]:
				errs = append(errs, fmt.Errorf("duplicate stage id %q", st.ID))
			}
			ids[st.ID] = true
			if !st.isGroup() && st.Kind == "" {
				errs = append(errs, fmt.Errorf("stage %q has no kind", st.ID))
			}
			walk(st.Children)
		}
	}
	walk(r.Stages)

	for i, e := range r.Edits {
		if !ids[e.Node] {
			errs = append(errs, fmt.Errorf("edit %d references unknown stage %q", i, e.Node))
		}
	}
	if r.Undo < 0 || r.Redo < 0 {
		errs = append(errs, errors.New("undo and redo counts must not be negative"))
	}
	return errors.Join(errs...)
}

// Build adds the stages to the session, plays the edits and finally the
// undo and redo steps. It returns the graph id of every stage.
func (r *Recipe) Build(ctx context.Context, s *transform.Session) (map[string]transform.ID, error) {
	ids := make(map[string]transform.ID)
	if err := r.addStages(ctx, s, "", r.Stages, ids); err != nil {
		return ids, err
	}

	for i, e := range r.Edits {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id := ids[e.Node]
		for _, name := range transform.Values(e.Set).Keys() {
			if err := s.SetParameter(id, name, e.Set[name]); err != nil {
				return ids, fmt.Errorf("edit %d of %s: %w", i, e.Node, err)
			}
		}
		if e.Commit {
			if err := s.CommitChanges(e.Label, id); err != nil {
				return ids, fmt.Errorf("edit %d of %s: %w", i, e.Node, err)
			}
		}
	}

	for i := 0; i < r.Undo; i++ {
		if err := s.Undo(); err != nil {
			return ids, fmt.Errorf("undo step %d: %w", i+1, err)
		}
	}
	for i := 0; i < r.Redo; i++ {
		if err := s.Redo(); err != nil {
			return ids, fmt.Errorf("redo step %d: %w", i+1, err)
		}
	}
	return ids, nil
}

func (r *Recipe) addStages(ctx context.Context, s *transform.Session, parent transform.ID, stages []Stage, ids map[string]transform.ID) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		values := transform.Values(st.Params).Clone()

		var (
			id  transform.ID
			err error
		)
		if st.isGroup() {
			if st.Group != nil {
				values[transform.ParamGroupWidth] = st.Group.Width
				values[transform.ParamGroupHeight] = st.Group.Height
			}
			id, err = s.AddGroup(parent, values)
		} else {
			id, err = s.AddNode(parent, transform.Kind(st.Kind), values)
		}
		if err != nil {
			return fmt.Errorf("stage %s: %w", st.ID, err)
		}
		ids[st.ID] = id

		if err := r.addStages(ctx, s, id, st.Children, ids); err != nil {
			return err
		}
	}
	return nil
}
