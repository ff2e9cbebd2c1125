// Package schema describes which classes exist in the pathway graph, how they
// inherit from each other and which attributes each class may carry.
//
// The description is written in CUE (schema.cue, embedded) and decoded once
// through the CUE Go API. Stores use it to validate instances before writing
// them and to expand a class query to its subclasses; the release step uses it
// to tell Events from PhysicalEntities and pathways from reactions.
package schema

import (
	_ "embed"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/stableids/internal/ir"
)

//go:embed schema.cue
var defaultSchemaCUE string

// Class is one decoded class definition.
type Class struct {
	Name       string
	Parent     string
	Attributes []string // own attributes, inherited ones excluded
}

// Schema is an immutable class hierarchy.
type Schema struct {
	classes map[string]*Class
}

type classDef struct {
	Parent     string   `json:"parent,omitempty"`
	Attributes []string `json:"attributes"`
}

// Error reports a schema that does not compile or is inconsistent.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the embedded schema. It panics if the embedded CUE is
// invalid, which the package tests rule out.
func Default() *Schema {
	s, err := Parse(defaultSchemaCUE, "schema.cue")
	if err != nil {
		panic(fmt.Sprintf("embedded schema: %v", err))
	}
	return s
}

// Parse compiles a CUE class description.
func Parse(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	classesVal := v.LookupPath(cue.ParsePath("classes"))
	if !classesVal.Exists() {
		return nil, &Error{Field: "classes", Message: "classes is required", Pos: v.Pos()}
	}

	if err := classesVal.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	var defs map[string]classDef
	if err := classesVal.Decode(&defs); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{classes: make(map[string]*Class, len(defs))}
	for name, def := range defs {
		s.classes[name] = &Class{
			Name:       name,
			Parent:     def.Parent,
			Attributes: slices.Clone(def.Attributes),
		}
	}

	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// check verifies that parents exist and the hierarchy has no cycles.
func (s *Schema) check() error {
	for _, name := range s.ClassNames() {
		seen := map[string]bool{}
		for c := s.classes[name]; c != nil; c = s.classes[c.Parent] {
			if seen[c.Name] {
				return &Error{Field: "classes." + name, Message: "inheritance cycle"}
			}
			seen[c.Name] = true
			if c.Parent != "" && s.classes[c.Parent] == nil {
				return &Error{
					Field:   "classes." + c.Name + ".parent",
					Message: fmt.Sprintf("unknown parent class %q", c.Parent),
				}
			}
		}
	}
	return nil
}

// Has reports whether the class is defined.
func (s *Schema) Has(class string) bool {
	_, ok := s.classes[class]
	return ok
}

// ClassNames returns all class names in sorted order.
func (s *Schema) ClassNames() []string {
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsA reports whether class equals ancestor or inherits from it.
func (s *Schema) IsA(class, ancestor string) bool {
	for c := s.classes[class]; c != nil; c = s.classes[c.Parent] {
		if c.Name == ancestor {
			return true
		}
	}
	return false
}

// Subclasses returns the class and all its descendants in sorted order.
// Unknown classes yield nil.
func (s *Schema) Subclasses(class string) []string {
	if !s.Has(class) {
		return nil
	}
	var out []string
	for _, name := range s.ClassNames() {
		if s.IsA(name, class) {
			out = append(out, name)
		}
	}
	return out
}

// IsValidAttribute reports whether class (or one of its ancestors) declares
// the attribute.
func (s *Schema) IsValidAttribute(class, attribute string) bool {
	for c := s.classes[class]; c != nil; c = s.classes[c.Parent] {
		if slices.Contains(c.Attributes, attribute) {
			return true
		}
	}
	return false
}

// Validate checks that an instance's class is known and every attribute it
// carries is declared for that class.
func (s *Schema) Validate(inst *ir.Instance) error {
	if !s.Has(inst.Class) {
		return fmt.Errorf("instance %d: unknown class %q", inst.DBID, inst.Class)
	}
	for _, name := range inst.AttributeNames() {
		if !s.IsValidAttribute(inst.Class, name) {
			return fmt.Errorf("instance %d: attribute %q is not valid for class %s",
				inst.DBID, name, inst.Class)
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
