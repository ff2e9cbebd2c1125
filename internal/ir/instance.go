package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Instance is one record of a store: a class, a display name and an ordered
// list of values per attribute.
//
// The display name is kept outside the attribute map because every store
// keeps it on the instance row itself; it is still addressable as the
// "_displayName" attribute through Value and SetValue.
type Instance struct {
	DBID        int64
	Class       string
	DisplayName string

	attrs map[string][]Value
}

// NewInstance creates an empty instance.
func NewInstance(dbID int64, class, displayName string) *Instance {
	return &Instance{
		DBID:        dbID,
		Class:       class,
		DisplayName: displayName,
		attrs:       make(map[string][]Value),
	}
}

// String returns "[Class:DBID] DisplayName", matching how curators cite records.
func (i *Instance) String() string {
	if i == nil {
		return "<nil instance>"
	}
	return fmt.Sprintf("[%s:%d] %s", i.Class, i.DBID, i.DisplayName)
}

// Values returns the values of an attribute, nil when unset.
// The returned slice must not be modified.
func (i *Instance) Values(name string) []Value {
	if name == AttrDisplayName {
		if i.DisplayName == "" {
			return nil
		}
		return []Value{String(i.DisplayName)}
	}
	return i.attrs[name]
}

// Value returns the first value of an attribute, nil when unset.
func (i *Instance) Value(name string) Value {
	vals := i.Values(name)
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// Count returns the number of values an attribute holds.
func (i *Instance) Count(name string) int {
	return len(i.Values(name))
}

// StringValue returns the first value of an attribute as a string.
// ok is false when the attribute is unset or not a String.
func (i *Instance) StringValue(name string) (s string, ok bool) {
	v, ok := i.Value(name).(String)
	return string(v), ok
}

// RefValue returns the first value of an attribute as a Ref.
func (i *Instance) RefValue(name string) (Ref, bool) {
	v, ok := i.Value(name).(Ref)
	return v, ok
}

// Refs returns all Ref values of an attribute, skipping other kinds.
func (i *Instance) Refs(name string) []Ref {
	var refs []Ref
	for _, v := range i.Values(name) {
		if r, ok := v.(Ref); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// SetValue replaces an attribute with a single value. A nil value clears it.
func (i *Instance) SetValue(name string, v Value) {
	if name == AttrDisplayName {
		s, _ := v.(String)
		i.DisplayName = string(s)
		return
	}
	if v == nil {
		delete(i.attrs, name)
		return
	}
	i.ensure()
	i.attrs[name] = []Value{v}
}

// SetValues replaces an attribute with a list of values.
func (i *Instance) SetValues(name string, vals []Value) {
	if name == AttrDisplayName {
		i.SetValue(name, firstOrNil(vals))
		return
	}
	if len(vals) == 0 {
		delete(i.attrs, name)
		return
	}
	i.ensure()
	i.attrs[name] = slices.Clone(vals)
}

// AddValue appends a value to a multi-valued attribute.
func (i *Instance) AddValue(name string, v Value) {
	if name == AttrDisplayName {
		i.SetValue(name, v)
		return
	}
	i.ensure()
	i.attrs[name] = append(i.attrs[name], v)
}

// AttributeNames returns the names of all set attributes in sorted order.
// "_displayName" is not included.
func (i *Instance) AttributeNames() []string {
	names := make([]string, 0, len(i.attrs))
	for name := range i.attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	c := NewInstance(i.DBID, i.Class, i.DisplayName)
	for name, vals := range i.attrs {
		c.attrs[name] = slices.Clone(vals)
	}
	return c
}

// MarshalJSON renders the instance with attributes in sorted order.
func (i *Instance) MarshalJSON() ([]byte, error) {
	attrs := make(map[string][]json.RawMessage, len(i.attrs))
	for name, vals := range i.attrs {
		raw := make([]json.RawMessage, len(vals))
		for idx, v := range vals {
			b, err := MarshalValue(v)
			if err != nil {
				return nil, fmt.Errorf("attribute %q[%d]: %w", name, idx, err)
			}
			raw[idx] = b
		}
		attrs[name] = raw
	}
	return json.Marshal(struct {
		DBID        int64                        `json:"db_id"`
		Class       string                       `json:"class"`
		DisplayName string                       `json:"display_name"`
		Attributes  map[string][]json.RawMessage `json:"attributes,omitempty"`
	}{i.DBID, i.Class, i.DisplayName, attrs})
}

func (i *Instance) ensure() {
	if i.attrs == nil {
		i.attrs = make(map[string][]Value)
	}
}

func firstOrNil(vals []Value) Value {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}
