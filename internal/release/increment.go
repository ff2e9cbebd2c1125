package release

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/stableids/internal/ir"
)

// StableIdentifier is a loaded StableIdentifier record with its parsed version.
type StableIdentifier struct {
	Instance   *ir.Instance
	Identifier string
	Version    int
}

// Label returns identifier "." version.
func (s StableIdentifier) Label() string {
	return fmt.Sprintf("%s.%d", s.Identifier, s.Version)
}

// LoadStableIdentifier resolves the StableIdentifier that entity refers to in
// st. A missing or dangling reference is a MISSING_IDENTIFIER error; an
// unparsable version is INVALID_VERSION.
func LoadStableIdentifier(ctx context.Context, st Reader, entity *ir.Instance) (*StableIdentifier, error) {
	ref, ok := entity.RefValue(ir.AttrStableIdentifier)
	if !ok {
		return nil, NewMissingIdentifierError(entity, st.Name())
	}

	si, err := st.FetchInstance(ctx, ref.DBID())
	if err != nil {
		return nil, newStoreError(st.Name(), "fetch stable identifier", ref.DBID(), err)
	}
	if si == nil {
		return nil, NewMissingIdentifierError(entity, st.Name())
	}

	identifier, ok := si.StringValue(ir.AttrIdentifier)
	if !ok || identifier == "" {
		return nil, newInvalidVersionError(si, st.Name(), fmt.Errorf("identifier is empty"))
	}

	version, err := parseVersion(si.Value(ir.AttrIdentifierVersion))
	if err != nil {
		return nil, newInvalidVersionError(si, st.Name(), err)
	}

	return &StableIdentifier{Instance: si, Identifier: identifier, Version: version}, nil
}

// IncrementStableIdentifier advances the version of entity's StableIdentifier
// in st by one, stamping it with edit. It is the single-store form of
// LoadStableIdentifier followed by IncrementIdentifier; the Updater calls
// those two directly so both stores' identifiers are loaded before either
// is written.
func IncrementStableIdentifier(ctx context.Context, st InstanceStore, entity, edit *ir.Instance) (*StableIdentifier, error) {
	si, err := LoadStableIdentifier(ctx, st, entity)
	if err != nil {
		return nil, err
	}
	if err := IncrementIdentifier(ctx, st, si, edit); err != nil {
		return nil, err
	}
	return si, nil
}

// IncrementIdentifier writes version+1, the matching display name and the
// InstanceEdit to an already loaded StableIdentifier, then persists the three
// attributes. si is updated in place.
func IncrementIdentifier(ctx context.Context, st InstanceStore, si *StableIdentifier, edit *ir.Instance) error {
	newVersion := si.Version + 1
	inst := si.Instance

	inst.SetValue(ir.AttrIdentifierVersion, ir.String(strconv.Itoa(newVersion)))
	inst.SetValue(ir.AttrDisplayName, ir.String(fmt.Sprintf("%s.%d", si.Identifier, newVersion)))
	inst.AddValue(ir.AttrModified, ir.Ref(edit.DBID))

	for _, attr := range []string{ir.AttrIdentifierVersion, ir.AttrDisplayName, ir.AttrModified} {
		if err := st.UpdateInstanceAttribute(ctx, inst, attr); err != nil {
			return newStoreError(st.Name(), "update "+attr, inst.DBID, err)
		}
	}

	si.Version = newVersion
	return nil
}

// parseVersion accepts the decimal-string form curator databases use as well
// as a plain integer.
func parseVersion(v ir.Value) (int, error) {
	var n int
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("identifierVersion is not set")
	case ir.String:
		parsed, err := strconv.Atoi(string(val))
		if err != nil {
			return 0, fmt.Errorf("identifierVersion %q: %w", string(val), err)
		}
		n = parsed
	case ir.Int:
		n = int(val)
	default:
		return 0, fmt.Errorf("identifierVersion has unexpected type %s", v.Kind())
	}
	if n < 0 {
		return 0, fmt.Errorf("identifierVersion %d is negative", n)
	}
	return n, nil
}
