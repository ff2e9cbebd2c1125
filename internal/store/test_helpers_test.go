package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/stableids/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedInstance stores an instance and fails the test on error.
func seedInstance(t *testing.T, s *Store, inst *ir.Instance) int64 {
	t.Helper()
	id, err := s.StoreInstance(context.Background(), inst)
	if err != nil {
		t.Fatalf("StoreInstance(%s) failed: %v", inst, err)
	}
	return id
}

// createTestPathway builds a pathway with a stable identifier ref and n modified edits.
func createTestPathway(dbID, stableID int64, modified int) *ir.Instance {
	inst := ir.NewInstance(dbID, ir.ClassPathway, "Test pathway")
	inst.SetValue(ir.AttrStableIdentifier, ir.Ref(stableID))
	for i := 0; i < modified; i++ {
		inst.AddValue(ir.AttrModified, ir.Ref(900+int64(i)))
	}
	return inst
}

// createTestStableIdentifier builds a StableIdentifier record.
func createTestStableIdentifier(dbID int64, identifier, version string) *ir.Instance {
	inst := ir.NewInstance(dbID, ir.ClassStableIdentifier, identifier+"."+version)
	inst.SetValue(ir.AttrIdentifier, ir.String(identifier))
	inst.SetValue(ir.AttrIdentifierVersion, ir.String(version))
	return inst
}
