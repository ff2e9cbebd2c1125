package release

import (
	"context"
	"fmt"

	"github.com/roach88/stableids/internal/ir"
)

// Counter names accepted by CounterByName.
const (
	CounterModified      = "modified"
	CounterUpdateTracker = "update_tracker"
)

// ChangeCounter counts how often an instance has been touched. Comparing the
// count in the slice with the count in the previous slice tells whether the
// instance changed since the last release.
type ChangeCounter interface {
	Name() string
	Count(ctx context.Context, st Reader, inst *ir.Instance) (int, error)
}

// ModifiedCounter counts the instance's "modified" InstanceEdits.
// Used with relational curator databases.
type ModifiedCounter struct{}

// Name implements ChangeCounter.
func (ModifiedCounter) Name() string { return CounterModified }

// Count implements ChangeCounter.
func (ModifiedCounter) Count(_ context.Context, _ Reader, inst *ir.Instance) (int, error) {
	return inst.Count(ir.AttrModified), nil
}

// UpdateTrackerCounter counts UpdateTracker instances whose updatedInstance
// refers to the instance. Used with graph databases, where edits are
// recorded as trackers rather than on the instance itself.
type UpdateTrackerCounter struct{}

// Name implements ChangeCounter.
func (UpdateTrackerCounter) Name() string { return CounterUpdateTracker }

// Count implements ChangeCounter.
func (UpdateTrackerCounter) Count(ctx context.Context, st Reader, inst *ir.Instance) (int, error) {
	referrers, err := st.FetchReferrers(ctx, inst.DBID, ir.AttrUpdatedInstance)
	if err != nil {
		return 0, newStoreError(st.Name(), "fetch update trackers", inst.DBID, err)
	}
	n := 0
	for _, r := range referrers {
		if r.Class == ir.ClassUpdateTracker {
			n++
		}
	}
	return n, nil
}

// CounterByName returns the counter registered under name.
func CounterByName(name string) (ChangeCounter, error) {
	switch name {
	case CounterModified, "":
		return ModifiedCounter{}, nil
	case CounterUpdateTracker:
		return UpdateTrackerCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown counter %q: must be %q or %q", name, CounterModified, CounterUpdateTracker)
	}
}
