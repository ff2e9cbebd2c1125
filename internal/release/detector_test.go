package release

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/schema"
)

func newTestDetector(tr *triple) *Detector {
	return NewDetector(schema.Default(), tr.slice, tr.previous)
}

func isUpdated(t *testing.T, d *Detector, cur, prev *ir.Instance) bool {
	t.Helper()
	got, err := d.IsUpdated(context.Background(), cur, prev)
	require.NoError(t, err)
	return got
}

func TestDetector_PhysicalEntityNeverUpdated(t *testing.T) {
	d := newTestDetector(newTriple())
	cur := newEvent(10, "Complex", 0, 0)
	cur.SetValue(ir.AttrReleaseStatus, ir.String(ir.ReleaseStatusUpdated))

	assert.False(t, isUpdated(t, d, cur, newEvent(10, "Complex", 0, 0)))
}

func TestDetector_ReleaseStatusSet(t *testing.T) {
	d := newTestDetector(newTriple())
	cur := newEvent(10, "Reaction", 0, 0)
	cur.SetValue(ir.AttrReleaseStatus, ir.String("ANY"))

	assert.True(t, isUpdated(t, d, cur, newEvent(10, "Reaction", 0, 0)))
}

func TestDetector_RevisedAndReviewedDeltas(t *testing.T) {
	d := newTestDetector(newTriple())

	for _, attr := range []string{ir.AttrRevised, ir.AttrReviewed} {
		t.Run(attr, func(t *testing.T) {
			prev := withRefs(newEvent(10, "Reaction", 0, 0), attr, 100)
			same := withRefs(newEvent(10, "Reaction", 0, 0), attr, 100)
			more := withRefs(newEvent(10, "Reaction", 0, 0), attr, 100, 101)

			assert.False(t, isUpdated(t, d, same, prev))
			assert.True(t, isUpdated(t, d, more, prev))
			assert.False(t, isUpdated(t, d, prev, more), "fewer entries is not an update")
		})
	}
}

func TestDetector_RecursivePropagation(t *testing.T) {
	tr := newTriple()
	child := newEvent(20, "Reaction", 0, 0)
	prevChild := child.Clone()
	withRefs(child, ir.AttrReviewed, 300)
	tr.slice.put(child)
	tr.previous.put(prevChild)

	parent := withRefs(newEvent(10, "Pathway", 0, 0), ir.AttrHasEvent, 20)
	prevParent := parent.Clone()

	assert.True(t, isUpdated(t, newTestDetector(tr), parent, prevParent))
}

func TestDetector_NestedPathways(t *testing.T) {
	tr := newTriple()
	leaf := newEvent(30, "Reaction", 0, 0)
	tr.previous.put(leaf.Clone())
	withRefs(leaf, ir.AttrRevised, 400)
	tr.slice.put(leaf)

	mid := withRefs(newEvent(20, "Pathway", 0, 0), ir.AttrHasEvent, 30)
	tr.slice.put(mid)
	tr.previous.put(mid)

	top := withRefs(newEvent(10, "TopLevelPathway", 0, 0), ir.AttrHasEvent, 20)

	assert.True(t, isUpdated(t, newTestDetector(tr), top, top.Clone()))
}

func TestDetector_ChildMissingInEitherStore(t *testing.T) {
	tr := newTriple()
	onlyCurrent := withRefs(newEvent(20, "Reaction", 0, 0), ir.AttrReviewed, 1)
	tr.slice.put(onlyCurrent)

	onlyPrevious := newEvent(21, "Reaction", 0, 0)
	tr.previous.put(onlyPrevious)

	parent := withRefs(newEvent(10, "Pathway", 0, 0), ir.AttrHasEvent, 20, 21, 22)

	assert.False(t, isUpdated(t, newTestDetector(tr), parent, parent.Clone()))
}

func TestDetector_ChildFailureIsLoggedAndIgnored(t *testing.T) {
	tr := newTriple()
	broken := newEvent(20, "Reaction", 0, 0)
	tr.slice.put(broken)
	tr.previous.put(broken)
	tr.slice.fetchErr[20] = errors.New("connection reset")

	good := newEvent(21, "Reaction", 0, 0)
	tr.previous.put(good.Clone())
	withRefs(good, ir.AttrRevised, 1)
	tr.slice.put(good)

	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	parent := withRefs(newEvent(10, "Pathway", 0, 0), ir.AttrHasEvent, 20, 21)
	got, err := newTestDetector(tr).IsUpdated(ctx, parent, parent.Clone())
	require.NoError(t, err)
	assert.True(t, got, "a failing child must not hide an updated sibling")
	assert.True(t, tl.Contains("unable to check if child event is updated"))
	assert.True(t, tl.Contains(`"parent_db_id":10`))

	onlyBroken := withRefs(newEvent(11, "Pathway", 0, 0), ir.AttrHasEvent, 20)
	got, err = newTestDetector(tr).IsUpdated(ctx, onlyBroken, onlyBroken.Clone())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestDetector_CycleTerminates(t *testing.T) {
	tr := newTriple()
	a := withRefs(newEvent(10, "Pathway", 0, 0), ir.AttrHasEvent, 11)
	b := withRefs(newEvent(11, "Pathway", 0, 0), ir.AttrHasEvent, 10)
	tr.slice.put(a, b)
	tr.previous.put(a, b)

	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	got, err := newTestDetector(tr).IsUpdated(ctx, a, a.Clone())
	require.NoError(t, err)
	assert.False(t, got)
	assert.True(t, tl.Contains("event composition cycle"))
}

func TestDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDetector(newTriple()).IsUpdated(ctx, newEvent(10, "Reaction", 0, 0), newEvent(10, "Reaction", 0, 0))
	assert.ErrorIs(t, err, context.Canceled)
}
