package release

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/testutil"
)

func TestAuditRecorder_StampBuildsInstanceEdit(t *testing.T) {
	st := newMemStore("slice", true)
	st.put(newPerson(7))
	clock := testutil.NewFixedClock(time.Date(2024, 3, 14, 9, 30, 5, 0, time.UTC))

	rec := NewAuditRecorder(st, 7, clock)
	assert.False(t, rec.Created())

	edit, err := rec.Stamp(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Created())

	assert.Equal(t, int64(8), edit.DBID, "next free db_id")
	assert.Equal(t, ir.ClassInstanceEdit, edit.Class)
	assert.Equal(t, "Curator, A, 2024-03-14", edit.DisplayName)

	author, ok := edit.RefValue(ir.AttrAuthor)
	require.True(t, ok)
	assert.Equal(t, int64(7), author.DBID())

	dateTime, _ := edit.StringValue(ir.AttrDateTime)
	assert.Equal(t, "2024-03-14 09:30:05", dateTime)

	note, _ := edit.StringValue(ir.AttrNote)
	assert.Equal(t, CreatorName, note)

	stored := st.get(edit.DBID)
	require.NotNil(t, stored, "edit must be persisted")
	assert.Equal(t, edit.DisplayName, stored.DisplayName)
}

func TestAuditRecorder_MemoizedPerRecorder(t *testing.T) {
	st := newMemStore("slice", true)
	st.put(newPerson(7))
	rec := NewAuditRecorder(st, 7, testutil.NewFixedClock(time.Time{}))

	first, err := rec.Stamp(context.Background())
	require.NoError(t, err)
	second, err := rec.Stamp(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)

	edits, err := st.FetchInstancesByClass(context.Background(), ir.ClassInstanceEdit)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}

func TestAuditRecorder_PersonUnresolved(t *testing.T) {
	st := newMemStore("gk_central", true)
	st.put(newEvent(7, "Reaction", 0, 0))

	for _, personID := range []int64{7, 99} {
		rec := NewAuditRecorder(st, personID, nil)
		_, err := rec.Stamp(context.Background())
		require.Error(t, err)
		assert.True(t, IsActorError(err), "person %d: %v", personID, err)
		assert.False(t, rec.Created())
	}
}

func TestEditDisplayName_Fallbacks(t *testing.T) {
	noInitial := ir.NewInstance(1, ir.ClassPerson, "Smith")
	noInitial.SetValue(ir.AttrSurname, ir.String("Smith"))
	assert.Equal(t, "Smith, 2024-01-01", editDisplayName(noInitial, "2024-01-01"))

	bare := ir.NewInstance(1, ir.ClassPerson, "Anonymous")
	assert.Equal(t, "Anonymous, 2024-01-01", editDisplayName(bare, "2024-01-01"))
}
