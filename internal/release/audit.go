package release

import (
	"context"
	"fmt"

	"github.com/agentstation/utc"

	"github.com/roach88/stableids/internal/ir"
)

// CreatorName is recorded as the note of every InstanceEdit this step creates.
const CreatorName = "org.reactome.release.updateStableIds"

// dateTimeLayout matches the dateTime format of curator InstanceEdits.
const dateTimeLayout = "2006-01-02 15:04:05"

// Clock supplies audit timestamps.
type Clock interface {
	Now() utc.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() utc.Time { return utc.Now() }

// AuditRecorder lazily creates the single InstanceEdit a store receives
// during a run, attributing every mutation to the configured Person.
//
// Not safe for concurrent use.
type AuditRecorder struct {
	store    InstanceStore
	personID int64
	note     string
	clock    Clock

	edit *ir.Instance
}

// NewAuditRecorder creates a recorder for one store and one run.
func NewAuditRecorder(st InstanceStore, personID int64, clock Clock) *AuditRecorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AuditRecorder{
		store:    st,
		personID: personID,
		note:     CreatorName,
		clock:    clock,
	}
}

// Stamp returns the run's InstanceEdit for this store, creating and storing
// it on first use. Failing to resolve the Person is an ACTOR_UNRESOLVED error.
func (r *AuditRecorder) Stamp(ctx context.Context) (*ir.Instance, error) {
	if r.edit != nil {
		return r.edit, nil
	}

	person, err := r.store.FetchInstance(ctx, r.personID)
	if err != nil {
		return nil, NewActorError(r.store.Name(), r.personID, err)
	}
	if person == nil {
		return nil, NewActorError(r.store.Name(), r.personID, fmt.Errorf("no instance with db_id %d", r.personID))
	}
	if person.Class != ir.ClassPerson {
		return nil, NewActorError(r.store.Name(), r.personID, fmt.Errorf("%s is not a Person", person))
	}

	now := r.clock.Now().Time.UTC()
	edit := ir.NewInstance(0, ir.ClassInstanceEdit, editDisplayName(person, now.Format("2006-01-02")))
	edit.SetValue(ir.AttrAuthor, ir.Ref(person.DBID))
	edit.SetValue(ir.AttrDateTime, ir.String(now.Format(dateTimeLayout)))
	edit.SetValue(ir.AttrNote, ir.String(r.note))

	if _, err := r.store.StoreInstance(ctx, edit); err != nil {
		return nil, newStoreError(r.store.Name(), "store instance edit", 0, err)
	}
	r.edit = edit
	return edit, nil
}

// Created reports whether Stamp has created the InstanceEdit.
func (r *AuditRecorder) Created() bool {
	return r.edit != nil
}

// editDisplayName follows the curator convention "Surname, Initial, YYYY-MM-DD".
func editDisplayName(person *ir.Instance, date string) string {
	surname, _ := person.StringValue(ir.AttrSurname)
	initial, _ := person.StringValue(ir.AttrInitial)
	switch {
	case surname != "" && initial != "":
		return fmt.Sprintf("%s, %s, %s", surname, initial, date)
	case surname != "":
		return fmt.Sprintf("%s, %s", surname, date)
	default:
		return fmt.Sprintf("%s, %s", person.DisplayName, date)
	}
}
