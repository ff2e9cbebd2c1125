package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/schema"
)

// State is a phase of a release run.
type State string

const (
	StateStart      State = "start"
	StateLoading    State = "loading"
	StateIterating  State = "iterating"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// ErrTransactionsRequired is returned when the curator store cannot open a
// transaction. The curator store is always written atomically.
var ErrTransactionsRequired = errors.New("store does not support transactions")

// ErrAlreadyRun is returned when Run is called on an Updater twice.
var ErrAlreadyRun = errors.New("updater has already run")

// Summary reports the outcome of a run.
//
// Every checked entity lands in exactly one of Incremented, NotIncremented
// or Skipped. MissingIdentifier is a subset of NotIncremented.
type Summary struct {
	RunID             string `json:"run_id"`
	Counter           string `json:"counter"`
	State             State  `json:"state"`
	Checked           int    `json:"checked"`
	Incremented       int    `json:"incremented"`
	NotIncremented    int    `json:"not_incremented"`
	Skipped           int    `json:"skipped"`
	MissingIdentifier int    `json:"missing_identifier"`
	Marked            int    `json:"marked"`
	MarkFailures      int    `json:"mark_failures"`
}

// Updater reconciles StableIdentifier versions for one release.
//
// The slice is the current release snapshot, previous the last release's
// snapshot and curator the curator store. Each mutable store gets one
// transaction for the whole run; the slice is committed before the curator
// store and the two commits are not atomic together.
//
// An Updater runs once. It is not safe for concurrent use.
type Updater struct {
	slice    InstanceStore
	previous Reader
	curator  InstanceStore
	personID int64

	schema  *schema.Schema
	counter ChangeCounter
	clock   Clock
	runIDs  RunIDGenerator
	logger  *zerolog.Logger

	state        State
	sliceTx      bool
	curatorTx    bool
	sliceAudit   *AuditRecorder
	curatorAudit *AuditRecorder
	detector     *Detector
	summary      Summary
}

// Option configures an Updater.
type Option func(*Updater)

// WithCounter selects the change counter. Default: ModifiedCounter.
func WithCounter(c ChangeCounter) Option {
	return func(u *Updater) { u.counter = c }
}

// WithClock sets the clock used for audit timestamps.
func WithClock(c Clock) Option {
	return func(u *Updater) { u.clock = c }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(u *Updater) { u.runIDs = g }
}

// WithLogger sets the logger. Without it the logger is taken from the
// context passed to Run.
func WithLogger(l *zerolog.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

// WithSchema sets the class schema. Default: schema.Default().
func WithSchema(s *schema.Schema) Option {
	return func(u *Updater) { u.schema = s }
}

// New creates an Updater. personID is the db_id of the Person every
// InstanceEdit is attributed to; it must exist in both mutable stores.
func New(slice InstanceStore, previous Reader, curator InstanceStore, personID int64, opts ...Option) *Updater {
	u := &Updater{
		slice:    slice,
		previous: previous,
		curator:  curator,
		personID: personID,
		counter:  ModifiedCounter{},
		clock:    SystemClock{},
		runIDs:   UUIDv7Generator{},
		state:    StateStart,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.schema == nil {
		u.schema = schema.Default()
	}

	u.sliceAudit = NewAuditRecorder(slice, personID, u.clock)
	u.curatorAudit = NewAuditRecorder(curator, personID, u.clock)
	u.detector = NewDetector(u.schema, slice, previous)
	return u
}

// State returns the current run phase.
func (u *Updater) State() State {
	return u.state
}

// Run executes the release step. On failure every transaction opened by the
// run is rolled back and the partial summary is returned with the error.
func (u *Updater) Run(ctx context.Context) (*Summary, error) {
	if u.state != StateStart {
		return nil, fmt.Errorf("%w (state %s)", ErrAlreadyRun, u.state)
	}

	base := u.logger
	if base == nil {
		base = logging.FromContext(ctx)
	}
	u.summary = Summary{RunID: u.runIDs.Generate(), Counter: u.counter.Name()}
	log := base.With().Str("run_id", u.summary.RunID).Logger()
	ctx = logging.WithLogger(ctx, &log)

	log.Info().
		Str("counter", u.counter.Name()).
		Int64("person_id", u.personID).
		Msg("update stable identifiers step started")

	if err := u.begin(ctx); err != nil {
		return u.fail(ctx, err)
	}

	u.state = StateLoading
	entities, err := u.load(ctx)
	if err != nil {
		return u.fail(ctx, err)
	}
	log.Info().Int("count", len(entities)).Msg("loaded Event and PhysicalEntity instances")

	u.state = StateIterating
	for _, inst := range entities {
		if err := u.process(ctx, inst); err != nil {
			return u.fail(ctx, err)
		}
	}

	u.state = StateCommitting
	if err := u.commit(ctx); err != nil {
		return u.fail(ctx, err)
	}

	u.state = StateDone
	u.summary.State = u.state
	log.Info().
		Int("incremented", u.summary.Incremented).
		Int("not_incremented", u.summary.NotIncremented).
		Int("skipped", u.summary.Skipped).
		Int("marked", u.summary.Marked).
		Msg("update stable identifiers step finished")

	summary := u.summary
	return &summary, nil
}

func (u *Updater) begin(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if u.slice.SupportsTransactions() {
		if err := u.slice.BeginTransaction(ctx); err != nil {
			return NewTransactionError(u.slice.Name(), "begin transaction", err)
		}
		u.sliceTx = true
	} else {
		log.Warn().Str("store", u.slice.Name()).Msg("store does not support transactions; writes are not atomic")
	}

	if !u.curator.SupportsTransactions() {
		return NewTransactionError(u.curator.Name(), "begin transaction", ErrTransactionsRequired)
	}
	if err := u.curator.BeginTransaction(ctx); err != nil {
		return NewTransactionError(u.curator.Name(), "begin transaction", err)
	}
	u.curatorTx = true
	return nil
}

// load returns all Events followed by all PhysicalEntities in store order.
func (u *Updater) load(ctx context.Context) ([]*ir.Instance, error) {
	var out []*ir.Instance
	seen := make(map[int64]bool)
	for _, class := range []string{ir.ClassEvent, ir.ClassPhysicalEntity} {
		insts, err := u.slice.FetchInstancesByClass(ctx, class)
		if err != nil {
			return nil, newStoreError(u.slice.Name(), "fetch "+class+" instances", 0, err)
		}
		for _, inst := range insts {
			if seen[inst.DBID] {
				continue
			}
			seen[inst.DBID] = true
			out = append(out, inst)
		}
	}
	return out, nil
}

func (u *Updater) process(ctx context.Context, inst *ir.Instance) error {
	u.summary.Checked++
	log := logging.FromContext(ctx).With().Int64("db_id", inst.DBID).Logger()

	curatorInst, err := u.curator.FetchInstance(ctx, inst.DBID)
	if err != nil {
		return newStoreError(u.curator.Name(), "fetch instance", inst.DBID, err)
	}
	if curatorInst == nil {
		log.Warn().Str("instance", inst.String()).Msg("instance not found in curator store; skipping")
		u.summary.Skipped++
		return nil
	}

	prevInst, err := u.previous.FetchInstance(ctx, inst.DBID)
	if err != nil {
		return newStoreError(u.previous.Name(), "fetch instance", inst.DBID, err)
	}
	if prevInst == nil {
		log.Debug().Str("instance", inst.String()).Msg("instance not in previous release; skipping")
		u.summary.Skipped++
		return nil
	}

	current, err := u.counter.Count(ctx, u.slice, inst)
	if err != nil {
		return err
	}
	previous, err := u.counter.Count(ctx, u.previous, prevInst)
	if err != nil {
		return err
	}

	switch {
	case current < previous:
		ierr := NewIntegrityError(inst, u.counter.Name(), current, previous)
		log.Error().Err(ierr).Msg("integrity violation")
		return ierr
	case current > previous:
		incremented, err := u.attemptIncrement(ctx, &log, inst, curatorInst)
		if err != nil {
			return err
		}
		if incremented {
			u.summary.Incremented++
		} else {
			u.summary.NotIncremented++
		}
	default:
		u.summary.NotIncremented++
	}

	u.markIfUpdated(ctx, &log, inst, prevInst)
	return nil
}

// attemptIncrement advances the StableIdentifier in both mutable stores.
// It returns false without writing when either side lacks a StableIdentifier.
func (u *Updater) attemptIncrement(ctx context.Context, log *zerolog.Logger, sliceInst, curatorInst *ir.Instance) (bool, error) {
	sliceSI, err := LoadStableIdentifier(ctx, u.slice, sliceInst)
	if IsMissingIdentifier(err) {
		log.Warn().Err(err).Msg("no StableIdentifier in slice; not incremented")
		u.summary.MissingIdentifier++
		return false, nil
	}
	if err != nil {
		return false, err
	}

	curatorSI, err := LoadStableIdentifier(ctx, u.curator, curatorInst)
	if IsMissingIdentifier(err) {
		log.Warn().Err(err).Msg("no StableIdentifier in curator store; not incremented")
		u.summary.MissingIdentifier++
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if status, _ := sliceInst.StringValue(ir.AttrReleaseStatus); status == ir.ReleaseStatusUpdated {
		log.Warn().
			Str("stable_id", sliceSI.Label()).
			Msg("incrementing StableIdentifier of an instance already marked UPDATED in this release")
	}
	if sliceSI.Version != curatorSI.Version {
		log.Warn().
			Str("slice_stable_id", sliceSI.Label()).
			Str("curator_stable_id", curatorSI.Label()).
			Msg("StableIdentifier versions differ between slice and curator store")
	}

	sliceEdit, err := u.sliceAudit.Stamp(ctx)
	if err != nil {
		return false, err
	}
	curatorEdit, err := u.curatorAudit.Stamp(ctx)
	if err != nil {
		return false, err
	}

	before := sliceSI.Label()
	if err := IncrementIdentifier(ctx, u.slice, sliceSI, sliceEdit); err != nil {
		return false, err
	}
	if err := IncrementIdentifier(ctx, u.curator, curatorSI, curatorEdit); err != nil {
		return false, err
	}

	log.Info().
		Str("from", before).
		Str("to", sliceSI.Label()).
		Msg("incremented StableIdentifier")
	return true, nil
}

// markIfUpdated flags the slice instance UPDATED when the detector says it
// changed. Failures leave the instance unmarked and never abort the run.
func (u *Updater) markIfUpdated(ctx context.Context, log *zerolog.Logger, inst, prevInst *ir.Instance) {
	updated, err := u.detector.IsUpdated(ctx, inst, prevInst)
	if err != nil {
		log.Error().Err(err).Str("instance", inst.String()).Msg("unable to check if instance was updated")
		u.summary.MarkFailures++
		return
	}
	if !updated {
		return
	}

	marked, err := u.MarkUpdated(ctx, inst)
	if err != nil {
		log.Error().Err(err).Str("instance", inst.String()).Msg("unable to mark instance as updated")
		u.summary.MarkFailures++
		return
	}
	if marked {
		log.Info().Str("instance", inst.String()).Msg("release status set to UPDATED")
		u.summary.Marked++
	} else {
		log.Debug().Str("instance", inst.String()).Msg("release status already UPDATED")
	}
}

// MarkUpdated sets releaseStatus to UPDATED on a slice instance and appends
// the slice InstanceEdit to its modified list. It reports false and writes
// nothing when the instance is already UPDATED.
func (u *Updater) MarkUpdated(ctx context.Context, inst *ir.Instance) (bool, error) {
	if status, _ := inst.StringValue(ir.AttrReleaseStatus); status == ir.ReleaseStatusUpdated {
		return false, nil
	}

	edit, err := u.sliceAudit.Stamp(ctx)
	if err != nil {
		return false, err
	}

	inst.SetValue(ir.AttrReleaseStatus, ir.String(ir.ReleaseStatusUpdated))
	inst.AddValue(ir.AttrModified, ir.Ref(edit.DBID))

	for _, attr := range []string{ir.AttrReleaseStatus, ir.AttrModified} {
		if err := u.slice.UpdateInstanceAttribute(ctx, inst, attr); err != nil {
			return false, newStoreError(u.slice.Name(), "update "+attr, inst.DBID, err)
		}
	}
	return true, nil
}

func (u *Updater) commit(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if u.sliceTx {
		if err := u.slice.Commit(); err != nil {
			return NewTransactionError(u.slice.Name(), "commit", err)
		}
		u.sliceTx = false
		log.Info().Str("store", u.slice.Name()).Msg("committed")
	}

	if err := u.curator.Commit(); err != nil {
		return NewTransactionError(u.curator.Name(), "commit", err)
	}
	u.curatorTx = false
	log.Info().Str("store", u.curator.Name()).Msg("committed")
	return nil
}

// fail rolls back every transaction still open and records the failure.
func (u *Updater) fail(ctx context.Context, err error) (*Summary, error) {
	log := logging.FromContext(ctx)

	if u.sliceTx {
		if rerr := u.slice.Rollback(); rerr != nil {
			log.Error().Err(rerr).Str("store", u.slice.Name()).Msg("rollback failed")
		}
		u.sliceTx = false
	}
	if u.curatorTx {
		if rerr := u.curator.Rollback(); rerr != nil {
			log.Error().Err(rerr).Str("store", u.curator.Name()).Msg("rollback failed")
		}
		u.curatorTx = false
	}

	log.Error().Err(err).Str("phase", string(u.state)).Msg("update stable identifiers step failed")
	u.state = StateFailed
	u.summary.State = u.state
	summary := u.summary
	return &summary, err
}
