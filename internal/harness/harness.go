package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/release"
	"github.com/roach88/stableids/internal/store"
	"github.com/roach88/stableids/internal/testutil"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Summary is the run summary, partial when the run failed.
	Summary *release.Summary

	// Err is the error the run returned, nil on success.
	Err error

	// Final maps store name to every instance the store holds after the
	// run, ordered by db_id.
	Final map[string][]*ir.Instance

	// Log holds the run's JSON log lines.
	Log *bytes.Buffer
}

// ErrorCode returns the release error code of Err, or "" when the run
// succeeded or failed with a non-release error.
func (r *Result) ErrorCode() string {
	var rerr *release.Error
	if errors.As(r.Err, &rerr) {
		return string(rerr.Code)
	}
	return ""
}

// Instance returns the final state of an instance, nil if absent.
func (r *Result) Instance(storeName string, dbID int64) *ir.Instance {
	for _, inst := range r.Final[storeName] {
		if inst.DBID == dbID {
			return inst
		}
	}
	return nil
}

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	driver string
}

// WithDriver selects the SQLite driver the stores are opened with.
func WithDriver(driver string) Option {
	return func(o *runOptions) { o.driver = driver }
}

// Run seeds the scenario's stores under dir, runs the release step and
// captures the final state.
//
// Every run uses a fixed clock and run id so identical scenarios produce
// identical results. The returned error is about the harness itself; the
// release step's own error is in Result.Err.
func Run(ctx context.Context, scenario *Scenario, dir string, opts ...Option) (*Result, error) {
	o := runOptions{driver: store.DriverCGO}
	for _, opt := range opts {
		opt(&o)
	}

	seeded, err := Seed(ctx, scenario.Stores, dir, o.driver)
	if err != nil {
		return nil, err
	}

	slice, err := store.Open(seeded.Paths[config.StoreSlice],
		store.WithName(config.StoreSlice),
		store.WithDriver(o.driver),
		store.WithTransactions(scenario.Stores.Slice.transactional()))
	if err != nil {
		return nil, fmt.Errorf("open slice: %w", err)
	}
	defer slice.Close()

	previous, err := store.Open(seeded.Paths[config.StorePreviousSlice],
		store.WithName(config.StorePreviousSlice),
		store.WithDriver(o.driver),
		store.WithReadOnly())
	if err != nil {
		return nil, fmt.Errorf("open previous slice: %w", err)
	}
	defer previous.Close()

	curator, err := store.Open(seeded.Paths[config.StoreCurator],
		store.WithName(config.StoreCurator),
		store.WithDriver(o.driver),
		store.WithTransactions(scenario.Stores.Curator.transactional()))
	if err != nil {
		return nil, fmt.Errorf("open curator: %w", err)
	}
	defer curator.Close()

	counter, err := release.CounterByName(scenario.Counter)
	if err != nil {
		return nil, err
	}

	now := testutil.DefaultTime
	if scenario.Now != "" {
		// Format checked by validateScenario.
		now, _ = time.Parse(time.RFC3339, scenario.Now)
	}

	logBuf := &bytes.Buffer{}
	logger := zerolog.New(logBuf).Level(zerolog.DebugLevel)

	u := release.New(slice, previous, curator, scenario.PersonID,
		release.WithCounter(counter),
		release.WithClock(testutil.NewFixedClock(now)),
		release.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		release.WithLogger(&logger),
		release.WithSchema(slice.Schema()),
	)
	summary, runErr := u.Run(ctx)

	result := &Result{
		Summary: summary,
		Err:     runErr,
		Final:   make(map[string][]*ir.Instance),
		Log:     logBuf,
	}
	for name, st := range map[string]*store.Store{
		config.StoreSlice:         slice,
		config.StorePreviousSlice: previous,
		config.StoreCurator:       curator,
	} {
		insts, err := st.FetchInstancesByClass(ctx, ir.ClassDatabaseObject)
		if err != nil {
			return nil, fmt.Errorf("read final %s state: %w", name, err)
		}
		result.Final[name] = insts
	}
	return result, nil
}
