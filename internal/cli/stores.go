package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/store"
)

// runStores holds the three opened stores of a run.
type runStores struct {
	Slice    *store.Store
	Previous *store.Store
	Curator  *store.Store
}

// Close closes every opened store and returns the first error.
func (s *runStores) Close() error {
	var first error
	for _, st := range []*store.Store{s.Slice, s.Previous, s.Curator} {
		if st == nil {
			continue
		}
		if err := st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadConfig reads the config from path, falling back to the --config flag.
func loadConfig(opts *RootOptions, path string) (*config.Config, error) {
	if path == "" {
		path = opts.Config
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStores opens the slice and curator stores for writing and the previous
// slice read-only. None of the databases is created if missing.
func openStores(cfg *config.Config) (*runStores, error) {
	s := &runStores{}
	var err error

	s.Slice, err = store.Open(cfg.Databases.Slice.Path,
		store.WithName(config.StoreSlice),
		store.WithDriver(cfg.Driver),
		store.WithTransactions(cfg.Databases.Slice.Transactional),
		store.WithMustExist())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.StoreSlice, err)
	}

	s.Previous, err = store.Open(cfg.Databases.PreviousSlice.Path,
		store.WithName(config.StorePreviousSlice),
		store.WithDriver(cfg.Driver),
		store.WithReadOnly())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", config.StorePreviousSlice, err)
	}

	s.Curator, err = store.Open(cfg.Databases.Curator.Path,
		store.WithName(config.StoreCurator),
		store.WithDriver(cfg.Driver),
		store.WithTransactions(cfg.Databases.Curator.Transactional),
		store.WithMustExist())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", config.StoreCurator, err)
	}
	return s, nil
}

// newLogger builds the run logger writing to w. --verbose forces debug.
func newLogger(cfg *config.Config, opts *RootOptions, w io.Writer) zerolog.Logger {
	lc := cfg.LoggingConfig()
	lc.Output = w
	if opts.Verbose {
		lc.Level = "debug"
	}
	return logging.New(lc)
}

func (s *runStores) byName(name string) *store.Store {
	switch name {
	case config.StoreSlice:
		return s.Slice
	case config.StorePreviousSlice:
		return s.Previous
	default:
		return s.Curator
	}
}
