package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/store"
)

// SeedResult lists the seeded database files.
type SeedResult struct {
	Paths     map[string]string // store name -> database path
	Instances map[string]int    // store name -> seeded instance count
}

// Seed writes the three stores into dir as <store>.db, one SQLite file each.
// Existing files are extended, so seeding twice fails on duplicate db_ids.
func Seed(ctx context.Context, stores Stores, dir, driver string) (*SeedResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create seed directory: %w", err)
	}

	res := &SeedResult{Paths: map[string]string{}, Instances: map[string]int{}}
	fixtures := stores.byName()
	for _, name := range storeNames {
		path := filepath.Join(dir, name+".db")
		n, err := seedStore(ctx, path, name, driver, fixtures[name])
		if err != nil {
			return nil, err
		}
		res.Paths[name] = path
		res.Instances[name] = n
	}
	return res, nil
}

func seedStore(ctx context.Context, path, name, driver string, fixture StoreFixture) (int, error) {
	st, err := store.Open(path, store.WithName(name), store.WithDriver(driver), store.WithTransactions(true))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, err)
	}
	defer st.Close()

	if err := st.BeginTransaction(ctx); err != nil {
		return 0, fmt.Errorf("seed %s: %w", name, err)
	}
	for _, f := range fixture.Instances {
		inst, err := f.Instance()
		if err != nil {
			st.Rollback()
			return 0, fmt.Errorf("seed %s: %w", name, err)
		}
		if _, err := st.StoreInstance(ctx, inst); err != nil {
			st.Rollback()
			return 0, fmt.Errorf("seed %s: %w", name, err)
		}
	}
	if err := st.Commit(); err != nil {
		return 0, fmt.Errorf("seed %s: %w", name, err)
	}
	return len(fixture.Instances), nil
}

// seedConfig is the config file written next to seeded databases.
type seedConfig struct {
	PersonID  int64                      `yaml:"person_id"`
	Counter   string                     `yaml:"counter,omitempty"`
	Driver    string                     `yaml:"driver"`
	Databases map[string]seedConfigStore `yaml:"databases"`
}

type seedConfigStore struct {
	Path          string `yaml:"path"`
	Transactional bool   `yaml:"transactional"`
}

// WriteConfig writes a config file that points a run at seeded databases.
func WriteConfig(path string, scenario *Scenario, res *SeedResult, driver string) error {
	fixtures := scenario.Stores.byName()
	cfg := seedConfig{
		PersonID:  scenario.PersonID,
		Counter:   scenario.Counter,
		Driver:    driver,
		Databases: map[string]seedConfigStore{},
	}
	for _, name := range storeNames {
		abs, err := filepath.Abs(res.Paths[name])
		if err != nil {
			return fmt.Errorf("resolve %s path: %w", name, err)
		}
		cfg.Databases[name] = seedConfigStore{
			Path:          abs,
			Transactional: name != config.StorePreviousSlice && fixtures[name].transactional(),
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
