// Package config loads the run configuration of the release step.
//
// Values come from, in order of precedence:
//  1. Command-line flags (applied by the CLI after Load)
//  2. Environment variables prefixed STABLEIDS_ (databases.slice.path
//     becomes STABLEIDS_DATABASES_SLICE_PATH)
//  3. .env and .env.local in the working directory
//  4. The config file, YAML or Java-style .properties
//  5. Defaults
//
// Properties files written for the original release tooling are accepted:
// personId, slice_current.name, slice_previous.name and
// curator.database.name map onto the person and the three database paths.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/magiconair/properties"
	"github.com/spf13/viper"

	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/release"
	"github.com/roach88/stableids/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STABLEIDS"

// DefaultConfigFile is read when no path is given.
const DefaultConfigFile = "config.yaml"

// Store names used in logs, errors and config keys.
const (
	StoreSlice         = "slice"
	StorePreviousSlice = "previous_slice"
	StoreCurator       = "curator"
)

// Database locates one store.
type Database struct {
	Path          string `mapstructure:"path"`
	Transactional bool   `mapstructure:"transactional"`
}

// Databases holds the three stores of a run.
type Databases struct {
	Slice         Database `mapstructure:"slice"`
	PreviousSlice Database `mapstructure:"previous_slice"`
	Curator       Database `mapstructure:"curator"`
}

// Log configures the logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete run configuration.
type Config struct {
	PersonID  int64     `mapstructure:"person_id"`
	Counter   string    `mapstructure:"counter"`
	Driver    string    `mapstructure:"driver"`
	Databases Databases `mapstructure:"databases"`
	Log       Log       `mapstructure:"log"`

	// File is the config file actually read, empty if none.
	File string `mapstructure:"-"`
}

// legacyKeys maps original release properties onto config keys.
var legacyKeys = map[string]string{
	"personid":              "person_id",
	"slice_current.name":    "databases.slice.path",
	"slice_previous.name":   "databases.previous_slice.path",
	"curator.database.name": "databases.curator.path",
}

// Load reads the config file at path (DefaultConfigFile when empty) and
// applies .env files and environment overrides. A missing file is an error
// only when path was given explicitly.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{"person_id", "databases.slice.path", "databases.previous_slice.path", "databases.curator.path"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := readConfigFile(v, path); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyLegacyKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		cfg.File = path
	}
	return &cfg, nil
}

// readConfigFile reads YAML (or anything viper decodes) through viper and
// .properties files through magiconair/properties, which viper no longer
// registers by default.
func readConfigFile(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".properties") {
		return readProperties(v, path)
	}
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	return v.ReadInConfig()
}

// readProperties merges a properties file into v. Dotted keys become nested
// maps so slice_current.name is addressable like any other viper key.
func readProperties(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return err
	}

	tree := map[string]any{}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		setNested(tree, strings.Split(strings.ToLower(key), "."), value)
	}
	return v.MergeConfigMap(tree)
}

// setNested stores value under path. A key that is both a leaf and a prefix
// of another key keeps the leaf.
func setNested(tree map[string]any, path []string, value string) {
	for _, part := range path[:len(path)-1] {
		next, ok := tree[part].(map[string]any)
		if !ok {
			if _, leaf := tree[part]; leaf {
				return
			}
			next = map[string]any{}
			tree[part] = next
		}
		tree = next
	}
	last := path[len(path)-1]
	if _, nested := tree[last].(map[string]any); nested {
		return
	}
	tree[last] = value
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("counter", release.CounterModified)
	v.SetDefault("driver", store.DriverCGO)
	v.SetDefault("databases.slice.transactional", true)
	v.SetDefault("databases.curator.transactional", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// applyLegacyKeys copies properties-style keys onto their config keys unless
// the config key is already set. Viper lower-cases keys on read.
func applyLegacyKeys(v *viper.Viper) {
	for legacy, key := range legacyKeys {
		if v.IsSet(legacy) && !v.IsSet(key) {
			v.Set(key, v.Get(legacy))
		}
	}
}

// loadEnvFiles loads .env then .env.local; existing variables win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	var errs []error

	if c.PersonID <= 0 {
		errs = append(errs, fmt.Errorf("person_id must be a positive db_id"))
	}
	if _, err := release.CounterByName(c.Counter); err != nil {
		errs = append(errs, err)
	}
	switch c.Driver {
	case store.DriverCGO, store.DriverPureGo:
	default:
		errs = append(errs, fmt.Errorf("driver must be %q or %q, got %q", store.DriverCGO, store.DriverPureGo, c.Driver))
	}

	for _, db := range c.NamedDatabases() {
		if db.Database.Path == "" {
			errs = append(errs, fmt.Errorf("databases.%s.path is required", db.Name))
		}
	}
	if !c.Databases.Curator.Transactional {
		errs = append(errs, fmt.Errorf("databases.curator.transactional cannot be disabled"))
	}

	if c.Log.Format != "" && !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// NamedDatabase pairs a store name with its location.
type NamedDatabase struct {
	Name     string
	Database Database
}

// NamedDatabases returns slice, previous slice and curator in that order.
func (c *Config) NamedDatabases() []NamedDatabase {
	return []NamedDatabase{
		{StoreSlice, c.Databases.Slice},
		{StorePreviousSlice, c.Databases.PreviousSlice},
		{StoreCurator, c.Databases.Curator},
	}
}

// LoggingConfig converts the log section for logging.New.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}
