package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
person_id: 8939149
counter: update_tracker
driver: sqlite
databases:
  slice:
    path: /data/slice_current.db
    transactional: false
  previous_slice:
    path: /data/slice_previous.db
  curator:
    path: /data/gk_central.db
log:
  level: debug
  format: json
`

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "run.yaml", validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(8939149), cfg.PersonID)
	assert.Equal(t, "update_tracker", cfg.Counter)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "/data/slice_current.db", cfg.Databases.Slice.Path)
	assert.False(t, cfg.Databases.Slice.Transactional)
	assert.Equal(t, "/data/slice_previous.db", cfg.Databases.PreviousSlice.Path)
	assert.True(t, cfg.Databases.Curator.Transactional, "default applies")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, cfg.File)
	require.NoError(t, cfg.Validate())
}

func TestLoad_LegacyProperties(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.properties", `personId=12345
slice_current.name=slice_current.db
slice_previous.name=slice_previous.db
curator.database.name=gk_central.db
release.database.host=localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(12345), cfg.PersonID)
	assert.Equal(t, "slice_current.db", cfg.Databases.Slice.Path)
	assert.Equal(t, "slice_previous.db", cfg.Databases.PreviousSlice.Path)
	assert.Equal(t, "gk_central.db", cfg.Databases.Curator.Path)
	assert.Equal(t, "modified", cfg.Counter)
	assert.Equal(t, "sqlite3", cfg.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PropertiesNewKeysWin(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "release.properties", `personId=1
person_id=7
slice_current.name=legacy.db
databases.slice.path=current.db
databases.previous_slice.path=previous.db
databases.curator.path=curator.db
databases.curator.transactional=true
counter=update_tracker
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.PersonID)
	assert.Equal(t, "current.db", cfg.Databases.Slice.Path)
	assert.Equal(t, "update_tracker", cfg.Counter)
	assert.True(t, cfg.Databases.Curator.Transactional)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_MissingPropertiesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(filepath.Join(dir, "missing.properties"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.properties")
}

func TestSetNested_LeafAndPrefixConflict(t *testing.T) {
	tree := map[string]any{}
	setNested(tree, []string{"curator"}, "gk_central")
	setNested(tree, []string{"curator", "database", "name"}, "gk.db")
	setNested(tree, []string{"slice", "name"}, "a.db")
	setNested(tree, []string{"slice"}, "b.db")

	assert.Equal(t, map[string]any{
		"curator": "gk_central",
		"slice":   map[string]any{"name": "a.db"},
	}, tree)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "run.yaml", validYAML)

	t.Setenv("STABLEIDS_PERSON_ID", "42")
	t.Setenv("STABLEIDS_DATABASES_CURATOR_PATH", "/override/gk.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.PersonID)
	assert.Equal(t, "/override/gk.db", cfg.Databases.Curator.Path)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "STABLEIDS_DATABASES_SLICE_PATH=/from/dotenv.db\n")
	path := writeFile(t, dir, "run.yaml", validYAML)
	t.Cleanup(func() { os.Unsetenv("STABLEIDS_DATABASES_SLICE_PATH") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv.db", cfg.Databases.Slice.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err, "explicit path must exist")

	cfg, err := Load("")
	require.NoError(t, err, "default path is optional")
	assert.Empty(t, cfg.File)
	assert.Error(t, cfg.Validate())
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "bad.yaml", "person_id: [unclosed\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PersonID: 1,
			Counter:  "modified",
			Driver:   "sqlite3",
			Databases: Databases{
				Slice:         Database{Path: "a.db", Transactional: true},
				PreviousSlice: Database{Path: "b.db"},
				Curator:       Database{Path: "c.db", Transactional: true},
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"person", func(c *Config) { c.PersonID = 0 }, "person_id"},
		{"counter", func(c *Config) { c.Counter = "edits" }, "unknown counter"},
		{"driver", func(c *Config) { c.Driver = "mysql" }, "driver must be"},
		{"path", func(c *Config) { c.Databases.PreviousSlice.Path = "" }, "databases.previous_slice.path is required"},
		{"curator tx", func(c *Config) { c.Databases.Curator.Transactional = false }, "cannot be disabled"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := &Config{Log: Log{Level: "warn"}}
	lc := cfg.LoggingConfig()
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "console", lc.Format)
}
