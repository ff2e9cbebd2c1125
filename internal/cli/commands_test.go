package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stableids/internal/release"
)

const scenarioDir = "../harness/testdata/scenarios"

// execute runs the root command and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// seedScenario seeds the named scenario into a temp dir and returns the
// generated config path.
func seedScenario(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	_, _, err := execute(t, "seed", filepath.Join(scenarioDir, name+".yaml"), "--out", dir)
	require.NoError(t, err)
	return filepath.Join(dir, "config.yaml")
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestSeed_WritesDatabasesAndConfig(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "--format", "json", "seed", filepath.Join(scenarioDir, "abc_scenario.yaml"), "--out", dir)
	require.NoError(t, err)

	var seeded SeedOutput
	resp := decodeResponse(t, out, &seeded)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "abc_scenario", seeded.Scenario)
	assert.Equal(t, 7, seeded.Instances["slice"])
	assert.Equal(t, 3, seeded.Instances["previous_slice"])
	assert.Equal(t, 5, seeded.Instances["curator"])

	for _, name := range []string{"slice.db", "previous_slice.db", "curator.db", "config.yaml"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestSeed_MissingScenario(t *testing.T) {
	out, _, err := execute(t, "seed", "does-not-exist.yaml", "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestUpdate_AppliesIncrements(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, stderr, err := execute(t, "--format", "json", "update", cfg)
	require.NoError(t, err)

	var summary release.Summary
	resp := decodeResponse(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, release.StateDone, summary.State)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Incremented)
	assert.Equal(t, 1, summary.NotIncremented)
	assert.Equal(t, 1, summary.Skipped)
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, stderr, "instance not found in curator store")

	inspectOut, _, err := execute(t, "--config", cfg, "inspect", "10")
	require.NoError(t, err)
	assert.Contains(t, inspectOut, "R-HSA-10.5")
	assert.Contains(t, inspectOut, "previous_slice")
}

func TestUpdate_TextSummary(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, _, err := execute(t, "update", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "(modified counter)")
	assert.Contains(t, out, "incremented:        1")
	assert.NotContains(t, out, "mark failures")
}

func TestUpdate_IntegrityViolationExitsWithFailure(t *testing.T) {
	cfg := seedScenario(t, "integrity_violation")

	out, _, err := execute(t, "--format", "json", "update", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, release.IsIntegrityError(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(release.ErrCodeIntegrityViolation), resp.Error.Code)

	// Nothing was committed.
	inspectOut, _, err := execute(t, "--config", cfg, "inspect", "10")
	require.NoError(t, err)
	assert.Contains(t, inspectOut, "R-HSA-10.4")
	assert.NotContains(t, inspectOut, "R-HSA-10.5")
}

func TestUpdate_CounterOverride(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, _, err := execute(t, "--format", "json", "update", cfg, "--counter", "update_tracker")
	require.NoError(t, err)

	var summary release.Summary
	decodeResponse(t, out, &summary)
	assert.Equal(t, release.CounterUpdateTracker, summary.Counter)
	assert.Equal(t, 0, summary.Incremented)
}

func TestUpdate_InvalidConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		out, _, err := execute(t, "update", filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
	})

	t.Run("bad counter", func(t *testing.T) {
		cfg := seedScenario(t, "abc_scenario")
		out, _, err := execute(t, "update", cfg, "--counter", "edits")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E002]")
	})
}

func TestUpdate_UnknownPerson(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	_, _, err := execute(t, "update", cfg, "--person-id", "4242")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, release.IsActorError(err))
}

func TestUpdate_OpenStoreFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	data := `person_id: 1
databases:
  slice: {path: ` + filepath.Join(dir, "missing", "slice.db") + `}
  previous_slice: {path: ` + filepath.Join(dir, "previous.db") + `}
  curator: {path: ` + filepath.Join(dir, "curator.db") + `, transactional: true}
`
	require.NoError(t, os.WriteFile(cfg, []byte(data), 0o644))

	out, _, err := execute(t, "update", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestUpdate_MissingDatabaseFile(t *testing.T) {
	for _, name := range []string{"slice", "previous_slice", "curator"} {
		t.Run(name, func(t *testing.T) {
			cfg := seedScenario(t, "abc_scenario")
			dir := filepath.Dir(cfg)
			data, err := os.ReadFile(cfg)
			require.NoError(t, err)

			// Point one store at a file that does not exist in the seeded directory.
			typo := filepath.Join(dir, name+"_typo.db")
			data = bytes.Replace(data, []byte(filepath.Join(dir, name+".db")), []byte(typo), 1)
			require.NoError(t, os.WriteFile(cfg, data, 0o644))

			out, _, err := execute(t, "update", cfg)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E003]")
			assert.NoFileExists(t, typo)
		})
	}
}

func TestInspect_InvalidID(t *testing.T) {
	out, _, err := execute(t, "inspect", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")
}

func TestInspect_NotFound(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, _, err := execute(t, "--config", cfg, "inspect", "777")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestInspect_JSON(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, _, err := execute(t, "--format", "json", "--config", cfg, "inspect", "30")
	require.NoError(t, err)

	var views []InstanceView
	decodeResponse(t, out, &views)
	require.Len(t, views, 3)
	assert.True(t, views[0].Found)
	assert.Equal(t, "R-HSA-30.1", views[0].StableIdentifier)
	assert.Equal(t, 1, views[0].Modified)
	assert.True(t, views[1].Found)
	assert.Empty(t, views[1].StableIdentifier)
	assert.False(t, views[2].Found)
}

func TestValidate_Valid(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")

	out, _, err := execute(t, "--format", "json", "validate", cfg)
	require.NoError(t, err)

	var result ValidationResult
	decodeResponse(t, out, &result)
	assert.True(t, result.Valid)
	require.Len(t, result.Stores, 3)
	assert.Equal(t, "Curator, A", result.Stores[0].Person)
	assert.Empty(t, result.Stores[1].Person)
	assert.Equal(t, "Curator, A", result.Stores[2].Person)
}

func TestValidate_PersonMissing(t *testing.T) {
	cfg := seedScenario(t, "abc_scenario")
	t.Setenv("STABLEIDS_PERSON_ID", "10")

	out, _, err := execute(t, "validate", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "validation failed")
}
