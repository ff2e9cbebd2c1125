package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/harness"
	"github.com/roach88/stableids/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Out    string
	Driver string
}

// SeedOutput is the JSON payload of a successful seed.
type SeedOutput struct {
	Scenario  string            `json:"scenario"`
	Config    string            `json:"config"`
	Databases map[string]string `json:"databases"`
	Instances map[string]int    `json:"instances"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <scenario.yaml>",
		Short: "Create slice, previous slice and curator databases from a scenario",
		Long: `Write the three databases described by a scenario file into the output
directory, together with a config.yaml that points update at them.

Example:
  stableids seed testdata/scenarios/abc_scenario.yaml --out /tmp/run
  stableids update /tmp/run/config.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.Driver, "driver", store.DriverCGO, "database driver: sqlite3 or sqlite")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %q from %s", scenario.Name, path)

	res, err := harness.Seed(cmd.Context(), scenario.Stores, opts.Out, opts.Driver)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSeed, "failed to seed databases", err)
	}

	cfgPath := filepath.Join(opts.Out, config.DefaultConfigFile)
	if err := harness.WriteConfig(cfgPath, scenario, res, opts.Driver); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSeed, "failed to write config", err)
	}

	out := SeedOutput{
		Scenario:  scenario.Name,
		Config:    cfgPath,
		Databases: res.Paths,
		Instances: res.Instances,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Seeded scenario %q\n", scenario.Name)
	for _, db := range []string{config.StoreSlice, config.StorePreviousSlice, config.StoreCurator} {
		fmt.Fprintf(&b, "  %-15s %d instance(s)  %s\n", db, res.Instances[db], res.Paths[db])
	}
	fmt.Fprintf(&b, "Config written to %s\n", cfgPath)

	return formatter.Success(out, b.String())
}
