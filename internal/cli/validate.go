package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/store"
)

// StoreCheck reports on one configured database.
type StoreCheck struct {
	Store     string `json:"store"`
	Path      string `json:"path"`
	Instances int    `json:"instances"`
	Person    string `json:"person,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Config string       `json:"config,omitempty"`
	Stores []StoreCheck `json:"stores"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Check a config and its databases without running an update",
		Long: `Load and validate the configuration, open all three databases and
resolve the configured Person in the slice and the curator database.
Nothing is written.

Example:
  stableids validate config.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts, path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	formatter.VerboseLog("Using config %s", cfg.File)

	stores, err := openStores(cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenStore, "failed to open databases", err)
	}
	defer stores.Close()

	result := ValidationResult{Valid: true, Config: cfg.File}
	ctx := cmd.Context()
	for _, db := range cfg.NamedDatabases() {
		st := stores.byName(db.Name)
		check := StoreCheck{Store: db.Name, Path: db.Database.Path}

		n, err := st.CountInstances(ctx)
		if err != nil {
			check.Error = err.Error()
			result.Valid = false
			result.Stores = append(result.Stores, check)
			continue
		}
		check.Instances = n

		// The previous slice is never written, so it needs no Person.
		if db.Name != config.StorePreviousSlice {
			person, err := resolvePerson(ctx, st, cfg.PersonID)
			if err != nil {
				check.Error = err.Error()
				result.Valid = false
			} else {
				check.Person = person.DisplayName
			}
		}
		result.Stores = append(result.Stores, check)
	}

	if !result.Valid {
		if err := formatter.Error(ErrCodeConfig, "validation failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(result, formatValidation(result))
}

func resolvePerson(ctx context.Context, st *store.Store, personID int64) (*ir.Instance, error) {
	person, err := st.FetchInstance(ctx, personID)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, fmt.Errorf("person %d not found", personID)
	}
	if !st.Schema().IsA(person.Class, ir.ClassPerson) {
		return nil, fmt.Errorf("instance %d is a %s, not a Person", personID, person.Class)
	}
	return person, nil
}

func formatValidation(r ValidationResult) string {
	var b strings.Builder
	for _, s := range r.Stores {
		fmt.Fprintf(&b, "  %-15s %d instance(s)", s.Store, s.Instances)
		if s.Person != "" {
			fmt.Fprintf(&b, "  person: %s", s.Person)
		}
		b.WriteString("\n")
	}
	b.WriteString("Configuration is valid\n")
	return b.String()
}
