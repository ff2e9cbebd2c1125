package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/release"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	PersonID int64
	Counter  string
	Driver   string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to release.UUIDv7Generator.
	RunIDs release.RunIDGenerator

	// Clock allows overriding the audit clock (for testing).
	Clock release.Clock
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update [config-file]",
		Short: "Increment StableIdentifiers changed since the previous release",
		Long: `Compare every Event and PhysicalEntity in the release slice with the
previous release. Entities with new edits get their StableIdentifier version
incremented in both the slice and the curator database; changed Events are
marked UPDATED in the slice.

Both databases are committed at the end of the run, slice first. Any fatal
error rolls both back and exits with status 1.

Example:
  stableids update config.yaml
  stableids update --config release.properties --person-id 8939149
  stableids update --counter update_tracker --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runUpdate(opts, path, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.PersonID, "person-id", 0, "db_id of the Person edits are attributed to (overrides config)")
	cmd.Flags().StringVar(&opts.Counter, "counter", "", "change counter: modified or update_tracker (overrides config)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver: sqlite3 or sqlite (overrides config)")

	return cmd
}

func runUpdate(opts *UpdateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if path == "" {
		path = opts.Config
	}
	cfg, err := loadConfigWithOverrides(opts, path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	formatter.VerboseLog("Using config %s", cfg.File)

	counter, err := release.CounterByName(cfg.Counter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	stores, err := openStores(cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenStore, "failed to open databases", err)
	}
	defer stores.Close()

	logger := newLogger(cfg, opts.RootOptions, cmd.ErrOrStderr())

	runOpts := []release.Option{
		release.WithCounter(counter),
		release.WithLogger(&logger),
		release.WithSchema(stores.Slice.Schema()),
	}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, release.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Clock != nil {
		runOpts = append(runOpts, release.WithClock(opts.Clock))
	}
	u := release.New(stores.Slice, stores.Previous, stores.Curator, cfg.PersonID, runOpts...)

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx = logging.WithLogger(ctx, &logger)

	summary, err := u.Run(ctx)
	if err != nil {
		var rerr *release.Error
		code := ErrCodeGeneric
		if errors.As(err, &rerr) {
			code = string(rerr.Code)
		}
		if outErr := formatter.Error(code, err.Error(), summary); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "update failed", err)
	}

	return formatter.Success(summary, formatSummary(summary))
}

func loadConfigWithOverrides(opts *UpdateOptions, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.PersonID != 0 {
		cfg.PersonID = opts.PersonID
	}
	if opts.Counter != "" {
		cfg.Counter = opts.Counter
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext cancels on SIGINT or SIGTERM. A cancelled run fails and
// rolls back.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func formatSummary(s *release.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished (%s counter)\n", s.RunID, s.Counter)
	fmt.Fprintf(&b, "  checked:            %d\n", s.Checked)
	fmt.Fprintf(&b, "  incremented:        %d\n", s.Incremented)
	fmt.Fprintf(&b, "  not incremented:    %d\n", s.NotIncremented)
	fmt.Fprintf(&b, "  skipped:            %d\n", s.Skipped)
	fmt.Fprintf(&b, "  missing identifier: %d\n", s.MissingIdentifier)
	fmt.Fprintf(&b, "  marked UPDATED:     %d\n", s.Marked)
	if s.MarkFailures > 0 {
		fmt.Fprintf(&b, "  mark failures:      %d\n", s.MarkFailures)
	}
	return b.String()
}
