package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/release"
	"github.com/roach88/stableids/internal/store"
)

// InstanceView is one store's view of an inspected instance.
type InstanceView struct {
	Store            string `json:"store"`
	Found            bool   `json:"found"`
	Class            string `json:"class,omitempty"`
	DisplayName      string `json:"display_name,omitempty"`
	StableIdentifier string `json:"stable_identifier,omitempty"`
	ReleaseStatus    string `json:"release_status,omitempty"`
	Modified         int    `json:"modified"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <db_id>",
		Short: "Show an instance's StableIdentifier in every configured database",
		Long: `Look up one instance in the slice, the previous slice and the curator
database and print its StableIdentifier, release status and number of
modified edits side by side. Nothing is written.

Example:
  stableids inspect 1001 --config config.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dbID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || dbID <= 0 {
		return formatter.fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("invalid db_id %q", arg), err)
	}

	cfg, err := loadConfig(opts, "")
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	stores, err := openStores(cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenStore, "failed to open databases", err)
	}
	defer stores.Close()

	var views []InstanceView
	found := false
	for _, st := range []*store.Store{stores.Slice, stores.Previous, stores.Curator} {
		view, err := inspectInstance(cmd, st, dbID)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeGeneric,
				fmt.Sprintf("failed to read %s", st.Name()), err)
		}
		found = found || view.Found
		views = append(views, view)
	}
	if !found {
		return formatter.fail(ExitFailure, ErrCodeNotFound,
			fmt.Sprintf("instance %d not found in any database", dbID), nil)
	}

	return formatter.Success(views, formatViews(dbID, views))
}

func inspectInstance(cmd *cobra.Command, st *store.Store, dbID int64) (InstanceView, error) {
	view := InstanceView{Store: st.Name()}
	inst, err := st.FetchInstance(cmd.Context(), dbID)
	if err != nil {
		return view, err
	}
	if inst == nil {
		return view, nil
	}

	view.Found = true
	view.Class = inst.Class
	view.DisplayName = inst.DisplayName
	view.ReleaseStatus, _ = inst.StringValue(ir.AttrReleaseStatus)
	view.Modified = inst.Count(ir.AttrModified)

	si, err := release.LoadStableIdentifier(cmd.Context(), st, inst)
	switch {
	case err == nil:
		view.StableIdentifier = si.Label()
	case release.IsMissingIdentifier(err):
	case release.IsInvalidVersion(err):
		view.StableIdentifier = "<invalid>"
	default:
		return view, err
	}
	return view, nil
}

func formatViews(dbID int64, views []InstanceView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instance %d\n", dbID)
	for _, v := range views {
		if !v.Found {
			fmt.Fprintf(&b, "  %-15s not found\n", v.Store)
			continue
		}
		si := v.StableIdentifier
		if si == "" {
			si = "<none>"
		}
		fmt.Fprintf(&b, "  %-15s %s %q  %s  modified=%d", v.Store, v.Class, v.DisplayName, si, v.Modified)
		if v.ReleaseStatus != "" {
			fmt.Fprintf(&b, "  releaseStatus=%s", v.ReleaseStatus)
		}
		b.WriteString("\n")
	}
	return b.String()
}
