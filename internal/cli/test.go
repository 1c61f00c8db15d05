package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string
	Update bool
	Filter string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenario files against their networks",
		Long: `Run one scenario file or every .yaml scenario in a directory.

Each scenario builds its network in a fresh in-memory store, runs its
setup and flow steps and checks its assertions. With --golden the trace
of every passing scenario is compared with {dir}/{name}.golden; --update
rewrites those files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error

Examples:
  procnet test ./scenarios
  procnet test ./scenarios --golden ./scenarios/golden --update
  procnet test ./scenarios --filter selector`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only scenario files whose name contains this")

	return cmd
}

func runTest(opts *TestOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	hopts := []harness.Option{harness.WithFilter(opts.Filter)}
	if opts.Verbose && opts.Logger != nil {
		hopts = append(hopts, harness.WithLogger(opts.Logger))
	}
	if opts.Config.Engine.Workers > 1 {
		hopts = append(hopts, harness.WithWorkers(opts.Config.Engine.Workers))
	}
	if opts.Golden != "" {
		hopts = append(hopts, harness.WithGolden(opts.Golden, opts.Update))
	}

	result, err := harness.RunSuite(cmd.Context(), path, hopts...)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			_ = out.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "scenarios not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if err := out.Success(result, func(w io.Writer) { printSuite(w, result) }); err != nil {
		return err
	}
	if !result.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func printSuite(w io.Writer, r *harness.SuiteResult) {
	for _, f := range r.Failures {
		name := f.Scenario
		if name == "" {
			name = f.Path
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	for _, u := range r.Updated {
		fmt.Fprintf(w, "updated %s\n", u)
	}
	fmt.Fprintf(w, "%d scenarios: %d passed, %d failed", r.Total, r.Passed, r.Failed)
	if r.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", r.Skipped)
	}
	fmt.Fprintln(w)
}
