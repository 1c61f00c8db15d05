package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/export"
	"github.com/roach88/procnet/internal/processors"
)

// ValidateResult is the output of the validate command.
type ValidateResult struct {
	Valid       bool                       `json:"valid"`
	Processors  int                        `json:"processors"`
	Connections int                        `json:"connections"`
	Links       int                        `json:"links"`
	Errors      []compiler.ValidationError `json:"errors"`
	// Notes are non-fatal findings such as property link cycles.
	Notes []compiler.CycleWarning `json:"notes,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <network>",
		Short: "Check a network without evaluating it",
		Long: `Check a network document for structural problems.

The network may be a YAML or JSON document, a .cue file or a directory of
CUE files. Every problem is reported, not just the first: unknown classes,
duplicate identifiers, malformed port and property paths, dangling
references and connection cycles. Property link cycles are reported as
notes since links settle once values agree.

Examples:
  procnet validate ./network.yaml
  procnet validate ./networks/demo --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	doc, err := LoadNetwork(path)
	if err != nil {
		_ = out.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	reg, err := processors.NewRegistry()
	if err != nil {
		return err
	}

	result := ValidateResult{
		Processors:  len(doc.Processors),
		Connections: len(doc.Connections),
		Links:       len(doc.Links),
		Errors:      compiler.Validate(doc, reg),
	}
	if len(result.Errors) == 0 {
		nc := env.New(env.WithWriters(export.NewFactory()), env.WithLogger(opts.Logger))
		result.Errors = compiler.CheckWriters(doc, reg, nc)
	}
	if result.Errors == nil {
		result.Errors = []compiler.ValidationError{}
	}
	for _, w := range compiler.AnalyzeCycles(doc) {
		if w.Level == compiler.LevelInfo {
			result.Notes = append(result.Notes, w)
		}
	}
	result.Valid = len(result.Errors) == 0
	out.VerboseLog("validated %s: %d processors, %d connections, %d links",
		path, result.Processors, result.Connections, result.Links)

	if err := out.Success(result, func(w io.Writer) { printValidate(w, path, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation errors", len(result.Errors)))
	}
	return nil
}

func printValidate(w io.Writer, path string, r ValidateResult) {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "✗ %s\n", e.Error())
	}
	for _, n := range r.Notes {
		fmt.Fprintf(w, "  note: %s\n", n.Message)
	}
	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid (%d processors, %d connections, %d links)\n",
			path, r.Processors, r.Connections, r.Links)
	}
}
