package cli

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Database string
	Sets     []string // path=value
	Show     []string // processor.outport
}

// EvalResult is the output of the eval command.
type EvalResult struct {
	Seq      int64          `json:"seq"`
	Token    string         `json:"token"`
	Executed []string       `json:"executed"`
	Failed   []string       `json:"failed"`
	Skipped  []string       `json:"skipped"`
	Errors   []string       `json:"errors,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <network>",
		Short: "Evaluate a network once",
		Long: `Build a network, apply property overrides and run one evaluation pass.

Overrides are given as path=value where value is JSON; anything that does
not parse as JSON is taken as a string. With --db the pass and the
overrides are appended to the event log.

Exit codes:
  0 - Every processor evaluated
  1 - One or more processors ended in error
  2 - Command error

Examples:
  procnet eval ./network.yaml --show scale.result
  procnet eval ./network.yaml --set source.value=4 --set label.text=hello
  procnet eval ./network.cue --db ./procnet.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "property override path=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Show, "show", nil, "outport to print after the pass (repeatable)")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	doc, err := LoadNetwork(path)
	if err != nil {
		_ = out.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	s, err := opts.openSession(ctx, doc, sessionConfig{source: path, db: opts.Database, snapshot: path})
	if err != nil {
		return err
	}
	defer s.Close()

	for _, set := range opts.Sets {
		if err := applySet(s, set); err != nil {
			return WrapExitError(ExitCommandError, "invalid --set", err)
		}
	}

	res, err := s.engine.Evaluate(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}
	result := evalResult(res)
	for _, p := range opts.Show {
		var v any
		if data, err := s.outport(p); err != nil {
			v = "error: " + err.Error()
		} else {
			v = describe(data)
		}
		if result.Outputs == nil {
			result.Outputs = make(map[string]any)
		}
		result.Outputs[p] = v
	}

	if err := out.Success(result, func(w io.Writer) { printEval(w, result, opts.Show) }); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d processors failed", len(result.Failed)))
	}
	return nil
}

// applySet parses "path=value" and assigns the value.
func applySet(s *session, set string) error {
	path, raw, ok := strings.Cut(set, "=")
	if !ok || path == "" {
		return fmt.Errorf("%q: want path=value", set)
	}
	prop, err := s.net.Property(path)
	if err != nil {
		return err
	}
	return prop.SetValue(parseValue(raw))
}

// parseValue reads raw as JSON, falling back to a plain string.
func parseValue(raw string) ir.Value {
	if v, err := ir.UnmarshalValue([]byte(raw)); err == nil {
		return v
	}
	return ir.String(raw)
}

func evalResult(res engine.PassResult) EvalResult {
	r := EvalResult{
		Seq:      res.Seq,
		Token:    res.Token,
		Executed: nonNil(res.Executed),
		Failed:   nonNil(res.Failed),
		Skipped:  nonNil(res.Skipped),
	}
	for _, e := range res.Errors {
		r.Errors = append(r.Errors, e.Error())
	}
	return r
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// describe renders port data for output. Images are summarized by size.
func describe(data any) any {
	switch v := data.(type) {
	case image.Image:
		b := v.Bounds()
		return fmt.Sprintf("image %dx%d", b.Dx(), b.Dy())
	case nil:
		return nil
	}
	if v, err := ir.FromAny(data); err == nil {
		return ir.ToAny(v)
	}
	return fmt.Sprintf("%T", data)
}

func printEval(w io.Writer, r EvalResult, show []string) {
	if r.Seq == 0 {
		fmt.Fprintln(w, "Nothing to evaluate.")
		return
	}
	fmt.Fprintf(w, "Pass %d (%s)\n", r.Seq, r.Token)
	fmt.Fprintf(w, "  executed: %s\n", strings.Join(r.Executed, ", "))
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "  failed:   %s\n", strings.Join(r.Failed, ", "))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "  skipped:  %s\n", strings.Join(r.Skipped, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	for _, p := range show {
		fmt.Fprintf(w, "%s = %v\n", p, r.Outputs[p])
	}
}
