package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/harness"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/queryir"
	"github.com/roach88/procnet/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Token     string
	Processor string
	Where     []string
}

// TraceResult is the output of the trace command.
type TraceResult struct {
	Events []harness.TraceEvent `json:"events,omitempty"`
	Runs   []ir.ProcessorRun    `json:"runs,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the event log of a database",
		Long: `Print logged passes, processor runs and property mutations in seq order.

With --processor or --where only matching processor runs are listed.
--where takes "column op value" over the run columns pass_id, seq,
processor, outcome, initialized and error, with op one of = != < <= > >=.
With --token only the passes of one evaluator session are shown;
mutations carry no token and are always included.

Examples:
  procnet trace --db ./procnet.db
  procnet trace --db ./procnet.db --processor scale
  procnet trace --db ./procnet.db --where outcome=error --where "seq>=10"
  procnet trace --db ./procnet.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "only passes of this session token")
	cmd.Flags().StringVar(&opts.Processor, "processor", "", "only runs of this processor")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "run filter column op value (repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	st, err := opts.openStore(opts.Database)
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	var result TraceResult
	if opts.Processor != "" || len(opts.Where) > 0 {
		var preds []queryir.Predicate
		if opts.Processor != "" {
			preds = append(preds, &queryir.Equals{Field: "processor", Value: ir.String(opts.Processor)})
		}
		for _, w := range opts.Where {
			p, err := queryir.ParsePredicate(w)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --where", err)
			}
			preds = append(preds, p)
		}
		runs, err := st.QueryRuns(ctx, queryir.AllOf(preds...), opts.Token)
		if err != nil {
			if errors.Is(err, queryir.ErrInvalidQuery) {
				return WrapExitError(ExitCommandError, "invalid --where", err)
			}
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		result.Runs = runs
		return out.Success(result, func(w io.Writer) { printRuns(w, runs) })
	}

	events, err := harness.ReadTrace(ctx, st, opts.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	result.Events = events
	return out.Success(result, func(w io.Writer) { printTrace(w, events) })
}

// openStore opens an existing database given by flag or config.
func (o *RootOptions) openStore(path string) (*store.Store, error) {
	if path == "" {
		path = o.Config.Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func printTrace(w io.Writer, events []harness.TraceEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "Event log is empty")
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case harness.EventMutation:
			v := "null"
			if ev.Value != nil {
				if data, err := ir.MarshalCanonical(ev.Value); err == nil {
					v = string(data)
				}
			}
			fmt.Fprintf(w, "[%d] set %s = %s\n", ev.Seq, ev.Path, v)
		case harness.EventPass:
			fmt.Fprintf(w, "[%d] pass executed=%d failed=%d skipped=%d\n",
				ev.Seq, len(ev.Executed), len(ev.Failed), len(ev.Skipped))
		case harness.EventRun:
			fmt.Fprintf(w, "      %-16s %s", ev.Processor, ev.Outcome)
			if ev.Initialized {
				fmt.Fprint(w, " (initialized)")
			}
			if ev.Error != "" {
				fmt.Fprintf(w, ": %s", ev.Error)
			}
			fmt.Fprintln(w)
		}
	}
}

func printRuns(w io.Writer, runs []ir.ProcessorRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No matching runs")
		return
	}
	fmt.Fprintf(w, "%d runs\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  [%d] %-16s %s", r.Seq, r.Processor, r.Outcome)
		if r.Error != "" {
			fmt.Fprintf(w, ": %s", r.Error)
		}
		fmt.Fprintln(w)
	}
}
