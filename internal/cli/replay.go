package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/serial"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Snapshot string
	From     int64
	To       int64
}

// ReplaySkipResult is a mutation that could not be re-applied.
type ReplaySkipResult struct {
	Seq   int64  `json:"seq"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ReplayResult is the output of the replay command.
type ReplayResult struct {
	Snapshot string             `json:"snapshot"`
	From     int64              `json:"from"`
	To       int64              `json:"to"`
	Applied  int                `json:"applied"`
	Skipped  []ReplaySkipResult `json:"skipped,omitempty"`
	// PassSeq is the last logged pass the state was compared against,
	// zero when the range holds no pass.
	PassSeq  int64  `json:"pass_seq"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual"`
	Match    bool   `json:"match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a logged network and verify its property state",
		Long: `Rebuild a network from a stored snapshot, re-apply the logged property
mutations and compare the resulting network hash with the hash recorded
by the last pass in range.

The log must hold a single snapshot unless --snapshot names one.
Mutations with seq in (from, to] are applied; --to defaults to the last
logged pass.

Exit codes:
  0 - Hashes match, or no pass to compare against
  1 - Hash mismatch
  2 - Command error

Examples:
  procnet replay --db ./procnet.db
  procnet replay --db ./procnet.db --snapshot 3f9a... --to 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "hash of the snapshot to start from")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "replay mutations after this seq")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "replay mutations up to this seq (default: last pass)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	st, err := opts.openStore(opts.Database)
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	var snap ir.Snapshot
	if opts.Snapshot != "" {
		if snap, err = st.ReadSnapshot(ctx, opts.Snapshot); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("snapshot %s not found", opts.Snapshot), err)
		}
	} else {
		snaps, err := st.ReadSnapshots(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read snapshots", err)
		}
		switch len(snaps) {
		case 0:
			return NewExitError(ExitCommandError, "database holds no snapshot")
		case 1:
			snap = snaps[0]
		default:
			return NewExitError(ExitCommandError, fmt.Sprintf("database holds %d snapshots; choose one with --snapshot", len(snaps)))
		}
	}

	passes, err := st.ReadPasses(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read passes", err)
	}
	to := opts.To
	if to <= 0 && len(passes) > 0 {
		to = passes[len(passes)-1].Seq
	}
	var last *ir.PassRecord
	for i := range passes {
		if passes[i].Seq > opts.From && (to <= 0 || passes[i].Seq <= to) {
			last = &passes[i]
		}
	}

	doc, err := docFromSnapshot(snap)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode snapshot", err)
	}
	s, err := opts.openSession(ctx, doc, sessionConfig{noStore: true})
	if err != nil {
		return err
	}
	defer s.Close()

	rr, err := st.ReplayMutations(ctx, s.net, opts.From, to)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	actual, err := serial.Hash(s.net)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash network", err)
	}

	result := ReplayResult{
		Snapshot: snap.Hash,
		From:     opts.From,
		To:       to,
		Applied:  rr.Applied,
		Actual:   actual,
		Match:    true,
	}
	for _, sk := range rr.Skipped {
		result.Skipped = append(result.Skipped, ReplaySkipResult{Seq: sk.Seq, Path: sk.Path, Error: sk.Err.Error()})
		s.logger.Warn("mutation skipped", "seq", sk.Seq, "path", sk.Path, "error", sk.Err)
	}
	if last != nil {
		result.PassSeq = last.Seq
		result.Expected = last.NetworkHash
		result.Match = last.NetworkHash == actual
	}

	if err := out.Success(result, func(w io.Writer) { printReplay(w, result) }); err != nil {
		return err
	}
	if !result.Match {
		return NewExitError(ExitFailure, fmt.Sprintf("network hash mismatch at seq %d", result.PassSeq))
	}
	return nil
}

func printReplay(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "Replayed %d mutations onto snapshot %s\n", r.Applied, short(r.Snapshot))
	for _, sk := range r.Skipped {
		fmt.Fprintf(w, "  skipped [%d] %s: %s\n", sk.Seq, sk.Path, sk.Error)
	}
	switch {
	case r.PassSeq == 0:
		fmt.Fprintf(w, "No pass to compare against; network hash %s\n", short(r.Actual))
	case r.Match:
		fmt.Fprintf(w, "✓ Network hash matches pass %d (%s)\n", r.PassSeq, short(r.Actual))
	default:
		fmt.Fprintf(w, "✗ Network hash differs from pass %d: logged %s, replayed %s\n",
			r.PassSeq, short(r.Expected), short(r.Actual))
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
