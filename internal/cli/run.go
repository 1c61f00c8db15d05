package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/procnet/internal/bridge"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Bridge   bool
	Addr     string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <network>",
		Short: "Start the evaluator and the property bridge",
		Long: `Start the single-writer evaluator on a network and keep it running.

Property changes are coalesced into evaluation passes. With --bridge a
WebSocket endpoint lets remote clients subscribe to and set properties;
every accepted set is evaluated like a local edit.

Example:
  procnet run ./network.yaml --db ./procnet.db
  procnet run ./network.yaml --bridge --addr 127.0.0.1:9000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluator(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.Bridge, "bridge", false, "serve the WebSocket property bridge")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "bridge listen address (default from config)")

	return cmd
}

func runEvaluator(opts *RunOptions, path string, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := LoadNetwork(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	s, err := opts.openSession(ctx, doc, sessionConfig{source: path, db: opts.Database, snapshot: path})
	if err != nil {
		return err
	}
	defer s.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engine.Run(gctx)
	})

	if opts.Bridge {
		addr := opts.Addr
		if addr == "" {
			addr = opts.Config.Bridge.Addr
		}
		srv := bridge.NewServer(s.net,
			bridge.WithLogger(s.logger),
			bridge.WithCheckOrigin(originChecker(opts.Config.Bridge.AllowedOrigins)),
		)
		defer srv.Close()
		g.Go(func() error {
			return bridge.ListenAndServe(gctx, addr, srv, s.logger)
		})
	}

	res, err := s.engine.Request(gctx)
	if err != nil {
		stop()
		_ = g.Wait()
		return WrapExitError(ExitFailure, "initial evaluation failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Evaluator started (%d processors, first pass executed %d).\n",
		len(s.net.Identifiers()), len(res.Executed))
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "evaluator error", err)
	}
	s.logger.Info("evaluator stopped gracefully", "passes", s.engine.Passes())
	return nil
}

// originChecker accepts requests without an Origin header and those from
// the configured origins. An empty list accepts any origin.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
