package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/processors"
	"github.com/roach88/procnet/internal/property"
	"github.com/roach88/procnet/internal/serial"
	"github.com/roach88/procnet/internal/store"
	"github.com/roach88/procnet/internal/testutil"
)

// Harness holds the live objects of one scenario run.
type Harness struct {
	net    *network.Network
	engine *engine.Engine
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	registry *processor.Registry
	logger   *slog.Logger
	workers  int

	// suite only
	goldenDir string
	update    bool
	filter    string
}

// WithRegistry replaces the built-in processor classes.
func WithRegistry(reg *processor.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger sets the logger handed to the engine and processors.
// Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWorkers evaluates independent processors in parallel.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithGolden makes RunSuite compare each passing scenario's trace with
// dir/{name}.golden. With update the files are rewritten instead.
func WithGolden(dir string, update bool) Option {
	return func(o *options) { o.goldenDir, o.update = dir, update }
}

// WithFilter makes RunSuite skip scenario files whose base name does not
// contain substr.
func WithFilter(substr string) Option {
	return func(o *options) { o.filter = substr }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store with a fixed pass
// token. Setup steps must succeed; flow expectations and assertions that
// do not hold are collected in Result.Errors. The returned error is
// reserved for scenarios that cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		reg, err := processors.NewRegistry()
		if err != nil {
			return nil, err
		}
		o.registry = reg
	}

	doc := scenario.Network
	if doc == nil {
		var err error
		if doc, err = serial.ReadFile(scenario.NetworkFile); err != nil {
			return nil, fmt.Errorf("failed to read network: %w", err)
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	resources := env.MapResolver{}
	for name, content := range scenario.Resources {
		resources[name] = []byte(content)
	}
	nc := env.New(env.WithResources(resources), env.WithLogger(o.logger))

	net, err := serial.Build(doc, o.registry, nc)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithStore(st),
		engine.WithTokens(testutil.NewFixedTokens(scenario.Token)),
		engine.WithLogger(o.logger),
	}
	if o.workers > 1 {
		engOpts = append(engOpts, engine.WithParallel(o.workers))
	}
	eng := engine.New(net, engOpts...)
	defer eng.Close()

	h := &Harness{net: net, engine: eng, logger: o.logger}
	result := NewResult()

	for i, step := range scenario.Setup {
		res, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step, err)
		}
		if !res.OK() {
			return nil, fmt.Errorf("setup[%d] %s: processors failed: %v", i, step, res.Failed)
		}
	}

	for i, step := range scenario.Flow {
		res, err := h.execute(ctx, step)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step, err))
			continue
		}
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, res) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step, msg))
			}
		}
	}

	if result.Trace, err = ReadTrace(ctx, st, ""); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.State = h.state()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Network: net}) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) (engine.PassResult, error) {
	switch step.Kind() {
	case "set":
		prop, err := h.net.Property(step.Set)
		if err != nil {
			return engine.PassResult{}, err
		}
		v, err := ir.FromAny(step.Value)
		if err != nil {
			return engine.PassResult{}, err
		}
		return engine.PassResult{}, prop.SetValue(v)
	case "press":
		prop, err := h.net.Property(step.Press)
		if err != nil {
			return engine.PassResult{}, err
		}
		button, ok := prop.(*property.Button)
		if !ok {
			return engine.PassResult{}, fmt.Errorf("%s is not a button", step.Press)
		}
		button.Press()
		return engine.PassResult{}, nil
	case "connect":
		from, to, _ := splitEdge(step.Connect)
		return engine.PassResult{}, h.net.ConnectPaths(from, to)
	case "disconnect":
		from, to, _ := splitEdge(step.Disconnect)
		return engine.PassResult{}, h.net.DisconnectPaths(from, to)
	case "evaluate":
		res, err := h.engine.Evaluate(ctx)
		if err == nil {
			h.logger.Debug("pass", "seq", res.Seq, "executed", res.Executed, "failed", res.Failed)
		}
		return res, err
	}
	return engine.PassResult{}, fmt.Errorf("empty step")
}

func checkExpect(want *ExpectClause, got engine.PassResult) []string {
	var msgs []string
	compare := func(name string, want, got []string) {
		if want != nil && !slices.Equal(want, got) {
			msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", name, want, got))
		}
	}
	compare("executed", want.Executed, got.Executed)
	compare("failed", want.Failed, got.Failed)
	compare("skipped", want.Skipped, got.Skipped)

	for _, id := range slices.Sorted(maps.Keys(want.Errors)) {
		idx := slices.IndexFunc(got.Errors, func(e *engine.EvalError) bool { return e.Processor == id })
		switch {
		case idx < 0:
			msgs = append(msgs, fmt.Sprintf("errors: no error for %s", id))
		case !strings.Contains(got.Errors[idx].Error(), want.Errors[id]):
			msgs = append(msgs, fmt.Sprintf("errors: %s: %q does not contain %q", id, got.Errors[idx].Error(), want.Errors[id]))
		}
	}
	return msgs
}

// ReadTrace reads the event log back from st. Passes and mutations
// interleave by seq; each pass is followed by its runs. A non-empty token
// keeps only the passes of that evaluator session.
func ReadTrace(ctx context.Context, st *store.Store, token string) ([]TraceEvent, error) {
	var (
		passes []ir.PassRecord
		err    error
	)
	if token != "" {
		passes, err = st.ReadPassesForToken(ctx, token)
	} else {
		passes, err = st.ReadPasses(ctx)
	}
	if err != nil {
		return nil, err
	}
	mutations, err := st.ReadMutations(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	trace := []TraceEvent{}
	mi := 0
	flushMutations := func(before int64) {
		for ; mi < len(mutations) && mutations[mi].Seq < before; mi++ {
			m := mutations[mi]
			trace = append(trace, TraceEvent{Type: EventMutation, Seq: m.Seq, Path: m.Path, Value: m.Value})
		}
	}
	for _, p := range passes {
		flushMutations(p.Seq)
		trace = append(trace, TraceEvent{
			Type:     EventPass,
			Seq:      p.Seq,
			Executed: p.Executed,
			Failed:   p.Failed,
			Skipped:  p.Skipped,
		})
		runs, err := st.ReadProcessorRuns(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range runs {
			trace = append(trace, TraceEvent{
				Type:        EventRun,
				Seq:         r.Seq,
				Processor:   r.Processor,
				Outcome:     r.Outcome,
				Initialized: r.Initialized,
				Error:       r.Error,
			})
		}
	}
	flushMutations(1<<63 - 1)
	return trace, nil
}

// state flattens every leaf property of the network by path.
func (h *Harness) state() ir.Object {
	state := ir.Object{}
	for _, p := range h.net.Processors() {
		p.Core().Walk(func(prop property.Property) {
			if _, composite := prop.(*property.Composite); composite {
				return
			}
			if _, button := prop.(*property.Button); button {
				return
			}
			state[prop.Path()] = prop.Value()
		})
	}
	return state
}
