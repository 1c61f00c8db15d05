package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
	"github.com/roach88/procnet/internal/serial"
	"github.com/roach88/procnet/internal/store"
)

var (
	// ErrLocked is returned by Evaluate while the network is locked. The
	// pending work runs on the first pass after the outermost Unlock.
	ErrLocked = errors.New("network is locked")

	// ErrStopped is returned by Request after Stop.
	ErrStopped = errors.New("evaluator stopped")
)

// DefaultMaxEventsPerPass bounds how many events the Run loop coalesces
// before it evaluates.
const DefaultMaxEventsPerPass = 1000

// PassResult summarizes one evaluation pass. Processor lists are in the
// order the pass scheduled them.
type PassResult struct {
	ID       string
	Token    string
	Seq      int64
	Executed []string
	Failed   []string
	Skipped  []string
	Errors   []*EvalError
	Duration time.Duration
}

// Empty reports whether the pass found nothing to do.
func (r PassResult) Empty() bool { return r.Seq == 0 }

// OK reports whether no processor ended the pass in Error.
func (r PassResult) OK() bool { return len(r.Failed) == 0 }

// Engine evaluates a processor network.
//
// Property changes, invalidations and structural changes arrive as events
// from any goroutine. A pass computes the forward closure of every invalid
// processor, orders it topologically, and runs each processor once. A
// failing processor is contained: it and everything downstream of it end
// in Error while independent parts of the network evaluate normally.
//
// Thread-safety model:
//   - Enqueue, Request: safe from any goroutine
//   - Run: at most one goroutine
//   - Evaluate: only when no Run loop is active
type Engine struct {
	net      *network.Network
	store    *store.Store
	clock    *Clock
	tokens   TokenGenerator
	queue    *eventQueue
	reporter ErrorReporter
	logger   *slog.Logger

	parallel   bool
	maxWorkers int
	maxEvents  int

	evaluating atomic.Bool
	dirty      atomic.Bool

	// contextMu serializes processors that share a render context.
	contextMu sync.Mutex

	mu       sync.Mutex
	watches  map[string][]watch
	observer *network.ObserverFuncs
	passes   int
	last     PassResult
}

type watch struct {
	prop property.Property
	cb   *property.Callback
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records passes and property mutations.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithClock resumes from an existing clock, e.g. after replaying a log.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTokens sets the pass token generator (default UUIDv7Generator).
func WithTokens(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithReporter sets the error reporter (default LogReporter).
func WithReporter(r ErrorReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithParallel runs independent processors of one topological level
// concurrently on up to workers goroutines. Processors whose Info declares
// SharedContext still run one at a time.
func WithParallel(workers int) Option {
	return func(e *Engine) {
		e.parallel = workers > 1
		e.maxWorkers = workers
	}
}

// WithMaxEventsPerPass sets how many events Run coalesces before a pass.
// Zero disables the bound.
func WithMaxEventsPerPass(n int) Option {
	return func(e *Engine) { e.maxEvents = n }
}

// New attaches an evaluator to net. Processors already in the network are
// watched immediately; processors added later are picked up through the
// network observer.
func New(net *network.Network, opts ...Option) *Engine {
	e := &Engine{
		net:        net,
		clock:      NewClock(),
		tokens:     UUIDv7Generator{},
		queue:      newEventQueue(),
		logger:     slog.Default(),
		maxWorkers: 1,
		maxEvents:  DefaultMaxEventsPerPass,
		watches:    make(map[string][]watch),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reporter == nil {
		e.reporter = LogReporter{Logger: e.logger}
	}

	e.observer = &network.ObserverFuncs{
		ProcessorAdded: func(p processor.Processor) {
			e.watch(p)
			e.queue.Enqueue(Event{Type: EventNetworkChanged, Processor: p.Identifier()})
		},
		WillRemoveProcessor: func(p processor.Processor) {
			e.unwatch(p.Identifier())
			e.queue.Enqueue(Event{Type: EventNetworkChanged, Processor: p.Identifier()})
		},
		ConnectionAdded: func(c network.Connection) {
			e.queue.Enqueue(Event{Type: EventNetworkChanged, Processor: c.To()})
		},
		ConnectionRemoved: func(c network.Connection) {
			e.queue.Enqueue(Event{Type: EventNetworkChanged, Processor: c.To()})
		},
	}
	net.AddObserver(e.observer)
	net.SetInvalidationListener(e.invalidated)
	net.OnUnlocked(func() {
		e.queue.Enqueue(Event{Type: EventNetworkChanged})
	})
	for _, p := range net.Processors() {
		e.watch(p)
		if p.Core().Pending() != property.Valid {
			e.dirty.Store(true)
		}
	}
	return e
}

// Close detaches the evaluator from its network and stops the Run loop.
func (e *Engine) Close() {
	e.net.RemoveObserver(e.observer)
	e.net.SetInvalidationListener(nil)
	for _, id := range e.net.Identifiers() {
		e.unwatch(id)
	}
	e.queue.Close()
}

func (e *Engine) invalidated(p processor.Processor, level property.InvalidationLevel) {
	t := EventPropertyChanged
	if level >= property.InvalidResources {
		t = EventResourcesInvalidated
	}
	e.queue.Enqueue(Event{Type: t, Processor: p.Identifier(), Level: level})
}

// watch records every leaf property change of p as a mutation event.
func (e *Engine) watch(p processor.Processor) {
	id := p.Identifier()
	var ws []watch
	p.Core().Walk(func(prop property.Property) {
		if _, composite := prop.(*property.Composite); composite {
			return
		}
		cb := property.OnChange(func(changed property.Property) {
			e.queue.Enqueue(Event{
				Type:      EventPropertyChanged,
				Processor: id,
				Level:     changed.InvalidationLevel(),
				Path:      changed.Path(),
				Value:     changed.Value(),
			})
		})
		prop.AddObserver(cb)
		ws = append(ws, watch{prop: prop, cb: cb})
	})
	e.mu.Lock()
	e.watches[id] = ws
	e.mu.Unlock()
}

func (e *Engine) unwatch(id string) {
	e.mu.Lock()
	ws := e.watches[id]
	delete(e.watches, id)
	e.mu.Unlock()
	for _, w := range ws {
		w.prop.RemoveObserver(w.cb)
	}
}

// Enqueue submits an event. It returns false after Stop.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Request asks the Run loop for a pass and waits for its result.
func (e *Engine) Request(ctx context.Context) (PassResult, error) {
	reply := make(chan PassReply, 1)
	if !e.queue.Enqueue(Event{Type: EventEvaluate, Reply: reply}) {
		return PassResult{}, ErrStopped
	}
	select {
	case r := <-reply:
		return r.Result, r.Err
	case <-ctx.Done():
		return PassResult{}, ctx.Err()
	}
}

// Run is the single-writer event loop. It blocks until ctx is cancelled or
// Stop is called.
//
// Events are coalesced: a pass runs when the queue drains, when the event
// budget is spent, or when an EventEvaluate arrives. Failures inside a pass
// are reported and never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("evaluator starting", "processors", len(e.net.Identifiers()))
	quota := newEventQuota(e.maxEvents)

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			e.handle(ctx, ev)
			if ev.Type == EventEvaluate {
				quota.Reset()
			} else if quota.Take() {
				e.flush(ctx)
				quota.Reset()
			}
			continue
		}

		e.flush(ctx)
		quota.Reset()

		select {
		case <-ctx.Done():
			e.logger.Info("evaluator stopping", "reason", "context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// Wait is closed by Stop; drain what is left, then exit.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("evaluator stopping", "reason", "queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue; Run returns once it is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) flush(ctx context.Context) {
	if !e.dirty.Load() || e.net.IsLocked() {
		return
	}
	if _, err := e.pass(ctx); err != nil && !errors.Is(err, ErrLocked) {
		e.logger.Error("evaluation pass failed", "error", err)
	}
}

// handle applies one event. Called from Run or Evaluate, never both.
func (e *Engine) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventPropertyChanged:
		e.dirty.Store(true)
		if ev.Path != "" {
			e.recordMutation(ctx, ev)
		}
	case EventResourcesInvalidated, EventNetworkChanged:
		e.dirty.Store(true)
	case EventEvaluate:
		res, err := e.pass(ctx)
		if ev.Reply != nil {
			ev.Reply <- PassReply{Result: res, Err: err}
		}
	default:
		e.logger.Error("unknown event", "type", int(ev.Type))
	}
}

func (e *Engine) recordMutation(ctx context.Context, ev Event) {
	m := ir.Mutation{Seq: e.clock.Next(), Path: ev.Path, Value: ev.Value}
	e.logger.Debug("property changed", "path", m.Path, "seq", m.Seq)
	if e.store == nil {
		return
	}
	if err := e.store.WriteMutation(ctx, m); err != nil {
		e.logger.Error("write mutation failed", "path", m.Path, "seq", m.Seq, "error", err)
	}
}

// Evaluate drains pending events and runs one pass synchronously.
//
// A call made while a pass is running, including from inside a processor,
// fails with a REENTRANT_EVALUATION error. With nothing invalid it returns
// an empty result and calls no processor.
func (e *Engine) Evaluate(ctx context.Context) (PassResult, error) {
	if e.evaluating.Load() {
		return PassResult{}, reentrant()
	}
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		e.handle(ctx, ev)
	}
	return e.pass(ctx)
}

func reentrant() *EvalError {
	return &EvalError{Code: CodeReentrant, Op: "evaluate", Message: "evaluation already in progress"}
}

// passRun collects per-processor outcomes of one pass.
type passRun struct {
	seq int64

	mu       sync.Mutex
	outcomes map[string]ir.ProcessorRun
	errs     map[string]*EvalError
}

func (r *passRun) record(id string, outcome ir.Outcome, initialized bool, err *EvalError) {
	run := ir.ProcessorRun{Seq: r.seq, Processor: id, Outcome: outcome, Initialized: initialized}
	if err != nil {
		run.Error = err.Error()
	}
	r.mu.Lock()
	r.outcomes[id] = run
	if err != nil {
		r.errs[id] = err
	}
	r.mu.Unlock()
}

func (e *Engine) pass(ctx context.Context) (PassResult, error) {
	if !e.evaluating.CompareAndSwap(false, true) {
		return PassResult{}, reentrant()
	}
	defer e.evaluating.Store(false)

	if e.net.IsLocked() {
		return PassResult{}, ErrLocked
	}
	e.dirty.Store(false)

	roots := e.invalidRoots()
	if len(roots) == 0 {
		e.logger.Debug("nothing to evaluate")
		return PassResult{}, nil
	}
	closure := e.net.ForwardClosure(roots...)
	levels, err := e.net.Levels(closure)
	if err != nil {
		return PassResult{}, &EvalError{Code: CodeConfiguration, Op: "schedule", Message: "cannot order processors", Cause: err}
	}

	start := time.Now()
	seq := e.clock.Next()
	token := e.tokens.Generate()
	run := &passRun{
		seq:      seq,
		outcomes: make(map[string]ir.ProcessorRun, len(closure)),
		errs:     make(map[string]*EvalError),
	}

	// Stale outputs must not be read by anything in the closure.
	for _, id := range closure {
		core := e.net.Processor(id).Core()
		core.SetState(processor.Invalid, nil)
		for _, out := range core.Outports() {
			out.Invalidate()
		}
	}

	e.logger.Debug("pass starting", "seq", seq, "token", token, "roots", roots, "closure", closure)

	var cancelled error
	for _, wave := range levels {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		if e.parallel && len(wave) > 1 {
			e.runWave(ctx, wave, run)
			continue
		}
		for _, id := range wave {
			e.runOne(ctx, id, run)
		}
	}

	res := PassResult{
		ID:       ir.PassID(token, seq),
		Token:    token,
		Seq:      seq,
		Duration: time.Since(start),
	}
	var runs []ir.ProcessorRun
	for _, wave := range levels {
		for _, id := range wave {
			pr, ok := run.outcomes[id]
			if !ok {
				continue
			}
			pr.PassID = res.ID
			runs = append(runs, pr)
			switch pr.Outcome {
			case ir.OutcomeValid:
				res.Executed = append(res.Executed, id)
			case ir.OutcomeError:
				res.Executed = append(res.Executed, id)
				res.Failed = append(res.Failed, id)
			case ir.OutcomeUpstreamError:
				res.Failed = append(res.Failed, id)
			case ir.OutcomeNotReady:
				res.Skipped = append(res.Skipped, id)
			}
			if ee := run.errs[id]; ee != nil {
				res.Errors = append(res.Errors, ee)
			}
		}
	}

	e.record(ctx, res, runs)

	e.mu.Lock()
	e.passes++
	e.last = res
	e.mu.Unlock()

	e.logger.Info("pass complete",
		"seq", seq,
		"token", token,
		"executed", len(res.Executed),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped),
		"duration", res.Duration,
	)
	return res, cancelled
}

// invalidRoots returns processors with pending work, in insertion order.
func (e *Engine) invalidRoots() []string {
	var roots []string
	for _, p := range e.net.Processors() {
		core := p.Core()
		if core.Pending() != property.Valid || core.State() == processor.Invalid {
			roots = append(roots, p.Identifier())
		}
	}
	return roots
}

func (e *Engine) runWave(ctx context.Context, wave []string, run *passRun) {
	var g errgroup.Group
	g.SetLimit(e.maxWorkers)
	for _, id := range wave {
		g.Go(func() error {
			e.runOne(ctx, id, run)
			return nil
		})
	}
	_ = g.Wait()
}

// runOne evaluates a single processor. Every failure is contained here.
func (e *Engine) runOne(ctx context.Context, id string, run *passRun) {
	p := e.net.Processor(id)
	core := p.Core()

	for _, pred := range e.net.Predecessors(id) {
		if e.net.Processor(pred).Core().State() == processor.Error {
			err := &EvalError{
				Code:      CodeUpstream,
				Processor: id,
				Op:        "process",
				Message:   fmt.Sprintf("input from %s failed", pred),
			}
			e.fail(core, ir.OutcomeUpstreamError, false, err, run)
			return
		}
	}
	if !core.IsReady() {
		e.logger.Debug("processor not ready", "processor", id, "seq", run.seq)
		run.record(id, ir.OutcomeNotReady, false, nil)
		return
	}

	if !core.TryBeginProcessing() {
		e.fail(core, ir.OutcomeError, false, &EvalError{
			Code:      CodeReentrant,
			Processor: id,
			Op:        "process",
			Message:   "processor is already processing",
		}, run)
		return
	}

	if p.Info().SharedContext {
		e.contextMu.Lock()
		defer e.contextMu.Unlock()
	}

	level := core.Pending()
	core.ClearPending()

	initialized := false
	if level >= property.InvalidResources {
		if err := call(ctx, p.InitializeResources); err != nil {
			core.RestorePending(property.InvalidResources)
			e.fail(core, ir.OutcomeError, false, failure(CodeResource, id, "initialize_resources", err), run)
			return
		}
		initialized = true
	}

	if err := call(ctx, p.Process); err != nil {
		e.fail(core, ir.OutcomeError, initialized, failure(CodeEvaluation, id, "process", err), run)
		return
	}
	for _, out := range p.Outports() {
		if !out.Commit(run.seq) {
			e.fail(core, ir.OutcomeError, initialized, &EvalError{
				Code:      CodeEvaluation,
				Processor: id,
				Op:        "process",
				Message:   fmt.Sprintf("outport %s was not written", out.Identifier()),
			}, run)
			return
		}
	}

	core.SetState(processor.Valid, nil)
	if core.Pending() != property.Valid {
		// Invalidated while processing; the next pass picks it up.
		core.SetState(processor.Invalid, nil)
		e.dirty.Store(true)
	}
	e.logger.Debug("processor evaluated", "processor", id, "seq", run.seq, "initialized", initialized)
	run.record(id, ir.OutcomeValid, initialized, nil)
}

func failure(code ErrorCode, id, op string, err error) *EvalError {
	msg := op + " failed"
	var pe *panicError
	if errors.As(err, &pe) {
		msg = op + " panicked"
	}
	return &EvalError{Code: code, Processor: id, Op: op, Message: msg, Cause: err}
}

func (e *Engine) fail(core *processor.Base, outcome ir.Outcome, initialized bool, err *EvalError, run *passRun) {
	core.SetState(processor.Error, err)
	for _, out := range core.Outports() {
		out.Invalidate()
	}
	run.record(core.Identifier(), outcome, initialized, err)
	if ind, ok := e.net.Processor(core.Identifier()).(processor.ErrorIndicator); ok {
		ind.IndicateError(err)
	}
	e.reporter.Report(err)
}

// call runs fn and turns a panic into an error.
func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn(ctx)
}

func (e *Engine) record(ctx context.Context, res PassResult, runs []ir.ProcessorRun) {
	if e.store == nil {
		return
	}
	hash, err := serial.Hash(e.net)
	if err != nil {
		e.logger.Error("hash network failed", "seq", res.Seq, "error", err)
	}
	rec := ir.PassRecord{
		ID:          res.ID,
		Token:       res.Token,
		Seq:         res.Seq,
		NetworkHash: hash,
		Executed:    res.Executed,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
	}
	if err := e.store.WritePass(ctx, rec, runs); err != nil {
		e.logger.Error("write pass failed", "seq", res.Seq, "error", err)
	}
}

// Network returns the evaluated network.
func (e *Engine) Network() *network.Network { return e.net }

// Clock returns the logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// QueueLen returns the number of pending events.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Passes counts non-empty passes.
func (e *Engine) Passes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passes
}

// Last returns the most recent non-empty pass.
func (e *Engine) Last() PassResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Evaluating reports whether a pass is in progress.
func (e *Engine) Evaluating() bool { return e.evaluating.Load() }
