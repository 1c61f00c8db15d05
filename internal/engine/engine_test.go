package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/testutil"
)

// collectingReporter records reported failures.
type collectingReporter struct {
	mu   sync.Mutex
	errs []*EvalError
}

func (r *collectingReporter) Report(err *EvalError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *collectingReporter) Codes() map[string]ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ErrorCode, len(r.errs))
	for _, e := range r.errs {
		out[e.Processor] = e.Code
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, net *network.Network, opts ...Option) (*Engine, *collectingReporter) {
	t.Helper()
	rep := &collectingReporter{}
	base := []Option{
		WithLogger(discardLogger()),
		WithTokens(testutil.NewFixedTokens("pass")),
		WithReporter(rep),
	}
	e := New(net, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, rep
}

func processCalls(nodes map[string]*testutil.Node) map[string]int {
	out := make(map[string]int, len(nodes))
	for id, n := range nodes {
		out[id] = n.ProcessCalls()
	}
	return out
}

func TestEvaluate_FirstPassRunsEveryProcessorOnce(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b", "c", "d"}, "a->b", "b->c")
	nodes["a"].Value.Set(1)
	nodes["d"].Value.Set(4)
	eng, _ := newTestEngine(t, net)

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int64(1), res.Seq)
	assert.Equal(t, "pass", res.Token)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, res.Executed)

	for id, n := range nodes {
		assert.Equal(t, 1, n.ProcessCalls(), id)
		assert.Equal(t, 1, n.InitCalls(), "%s: resources initialize before the first process", id)
		assert.Equal(t, processor.Valid, n.State(), id)
	}
	out, err := nodes["c"].Output()
	require.NoError(t, err)
	assert.Equal(t, 1.0, out)
}

func TestEvaluate_IsIdempotentWithoutMutation(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b", "c"}, "a->b", "b->c")
	eng, _ := newTestEngine(t, net)

	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	before := processCalls(nodes)

	for range 3 {
		res, err := eng.Evaluate(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Empty())
	}
	assert.Equal(t, before, processCalls(nodes))
	assert.Equal(t, 1, eng.Passes())
}

func TestEvaluate_RunsExactlyTheForwardClosure(t *testing.T) {
	//   a -> b -> c
	//        d -> c
	//   e
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b", "c", "d", "e"}, "a->b", "b->c", "d->c")
	eng, _ := newTestEngine(t, net)
	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	nodes["b"].Value.Set(2)
	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, res.Executed)
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 2, "d": 1, "e": 1}, processCalls(nodes))
	for _, id := range []string{"a", "d", "e"} {
		assert.Equal(t, processor.Valid, nodes[id].State(), id)
	}
	out, err := nodes["c"].Output()
	require.NoError(t, err)
	assert.Equal(t, 2.0, out)
}

func TestEvaluate_ResourceLevelChangeReinitializesOnlyTheOwner(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	eng, _ := newTestEngine(t, net)
	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	nodes["a"].Detail.Set(true)
	_, err = eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, nodes["a"].InitCalls())
	assert.Equal(t, 2, nodes["a"].ProcessCalls())
	assert.Equal(t, 1, nodes["b"].InitCalls(), "downstream only reprocesses")
	assert.Equal(t, 2, nodes["b"].ProcessCalls())

	nodes["a"].Value.Set(3)
	_, err = eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, nodes["a"].InitCalls(), "output-level change skips resources")
	assert.Equal(t, 3, nodes["a"].ProcessCalls())
}

func TestEvaluate_ContainsFailureToDownstreamClosure(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b", "c", "d"}, "a->b", "b->c")
	eng, rep := newTestEngine(t, net)
	nodes["a"].FailWith(errors.New("disk on fire"))

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err, "contained failures do not fail the pass")
	assert.False(t, res.OK())
	assert.Equal(t, []string{"a", "b", "c"}, res.Failed)

	assert.Equal(t, processor.Error, nodes["a"].State())
	assert.Equal(t, processor.Error, nodes["b"].State())
	assert.Equal(t, processor.Error, nodes["c"].State())
	assert.Equal(t, 0, nodes["b"].ProcessCalls())
	assert.Equal(t, 0, nodes["c"].ProcessCalls())

	assert.Equal(t, processor.Valid, nodes["d"].State())
	assert.Equal(t, 1, nodes["d"].ProcessCalls())

	assert.Equal(t, map[string]ErrorCode{
		"a": CodeEvaluation,
		"b": CodeUpstream,
		"c": CodeUpstream,
	}, rep.Codes())
	assert.True(t, IsEvaluationError(nodes["b"].Err()))
	_, err = nodes["a"].Out.Data()
	assert.ErrorIs(t, err, port.ErrNotReady)

	// Nothing changed, so nothing reruns.
	again, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Empty())

	nodes["a"].FailWith(nil)
	nodes["a"].Value.Set(1)
	recovered, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, recovered.OK())
	assert.Equal(t, []string{"a", "b", "c"}, recovered.Executed)
	assert.Equal(t, processor.Valid, nodes["c"].State())
}

func TestEvaluate_RecoversPanics(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	eng, rep := newTestEngine(t, net)
	nodes["a"].PanicWith("boom")

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, CodeEvaluation, res.Errors[0].Code)
	assert.Equal(t, "process panicked", res.Errors[0].Message)
	assert.Contains(t, res.Errors[0].Error(), "panic: boom")
	assert.Len(t, rep.errs, 2)
}

func TestEvaluate_UnwrittenOutportIsAnError(t *testing.T) {
	net := network.New()
	s := &silent{out: port.NewOutport("outport", port.Number)}
	require.NoError(t, s.Init(s, "silent", processor.Info{ClassIdentifier: "test.silent"}, processor.Shape{
		Ports: []port.Port{s.out},
	}))
	require.NoError(t, net.AddProcessor(s))
	eng, _ := newTestEngine(t, net)

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "outport outport was not written")
	assert.Equal(t, processor.Error, s.State())
}

func TestEvaluate_ResourceFailureRetriesInitialization(t *testing.T) {
	net := network.New()
	r := &flakyResources{out: port.NewOutport("outport", port.Number)}
	require.NoError(t, r.Init(r, "res", processor.Info{ClassIdentifier: "test.res"}, processor.Shape{
		Ports: []port.Port{r.out},
	}))
	require.NoError(t, net.AddProcessor(r))
	eng, _ := newTestEngine(t, net)

	r.fail = true
	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeResource, res.Errors[0].Code)
	assert.Equal(t, 0, r.processes)

	r.fail = false
	res, err = eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 2, r.inits, "failed initialization is retried")
	assert.Equal(t, 1, r.processes)
}

func TestEvaluate_RespectsDependencyOrder(t *testing.T) {
	log := &testutil.Log{}
	// Insertion order deliberately differs from dependency order.
	net, _ := testutil.BuildNetwork(t, log, []string{"sink", "right", "left", "top"},
		"top->left", "top->right", "left->sink", "right->sink")
	eng, _ := newTestEngine(t, net)

	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "right", "left", "sink"}, log.Processed())
	assert.Equal(t, []string{
		"init:top", "process:top",
		"init:right", "process:right",
		"init:left", "process:left",
		"init:sink", "process:sink",
	}, log.Entries())
}

func TestEvaluate_RejectsReentrantEvaluation(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	eng, _ := newTestEngine(t, net)

	var nested error
	nodes["a"].OnProcess = func(ctx context.Context, _ *testutil.Node) {
		_, nested = eng.Evaluate(ctx)
	}
	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.True(t, IsReentrantError(nested))
	assert.False(t, eng.Evaluating())
}

func TestEvaluate_InvalidationDuringProcessSchedulesAnotherPass(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	eng, _ := newTestEngine(t, net)

	nodes["a"].OnProcess = func(_ context.Context, n *testutil.Node) {
		if n.ProcessCalls() == 1 {
			n.Value.Set(5)
		}
	}
	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, processor.Invalid, nodes["a"].State())

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Executed)
	assert.Equal(t, processor.Valid, nodes["a"].State())
	out, err := nodes["a"].Output()
	require.NoError(t, err)
	assert.Equal(t, 5.0, out)
}

func TestEvaluate_DeferredWhileLocked(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	eng, _ := newTestEngine(t, net)
	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	net.Lock()
	nodes["a"].Value.Set(1)
	nodes["a"].Value.Set(2)
	nodes["a"].Value.Set(3)
	_, err = eng.Evaluate(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
	net.Unlock()

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Executed)
	assert.Equal(t, 2, nodes["b"].ProcessCalls(), "three sets coalesce into one pass")
}

func TestEvaluate_SkipsProcessorsThatAreNotReady(t *testing.T) {
	net := network.New()
	n, err := testutil.NewNode("free", nil)
	require.NoError(t, err)
	require.NoError(t, net.AddProcessor(n))

	strict := &silent{in: port.NewInport("inport", port.Number)}
	require.NoError(t, strict.Init(strict, "strict", processor.Info{ClassIdentifier: "test.strict"}, processor.Shape{
		Ports: []port.Port{strict.in},
	}))
	require.NoError(t, net.AddProcessor(strict))
	eng, _ := newTestEngine(t, net)

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"free"}, res.Executed)
	assert.Equal(t, []string{"strict"}, res.Skipped)
	assert.Equal(t, processor.Invalid, strict.State())
}

func TestEvaluate_ParallelWaves(t *testing.T) {
	ids := []string{"src", "w1", "w2", "w3", "w4", "w5", "w6", "sink"}
	var edges []string
	for _, w := range ids[1:7] {
		edges = append(edges, "src->"+w, w+"->sink")
	}
	net, nodes := testutil.BuildNetwork(t, nil, ids, edges...)
	nodes["src"].Value.Set(1)
	eng, _ := newTestEngine(t, net, WithParallel(4))

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Executed, len(ids))
	assert.Equal(t, "src", res.Executed[0])
	assert.Equal(t, "sink", res.Executed[len(ids)-1])
	out, err := nodes["sink"].Output()
	require.NoError(t, err)
	assert.Equal(t, 6.0, out)
}

func TestEvaluate_SharedContextProcessorsAreSerialized(t *testing.T) {
	net := network.New()
	info := testutil.NodeInfo
	info.SharedContext = true

	var active, peak atomic.Int32
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		n, err := testutil.NewNodeWithInfo(id, nil, info)
		require.NoError(t, err)
		n.OnProcess = func(context.Context, *testutil.Node) {
			now := active.Add(1)
			for {
				p := peak.Load()
				if now <= p || peak.CompareAndSwap(p, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}
		require.NoError(t, net.AddProcessor(n))
	}
	eng, _ := newTestEngine(t, net, WithParallel(4))

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Executed, 4)
	assert.Equal(t, int32(1), peak.Load())
}

func TestEvaluate_PicksUpProcessorsAddedLater(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	eng, _ := newTestEngine(t, net)
	_, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	b, err := testutil.NewNode("b", nil)
	require.NoError(t, err)
	require.NoError(t, net.AddProcessor(b))
	require.NoError(t, net.Connect(nodes["a"].Out, b.In))

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Executed)
	assert.Equal(t, 1, nodes["a"].ProcessCalls())
}

func TestRun_EvaluatesQueuedChanges(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	eng, _ := newTestEngine(t, net)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool {
		return nodes["b"].ProcessCalls() == 1
	}, 2*time.Second, 5*time.Millisecond)

	nodes["a"].Value.Set(7)
	require.Eventually(t, func() bool {
		out, err := nodes["b"].Output()
		return err == nil && out == 7
	}, 2*time.Second, 5*time.Millisecond)

	res, err := eng.Request(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty(), "nothing left to do")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, err = eng.Request(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRun_StopReturnsNil(t *testing.T) {
	net, _ := testutil.BuildNetwork(t, nil, []string{"a"})
	eng, _ := newTestEngine(t, net)

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()
	eng.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, eng.Enqueue(Event{Type: EventEvaluate}))
}

func TestEvalError_Format(t *testing.T) {
	err := &EvalError{Code: CodeResource, Processor: "raycaster", Op: "initialize_resources", Message: "initialize_resources failed", Cause: errors.New("out of memory")}
	assert.Equal(t, "RESOURCE_ERROR raycaster.initialize_resources: initialize_resources failed: out of memory", err.Error())
	assert.True(t, IsEvaluationError(err))
	assert.False(t, IsConfigurationError(err))
}

// silent never writes its outport.
type silent struct {
	processor.Base
	in  *port.Inport
	out *port.Outport
}

func (s *silent) Process(context.Context) error { return nil }

// flakyResources fails InitializeResources while fail is set.
type flakyResources struct {
	processor.Base
	out       *port.Outport
	fail      bool
	inits     int
	processes int
}

func (r *flakyResources) InitializeResources(context.Context) error {
	r.inits++
	if r.fail {
		return errors.New("shader did not link")
	}
	return nil
}

func (r *flakyResources) Process(context.Context) error {
	r.processes++
	r.out.SetData(1.0)
	return nil
}
