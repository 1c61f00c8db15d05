package propsync

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/property"
	"github.com/roach88/procnet/internal/testutil"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []Update
	onPush  func(Update)
}

func (r *recordingSink) Push(u Update) error {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	onPush := r.onPush
	r.mu.Unlock()
	if onPush != nil {
		onPush(u)
	}
	return nil
}

func (r *recordingSink) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setup(t *testing.T) (*Synchronizer, *recordingSink, map[string]*testutil.Node) {
	t.Helper()
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	sink := &recordingSink{}
	s := New(net, sink, quiet())
	t.Cleanup(s.Close)
	return s, sink, nodes
}

func countChanges(p property.Property) *int {
	n := new(int)
	p.AddObserver(property.OnChange(func(property.Property) { *n++ }))
	return n
}

func TestLocalChange_PushesAndAwaitsEcho(t *testing.T) {
	s, sink, nodes := setup(t)
	v, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)
	assert.Equal(t, ir.Float(0), v)

	nodes["a"].Value.Set(2.5)

	updates := sink.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, Update{Command: CmdUpdate, Path: "a.value", ID: "slider", Value: json.RawMessage("2.5")}, updates[0])
	assert.Equal(t, AwaitingEcho, s.State("a.value"))

	changes := countChanges(nodes["a"].Value)
	require.NoError(t, s.Set("a.value", ir.Float(2.5)))
	assert.Equal(t, Idle, s.State("a.value"))
	assert.Zero(t, *changes, "echo is consumed, not applied")
	assert.Equal(t, Stats{Pushed: 1, EchoesConsumed: 1}, s.Stats())
}

func TestSynchronousEcho_Settles(t *testing.T) {
	s, sink, nodes := setup(t)
	_, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)

	// The peer echoes every update back before Push returns, several times.
	sink.onPush = func(u Update) {
		v, err := ir.UnmarshalValue(u.Value)
		require.NoError(t, err)
		for range 3 {
			require.NoError(t, s.Set(u.Path, v))
		}
	}
	changes := countChanges(nodes["a"].Value)

	nodes["a"].Value.Set(7)

	assert.Equal(t, Idle, s.State("a.value"))
	assert.Len(t, sink.Updates(), 1)
	assert.Equal(t, 1, *changes)
	assert.Equal(t, Stats{Pushed: 1, EchoesConsumed: 3}, s.Stats())
}

func TestRemoteEdit_AppliedOncePushedOnce(t *testing.T) {
	s, sink, nodes := setup(t)
	_, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)

	changes := countChanges(nodes["a"].Value)
	require.NoError(t, s.Set("a.value", ir.Float(4)))

	assert.Equal(t, 4.0, nodes["a"].Value.Get())
	assert.Equal(t, 1, *changes)
	require.Len(t, sink.Updates(), 1, "applied value is mirrored once")
	assert.Equal(t, AwaitingEcho, s.State("a.value"))

	// The echo of the mirror settles the round trip.
	require.NoError(t, s.Set("a.value", ir.Float(4)))
	assert.Equal(t, Idle, s.State("a.value"))
	assert.Equal(t, 1, *changes)

	// A repeated delivery while idle is the same value and changes nothing.
	require.NoError(t, s.Set("a.value", ir.Float(4)))
	assert.Len(t, sink.Updates(), 1)
	assert.Equal(t, Idle, s.State("a.value"))
}

func TestEchoLoop_BoundedIndependentOfRounds(t *testing.T) {
	s, sink, nodes := setup(t)
	_, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)

	// A peer that reformats and sends back every value it receives.
	sink.onPush = func(u Update) {
		v, _ := ir.UnmarshalValue(u.Value)
		_ = s.Set(u.Path, v)
	}
	for i := 1; i <= 10; i++ {
		nodes["a"].Value.Set(float64(i))
	}

	assert.Len(t, sink.Updates(), 10, "one push per local change")
	assert.Equal(t, Idle, s.State("a.value"))
}

func TestUnsubscribedSet_AppliesDirectly(t *testing.T) {
	s, sink, nodes := setup(t)

	require.NoError(t, s.Set("b.detail", ir.Bool(true)))
	assert.True(t, nodes["b"].Detail.Get())
	assert.Empty(t, sink.Updates())

	err := s.Set("b.missing", ir.Bool(true))
	assert.Error(t, err)
}

func TestMultipleWidgets(t *testing.T) {
	s, sink, nodes := setup(t)
	_, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)
	_, err = s.Subscribe("a.value", "field")
	require.NoError(t, err)
	_, err = s.Subscribe("a.value", "field")
	require.NoError(t, err)

	nodes["a"].Value.Set(1)
	updates := sink.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, "slider", updates[0].ID)
	assert.Equal(t, "field", updates[1].ID)

	require.NoError(t, s.Unsubscribe("a.value", "slider"))
	assert.Equal(t, []string{"a.value"}, s.Subscriptions())
	require.NoError(t, s.Unsubscribe("a.value", "field"))
	assert.Empty(t, s.Subscriptions())
	assert.ErrorIs(t, s.Unsubscribe("a.value", "field"), ErrNotSubscribed)
}

func TestPropertyRemoval_DropsSubscriptionBeforeDetach(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	var attached bool
	sink := &recordingSink{}
	sink.onPush = func(u Update) {
		if u.Command == CmdRemoved {
			attached = nodes["a"].Value.Owner() != nil
		}
	}
	s := New(net, sink, quiet())
	_, err := s.Subscribe("a.value", "slider")
	require.NoError(t, err)
	_, err = s.Subscribe("a.detail", "toggle")
	require.NoError(t, err)

	require.NoError(t, net.RemoveProcessor("a"))

	assert.True(t, attached, "removal notice is sent while the property is attached")
	assert.Empty(t, s.Subscriptions())
	var removed []string
	for _, u := range sink.Updates() {
		if u.Command == CmdRemoved {
			removed = append(removed, u.Path)
		}
	}
	assert.Equal(t, []string{"a.detail", "a.value"}, removed)

	// No further pushes from the detached property.
	before := len(sink.Updates())
	nodes["a"].Value.Set(9)
	assert.Len(t, sink.Updates(), before)
}

func TestHandleJSON(t *testing.T) {
	s, _, nodes := setup(t)
	nodes["a"].Value.Set(1.5)

	tests := []struct {
		name string
		in   string
		want Response
	}{
		{
			name: "subscribe",
			in:   `{"command":"subscribe","path":"a.value","id":"w"}`,
			want: Response{Command: CmdSubscribe, Path: "a.value", ID: "w", OK: true, Value: json.RawMessage("1.5")},
		},
		{
			name: "get",
			in:   `{"command":"property.get","path":"b.detail"}`,
			want: Response{Command: CmdGet, Path: "b.detail", OK: true, Value: json.RawMessage("false")},
		},
		{
			name: "set",
			in:   `{"command":"property.set","path":"b.detail","value":true}`,
			want: Response{Command: CmdSet, Path: "b.detail", OK: true},
		},
		{
			name: "unknown",
			in:   `{"command":"explode","path":"a.value"}`,
			want: Response{Command: "explode", Path: "a.value", Error: `"explode": unknown command`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.HandleJSON([]byte(tt.in))
			require.NoError(t, err)
			var got Response
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, nodes["b"].Detail.Get())

	_, err := s.HandleJSON([]byte(`{"path":"a.value"}`))
	assert.Error(t, err)
	_, err = s.HandleJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pushing_out", PushingOut.String())
	assert.Equal(t, "awaiting_echo", AwaitingEcho.String())
}
