package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/propsync"
	"github.com/roach88/procnet/internal/testutil"
)

const wait = 2 * time.Second

func startServer(t *testing.T) (*Server, string, map[string]*testutil.Node) {
	t.Helper()
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	srv := NewServer(net, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http"), nodes
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func nextResponse(t *testing.T, c *Client) propsync.Response {
	t.Helper()
	select {
	case r, ok := <-c.Responses():
		require.True(t, ok, "connection closed")
		return r
	case <-time.After(wait):
		t.Fatal("timed out waiting for response")
	}
	return propsync.Response{}
}

func nextUpdate(t *testing.T, c *Client) propsync.Update {
	t.Helper()
	select {
	case u, ok := <-c.Updates():
		require.True(t, ok, "connection closed")
		return u
	case <-time.After(wait):
		t.Fatal("timed out waiting for update")
	}
	return propsync.Update{}
}

func TestSubscribeReturnsCurrentValue(t *testing.T) {
	srv, url, nodes := startServer(t)
	nodes["a"].Value.Set(3)
	c := dial(t, url)

	require.NoError(t, c.Subscribe("a.value", "slider"))
	resp := nextResponse(t, c)
	assert.True(t, resp.OK, resp.Error)
	assert.Equal(t, json.RawMessage("3"), resp.Value)
	assert.Equal(t, []string{"a.value"}, srv.Synchronizer().Subscriptions())
	assert.Eventually(t, func() bool { return srv.Clients() == 1 }, wait, 10*time.Millisecond)
}

func TestLocalChangeIsBroadcast(t *testing.T) {
	_, url, nodes := startServer(t)
	first, second := dial(t, url), dial(t, url)
	require.NoError(t, first.Subscribe("a.value", "slider"))
	nextResponse(t, first)

	nodes["a"].Value.Set(1.25)

	for _, c := range []*Client{first, second} {
		u := nextUpdate(t, c)
		assert.Equal(t, propsync.CmdUpdate, u.Command)
		assert.Equal(t, "a.value", u.Path)
		assert.Equal(t, "slider", u.ID)
		assert.Equal(t, json.RawMessage("1.25"), u.Value)
	}
}

func TestRemoteSetRoundTripSettles(t *testing.T) {
	srv, url, nodes := startServer(t)
	c := dial(t, url)
	require.NoError(t, c.Subscribe("a.value", "slider"))
	nextResponse(t, c)

	require.NoError(t, c.Set("a.value", ir.Float(6)))
	assert.True(t, nextResponse(t, c).OK)
	assert.Equal(t, 6.0, nodes["a"].Value.Get())

	// The applied value is mirrored back once; echoing it settles.
	u := nextUpdate(t, c)
	assert.Equal(t, json.RawMessage("6"), u.Value)
	require.NoError(t, c.Set(u.Path, ir.Float(6)))
	assert.True(t, nextResponse(t, c).OK)

	sync := srv.Synchronizer()
	assert.Equal(t, propsync.Idle, sync.State("a.value"))
	assert.Equal(t, propsync.Stats{Pushed: 1, Applied: 1, EchoesConsumed: 1}, sync.Stats())

	select {
	case extra := <-c.Updates():
		t.Fatalf("unexpected update after settling: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBadCommandReportsError(t *testing.T) {
	_, url, _ := startServer(t)
	c := dial(t, url)

	require.NoError(t, c.Send(propsync.Command{Command: propsync.CmdGet, Path: "nope.value"}))
	resp := nextResponse(t, c)
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)

	require.NoError(t, c.Send(propsync.Command{Command: "bogus"}))
	assert.Contains(t, nextResponse(t, c).Error, "unknown command")
}

func TestCloseDisconnectsPeers(t *testing.T) {
	srv, url, _ := startServer(t)
	c := dial(t, url)
	require.NoError(t, c.Subscribe("a.value", "slider"))
	nextResponse(t, c)

	require.NoError(t, srv.Close())

	select {
	case <-c.Done():
	case <-time.After(wait):
		t.Fatal("client not disconnected")
	}
	assert.Empty(t, srv.Synchronizer().Subscriptions())
	assert.ErrorIs(t, srv.Push(propsync.Update{}), ErrClosed)
}

func TestDisconnectReleasesSubscriptions(t *testing.T) {
	srv, url, nodes := startServer(t)
	sync := srv.Synchronizer()

	first, err := Dial(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, first.Subscribe("a.value", "slider"))
	require.True(t, nextResponse(t, first).OK)
	require.NoError(t, first.Close())

	assert.Eventually(t, func() bool { return len(sync.Subscriptions()) == 0 }, wait, 10*time.Millisecond)

	nodes["a"].Value.Set(3)
	assert.Equal(t, propsync.Idle, sync.State("a.value"))

	second := dial(t, url)
	require.NoError(t, second.Set("a.value", ir.Float(7)))
	assert.True(t, nextResponse(t, second).OK)
	assert.Equal(t, 7.0, nodes["a"].Value.Get())
}

func TestSharedWidgetSurvivesOnePeerLeaving(t *testing.T) {
	srv, url, _ := startServer(t)
	sync := srv.Synchronizer()

	stays := dial(t, url)
	leaves, err := Dial(context.Background(), url)
	require.NoError(t, err)
	for _, c := range []*Client{stays, leaves} {
		require.NoError(t, c.Subscribe("a.value", "slider"))
		require.True(t, nextResponse(t, c).OK)
	}

	require.NoError(t, leaves.Close())
	assert.Eventually(t, func() bool { return srv.Clients() == 1 }, wait, 10*time.Millisecond)
	assert.Equal(t, []string{"a.value"}, sync.Subscriptions())
}
