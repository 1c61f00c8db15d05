package network_test

import (
	"testing"

	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLink_CopiesOnCreateAndOnChange(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"})
	nodes["a"].Value.Set(3)

	l, err := net.Link("a.value", "b.value")
	require.NoError(t, err)
	assert.Equal(t, "a.value => b.value", l.String())
	assert.Equal(t, 3.0, nodes["b"].Value.Get())

	nodes["a"].Value.Set(7)
	assert.Equal(t, 7.0, nodes["b"].Value.Get())

	again, err := net.Link("a.value", "b.value")
	require.NoError(t, err)
	assert.Same(t, l, again)
	assert.Len(t, net.Links(), 1)
}

func TestLink_BidirectionalSettles(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"})
	_, err := net.Link("a.value", "b.value")
	require.NoError(t, err)
	_, err = net.Link("b.value", "a.value")
	require.NoError(t, err)

	nodes["b"].Value.Set(11)
	assert.Equal(t, 11.0, nodes["a"].Value.Get())
	assert.Equal(t, 11.0, nodes["b"].Value.Get())
}

func TestLink_Rejections(t *testing.T) {
	net, _ := testutil.BuildNetwork(t, nil, []string{"a", "b"})

	_, err := net.Link("a.value", "a.value")
	code, _ := network.ConfigErrorCodeOf(err)
	assert.Equal(t, network.CodeIncompatibleProperty, code)

	_, err = net.Link("a.detail", "b.value")
	code, _ = network.ConfigErrorCodeOf(err)
	assert.Equal(t, network.CodeIncompatibleProperty, code)

	_, err = net.Link("a.value", "ghost.value")
	code, _ = network.ConfigErrorCodeOf(err)
	assert.Equal(t, network.CodeUnknownProcessor, code)
}

func TestUnlink_AndRemoveProcessorDropLinks(t *testing.T) {
	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b", "c"})
	_, err := net.Link("a.value", "b.value")
	require.NoError(t, err)
	_, err = net.Link("a.value", "c.value")
	require.NoError(t, err)

	assert.True(t, net.Unlink("a.value", "b.value"))
	assert.False(t, net.Unlink("a.value", "b.value"))
	nodes["a"].Value.Set(5)
	assert.Equal(t, 0.0, nodes["b"].Value.Get())
	assert.Equal(t, 5.0, nodes["c"].Value.Get())

	require.NoError(t, net.RemoveProcessor("c"))
	assert.Empty(t, net.Links())
}
