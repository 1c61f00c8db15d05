package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committed(id string, v any) *Outport {
	out := NewOutport(id, Image)
	out.SetData(v)
	out.Commit(1)
	return out
}

func TestMultiInportSourcesInConnectionOrder(t *testing.T) {
	m := NewMultiInport("images", Image)
	a, b, c := committed("a", "A"), committed("b", "B"), committed("c", "C")
	require.NoError(t, m.Attach(a))
	require.NoError(t, m.Attach(b))
	require.NoError(t, m.Attach(c))

	var ids []string
	for i, src := range m.Sources() {
		assert.Equal(t, len(ids), i)
		ids = append(ids, src.Identifier())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.True(t, m.IsReady())
}

func TestMultiInportSequenceIsRestartableAndLazy(t *testing.T) {
	m := NewMultiInport("images", Image)
	require.NoError(t, m.Attach(committed("a", "A")))

	seq := m.Data()
	require.NoError(t, m.Attach(committed("b", "B")))

	collect := func() []any {
		var out []any
		for v, err := range seq {
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, []any{"A", "B"}, collect(), "sources connected after creation are seen")
	assert.Equal(t, []any{"A", "B"}, collect(), "ranging again restarts")
}

func TestMultiInportEarlyBreak(t *testing.T) {
	m := NewMultiInport("images", Image)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Attach(committed(id, id)))
	}
	n := 0
	for range m.Sources() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestMultiInportNotReadySource(t *testing.T) {
	m := NewMultiInport("images", Image)
	require.NoError(t, m.Attach(committed("a", "A")))
	require.NoError(t, m.Attach(NewOutport("b", Image)))

	assert.False(t, m.IsReady())
	var errs []error
	for _, err := range m.Data() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNotReady)
}

func TestMultiInportLimitAndDuplicates(t *testing.T) {
	m := NewMultiInport("images", Image, Limit(1))
	a := committed("a", "A")
	require.NoError(t, m.Attach(a))
	assert.ErrorIs(t, m.Attach(a), ErrAlreadyConnected)
	assert.ErrorIs(t, m.Attach(committed("b", "B")), ErrAlreadyConnected)

	assert.True(t, m.Detach(a))
	assert.False(t, m.IsConnected())
	_, err := m.At(0)
	assert.ErrorIs(t, err, ErrNotConnected)
}
