package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindCycles_DAG tests that an acyclic graph produces no cycles.
func TestFindCycles_DAG(t *testing.T) {
	g := Graph{
		"source": {"scale", "sum"},
		"scale":  {"sum"},
		"sum":    nil,
	}
	assert.Empty(t, FindCycles(g))
	assert.Empty(t, FindCycles(nil))
}

// TestFindCycles_SelfLoop tests detection of a processor feeding itself.
func TestFindCycles_SelfLoop(t *testing.T) {
	cycles := FindCycles(Graph{"feedback": {"feedback"}})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"feedback", "feedback"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "feedback -> feedback")
}

// TestFindCycles_Deterministic tests that two disjoint cycles come back in
// the same order with paths starting at their smallest node.
func TestFindCycles_Deterministic(t *testing.T) {
	g := Graph{
		"c": {"a"},
		"a": {"b"},
		"b": {"c"},
		"y": {"x"},
		"x": {"y"},
		"z": nil,
	}
	for range 10 {
		cycles := FindCycles(g)
		require.Len(t, cycles, 2)
		assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
		assert.Equal(t, []string{"x", "y", "x"}, cycles[1].Path)
	}
}

func TestReaches(t *testing.T) {
	g := Graph{"a": {"b"}, "b": {"c"}, "c": nil, "d": {"a"}}
	assert.True(t, reaches(g, "a", "c"))
	assert.True(t, reaches(g, "d", "c"))
	assert.False(t, reaches(g, "c", "a"))
	assert.True(t, reaches(g, "b", "b"))
}
