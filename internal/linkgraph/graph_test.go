package linkgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphCanonicalizesEdges(t *testing.T) {
	t.Parallel()

	a, err := NewGraph(3, []Edge{{2, 0}, {0, 1}, {0, 1}, {1, 2}})
	require.NoError(t, err)
	b, err := NewGraph(3, []Edge{{0, 1}, {1, 2}, {2, 0}, {0, 1}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []Edge{{0, 1}, {0, 1}, {1, 2}, {2, 0}}, a.Edges())
}

func TestNewGraphWeightsAndDegrees(t *testing.T) {
	t.Parallel()

	g, err := NewGraph(4, []Edge{{0, 1}, {0, 1}, {0, 2}, {3, 1}})
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 4, g.EdgeCount())
	assert.Equal(t, 3, g.OutDegree(0))
	assert.Equal(t, 0, g.OutDegree(1))
	assert.Equal(t, []Inbound{{From: 0, Weight: 2}, {From: 3, Weight: 1}}, g.Inbound(1))
	assert.Empty(t, g.Inbound(0))
	assert.Equal(t, []int{1, 2}, g.Dangling())
}

func TestNewGraphRejectsOutOfRangeEdges(t *testing.T) {
	t.Parallel()

	_, err := NewGraph(2, []Edge{{0, 2}})
	require.Error(t, err)
	_, err = NewGraph(2, []Edge{{-1, 0}})
	require.Error(t, err)
	_, err = NewGraph(-1, nil)
	require.Error(t, err)
}

func TestEdgesReturnsCopy(t *testing.T) {
	t.Parallel()

	g, err := NewGraph(2, []Edge{{0, 1}})
	require.NoError(t, err)
	edges := g.Edges()
	edges[0] = Edge{1, 0}
	assert.Equal(t, []Edge{{0, 1}}, g.Edges())
}
