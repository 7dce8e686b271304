package grid_test

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/protocol"
	"github.com/swiftroute/swiftroute/internal/transport"
)

func threeNodes() map[int]geo.Location {
	return map[int]geo.Location{
		1: {Lat: 28.60, Lng: 77.20},
		2: {Lat: 28.61, Lng: 77.20},
		3: {Lat: 28.61, Lng: 77.21},
	}
}

func newModel(t *testing.T) (*grid.Model, *transport.MemoryPort) {
	t.Helper()
	port := transport.NewMemoryPort()
	port.Connect()
	return grid.NewModel(grid.Config{Emitter: port, Logger: zerolog.Nop()}), port
}

// Scenario: jam follows the server's weight, toggling never mutates it locally.
func TestToggleFollowsSnapshots(t *testing.T) {
	m, port := newModel(t)

	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		1: {2: 2},
		2: {1: 2},
	}))
	assert.True(t, m.IsJam(1, 2))

	require.NoError(t, m.ToggleEdge(context.Background(), 1, 2))
	sent := port.SentEvents(protocol.EventToggleTraffic)
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"u":1,"v":2}`, string(sent[0].Data))
	assert.True(t, m.IsJam(1, 2), "no optimistic flip")

	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		1: {2: 1},
		2: {1: 1},
	}))
	assert.False(t, m.IsJam(1, 2))
	assert.Equal(t, uint64(2), m.Revision())
}

func TestToggleEdge_SendsRawIDs(t *testing.T) {
	m, port := newModel(t)

	require.NoError(t, m.ToggleEdge(context.Background(), 3, 1))
	assert.JSONEq(t, `{"u":3,"v":1}`, string(port.Sent()[0].Data))

	port.Disconnect()
	assert.ErrorIs(t, m.ToggleEdge(context.Background(), 1, 3), transport.ErrNotConnected)
}

func TestCanonicalKey(t *testing.T) {
	m, _ := newModel(t)
	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		2: {3: 5},
	}))

	w1, ok1 := m.Weight(2, 3)
	w2, ok2 := m.Weight(3, 2)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, w1, w2)
	assert.True(t, m.IsJam(3, 2))
	assert.Equal(t, grid.Key(3, 2), grid.Key(2, 3))
	assert.Len(t, m.Edges(), 1)
}

func TestIsJamMatchesWeight(t *testing.T) {
	m, _ := newModel(t)
	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		1: {2: 1, 3: 1.5},
		2: {3: 0.5},
	}))

	for _, e := range m.Edges() {
		assert.Equal(t, e.Weight > 1, e.IsJam())
		assert.Equal(t, e.Weight > 1, m.IsJam(e.U, e.V))
	}
	assert.Equal(t, 1, m.JamCount())
	assert.False(t, m.IsJam(1, 99), "unknown edges are not jammed")
}

func TestAsymmetricWeightsKeepHeavier(t *testing.T) {
	m, _ := newModel(t)
	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		1: {2: 1},
		2: {1: 3},
	}))

	w, ok := m.Weight(1, 2)
	require.True(t, ok)
	assert.Equal(t, 3.0, w)
	assert.True(t, m.IsJam(2, 1))
}

func TestLoadSnapshot_RejectsWholeSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		nodes map[int]geo.Location
		edges map[int]map[int]float64
	}{
		{"self loop", threeNodes(), map[int]map[int]float64{1: {1: 1}}},
		{"unknown node", threeNodes(), map[int]map[int]float64{1: {9: 1}}},
		{"zero weight", threeNodes(), map[int]map[int]float64{1: {2: 0}}},
		{"nan weight", threeNodes(), map[int]map[int]float64{1: {2: math.NaN()}}},
		{"bad node", map[int]geo.Location{1: {Lat: 100, Lng: 0}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newModel(t)
			require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{1: {2: 2}}))

			err := m.LoadSnapshot(tt.nodes, tt.edges)
			assert.ErrorIs(t, err, grid.ErrInvalidSnapshot)
			assert.True(t, m.IsJam(1, 2), "previous snapshot retained")
			assert.Equal(t, uint64(1), m.Revision())
		})
	}
}

func TestSnapshotIsSorted(t *testing.T) {
	m, _ := newModel(t)
	assert.False(t, m.Loaded())

	require.NoError(t, m.LoadSnapshot(threeNodes(), map[int]map[int]float64{
		3: {2: 1},
		2: {1: 1},
	}))

	snap := m.Snapshot()
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, grid.NodeID(1), snap.Nodes[0].ID)
	assert.Equal(t, grid.NodeID(3), snap.Nodes[2].ID)
	require.Len(t, snap.Edges, 2)
	assert.Equal(t, grid.Key(1, 2), snap.Edges[0].EdgeKey)
	assert.Equal(t, grid.Key(2, 3), snap.Edges[1].EdgeKey)
	assert.True(t, m.Loaded())

	n, ok := m.Node(2)
	require.True(t, ok)
	assert.Equal(t, geo.Location{Lat: 28.61, Lng: 77.20}, n.Location())
}
