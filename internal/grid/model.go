// Package grid holds the client's read-only view of the server's traffic graph.
//
// Edges are undirected. Both directions of an edge share one canonical key, and the jam flag
// is always computed from the weight.
package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/protocol"
)

// ErrInvalidSnapshot is returned when a grid snapshot is rejected as a whole.
var ErrInvalidSnapshot = errors.New("invalid grid snapshot")

// JamThreshold is the baseline traversal weight. Heavier edges are jammed.
const JamThreshold = 1.0

// NodeID identifies a grid node.
type NodeID int

// Node is a grid vertex.
type Node struct {
	ID  NodeID  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location returns the node position.
func (n Node) Location() geo.Location {
	return geo.Location{Lat: n.Lat, Lng: n.Lng}
}

// EdgeKey is the canonical key of an undirected edge, with U <= V.
type EdgeKey struct {
	U NodeID `json:"u"`
	V NodeID `json:"v"`
}

// Key returns the canonical key for the pair in either order.
func Key(u, v NodeID) EdgeKey {
	if u > v {
		u, v = v, u
	}
	return EdgeKey{U: u, V: v}
}

// Edge is an edge with its current weight.
type Edge struct {
	EdgeKey
	Weight float64 `json:"weight"`
}

// IsJam reports whether the edge is congested.
func (e Edge) IsJam() bool {
	return e.Weight > JamThreshold
}

// Emitter sends commands to the backend.
type Emitter interface {
	Send(ctx context.Context, event string, payload any) error
}

// Config configures a Model.
type Config struct {
	Emitter Emitter
	Logger  zerolog.Logger
}

// Model is the traffic grid. It is not safe for concurrent use.
type Model struct {
	emitter Emitter
	logger  zerolog.Logger

	nodes    map[NodeID]Node
	weights  map[EdgeKey]float64
	revision uint64
}

// NewModel returns an empty model.
func NewModel(cfg Config) *Model {
	return &Model{
		emitter: cfg.Emitter,
		logger:  cfg.Logger.With().Str("component", "grid").Logger(),
		nodes:   make(map[NodeID]Node),
		weights: make(map[EdgeKey]float64),
	}
}

// LoadSnapshot replaces the whole graph. A snapshot with a bad node or edge is rejected and
// leaves the model unchanged. If the two directions of an edge disagree, the heavier weight
// is kept and an integrity warning is logged.
func (m *Model) LoadSnapshot(nodes map[int]geo.Location, edges map[int]map[int]float64) error {
	nextNodes := make(map[NodeID]Node, len(nodes))
	for id, loc := range nodes {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("%w: node %d: %v", ErrInvalidSnapshot, id, err)
		}
		nextNodes[NodeID(id)] = Node{ID: NodeID(id), Lat: loc.Lat, Lng: loc.Lng}
	}

	nextWeights := make(map[EdgeKey]float64)
	mismatches := 0
	for u, row := range edges {
		for v, w := range row {
			if u == v {
				return fmt.Errorf("%w: self loop on node %d", ErrInvalidSnapshot, u)
			}
			if _, ok := nextNodes[NodeID(u)]; !ok {
				return fmt.Errorf("%w: edge %d-%d references unknown node %d", ErrInvalidSnapshot, u, v, u)
			}
			if _, ok := nextNodes[NodeID(v)]; !ok {
				return fmt.Errorf("%w: edge %d-%d references unknown node %d", ErrInvalidSnapshot, u, v, v)
			}
			if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
				return fmt.Errorf("%w: edge %d-%d has weight %v", ErrInvalidSnapshot, u, v, w)
			}

			key := Key(NodeID(u), NodeID(v))
			if prev, ok := nextWeights[key]; ok {
				if prev != w {
					mismatches++
					m.logger.Warn().
						Int("u", int(key.U)).
						Int("v", int(key.V)).
						Float64("weight_a", prev).
						Float64("weight_b", w).
						Msg("asymmetric edge weights in grid snapshot, keeping the heavier")
				}
				w = math.Max(prev, w)
			}
			nextWeights[key] = w
		}
	}

	m.nodes = nextNodes
	m.weights = nextWeights
	m.revision++

	m.logger.Debug().
		Int("nodes", len(nextNodes)).
		Int("edges", len(nextWeights)).
		Int("asymmetric", mismatches).
		Uint64("revision", m.revision).
		Msg("grid snapshot loaded")
	return nil
}

// ToggleEdge asks the server to flip the edge's congestion. The ids are sent exactly as given
// and the local weight is left alone until the next snapshot.
func (m *Model) ToggleEdge(ctx context.Context, u, v NodeID) error {
	if m.emitter == nil {
		return errors.New("grid has no emitter")
	}
	payload := protocol.ToggleTrafficPayload{U: int(u), V: int(v)}
	if err := m.emitter.Send(ctx, protocol.EventToggleTraffic, payload); err != nil {
		return fmt.Errorf("sending %s: %w", protocol.EventToggleTraffic, err)
	}
	return nil
}

// Weight returns the weight of the edge between u and v in either order.
func (m *Model) Weight(u, v NodeID) (float64, bool) {
	w, ok := m.weights[Key(u, v)]
	return w, ok
}

// HasEdge reports whether u and v are connected.
func (m *Model) HasEdge(u, v NodeID) bool {
	_, ok := m.weights[Key(u, v)]
	return ok
}

// IsJam reports whether the edge between u and v is congested. Unknown edges are not jammed.
func (m *Model) IsJam(u, v NodeID) bool {
	w, ok := m.Weight(u, v)
	return ok && w > JamThreshold
}

// Node returns a node by id.
func (m *Model) Node(id NodeID) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by id.
func (m *Model) Nodes() []Node {
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by key.
func (m *Model) Edges() []Edge {
	out := make([]Edge, 0, len(m.weights))
	for k, w := range m.weights {
		out = append(out, Edge{EdgeKey: k, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].U != out[j].U {
			return out[i].U < out[j].U
		}
		return out[i].V < out[j].V
	})
	return out
}

// JamCount returns the number of congested edges.
func (m *Model) JamCount() int {
	n := 0
	for _, w := range m.weights {
		if w > JamThreshold {
			n++
		}
	}
	return n
}

// Loaded reports whether any snapshot has been applied.
func (m *Model) Loaded() bool {
	return m.revision > 0
}

// Revision counts applied snapshots.
func (m *Model) Revision() uint64 {
	return m.revision
}

// Snapshot is an immutable copy of the grid.
type Snapshot struct {
	Revision uint64 `json:"revision"`
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
}

// Snapshot copies the current grid.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{Revision: m.revision, Nodes: m.Nodes(), Edges: m.Edges()}
}
