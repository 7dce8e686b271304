// Package fleet keeps the roster of visible vehicles. Every snapshot replaces the roster.
package fleet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/protocol"
)

// ErrInvalidSnapshot is returned when a roster snapshot is rejected as a whole.
var ErrInvalidSnapshot = errors.New("invalid fleet snapshot")

// NearbyPrecision is the geohash length used by CountNear (cells of roughly 1.2 x 0.6 km).
const NearbyPrecision = 6

// Entry is one visible vehicle.
type Entry struct {
	ID         protocol.ID `json:"id"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
	TargetNode *int        `json:"target_node,omitempty"`
	Moving     bool        `json:"moving"`
}

// Location returns the vehicle position.
func (e Entry) Location() geo.Location {
	return geo.Location{Lat: e.Lat, Lng: e.Lng}
}

// indexed adapts an Entry to the R-tree.
type indexed struct {
	entry Entry
}

func (i indexed) Bounds() rtreego.Rect {
	return rtreego.Point{i.entry.Lat, i.entry.Lng}.ToRect(1e-9)
}

// Roster is the fleet view. It is not safe for concurrent use.
type Roster struct {
	logger zerolog.Logger

	entries  []Entry // sorted by id
	byID     map[protocol.ID]int
	tree     *rtreego.Rtree
	cells    map[string]int
	revision uint64
}

// NewRoster returns an empty roster.
func NewRoster(logger zerolog.Logger) *Roster {
	return &Roster{
		logger: logger.With().Str("component", "fleet").Logger(),
		byID:   make(map[protocol.ID]int),
		cells:  make(map[string]int),
	}
}

// ReplaceAll swaps the roster for vehicles. If any vehicle is invalid the snapshot is
// rejected and the roster is unchanged. Duplicate ids keep the last occurrence.
func (r *Roster) ReplaceAll(vehicles []protocol.Vehicle) error {
	latest := make(map[protocol.ID]Entry, len(vehicles))
	for i, v := range vehicles {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: vehicle %d: %v", ErrInvalidSnapshot, i, err)
		}
		if _, dup := latest[v.ID]; dup {
			r.logger.Warn().Str("id", v.ID.String()).Msg("duplicate vehicle id in snapshot, keeping the last")
		}
		latest[v.ID] = Entry{
			ID:         v.ID,
			Lat:        v.Lat,
			Lng:        v.Lng,
			TargetNode: copyInt(v.TargetNode),
			Moving:     v.Moving,
		}
	}

	entries := make([]Entry, 0, len(latest))
	for _, e := range latest {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID.Less(entries[j].ID) })

	byID := make(map[protocol.ID]int, len(entries))
	objs := make([]rtreego.Spatial, 0, len(entries))
	cells := make(map[string]int)
	for i, e := range entries {
		byID[e.ID] = i
		objs = append(objs, indexed{entry: e})
		cells[geohash.EncodeWithPrecision(e.Lat, e.Lng, NearbyPrecision)]++
	}

	r.entries = entries
	r.byID = byID
	r.tree = rtreego.NewTree(2, 25, 50, objs...)
	r.cells = cells
	r.revision++
	return nil
}

// Entries returns the roster sorted by id.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		e.TargetNode = copyInt(e.TargetNode)
		out[i] = e
	}
	return out
}

// Get returns the vehicle with id.
func (r *Roster) Get(id protocol.ID) (Entry, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	e := r.entries[i]
	e.TargetNode = copyInt(e.TargetNode)
	return e, true
}

// Len returns the number of vehicles.
func (r *Roster) Len() int {
	return len(r.entries)
}

// Revision counts applied snapshots.
func (r *Roster) Revision() uint64 {
	return r.revision
}

// Nearest returns up to k vehicles closest to loc, nearest first.
func (r *Roster) Nearest(loc geo.Location, k int) []Entry {
	if r.tree == nil || k <= 0 || len(r.entries) == 0 {
		return nil
	}
	if k > len(r.entries) {
		k = len(r.entries)
	}

	found := r.tree.NearestNeighbors(k, rtreego.Point{loc.Lat, loc.Lng})
	out := make([]Entry, 0, len(found))
	for _, s := range found {
		if s == nil {
			continue
		}
		out = append(out, s.(indexed).entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return geo.DistanceKm(loc, out[i].Location()) < geo.DistanceKm(loc, out[j].Location())
	})
	return out
}

// CountNear returns how many vehicles are in loc's geohash cell or one of its neighbours.
func (r *Roster) CountNear(loc geo.Location) int {
	if len(r.cells) == 0 {
		return 0
	}
	cell := geohash.EncodeWithPrecision(loc.Lat, loc.Lng, NearbyPrecision)
	n := r.cells[cell]
	for _, neighbour := range geohash.Neighbors(cell) {
		n += r.cells[neighbour]
	}
	return n
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
