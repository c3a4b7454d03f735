// Package geo implements the Spatial Grid (C1): two independent rectangular
// grids (regional and neighborhood) sharing geographic coordinate
// semantics, a point-to-patch lookup, and nearby/nearest queries used for
// hospital catchment and workplace reassignment.
//
// Grounded on original_source/src/Neighborhood_Layer.cc and
// original_source/src/Regional_Patch.h for the two-grid structure and the
// nearest-match query shape; expressed with plain Go slices/maps rather
// than the source's raw 2D arrays.
package geo

import (
	"math"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
)

// BoundingBox is the geographic extent derived from the input population.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether (lat, lon) falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Patch is one cell of a rectangular grid.
type Patch struct {
	Row, Col   int
	CenterLat  float64
	CenterLon  float64

	households  []*place.Place
	population  int
	neighborhood *place.Place // one per non-empty neighborhood cell

	// CDF/offset table for gravity-weighted destination sampling; filled in
	// by internal/gravity after construction (spec §4.3).
	GravityCDF     []float64
	GravityOffsets []patchKey
}

type patchKey struct{ Row, Col int }

// Households returns the households centered in this patch.
func (p *Patch) Households() []*place.Place { return p.households }

// Population returns the aggregated population size of this patch.
func (p *Patch) Population() int { return p.population }

// NeighborhoodPlace returns the one Neighborhood place owned by this patch,
// or nil if the patch is empty (spec §3 "Patch").
func (p *Patch) NeighborhoodPlace() *place.Place { return p.neighborhood }

// Grid is a rectangular grid of Patches over a bounding box with a fixed
// cell size.
type Grid struct {
	box      BoundingBox
	cellSize float64
	rows     int
	cols     int
	patches  [][]*Patch // [row][col]
}

// NewGrid builds an empty grid covering box with the given cell size
// (degrees). Households are added with Add; neighborhood places are
// attached separately via AttachNeighborhoodPlaces once population is
// known, mirroring the source's two-phase "read households, then derive
// neighborhood places" construction.
func NewGrid(box BoundingBox, cellSize float64) *Grid {
	rows := int(math.Ceil((box.MaxLat-box.MinLat)/cellSize)) + 1
	cols := int(math.Ceil((box.MaxLon-box.MinLon)/cellSize)) + 1
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	g := &Grid{box: box, cellSize: cellSize, rows: rows, cols: cols}
	g.patches = make([][]*Patch, rows)
	for r := range g.patches {
		g.patches[r] = make([]*Patch, cols)
	}
	return g
}

// RowColFor returns the (row, col) indices for a coordinate, per spec
// §4.1's row_col_for.
func (g *Grid) RowColFor(lat, lon float64) (row, col int) {
	row = int((lat - g.box.MinLat) / g.cellSize)
	col = int((lon - g.box.MinLon) / g.cellSize)
	return
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// PatchFor returns the patch containing (lat, lon), creating it on first
// use, or nil if the point is outside the grid's bounding box (spec
// §4.1's patch_for).
func (g *Grid) PatchFor(lat, lon float64) *Patch {
	if !g.box.Contains(lat, lon) {
		return nil
	}
	row, col := g.RowColFor(lat, lon)
	if !g.inBounds(row, col) {
		return nil
	}
	if g.patches[row][col] == nil {
		g.patches[row][col] = &Patch{
			Row: row, Col: col,
			CenterLat: g.box.MinLat + (float64(row)+0.5)*g.cellSize,
			CenterLon: g.box.MinLon + (float64(col)+0.5)*g.cellSize,
		}
	}
	return g.patches[row][col]
}

// AddHousehold registers a household in the patch for its coordinates,
// incrementing the patch's aggregated population. Returns the patch, or
// nil if the household's coordinates lie outside the grid (a data-integrity
// condition the caller should log, spec §7).
func (g *Grid) AddHousehold(h *place.Place, populationSize int) *Patch {
	lat, lon := h.Coordinates()
	p := g.PatchFor(lat, lon)
	if p == nil {
		return nil
	}
	p.households = append(p.households, h)
	p.population += populationSize
	return p
}

// EachNonEmptyPatch calls fn for every patch with positive population, in
// row-major order (deterministic iteration for gravity model construction).
func (g *Grid) EachNonEmptyPatch(fn func(p *Patch)) {
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			p := g.patches[r][c]
			if p != nil && p.population > 0 {
				fn(p)
			}
		}
	}
}

// AttachNeighborhoodPlace attaches the (already-registered) Neighborhood
// place that represents this patch, iff population is positive (spec §4.1
// "iff population is positive — owns one Neighborhood place").
func (p *Patch) AttachNeighborhoodPlace(pl *place.Place) {
	if p.population > 0 {
		p.neighborhood = pl
	}
}

// Distance returns the great-circle distance in kilometers between two
// patch centers (haversine), used by the gravity model and nearby-places
// queries.
func Distance(aLat, aLon, bLat, bLon float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(bLat - aLat)
	dLon := toRad(bLon - aLon)
	la1 := toRad(aLat)
	la2 := toRad(bLat)
	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	a := sinDLat*sinDLat + math.Cos(la1)*math.Cos(la2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// NearbyPlaces returns every place within radius km of (lat, lon) among the
// places in kindPlaces (typically all hospitals or all workplaces), used
// for hospital catchment (spec §4.1's nearby_places).
func NearbyPlaces(lat, lon, radius float64, kindPlaces []*place.Place) []*place.Place {
	var out []*place.Place
	for _, pl := range kindPlaces {
		plat, plon := pl.Coordinates()
		if Distance(lat, lon, plat, plon) <= radius {
			out = append(out, pl)
		}
	}
	return out
}

// NearestWorkplaceFor picks, among candidates, the workplace whose headcount
// is closest to staffTarget (spec §4.1's nearest_workplace_for), breaking
// ties by distance from (lat, lon). Returns nil if candidates is empty.
func NearestWorkplaceFor(lat, lon float64, staffTarget int, candidates []*place.Place) *place.Place {
	if len(candidates) == 0 {
		return nil
	}
	ranked := make([]*place.Place, len(candidates))
	copy(ranked, candidates)
	slices.SortFunc(ranked, func(a, b *place.Place) int {
		da := headcountDelta(a, staffTarget)
		db := headcountDelta(b, staffTarget)
		if da != db {
			return da - db
		}
		alat, alon := a.Coordinates()
		blat, blon := b.Coordinates()
		distA := Distance(lat, lon, alat, alon)
		distB := Distance(lat, lon, blat, blon)
		switch {
		case distA < distB:
			return -1
		case distA > distB:
			return 1
		default:
			return 0
		}
	})
	return ranked[0]
}

func headcountDelta(p *place.Place, target int) int {
	d := p.EnrolledCount() - target
	if d < 0 {
		return -d
	}
	return d
}

// HospitalCatchment picks the nearest hospital to a point, implementing
// schedule.HospitalPicker (spec §4.4's ad-hoc hospital visit and household
// visitation-hospital assignment). Grounded on NearestWorkplaceFor's
// candidate-ranking shape, simplified to pure distance since a hospital
// catchment has no staffing target to balance against.
type HospitalCatchment struct {
	registry *place.Registry
	cache    map[patchKey]place.PlaceHandle
	mu       sync.Mutex
}

// NewHospitalCatchment builds a catchment picker over every hospital
// currently in registry. Results are cached per grid cell at the catchment's
// own resolution to avoid re-scanning every hospital per call, since the
// hospital set never changes once a run starts (spec §3 "Lifecycles").
func NewHospitalCatchment(registry *place.Registry) *HospitalCatchment {
	return &HospitalCatchment{registry: registry, cache: make(map[patchKey]place.PlaceHandle)}
}

const hospitalCacheCellSize = 0.05 // degrees, ~5km — coarser than the neighborhood grid

// NearestHospital returns the registry handle of the closest hospital to
// (lat, lon), or an invalid handle if the registry has none.
func (c *HospitalCatchment) NearestHospital(lat, lon float64) place.PlaceHandle {
	key := patchKey{
		Row: int(lat / hospitalCacheCellSize),
		Col: int(lon / hospitalCacheCellSize),
	}
	c.mu.Lock()
	if h, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return h
	}
	c.mu.Unlock()

	hospitals := c.registry.Hospitals()
	if len(hospitals) == 0 {
		return place.PlaceHandle{}
	}
	best := hospitals[0]
	bestDist := math.MaxFloat64
	for _, h := range hospitals {
		hlat, hlon := h.Coordinates()
		d := Distance(lat, lon, hlat, hlon)
		if d < bestDist {
			bestDist = d
			best = h
		}
	}
	handle := c.registry.HandleOf(best)

	c.mu.Lock()
	c.cache[key] = handle
	c.mu.Unlock()
	return handle
}
