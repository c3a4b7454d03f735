// Package gravity implements the Gravity Model (C3): a per-neighborhood-
// patch cdf over other patches for "neighborhood visited today" sampling,
// built once after population load.
//
// Grounded on original_source/src/Neighborhood_Layer.cc's
// setup_gravity_model/setup_null_gravity_model: raw weight
// pop(d)^alpha / (1 + (dist/min_distance)^beta), top-K by weight, normalize,
// prefix-sum into a cdf; and the degenerate single-cdf "no geography" mode
// when max_distance signals it should be skipped.
package gravity

import (
	"math"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/geo"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
)

// NoGeography is the max_distance sentinel that selects the degenerate
// "single cdf weighted purely by population" mode (spec §4.3).
const NoGeography = -1.0

// Params configures the gravity model build (spec §6 "Parameters").
type Params struct {
	MaxDistance    float64 // km; NoGeography selects the degenerate mode
	MaxDestinations int
	Alpha           float64 // population exponent
	Beta            float64 // distance exponent
	MinDistance     float64
}

// Model is the built gravity model: either a real per-source cdf table, or
// the degenerate single shared cdf.
type Model struct {
	params Params
	// perSource maps a source patch to its destination list + cdf. Absent
	// in degenerate mode.
	perSource map[*geo.Patch]*cdfEntry
	// shared is the single cdf used in degenerate mode.
	shared *cdfEntry
}

type cdfEntry struct {
	destinations []*geo.Patch
	cdf          []float64
}

// Build constructs the gravity model from every non-empty patch in g (spec
// §4.3).
func Build(g *geo.Grid, params Params) *Model {
	m := &Model{params: params}
	var nonEmpty []*geo.Patch
	g.EachNonEmptyPatch(func(p *geo.Patch) { nonEmpty = append(nonEmpty, p) })

	if params.MaxDistance == NoGeography {
		m.shared = buildNullCDF(nonEmpty)
		return m
	}

	m.perSource = make(map[*geo.Patch]*cdfEntry, len(nonEmpty))
	for _, src := range nonEmpty {
		m.perSource[src] = buildSourceCDF(src, nonEmpty, params)
	}
	return m
}

type weighted struct {
	patch  *geo.Patch
	weight float64
}

func buildSourceCDF(src *geo.Patch, allPatches []*geo.Patch, params Params) *cdfEntry {
	var candidates []weighted
	for _, dst := range allPatches {
		if dst.Population() <= 0 {
			continue
		}
		dist := geo.Distance(src.CenterLat, src.CenterLon, dst.CenterLat, dst.CenterLon)
		if dist > params.MaxDistance {
			continue
		}
		minDist := params.MinDistance
		if minDist <= 0 {
			minDist = 1
		}
		w := math.Pow(float64(dst.Population()), params.Alpha) /
			(1 + math.Pow(dist/minDist, params.Beta))
		candidates = append(candidates, weighted{patch: dst, weight: w})
	}
	slices.SortFunc(candidates, func(a, b weighted) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		default:
			return 0
		}
	})
	if params.MaxDestinations > 0 && len(candidates) > params.MaxDestinations {
		candidates = candidates[:params.MaxDestinations]
	}
	return normalize(candidates)
}

func buildNullCDF(allPatches []*geo.Patch) *cdfEntry {
	var candidates []weighted
	for _, dst := range allPatches {
		if dst.Population() <= 0 {
			continue
		}
		candidates = append(candidates, weighted{patch: dst, weight: float64(dst.Population())})
	}
	return normalize(candidates)
}

func normalize(candidates []weighted) *cdfEntry {
	var total float64
	for _, c := range candidates {
		total += c.weight
	}
	e := &cdfEntry{}
	if total <= 0 {
		return e
	}
	running := 0.0
	for _, c := range candidates {
		running += c.weight / total
		e.destinations = append(e.destinations, c.patch)
		e.cdf = append(e.cdf, running)
	}
	// Force the last entry to exactly 1.0 to guard against float drift
	// (spec §8 invariant 7: cdf terminates at 1.0 +/- 1e-9).
	if len(e.cdf) > 0 {
		e.cdf[len(e.cdf)-1] = 1.0
	}
	return e
}

// SampleDestination draws a destination patch using one uniform draw over
// the source patch's cumulative array (spec §4.3's sample_destination). In
// degenerate mode, src is ignored and every agent samples the same shared
// distribution.
func (m *Model) SampleDestination(src *geo.Patch, stream *rng.Stream) *geo.Patch {
	var entry *cdfEntry
	if m.shared != nil {
		entry = m.shared
	} else {
		entry = m.perSource[src]
	}
	if entry == nil || len(entry.cdf) == 0 {
		return src
	}
	u := stream.Float64()
	idx := sort.SearchFloat64s(entry.cdf, u)
	if idx >= len(entry.destinations) {
		idx = len(entry.destinations) - 1
	}
	return entry.destinations[idx]
}

// CDFFor exposes a source patch's raw cdf/destinations, for testing and
// for §8's "monotone nondecreasing, terminates at 1.0" invariant checks.
func (m *Model) CDFFor(src *geo.Patch) (destinations []*geo.Patch, cdf []float64) {
	var entry *cdfEntry
	if m.shared != nil {
		entry = m.shared
	} else {
		entry = m.perSource[src]
	}
	if entry == nil {
		return nil, nil
	}
	return entry.destinations, entry.cdf
}
