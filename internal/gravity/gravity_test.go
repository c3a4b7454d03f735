package gravity

import (
	"fmt"
	"testing"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/geo"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
)

func buildTestGrid(t *testing.T) *geo.Grid {
	t.Helper()
	box := geo.BoundingBox{MinLat: 0, MaxLat: 5, MinLon: 0, MaxLon: 5}
	g := geo.NewGrid(box, 1.0)
	reg := place.NewRegistry(1)
	pops := []struct {
		lat, lon float64
		pop      int
	}{
		{0.5, 0.5, 100},
		{1.5, 1.5, 50},
		{3.5, 3.5, 200},
	}
	for i, pp := range pops {
		h := reg.Resolve(reg.Add(fmt.Sprintf("h%d", i), place.Household, place.SubtypeNone, pp.lat, pp.lon, 0))
		g.AddHousehold(h, pp.pop)
	}
	return g
}

func TestCDFMonotoneAndTerminatesAtOne(t *testing.T) {
	g := buildTestGrid(t)
	m := Build(g, Params{MaxDistance: 1000, MaxDestinations: 10, Alpha: 1, Beta: 1, MinDistance: 1})

	var src *geo.Patch
	g.EachNonEmptyPatch(func(p *geo.Patch) {
		if src == nil {
			src = p
		}
	})
	if src == nil {
		t.Fatalf("expected at least one non-empty patch")
	}

	_, cdf := m.CDFFor(src)
	if len(cdf) == 0 {
		t.Fatalf("expected a non-empty cdf")
	}
	for i := 1; i < len(cdf); i++ {
		if cdf[i] < cdf[i-1] {
			t.Errorf("cdf not monotone nondecreasing at index %d: %f < %f", i, cdf[i], cdf[i-1])
		}
	}
	last := cdf[len(cdf)-1]
	if diff := last - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cdf should terminate at 1.0 +/- 1e-9, got %f", last)
	}
}

func TestMaxDestinationsTruncatesCandidates(t *testing.T) {
	g := buildTestGrid(t)
	m := Build(g, Params{MaxDistance: 1000, MaxDestinations: 1, Alpha: 1, Beta: 1, MinDistance: 1})

	var src *geo.Patch
	g.EachNonEmptyPatch(func(p *geo.Patch) {
		if src == nil {
			src = p
		}
	})
	destinations, _ := m.CDFFor(src)
	if len(destinations) > 1 {
		t.Errorf("MaxDestinations=1 should cap the candidate list, got %d", len(destinations))
	}
}

func TestSampleDestinationAlwaysTerminates(t *testing.T) {
	g := buildTestGrid(t)
	m := Build(g, Params{MaxDistance: 1000, MaxDestinations: 10, Alpha: 1, Beta: 1, MinDistance: 1})
	stream := rng.NewStream(42, 0)

	var src *geo.Patch
	g.EachNonEmptyPatch(func(p *geo.Patch) {
		if src == nil {
			src = p
		}
	})
	for i := 0; i < 100; i++ {
		dst := m.SampleDestination(src, stream)
		if dst == nil {
			t.Fatalf("SampleDestination returned nil on iteration %d", i)
		}
	}
}

func TestDegenerateNoGeographyModeSharesOneCDF(t *testing.T) {
	g := buildTestGrid(t)
	m := Build(g, Params{MaxDistance: NoGeography})

	var patches []*geo.Patch
	g.EachNonEmptyPatch(func(p *geo.Patch) { patches = append(patches, p) })
	if len(patches) < 2 {
		t.Fatalf("need at least 2 non-empty patches for this test")
	}
	d1, c1 := m.CDFFor(patches[0])
	d2, c2 := m.CDFFor(patches[1])
	if len(d1) != len(d2) || len(c1) != len(c2) {
		t.Errorf("degenerate mode should return the same shared cdf regardless of source patch")
	}
}
