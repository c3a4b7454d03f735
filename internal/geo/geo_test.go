package geo

import (
	"testing"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := Distance(40.0, -75.0, 40.0, -75.0); d != 0 {
		t.Errorf("Distance to self = %f, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(40.0, -75.0, 41.0, -74.0)
	b := Distance(41.0, -74.0, 40.0, -75.0)
	if a != b {
		t.Errorf("Distance not symmetric: %f vs %f", a, b)
	}
	if a <= 0 {
		t.Errorf("Distance between distinct points should be positive, got %f", a)
	}
}

func TestGridPatchForOutsideBoundsReturnsNil(t *testing.T) {
	box := BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	g := NewGrid(box, 0.1)
	if p := g.PatchFor(5, 5); p != nil {
		t.Errorf("PatchFor outside the bounding box should return nil, got %v", p)
	}
	if p := g.PatchFor(0.5, 0.5); p == nil {
		t.Errorf("PatchFor inside the bounding box should return a patch")
	}
}

func TestAddHouseholdAggregatesPatchPopulation(t *testing.T) {
	box := BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	g := NewGrid(box, 1.0)
	reg := place.NewRegistry(1)
	h1 := reg.Resolve(reg.Add("h1", place.Household, place.SubtypeNone, 0.1, 0.1, 0))
	h2 := reg.Resolve(reg.Add("h2", place.Household, place.SubtypeNone, 0.2, 0.2, 0))

	p1 := g.AddHousehold(h1, 3)
	p2 := g.AddHousehold(h2, 2)
	if p1 != p2 {
		t.Fatalf("both households in the same 1-degree cell should share a patch")
	}
	if p1.Population() != 5 {
		t.Errorf("patch population = %d, want 5", p1.Population())
	}
	if len(p1.Households()) != 2 {
		t.Errorf("patch households = %d, want 2", len(p1.Households()))
	}
}

func TestEachNonEmptyPatchSkipsZeroPopulation(t *testing.T) {
	box := BoundingBox{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 2}
	g := NewGrid(box, 1.0)
	reg := place.NewRegistry(1)
	h := reg.Resolve(reg.Add("h", place.Household, place.SubtypeNone, 0.5, 0.5, 0))
	g.AddHousehold(h, 4)
	// Touch an empty cell via PatchFor so it exists with zero population.
	g.PatchFor(1.5, 1.5)

	var seen int
	g.EachNonEmptyPatch(func(p *Patch) { seen++ })
	if seen != 1 {
		t.Errorf("EachNonEmptyPatch visited %d patches, want 1 (the empty one must be skipped)", seen)
	}
}

func TestHospitalCatchmentNearestAndCaching(t *testing.T) {
	reg := place.NewRegistry(1)
	near := reg.Resolve(reg.Add("near", place.Hospital, place.SubtypeNone, 10.0, 10.0, 0))
	far := reg.Resolve(reg.Add("far", place.Hospital, place.SubtypeNone, 50.0, 50.0, 0))

	c := NewHospitalCatchment(reg)
	h := c.NearestHospital(10.01, 10.01)
	if h != reg.HandleOf(near) {
		t.Errorf("NearestHospital did not pick the closer hospital")
	}

	// A second lookup in the same cache cell must hit the cache and still
	// return the same (correct) answer.
	h2 := c.NearestHospital(10.02, 10.02)
	if h2 != reg.HandleOf(near) {
		t.Errorf("cached NearestHospital lookup = %v, want the near hospital", h2)
	}

	farLookup := c.NearestHospital(49.99, 49.99)
	if farLookup != reg.HandleOf(far) {
		t.Errorf("NearestHospital near the far hospital should return it")
	}
}

func TestHospitalCatchmentEmptyRegistry(t *testing.T) {
	reg := place.NewRegistry(1)
	c := NewHospitalCatchment(reg)
	h := c.NearestHospital(0, 0)
	if h.Valid() {
		t.Errorf("NearestHospital on an empty registry should return an invalid handle")
	}
}
