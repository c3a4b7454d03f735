package transmission

import (
	"math/rand"
	"testing"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
)

func setupHousehold(t *testing.T) (*place.Registry, *population.Population, *place.Place, *person.Person, *person.Person) {
	t.Helper()
	reg := place.NewRegistry(1)
	handle := reg.Add("house1", place.Household, place.SubtypeNone, 0, 0, 0)
	pl := reg.Resolve(handle)

	pop := population.New()
	infector := person.New(person.NewID(), 30, person.SexMale)
	infectee := person.New(person.NewID(), 28, person.SexFemale)
	pop.Add(infector)
	pop.Add(infectee)

	infector.Disease(0).Health = person.Infectious
	infector.Disease(0).ExposureDay = -5

	pl.MarkInfectious(0, 0, infector.ID())
	pl.JoinSusceptible(0, 0, infectee.ID())

	return reg, pop, pl, infector, infectee
}

func TestProcessPlaceClosedPlaceDoesNothing(t *testing.T) {
	reg, pop, pl, _, infectee := setupHousehold(t)
	pl.SetOpenClose(100, 0) // not open yet

	diseases := disease.Set{{Name: "flu", ContactProb: 1, Transmissibility: 1, TransmissionProb: 1}}
	diseases[0].ContactsPerDay[place.Household] = 5
	engine := New(diseases, reg, pop)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))
	if infectee.Disease(0).Health != person.Susceptible {
		t.Errorf("a closed place should never transmit, infectee health = %v", infectee.Disease(0).Health)
	}
}

func TestProcessPlaceZeroTransmissibilityGates(t *testing.T) {
	reg, pop, pl, _, infectee := setupHousehold(t)
	diseases := disease.Set{{Name: "flu", ContactProb: 1, Transmissibility: 0, TransmissionProb: 1}}
	diseases[0].ContactsPerDay[place.Household] = 5
	engine := New(diseases, reg, pop)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))
	if infectee.Disease(0).Health != person.Susceptible {
		t.Errorf("zero transmissibility should gate transmission entirely")
	}
}

func TestProcessPlacePairwiseHouseholdDeterministicExposure(t *testing.T) {
	reg, pop, pl, infector, infectee := setupHousehold(t)
	diseases := disease.Set{{
		Name:             "flu",
		ContactProb:      1.0,
		Transmissibility: 1.0,
		TransmissionProb: 1.0,
	}}
	diseases[0].ContactsPerDay[place.Household] = 5
	engine := New(diseases, reg, pop)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))

	if infectee.Disease(0).Health != person.Exposed {
		t.Fatalf("infectee health = %v, want Exposed (prob=1 pairwise trial must always succeed)", infectee.Disease(0).Health)
	}
	id, ok := infectee.Disease(0).Infector()
	if !ok || id != infector.ID() {
		t.Errorf("recorded infector = %v,%v want %v,true", id, ok, infector.ID())
	}
	if got := pl.ExposureCount(0); got != 1 {
		t.Errorf("place exposure count = %d, want 1", got)
	}
}

func TestProcessPlaceNoSusceptiblesOrInfectiousSkips(t *testing.T) {
	reg := place.NewRegistry(1)
	handle := reg.Add("empty house", place.Household, place.SubtypeNone, 0, 0, 0)
	pl := reg.Resolve(handle)
	pop := population.New()
	diseases := disease.Set{{Name: "flu", Transmissibility: 1, TransmissionProb: 1}}
	diseases[0].ContactsPerDay[place.Household] = 5
	engine := New(diseases, reg, pop)

	// Should not panic with empty visitor lists.
	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))
}

func TestContactRateAppliesWeekendNeighborhoodMultiplier(t *testing.T) {
	diseases := disease.Set{{
		Name:                          "flu",
		WeekendNeighborhoodMultiplier: 0.5,
	}}
	diseases[0].ContactsPerDay[place.Neighborhood] = 10
	engine := New(diseases, place.NewRegistry(1), population.New())

	weekday := engine.contactRate(diseases[0], place.Neighborhood, 1, false)
	weekend := engine.contactRate(diseases[0], place.Neighborhood, 1, true)
	if weekday != 10 {
		t.Errorf("weekday neighborhood contact rate = %f, want 10", weekday)
	}
	if weekend != 5 {
		t.Errorf("weekend neighborhood contact rate = %f, want 5", weekend)
	}

	// The weekend multiplier must not leak into other place kinds.
	diseases[0].ContactsPerDay[place.Workplace] = 10
	wpWeekend := engine.contactRate(diseases[0], place.Workplace, 1, true)
	if wpWeekend != 10 {
		t.Errorf("weekend multiplier leaked into workplace contact rate: got %f, want 10", wpWeekend)
	}
}

func TestBucketForCoversBoundaries(t *testing.T) {
	seen := make(map[AgeBucket]bool)
	for age := 0; age <= 100; age++ {
		seen[BucketFor(age)] = true
	}
	if len(seen) != NumAgeBuckets {
		t.Errorf("BucketFor should reach all %d buckets across ages 0-100, got %d", NumAgeBuckets, len(seen))
	}
}

func setupNeighborhood(t *testing.T, numInfectious, numSusceptible int) (*place.Registry, *population.Population, *place.Place, []person.ID, []person.ID) {
	t.Helper()
	reg := place.NewRegistry(1)
	handle := reg.Add("hood1", place.Neighborhood, place.SubtypeNone, 0, 0, numInfectious+numSusceptible)
	pl := reg.Resolve(handle)
	pop := population.New()

	var infectious, susceptible []person.ID
	for i := 0; i < numInfectious; i++ {
		h := person.New(person.NewID(), 30, person.SexMale)
		h.Disease(0).Health = person.Infectious
		h.Disease(0).ExposureDay = -5
		pop.Add(h)
		pl.MarkInfectious(0, 0, h.ID())
		infectious = append(infectious, h.ID())
	}
	for i := 0; i < numSusceptible; i++ {
		h := person.New(person.NewID(), 28, person.SexFemale)
		pop.Add(h)
		pl.JoinSusceptible(0, 0, h.ID())
		susceptible = append(susceptible, h.ID())
	}
	return reg, pop, pl, susceptible, infectious
}

func TestDensityLimitedCertainTransmissionExposesEveryoneOncePerSource(t *testing.T) {
	reg, pop, pl, _, _ := setupNeighborhood(t, 2, 4)
	diseases := disease.Set{{
		Name:                  "flu",
		Transmissibility:      1,
		TransmissionProb:      1,
		MaxInfecteesPerSource: 2,
	}}
	diseases[0].ContactsPerDay[place.Neighborhood] = 1
	diseases[0].DensityTransmissionEnabled = true
	engine := New(diseases, reg, pop)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))

	exposed := 0
	for _, per := range pop.All() {
		if per.Disease(0).Health == person.Exposed {
			exposed++
		}
	}
	if exposed != 4 {
		t.Errorf("contact_rate=1 over I=2 infectors with 2 infectees per source should expose all 4 susceptibles, got %d", exposed)
	}
}

func TestDensityLimitedZeroContactRateExposesNobody(t *testing.T) {
	reg, pop, pl, _, _ := setupNeighborhood(t, 1, 4)
	diseases := disease.Set{{Name: "flu", Transmissibility: 1, TransmissionProb: 1}}
	diseases[0].ContactsPerDay[place.Neighborhood] = 0
	diseases[0].DensityTransmissionEnabled = true
	engine := New(diseases, reg, pop)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))

	for _, per := range pop.All() {
		if per.Disease(0).Health == person.Exposed {
			t.Errorf("zero contact rate should never expose anyone")
		}
	}
}

type fakeVectorPopulation struct {
	infectiousVectors  int
	susceptibleVectors int
	infectVectorCalls  int
	advanceCalls       int
}

func (f *fakeVectorPopulation) Advance(pl *place.Place, day int) { f.advanceCalls++ }
func (f *fakeVectorPopulation) SusceptibleVectorCount(pl *place.Place, day int) int {
	return f.susceptibleVectors
}
func (f *fakeVectorPopulation) InfectiousVectorCount(pl *place.Place, day int) int {
	return f.infectiousVectors
}
func (f *fakeVectorPopulation) InfectVector(pl *place.Place, day int, r *rand.Rand) {
	f.infectVectorCalls++
}

func TestProcessPlaceDispatchesToVectorModelWhenInstalled(t *testing.T) {
	reg, pop, pl, _, _ := setupNeighborhood(t, 1, 4)
	diseases := disease.Set{{
		Name:                         "dengue",
		Transmissibility:             1,
		TransmissionProb:             1,
		VectorBiteRate:               10,
		VectorInfectionEfficiency:    1,
		VectorTransmissionEfficiency: 1,
	}}
	diseases[0].ContactsPerDay[place.Neighborhood] = 5
	engine := New(diseases, reg, pop)
	fake := &fakeVectorPopulation{susceptibleVectors: 10, infectiousVectors: 10}
	engine.SetVectorPopulation(fake)

	engine.ProcessPlace(pl, 0, 0, 1, 0, false, rng.NewStream(1, 0))

	if fake.advanceCalls == 0 {
		t.Errorf("installing a VectorPopulation should route ProcessPlace through VectorModel (Advance was never called)")
	}

	exposed := 0
	for _, per := range pop.All() {
		if per.Disease(0).Health == person.Exposed {
			exposed++
		}
	}
	if exposed == 0 {
		t.Errorf("a saturated infectious vector pool with efficiency=1 should expose at least one susceptible host")
	}
}
