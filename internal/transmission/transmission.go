// Package transmission implements the Transmission Engine (C5): given a
// place's merged susceptible/infectious visitor lists for one disease on
// one day, decide which susceptible visitors become exposed.
//
// Five models dispatch by place type and configuration (spec §4.5):
// Default (Poisson-sized contact draw per infector, grounded on
// transmission_model.go's poissonTransmitter/TransmissionSize), Pairwise
// (independent Bernoulli trial per infector-susceptible pair, for
// households, grounded on interhost_process.go's per-neighbor Binomial
// trial), Density-limited (neighborhood contact count scaled by local
// density, capped per infector, grounded on spreader.go's per-event
// Binomial gate plus a swap-remove candidate pool so no two infectors claim
// the same contact twice), Age-structured (a per-age-bucket contact-
// probability matrix, grounded on intrahost_process.go's
// rv.Multinomial-over-transition-probabilities dispatch pattern), and
// Vector (two-stage host->vector->host, selected over every other model
// for every place once a VectorPopulation collaborator is installed via
// SetVectorPopulation, per spec §4.5's "Any place, if vector transmission
// enabled" dispatch row).
package transmission

import (
	"math"
	"math/rand"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"

	rv "github.com/kentwait/randomvariate"
)

// AgeBucket indexes the age-structured contact matrix (spec §4.5's
// age-structured model). Four buckets mirror the common preschool/school-
// age/adult/senior stratification the source's age-specific contact
// patterns use.
type AgeBucket int

const (
	BucketPreschool AgeBucket = iota
	BucketSchoolAge
	BucketAdult
	BucketSenior
	numAgeBuckets
)

// NumAgeBuckets is the fixed size of the age-structured contact matrix.
const NumAgeBuckets = int(numAgeBuckets)

// BucketFor classifies an age into its contact-matrix bucket.
func BucketFor(age int) AgeBucket {
	switch {
	case age < 5:
		return BucketPreschool
	case age < 18:
		return BucketSchoolAge
	case age < 65:
		return BucketAdult
	default:
		return BucketSenior
	}
}

// ContactMatrix is a per-age-bucket contact-probability table for the
// age-structured model (spec §4.5). A missing (undefined) row or column is
// represented by leaving it at its zero value, which this package treats as
// "no contact" rather than an error (SPEC_FULL.md §13 Open Question
// decision: p[i][j]=0 is conservative and keeps the model total well
// defined with partially specified data).
type ContactMatrix [NumAgeBuckets][NumAgeBuckets]float64

// Engine runs the Transmission Engine for one simulation day (spec §4.5).
// One Engine is shared read-only across partitions; it holds no per-call
// mutable state itself (the Place phase calls ProcessPlace once per
// registered-infectious place, single-threaded per place but places are
// processed in parallel across partitions).
type Engine struct {
	diseases      disease.Set
	ageMatrix     ContactMatrix
	hasAgeMatrix  bool
	registry      *place.Registry
	pop           *population.Population
	vectors       VectorPopulation
}

// New builds a Transmission Engine over the configured diseases.
func New(diseases disease.Set, registry *place.Registry, pop *population.Population) *Engine {
	return &Engine{diseases: diseases, registry: registry, pop: pop}
}

// SetAgeContactMatrix installs the age-structured contact matrix used when
// a disease's AgeStructuredEnabled flag is set.
func (e *Engine) SetAgeContactMatrix(m ContactMatrix) {
	e.ageMatrix = m
	e.hasAgeMatrix = true
}

// SetVectorPopulation installs the vector-borne transmission collaborator
// (spec §4.5's "Any place, if vector transmission enabled" dispatch row).
// ProcessPlace routes every place to VectorModel instead of the
// host/place-type dispatch table whenever a VectorPopulation is installed;
// leaving it nil (the default) disables vector transmission entirely.
func (e *Engine) SetVectorPopulation(vectors VectorPopulation) {
	e.vectors = vectors
}

// ProcessPlace runs transmission for one place, one disease, one day: it
// gates on place closure, zero transmissibility or transmission
// probability, and an empty susceptible or infectious list, records the
// place's first/last infectious day, then dispatches to the model selected
// by the disease's configuration and the place's type (spec §4.5's
// dispatch table).
func (e *Engine) ProcessPlace(pl *place.Place, diseaseIdx, day, dayOfYear, partition int, isWeekend bool, stream *rng.Stream) {
	if diseaseIdx < 0 || diseaseIdx >= len(e.diseases) {
		return
	}
	params := e.diseases[diseaseIdx]

	if !pl.ShouldBeOpen(day, diseaseIdx) {
		return
	}
	if params.Transmissibility <= 0 || params.TransmissionProb <= 0 {
		return
	}

	susceptible, infectious := pl.VisitorsToday(diseaseIdx)
	if len(susceptible) == 0 || len(infectious) == 0 {
		return
	}

	pl.RecordInfectiousDay(diseaseIdx, day)

	if e.vectors != nil {
		e.VectorModel(pl, diseaseIdx, day, susceptible, infectious, e.vectors, stream)
		return
	}

	contactRate := e.contactRate(params, pl.Kind(), dayOfYear, isWeekend)
	if contactRate <= 0 {
		return
	}

	switch {
	case pl.Kind() == place.Household:
		e.pairwise(pl, diseaseIdx, day, params, susceptible, infectious, contactRate, stream)
	case pl.Kind() == place.Neighborhood && params.DensityTransmissionEnabled:
		e.densityLimited(pl, diseaseIdx, day, params, susceptible, infectious, contactRate, stream)
	case params.AgeStructuredEnabled && e.hasAgeMatrix:
		e.ageStructured(pl, diseaseIdx, day, params, susceptible, infectious, stream)
	default:
		e.defaultModel(pl, diseaseIdx, day, params, susceptible, infectious, contactRate, stream)
	}
}

// contactRate computes the base-contacts-per-day times seasonality, with
// the weekend neighborhood multiplier applied only to neighborhood places
// (spec §4.5 "Contact rate"). isWeekend is decided by the caller's
// calendar.Calendar, the same authority the scheduler uses, so the Agent
// and Place phases never disagree about which days are weekends.
func (e *Engine) contactRate(params *disease.Params, kind place.Kind, dayOfYear int, isWeekend bool) float64 {
	rate := params.ContactsPerDay[kind]
	rate *= params.Seasonality(dayOfYear)
	if kind == place.Neighborhood && isWeekend {
		rate *= params.WeekendNeighborhoodMultiplier
	}
	return rate
}

func (e *Engine) infectivityOf(infector *person.Person, diseaseIdx, day int, params *disease.Params) float64 {
	d := infector.Disease(diseaseIdx)
	daysSince := day - d.ExposureDay
	if params.Model != nil {
		return params.Model.Infectivity(daysSince)
	}
	return 1.0
}

func (e *Engine) susceptibilityOf(infectee *person.Person, diseaseIdx int, params *disease.Params) float64 {
	if params.Model != nil {
		return params.Model.Susceptibility()
	}
	return 1.0
}

// expose transitions infectee to Exposed and records the exposure against
// pl for the per-place report (spec §6 "Per-place reports: total
// infections"). infectorID may be the zero person.ID for vector-attributed
// exposures, which have no single human infector.
func (e *Engine) expose(pl *place.Place, infectee *person.Person, diseaseIdx, day int, infectorID person.ID) {
	if infectee.BecomeExposed(diseaseIdx, day, infectorID) {
		pl.RecordExposure(diseaseIdx)
	}
}

// defaultModel is the Chao-style model: each infector draws a
// Poisson-distributed number of contacts at contactRate, and each contact
// samples a target index uniformly from [0, max(N-1, |susceptibles|)),
// where N is the place's capacity (spec §4.5 "Default model" step 3). When
// the drawn index falls outside the visible susceptible list the contact
// is wasted — this intentionally models contacts with the larger,
// not-currently-susceptible population sharing the place. Self-selection
// is rejected and the contact redrawn once; if no other target exists the
// contact is skipped. Each surviving contact independently undergoes a
// Bernoulli transmission trial.
func (e *Engine) defaultModel(pl *place.Place, diseaseIdx, day int, params *disease.Params, susceptible, infectious []person.ID, contactRate float64, stream *rng.Stream) {
	if len(susceptible) == 0 {
		return
	}
	sampleRange := len(susceptible)
	if capacity := pl.Capacity(); capacity-1 > sampleRange {
		sampleRange = capacity - 1
	}

	infectedByEvent := 0
	for _, infectorID := range infectious {
		if params.MaxInfecteesPerSource > 0 && infectedByEvent >= params.MaxInfecteesPerSource*len(infectious) {
			break
		}
		infector := e.pop.Get(infectorID)
		if infector == nil || !infector.Alive() {
			continue
		}
		numContacts := rv.Poisson(contactRate)
		if numContacts <= 0 {
			continue
		}
		infectivity := e.infectivityOf(infector, diseaseIdx, day, params)
		for c := 0; c < numContacts; c++ {
			targetID, ok := e.sampleDefaultContact(infectorID, susceptible, sampleRange, stream)
			if !ok {
				continue
			}
			infectee := e.pop.Get(targetID)
			if infectee == nil || !infectee.Alive() {
				continue
			}
			prob := params.TransmissionProb * params.Transmissibility * infectivity * e.susceptibilityOf(infectee, diseaseIdx, params)
			if clamp01(prob) <= 0 {
				continue
			}
			if rv.Binomial(1, clamp01(prob)) == 1.0 {
				e.expose(pl, infectee, diseaseIdx, day, infector.ID())
				infectedByEvent++
			}
		}
	}
}

// sampleDefaultContact draws one contact's target index uniformly from
// [0, sampleRange) and maps it back into the visible susceptible list,
// per spec §4.5 "Default model" step 3. An index at or beyond
// len(susceptible) is a wasted contact (ok=false, no redraw — the spec
// only calls for a redraw on self-selection). A self-selected draw is
// redrawn once; if susceptible has no other member the contact is
// skipped.
func (e *Engine) sampleDefaultContact(infectorID person.ID, susceptible []person.ID, sampleRange int, stream *rng.Stream) (person.ID, bool) {
	var none person.ID
	if sampleRange <= 0 {
		return none, false
	}
	idx := stream.Intn(sampleRange)
	if idx >= len(susceptible) {
		return none, false
	}
	targetID := susceptible[idx]
	if targetID != infectorID {
		return targetID, true
	}
	if len(susceptible) <= 1 {
		return none, false
	}
	idx = stream.Intn(sampleRange)
	if idx >= len(susceptible) {
		return none, false
	}
	targetID = susceptible[idx]
	if targetID == infectorID {
		return none, false
	}
	return targetID, true
}

// pairwise tests every infector-susceptible pair independently, for
// households where the assumption of uniform intra-household mixing is
// realistic at the small group sizes households have (spec §4.5 "Pairwise
// model"). Grounded on interhost_process.go's per-neighbor independent
// Binomial trial.
func (e *Engine) pairwise(pl *place.Place, diseaseIdx, day int, params *disease.Params, susceptible, infectious []person.ID, contactRate float64, stream *rng.Stream) {
	for _, infectorID := range infectious {
		infector := e.pop.Get(infectorID)
		if infector == nil || !infector.Alive() {
			continue
		}
		infectivity := e.infectivityOf(infector, diseaseIdx, day, params)
		for _, susID := range susceptible {
			if susID == infectorID {
				continue
			}
			infectee := e.pop.Get(susID)
			if infectee == nil || !infectee.Alive() {
				continue
			}
			prob := params.ContactProb * params.Transmissibility * infectivity * e.susceptibilityOf(infectee, diseaseIdx, params)
			if clamp01(prob) <= 0 {
				continue
			}
			if rv.Binomial(1, clamp01(prob)) == 1.0 {
				e.expose(pl, infectee, diseaseIdx, day, infector.ID())
			}
		}
	}
}

// densityLimited implements spec §4.5's "Density-limited model" exactly:
// per-host infection probability is `1 - (1 - contact_rate)^I` where I is
// the infectious-visitor count; the integer exposure count is
// `floor(S*p) + Bernoulli(fraction)`; targets are drawn without
// replacement from a pre-shuffled susceptible list; and for each exposure
// the infector is picked uniformly at random from the infector pool, which
// swap-removes an infector once it reaches MaxInfecteesPerSource
// (SPEC_FULL.md §13 Open Question #2: this saturating swap-remove is
// preserved from the source rather than smoothed into a cleaner
// representation, to keep attack rates comparable).
func (e *Engine) densityLimited(pl *place.Place, diseaseIdx, day int, params *disease.Params, susceptible, infectious []person.ID, contactRate float64, stream *rng.Stream) {
	if len(susceptible) == 0 || len(infectious) == 0 {
		return
	}

	infectionProb := 1 - math.Pow(1-clamp01(contactRate), float64(len(infectious)))
	if infectionProb <= 0 {
		return
	}

	expected := infectionProb * float64(len(susceptible))
	count := int(math.Floor(expected))
	if frac := expected - float64(count); frac > 0 && rv.Binomial(1, frac) == 1.0 {
		count++
	}
	if count <= 0 {
		return
	}
	if count > len(susceptible) {
		count = len(susceptible)
	}

	targets := make([]person.ID, len(susceptible))
	copy(targets, susceptible)
	stream.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })

	infectorPool := make([]person.ID, len(infectious))
	copy(infectorPool, infectious)
	exposedBySource := make(map[person.ID]int, len(infectious))

	for i := 0; i < count && len(infectorPool) > 0; i++ {
		targetID := targets[i]
		infectee := e.pop.Get(targetID)
		if infectee == nil || !infectee.Alive() {
			continue
		}

		idx := stream.Intn(len(infectorPool))
		infectorID := infectorPool[idx]
		if infectorID == targetID {
			continue
		}
		infector := e.pop.Get(infectorID)
		if infector == nil || !infector.Alive() {
			continue
		}

		infectivity := e.infectivityOf(infector, diseaseIdx, day, params)
		prob := params.TransmissionProb * params.Transmissibility * infectivity * e.susceptibilityOf(infectee, diseaseIdx, params)
		if clamp01(prob) > 0 && rv.Binomial(1, clamp01(prob)) == 1.0 {
			e.expose(pl, infectee, diseaseIdx, day, infectorID)
		}

		if params.MaxInfecteesPerSource > 0 {
			exposedBySource[infectorID]++
			if exposedBySource[infectorID] >= params.MaxInfecteesPerSource {
				last := len(infectorPool) - 1
				infectorPool[idx] = infectorPool[last]
				infectorPool = infectorPool[:last]
			}
		}
	}
}

// ageStructured dispatches contact probability through a per-age-bucket
// matrix instead of a single scalar contact rate (spec §4.5 "Age-
// structured model"). A missing matrix entry (zero value) means no contact
// between those buckets, per the Open Question decision above.
func (e *Engine) ageStructured(pl *place.Place, diseaseIdx, day int, params *disease.Params, susceptible, infectious []person.ID, stream *rng.Stream) {
	for _, infectorID := range infectious {
		infector := e.pop.Get(infectorID)
		if infector == nil || !infector.Alive() {
			continue
		}
		infectivity := e.infectivityOf(infector, diseaseIdx, day, params)
		ib := BucketFor(infector.Age())
		for _, susID := range susceptible {
			if susID == infectorID {
				continue
			}
			infectee := e.pop.Get(susID)
			if infectee == nil || !infectee.Alive() {
				continue
			}
			sb := BucketFor(infectee.Age())
			contactP := e.ageMatrix[ib][sb]
			if contactP <= 0 {
				continue
			}
			prob := contactP * params.Transmissibility * infectivity * e.susceptibilityOf(infectee, diseaseIdx, params)
			if clamp01(prob) <= 0 {
				continue
			}
			if rv.Binomial(1, clamp01(prob)) == 1.0 {
				e.expose(pl, infectee, diseaseIdx, day, infector.ID())
			}
		}
	}
}

// VectorPopulation is the external collaborator a vector-borne disease
// transmits through: per-place S/E/I vector compartments, advanced daily
// from temperature-dependent birth/maturation rates, bitten by infectious
// hosts and biting susceptible hosts in turn (spec §4.5 "Vector model").
// internal/transmission.MosquitoPopulation is the default concrete
// implementation; ProcessPlace never calls this interface unless a
// VectorPopulation has been installed via Engine.SetVectorPopulation.
type VectorPopulation interface {
	// Advance applies one simulated day's temperature-dependent
	// birth/maturation step to pl's vector compartments. Idempotent within
	// a day so callers may invoke it once per (place, disease) without
	// double-stepping the clock.
	Advance(pl *place.Place, day int)

	// SusceptibleVectorCount returns the place's current susceptible-vector
	// count, the pool stage (a) draws newly infected vectors from.
	SusceptibleVectorCount(pl *place.Place, day int) int

	// InfectiousVectorCount returns the place's current infectious-vector
	// count, the source stage (b) draws host exposures from.
	InfectiousVectorCount(pl *place.Place, day int) int

	// InfectVector moves one susceptible vector to the exposed compartment.
	InfectVector(pl *place.Place, day int, r *rand.Rand)
}

// VectorModel runs the two-stage host<->vector transmission pass for a
// place with a registered vector population (spec §4.5 "Vector model").
// Stage (a) infects vectors from this disease's infectious hosts:
// `1 - (1 - infection_efficiency)^(bite_rate*I/N)` gives the per-vector
// infection probability, applied to the place's susceptible-vector count
// to get an expected (floor + Bernoulli-fraction) count of newly infected
// vectors. Stage (b) infects hosts from infectious vectors the same way,
// using transmission_efficiency, then shuffles the susceptible host list
// and exposes the computed count without replacement.
//
// The spec aggregates stage (a) across every disease sharing a place's
// vector population and splits newly infected vectors proportionally
// across diseases; ProcessPlace calls VectorModel once per (place,
// disease) rather than once per place, so each call runs both stages
// using only its own disease's infectious/susceptible host counts — a
// documented simplification of the spec's cross-disease split (see
// DESIGN.md) rather than an attempt to reproduce it exactly. Vector-caused
// exposures have no single human infector and are recorded with the zero
// person.ID.
func (e *Engine) VectorModel(pl *place.Place, diseaseIdx, day int, susceptible, infectious []person.ID, vectors VectorPopulation, stream *rng.Stream) {
	params := e.diseases[diseaseIdx]
	vectors.Advance(pl, day)

	n := pl.Capacity()
	if n <= 0 {
		n = len(susceptible) + len(infectious)
	}
	if n <= 0 {
		return
	}

	liveInfectious := 0
	for _, id := range infectious {
		if h := e.pop.Get(id); h != nil && h.Alive() {
			liveInfectious++
		}
	}
	if liveInfectious > 0 && params.VectorBiteRate > 0 {
		exponent := params.VectorBiteRate * float64(liveInfectious) / float64(n)
		infectProb := 1 - math.Pow(1-clamp01(params.VectorInfectionEfficiency), exponent)
		susceptibleVectors := vectors.SusceptibleVectorCount(pl, day)
		expected := infectProb * float64(susceptibleVectors)
		newVectors := int(math.Floor(expected))
		if frac := expected - float64(newVectors); frac > 0 && rv.Binomial(1, frac) == 1.0 {
			newVectors++
		}
		for i := 0; i < newVectors; i++ {
			vectors.InfectVector(pl, day, stream.Rand())
		}
	}

	if len(susceptible) == 0 || params.VectorBiteRate <= 0 {
		return
	}
	infectiousVectors := vectors.InfectiousVectorCount(pl, day)
	if infectiousVectors <= 0 {
		return
	}
	exponent := params.VectorBiteRate * float64(infectiousVectors) / float64(n)
	hostInfectProb := 1 - math.Pow(1-clamp01(params.VectorTransmissionEfficiency), exponent)
	expected := hostInfectProb * float64(len(susceptible))
	count := int(math.Floor(expected))
	if frac := expected - float64(count); frac > 0 && rv.Binomial(1, frac) == 1.0 {
		count++
	}
	if count <= 0 {
		return
	}
	if count > len(susceptible) {
		count = len(susceptible)
	}

	targets := make([]person.ID, len(susceptible))
	copy(targets, susceptible)
	stream.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })

	var environmentalInfector person.ID
	for i := 0; i < count; i++ {
		infectee := e.pop.Get(targets[i])
		if infectee == nil || !infectee.Alive() {
			continue
		}
		e.expose(pl, infectee, diseaseIdx, day, environmentalInfector)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
