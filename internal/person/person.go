// Package person is the addressable agent data model (spec §3). A Person
// owns demographic fields, a fixed-length favorite-place slot vector, and
// per-disease health state; it holds non-owning indices into the Place
// Registry rather than pointers, per spec §9's cyclic-reference note.
//
// Grounded on host.go's Host/SequenceHost split: a stable ID plus mutable
// embedded state, intended to live inside a stable-index container owned
// by a single registry (here, Population) that does the swap-remove
// bookkeeping on termination.
package person

import (
	"sync"

	"github.com/segmentio/ksuid"
)

// ID identifies a Person uniquely and stably for the lifetime of a run.
type ID ksuid.KSUID

// NewID mints a fresh identity, in the style of the teacher's ksuid use for
// host/transmission IDs (epidemic.go, genotype.go).
func NewID() ID {
	return ID(ksuid.New())
}

func (id ID) String() string {
	return ksuid.KSUID(id).String()
}

// Profile is the enum of daily-activity archetypes spec §3 names.
type Profile int

const (
	ProfileUndefined Profile = iota
	ProfilePreschool
	ProfileStudent
	ProfileWorker
	ProfileWeekendWorker
	ProfileTeacher
	ProfileRetired
	ProfileUnemployed
	ProfileCollegeStudent
	ProfileMilitary
	ProfilePrisoner
	ProfileNursingHomeResident
)

func (p Profile) String() string {
	switch p {
	case ProfilePreschool:
		return "preschool"
	case ProfileStudent:
		return "student"
	case ProfileWorker:
		return "worker"
	case ProfileWeekendWorker:
		return "weekend-worker"
	case ProfileTeacher:
		return "teacher"
	case ProfileRetired:
		return "retired"
	case ProfileUnemployed:
		return "unemployed"
	case ProfileCollegeStudent:
		return "college-student"
	case ProfileMilitary:
		return "military"
	case ProfilePrisoner:
		return "prisoner"
	case ProfileNursingHomeResident:
		return "nursing-home-resident"
	default:
		return "undefined"
	}
}

// IsGroupQuarters reports whether the profile is one assigned to
// group-quarters residents (spec §4.6, glossary "Group quarters").
func (p Profile) IsGroupQuarters() bool {
	switch p {
	case ProfileCollegeStudent, ProfileMilitary, ProfilePrisoner, ProfileNursingHomeResident:
		return true
	default:
		return false
	}
}

// Sex is the demographic sex field.
type Sex int

const (
	SexUnknown Sex = iota
	SexMale
	SexFemale
)

// Relationship is the relationship-to-household-head field.
type Relationship int

const (
	RelationshipUnknown Relationship = iota
	RelationshipHead
	RelationshipSpouse
	RelationshipChild
	RelationshipOther
)

// SlotKind names a favorite-place slot, one per place type a person may
// visit (spec §3 "Favorite-place slots").
type SlotKind int

const (
	SlotHousehold SlotKind = iota
	SlotNeighborhood
	SlotSchool
	SlotClassroom
	SlotWorkplace
	SlotOffice
	SlotHospital
	SlotAdHoc
	numSlots
)

// NumSlots is the fixed length of the favorite-place slot vector.
const NumSlots = int(numSlots)

func (k SlotKind) String() string {
	switch k {
	case SlotHousehold:
		return "household"
	case SlotNeighborhood:
		return "neighborhood"
	case SlotSchool:
		return "school"
	case SlotClassroom:
		return "classroom"
	case SlotWorkplace:
		return "workplace"
	case SlotOffice:
		return "office"
	case SlotHospital:
		return "hospital"
	case SlotAdHoc:
		return "ad-hoc"
	default:
		return "unknown"
	}
}

// PlaceRef is a non-owning reference into the Place Registry's stable-index
// container: a type tag plus an opaque handle the registry hands out. Using
// an opaque handle (rather than a pointer) keeps Person free of any import
// of the place package, avoiding the cyclic Person<->Place dependency the
// source has (spec §9).
type PlaceRef struct {
	valid bool
	kind  SlotKind
	index uint32
	gen   uint32
}

// NilPlaceRef is the null favorite-place slot value.
var NilPlaceRef = PlaceRef{}

// NewPlaceRef builds a reference handle. Registries are the only code
// expected to call this.
func NewPlaceRef(kind SlotKind, index, gen uint32) PlaceRef {
	return PlaceRef{valid: true, kind: kind, index: index, gen: gen}
}

// Valid reports whether the reference points at a real place.
func (r PlaceRef) Valid() bool { return r.valid }

// Kind returns the slot kind this reference was created for.
func (r PlaceRef) Kind() SlotKind { return r.kind }

// Index returns the opaque registry index, for registries to resolve.
func (r PlaceRef) Index() uint32 { return r.index }

// Gen returns the opaque generation counter, for registries to detect
// stale references after a swap-remove.
func (r PlaceRef) Gen() uint32 { return r.gen }

// FavoritePlaces is the fixed-length ordered slot array (spec §3).
type FavoritePlaces [NumSlots]PlaceRef

// HealthState is the per-disease compartment (spec §3).
type HealthState int

const (
	Susceptible HealthState = iota
	Exposed
	Infectious
	Recovered
	Immune
	Dead
)

func (h HealthState) String() string {
	switch h {
	case Susceptible:
		return "susceptible"
	case Exposed:
		return "exposed"
	case Infectious:
		return "infectious"
	case Recovered:
		return "recovered"
	case Immune:
		return "immune"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// DiseaseState tracks one disease's progression on one person.
type DiseaseState struct {
	Health       HealthState
	ExposureDay  int
	infectorID   ID
	hasInfector  bool
	symptomatic  bool
	alreadyToday bool // first-writer-wins latch for become_exposed (spec §5)

	// nextEventDay is the day the Model-supplied progression timer fires the
	// next compartment transition; -1 means "not yet scheduled" (spec §1's
	// externally-supplied biological progression collaborator drives this,
	// the core only tracks the clock it returned).
	nextEventDay   int
	symptomaticDay int // day this disease last became symptomatic, -1 if never
}

// NextEventDay returns the day this disease's next scheduled compartment
// transition fires, or -1 if none is currently scheduled.
func (d *DiseaseState) NextEventDay() int { return d.nextEventDay }

// ScheduleNextEvent records the day of the next scheduled transition, or -1
// to clear it (forcing the progression runner to ask the Model again).
func (d *DiseaseState) ScheduleNextEvent(day int) { d.nextEventDay = day }

// BecomeInfectious transitions Exposed -> Infectious, a no-op from any other
// state (spec §1's progression collaborator decides timing; the core just
// applies the transition once the collaborator's clock fires).
func (d *DiseaseState) BecomeInfectious(day int, symptomatic bool) {
	if d.Health != Exposed {
		return
	}
	d.Health = Infectious
	d.symptomatic = symptomatic
	if symptomatic {
		d.symptomaticDay = day
	}
}

// Recover transitions Infectious -> Recovered, a no-op from any other state.
func (d *DiseaseState) Recover() {
	if d.Health != Infectious {
		return
	}
	d.Health = Recovered
	d.symptomatic = false
}

// SymptomaticDay returns the day this disease last became symptomatic, or
// -1 if it never has.
func (d *DiseaseState) SymptomaticDay() int { return d.symptomaticDay }

// SetInfector records who exposed this person, for attack-rate/R
// bookkeeping (spec §6 outputs).
func (d *DiseaseState) SetInfector(id ID) {
	d.infectorID = id
	d.hasInfector = true
}

// Infector returns the recorded infector, if any.
func (d *DiseaseState) Infector() (ID, bool) {
	return d.infectorID, d.hasInfector
}

// Symptomatic reports whether the person is currently showing symptoms for
// this disease.
func (d *DiseaseState) Symptomatic() bool { return d.symptomatic }

// SetSymptomatic sets the symptomatic flag.
func (d *DiseaseState) SetSymptomatic(b bool) { d.symptomatic = b }

// ChronicConditions tracks the chronic-condition flags spec §4.4 Pass D
// step 3 folds into the hospitalization/outpatient-care probabilities
// (Activities.cc:655-696's has_chronic_condition/is_asthmatic/has_COPD/
// has_chronic_renal_disease/is_diabetic/has_heart_disease/has_hypertension/
// has_hypercholestrolemia predicates), plus the demographic pregnancy flag
// the same call site multiplies in (is_pregnant). Each condition present
// contributes its multiplier exactly once per spec §9/§13 — the source's
// double-application of the diabetes and heart-disease multipliers is a
// documented bug, not reproduced here.
type ChronicConditions struct {
	Asthma               bool
	COPD                 bool
	ChronicRenalDisease  bool
	Diabetes             bool
	HeartDisease         bool
	Hypertension         bool
	Hypercholestrolemia  bool
}

// HasAny reports whether any chronic-condition flag is set, gating the
// whole multiplier block the way Activities.cc's has_chronic_condition()
// gates its multiplier loop.
func (c ChronicConditions) HasAny() bool {
	return c.Asthma || c.COPD || c.ChronicRenalDisease || c.Diabetes ||
		c.HeartDisease || c.Hypertension || c.Hypercholestrolemia
}

// Person is the addressable simulation agent (spec §3).
type Person struct {
	id           ID
	age          int
	sex          Sex
	race         int
	relationship Relationship
	profile      Profile
	grade        int // for students; clamped to school's grade range

	favorites     FavoritePlaces
	savedFavorite FavoritePlaces // used while traveling/hospitalized
	hasSaved      bool

	homeNeighborhood    PlaceRef
	currentNeighborhood PlaceRef

	diseases map[int]*DiseaseState // keyed by disease index
	exposeMu sync.Mutex            // serializes BecomeExposed across concurrent place workers

	chronic   ChronicConditions
	pregnant  bool

	sickLeaveAvailable  bool
	sickDaysRemaining   float64
	sickLeaveDecided    bool
	isolated            bool
	isHospitalized      bool
	dischargeDay        int
	isTraveling         bool
	isTravelingAbroad   bool
	hospitalStartDay    int

	lastScheduleDay int
	scheduleMask    uint8
	hasScheduled    bool

	alive bool
}

// New creates a living Person with the given identity and age. Favorite
// places, profile, and health state are configured via the setters below,
// following the teacher's NewEmptySequenceHost-then-configure pattern.
func New(id ID, age int, sex Sex) *Person {
	return &Person{
		id:              id,
		age:             age,
		sex:             sex,
		diseases:        make(map[int]*DiseaseState),
		lastScheduleDay: -1,
		alive:           true,
	}
}

// ID returns the person's stable identity.
func (p *Person) ID() ID { return p.id }

// Age returns the person's age in years.
func (p *Person) Age() int { return p.age }

// SetAge sets the person's age (used by C6's yearly age-up).
func (p *Person) SetAge(age int) { p.age = age }

// Sex returns the demographic sex field.
func (p *Person) Sex() Sex { return p.sex }

// Race returns the demographic race field (an opaque coded value; the core
// does not interpret it beyond cohort stratification, spec §6).
func (p *Person) Race() int { return p.race }

// SetRace sets the demographic race field.
func (p *Person) SetRace(r int) { p.race = r }

// Relationship returns the relationship-to-head field.
func (p *Person) Relationship() Relationship { return p.relationship }

// SetRelationship sets the relationship-to-head field.
func (p *Person) SetRelationship(r Relationship) { p.relationship = r }

// Profile returns the current activity-profile tag.
func (p *Person) Profile() Profile { return p.profile }

// SetProfile sets the activity-profile tag (used by C6).
func (p *Person) SetProfile(pr Profile) { p.profile = pr }

// Grade returns the student's current grade.
func (p *Person) Grade() int { return p.grade }

// SetGrade sets the student's current grade, clamped to [1, maxGrade] per
// spec invariant 3.
func (p *Person) SetGrade(grade, maxGrade int) {
	if grade < 1 {
		grade = 1
	}
	if grade > maxGrade {
		grade = maxGrade
	}
	p.grade = grade
}

// ChronicConditions returns the person's chronic-condition flags.
func (p *Person) ChronicConditions() ChronicConditions { return p.chronic }

// SetChronicConditions sets the person's chronic-condition flags, as
// assigned by the (out-of-scope) synthetic-population loader.
func (p *Person) SetChronicConditions(c ChronicConditions) { p.chronic = c }

// Pregnant reports the demographic pregnancy flag
// (Activities.cc's get_demographics()->is_pregnant()).
func (p *Person) Pregnant() bool { return p.pregnant }

// SetPregnant sets the demographic pregnancy flag.
func (p *Person) SetPregnant(b bool) { p.pregnant = b }

// Favorite returns the place reference in the given slot.
func (p *Person) Favorite(kind SlotKind) PlaceRef {
	return p.favorites[kind]
}

// SetFavorite sets the place reference in the given slot. Passing
// NilPlaceRef clears the slot.
func (p *Person) SetFavorite(kind SlotKind, ref PlaceRef) {
	p.favorites[kind] = ref
}

// Favorites returns the full favorite-place slot vector.
func (p *Person) Favorites() FavoritePlaces {
	return p.favorites
}

// HomeNeighborhood returns the person's home neighborhood patch reference.
func (p *Person) HomeNeighborhood() PlaceRef { return p.homeNeighborhood }

// SetHomeNeighborhood sets the home neighborhood reference, determined once
// at registration time (spec §3 invariant).
func (p *Person) SetHomeNeighborhood(ref PlaceRef) { p.homeNeighborhood = ref }

// CurrentNeighborhood returns the neighborhood the person is physically in
// today (may differ from home during travel or neighborhood substitution).
func (p *Person) CurrentNeighborhood() PlaceRef { return p.currentNeighborhood }

// SetCurrentNeighborhood sets today's physical neighborhood.
func (p *Person) SetCurrentNeighborhood(ref PlaceRef) { p.currentNeighborhood = ref }

// Disease returns (creating if absent) the per-disease state for diseaseIdx.
func (p *Person) Disease(diseaseIdx int) *DiseaseState {
	d, ok := p.diseases[diseaseIdx]
	if !ok {
		d = &DiseaseState{Health: Susceptible, ExposureDay: -1, nextEventDay: -1, symptomaticDay: -1}
		p.diseases[diseaseIdx] = d
	}
	return d
}

// Susceptible reports whether the person is susceptible to the given
// disease.
func (p *Person) Susceptible(diseaseIdx int) bool {
	return p.Disease(diseaseIdx).Health == Susceptible
}

// InfectiousTo reports whether the person is infectious with the given
// disease.
func (p *Person) InfectiousTo(diseaseIdx int) bool {
	return p.Disease(diseaseIdx).Health == Infectious
}

// BecomeExposed transitions a susceptible person to Exposed, recording the
// infector and day. Returns false if the person was not susceptible or was
// already exposed today. BecomeExposed holds the person's own lock while it
// checks and sets the latch, so it is the single synchronization point of
// spec §5: when several places expose the same person concurrently, the
// first caller wins.
func (p *Person) BecomeExposed(diseaseIdx, day int, infector ID) bool {
	p.exposeMu.Lock()
	defer p.exposeMu.Unlock()
	d := p.Disease(diseaseIdx)
	if d.Health != Susceptible {
		return false
	}
	if d.alreadyToday {
		return false
	}
	d.alreadyToday = true
	d.Health = Exposed
	d.ExposureDay = day
	d.SetInfector(infector)
	return true
}

// ResetDailyExposureLatch clears the first-writer-wins latch at the start
// of a new day, for every tracked disease.
func (p *Person) ResetDailyExposureLatch() {
	for _, d := range p.diseases {
		d.alreadyToday = false
	}
}

// SickLeaveAvailable reports whether the person's employer offers sick
// leave (spec §4.4 Pass D / SPEC_FULL §12 sick-leave-by-size).
func (p *Person) SickLeaveAvailable() bool { return p.sickLeaveAvailable }

// SetSickLeaveAvailable sets the sick-leave-availability flag.
func (p *Person) SetSickLeaveAvailable(b bool) { p.sickLeaveAvailable = b }

// SickDaysRemaining returns the remaining sick-days budget.
func (p *Person) SickDaysRemaining() float64 { return p.sickDaysRemaining }

// SetSickDaysRemaining sets the remaining sick-days budget.
func (p *Person) SetSickDaysRemaining(v float64) { p.sickDaysRemaining = v }

// ConsumeSickDay decrements the sick-days budget by one, floored at zero.
func (p *Person) ConsumeSickDay() {
	if p.sickDaysRemaining > 0 {
		p.sickDaysRemaining--
	}
}

// SickLeaveDecided reports whether the one-shot sick-leave decision for
// this illness episode has already been made.
func (p *Person) SickLeaveDecided() bool { return p.sickLeaveDecided }

// SetSickLeaveDecided latches the one-shot sick-leave decision flag.
func (p *Person) SetSickLeaveDecided(b bool) { p.sickLeaveDecided = b }

// IsIsolated reports whether the person is in isolation (schedule mask all
// zeros, spec §3 invariant).
func (p *Person) IsIsolated() bool { return p.isolated }

// SetIsolated sets the isolation flag.
func (p *Person) SetIsolated(b bool) { p.isolated = b }

// IsHospitalized reports whether the person is currently hospitalized.
func (p *Person) IsHospitalized() bool { return p.isHospitalized }

// DischargeDay returns the simulation day hospitalization ends.
func (p *Person) DischargeDay() int { return p.dischargeDay }

// HospitalStartDay returns the simulation day hospitalization began.
func (p *Person) HospitalStartDay() int { return p.hospitalStartDay }

// IsTraveling reports whether the person is substituting favorite places
// for a travel host (domestically visible).
func (p *Person) IsTraveling() bool { return p.isTraveling }

// IsTravelingAbroad reports whether the person is invisible to domestic
// transmission today (spec §4.4 Pass A).
func (p *Person) IsTravelingAbroad() bool { return p.isTravelingAbroad }

// SetTravelingAbroad sets the traveling-abroad flag.
func (p *Person) SetTravelingAbroad(b bool) { p.isTravelingAbroad = b }

// SaveFavorites snapshots the current favorite-place slots before
// substituting them for travel or hospitalization (spec §3 "Lifecycles").
// A call while a save is already pending is a no-op: the earlier snapshot
// is kept until RestoreFavorites.
func (p *Person) SaveFavorites() {
	if p.hasSaved {
		return
	}
	p.savedFavorite = p.favorites
	p.hasSaved = true
}

// RestoreFavorites restores the snapshot taken by SaveFavorites verbatim
// (spec invariant 4/5: bitwise equality of references) and clears the
// pending-save flag. No-op if nothing was saved.
func (p *Person) RestoreFavorites() {
	if !p.hasSaved {
		return
	}
	p.favorites = p.savedFavorite
	p.hasSaved = false
}

// HasSavedFavorites reports whether a save is currently pending restore.
func (p *Person) HasSavedFavorites() bool { return p.hasSaved }

// StartTravel begins travel: saves current favorite places and substitutes
// the home/neighborhood/workplace/office slots with the host's. Mutually
// exclusive with hospitalization (spec §3 "Lifecycles").
func (p *Person) StartTravel(hostHousehold, hostNeighborhood, hostWorkplace, hostOffice PlaceRef) {
	if p.isHospitalized {
		return
	}
	p.SaveFavorites()
	p.favorites[SlotHousehold] = hostHousehold
	p.favorites[SlotNeighborhood] = hostNeighborhood
	p.favorites[SlotWorkplace] = hostWorkplace
	p.favorites[SlotOffice] = hostOffice
	p.isTraveling = true
}

// StopTraveling ends travel, restoring the original favorite places
// verbatim.
func (p *Person) StopTraveling() {
	if !p.isTraveling {
		return
	}
	p.RestoreFavorites()
	p.isTraveling = false
	p.isTravelingAbroad = false
}

// StartHospitalization begins hospitalization: saves current favorite
// places, sets only the hospital slot, and records the discharge day.
// Mutually exclusive with travel.
func (p *Person) StartHospitalization(day, lengthOfStay int, hospital PlaceRef) {
	if p.isTraveling {
		return
	}
	p.SaveFavorites()
	p.favorites = FavoritePlaces{}
	p.favorites[SlotHospital] = hospital
	p.isHospitalized = true
	p.hospitalStartDay = day
	p.dischargeDay = day + lengthOfStay
}

// EndHospitalization ends hospitalization, restoring the original favorite
// places verbatim.
func (p *Person) EndHospitalization() {
	if !p.isHospitalized {
		return
	}
	p.RestoreFavorites()
	p.isHospitalized = false
}

// LastScheduleDay returns the last day the scheduler updated this person,
// -1 if never (spec §4.4's idempotence short-circuit).
func (p *Person) LastScheduleDay() int { return p.lastScheduleDay }

// ScheduleMask returns the 8-bit per-slot "visiting today" mask.
func (p *Person) ScheduleMask() uint8 { return p.scheduleMask }

// SetSchedule records today's schedule mask and the day it was computed
// for, making the scheduler's update idempotent per day.
func (p *Person) SetSchedule(day int, mask uint8) {
	p.lastScheduleDay = day
	p.scheduleMask = mask
	p.hasScheduled = true
}

// ScheduledToday reports whether SetSchedule has already run for this day.
func (p *Person) ScheduledToday(day int) bool {
	return p.hasScheduled && p.lastScheduleDay == day
}

// Visits reports whether the schedule mask has the given slot's bit set.
func (p *Person) Visits(kind SlotKind) bool {
	return p.scheduleMask&(1<<uint(kind)) != 0
}

// SetVisits sets or clears the given slot's bit in the schedule mask.
func (p *Person) SetVisits(kind SlotKind, on bool) {
	bit := uint8(1) << uint(kind)
	if on {
		p.scheduleMask |= bit
	} else {
		p.scheduleMask &^= bit
	}
}

// Alive reports whether the person is still part of the living population.
func (p *Person) Alive() bool { return p.alive }

// Kill marks the person dead, for every tracked disease's health state and
// the population-membership flag (spec §3 "Lifecycles": terminated on
// death or migration).
func (p *Person) Kill() {
	p.alive = false
	for _, d := range p.diseases {
		d.Health = Dead
	}
}
