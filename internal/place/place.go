// Package place implements the Place Registry (C2): it owns every place in
// the simulation, partitioned by type, and exposes lookup, enrollment, and
// per-day infectious-place tracking. Places are never destroyed during a
// run (spec §3 "Lifecycles"), so unlike internal/person's Population, the
// registry never needs to swap-remove a place — only its membership lists
// churn.
//
// Grounded on network.go's adjacencyMatrix: a map-backed registry offering
// add/exists/delete, dedup-by-key, generalized from one edge-weight map to
// typed place tables. Per-place concurrency (thread-local visitor
// fragments, no locks on the hot path) follows spec §4.2/§5 directly.
package place

import (
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
)

// ID identifies a place uniquely and stably for the lifetime of a run.
type ID ksuid.KSUID

func (id ID) String() string { return ksuid.KSUID(id).String() }

// Kind is the place-type tag (spec §3 "Place").
type Kind = disease.PlaceType

const (
	Household    = disease.PlaceHousehold
	Neighborhood = disease.PlaceNeighborhood
	School       = disease.PlaceSchool
	Classroom    = disease.PlaceClassroom
	Workplace    = disease.PlaceWorkplace
	Office       = disease.PlaceOffice
	Hospital     = disease.PlaceHospital
)

// Subtype is the optional place subtype (spec §3).
type Subtype int

const (
	SubtypeNone Subtype = iota
	SubtypeCollegeDorm
	SubtypeMilitaryBase
	SubtypePrison
	SubtypeNursingHome
	SubtypeHealthcareClinic
)

// SizeClass buckets a workplace by headcount (spec §3 "Workplace").
type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
	SizeXLarge
)

// ClassifySize derives a SizeClass from headcount, matching the thresholds
// original_source/src/Activities.cc uses to key sick-leave-availability
// probability (SPEC_FULL.md §12).
func ClassifySize(headcount int) SizeClass {
	switch {
	case headcount < 50:
		return SizeSmall
	case headcount < 100:
		return SizeMedium
	case headcount < 500:
		return SizeLarge
	default:
		return SizeXLarge
	}
}

// visitorFragments holds the per-partition, lock-free visitor lists for one
// disease at one place (spec §4.2 "state fragments"). Each partition
// (worker/thread id) writes only to its own slice during the Agent phase;
// Merged() is called once, single-threaded, at the start of the Place
// phase.
type visitorFragments struct {
	susceptible [][]person.ID
	infectious  [][]person.ID
}

func (f *visitorFragments) ensure(partition int) {
	for len(f.susceptible) <= partition {
		f.susceptible = append(f.susceptible, nil)
		f.infectious = append(f.infectious, nil)
	}
}

func (f *visitorFragments) addSusceptible(partition int, id person.ID) {
	f.ensure(partition)
	f.susceptible[partition] = append(f.susceptible[partition], id)
}

func (f *visitorFragments) addInfectious(partition int, id person.ID) {
	f.ensure(partition)
	f.infectious[partition] = append(f.infectious[partition], id)
}

func (f *visitorFragments) merged() (susceptible, infectious []person.ID) {
	for _, s := range f.susceptible {
		susceptible = append(susceptible, s...)
	}
	for _, s := range f.infectious {
		infectious = append(infectious, s...)
	}
	return
}

func (f *visitorFragments) reset() {
	for i := range f.susceptible {
		f.susceptible[i] = f.susceptible[i][:0]
		f.infectious[i] = f.infectious[i][:0]
	}
}

// Place is the common record shared by every place kind (spec §9: shared
// fields in a common record, specializations carry extra data in variant
// payloads referenced from here).
type Place struct {
	id       ID
	label    string
	kind     Kind
	subtype  Subtype
	lat, lon float64
	capacity int
	// container is the enclosing place (e.g. a classroom's school, an
	// office's workplace); zero value if the place has none.
	container PlaceHandle

	openDate, closeDate int // simulation-day bounds; zero closeDate means open-ended

	enrolled []person.ID

	mu        sync.Mutex // guards enrolled and the per-disease maps below (fragments map lookup, firstDay, lastDay, exposures)
	fragments map[int]*visitorFragments
	firstDay  map[int]int // first day this place had an infectious visitor, per disease
	lastDay   map[int]int
	exposures map[int]int // cumulative exposure count per disease, for per-place reports

	// Household/School/Workplace variant payloads; at most one is non-nil.
	household *Household
	school    *School
	workplace *Workplace
}

// PlaceHandle is an opaque, registry-internal reference to a Place (not to
// be confused with person.PlaceRef, which is the person-facing favorite
// place slot handle). Handle is cheap to copy and stable for the life of
// the run, since places are never removed.
type PlaceHandle struct {
	kind  Kind
	index int
	valid bool
}

// Valid reports whether the handle refers to a real place.
func (h PlaceHandle) Valid() bool { return h.valid }

func newPlace(id ID, label string, kind Kind, subtype Subtype, lat, lon float64, capacity int) *Place {
	return &Place{
		id:        id,
		label:     label,
		kind:      kind,
		subtype:   subtype,
		lat:       lat,
		lon:       lon,
		capacity:  capacity,
		fragments: make(map[int]*visitorFragments),
		firstDay:  make(map[int]int),
		lastDay:   make(map[int]int),
		exposures: make(map[int]int),
	}
}

// ID returns the place's stable identity.
func (p *Place) ID() ID { return p.id }

// Label returns the place's input label.
func (p *Place) Label() string { return p.label }

// Kind returns the place type.
func (p *Place) Kind() Kind { return p.kind }

// Subtype returns the place subtype.
func (p *Place) Subtype() Subtype { return p.subtype }

// Coordinates returns the place's latitude/longitude.
func (p *Place) Coordinates() (lat, lon float64) { return p.lat, p.lon }

// Capacity returns the place's configured capacity N.
func (p *Place) Capacity() int { return p.capacity }

// Container returns the enclosing place's handle, if any.
func (p *Place) Container() PlaceHandle { return p.container }

// SetOpenClose sets the open/close simulation-day bounds. A zero closeDate
// means the place never closes.
func (p *Place) SetOpenClose(open, close int) {
	p.openDate, p.closeDate = open, close
}

// ShouldBeOpen answers spec §3's should_be_open(day, disease) query. The
// disease parameter is accepted for interface symmetry with the source;
// this implementation's openness does not currently vary by disease, but a
// future per-disease closure policy can extend it without an API change.
func (p *Place) ShouldBeOpen(day int, _ int) bool {
	if day < p.openDate {
		return false
	}
	if p.closeDate != 0 && day >= p.closeDate {
		return false
	}
	return true
}

// EnrolledCount returns the number of enrolled members.
func (p *Place) EnrolledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.enrolled)
}

// Enrolled returns a copy of the enrolled-member ID list.
func (p *Place) Enrolled() []person.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]person.ID, len(p.enrolled))
	copy(out, p.enrolled)
	return out
}

// Enroll appends id to the enrolled list; a no-op if already enrolled
// (spec §4.2).
func (p *Place) Enroll(id person.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.enrolled {
		if existing == id {
			return
		}
	}
	p.enrolled = append(p.enrolled, id)
}

// Unenroll removes at most one occurrence of id from the enrolled list
// (spec §4.2).
func (p *Place) Unenroll(id person.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.enrolled {
		if existing == id {
			p.enrolled[i] = p.enrolled[len(p.enrolled)-1]
			p.enrolled = p.enrolled[:len(p.enrolled)-1]
			return
		}
	}
}

func (p *Place) fragmentsFor(diseaseIdx int) *visitorFragments {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.fragments[diseaseIdx]
	if !ok {
		f = &visitorFragments{}
		p.fragments[diseaseIdx] = f
	}
	return f
}

// JoinSusceptible appends id to the caller's thread-local fragment for the
// given disease and partition, without locking (spec §4.2/§5 Agent phase).
func (p *Place) JoinSusceptible(diseaseIdx, partition int, id person.ID) {
	p.fragmentsFor(diseaseIdx).addSusceptible(partition, id)
}

// MarkInfectious appends id to the caller's thread-local infectious
// fragment, without locking.
func (p *Place) MarkInfectious(diseaseIdx, partition int, id person.ID) {
	p.fragmentsFor(diseaseIdx).addInfectious(partition, id)
}

// VisitorsToday merges every partition's fragments into a single
// susceptible/infectious list pair for the given disease (spec §4.2
// "visitors_today"). Intended to be called once per place per day, at the
// start of the Place phase, single-threaded per place.
func (p *Place) VisitorsToday(diseaseIdx int) (susceptible, infectious []person.ID) {
	f, ok := p.fragments[diseaseIdx]
	if !ok {
		return nil, nil
	}
	return f.merged()
}

// ResetDailyState clears every disease's visitor fragments for this place,
// called once at the end of each simulated day (spec §4.7 "Day Loop").
func (p *Place) ResetDailyState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.fragments {
		f.reset()
	}
}

// RecordInfectiousDay records the first/last day this place had any
// infectious visitor for the given disease (spec §4.5).
func (p *Place) RecordInfectiousDay(diseaseIdx, day int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.firstDay[diseaseIdx]; !ok {
		p.firstDay[diseaseIdx] = day
	}
	p.lastDay[diseaseIdx] = day
}

// InfectiousDayRange returns the first/last day this place had any
// infectious visitor for diseaseIdx, and whether it has ever had one.
func (p *Place) InfectiousDayRange(diseaseIdx int) (first, last int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	first, ok = p.firstDay[diseaseIdx]
	last = p.lastDay[diseaseIdx]
	return
}

// RecordExposure increments this place's cumulative exposure count for
// diseaseIdx, called by the Transmission Engine on every successful
// transmission (spec §6 "Per-place reports: total infections").
func (p *Place) RecordExposure(diseaseIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exposures[diseaseIdx]++
}

// ExposureCount returns the cumulative exposure count recorded for
// diseaseIdx at this place, across the whole run.
func (p *Place) ExposureCount(diseaseIdx int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exposures[diseaseIdx]
}

// Household is the Household place specialization (spec §3).
type Household struct {
	Income            float64
	CountyFIPS        string
	TractFIPS         string
	GroupQuarters     bool
	Units             int
	ShelterStart      int
	ShelterEnd        int
	// ExtendedAbsence is a per-member set (keyed by person ID) marking a
	// resident as away for a health reason; a
	// visiting family member consults VisitationHospital (spec §3, §12).
	ExtendedAbsence    map[person.ID]bool
	VisitationHospital PlaceHandle
}

// IsSheltering reports whether the household is sheltering-in-place today
// (spec §4.4 Pass B step 2).
func (h *Household) IsSheltering(day int) bool {
	return day >= h.ShelterStart && day < h.ShelterEnd
}

// AsHousehold returns the Household payload, or nil if this place is not a
// household.
func (p *Place) AsHousehold() *Household { return p.household }

// SetExtendedAbsence marks id as away (or not) due to hospitalization.
func (h *Household) SetExtendedAbsence(id person.ID, away bool) {
	if h.ExtendedAbsence == nil {
		h.ExtendedAbsence = make(map[person.ID]bool)
	}
	if away {
		h.ExtendedAbsence[id] = true
	} else {
		delete(h.ExtendedAbsence, id)
	}
}

// HasHospitalizedMember reports whether any resident is currently marked
// away for hospitalization (spec §4.4 Pass B step 6).
func (h *Household) HasHospitalizedMember() bool {
	return len(h.ExtendedAbsence) > 0
}

// School is the School place specialization (spec §3).
type School struct {
	CountyFIPS       string
	MaxGrade         int
	OriginalPerGrade map[int]int
	CurrentPerGrade  map[int]int
	ClassroomsByGrade map[int][]PlaceHandle
	StaffSize        int
}

// AsSchool returns the School payload, or nil if this place is not a
// school.
func (p *Place) AsSchool() *School { return p.school }

// GradeHasCapacity reports whether the given grade can accept another
// student: current grade size <= 1.5x original grade size (spec §4.6).
func (s *School) GradeHasCapacity(grade int) bool {
	cur := s.CurrentPerGrade[grade]
	orig := s.OriginalPerGrade[grade]
	if orig == 0 {
		return cur == 0
	}
	return float64(cur) <= 1.5*float64(orig)
}

// Workplace is the Workplace place specialization (spec §3).
type Workplace struct {
	Offices []PlaceHandle
	Size    SizeClass
}

// AsWorkplace returns the Workplace payload, or nil if this place is not a
// workplace.
func (p *Place) AsWorkplace() *Workplace { return p.workplace }

// Registry owns every place, partitioned by type (spec §4.2).
type Registry struct {
	mu sync.RWMutex

	households  []*Place
	schools     []*Place
	classrooms  []*Place
	workplaces  []*Place
	offices     []*Place
	hospitals   []*Place
	neighborhoods []*Place

	byLabel map[string]PlaceHandle // dedup key is kind+label

	diseaseCount int

	// infectiousToday[diseaseIdx] is the idempotent registration set for
	// today's Place phase (spec §4.2 register_infectious_place).
	infectiousToday map[int]map[PlaceHandle]bool
	infMu           sync.Mutex
}

// NewRegistry creates an empty registry sized for the given number of
// diseases.
func NewRegistry(diseaseCount int) *Registry {
	return &Registry{
		byLabel:         make(map[string]PlaceHandle),
		diseaseCount:    diseaseCount,
		infectiousToday: make(map[int]map[PlaceHandle]bool),
	}
}

func dedupKey(kind Kind, label string) string {
	var sb strings.Builder
	sb.WriteString(label)
	sb.WriteByte(0)
	switch kind {
	case Household:
		sb.WriteString("household")
	case School:
		sb.WriteString("school")
	case Workplace:
		sb.WriteString("workplace")
	default:
		sb.WriteString("other")
	}
	return sb.String()
}

func (r *Registry) sliceFor(kind Kind) *[]*Place {
	switch kind {
	case Household:
		return &r.households
	case Neighborhood:
		return &r.neighborhoods
	case School:
		return &r.schools
	case Classroom:
		return &r.classrooms
	case Workplace:
		return &r.workplaces
	case Office:
		return &r.offices
	case Hospital:
		return &r.hospitals
	default:
		panic("place: unknown kind")
	}
}

// Add registers a new place, deduplicating by label within the
// household/school/workplace tables (spec §4.2). Returns the existing
// handle if the label+kind pair was already registered.
func (r *Registry) Add(label string, kind Kind, subtype Subtype, lat, lon float64, capacity int) PlaceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == Household || kind == School || kind == Workplace {
		key := dedupKey(kind, label)
		if h, ok := r.byLabel[key]; ok {
			return h
		}
		pl := newPlace(ID(ksuid.New()), label, kind, subtype, lat, lon, capacity)
		slice := r.sliceFor(kind)
		handle := PlaceHandle{kind: kind, index: len(*slice), valid: true}
		*slice = append(*slice, pl)
		r.byLabel[key] = handle
		r.attachVariant(pl, kind)
		return handle
	}

	pl := newPlace(ID(ksuid.New()), label, kind, subtype, lat, lon, capacity)
	slice := r.sliceFor(kind)
	handle := PlaceHandle{kind: kind, index: len(*slice), valid: true}
	*slice = append(*slice, pl)
	r.attachVariant(pl, kind)
	return handle
}

func (r *Registry) attachVariant(pl *Place, kind Kind) {
	switch kind {
	case Household:
		pl.household = &Household{ExtendedAbsence: make(map[person.ID]bool)}
	case School:
		pl.school = &School{
			OriginalPerGrade:  make(map[int]int),
			CurrentPerGrade:   make(map[int]int),
			ClassroomsByGrade: make(map[int][]PlaceHandle),
		}
	case Workplace:
		pl.workplace = &Workplace{}
	}
}

// Resolve returns the Place behind a handle, or nil if invalid.
func (r *Registry) Resolve(h PlaceHandle) *Place {
	if !h.valid {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	slice := r.sliceFor(h.kind)
	if h.index < 0 || h.index >= len(*slice) {
		return nil
	}
	return (*slice)[h.index]
}

// ResolveRef resolves a person.PlaceRef (the favorite-place slot handle)
// into a Place, bridging the person package's opaque handle to the
// registry's internal one. Returns nil if the ref is invalid.
func (r *Registry) ResolveRef(ref person.PlaceRef) *Place {
	if !ref.Valid() {
		return nil
	}
	return r.Resolve(PlaceHandle{kind: slotKindToPlaceKind(ref.Kind()), index: int(ref.Index()), valid: true})
}

// HandleToRef converts a registry handle into the person-facing PlaceRef
// for the given slot kind.
func HandleToRef(slot person.SlotKind, h PlaceHandle) person.PlaceRef {
	if !h.valid {
		return person.NilPlaceRef
	}
	return person.NewPlaceRef(slot, uint32(h.index), 0)
}

func slotKindToPlaceKind(k person.SlotKind) Kind {
	switch k {
	case person.SlotHousehold:
		return Household
	case person.SlotNeighborhood:
		return Neighborhood
	case person.SlotSchool:
		return School
	case person.SlotClassroom:
		return Classroom
	case person.SlotWorkplace:
		return Workplace
	case person.SlotOffice:
		return Office
	case person.SlotHospital, person.SlotAdHoc:
		return Hospital
	default:
		return Household
	}
}

// LookupHousehold finds a household by label.
func (r *Registry) LookupHousehold(label string) (PlaceHandle, bool) {
	return r.lookup(Household, label)
}

// LookupSchool finds a school by label.
func (r *Registry) LookupSchool(label string) (PlaceHandle, bool) {
	return r.lookup(School, label)
}

// LookupWorkplace finds a workplace by label.
func (r *Registry) LookupWorkplace(label string) (PlaceHandle, bool) {
	return r.lookup(Workplace, label)
}

func (r *Registry) lookup(kind Kind, label string) (PlaceHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byLabel[dedupKey(kind, label)]
	return h, ok
}

// Enroll enrolls id at the place behind h, via the Place's own Enroll.
func (r *Registry) Enroll(h PlaceHandle, id person.ID) {
	if pl := r.Resolve(h); pl != nil {
		pl.Enroll(id)
	}
}

// Unenroll unenrolls id from the place behind h.
func (r *Registry) Unenroll(h PlaceHandle, id person.ID) {
	if pl := r.Resolve(h); pl != nil {
		pl.Unenroll(id)
	}
}

// RegisterInfectiousPlace idempotently marks h as hosting an infectious
// visitor today for diseaseIdx (spec §4.2). Safe for concurrent callers
// across the Agent phase's partitions.
func (r *Registry) RegisterInfectiousPlace(diseaseIdx int, h PlaceHandle) {
	r.infMu.Lock()
	defer r.infMu.Unlock()
	set, ok := r.infectiousToday[diseaseIdx]
	if !ok {
		set = make(map[PlaceHandle]bool)
		r.infectiousToday[diseaseIdx] = set
	}
	set[h] = true
}

// InfectiousPlacesToday returns the places registered as infectious today
// for diseaseIdx (spec §4.2/§4.7).
func (r *Registry) InfectiousPlacesToday(diseaseIdx int) []PlaceHandle {
	r.infMu.Lock()
	defer r.infMu.Unlock()
	set := r.infectiousToday[diseaseIdx]
	out := make([]PlaceHandle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

// ResetDailyState clears every place's visitor fragments and the
// infectious-place registration sets, for the end of each simulated day
// (spec §4.7).
func (r *Registry) ResetDailyState() {
	r.mu.RLock()
	all := r.allPlaces()
	r.mu.RUnlock()
	for _, pl := range all {
		pl.ResetDailyState()
	}
	r.infMu.Lock()
	r.infectiousToday = make(map[int]map[PlaceHandle]bool)
	r.infMu.Unlock()
}

func (r *Registry) allPlaces() []*Place {
	var all []*Place
	for _, slice := range [][]*Place{r.households, r.neighborhoods, r.schools, r.classrooms, r.workplaces, r.offices, r.hospitals} {
		all = append(all, slice...)
	}
	return all
}

// Households returns every registered household.
func (r *Registry) Households() []*Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Place, len(r.households))
	copy(out, r.households)
	return out
}

// Neighborhoods returns every registered neighborhood place.
func (r *Registry) Neighborhoods() []*Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Place, len(r.neighborhoods))
	copy(out, r.neighborhoods)
	return out
}

// Schools returns every registered school.
func (r *Registry) Schools() []*Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Place, len(r.schools))
	copy(out, r.schools)
	return out
}

// Workplaces returns every registered workplace.
func (r *Registry) Workplaces() []*Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Place, len(r.workplaces))
	copy(out, r.workplaces)
	return out
}

// Hospitals returns every registered hospital.
func (r *Registry) Hospitals() []*Place {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Place, len(r.hospitals))
	copy(out, r.hospitals)
	return out
}

// HandleOf returns the registry handle for a Place pointer previously
// returned by this registry, by linear scan of its kind's slice. Used
// sparingly (e.g. by loaders); hot paths should retain the handle from Add.
func (r *Registry) HandleOf(pl *Place) PlaceHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slice := r.sliceFor(pl.kind)
	for i, candidate := range *slice {
		if candidate == pl {
			return PlaceHandle{kind: pl.kind, index: i, valid: true}
		}
	}
	return PlaceHandle{}
}
