// Package schedule implements the Activity Scheduler (C4): for each agent
// on each day, produce an 8-bit mask naming which favorite places the
// agent will visit today, through three passes (gating, provisional
// schedule, neighborhood substitution) plus a fourth pass of symptomatic
// overrides for infectious agents (spec §4.4).
//
// Grounded on original_source/src/Activities.cc for the sick-leave-by-size
// and stay-home/seek-healthcare decision structure (SPEC_FULL.md §12), and
// on the teacher's idempotent per-generation update pattern (host.go's
// internalTimer / epidemic_si.go's Update short-circuit via a stored "last
// updated" marker, here person.Person.ScheduledToday).
package schedule

import (
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/calendar"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/config"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/geo"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/gravity"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"

	rv "github.com/kentwait/randomvariate"
)

// HospitalPicker selects a hospital for a newly-hospitalized agent or a
// household's visitation hospital, keeping internal/geo's nearest-match
// logic out of the scheduler's direct dependency surface (the scheduler
// only needs "give me a hospital near here").
type HospitalPicker interface {
	NearestHospital(lat, lon float64) place.PlaceHandle
}

// Scheduler runs the four-pass per-agent, per-day schedule decision (spec
// §4.4).
type Scheduler struct {
	registry *place.Registry
	grid     *geo.Grid
	gravity  *gravity.Model
	cal      *calendar.Calendar
	diseases disease.Set
	hospital HospitalPicker

	sickLeave   config.SickLeaveSection
	isolation   config.IsolationSection
	hospitalCfg config.HospitalSection
	absentee    config.AbsenteeismSection
	shelter     bool

	warnings *errs.Warnings
}

// New builds a Scheduler from its collaborators and configuration.
func New(
	registry *place.Registry,
	grid *geo.Grid,
	gravityModel *gravity.Model,
	cal *calendar.Calendar,
	diseases disease.Set,
	hospital HospitalPicker,
	cfg *config.Config,
	warnings *errs.Warnings,
) *Scheduler {
	return &Scheduler{
		registry:    registry,
		grid:        grid,
		gravity:     gravityModel,
		cal:         cal,
		diseases:    diseases,
		hospital:    hospital,
		sickLeave:   cfg.SickLeave,
		isolation:   cfg.Isolation,
		hospitalCfg: cfg.Hospital,
		absentee:    cfg.Absenteeism,
		shelter:     cfg.Features.HouseholdShelterEnabled,
		warnings:    warnings,
	}
}

// Update computes and records p's schedule mask for the given day. Calling
// it twice for the same (person, day) is a no-op on the second call,
// satisfying spec §4.4's idempotence contract and spec §8's idempotence
// property.
func (s *Scheduler) Update(p *person.Person, day int, stream *rng.Stream) {
	if p.ScheduledToday(day) {
		return
	}
	if !p.Alive() {
		return
	}

	mask := s.passA(p, day)
	if mask != nil {
		p.SetSchedule(day, *mask)
		return
	}

	m := s.passB(p, day, stream)
	m = s.passC(p, m, stream)
	m = s.passD(p, day, m, stream)
	p.SetSchedule(day, m)
}

// passA is the gating pass. It returns a non-nil mask when gating fully
// determines today's schedule (isolated, hospitalized-not-discharge-day,
// or returns nil meaning "continue to pass B"). Traveling abroad yields
// an empty mask, so no place is marked for the agent today.
func (s *Scheduler) passA(p *person.Person, day int) *uint8 {
	if p.IsIsolated() {
		zero := uint8(0)
		return &zero
	}
	if p.IsHospitalized() && day < p.DischargeDay() {
		hospitalOnly := uint8(1) << uint(person.SlotHospital)
		return &hospitalOnly
	}
	if p.IsHospitalized() && day >= p.DischargeDay() {
		p.EndHospitalization()
		// fall through to pass B with restored favorite places
	}
	if p.IsTravelingAbroad() {
		// The agent is invisible to domestic transmission today: no bits
		// are set, and C7 only acts on set bits.
		zero := uint8(0)
		return &zero
	}
	return nil
}

func (s *Scheduler) passB(p *person.Person, day int, stream *rng.Stream) uint8 {
	var mask uint8
	setBit := func(k person.SlotKind) { mask |= 1 << uint(k) }

	// 1. Household bit always set.
	setBit(person.SlotHousehold)

	householdRef := p.Favorite(person.SlotHousehold)
	household := s.registry.ResolveRef(householdRef)
	var hh *place.Household
	if household != nil {
		hh = household.AsHousehold()
	}

	// 2. Sheltering in place ends the schedule here.
	if s.shelter && hh != nil && hh.IsSheltering(day) {
		return mask
	}

	// 3. Neighborhood bit defaults on, except prisoner/nursing-home.
	if p.Profile() != person.ProfilePrisoner && p.Profile() != person.ProfileNursingHomeResident {
		setBit(person.SlotNeighborhood)
	}

	weekday := s.cal.IsWeekday(day)
	if weekday {
		// 4. Weekday: school/classroom + workplace/office if non-null.
		if p.Favorite(person.SlotSchool).Valid() {
			setBit(person.SlotSchool)
		}
		if p.Favorite(person.SlotClassroom).Valid() {
			setBit(person.SlotClassroom)
		}
		if p.Favorite(person.SlotWorkplace).Valid() {
			setBit(person.SlotWorkplace)
		}
		if p.Favorite(person.SlotOffice).Valid() {
			setBit(person.SlotOffice)
		}
	} else {
		// 5. Weekend: weekend-worker/student always; hospital-staff with
		// probability 0.4.
		switch p.Profile() {
		case person.ProfileWeekendWorker, person.ProfileStudent:
			if p.Favorite(person.SlotWorkplace).Valid() {
				setBit(person.SlotWorkplace)
			}
			if p.Favorite(person.SlotOffice).Valid() {
				setBit(person.SlotOffice)
			}
		default:
			if isHospitalStaff(p) && rv.Binomial(1, 0.4) == 1.0 {
				if p.Favorite(person.SlotWorkplace).Valid() {
					setBit(person.SlotWorkplace)
				}
				if p.Favorite(person.SlotOffice).Valid() {
					setBit(person.SlotOffice)
				}
			}
		}
	}

	// 6. Visit the household's visitation hospital with probability 0.25
	// if a household member is hospitalized.
	if hh != nil && hh.HasHospitalizedMember() &&
		p.Profile() != person.ProfilePrisoner && p.Profile() != person.ProfileNursingHomeResident &&
		rv.Binomial(1, 0.25) == 1.0 {
		setBit(person.SlotAdHoc)
		p.SetFavorite(person.SlotAdHoc, place.HandleToRef(person.SlotAdHoc, hh.VisitationHospital))
	}

	// 7. Independent workplace/school absenteeism trials.
	if mask&(1<<uint(person.SlotWorkplace)) != 0 && s.absentee.WorkplaceAbsenteeism > 0 &&
		rv.Binomial(1, s.absentee.WorkplaceAbsenteeism) == 1.0 {
		mask &^= 1 << uint(person.SlotWorkplace)
		mask &^= 1 << uint(person.SlotOffice)
	}
	if mask&(1<<uint(person.SlotSchool)) != 0 && s.absentee.SchoolAbsenteeism > 0 &&
		rv.Binomial(1, s.absentee.SchoolAbsenteeism) == 1.0 {
		mask &^= 1 << uint(person.SlotSchool)
		mask &^= 1 << uint(person.SlotClassroom)
	}

	return mask
}

func isHospitalStaff(p *person.Person) bool {
	return p.Profile() == person.ProfileWorker && p.Favorite(person.SlotHospital).Valid()
}

// passC substitutes the neighborhood slot with a gravity-sampled
// destination, if the neighborhood bit is set (spec §4.4 Pass C).
func (s *Scheduler) passC(p *person.Person, mask uint8, stream *rng.Stream) uint8 {
	if mask&(1<<uint(person.SlotNeighborhood)) == 0 {
		return mask
	}
	homeRef := p.HomeNeighborhood()
	home := s.registry.ResolveRef(homeRef)
	if home == nil || s.gravity == nil {
		return mask
	}
	lat, lon := home.Coordinates()
	homePatch := s.grid.PatchFor(lat, lon)
	if homePatch == nil {
		return mask
	}
	dest := s.gravity.SampleDestination(homePatch, stream)
	if dest == nil || dest.NeighborhoodPlace() == nil {
		return mask
	}
	destHandle := s.registry.HandleOf(dest.NeighborhoodPlace())
	p.SetFavorite(person.SlotNeighborhood, place.HandleToRef(person.SlotNeighborhood, destHandle))
	p.SetCurrentNeighborhood(place.HandleToRef(person.SlotNeighborhood, destHandle))
	return mask
}

// passD applies symptomatic overrides for infectious agents: isolation
// latch, stay-home decision, seek-healthcare decision (spec §4.4 Pass D).
func (s *Scheduler) passD(p *person.Person, day int, mask uint8, stream *rng.Stream) uint8 {
	anyInfectious := false
	var symptomaticDisease int = -1
	for i := range s.diseases {
		d := p.Disease(i)
		if d.Health == person.Infectious {
			anyInfectious = true
			if d.Symptomatic() {
				symptomaticDisease = i
			}
		}
	}
	if !anyInfectious {
		return mask
	}

	// 1. Isolation latch.
	if s.isolation.Enabled && symptomaticDisease >= 0 {
		exposureDay := p.Disease(symptomaticDisease).ExposureDay
		if exposureDay >= 0 && day >= exposureDay+s.isolation.Delay {
			if rv.Binomial(1, s.isolation.Rate) == 1.0 {
				p.SetIsolated(true)
				return 0
			}
		}
	}

	if symptomaticDisease < 0 {
		return mask
	}

	// 2. Stay-home decision.
	if !p.IsHospitalized() {
		if s.decideStayHome(p, stream) {
			return uint8(1) << uint(person.SlotHousehold)
		}
	}

	// 3. Seek-healthcare decision.
	if s.hospitalCfg.Enabled {
		mask = s.decideSeekHealthcare(p, day, symptomaticDisease, mask, stream)
	}

	return mask
}

// decideStayHome implements spec §4.4 Pass D step 2: adults with sick
// leave consume their sick-days budget; otherwise use a default
// probability.
func (s *Scheduler) decideStayHome(p *person.Person, stream *rng.Stream) bool {
	if !p.SickLeaveDecided() {
		if p.Favorite(person.SlotWorkplace).Valid() && !p.SickLeaveAvailable() {
			p.SetSickLeaveAvailable(s.availabilityForProfile(p, stream))
		}
		p.SetSickLeaveDecided(true)
	}
	if p.SickLeaveAvailable() && p.SickDaysRemaining() > 0 {
		p.ConsumeSickDay()
		return true
	}
	const defaultStayHomeProb = 0.5
	return rv.Binomial(1, defaultStayHomeProb) == 1.0
}

// availabilityForProfile draws whether p's workplace offers sick leave,
// keyed by the workplace's size class (SPEC_FULL.md §12's
// 0.53/0.58/0.70/0.85 ladder from original_source/src/Activities.cc).
func (s *Scheduler) availabilityForProfile(p *person.Person, stream *rng.Stream) bool {
	prob := s.sickLeave.ProbMedium
	if wp := s.registry.ResolveRef(p.Favorite(person.SlotWorkplace)); wp != nil {
		if w := wp.AsWorkplace(); w != nil {
			switch w.Size {
			case place.SizeSmall:
				prob = s.sickLeave.ProbSmall
			case place.SizeMedium:
				prob = s.sickLeave.ProbMedium
			case place.SizeLarge:
				prob = s.sickLeave.ProbLarge
			case place.SizeXLarge:
				prob = s.sickLeave.ProbXLarge
			}
		}
	}
	return stream.Float64() < prob
}

// decideSeekHealthcare implements spec §4.4 Pass D step 3: compute
// hospitalization and outpatient probabilities, draw hospitalization first,
// outpatient only if hospitalization did not fire.
func (s *Scheduler) decideSeekHealthcare(p *person.Person, day, diseaseIdx int, mask uint8, stream *rng.Stream) uint8 {
	hospProb, outProb := s.healthcareProbabilities(p, diseaseIdx)

	if rv.Binomial(1, hospProb) == 1.0 {
		lat, lon := 0.0, 0.0
		householdLabel := ""
		if hh := s.registry.ResolveRef(p.Favorite(person.SlotHousehold)); hh != nil {
			lat, lon = hh.Coordinates()
			householdLabel = hh.Label()
		}
		var hospitalHandle place.PlaceHandle
		if s.hospital != nil {
			hospitalHandle = s.hospital.NearestHospital(lat, lon)
		}
		if !hospitalHandle.Valid() {
			s.warnings.Record(day, errs.Capacity, errs.NoHospitalFoundError, householdLabel)
			return mask
		}
		lengthOfStay := 3
		p.StartHospitalization(day, lengthOfStay, hospitalHandle)
		if hh := s.registry.ResolveRef(p.Favorite(person.SlotHousehold)); hh != nil {
			if h := hh.AsHousehold(); h != nil {
				h.SetExtendedAbsence(p.ID(), true)
				h.VisitationHospital = hospitalHandle
			}
		}
		return uint8(1) << uint(person.SlotHospital)
	}

	if rv.Binomial(1, outProb) == 1.0 {
		mask |= 1 << uint(person.SlotHousehold)
		mask |= 1 << uint(person.SlotNeighborhood)
		mask |= 1 << uint(person.SlotHospital)
	}
	return mask
}

// chronicConditionMultiplier gives the per-condition hospitalization/
// outpatient probability multiplier (Activities.cc:655-696's
// Health::get_chronic_condition_hospitalization_prob_mult lookup; the
// retrieved source does not carry that table's concrete values, so these
// are illustrative flat multipliers keyed by condition).
const (
	asthmaMultiplier              = 1.2
	copdMultiplier                = 1.5
	chronicRenalDiseaseMultiplier = 1.6
	diabetesMultiplier            = 1.3
	heartDiseaseMultiplier        = 1.4
	hypertensionMultiplier        = 1.15
	hypercholestrolemiaMultiplier = 1.1
	pregnancyMultiplier           = 1.25
)

// healthcareProbabilities computes age-indexed baseline + disease add-on +
// chronic-condition multipliers + pregnancy multiplier (spec §4.4 Pass D
// step 3). Each chronic condition's multiplier is applied exactly once
// (spec §9/§13: the source's double-application of diabetes/heart-disease
// multipliers is a bug, not reproduced here).
func (s *Scheduler) healthcareProbabilities(p *person.Person, diseaseIdx int) (hospProb, outProb float64) {
	baseline := ageIndexedBaseline(p.Age())
	addOn := 0.0
	if diseaseIdx >= 0 && diseaseIdx < len(s.diseases) {
		addOn = s.diseases[diseaseIdx].Transmissibility * 0.05
	}
	hospProb = baseline + addOn
	outProb = hospProb * 3

	if cc := p.ChronicConditions(); cc.HasAny() {
		if cc.Asthma {
			hospProb *= asthmaMultiplier
			outProb *= asthmaMultiplier
		}
		if cc.COPD {
			hospProb *= copdMultiplier
			outProb *= copdMultiplier
		}
		if cc.ChronicRenalDisease {
			hospProb *= chronicRenalDiseaseMultiplier
			outProb *= chronicRenalDiseaseMultiplier
		}
		if cc.Diabetes {
			hospProb *= diabetesMultiplier
			outProb *= diabetesMultiplier
		}
		if cc.HeartDisease {
			hospProb *= heartDiseaseMultiplier
			outProb *= heartDiseaseMultiplier
		}
		if cc.Hypertension {
			hospProb *= hypertensionMultiplier
			outProb *= hypertensionMultiplier
		}
		if cc.Hypercholestrolemia {
			hospProb *= hypercholestrolemiaMultiplier
			outProb *= hypercholestrolemiaMultiplier
		}
	}
	if p.Pregnant() {
		hospProb *= pregnancyMultiplier
		outProb *= pregnancyMultiplier
	}

	hospProb = clamp01(hospProb)
	outProb = clamp01(outProb)
	return
}

func ageIndexedBaseline(age int) float64 {
	switch {
	case age < 5:
		return 0.02
	case age < 18:
		return 0.005
	case age < 65:
		return 0.01
	default:
		return 0.05
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
