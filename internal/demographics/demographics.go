// Package demographics implements Population Dynamics (C6): the two yearly
// calendar-triggered events (school-year-end unenrollment, age-up/
// retirement/profile-reassignment) and the birth/death/migration queues
// that drain into internal/population's swap-remove termination.
//
// Grounded on original_source/src/Activities.cc for the age-up mechanics
// (profile reassignment thresholds, retirement draw, group-quarters
// profile inheritance) and on host.go's RemovePathogensByID swap-remove
// pattern, which internal/population.Population.Remove already
// generalizes for person termination (this package only decides *when*
// to call it).
package demographics

import (
	"sync"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/calendar"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"

	rv "github.com/kentwait/randomvariate"
)

// Event is one queued birth, death, or migration, applied at the end of a
// simulated day (spec §4.6 "Birth/death/migration queues": queued during
// the day, drained once, single-threaded, at day end).
type Event struct {
	Kind EventKind
	ID   person.ID
	// NewPerson is set for Birth events: the already-constructed newborn to
	// add to the population.
	NewPerson *person.Person
}

// EventKind names the three queue event types.
type EventKind int

const (
	Birth EventKind = iota
	Death
	Migration
)

// Queue accumulates a day's birth/death/migration events. Safe for
// concurrent Push calls from the Agent phase's partitions; Drain is
// single-threaded.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push enqueues an event; safe for concurrent use.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
}

// Drain removes and returns every queued event.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	out := q.events
	q.events = nil
	q.mu.Unlock()
	return out
}

// Engine runs the Population Dynamics phase (spec §4.6).
type Engine struct {
	cal      *calendar.Calendar
	registry *place.Registry
	pop      *population.Population
	queue    *Queue

	retirementProb float64
}

// New builds a Population Dynamics engine.
func New(cal *calendar.Calendar, registry *place.Registry, pop *population.Population, queue *Queue) *Engine {
	return &Engine{cal: cal, registry: registry, pop: pop, queue: queue, retirementProb: 0.5}
}

// RunDailyEvents drains the birth/death/migration queue, applying each
// event in order (spec §4.6). Must be called single-threaded, once per
// simulated day, after the Place phase.
func (e *Engine) RunDailyEvents(day int) {
	for _, ev := range e.queue.Drain() {
		switch ev.Kind {
		case Birth:
			if ev.NewPerson != nil {
				e.pop.Add(ev.NewPerson)
			}
		case Death, Migration:
			e.terminate(ev.ID)
		}
	}
}

// terminate unenrolls a person from every favorite place and removes them
// from the population (spec §3 "Lifecycles").
func (e *Engine) terminate(id person.ID) {
	p := e.pop.Get(id)
	if p == nil {
		return
	}
	for kind := 0; kind < person.NumSlots; kind++ {
		ref := p.Favorite(person.SlotKind(kind))
		if !ref.Valid() {
			continue
		}
		if pl := e.registry.ResolveRef(ref); pl != nil {
			pl.Unenroll(id)
		}
	}
	p.Kill()
	e.pop.Remove(id)
}

// RunYearlyEvents fires the two calendar-triggered yearly events: school-
// year-end unenrollment on July 31, and age-up/retirement/profile
// reassignment on August 1 (spec §4.6). It checks the calendar predicates
// itself, so callers invoke it every day. The July 31 unenrollment is
// idempotent; the August 1 age-up adds one year to every age on each call,
// so it must run only once per trigger day.
func (e *Engine) RunYearlyEvents(day int) {
	if e.cal.IsSchoolYearEnd(day) {
		e.endSchoolYear()
	}
	if e.cal.IsAgeUpDay(day) {
		e.ageUp()
	}
}

// endSchoolYear unenrolls every student from their school and classroom,
// per spec §4.6's July 31 trigger. Grade advancement/reassignment happens
// the next day in ageUp, mirroring the source's two-step "promote, then
// assign" transition across the two trigger days.
func (e *Engine) endSchoolYear() {
	e.pop.Range(func(p *person.Person) bool {
		if p.Profile() != person.ProfileStudent && p.Profile() != person.ProfileCollegeStudent {
			return true
		}
		if ref := p.Favorite(person.SlotSchool); ref.Valid() {
			if pl := e.registry.ResolveRef(ref); pl != nil {
				pl.Unenroll(p.ID())
				if sch := pl.AsSchool(); sch != nil {
					sch.CurrentPerGrade[p.Grade()]--
				}
			}
		}
		p.SetFavorite(person.SlotSchool, person.NilPlaceRef)
		if ref := p.Favorite(person.SlotClassroom); ref.Valid() {
			if pl := e.registry.ResolveRef(ref); pl != nil {
				pl.Unenroll(p.ID())
			}
		}
		p.SetFavorite(person.SlotClassroom, person.NilPlaceRef)
		return true
	})
}

// ageUp re-evaluates every living person's age-derived profile on August 1
// (spec §4.6): preschool -> student at school-entry age (a student without
// a school, e.g. after the July 31 unenrollment, is assigned one), student
// or preschooler -> worker at graduation age (unemployed if no workplace
// has room), worker -> retired with
// probability retirementProb once past retirement age. Group-quarters
// residents keep their group-quarters profile regardless of age (spec §4.6
// "Group quarters" rule), since a nursing-home resident or prisoner's
// schedule is driven by their residency, not their age bracket.
func (e *Engine) ageUp() {
	const (
		schoolEntryAge = 5
		graduationAge  = 18
		retirementAge  = 65
	)
	e.pop.Range(func(p *person.Person) bool {
		p.SetAge(p.Age() + 1)

		if p.Profile().IsGroupQuarters() {
			return true
		}

		switch {
		case p.Age() < schoolEntryAge:
			p.SetProfile(person.ProfilePreschool)
		case p.Age() < graduationAge:
			p.SetProfile(person.ProfileStudent)
			if !p.Favorite(person.SlotSchool).Valid() {
				if !e.AssignSchool(p, e.countyOf(p), e.registry.Schools()) {
					p.SetFavorite(person.SlotSchool, person.NilPlaceRef)
				}
			}
		case p.Age() < retirementAge:
			if p.Profile() == person.ProfileStudent || p.Profile() == person.ProfilePreschool {
				if e.AssignWorkplace(p, e.registry.Workplaces()) {
					p.SetProfile(person.ProfileWorker)
				} else {
					p.SetProfile(person.ProfileUnemployed)
				}
			}
		default:
			if p.Profile() == person.ProfileWorker {
				if rv.Binomial(1, e.retirementProb) == 1.0 {
					p.SetProfile(person.ProfileRetired)
				}
			}
		}
		return true
	})
}

// AssignSchool places a newly school-age or newly arrived student at a
// school with capacity for their grade, skipping schools whose county
// differs from countyFIPS when both are known (spec §4.6's
// school-assignment rule). The student's grade is set from their age before
// the search. Returns false (enrolling nowhere) if no school has room,
// leaving the student's school slot empty — a Capacity-kind warning the
// caller should log via internal/errs.
func (e *Engine) AssignSchool(p *person.Person, countyFIPS string, candidates []*place.Place) bool {
	grade := gradeForAge(p.Age())
	p.SetGrade(grade, grade)
	for _, pl := range candidates {
		sch := pl.AsSchool()
		if sch == nil {
			continue
		}
		if sch.CountyFIPS != "" && countyFIPS != "" && sch.CountyFIPS != countyFIPS {
			continue
		}
		if grade > sch.MaxGrade {
			continue
		}
		if !sch.GradeHasCapacity(grade) {
			continue
		}
		handle := e.registry.HandleOf(pl)
		p.SetFavorite(person.SlotSchool, place.HandleToRef(person.SlotSchool, handle))
		pl.Enroll(p.ID())
		sch.CurrentPerGrade[grade]++
		return true
	}
	return false
}

// AssignWorkplace places a newly working-age agent at the first workplace
// candidate with remaining enrollment capacity (spec §4.6's
// workplace-assignment rule for promoted students/preschoolers). Returns
// false if no candidate has room, leaving the workplace slot empty.
func (e *Engine) AssignWorkplace(p *person.Person, candidates []*place.Place) bool {
	for _, pl := range candidates {
		wp := pl.AsWorkplace()
		if wp == nil {
			continue
		}
		if pl.Capacity() > 0 && pl.EnrolledCount() >= pl.Capacity() {
			continue
		}
		handle := e.registry.HandleOf(pl)
		p.SetFavorite(person.SlotWorkplace, place.HandleToRef(person.SlotWorkplace, handle))
		pl.Enroll(p.ID())
		return true
	}
	return false
}

// countyOf returns p's household county FIPS, or "" if unresolvable.
func (e *Engine) countyOf(p *person.Person) string {
	if home := e.registry.ResolveRef(p.Favorite(person.SlotHousehold)); home != nil {
		if h := home.AsHousehold(); h != nil {
			return h.CountyFIPS
		}
	}
	return ""
}

func gradeForAge(age int) int {
	grade := age - 5
	if grade < 1 {
		grade = 1
	}
	return grade
}
