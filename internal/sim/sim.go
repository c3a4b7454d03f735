// Package sim implements the Day Loop (C7): the top-level per-day
// orchestrator that advances the calendar, runs the Agent phase (schedule
// + join visitor lists) and Place phase (transmission) in parallel across
// fixed partitions, then the demographic phase, then snapshots counts to
// the reporter.
//
// Grounded on epidemic_si.go's Run/Update/Process/Transmit loop shape: a
// fixed generation counter driving Process (per-host goroutine fan-out
// gated by status) then Transmit (per-infected-host goroutine fan-out),
// each phase synchronized by its own sync.WaitGroup before the next phase
// starts. Here the fan-out unit is a population partition rather than one
// goroutine per agent, since a Day Loop runs over a much larger population
// than the teacher's per-host channel pattern was sized for; partitions
// also double as internal/rng's deterministic substream unit (spec §5).
package sim

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/calendar"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/demographics"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/schedule"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/transmission"
)

// Stats is one day's global summary counters, collected without locks by
// giving each partition its own accumulator and summing at the barrier
// (spec §6 "Outputs" per-day counts).
type Stats struct {
	Day                int
	Susceptible        []int // indexed by disease
	Exposed            []int
	Infectious         []int
	Symptomatic        []int
	Recovered          []int
	NewExposures       []int
	NewSymptomatic     []int
}

func newStats(day, numDiseases int) *Stats {
	return &Stats{
		Day:            day,
		Susceptible:    make([]int, numDiseases),
		Exposed:        make([]int, numDiseases),
		Infectious:     make([]int, numDiseases),
		Symptomatic:    make([]int, numDiseases),
		Recovered:      make([]int, numDiseases),
		NewExposures:   make([]int, numDiseases),
		NewSymptomatic: make([]int, numDiseases),
	}
}

func (s *Stats) add(o *Stats) {
	for i := range s.Susceptible {
		s.Susceptible[i] += o.Susceptible[i]
		s.Exposed[i] += o.Exposed[i]
		s.Infectious[i] += o.Infectious[i]
		s.Symptomatic[i] += o.Symptomatic[i]
		s.Recovered[i] += o.Recovered[i]
		s.NewExposures[i] += o.NewExposures[i]
		s.NewSymptomatic[i] += o.NewSymptomatic[i]
	}
}

// Reporter is the external sink the Day Loop snapshots to at the end of
// each day (spec §6 "Outputs"); internal/report implements it.
type Reporter interface {
	RecordDay(stats *Stats) error
	RecordPlaces(registry *place.Registry, numDiseases int) error
	Flush() error
}

// Sim is the assembled, ready-to-run simulation: every component wired
// together over a shared population and place registry (spec §1
// "Simulation core").
type Sim struct {
	cal          *calendar.Calendar
	registry     *place.Registry
	pop          *population.Population
	diseases     disease.Set
	scheduler    *schedule.Scheduler
	engine       *transmission.Engine
	demographics *demographics.Engine
	pool         *rng.Pool
	reporter     Reporter
	warnings     *errs.Warnings

	numPartitions int
	day           int
}

// Config bundles Sim's collaborators (spec §1's core components wired
// together by the CLI boundary, cmd/fred).
type Config struct {
	Calendar      *calendar.Calendar
	Registry      *place.Registry
	Population    *population.Population
	Diseases      disease.Set
	Scheduler     *schedule.Scheduler
	Engine        *transmission.Engine
	Demographics  *demographics.Engine
	RNGPool       *rng.Pool
	Reporter      Reporter
	Warnings      *errs.Warnings
	NumPartitions int
}

// New assembles a Sim ready for prepare()/Step()/Finalize() (spec §4.7).
func New(cfg Config) *Sim {
	n := cfg.NumPartitions
	if n < 1 {
		n = 1
	}
	return &Sim{
		cal:           cfg.Calendar,
		registry:      cfg.Registry,
		pop:           cfg.Population,
		diseases:      cfg.Diseases,
		scheduler:     cfg.Scheduler,
		engine:        cfg.Engine,
		demographics:  cfg.Demographics,
		pool:          cfg.RNGPool,
		reporter:      cfg.Reporter,
		warnings:      cfg.Warnings,
		numPartitions: n,
		day:           -1,
	}
}

// Prepare runs any one-time setup needed before day 0 (spec §4.7
// "prepare()"): here, recording the day-0 snapshot of every agent's
// initial favorite places as their home neighborhood, if not already set
// by the population loader.
func (s *Sim) Prepare(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		s.pop.Range(func(p *person.Person) bool {
			if !p.HomeNeighborhood().Valid() {
				p.SetHomeNeighborhood(p.Favorite(person.SlotNeighborhood))
			}
			p.SetCurrentNeighborhood(p.HomeNeighborhood())
			return true
		})
		return nil
	})
	return g.Wait()
}

// Step runs one simulated day (spec §4.7 "Day Loop"): Agent phase
// (schedule + visitor-list join) fanned out across partitions, Place phase
// (transmission) fanned out across the places registered infectious today,
// demographic phase, then a reporter snapshot.
func (s *Sim) Step(ctx context.Context) (*Stats, error) {
	s.day++
	day := s.day
	dayOfYear := s.cal.DayOfYear(day)

	s.pop.Range(func(p *person.Person) bool {
		p.ResetDailyExposureLatch()
		return true
	})

	partitionStats := s.agentPhase(day)
	s.placePhase(day, dayOfYear)

	s.demographics.RunDailyEvents(day)
	s.demographics.RunYearlyEvents(day)

	s.registry.ResetDailyState()

	total := newStats(day, len(s.diseases))
	for _, st := range partitionStats {
		total.add(st)
	}

	if s.reporter != nil {
		if err := s.reporter.RecordDay(total); err != nil {
			return total, errs.Wrap(err, "recording day %d", day)
		}
		if err := s.reporter.RecordPlaces(s.registry, len(s.diseases)); err != nil {
			return total, errs.Wrap(err, "recording places for day %d", day)
		}
	}
	return total, nil
}

// agentPhase assigns each living person to a partition by a stable hash of
// their position in the population slice, runs the scheduler, and joins
// favorite places' visitor-fragment lists — all without locking, since
// each partition only ever writes its own fragment slot (spec §4.2/§5).
func (s *Sim) agentPhase(day int) []*Stats {
	people := s.pop.All()
	results := make([]*Stats, s.numPartitions)

	var wg sync.WaitGroup
	wg.Add(s.numPartitions)
	for part := 0; part < s.numPartitions; part++ {
		part := part
		go func() {
			defer wg.Done()
			stream := s.pool.Stream(part)
			st := newStats(day, len(s.diseases))
			for i := part; i < len(people); i += s.numPartitions {
				p := people[i]
				if !p.Alive() {
					continue
				}
				s.progressDiseases(p, day, stream)
				s.scheduler.Update(p, day, stream)
				s.joinVisitorLists(p, day, part, st)
			}
			results[part] = st
		}()
	}
	wg.Wait()
	return results
}

// joinVisitorLists implements spec §4.7's per-agent, per-disease dispatch:
// an infectious agent marks every favorite place they visit today as
// infectious; a susceptible agent joins the susceptible visitor list
// instead. Also accumulates this partition's compartment counts.
func (s *Sim) joinVisitorLists(p *person.Person, day, partition int, st *Stats) {
	for d := range s.diseases {
		ds := p.Disease(d)
		switch ds.Health {
		case person.Susceptible:
			st.Susceptible[d]++
		case person.Exposed:
			st.Exposed[d]++
			if ds.ExposureDay == day {
				st.NewExposures[d]++
			}
		case person.Infectious:
			st.Infectious[d]++
			if ds.Symptomatic() {
				st.Symptomatic[d]++
				if ds.SymptomaticDay() == day {
					st.NewSymptomatic[d]++
				}
			}
		case person.Recovered, person.Immune:
			st.Recovered[d]++
		}

		infectious := ds.Health == person.Infectious
		susceptible := ds.Health == person.Susceptible
		if !infectious && !susceptible {
			continue
		}
		for kind := 0; kind < person.NumSlots; kind++ {
			if !p.Visits(person.SlotKind(kind)) {
				continue
			}
			ref := p.Favorite(person.SlotKind(kind))
			if !ref.Valid() {
				continue
			}
			pl := s.registry.ResolveRef(ref)
			if pl == nil {
				continue
			}
			if infectious {
				pl.MarkInfectious(d, partition, p.ID())
				s.registry.RegisterInfectiousPlace(d, s.registry.HandleOf(pl))
			} else {
				pl.JoinSusceptible(d, partition, p.ID())
			}
		}
	}
}

// placePhase runs the Transmission Engine over every place registered
// infectious today, one goroutine per partition of the infectious-place
// list (spec §4.5/§4.7's Place phase). Each place is processed by exactly
// one partition, so VisitorsToday's single-threaded-merge contract holds.
func (s *Sim) placePhase(day, dayOfYear int) {
	isWeekend := s.cal.IsWeekend(day)
	for d := range s.diseases {
		handles := s.registry.InfectiousPlacesToday(d)
		if len(handles) == 0 {
			continue
		}
		var wg sync.WaitGroup
		wg.Add(s.numPartitions)
		for part := 0; part < s.numPartitions; part++ {
			part := part
			d := d
			go func() {
				defer wg.Done()
				stream := s.pool.Stream(part)
				for i := part; i < len(handles); i += s.numPartitions {
					pl := s.registry.Resolve(handles[i])
					if pl == nil {
						continue
					}
					s.engine.ProcessPlace(pl, d, day, dayOfYear, part, isWeekend, stream)
				}
			}()
		}
		wg.Wait()
	}
}

// Finalize runs after the last simulated day: flushes the reporter (spec
// §4.7 "finalize()").
func (s *Sim) Finalize(ctx context.Context) error {
	if s.reporter == nil {
		return nil
	}
	return s.reporter.Flush()
}

// Day returns the last simulated day index, -1 before the first Step.
func (s *Sim) Day() int { return s.day }
