package transmission

import (
	"math"
	"math/rand"
	"sync"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
)

// vectorState holds one place's susceptible/exposed/infectious mosquito
// compartments (spec §4.5 "Vector model": "Vector compartments (S/E/I) are
// updated daily from temperature-dependent birth and maturation rates").
type vectorState struct {
	susceptible float64
	exposed     float64
	infectious  float64
	lastDay     int
}

// MosquitoPopulation is the default concrete VectorPopulation: one S/E/I
// compartment per place, advanced once per simulation day and consulted/
// mutated by Engine.VectorModel during the Place phase (spec §4.5 "Vector
// model").
//
// Grounded on intrahost_process.go's per-generation "ask the model how
// much moves this tick" pattern, generalized from one pathogen-replication
// clock to per-place vector compartments; the daily birth/maturation step
// mirrors evoepi_config.go's per-section numeric-parameter table shape,
// here keyed by place rather than by host.
type MosquitoPopulation struct {
	mu     sync.Mutex
	states map[place.ID]*vectorState

	// BirthRate is the per-day count of new susceptible vectors born at a
	// place (before the temperature factor); MaturationRate is the
	// per-day fraction of exposed vectors that become infectious.
	BirthRate      float64
	MaturationRate float64

	// TemperatureFn looks up a place's local temperature (Celsius) for a
	// simulated day; nil defaults to a constant 25C (spec §1 marks
	// climate/seasonality data ingestion out of scope for the core, so
	// this hook lets an external collaborator supply it without
	// MosquitoPopulation depending on that ingestion layer).
	TemperatureFn func(pl *place.Place, day int) float64
}

// NewMosquitoPopulation creates a vector population with the given daily
// birth and maturation rates.
func NewMosquitoPopulation(birthRate, maturationRate float64) *MosquitoPopulation {
	return &MosquitoPopulation{
		states:         make(map[place.ID]*vectorState),
		BirthRate:      birthRate,
		MaturationRate: maturationRate,
	}
}

func (m *MosquitoPopulation) stateFor(pl *place.Place) *vectorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[pl.ID()]
	if !ok {
		s = &vectorState{lastDay: -1}
		m.states[pl.ID()] = s
	}
	return s
}

// Seed sets a place's initial susceptible-vector count, for bootstrapping
// a run's vector population (spec §8 scenario 6 "mosquito_seeds").
func (m *MosquitoPopulation) Seed(pl *place.Place, susceptible float64) {
	s := m.stateFor(pl)
	m.mu.Lock()
	s.susceptible = susceptible
	m.mu.Unlock()
}

// Advance applies one day's temperature-dependent birth/maturation step:
// exposed vectors mature into infectious ones at MaturationRate (scaled by
// temperature), and newly born susceptibles arrive at BirthRate (scaled by
// temperature). Idempotent per (place, day) so repeated calls within the
// same simulated day are no-ops.
func (m *MosquitoPopulation) Advance(pl *place.Place, day int) {
	s := m.stateFor(pl)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.lastDay == day {
		return
	}
	s.lastDay = day

	temp := 25.0
	if m.TemperatureFn != nil {
		temp = m.TemperatureFn(pl, day)
	}
	tempFactor := temp / 30.0
	if tempFactor < 0 {
		tempFactor = 0
	}
	if tempFactor > 1 {
		tempFactor = 1
	}

	matured := s.exposed * m.MaturationRate * tempFactor
	s.exposed -= matured
	s.infectious += matured
	s.susceptible += m.BirthRate * tempFactor
}

// SusceptibleVectorCount implements VectorPopulation.
func (m *MosquitoPopulation) SusceptibleVectorCount(pl *place.Place, day int) int {
	s := m.stateFor(pl)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Floor(s.susceptible))
}

// InfectiousVectorCount implements VectorPopulation.
func (m *MosquitoPopulation) InfectiousVectorCount(pl *place.Place, day int) int {
	s := m.stateFor(pl)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Floor(s.infectious))
}

// InfectVector implements VectorPopulation: moves one susceptible vector
// into the exposed compartment per host bite (spec §4.5 stage (a)
// "infect vectors from hosts").
func (m *MosquitoPopulation) InfectVector(pl *place.Place, day int, r *rand.Rand) {
	s := m.stateFor(pl)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.susceptible < 1 {
		return
	}
	s.susceptible--
	s.exposed++
}
