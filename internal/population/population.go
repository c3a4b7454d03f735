// Package population owns every living Person (spec §3 "Lifecycles":
// Population owns all persons; links from Person to Place are non-owning
// indices, spec §9). Termination swap-removes from the dense slice and
// fixes up the moved tail element's index, the same pattern
// RemovePathogensByID uses in host.go for removing pathogens by ID.
package population

import (
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
)

// Population is the stable-index container of living persons.
type Population struct {
	people []*person.Person
	index  map[person.ID]int
}

// New creates an empty population.
func New() *Population {
	return &Population{index: make(map[person.ID]int)}
}

// Add registers a new person.
func (p *Population) Add(per *person.Person) {
	p.index[per.ID()] = len(p.people)
	p.people = append(p.people, per)
}

// Get resolves a person by ID, or nil if not present (e.g. already
// terminated).
func (p *Population) Get(id person.ID) *person.Person {
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	return p.people[i]
}

// Len returns the number of living persons.
func (p *Population) Len() int {
	return len(p.people)
}

// All returns the dense slice of living persons. Callers must not retain
// the slice across a Remove call.
func (p *Population) All() []*person.Person {
	return p.people
}

// Remove terminates a person: swap-removes them from the dense slice and
// fixes up the index entry for whichever person was moved into the vacated
// slot (spec §3 "Lifecycles": on termination, the agent is unenrolled from
// every favorite place — callers are expected to have already done that
// unenrollment via the Place Registry before calling Remove).
func (p *Population) Remove(id person.ID) bool {
	i, ok := p.index[id]
	if !ok {
		return false
	}
	last := len(p.people) - 1
	moved := p.people[last]
	p.people[i] = moved
	p.people = p.people[:last]
	delete(p.index, id)
	if moved.ID() != id {
		p.index[moved.ID()] = i
	}
	return true
}

// Range calls fn for every living person; stops early if fn returns false.
func (p *Population) Range(fn func(per *person.Person) bool) {
	for _, per := range p.people {
		if !fn(per) {
			return
		}
	}
}
