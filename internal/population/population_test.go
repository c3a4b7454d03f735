package population

import (
	"testing"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
)

func newPerson(age int) *person.Person {
	return person.New(person.NewID(), age, person.SexUnknown)
}

func TestAddGetLen(t *testing.T) {
	pop := New()
	a := newPerson(10)
	b := newPerson(20)
	pop.Add(a)
	pop.Add(b)

	if pop.Len() != 2 {
		t.Fatalf("Len = %d, want 2", pop.Len())
	}
	if pop.Get(a.ID()) != a {
		t.Errorf("Get(a) did not return a")
	}
	if pop.Get(person.NewID()) != nil {
		t.Errorf("Get on an unknown ID should return nil")
	}
}

func TestRemoveSwapFixesUpMovedIndex(t *testing.T) {
	pop := New()
	a := newPerson(1)
	b := newPerson(2)
	c := newPerson(3)
	pop.Add(a)
	pop.Add(b)
	pop.Add(c)

	if ok := pop.Remove(a.ID()); !ok {
		t.Fatalf("Remove(a) should report true")
	}
	if pop.Len() != 2 {
		t.Fatalf("Len after remove = %d, want 2", pop.Len())
	}
	if pop.Get(a.ID()) != nil {
		t.Errorf("a should no longer be resolvable after Remove")
	}
	// c was swapped into a's slot; it must still resolve correctly.
	if pop.Get(c.ID()) != c {
		t.Errorf("Get(c) after swap-remove did not return c")
	}
	if pop.Get(b.ID()) != b {
		t.Errorf("Get(b) after swap-remove did not return b")
	}

	if ok := pop.Remove(person.NewID()); ok {
		t.Errorf("Remove on an unknown ID should report false")
	}
}

func TestRemoveLastElementNoFixupNeeded(t *testing.T) {
	pop := New()
	a := newPerson(1)
	pop.Add(a)
	if ok := pop.Remove(a.ID()); !ok {
		t.Fatalf("Remove(a) should succeed")
	}
	if pop.Len() != 0 {
		t.Errorf("Len = %d, want 0", pop.Len())
	}
}

func TestRangeStopsEarly(t *testing.T) {
	pop := New()
	for i := 0; i < 5; i++ {
		pop.Add(newPerson(i))
	}
	visited := 0
	pop.Range(func(p *person.Person) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range visited %d people, want 3 (early stop)", visited)
	}
}

func TestAllReflectsCurrentMembership(t *testing.T) {
	pop := New()
	a := newPerson(1)
	b := newPerson(2)
	pop.Add(a)
	pop.Add(b)
	pop.Remove(a.ID())

	all := pop.All()
	if len(all) != 1 || all[0] != b {
		t.Errorf("All() = %v, want [b]", all)
	}
}
