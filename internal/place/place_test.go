package place

import (
	"testing"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
)

func TestAddDeduplicatesByLabelAndKind(t *testing.T) {
	r := NewRegistry(1)
	h1 := r.Add("123 Main St", Household, SubtypeNone, 1, 1, 0)
	h2 := r.Add("123 Main St", Household, SubtypeNone, 1, 1, 0)
	if h1 != h2 {
		t.Errorf("Add with the same label/kind should return the same handle, got %v and %v", h1, h2)
	}
	if len(r.Households()) != 1 {
		t.Errorf("Households() = %d, want 1 after deduped Add", len(r.Households()))
	}
}

func TestEnrollUnenrollIdempotent(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("school A", School, SubtypeNone, 0, 0, 0)
	pl := r.Resolve(h)
	id := person.NewID()

	pl.Enroll(id)
	pl.Enroll(id) // no-op, already enrolled
	if pl.EnrolledCount() != 1 {
		t.Errorf("EnrolledCount = %d, want 1 after duplicate Enroll", pl.EnrolledCount())
	}
	pl.Unenroll(id)
	if pl.EnrolledCount() != 0 {
		t.Errorf("EnrolledCount = %d, want 0 after Unenroll", pl.EnrolledCount())
	}
	// Unenrolling an absent member must not panic.
	pl.Unenroll(id)
}

func TestVisitorsTodayMergesFragmentsAcrossPartitions(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("workplace A", Workplace, SubtypeNone, 0, 0, 0)
	pl := r.Resolve(h)

	sIDs := []person.ID{person.NewID(), person.NewID()}
	iIDs := []person.ID{person.NewID()}

	pl.JoinSusceptible(0, 0, sIDs[0])
	pl.JoinSusceptible(0, 1, sIDs[1])
	pl.MarkInfectious(0, 0, iIDs[0])

	susceptible, infectious := pl.VisitorsToday(0)
	if len(susceptible) != 2 {
		t.Errorf("susceptible = %d, want 2", len(susceptible))
	}
	if len(infectious) != 1 {
		t.Errorf("infectious = %d, want 1", len(infectious))
	}

	pl.ResetDailyState()
	susceptible, infectious = pl.VisitorsToday(0)
	if len(susceptible) != 0 || len(infectious) != 0 {
		t.Errorf("ResetDailyState should clear visitor fragments, got %d susceptible, %d infectious",
			len(susceptible), len(infectious))
	}
}

func TestShouldBeOpenRespectsOpenCloseBounds(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("clinic", Hospital, SubtypeNone, 0, 0, 0)
	pl := r.Resolve(h)
	pl.SetOpenClose(10, 20)

	if pl.ShouldBeOpen(5, 0) {
		t.Errorf("place should not be open before its open date")
	}
	if !pl.ShouldBeOpen(10, 0) {
		t.Errorf("place should be open on its open date")
	}
	if !pl.ShouldBeOpen(19, 0) {
		t.Errorf("place should be open the day before its close date")
	}
	if pl.ShouldBeOpen(20, 0) {
		t.Errorf("place should be closed on its close date")
	}
}

func TestShouldBeOpenZeroCloseDateNeverCloses(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("clinic2", Hospital, SubtypeNone, 0, 0, 0)
	pl := r.Resolve(h)
	pl.SetOpenClose(0, 0)
	if !pl.ShouldBeOpen(100000, 0) {
		t.Errorf("a zero close date should mean the place never closes")
	}
}

func TestRecordInfectiousDayTracksFirstAndLast(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("n1", Neighborhood, SubtypeNone, 0, 0, 0)
	pl := r.Resolve(h)

	if _, _, ok := pl.InfectiousDayRange(0); ok {
		t.Fatalf("InfectiousDayRange should report ok=false before any record")
	}
	pl.RecordInfectiousDay(0, 5)
	pl.RecordInfectiousDay(0, 3)
	pl.RecordInfectiousDay(0, 8)

	first, last, ok := pl.InfectiousDayRange(0)
	if !ok || first != 5 || last != 8 {
		t.Errorf("InfectiousDayRange = %d,%d,%v want 5,8,true", first, last, ok)
	}
}

func TestGradeHasCapacity(t *testing.T) {
	s := &School{
		OriginalPerGrade: map[int]int{1: 20},
		CurrentPerGrade:  map[int]int{1: 29},
	}
	if !s.GradeHasCapacity(1) {
		t.Errorf("29 <= 1.5*20=30 should have capacity")
	}
	s.CurrentPerGrade[1] = 31
	if s.GradeHasCapacity(1) {
		t.Errorf("31 > 1.5*20=30 should not have capacity")
	}
	// A grade never seen before (orig==0) only has capacity if still empty.
	if !s.GradeHasCapacity(5) {
		t.Errorf("an empty, never-seen grade should have capacity")
	}
}

func TestClassifySizeThresholds(t *testing.T) {
	cases := []struct {
		headcount int
		want      SizeClass
	}{
		{10, SizeSmall},
		{49, SizeSmall},
		{50, SizeMedium},
		{99, SizeMedium},
		{100, SizeLarge},
		{499, SizeLarge},
		{500, SizeXLarge},
	}
	for _, c := range cases {
		if got := ClassifySize(c.headcount); got != c.want {
			t.Errorf("ClassifySize(%d) = %v, want %v", c.headcount, got, c.want)
		}
	}
}

func TestRegisterInfectiousPlaceIdempotentPerDay(t *testing.T) {
	r := NewRegistry(1)
	h := r.Add("n2", Neighborhood, SubtypeNone, 0, 0, 0)

	r.RegisterInfectiousPlace(0, h)
	r.RegisterInfectiousPlace(0, h)
	handles := r.InfectiousPlacesToday(0)
	if len(handles) != 1 {
		t.Errorf("InfectiousPlacesToday = %d, want 1 (duplicate registration should dedup)", len(handles))
	}

	r.ResetDailyState()
	if len(r.InfectiousPlacesToday(0)) != 0 {
		t.Errorf("ResetDailyState should clear the infectious-today registration set")
	}
}
