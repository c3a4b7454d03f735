package person

import "testing"

func TestBecomeExposedLatchesOnce(t *testing.T) {
	p := New(NewID(), 30, SexFemale)
	infector := NewID()

	if ok := p.BecomeExposed(0, 5, infector); !ok {
		t.Fatalf("first BecomeExposed should succeed")
	}
	if got := p.Disease(0).Health; got != Exposed {
		t.Errorf("health = %v, want Exposed", got)
	}
	if ok := p.BecomeExposed(0, 5, NewID()); ok {
		t.Errorf("second BecomeExposed on the same day should be rejected by the latch")
	}
	if id, ok := p.Disease(0).Infector(); !ok || id != infector {
		t.Errorf("infector = %v,%v want %v,true", id, ok, infector)
	}
}

func TestResetDailyExposureLatchReopensNextDay(t *testing.T) {
	p := New(NewID(), 30, SexMale)
	p.Disease(0).Health = Susceptible
	p.BecomeExposed(0, 1, NewID())
	p.ResetDailyExposureLatch()

	// Put the disease state back to Susceptible to simulate a fresh disease
	// slot (BecomeExposed only succeeds from Susceptible); this exercises
	// only the latch, not cross-day compartment re-entry.
	p.Disease(0).Health = Susceptible
	if ok := p.BecomeExposed(0, 2, NewID()); !ok {
		t.Errorf("BecomeExposed should succeed again once the latch is reset")
	}
}

func TestBecomeInfectiousAndRecover(t *testing.T) {
	d := &DiseaseState{Health: Susceptible, ExposureDay: -1, nextEventDay: -1, symptomaticDay: -1}

	d.BecomeInfectious(10, true) // no-op: not Exposed
	if d.Health != Susceptible {
		t.Fatalf("BecomeInfectious from Susceptible should be a no-op, got %v", d.Health)
	}

	d.Health = Exposed
	d.BecomeInfectious(10, true)
	if d.Health != Infectious {
		t.Fatalf("health = %v, want Infectious", d.Health)
	}
	if !d.Symptomatic() || d.SymptomaticDay() != 10 {
		t.Errorf("symptomatic=%v symptomaticDay=%d, want true,10", d.Symptomatic(), d.SymptomaticDay())
	}

	d.Recover()
	if d.Health != Recovered {
		t.Fatalf("health = %v, want Recovered", d.Health)
	}
	if d.Symptomatic() {
		t.Errorf("Recover should clear the symptomatic flag")
	}

	// Recovering twice is a no-op.
	d.Recover()
	if d.Health != Recovered {
		t.Errorf("Recover from Recovered should be a no-op, got %v", d.Health)
	}
}

func TestSaveRestoreFavoritesRoundTrip(t *testing.T) {
	p := New(NewID(), 40, SexFemale)
	home := NewPlaceRef(SlotHousehold, 1, 0)
	work := NewPlaceRef(SlotWorkplace, 2, 0)
	p.SetFavorite(SlotHousehold, home)
	p.SetFavorite(SlotWorkplace, work)

	hostHome := NewPlaceRef(SlotHousehold, 9, 0)
	p.StartTravel(hostHome, NilPlaceRef, NilPlaceRef, NilPlaceRef)
	if p.Favorite(SlotHousehold) != hostHome {
		t.Fatalf("favorite household during travel = %v, want %v", p.Favorite(SlotHousehold), hostHome)
	}

	p.StopTraveling()
	if p.Favorite(SlotHousehold) != home || p.Favorite(SlotWorkplace) != work {
		t.Errorf("favorites after StopTraveling = %v,%v want %v,%v",
			p.Favorite(SlotHousehold), p.Favorite(SlotWorkplace), home, work)
	}
	if p.HasSavedFavorites() {
		t.Errorf("HasSavedFavorites should be false after restore")
	}
}

func TestHospitalizationClearsOtherFavoritesAndIsExclusiveWithTravel(t *testing.T) {
	p := New(NewID(), 70, SexMale)
	home := NewPlaceRef(SlotHousehold, 1, 0)
	p.SetFavorite(SlotHousehold, home)

	hospital := NewPlaceRef(SlotHospital, 3, 0)
	p.StartHospitalization(5, 4, hospital)

	if !p.IsHospitalized() {
		t.Fatalf("IsHospitalized should be true")
	}
	if p.Favorite(SlotHousehold).Valid() {
		t.Errorf("hospitalization should clear the household slot")
	}
	if p.DischargeDay() != 9 {
		t.Errorf("DischargeDay = %d, want 9", p.DischargeDay())
	}

	// Starting travel while hospitalized must be rejected.
	p.StartTravel(NewPlaceRef(SlotHousehold, 5, 0), NilPlaceRef, NilPlaceRef, NilPlaceRef)
	if p.IsTraveling() {
		t.Errorf("StartTravel should be a no-op while hospitalized")
	}

	p.EndHospitalization()
	if p.IsHospitalized() {
		t.Errorf("IsHospitalized should be false after EndHospitalization")
	}
	if p.Favorite(SlotHousehold) != home {
		t.Errorf("favorite household after discharge = %v, want %v", p.Favorite(SlotHousehold), home)
	}
}

func TestScheduleIdempotenceAndVisitBits(t *testing.T) {
	p := New(NewID(), 25, SexFemale)
	if p.ScheduledToday(3) {
		t.Fatalf("ScheduledToday should be false before any SetSchedule")
	}
	p.SetSchedule(3, 0)
	p.SetVisits(SlotHousehold, true)
	p.SetVisits(SlotWorkplace, true)

	if !p.ScheduledToday(3) {
		t.Errorf("ScheduledToday(3) should be true after SetSchedule(3, ...)")
	}
	if p.ScheduledToday(4) {
		t.Errorf("ScheduledToday(4) should be false")
	}
	if !p.Visits(SlotHousehold) || !p.Visits(SlotWorkplace) {
		t.Errorf("expected household and workplace bits set")
	}
	if p.Visits(SlotSchool) {
		t.Errorf("school bit should not be set")
	}

	p.SetVisits(SlotWorkplace, false)
	if p.Visits(SlotWorkplace) {
		t.Errorf("workplace bit should have cleared")
	}
}

func TestKillMarksEveryDiseaseDead(t *testing.T) {
	p := New(NewID(), 55, SexMale)
	p.Disease(0)
	p.Disease(1)
	p.Kill()

	if p.Alive() {
		t.Fatalf("Alive should be false after Kill")
	}
	for i := 0; i < 2; i++ {
		if p.Disease(i).Health != Dead {
			t.Errorf("disease %d health = %v, want Dead", i, p.Disease(i).Health)
		}
	}
}

func TestSetGradeClamps(t *testing.T) {
	p := New(NewID(), 10, SexFemale)
	p.SetGrade(0, 12)
	if p.Grade() != 1 {
		t.Errorf("grade below 1 should clamp to 1, got %d", p.Grade())
	}
	p.SetGrade(20, 12)
	if p.Grade() != 12 {
		t.Errorf("grade above max should clamp to max, got %d", p.Grade())
	}
}

func TestProfileIsGroupQuarters(t *testing.T) {
	cases := []struct {
		profile Profile
		want    bool
	}{
		{ProfileWorker, false},
		{ProfileCollegeStudent, true},
		{ProfileMilitary, true},
		{ProfilePrisoner, true},
		{ProfileNursingHomeResident, true},
		{ProfileStudent, false},
	}
	for _, c := range cases {
		if got := c.profile.IsGroupQuarters(); got != c.want {
			t.Errorf("%v.IsGroupQuarters() = %v, want %v", c.profile, got, c.want)
		}
	}
}

func TestChronicConditionsHasAny(t *testing.T) {
	if (ChronicConditions{}).HasAny() {
		t.Errorf("zero-value ChronicConditions.HasAny() = true, want false")
	}
	if !(ChronicConditions{Diabetes: true}).HasAny() {
		t.Errorf("Diabetes=true should make HasAny() true")
	}
}

func TestSetChronicConditionsAndPregnantRoundTrip(t *testing.T) {
	p := New(NewID(), 32, SexFemale)
	if p.ChronicConditions().HasAny() || p.Pregnant() {
		t.Errorf("new Person should have no chronic conditions and not be pregnant")
	}

	cc := ChronicConditions{Asthma: true, HeartDisease: true}
	p.SetChronicConditions(cc)
	p.SetPregnant(true)

	if got := p.ChronicConditions(); got != cc {
		t.Errorf("ChronicConditions() = %+v, want %+v", got, cc)
	}
	if !p.Pregnant() {
		t.Errorf("Pregnant() = false after SetPregnant(true)")
	}
}
