package disease

import (
	"math/rand"
	"testing"
)

func TestNextHealthEventPicksLatentOrInfectiousMean(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	n := NewNaturalHistory("flu", 4, 7, 1.0, 1.0)

	for i := 0; i < 50; i++ {
		if d := n.NextHealthEvent(0, r); d < 1 {
			t.Fatalf("NextHealthEvent(exposed) = %d, want >= 1", d)
		}
		if d := n.NextHealthEvent(1, r); d < 1 {
			t.Fatalf("NextHealthEvent(infectious) = %d, want >= 1", d)
		}
	}
}

func TestNextHealthEventFloorsAtOneDayForZeroMean(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	n := NewNaturalHistory("flu", 0, 0, 1.0, 1.0)
	if d := n.NextHealthEvent(0, r); d != 1 {
		t.Errorf("NextHealthEvent with zero mean = %d, want 1", d)
	}
}

func TestInfectivityTriangularCurve(t *testing.T) {
	n := NewNaturalHistory("flu", 4, 10, 2.0, 1.0)

	if v := n.Infectivity(-1); v != 0 {
		t.Errorf("Infectivity before exposure = %f, want 0", v)
	}
	if v := n.Infectivity(0); v != 0 {
		t.Errorf("Infectivity at day 0 = %f, want 0 (triangular curve starts at zero)", v)
	}
	peak := n.Infectivity(5)
	if peak != 2.0 {
		t.Errorf("Infectivity at the midpoint = %f, want peakInfectivity 2.0", peak)
	}
	if v := n.Infectivity(11); v != 0 {
		t.Errorf("Infectivity past the infectious period = %f, want 0", v)
	}

	// Symmetric around the midpoint.
	early := n.Infectivity(2)
	late := n.Infectivity(8)
	if early != late {
		t.Errorf("Infectivity should be symmetric around the midpoint: day2=%f day8=%f", early, late)
	}
}

func TestSusceptibilityReturnsConfiguredValue(t *testing.T) {
	n := NewNaturalHistory("flu", 4, 7, 1.0, 0.5)
	if got := n.Susceptibility(); got != 0.5 {
		t.Errorf("Susceptibility() = %f, want 0.5", got)
	}
}

func TestSeasonalityPeakAndTrough(t *testing.T) {
	p := &Params{SeasonalityEnabled: true, SeasonalReduction: 0.5, SeasonalPeakDayOfYear: 15}
	if got := p.Seasonality(15); got != 1.0 {
		t.Errorf("Seasonality at the peak day = %f, want 1.0", got)
	}
	trough := p.Seasonality(15 + 182) // roughly half a year away
	if trough > 0.51 || trough < 0.49 {
		t.Errorf("Seasonality at the trough = %f, want ~0.5", trough)
	}
}

func TestSeasonalityDisabledAlwaysOne(t *testing.T) {
	p := &Params{SeasonalityEnabled: false, SeasonalReduction: 0.9, SeasonalPeakDayOfYear: 1}
	if got := p.Seasonality(200); got != 1.0 {
		t.Errorf("Seasonality() with disabled seasonality = %f, want 1.0", got)
	}
}

func TestSetByName(t *testing.T) {
	set := Set{{Name: "flu"}, {Name: "measles"}}
	if idx, ok := set.ByName("measles"); !ok || idx != 1 {
		t.Errorf("ByName(measles) = %d,%v want 1,true", idx, ok)
	}
	if _, ok := set.ByName("mumps"); ok {
		t.Errorf("ByName(mumps) should report false")
	}
}
