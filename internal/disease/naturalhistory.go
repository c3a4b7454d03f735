package disease

import (
	"math"
	"math/rand"

	rv "github.com/kentwait/randomvariate"
)

// NaturalHistory is the default Model implementation: a triangular
// infectivity curve over a Poisson-sampled infectious period, following a
// Poisson-sampled latent period — the simplest natural-history curve that
// satisfies spec §1's externally-supplied biological progression
// collaborator without committing the core to any one disease's real
// dynamics (spec marks the progression model itself out of scope; this is
// the configurable stand-in cmd/fred wires by default).
//
// Grounded on sis_simulation.go's SetHostTimer(rv.Poisson(duration)) pattern
// for sampling a compartment's length from a target mean.
type NaturalHistory struct {
	name string

	latentDays     float64
	infectiousDays float64
	peakInfectivity float64
	susceptibility  float64
}

// NewNaturalHistory builds a NaturalHistory model with the given mean
// latent period, mean infectious period (in days), peak infectivity
// multiplier, and baseline susceptibility multiplier.
func NewNaturalHistory(name string, latentDays, infectiousDays, peakInfectivity, susceptibility float64) *NaturalHistory {
	return &NaturalHistory{
		name:            name,
		latentDays:      latentDays,
		infectiousDays:  infectiousDays,
		peakInfectivity: peakInfectivity,
		susceptibility:  susceptibility,
	}
}

// Name identifies the disease.
func (n *NaturalHistory) Name() string { return n.name }

// NextHealthEvent samples the number of days until the next compartment
// transition from a Poisson distribution centered on this model's latent or
// infectious period, keyed by the status the core passes in (0 = exposed,
// 1 = infectious; any other value falls back to the infectious period).
func (n *NaturalHistory) NextHealthEvent(status int, r *rand.Rand) int {
	mean := n.infectiousDays
	if status == 0 {
		mean = n.latentDays
	}
	if mean <= 0 {
		return 1
	}
	days := rv.Poisson(mean)
	if days < 1 {
		days = 1
	}
	return days
}

// Infectivity returns a triangular curve over the infectious period: zero
// before day 0, rising to peakInfectivity at the midpoint, falling back to
// zero by the period's end, and zero again beyond it (an infector past
// their sampled infectious period is assumed already recovered by the
// core's own status tracking, so this is a defensive clamp rather than the
// primary stop condition).
func (n *NaturalHistory) Infectivity(daysSinceExposure int) float64 {
	if n.infectiousDays <= 0 || daysSinceExposure < 0 {
		return 0
	}
	mid := n.infectiousDays / 2
	t := float64(daysSinceExposure)
	if t > n.infectiousDays {
		return 0
	}
	frac := 1 - math.Abs(t-mid)/mid
	if frac < 0 {
		frac = 0
	}
	return n.peakInfectivity * frac
}

// Susceptibility returns this model's configured baseline susceptibility
// multiplier.
func (n *NaturalHistory) Susceptibility() float64 { return n.susceptibility }
