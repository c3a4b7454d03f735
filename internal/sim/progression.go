package sim

import (
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
)

// progressDiseases advances every disease's compartment clock for one
// person on one day: Exposed agents ask their disease's Model for the
// latent period once, then transition to Infectious when it elapses;
// Infectious agents do the same for the infectious period, then recover.
// Spec §1 marks the progression curve itself out of scope and owned by the
// Model collaborator; this is the core's half of that contract — applying
// the transition once the collaborator's clock fires, run during the Agent
// phase since it only touches the owning agent's own state (spec §5).
func (s *Sim) progressDiseases(p *person.Person, day int, stream *rng.Stream) {
	for d := range s.diseases {
		params := s.diseases[d]
		if params.Model == nil {
			continue
		}
		ds := p.Disease(d)
		switch ds.Health {
		case person.Exposed:
			if ds.NextEventDay() < 0 {
				duration := params.Model.NextHealthEvent(0, stream.Rand())
				ds.ScheduleNextEvent(ds.ExposureDay + duration)
			}
			if day >= ds.NextEventDay() {
				symptomatic := stream.Float64() < params.SymptomaticProb
				ds.BecomeInfectious(day, symptomatic)
				ds.ScheduleNextEvent(-1)
			}
		case person.Infectious:
			if ds.NextEventDay() < 0 {
				duration := params.Model.NextHealthEvent(1, stream.Rand())
				ds.ScheduleNextEvent(day + duration)
			}
			if day >= ds.NextEventDay() {
				ds.Recover()
				ds.ScheduleNextEvent(-1)
			}
		}
	}
}
