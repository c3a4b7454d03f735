// Package config decodes the flat parameter table (spec §6 "Parameters")
// from TOML into typed sections, the way evoepi_config.go/
// evoepi_config_loader.go decode EvoEpiConfig: nested toml:"section"
// structs plus a Validate() error method per section.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/gravity"
)

// DiseaseSection is one [[disease]] table in the parameter file.
type DiseaseSection struct {
	Name                          string  `toml:"name"`
	ContactsPerDayHousehold       float64 `toml:"contacts_per_day_household"`
	ContactsPerDayNeighborhood    float64 `toml:"contacts_per_day_neighborhood"`
	ContactsPerDaySchool          float64 `toml:"contacts_per_day_school"`
	ContactsPerDayClassroom       float64 `toml:"contacts_per_day_classroom"`
	ContactsPerDayWorkplace       float64 `toml:"contacts_per_day_workplace"`
	ContactsPerDayOffice          float64 `toml:"contacts_per_day_office"`
	ContactsPerDayHospital        float64 `toml:"contacts_per_day_hospital"`
	ContactProb                  float64 `toml:"contact_prob"`
	Transmissibility              float64 `toml:"transmissibility"`
	TransmissionProb              float64 `toml:"transmission_prob"`
	SeasonalityEnabled            bool    `toml:"seasonality_enabled"`
	SeasonalReduction             float64 `toml:"seasonal_reduction"`
	SeasonalPeakDayOfYear         int     `toml:"seasonal_peak_day_of_year"`
	WeekendNeighborhoodMultiplier float64 `toml:"weekend_neighborhood_multiplier"`
	MaxInfecteesPerSource         int     `toml:"max_infectees_per_source"`
	AgeStructuredEnabled          bool    `toml:"age_structured_transmission_enabled"`
	DensityTransmissionEnabled    bool    `toml:"neighborhood_density_transmission_enabled"`

	LatentDays             float64 `toml:"latent_days"`
	InfectiousDays         float64 `toml:"infectious_days"`
	PeakInfectivity        float64 `toml:"peak_infectivity"`
	BaselineSusceptibility float64 `toml:"baseline_susceptibility"`
	SymptomaticProb        float64 `toml:"symptomatic_prob"`

	VectorBiteRate               float64 `toml:"vector_bite_rate"`
	VectorInfectionEfficiency    float64 `toml:"vector_infection_efficiency"`
	VectorTransmissionEfficiency float64 `toml:"vector_transmission_efficiency"`
}

// Validate checks the disease section for obviously malformed values.
func (d *DiseaseSection) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("disease section missing name")
	}
	if d.Transmissibility < 0 {
		return errors.Errorf("disease %s: transmissibility must be >= 0", d.Name)
	}
	if d.SeasonalityEnabled && (d.SeasonalReduction < 0 || d.SeasonalReduction > 1) {
		return errors.Errorf("disease %s: seasonal_reduction must be in [0,1]", d.Name)
	}
	return nil
}

// ToParams converts the decoded section into the disease.Params bundle the
// Transmission Engine consumes, attaching model separately (the biological
// progression model is an external collaborator, spec §1).
func (d *DiseaseSection) ToParams() *disease.Params {
	p := &disease.Params{
		Name:                          d.Name,
		ContactProb:                   d.ContactProb,
		Transmissibility:              d.Transmissibility,
		TransmissionProb:              d.TransmissionProb,
		SeasonalityEnabled:            d.SeasonalityEnabled,
		SeasonalReduction:             d.SeasonalReduction,
		SeasonalPeakDayOfYear:         d.SeasonalPeakDayOfYear,
		WeekendNeighborhoodMultiplier: d.WeekendNeighborhoodMultiplier,
		MaxInfecteesPerSource:         d.MaxInfecteesPerSource,
		AgeStructuredEnabled:          d.AgeStructuredEnabled,
		DensityTransmissionEnabled:    d.DensityTransmissionEnabled,
		VectorBiteRate:                d.VectorBiteRate,
		VectorInfectionEfficiency:     d.VectorInfectionEfficiency,
		VectorTransmissionEfficiency:  d.VectorTransmissionEfficiency,
	}
	p.ContactsPerDay[disease.PlaceHousehold] = d.ContactsPerDayHousehold
	p.ContactsPerDay[disease.PlaceNeighborhood] = d.ContactsPerDayNeighborhood
	p.ContactsPerDay[disease.PlaceSchool] = d.ContactsPerDaySchool
	p.ContactsPerDay[disease.PlaceClassroom] = d.ContactsPerDayClassroom
	p.ContactsPerDay[disease.PlaceWorkplace] = d.ContactsPerDayWorkplace
	p.ContactsPerDay[disease.PlaceOffice] = d.ContactsPerDayOffice
	p.ContactsPerDay[disease.PlaceHospital] = d.ContactsPerDayHospital

	peak := d.PeakInfectivity
	if peak <= 0 {
		peak = 1.0
	}
	susceptibility := d.BaselineSusceptibility
	if susceptibility <= 0 {
		susceptibility = 1.0
	}
	p.Model = disease.NewNaturalHistory(d.Name, d.LatentDays, d.InfectiousDays, peak, susceptibility)
	p.SymptomaticProb = d.SymptomaticProb
	return p
}

// SickLeaveSection configures sick-leave-availability probability by
// workplace size class (SPEC_FULL.md §12, grounded on
// original_source/src/Activities.cc's initialize_sick_leave defaults).
type SickLeaveSection struct {
	ProbSmall  float64 `toml:"prob_small"`
	ProbMedium float64 `toml:"prob_medium"`
	ProbLarge  float64 `toml:"prob_large"`
	ProbXLarge float64 `toml:"prob_xlarge"`
}

// DefaultSickLeave returns the source's observed defaults.
func DefaultSickLeave() SickLeaveSection {
	return SickLeaveSection{ProbSmall: 0.53, ProbMedium: 0.58, ProbLarge: 0.70, ProbXLarge: 0.85}
}

// IsolationSection configures the isolation behavior of Pass D (spec
// §4.4).
type IsolationSection struct {
	Enabled bool    `toml:"enabled"`
	Rate    float64 `toml:"rate"`
	Delay   int     `toml:"delay"`
}

// HospitalSection configures hospitalization decisions (spec §4.4, §6).
type HospitalSection struct {
	Enabled           bool    `toml:"enabled"`
	WorkerToBedRatio  float64 `toml:"worker_to_bed_ratio"`
	MinBedThreshold   int     `toml:"min_bed_threshold"`
	RadiusKM          float64 `toml:"radius_km"`
}

// NeighborhoodSection configures the grid + gravity model (spec §4.1,
// §4.3).
type NeighborhoodSection struct {
	CellSizeKM      float64 `toml:"cell_size_km"`
	MaxDistanceKM   float64 `toml:"max_distance_km"`
	MaxDestinations int     `toml:"max_destinations"`
	Alpha           float64 `toml:"gravity_alpha"`
	Beta            float64 `toml:"gravity_beta"`
	MinDistanceKM   float64 `toml:"min_distance_km"`
}

// ToGravityParams converts the section to gravity.Params.
func (n *NeighborhoodSection) ToGravityParams() gravity.Params {
	return gravity.Params{
		MaxDistance:     n.MaxDistanceKM,
		MaxDestinations: n.MaxDestinations,
		Alpha:           n.Alpha,
		Beta:            n.Beta,
		MinDistance:     n.MinDistanceKM,
	}
}

// AbsenteeismSection configures weekend/weekday absenteeism baselines
// (spec §4.4 Pass B steps 5/7).
type AbsenteeismSection struct {
	WeekendWorkplaceBaseline float64 `toml:"weekend_workplace_baseline"`
	WeekendSchoolBaseline    float64 `toml:"weekend_school_baseline"`
	WorkplaceAbsenteeism     float64 `toml:"workplace_absenteeism"`
	SchoolAbsenteeism        float64 `toml:"school_absenteeism"`
}

// FeatureFlags bundles the remaining enable/disable switches spec §6 lists.
type FeatureFlags struct {
	VectorTransmissionEnabled bool `toml:"vector_transmission_enabled"`
	HouseholdShelterEnabled   bool `toml:"household_shelter_enabled"`
}

// SimulationSection controls run-level parameters.
type SimulationSection struct {
	Days              int    `toml:"days"`
	PopulationPath    string `toml:"population_path"`
	StartDate         string `toml:"start_date"` // RFC3339 date, e.g. "2020-01-01"
	Threads           int    `toml:"threads"`
}

// Config is the root parameter table (spec §6 "Parameters").
type Config struct {
	Simulation   SimulationSection   `toml:"simulation"`
	Neighborhood NeighborhoodSection `toml:"neighborhood"`
	SickLeave    SickLeaveSection    `toml:"sick_leave"`
	Isolation    IsolationSection    `toml:"isolation"`
	Hospital     HospitalSection     `toml:"hospital"`
	Absenteeism  AbsenteeismSection  `toml:"absenteeism"`
	Features     FeatureFlags        `toml:"features"`
	Diseases     []DiseaseSection    `toml:"disease"`

	validated bool
}

// Load parses a TOML parameter file into a Config, in the style of
// LoadSingleHostConfig/LoadEvoEpiConfig (utils.go, evoepi_config_loader.go).
func Load(path string) (*Config, error) {
	c := new(Config)
	if (c.SickLeave == SickLeaveSection{}) {
		c.SickLeave = DefaultSickLeave()
	}
	_, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "loading config %s", path)
	}
	if (c.SickLeave == SickLeaveSection{}) {
		c.SickLeave = DefaultSickLeave()
	}
	return c, nil
}

// Validate checks every section, matching EvoEpiConfig.Validate's pattern
// of validating each nested section and wrapping errors with context.
func (c *Config) Validate() error {
	if c.Simulation.Days <= 0 {
		return errors.New("simulation.days must be > 0")
	}
	if strings.TrimSpace(c.Simulation.PopulationPath) == "" {
		return errors.New("simulation.population_path is required")
	}
	if len(c.Diseases) == 0 {
		return errors.New("at least one [[disease]] section is required")
	}
	for i := range c.Diseases {
		if err := c.Diseases[i].Validate(); err != nil {
			return errors.Wrapf(err, "disease section %d", i)
		}
	}
	if c.Isolation.Enabled && (c.Isolation.Rate < 0 || c.Isolation.Rate > 1) {
		return errors.New("isolation.rate must be in [0,1]")
	}
	c.validated = true
	return nil
}

// Validated reports whether Validate has succeeded.
func (c *Config) Validated() bool { return c.validated }

// DiseaseParams converts every configured disease section into the
// disease.Set the Transmission Engine consumes.
func (c *Config) DiseaseParams() disease.Set {
	set := make(disease.Set, len(c.Diseases))
	for i := range c.Diseases {
		set[i] = c.Diseases[i].ToParams()
	}
	return set
}
