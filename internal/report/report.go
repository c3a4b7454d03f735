// Package report implements the run's output sinks (spec §6 "Outputs"):
// per-day compartment counts, per-place infection summaries, and
// cohort-stratified cross-tabulations, written either as CSV files or into a
// SQLite database keyed by realization.
//
// Grounded on the teacher's csv_logger.go/sqlite_logger.go/logger.go: a
// DataLogger interface satisfied by both a CSVLogger and a SQLiteLogger,
// one output file/table per metric, paths derived from a base path plus a
// realization index (fmt.Sprintf("%s%03d", ...)). Sink here generalizes
// DataLogger from the teacher's genotype/status/transmission channels to
// FRED's per-day Stats and per-place exposure summaries; sim.Reporter is
// the subset of Sink the Day Loop actually calls.
package report

import (
	"fmt"
	"sort"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/sim"
)

// Sink is the full reporting contract: the Day Loop only needs sim.Reporter
// (RecordDay/RecordPlaces/Flush), but a Sink also accepts the end-of-run
// cohort snapshot cmd/fred requests once after the last day.
type Sink interface {
	sim.Reporter
	RecordCohorts(day int, pop *population.Population, registry *place.Registry, diseases disease.Set) error
}

// placeRow is one realization's per-place summary, assembled from the
// registry at RecordPlaces time (spec §6 "Per-place reports").
type placeRow struct {
	day        int
	diseaseIdx int
	placeID    place.ID
	label      string
	kind       disease.PlaceType
	firstDay   int
	lastDay    int
	exposures  int
	enrolled   int
}

func collectPlaceRows(registry *place.Registry, day, numDiseases int) []placeRow {
	var groups [][]*place.Place
	groups = append(groups,
		registry.Households(),
		registry.Neighborhoods(),
		registry.Schools(),
		registry.Workplaces(),
		registry.Hospitals(),
	)
	var rows []placeRow
	for _, group := range groups {
		for _, pl := range group {
			for d := 0; d < numDiseases; d++ {
				first, last, ok := pl.InfectiousDayRange(d)
				exposures := pl.ExposureCount(d)
				if !ok && exposures == 0 {
					continue
				}
				rows = append(rows, placeRow{
					day:        day,
					diseaseIdx: d,
					placeID:    pl.ID(),
					label:      pl.Label(),
					kind:       pl.Kind(),
					firstDay:   first,
					lastDay:    last,
					exposures:  exposures,
					enrolled:   pl.EnrolledCount(),
				})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].diseaseIdx != rows[j].diseaseIdx {
			return rows[i].diseaseIdx < rows[j].diseaseIdx
		}
		return rows[i].label < rows[j].label
	})
	return rows
}

// CohortRow is one (day, dimension, key, disease) cross-tabulation record
// (SPEC_FULL.md §11 cohort-stratified writers): counts of the population in
// each compartment, grouped by a demographic or geographic cohort.
type CohortRow struct {
	Day         int
	Dimension   string // "county", "tract", "income_quartile", "school", "age_group"
	Key         string
	DiseaseIdx  int
	Susceptible int
	Exposed     int
	Infectious  int
	Recovered   int
}

// kindName renders a place.Kind/disease.PlaceType as a stable lowercase
// label for output files, matching the teacher's lowercase table/column
// naming.
func kindName(k disease.PlaceType) string {
	switch k {
	case disease.PlaceHousehold:
		return "household"
	case disease.PlaceNeighborhood:
		return "neighborhood"
	case disease.PlaceSchool:
		return "school"
	case disease.PlaceClassroom:
		return "classroom"
	case disease.PlaceWorkplace:
		return "workplace"
	case disease.PlaceOffice:
		return "office"
	case disease.PlaceHospital:
		return "hospital"
	default:
		return "place"
	}
}

// ageGroupOf buckets an age in years into four bands (0-4, 5-17, 18-64,
// 65+), the same bands transmission.BucketFor uses for the age-structured
// contact matrix, rendered as cohort labels rather than matrix indices.
func ageGroupOf(age int) string {
	switch {
	case age < 5:
		return "0-4"
	case age < 18:
		return "5-17"
	case age < 65:
		return "18-64"
	default:
		return "65+"
	}
}

func incomeQuartileLabel(income, q1, q2, q3 float64) string {
	switch {
	case income <= q1:
		return "Q1"
	case income <= q2:
		return "Q2"
	case income <= q3:
		return "Q3"
	default:
		return "Q4"
	}
}

// incomeQuartiles computes the household-income quartile cutoffs across
// every household currently in the registry, recomputed on each call since
// household composition can shift slowly via demographics (spec §4.6).
func incomeQuartiles(registry *place.Registry) (q1, q2, q3 float64) {
	var incomes []float64
	for _, pl := range registry.Households() {
		h := pl.AsHousehold()
		if h == nil {
			continue
		}
		incomes = append(incomes, h.Income)
	}
	if len(incomes) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(incomes)
	at := func(p float64) float64 {
		idx := int(p * float64(len(incomes)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(incomes) {
			idx = len(incomes) - 1
		}
		return incomes[idx]
	}
	return at(0.25), at(0.5), at(0.75)
}

// buildCohortRows computes the full cross-tabulation for one day by walking
// the population once, attributing each person to their county, tract,
// income quartile, school, and age group cohorts in every disease's
// compartment (SPEC_FULL.md §11).
func buildCohortRows(day int, pop *population.Population, registry *place.Registry, diseases disease.Set) []CohortRow {
	type key struct {
		dimension string
		value     string
		disease   int
	}
	counts := make(map[key]*CohortRow)
	get := func(dimension, value string, d int) *CohortRow {
		k := key{dimension, value, d}
		row, ok := counts[k]
		if !ok {
			row = &CohortRow{Day: day, Dimension: dimension, Key: value, DiseaseIdx: d}
			counts[k] = row
		}
		return row
	}
	q1, q2, q3 := incomeQuartiles(registry)

	pop.Range(func(p *person.Person) bool {
		if !p.Alive() {
			return true
		}
		var county, tract, incomeQ string
		if home := registry.ResolveRef(p.Favorite(person.SlotHousehold)); home != nil {
			if h := home.AsHousehold(); h != nil {
				county, tract = h.CountyFIPS, h.TractFIPS
				incomeQ = incomeQuartileLabel(h.Income, q1, q2, q3)
			}
		}
		var school string
		if sch := registry.ResolveRef(p.Favorite(person.SlotSchool)); sch != nil {
			school = sch.Label()
		}
		ageGroup := ageGroupOf(p.Age())

		for d := range diseases {
			ds := p.Disease(d)
			rows := []*CohortRow{}
			if county != "" {
				rows = append(rows, get("county", county, d))
			}
			if tract != "" {
				rows = append(rows, get("tract", tract, d))
			}
			if incomeQ != "" {
				rows = append(rows, get("income_quartile", incomeQ, d))
			}
			if school != "" {
				rows = append(rows, get("school", school, d))
			}
			rows = append(rows, get("age_group", ageGroup, d))

			for _, row := range rows {
				switch ds.Health {
				case person.Susceptible:
					row.Susceptible++
				case person.Exposed:
					row.Exposed++
				case person.Infectious:
					row.Infectious++
				case person.Recovered, person.Immune:
					row.Recovered++
				}
			}
		}
		return true
	})

	out := make([]CohortRow, 0, len(counts))
	for _, row := range counts {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].DiseaseIdx < out[j].DiseaseIdx
	})
	return out
}

func diseaseHeader(diseases disease.Set) string {
	if len(diseases) == 0 {
		return ""
	}
	names := make([]string, len(diseases))
	for i, d := range diseases {
		names[i] = fmt.Sprintf("%d:%s", i, d.Name)
	}
	return fmt.Sprintf("%v", names)
}
