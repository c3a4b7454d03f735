// Package popsynth ingests a synthetic population (spec §6 "Inputs:
// Synthetic population"), an explicit external collaborator the spec marks
// out of scope beyond its interface. Source is that interface; CSVSource is
// an illustrative default implementation, not a mandated on-disk format.
//
// Grounded on loader.go's line-oriented, skip-and-continue parsing style
// (LoadSequences/LoadAdjacencyMatrix scan with bufio, tolerate malformed
// lines by reporting and moving on) adapted to tabular encoding/csv records,
// and on original_source/src/Place_List.cc's two-pass construction: places
// first (so the bounding box and per-patch population are known), then
// people, enrolling each into their favorite places as they're read.
package popsynth

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/geo"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/person"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
)

// Result bundles the three collaborators a Source populates (spec §1's
// core components: Place Registry, Spatial Grid, Population).
type Result struct {
	Registry   *place.Registry
	Grid       *geo.Grid
	Population *population.Population
}

// Source loads a synthetic population. Any implementation is pluggable; the
// core only depends on this interface (spec §6).
type Source interface {
	Load(diseaseCount int, warnings *errs.Warnings) (*Result, error)
}

// CSVSource is the default Source: a directory of comma-delimited files,
// one per place/person type, following the field lists spec §6 names.
// Missing optional files are skipped, not an error.
type CSVSource struct {
	Dir        string
	CellSizeKM float64
}

const (
	householdsFile    = "households.csv"
	groupQuartersFile = "group_quarters.csv"
	schoolsFile       = "schools.csv"
	workplacesFile    = "workplaces.csv"
	hospitalsFile     = "hospitals.csv"
	peopleFile        = "people.csv"
)

type rawHousehold struct {
	label      string
	lat, lon   float64
	tractFIPS  string
	countyFIPS string
	income     float64
	groupQuarters bool
	subtype    place.Subtype
	capacity   int
}

// Load implements Source by reading every recognized file under Dir, in the
// order places-then-people (spec §6, original_source/src/Place_List.cc's
// construction order).
func (s *CSVSource) Load(diseaseCount int, warnings *errs.Warnings) (*Result, error) {
	households, err := s.readHouseholds()
	if err != nil {
		return nil, errs.Wrap(err, "reading households")
	}

	box := boundingBoxOf(households)
	cellSize := s.CellSizeKM
	if cellSize <= 0 {
		cellSize = 1.0
	}
	grid := geo.NewGrid(box, kmToDegrees(cellSize))
	registry := place.NewRegistry(diseaseCount)
	pop := population.New()

	for _, h := range households {
		handle := registry.Add(h.label, place.Household, h.subtype, h.lat, h.lon, h.capacity)
		pl := registry.Resolve(handle)
		hh := pl.AsHousehold()
		hh.Income = h.income
		hh.TractFIPS = h.tractFIPS
		hh.CountyFIPS = h.countyFIPS
		hh.GroupQuarters = h.groupQuarters
		hh.Units = 1
		if grid.PatchFor(h.lat, h.lon) == nil {
			warnings.Record(0, errs.DataIntegrity, errs.OutOfBoundsHouseholdError, h.label, h.lat, h.lon)
		}
	}

	if err := s.readSchools(registry); err != nil {
		return nil, errs.Wrap(err, "reading schools")
	}
	if err := s.readWorkplaces(registry); err != nil {
		return nil, errs.Wrap(err, "reading workplaces")
	}
	if err := s.readHospitals(registry); err != nil {
		return nil, errs.Wrap(err, "reading hospitals")
	}

	if err := s.readPeople(registry, pop, warnings); err != nil {
		return nil, errs.Wrap(err, "reading people")
	}

	// Second pass: now that every household's enrolled list is known, add
	// each resident to its patch's population tally and finish deriving the
	// per-patch Neighborhood place (spec §4.1's "attached iff population is
	// positive").
	reconcilePatchPopulations(grid, registry)
	attachNeighborhoods(grid, registry)
	classifyWorkplaceSizes(registry)

	return &Result{Registry: registry, Grid: grid, Population: pop}, nil
}

func boundingBoxOf(households []rawHousehold) geo.BoundingBox {
	if len(households) == 0 {
		return geo.BoundingBox{}
	}
	box := geo.BoundingBox{
		MinLat: households[0].lat, MaxLat: households[0].lat,
		MinLon: households[0].lon, MaxLon: households[0].lon,
	}
	for _, h := range households[1:] {
		box.MinLat = minf(box.MinLat, h.lat)
		box.MaxLat = maxf(box.MaxLat, h.lat)
		box.MinLon = minf(box.MinLon, h.lon)
		box.MaxLon = maxf(box.MaxLon, h.lon)
	}
	return box
}

// kmToDegrees is a rough, latitude-independent conversion (1 degree ~ 111km)
// used only to size grid cells; the grid's own coordinates stay in
// lat/lon degrees throughout (spec §4.1 never mandates a projection).
func kmToDegrees(km float64) float64 {
	return km / 111.0
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// reconcilePatchPopulations adds every in-bounds household to its patch,
// with its enrolled resident count, once people are known; the first pass
// over households only checks bounds and adds nothing to the grid (spec
// §4.1's patch population is an aggregate of resident counts).
func reconcilePatchPopulations(grid *geo.Grid, registry *place.Registry) {
	for _, h := range registry.Households() {
		lat, lon := h.Coordinates()
		if grid.PatchFor(lat, lon) == nil {
			continue
		}
		grid.AddHousehold(h, h.EnrolledCount())
	}
}

func attachNeighborhoods(grid *geo.Grid, registry *place.Registry) {
	grid.EachNonEmptyPatch(func(p *geo.Patch) {
		if p.NeighborhoodPlace() != nil {
			return
		}
		lat, lon := p.CenterLat, p.CenterLon
		label := "nbhd-" + strconv.Itoa(p.Row) + "-" + strconv.Itoa(p.Col)
		handle := registry.Add(label, place.Neighborhood, place.SubtypeNone, lat, lon, p.Population())
		pl := registry.Resolve(handle)
		p.AttachNeighborhoodPlace(pl)
	})
}

func classifyWorkplaceSizes(registry *place.Registry) {
	for _, pl := range registry.Workplaces() {
		wp := pl.AsWorkplace()
		wp.Size = place.ClassifySize(pl.EnrolledCount())
	}
}

func (s *CSVSource) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// openCSV opens name under Dir, returning (nil, nil, false) if the file does
// not exist — every file but people.csv/households.csv is optional input
// (spec §6's field list is the maximal schema; a run may omit hospitals or
// group-quarters entirely).
func openCSV(path string) (*os.File, *csv.Reader, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return f, r, true, nil
}

func readRows(r *csv.Reader) ([][]string, error) {
	var rows [][]string
	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (s *CSVSource) readHouseholds() ([]rawHousehold, error) {
	var out []rawHousehold
	for _, spec := range []struct {
		file          string
		groupQuarters bool
	}{
		{householdsFile, false},
		{groupQuartersFile, true},
	} {
		f, r, ok, err := openCSV(s.path(spec.file))
		if err != nil {
			return nil, err
		}
		if !ok {
			if !spec.groupQuarters {
				return nil, errs.Fatal("missing required population file %s", s.path(spec.file))
			}
			continue
		}
		rows, err := readRows(r)
		f.Close()
		if err != nil {
			return nil, err
		}
		for _, rec := range rows {
			h, ok := parseHouseholdRow(rec, spec.groupQuarters)
			if !ok {
				continue
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// parseHouseholdRow parses one households.csv/group_quarters.csv row.
// households.csv: label,lat,lon,tract_fips,county_fips,income
// group_quarters.csv: label,subtype,lat,lon,capacity
func parseHouseholdRow(rec []string, groupQuarters bool) (rawHousehold, bool) {
	if groupQuarters {
		if len(rec) < 5 {
			return rawHousehold{}, false
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		capacity, err3 := strconv.Atoi(strings.TrimSpace(rec[4]))
		if err1 != nil || err2 != nil || err3 != nil {
			return rawHousehold{}, false
		}
		return rawHousehold{
			label:         rec[0],
			subtype:       parseSubtype(rec[1]),
			lat:           lat,
			lon:           lon,
			capacity:      capacity,
			groupQuarters: true,
		}, true
	}
	if len(rec) < 6 {
		return rawHousehold{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	income, err3 := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return rawHousehold{}, false
	}
	tract := rec[3]
	county := tract
	if len(tract) >= 5 {
		county = tract[:5]
	}
	return rawHousehold{
		label:      rec[0],
		lat:        lat,
		lon:        lon,
		tractFIPS:  tract,
		countyFIPS: county,
		income:     income,
		subtype:    place.SubtypeNone,
		capacity:   0,
	}, true
}

func parseSubtype(s string) place.Subtype {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "college_dorm", "dorm":
		return place.SubtypeCollegeDorm
	case "military", "military_base":
		return place.SubtypeMilitaryBase
	case "prison":
		return place.SubtypePrison
	case "nursing_home":
		return place.SubtypeNursingHome
	default:
		return place.SubtypeNone
	}
}

// readSchools reads schools.csv: label,county_fips,lat,lon,max_grade.
func (s *CSVSource) readSchools(registry *place.Registry) error {
	f, r, ok, err := openCSV(s.path(schoolsFile))
	if err != nil || !ok {
		return err
	}
	defer f.Close()
	rows, err := readRows(r)
	if err != nil {
		return err
	}
	for _, rec := range rows {
		if len(rec) < 4 {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		maxGrade := 12
		if len(rec) >= 5 {
			if g, err := strconv.Atoi(strings.TrimSpace(rec[4])); err == nil {
				maxGrade = g
			}
		}
		handle := registry.Add(rec[0], place.School, place.SubtypeNone, lat, lon, 0)
		pl := registry.Resolve(handle)
		sch := pl.AsSchool()
		sch.CountyFIPS = rec[1]
		sch.MaxGrade = maxGrade
	}
	return nil
}

// readWorkplaces reads workplaces.csv: label,lat,lon.
func (s *CSVSource) readWorkplaces(registry *place.Registry) error {
	f, r, ok, err := openCSV(s.path(workplacesFile))
	if err != nil || !ok {
		return err
	}
	defer f.Close()
	rows, err := readRows(r)
	if err != nil {
		return err
	}
	for _, rec := range rows {
		if len(rec) < 3 {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		registry.Add(rec[0], place.Workplace, place.SubtypeNone, lat, lon, 0)
	}
	return nil
}

// readHospitals reads hospitals.csv: label,workers,physicians,beds,lat,lon.
// Hospitals are registered under the Hospital kind with capacity set to
// beds; the workers and physicians columns are not read.
func (s *CSVSource) readHospitals(registry *place.Registry) error {
	f, r, ok, err := openCSV(s.path(hospitalsFile))
	if err != nil || !ok {
		return err
	}
	defer f.Close()
	rows, err := readRows(r)
	if err != nil {
		return err
	}
	for _, rec := range rows {
		if len(rec) < 6 {
			continue
		}
		beds, err1 := strconv.Atoi(strings.TrimSpace(rec[3]))
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		lon, err3 := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		registry.Add(rec[0], place.Hospital, place.SubtypeHealthcareClinic, lat, lon, beds)
	}
	return nil
}

// readPeople reads people.csv: label,household_label,age,sex,race,
// relationship,school_label,workplace_label, plus optional trailing
// asthma,copd,chronic_renal_disease,diabetes,heart_disease,hypertension,
// hypercholestrolemia,pregnant flag columns (spec §4.4 Pass D step 3;
// Activities.cc:655-696's chronic-condition/pregnancy predicates). Each row
// creates a Person, enrolls them at their household, and sets the
// school/workplace favorite slots (enrollment there too) when present.
func (s *CSVSource) readPeople(registry *place.Registry, pop *population.Population, warnings *errs.Warnings) error {
	f, r, ok, err := openCSV(s.path(peopleFile))
	if err != nil {
		return err
	}
	if !ok {
		return errs.Fatal("missing required population file %s", s.path(peopleFile))
	}
	defer f.Close()
	rows, err := readRows(r)
	if err != nil {
		return err
	}
	for _, rec := range rows {
		if len(rec) < 8 {
			continue
		}
		age, err1 := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err1 != nil {
			continue
		}
		hhLabel := rec[1]
		hhHandle, ok := registry.LookupHousehold(hhLabel)
		if !ok {
			warnings.Record(0, errs.DataIntegrity, errs.UnknownHouseholdError, rec[0], hhLabel)
			continue
		}
		hh := registry.Resolve(hhHandle)

		p := person.New(person.NewID(), age, parseSex(rec[3]))
		if race, err := strconv.Atoi(strings.TrimSpace(rec[4])); err == nil {
			p.SetRace(race)
		}
		p.SetRelationship(parseRelationship(rec[5]))

		hhRef := place.HandleToRef(person.SlotHousehold, hhHandle)
		p.SetFavorite(person.SlotHousehold, hhRef)
		hh.Enroll(p.ID())

		schoolLabel, workplaceLabel := rec[6], rec[7]
		if schoolLabel != "" {
			if h, ok := registry.LookupSchool(schoolLabel); ok {
				pl := registry.Resolve(h)
				sch := pl.AsSchool()
				grade := gradeForAge(age)
				if grade > sch.MaxGrade {
					warnings.Record(0, errs.DataIntegrity, errs.GradeAboveMaxError, schoolLabel, sch.MaxGrade, age)
				} else {
					p.SetGrade(grade, sch.MaxGrade)
					p.SetFavorite(person.SlotSchool, place.HandleToRef(person.SlotSchool, h))
					pl.Enroll(p.ID())
					sch.OriginalPerGrade[grade]++
					sch.CurrentPerGrade[grade]++
				}
			}
		}
		if workplaceLabel != "" {
			if h, ok := registry.LookupWorkplace(workplaceLabel); ok {
				pl := registry.Resolve(h)
				p.SetFavorite(person.SlotWorkplace, place.HandleToRef(person.SlotWorkplace, h))
				pl.Enroll(p.ID())
			}
		}

		p.SetProfile(deriveProfile(hh, age, schoolLabel != "", workplaceLabel != ""))
		if len(rec) >= 16 {
			p.SetChronicConditions(person.ChronicConditions{
				Asthma:               parseFlag(rec[8]),
				COPD:                 parseFlag(rec[9]),
				ChronicRenalDisease:  parseFlag(rec[10]),
				Diabetes:             parseFlag(rec[11]),
				HeartDisease:         parseFlag(rec[12]),
				Hypertension:         parseFlag(rec[13]),
				Hypercholestrolemia:  parseFlag(rec[14]),
			})
			p.SetPregnant(parseFlag(rec[15]))
		}
		pop.Add(p)
	}
	return nil
}

func parseSex(s string) person.Sex {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "1":
		return person.SexMale
	case "F", "2":
		return person.SexFemale
	default:
		return person.SexUnknown
	}
}

// parseFlag reads an optional boolean column as 1/true/yes (case
// insensitive); anything else, including an empty cell, is false.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func parseRelationship(s string) person.Relationship {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "head", "1":
		return person.RelationshipHead
	case "spouse", "2":
		return person.RelationshipSpouse
	case "child", "3":
		return person.RelationshipChild
	default:
		return person.RelationshipOther
	}
}

// deriveProfile assigns the initial activity-profile tag from age, favorite-
// place presence, and household subtype (spec §3's profile glossary).
// Group-quarters residents take a profile from the household's subtype
// regardless of age, mirroring ageUp's later group-quarters exception
// (internal/demographics).
func deriveProfile(hh *place.Place, age int, hasSchool, hasWorkplace bool) person.Profile {
	if hh.AsHousehold().GroupQuarters {
		switch hh.Subtype() {
		case place.SubtypeCollegeDorm:
			return person.ProfileCollegeStudent
		case place.SubtypeMilitaryBase:
			return person.ProfileMilitary
		case place.SubtypePrison:
			return person.ProfilePrisoner
		case place.SubtypeNursingHome:
			return person.ProfileNursingHomeResident
		}
	}
	switch {
	case age < 5:
		return person.ProfilePreschool
	case age < 18:
		if hasSchool {
			return person.ProfileStudent
		}
		return person.ProfileUnemployed
	case age < 65:
		if hasWorkplace {
			return person.ProfileWorker
		}
		return person.ProfileUnemployed
	default:
		return person.ProfileRetired
	}
}

// gradeForAge maps age to a 1-indexed grade, matching
// internal/demographics's school-assignment convention.
func gradeForAge(age int) int {
	grade := age - 5
	if grade < 1 {
		grade = 1
	}
	return grade
}
