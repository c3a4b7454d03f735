package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/sim"
)

// CSVSink is a Sink that writes comma-delimited files, one per metric,
// following the teacher's csv_logger.go layout: a base path plus a
// realization index produces one path per output, created (truncated) with
// its header at construction and reopened in append mode on each write.
type CSVSink struct {
	mu sync.Mutex

	statusPath  string
	placesPath  string
	cohortPath  string
	diseaseSet  disease.Set
	wroteHeader map[string]bool
	lastDay     int
}

// NewCSVSink creates the sink's output files under basepath for realization
// i, naming them the way NewCSVLogger derives per-metric paths (spec §6,
// SPEC_FULL.md §10 test/report tooling).
func NewCSVSink(basepath string, i int, diseases disease.Set) (*CSVSink, error) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath = strings.TrimRight(basepath, "/") + "/log"
	}
	trimmed := strings.TrimSuffix(basepath, ".")
	s := &CSVSink{
		statusPath:  fmt.Sprintf("%s.%03d.status.csv", trimmed, i),
		placesPath:  fmt.Sprintf("%s.%03d.places.csv", trimmed, i),
		cohortPath:  fmt.Sprintf("%s.%03d.cohort.csv", trimmed, i),
		diseaseSet:  diseases,
		wroteHeader: make(map[string]bool),
	}
	headers := map[string]string{
		s.statusPath: "day,disease,susceptible,exposed,infectious,symptomatic,recovered,new_exposures,new_symptomatic\n",
		s.placesPath: "day,disease,place_id,label,kind,first_infectious_day,last_infectious_day,exposures,enrolled\n",
		s.cohortPath: "day,dimension,key,disease,susceptible,exposed,infectious,recovered\n",
	}
	for path, header := range headers {
		if err := NewFile(path, []byte(header)); err != nil {
			return nil, errs.Wrap(err, "creating csv sink file %s", path)
		}
		s.wroteHeader[path] = true
	}
	return s, nil
}

// RecordDay appends one row per disease to the status CSV (spec §6 "per-day
// counts").
func (s *CSVSink) RecordDay(stats *sim.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDay = stats.Day
	var b bytes.Buffer
	for d := range stats.Susceptible {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			stats.Day, d,
			stats.Susceptible[d], stats.Exposed[d], stats.Infectious[d],
			stats.Symptomatic[d], stats.Recovered[d],
			stats.NewExposures[d], stats.NewSymptomatic[d])
	}
	return AppendToFile(s.statusPath, b.Bytes())
}

// RecordPlaces appends one row per (place, disease) that had any infectious
// visitor or recorded exposure (spec §6 "per-place reports").
func (s *CSVSink) RecordPlaces(registry *place.Registry, numDiseases int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := collectPlaceRows(registry, s.lastDay, numDiseases)
	if len(rows) == 0 {
		return nil
	}
	var b bytes.Buffer
	for _, r := range rows {
		fmt.Fprintf(&b, "%d,%d,%s,%s,%s,%d,%d,%d,%d\n",
			r.day, r.diseaseIdx, r.placeID, r.label, kindName(r.kind),
			r.firstDay, r.lastDay, r.exposures, r.enrolled)
	}
	return AppendToFile(s.placesPath, b.Bytes())
}

// RecordCohorts appends one row per (dimension, key, disease) cross-tab for
// the day (SPEC_FULL.md §11).
func (s *CSVSink) RecordCohorts(day int, pop *population.Population, registry *place.Registry, diseases disease.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := buildCohortRows(day, pop, registry, diseases)
	var b bytes.Buffer
	for _, r := range rows {
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%d,%d,%d\n",
			r.Day, r.Dimension, r.Key, r.DiseaseIdx,
			r.Susceptible, r.Exposed, r.Infectious, r.Recovered)
	}
	return AppendToFile(s.cohortPath, b.Bytes())
}

// Flush is a no-op for CSVSink: every write is already durable on return
// from AppendToFile's Sync (spec §6, mirroring csv_logger.go's
// write-then-sync discipline).
func (s *CSVSink) Flush() error { return nil }

// NewFile truncates (or creates) the file at path and writes b, mirroring
// the teacher's NewFile helper used by CSVLogger.Init.
func NewFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

// AppendToFile creates a new file on the given path if it does not exist, or
// appends to the end of the existing file if the file exists, matching the
// teacher's AppendToFile in csv_logger.go.
func AppendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}
