package report

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/place"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/population"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/sim"
)

// SQLiteSink is a Sink that writes every output into one SQLite database,
// one table per metric per realization, named "<Metric><instance:03d>"
// exactly as sqlite_logger.go's SQLiteLogger does for Genotype/Status/
// Transmission. Cohort rows go through sqlx's NamedExec, since the
// cross-tab insert has named rather than positional columns (SPEC_FULL.md
// §11's jmoiron/sqlx cohort writers).
type SQLiteSink struct {
	mu         sync.Mutex
	db         *sqlx.DB
	instanceID int
	statusTbl  string
	placesTbl  string
	cohortTbl  string
	lastDay    int
}

// OpenSQLiteDB opens (or creates) a SQLite database with a WAL journal so
// readers and writers don't block mid-run, matching the teacher's
// OpenSQLiteDB but with the usual go-sqlite3 concurrent-writer DSN
// enrichment instead of a bare sql.Open.
func OpenSQLiteDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewSQLiteSink opens path and creates this realization's tables, mirroring
// SQLiteLogger.Init's "create table %s %s; delete from %s;" pattern.
func NewSQLiteSink(path string, instance int, diseases disease.Set) (*SQLiteSink, error) {
	raw, err := OpenSQLiteDB(path)
	if err != nil {
		return nil, errs.Wrap(err, "opening sqlite sink %s", path)
	}
	db := sqlx.NewDb(raw, "sqlite3")

	s := &SQLiteSink{
		db:         db,
		instanceID: instance,
		statusTbl:  fmt.Sprintf("Status%03d", instance),
		placesTbl:  fmt.Sprintf("Place%03d", instance),
		cohortTbl:  fmt.Sprintf("Cohort%03d", instance),
	}

	newTable := func(name, cols string) error {
		stmt := fmt.Sprintf("create table if not exists %s %s; delete from %s;", name, cols, name)
		_, err := db.Exec(stmt)
		if err != nil {
			return fmt.Errorf("%q: %s", err, stmt)
		}
		return nil
	}
	if err := newTable(s.statusTbl, "(id integer not null primary key, day int, disease int, susceptible int, exposed int, infectious int, symptomatic int, recovered int, new_exposures int, new_symptomatic int)"); err != nil {
		return nil, err
	}
	if err := newTable(s.placesTbl, "(id integer not null primary key, day int, disease int, place_id text, label text, kind text, first_infectious_day int, last_infectious_day int, exposures int, enrolled int)"); err != nil {
		return nil, err
	}
	if err := newTable(s.cohortTbl, "(id integer not null primary key, day int, dimension text, key text, disease int, susceptible int, exposed int, infectious int, recovered int)"); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordDay inserts one row per disease into this realization's status
// table.
func (s *SQLiteSink) RecordDay(stats *sim.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDay = stats.Day

	tx, err := s.db.Beginx()
	if err != nil {
		return errs.Wrap(err, "beginning status tx")
	}
	stmt := fmt.Sprintf("insert into %s(day, disease, susceptible, exposed, infectious, symptomatic, recovered, new_exposures, new_symptomatic) values(?,?,?,?,?,?,?,?,?)", s.statusTbl)
	for d := range stats.Susceptible {
		if _, err := tx.Exec(stmt, stats.Day, d,
			stats.Susceptible[d], stats.Exposed[d], stats.Infectious[d],
			stats.Symptomatic[d], stats.Recovered[d],
			stats.NewExposures[d], stats.NewSymptomatic[d]); err != nil {
			tx.Rollback()
			return errs.Wrap(err, "inserting status row for day %d", stats.Day)
		}
	}
	return tx.Commit()
}

// RecordPlaces inserts one row per (place, disease) that had activity today.
func (s *SQLiteSink) RecordPlaces(registry *place.Registry, numDiseases int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := collectPlaceRows(registry, s.lastDay, numDiseases)
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return errs.Wrap(err, "beginning places tx")
	}
	stmt := fmt.Sprintf("insert into %s(day, disease, place_id, label, kind, first_infectious_day, last_infectious_day, exposures, enrolled) values(?,?,?,?,?,?,?,?,?)", s.placesTbl)
	for _, r := range rows {
		if _, err := tx.Exec(stmt, r.day, r.diseaseIdx, r.placeID.String(), r.label, kindName(r.kind), r.firstDay, r.lastDay, r.exposures, r.enrolled); err != nil {
			tx.Rollback()
			return errs.Wrap(err, "inserting place row")
		}
	}
	return tx.Commit()
}

// cohortInsert is the sqlx named-parameter struct for RecordCohorts'
// NamedExec batch.
type cohortInsert struct {
	Day         int    `db:"day"`
	Dimension   string `db:"dimension"`
	Key         string `db:"key"`
	Disease     int    `db:"disease"`
	Susceptible int    `db:"susceptible"`
	Exposed     int    `db:"exposed"`
	Infectious  int    `db:"infectious"`
	Recovered   int    `db:"recovered"`
}

// RecordCohorts inserts the day's cross-tabulated cohort counts via sqlx's
// NamedExec, one batch per call (SPEC_FULL.md §11).
func (s *SQLiteSink) RecordCohorts(day int, pop *population.Population, registry *place.Registry, diseases disease.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := buildCohortRows(day, pop, registry, diseases)
	if len(rows) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("insert into %s(day, dimension, key, disease, susceptible, exposed, infectious, recovered) values(:day, :dimension, :key, :disease, :susceptible, :exposed, :infectious, :recovered)", s.cohortTbl)
	tx, err := s.db.Beginx()
	if err != nil {
		return errs.Wrap(err, "beginning cohort tx")
	}
	for _, r := range rows {
		rec := cohortInsert{
			Day: r.Day, Dimension: r.Dimension, Key: r.Key, Disease: r.DiseaseIdx,
			Susceptible: r.Susceptible, Exposed: r.Exposed, Infectious: r.Infectious, Recovered: r.Recovered,
		}
		if _, err := tx.NamedExec(stmt, rec); err != nil {
			tx.Rollback()
			return errs.Wrap(err, "inserting cohort row")
		}
	}
	return tx.Commit()
}

// Flush closes the database handle; every Record call has already
// committed its own transaction.
func (s *SQLiteSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
