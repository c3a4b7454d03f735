// Command fred runs the Day Loop (C7) end to end: load configuration, load
// a synthetic population, assemble every collaborator, and step the
// simulation for the configured number of days, snapshotting to a reporter
// each day.
//
// Grounded on bin/contagion/main.go's flag-based CLI shape (-threads,
// -logger, -seed flags, GOMAXPROCS, a config path positional argument,
// log.Fatal on setup errors) adapted from the teacher's per-instance
// EvoEpiConfig/EpidemicSimulation loop to this spec's single assembled Sim.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/calendar"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/config"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/demographics"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/disease"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/errs"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/geo"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/gravity"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/popsynth"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/report"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/rng"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/schedule"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/sim"
	"github.com/PublicHealthDynamicsLab/FRED-sub001/internal/transmission"

	"github.com/charmbracelet/lipgloss"
)

func main() {
	threads := flag.Int("threads", runtime.NumCPU(), "number of partitions/CPU threads")
	loggerType := flag.String("logger", "csv", "data logger type (csv|sqlite)")
	seed := flag.Int64("seed", time.Now().UTC().UnixNano(), "random seed. Uses Unix time in nanoseconds as default")
	outputPath := flag.String("output", "./output/run", "output path/basename for the reporter's files")
	flag.Parse()

	configPath := flag.Arg(0)
	if configPath == "" {
		log.Fatal("usage: fred [flags] <config.toml>")
	}

	runtime.GOMAXPROCS(*threads)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	warnings := errs.NewWarnings()
	diseases := cfg.DiseaseParams()

	source := &popsynth.CSVSource{Dir: cfg.Simulation.PopulationPath, CellSizeKM: cfg.Neighborhood.CellSizeKM}
	result, err := source.Load(len(diseases), warnings)
	if err != nil {
		log.Fatalf("loading population: %s", err)
	}

	epoch := time.Now().UTC()
	if cfg.Simulation.StartDate != "" {
		epoch, err = time.Parse("2006-01-02", cfg.Simulation.StartDate)
		if err != nil {
			log.Fatalf("parsing simulation.start_date: %s", err)
		}
	}
	cal := calendar.New(epoch)

	gravityModel := gravity.Build(result.Grid, cfg.Neighborhood.ToGravityParams())
	hospitalPicker := geo.NewHospitalCatchment(result.Registry)

	scheduler := schedule.New(result.Registry, result.Grid, gravityModel, cal, diseases, hospitalPicker, cfg, warnings)

	engine := transmission.New(diseases, result.Registry, result.Population)
	if cfg.Features.VectorTransmissionEnabled {
		engine.SetVectorPopulation(transmission.NewMosquitoPopulation(defaultMosquitoBirthRate, defaultMosquitoMaturationRate))
	}
	if hasAgeStructured(diseases) {
		// The parameter file carries no per-bucket contact rates, so the
		// age-structured path runs with a flat all-ones matrix.
		var flat transmission.ContactMatrix
		for i := range flat {
			for j := range flat[i] {
				flat[i][j] = 1.0
			}
		}
		engine.SetAgeContactMatrix(flat)
	}

	queue := demographics.NewQueue()
	demoEngine := demographics.New(cal, result.Registry, result.Population, queue)

	const instance = 1
	reporter, err := newReporter(*loggerType, *outputPath, instance, diseases)
	if err != nil {
		log.Fatal(err)
	}

	s := sim.New(sim.Config{
		Calendar:      cal,
		Registry:      result.Registry,
		Population:    result.Population,
		Diseases:      diseases,
		Scheduler:     scheduler,
		Engine:        engine,
		Demographics:  demoEngine,
		RNGPool:       rng.NewPool(*seed),
		Reporter:      reporter,
		Warnings:      warnings,
		NumPartitions: *threads,
	})

	ctx := context.Background()
	if err := s.Prepare(ctx); err != nil {
		log.Fatalf("preparing simulation: %s", err)
	}

	start := time.Now()
	log.Printf("starting run over %d days, seed=%d, population=%s\n", cfg.Simulation.Days, *seed, humanize.Comma(int64(result.Population.Len())))
	for day := 0; day < cfg.Simulation.Days; day++ {
		stats, err := s.Step(ctx)
		if err != nil {
			log.Fatalf("day %d: %s", day, err)
		}
		if day%10 == 0 || day == cfg.Simulation.Days-1 {
			logDaySummary(stats, diseases)
		}
	}
	if sink, ok := reporter.(report.Sink); ok {
		if err := sink.RecordCohorts(s.Day(), result.Population, result.Registry, diseases); err != nil {
			log.Fatalf("recording cohorts: %s", err)
		}
	}
	if err := s.Finalize(ctx); err != nil {
		log.Fatalf("finalizing: %s", err)
	}

	log.Printf("completed %d days in %s; %d warnings", cfg.Simulation.Days, time.Since(start), warnings.Len())
	if warnings.Len() > 0 && isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println(warnings.Summary())
	}
}

// Default daily vector birth/maturation rates used when vector transmission
// is enabled; SPEC_FULL.md marks climate/vector-demography data ingestion
// out of scope, so these are flat illustrative constants rather than a
// per-region table (same treatment as the chronic-condition multipliers).
const (
	defaultMosquitoBirthRate      = 50.0
	defaultMosquitoMaturationRate = 0.1
)

func hasAgeStructured(diseases []*disease.Params) bool {
	for _, p := range diseases {
		if p.AgeStructuredEnabled {
			return true
		}
	}
	return false
}

func newReporter(loggerType, outputPath string, instance int, diseases disease.Set) (sim.Reporter, error) {
	switch loggerType {
	case "csv":
		return report.NewCSVSink(outputPath, instance, diseases)
	case "sqlite":
		return report.NewSQLiteSink(outputPath, instance, diseases)
	default:
		return nil, fmt.Errorf("%s is not a valid logger type (csv|sqlite)", loggerType)
	}
}

var summaryStyle = lipgloss.NewStyle().Bold(true)

// logDaySummary logs a compact per-disease compartment line; the line is
// styled when stdout is a terminal and left plain otherwise.
func logDaySummary(stats *sim.Stats, diseases disease.Set) {
	for d, params := range diseases {
		line := fmt.Sprintf("day %d [%s] S=%s E=%s I=%s R=%s",
			stats.Day, params.Name,
			humanize.Comma(int64(stats.Susceptible[d])),
			humanize.Comma(int64(stats.Exposed[d])),
			humanize.Comma(int64(stats.Infectious[d])),
			humanize.Comma(int64(stats.Recovered[d])))
		if isatty.IsTerminal(os.Stdout.Fd()) {
			line = summaryStyle.Render(line)
		}
		log.Println(line)
	}
}
