// Package errs classifies the error kinds the core can raise and collects
// the non-fatal ones into a warning stream instead of aborting (spec §7).
package errs

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Kind names which of the four error categories spec §7 describes an error
// belongs to.
type Kind int

const (
	// Configuration is fatal at startup: a missing or malformed parameter,
	// a missing population file.
	Configuration Kind = iota
	// DataIntegrity is recoverable: log and skip the offending record.
	DataIntegrity
	// Capacity is a warning: a relation is left null, downstream code must
	// tolerate it.
	Capacity
	// Transient is a best-effort miss: silently skipped by the caller, but
	// still worth recording for the end-of-run summary.
	Transient
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case DataIntegrity:
		return "data-integrity"
	case Capacity:
		return "capacity"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Sentinel message formats, in the style of errors.go's
// IntKeyNotFoundError/InvalidFloatParameterError constants.
const (
	UnknownHouseholdError     = "person %s references unknown household %s"
	OutOfBoundsHouseholdError = "household %s at (%f, %f) lies outside the population bounding box"
	GradeAboveMaxError        = "school %s max grade %d is below student age %d"
	NoWorkplaceFoundError     = "no workplace found near %s for staff target %d"
	NoHospitalFoundError      = "no hospital found for household %s"
	MissingParameterError     = "missing required parameter %q"
	MalformedParameterError   = "malformed parameter %q: %s"
)

// Event is one recorded non-fatal error, tagged with the simulation day it
// occurred on.
type Event struct {
	Kind    Kind
	Day     int
	Message string
}

func (e Event) String() string {
	return fmt.Sprintf("day %d [%s] %s", e.Day, e.Kind, e.Message)
}

// Warnings accumulates non-fatal errors across a run. Safe for concurrent
// use from the Agent and Place phases (spec §5's per-phase fan-out).
type Warnings struct {
	mu     sync.Mutex
	events []Event
}

// NewWarnings returns an empty warning stream.
func NewWarnings() *Warnings {
	return &Warnings{}
}

// Record appends a non-fatal error. Never blocks on I/O — callers that want
// the message logged immediately should also log it themselves; Record only
// buffers for the end-of-run summary.
func (w *Warnings) Record(day int, kind Kind, format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, Event{Kind: kind, Day: day, Message: fmt.Sprintf(format, args...)})
}

// Events returns a copy of the recorded events in insertion order.
func (w *Warnings) Events() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Event, len(w.events))
	copy(out, w.events)
	return out
}

// Len reports how many warnings have been recorded so far.
func (w *Warnings) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

// Summary renders the end-of-run warning summary required by spec §7,
// grouped by kind.
func (w *Warnings) Summary() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	counts := map[Kind]int{}
	for _, e := range w.events {
		counts[e.Kind]++
	}
	if len(w.events) == 0 {
		return "no warnings"
	}
	out := fmt.Sprintf("%d warning(s):", len(w.events))
	for _, k := range []Kind{Configuration, DataIntegrity, Capacity, Transient} {
		if n := counts[k]; n > 0 {
			out += fmt.Sprintf(" %s=%d", k, n)
		}
	}
	return out
}

// Wrap wraps err with call-site context, in the style of the teacher's
// errors.Wrapf(err, "cannot create %s model", name) usage.
func Wrap(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Fatal builds a fatal configuration error. Only the CLI boundary
// (cmd/fred) or prepare() should treat this as terminal; library code
// returns it like any other error.
func Fatal(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
