// Package results collects scenario outcomes into an ordered report.
package results

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

var (
	// ErrAlreadyRecorded is returned when a slot has already left pending.
	ErrAlreadyRecorded = errors.New("results: outcome already recorded")
	// ErrUnknownScenario is returned for ids that were never registered.
	ErrUnknownScenario = errors.New("results: unknown scenario")
	// ErrDuplicateScenario is returned when an id is registered twice.
	ErrDuplicateScenario = errors.New("results: scenario already registered")
	// ErrInvalidStatus is returned when recording pending or an unknown status.
	ErrInvalidStatus = errors.New("results: invalid status for record")
)

type slot struct {
	outcome  schemas.TestOutcome
	recorded bool
}

// Aggregator holds one slot per registered scenario. Slots start pending and
// are overwritten exactly once. It is safe for concurrent use.
type Aggregator struct {
	mu    sync.RWMutex
	order []string
	slots map[string]*slot
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{slots: make(map[string]*slot)}
}

// Register creates a pending slot for id. Registration order is report order.
func (a *Aggregator) Register(id, description string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.slots[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateScenario, id)
	}
	a.slots[id] = &slot{outcome: schemas.TestOutcome{
		ScenarioID:  id,
		Description: description,
		Status:      schemas.StatusPending,
	}}
	a.order = append(a.order, id)
	return nil
}

// Record resolves the pending slot for id.
func (a *Aggregator) Record(id string, status schemas.Status, details string) error {
	return a.RecordOutcome(schemas.TestOutcome{ScenarioID: id, Status: status, Details: details})
}

// RecordOutcome is Record with a measured duration attached.
func (a *Aggregator) RecordOutcome(o schemas.TestOutcome) error {
	if o.Status == schemas.StatusPending || !o.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[o.ScenarioID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScenario, o.ScenarioID)
	}
	if s.recorded {
		return fmt.Errorf("%w: %s is already %s", ErrAlreadyRecorded, o.ScenarioID, s.outcome.Status)
	}
	s.outcome.Status = o.Status
	s.outcome.Details = o.Details
	s.outcome.Duration = o.Duration
	s.outcome.DurationMS = o.Duration.Milliseconds()
	s.recorded = true
	return nil
}

// Outcome returns the current state of id's slot.
func (a *Aggregator) Outcome(id string) (schemas.TestOutcome, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.slots[id]
	if !ok {
		return schemas.TestOutcome{}, false
	}
	return s.outcome, true
}

// Pending lists the ids still awaiting an outcome, in registration order.
func (a *Aggregator) Pending() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var ids []string
	for _, id := range a.order {
		if !a.slots[id].recorded {
			ids = append(ids, id)
		}
	}
	return ids
}

// Outcomes returns every slot in registration order, regardless of the order
// in which scenarios completed.
func (a *Aggregator) Outcomes() []schemas.TestOutcome {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]schemas.TestOutcome, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.slots[id].outcome)
	}
	return out
}

// Summarize recounts every slot on each call.
func (a *Aggregator) Summarize() schemas.Summary {
	return Tally(a.Outcomes())
}

// ToReport snapshots the aggregator into a serializable report. Run metadata
// is left for the caller.
func (a *Aggregator) ToReport() *schemas.Report {
	outcomes := a.Outcomes()
	return &schemas.Report{
		Outcomes: outcomes,
		Summary:  Tally(outcomes),
	}
}

// Tally counts outcomes per status.
func Tally(outcomes []schemas.TestOutcome) schemas.Summary {
	var s schemas.Summary
	for _, o := range outcomes {
		s.Total++
		switch o.Status {
		case schemas.StatusPass:
			s.Passed++
		case schemas.StatusFail:
			s.Failed++
		case schemas.StatusWarning:
			s.Warning++
		case schemas.StatusSkip:
			s.Skipped++
		case schemas.StatusError:
			s.Errored++
		case schemas.StatusPending:
			s.Pending++
		}
	}
	return s
}
