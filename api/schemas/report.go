package schemas

import "time"

// -- Report Schemas --

// TestOutcome is the classification of a single scenario.
type TestOutcome struct {
	ScenarioID  string        `json:"scenario_id"`
	Description string        `json:"description,omitempty"`
	Status      Status        `json:"status"`
	Details     string        `json:"details"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
}

// Summary holds per-status counts derived from a set of outcomes.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Warning int `json:"warnings"`
	Skipped int `json:"skipped"`
	Errored int `json:"errors"`
	Pending int `json:"pending"`
}

// Count returns the number of outcomes with status s.
func (s Summary) Count(status Status) int {
	switch status {
	case StatusPass:
		return s.Passed
	case StatusFail:
		return s.Failed
	case StatusWarning:
		return s.Warning
	case StatusSkip:
		return s.Skipped
	case StatusError:
		return s.Errored
	case StatusPending:
		return s.Pending
	}
	return 0
}

// Healthy is true when nothing failed or errored.
func (s Summary) Healthy() bool {
	return s.Failed == 0 && s.Errored == 0
}

// SessionDiagnostics is the tail of what a browser context observed.
type SessionDiagnostics struct {
	SessionID   string      `json:"session_id"`
	Scenarios   []string    `json:"scenarios"`
	ConsoleTail []string    `json:"console_tail"`
	PageErrors  []PageError `json:"page_errors"`
	APICalls    int         `json:"api_calls"`
	Artifacts   []string    `json:"artifacts,omitempty"`
}

// Report is the aggregated result of one suite run.
type Report struct {
	RunID       string               `json:"run_id"`
	Suite       string               `json:"suite"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	Outcomes    []TestOutcome        `json:"results"`
	Summary     Summary              `json:"summary"`
	Artifacts   []string             `json:"artifacts,omitempty"`
	Diagnostics []SessionDiagnostics `json:"diagnostics,omitempty"`
}

// Outcome returns the outcome for id, if present.
func (r *Report) Outcome(id string) (TestOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.ScenarioID == id {
			return o, true
		}
	}
	return TestOutcome{}, false
}
