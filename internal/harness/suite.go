package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// Mode selects how a suite's scenarios share browser state.
type Mode int

const (
	// Isolated gives every scenario its own browser context; scenarios may run in parallel.
	Isolated Mode = iota
	// Shared runs scenarios sequentially on one context after a common setup step.
	Shared
)

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "isolated"
}

// ArtifactSink stores binary artifacts and returns where they were written.
type ArtifactSink interface {
	SavePNG(name string, data []byte) (string, error)
}

// Env is what a probe gets to work with: one page, its event history, and
// somewhere to put screenshots.
type Env struct {
	SessionID string
	Page      schemas.Page
	Events    schemas.EventLog
	Artifacts ArtifactSink
	Logger    *zap.Logger
}

// Screenshot captures the page and stores it under name. Without a sink it
// is a no-op returning an empty path.
func (e *Env) Screenshot(ctx context.Context, name string, fullPage bool) (string, error) {
	if e.Artifacts == nil {
		return "", nil
	}
	data, err := e.Page.CaptureScreenshot(ctx, fullPage)
	if err != nil {
		return "", fmt.Errorf("capturing screenshot %s: %w", name, err)
	}
	return e.Artifacts.SavePNG(name, data)
}

// Verdict is what a scenario concludes. Returning an error instead means the
// probe could not complete and is recorded as error.
type Verdict struct {
	Status  schemas.Status
	Details string
}

// Pass reports that the observed behavior met the contract.
func Pass(format string, args ...interface{}) Verdict {
	return Verdict{Status: schemas.StatusPass, Details: fmt.Sprintf(format, args...)}
}

// Fail reports a real defect in the application under test.
func Fail(format string, args ...interface{}) Verdict {
	return Verdict{Status: schemas.StatusFail, Details: fmt.Sprintf(format, args...)}
}

// Warn reports an ambiguous signal, such as a timing-based heuristic.
func Warn(format string, args ...interface{}) Verdict {
	return Verdict{Status: schemas.StatusWarning, Details: fmt.Sprintf(format, args...)}
}

// Skip reports a scenario that cannot run in a browser-only harness.
func Skip(format string, args ...interface{}) Verdict {
	return Verdict{Status: schemas.StatusSkip, Details: fmt.Sprintf(format, args...)}
}

// Scenario is a named, independently classifiable test case.
type Scenario struct {
	ID          string
	Description string
	// NeedsSetup marks scenarios of a shared suite that cannot run when setup failed.
	NeedsSetup bool
	Run        func(ctx context.Context, env *Env) (Verdict, error)
}

// Suite is an ordered list of scenarios plus an execution mode.
type Suite struct {
	Name      string
	Mode      Mode
	Setup     func(ctx context.Context, env *Env) error
	Scenarios []Scenario
}
