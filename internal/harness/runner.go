// Package harness sequences probe scenarios against browser sessions and
// folds their verdicts into a report.
package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/recorder"
	"github.com/xkilldash9x/uiprobe/internal/results"
)

const (
	defaultScenarioTimeout   = 90 * time.Second
	defaultAbandonGrace      = 2 * time.Second
	defaultScreenshotTimeout = 10 * time.Second
	defaultConsoleTail       = 20
)

// Runner executes suites. A Runner may be reused across suites.
type Runner struct {
	provider schemas.SessionProvider
	logger   *zap.Logger

	concurrency         int
	scenarioTimeout     time.Duration
	abandonGrace        time.Duration
	screenshotOnFailure bool
	fullPage            bool
	screenshotTimeout   time.Duration
	consoleTail         int
	artifacts           ArtifactSink
	runID               string
	now                 func() time.Time
}

// Option is a function that configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the worker pool of isolated suites.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithScenarioTimeout sets the per-scenario bound, shared setup included.
func WithScenarioTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.scenarioTimeout = d
		}
	}
}

// WithAbandonGrace sets how long a timed-out scenario may take to unwind
// before the runner moves on without it.
func WithAbandonGrace(d time.Duration) Option {
	return func(r *Runner) { r.abandonGrace = d }
}

// WithArtifacts enables screenshots. When onFailure is set, every fail or
// error verdict also captures a diagnostic screenshot.
func WithArtifacts(sink ArtifactSink, onFailure, fullPage bool) Option {
	return func(r *Runner) {
		r.artifacts = sink
		r.screenshotOnFailure = onFailure
		r.fullPage = fullPage
	}
}

// WithConsoleTail sets how many console lines each session's diagnostics keep.
func WithConsoleTail(n int) Option {
	return func(r *Runner) { r.consoleTail = n }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// NewRunner builds a runner drawing sessions from provider.
func NewRunner(provider schemas.SessionProvider, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		provider:          provider,
		logger:            logger.Named("runner"),
		concurrency:       1,
		scenarioTimeout:   defaultScenarioTimeout,
		abandonGrace:      defaultAbandonGrace,
		screenshotTimeout: defaultScreenshotTimeout,
		consoleTail:       defaultConsoleTail,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID identifies every report this runner produces.
func (r *Runner) RunID() string { return r.runID }

// run is the per-suite state.
type run struct {
	*Runner
	suite  Suite
	agg    *results.Aggregator
	logger *zap.Logger

	diagMu sync.Mutex
	diags  []schemas.SessionDiagnostics
}

// Run executes every scenario of suite and returns the aggregated report.
// Scenario trouble never escapes as an error; failing to obtain a browser
// session does, and no report is returned in that case.
func (r *Runner) Run(ctx context.Context, suite Suite) (*schemas.Report, error) {
	st := &run{
		Runner: r,
		suite:  suite,
		agg:    results.NewAggregator(),
		logger: r.logger.With(zap.String("suite", suite.Name), zap.String("run_id", r.runID)),
	}
	for _, sc := range suite.Scenarios {
		if err := st.agg.Register(sc.ID, sc.Description); err != nil {
			return nil, fmt.Errorf("suite %s: %w", suite.Name, err)
		}
	}

	started := r.now()
	st.logger.Info("Suite starting.", zap.Stringer("mode", suite.Mode), zap.Int("scenarios", len(suite.Scenarios)))

	var err error
	if suite.Mode == Shared {
		err = st.runShared(ctx)
	} else {
		err = st.runIsolated(ctx)
	}
	if err != nil {
		return nil, err
	}

	for _, id := range st.agg.Pending() {
		st.record(id, schemas.StatusError, "no outcome reported")
	}

	report := st.agg.ToReport()
	report.RunID = r.runID
	report.Suite = suite.Name
	report.StartedAt = started
	report.FinishedAt = r.now()
	report.Diagnostics = st.sortedDiagnostics()
	for _, d := range report.Diagnostics {
		report.Artifacts = append(report.Artifacts, d.Artifacts...)
	}

	st.logger.Info("Suite finished.",
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("warnings", report.Summary.Warning),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("errors", report.Summary.Errored),
	)
	return report, nil
}

func (st *run) runIsolated(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.concurrency)

	for _, sc := range st.suite.Scenarios {
		sc := sc
		g.Go(func() error {
			if gctx.Err() != nil {
				// A sibling could not get a session; the run is over.
				return nil
			}
			sess, err := st.provider.NewSession(gctx)
			if err != nil {
				return fmt.Errorf("acquiring browser session for %s: %w", sc.ID, err)
			}
			env, artifacts := st.newEnv(sess)
			defer st.closeSession(sess, []string{sc.ID}, artifacts)

			st.execute(gctx, sc, env)
			return nil
		})
	}
	return g.Wait()
}

func (st *run) runShared(ctx context.Context) error {
	sess, err := st.provider.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("acquiring browser session for suite %s: %w", st.suite.Name, err)
	}
	env, artifacts := st.newEnv(sess)
	ids := make([]string, 0, len(st.suite.Scenarios))
	for _, sc := range st.suite.Scenarios {
		ids = append(ids, sc.ID)
	}
	defer st.closeSession(sess, ids, artifacts)

	var setupErr error
	if st.suite.Setup != nil {
		setupErr = st.guard(ctx, func(c context.Context) (Verdict, error) {
			return Verdict{Status: schemas.StatusPass}, st.suite.Setup(c, env)
		}).err
		if setupErr != nil {
			st.logger.Warn("Suite setup failed; dependent scenarios will be marked error.", zap.Error(setupErr))
			st.failureScreenshot(ctx, env, st.suite.Name+"-setup")
		}
	}

	for _, sc := range st.suite.Scenarios {
		if ctx.Err() != nil {
			break
		}
		if setupErr != nil && sc.NeedsSetup {
			st.record(sc.ID, schemas.StatusError, "setup failed: "+setupErr.Error())
			continue
		}
		st.execute(ctx, sc, env)
	}
	return nil
}

// execute runs one scenario against env and records exactly one outcome.
func (st *run) execute(ctx context.Context, sc Scenario, env *Env) {
	logger := st.logger.With(zap.String("scenario", sc.ID))
	scEnv := *env
	scEnv.Logger = logger
	start := st.now()

	res := st.guard(ctx, func(c context.Context) (Verdict, error) { return sc.Run(c, &scEnv) })
	status, details := classify(res)
	elapsed := st.now().Sub(start)

	if status == schemas.StatusFail || status == schemas.StatusError {
		if path := st.failureScreenshot(ctx, env, sc.ID+"-"+string(status)); path != "" {
			details += " (screenshot: " + path + ")"
		}
	}

	st.recordOutcome(schemas.TestOutcome{ScenarioID: sc.ID, Status: status, Details: details, Duration: elapsed})
	logger.Info("Scenario finished.", zap.String("status", string(status)), zap.Duration("elapsed", elapsed), zap.String("details", details))
}

type guarded struct {
	verdict  Verdict
	err      error
	timedOut bool
	timeout  time.Duration
}

// guard races fn against the scenario timeout and converts panics into errors.
// A scenario that overruns is given abandonGrace to unwind before the runner
// moves on without it.
func (st *run) guard(ctx context.Context, fn func(context.Context) (Verdict, error)) guarded {
	scCtx, cancel := context.WithTimeout(ctx, st.scenarioTimeout)
	defer cancel()

	done := make(chan guarded, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				st.logger.Error("Scenario panicked.", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
				done <- guarded{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(scCtx)
		done <- guarded{verdict: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && scCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			res.timedOut, res.timeout = true, st.scenarioTimeout
		}
		return res
	case <-scCtx.Done():
	}

	select {
	case <-done:
	case <-time.After(st.abandonGrace):
		st.logger.Warn("Scenario did not unwind after cancellation; abandoning it.")
	}
	if ctx.Err() != nil {
		return guarded{err: fmt.Errorf("run cancelled: %w", ctx.Err())}
	}
	return guarded{err: context.DeadlineExceeded, timedOut: true, timeout: st.scenarioTimeout}
}

func classify(res guarded) (schemas.Status, string) {
	switch {
	case res.timedOut:
		msg := fmt.Sprintf("timed out after %s", res.timeout)
		if res.err != nil && !errors.Is(res.err, context.DeadlineExceeded) {
			msg += ": " + res.err.Error()
		}
		return schemas.StatusError, msg
	case res.err != nil:
		return schemas.StatusError, res.err.Error()
	case res.verdict.Status == schemas.StatusPending || !res.verdict.Status.Valid():
		return schemas.StatusError, "no outcome reported"
	}
	return res.verdict.Status, res.verdict.Details
}

func (st *run) failureScreenshot(ctx context.Context, env *Env, name string) string {
	if !st.screenshotOnFailure || env.Artifacts == nil {
		return ""
	}
	// The scenario's own context may be spent; the run's is not.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), st.screenshotTimeout)
	defer cancel()
	path, err := env.Screenshot(shotCtx, name, st.fullPage)
	if err != nil {
		st.logger.Debug("Failure screenshot unavailable.", zap.String("name", name), zap.Error(err))
		return ""
	}
	return path
}

// trackingSink records which artifacts belong to which session.
type trackingSink struct {
	inner ArtifactSink
	mu    sync.Mutex
	paths []string
}

func (t *trackingSink) SavePNG(name string, data []byte) (string, error) {
	path, err := t.inner.SavePNG(name, data)
	if err == nil {
		t.mu.Lock()
		t.paths = append(t.paths, path)
		t.mu.Unlock()
	}
	return path, err
}

func (t *trackingSink) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

func (st *run) newEnv(sess schemas.Session) (*Env, *trackingSink) {
	env := &Env{
		SessionID: sess.ID(),
		Page:      sess.Page(),
		Events:    sess.Events(),
		Logger:    st.logger.With(zap.String("session", sess.ID())),
	}
	if st.artifacts == nil {
		return env, nil
	}
	sink := &trackingSink{inner: st.artifacts}
	env.Artifacts = sink
	return env, sink
}

func (st *run) closeSession(sess schemas.Session, scenarios []string, artifacts *trackingSink) {
	events := sess.Events()
	diag := schemas.SessionDiagnostics{
		SessionID:   sess.ID(),
		Scenarios:   scenarios,
		ConsoleTail: recorder.ConsoleTail(events, st.consoleTail),
		PageErrors:  events.PageErrors(),
		APICalls:    len(events.APICalls()),
	}
	if artifacts != nil {
		diag.Artifacts = artifacts.Paths()
	}
	st.diagMu.Lock()
	st.diags = append(st.diags, diag)
	st.diagMu.Unlock()

	closeCtx, cancel := context.WithTimeout(context.Background(), st.screenshotTimeout)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		st.logger.Warn("Failed to close browser session.", zap.String("session", sess.ID()), zap.Error(err))
	}
}

// sortedDiagnostics orders sessions by the registration index of their first scenario.
func (st *run) sortedDiagnostics() []schemas.SessionDiagnostics {
	index := make(map[string]int, len(st.suite.Scenarios))
	for i, sc := range st.suite.Scenarios {
		index[sc.ID] = i
	}
	first := func(d schemas.SessionDiagnostics) int {
		if len(d.Scenarios) == 0 {
			return len(index)
		}
		return index[d.Scenarios[0]]
	}
	st.diagMu.Lock()
	defer st.diagMu.Unlock()
	out := append([]schemas.SessionDiagnostics(nil), st.diags...)
	sort.SliceStable(out, func(i, j int) bool { return first(out[i]) < first(out[j]) })
	return out
}

func (st *run) record(id string, status schemas.Status, details string) {
	st.recordOutcome(schemas.TestOutcome{ScenarioID: id, Status: status, Details: details})
}

func (st *run) recordOutcome(o schemas.TestOutcome) {
	if err := st.agg.RecordOutcome(o); err != nil {
		st.logger.Error("Dropping outcome.", zap.String("scenario", o.ScenarioID), zap.Error(err))
	}
}
