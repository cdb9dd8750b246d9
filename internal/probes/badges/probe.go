// Package badges checks how the target renders certification badges: basic
// display, loading indicators, page errors, API request sharing across
// entities, and visibility across viewport sizes.
package badges

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/selector"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

// Scenario ids, in registration order.
const (
	ScenarioBasicDisplay   = "basic_display"
	ScenarioBadgeFilter    = "badge_filter"
	ScenarioCustomOrder    = "custom_order"
	ScenarioSharedCache    = "shared_cache"
	ScenarioLoadingState   = "loading_state"
	ScenarioErrorHandling  = "error_handling"
	ScenarioNoBadges       = "no_badges"
	ScenarioResponsiveness = "responsiveness"
)

const (
	pollInterval  = 150 * time.Millisecond
	sampleLimit   = 5
	errorListSize = 3
)

// homeSnapshot is what the landing page showed before setup moved on to
// the models view.
type homeSnapshot struct {
	badges  int
	samples []string
}

// Probe drives the badge suite on one shared session.
type Probe struct {
	cfg      config.BadgesConfig
	cred     schemas.Credential
	fullPage bool
	logger   *zap.Logger

	badge     selector.Chain
	entity    selector.Chain
	loading   selector.Chain
	settings  selector.Chain
	modelsTab selector.Chain
	loginGate selector.Chain
	email     selector.Chain
	password  selector.Chain
	submit    selector.Chain

	mu   sync.Mutex
	home *homeSnapshot
}

// NewProbe builds the badge probe. The auth section supplies the login form
// chains and credentials used when the landing page is gated.
func NewProbe(cfg config.BadgesConfig, auth config.AuthConfig, fullPage bool, logger *zap.Logger) *Probe {
	return &Probe{
		cfg:       cfg,
		cred:      auth.Valid,
		fullPage:  fullPage,
		logger:    logger.Named("badges"),
		badge:     selector.NewChain("badge", cfg.Selectors.Badge...),
		entity:    selector.NewChain("model card", cfg.Selectors.Entity...),
		loading:   selector.NewChain("loading indicator", cfg.Selectors.Loading...),
		settings:  selector.NewChain("settings control", cfg.Selectors.Settings...),
		modelsTab: selector.NewChain("models tab", cfg.Selectors.ModelsTab...),
		loginGate: selector.NewChain("login gate", cfg.Selectors.LoginGate...),
		email:     selector.NewChain("email field", auth.Selectors.Email...),
		password:  selector.NewChain("password field", auth.Selectors.Password...),
		submit:    selector.NewChain("submit button", auth.Selectors.Submit...),
	}
}

// Suite returns the badge scenarios as a shared suite.
func (p *Probe) Suite() harness.Suite {
	return harness.Suite{
		Name:  "badges",
		Mode:  harness.Shared,
		Setup: p.Setup,
		Scenarios: []harness.Scenario{
			{ID: ScenarioBasicDisplay, Description: "badges render on the landing page", Run: p.BasicDisplay},
			{ID: ScenarioBadgeFilter, Description: "badge filtering by props", Run: componentLevel},
			{ID: ScenarioCustomOrder, Description: "custom badge ordering by props", Run: componentLevel},
			{ID: ScenarioSharedCache, Description: "certification lookups are shared across model cards", NeedsSetup: true, Run: p.SharedCache},
			{ID: ScenarioLoadingState, Description: "a loading indicator shows while badges load", NeedsSetup: true, Run: p.LoadingState},
			{ID: ScenarioErrorHandling, Description: "no uncaught page errors", NeedsSetup: true, Run: p.ErrorHandling},
			{ID: ScenarioNoBadges, Description: "models without badges still render", NeedsSetup: true, Run: p.NoBadges},
			{ID: ScenarioResponsiveness, Description: "badges stay visible at every viewport", NeedsSetup: true, Run: p.Responsiveness},
		},
	}
}

// Setup opens the landing page, logs in when a login form is in the way,
// records what the landing page shows and then opens the models view.
func (p *Probe) Setup(ctx context.Context, env *harness.Env) error {
	p.mu.Lock()
	p.home = nil
	p.mu.Unlock()

	if err := env.Page.Navigate(ctx, p.cfg.BaseURL, schemas.WaitNetworkIdle); err != nil {
		return fmt.Errorf("opening %s: %w", p.cfg.BaseURL, err)
	}
	p.settle(ctx, env)

	gate, err := selector.Resolve(ctx, env.Page, p.loginGate)
	if err != nil {
		return err
	}
	if gate.Resolved {
		if err := p.login(ctx, env); err != nil {
			return fmt.Errorf("logging in: %w", err)
		}
	}

	snap, err := p.snapshotHome(ctx, env)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.home = snap
	p.mu.Unlock()
	p.logger.Debug("Landing page recorded.", zap.Int("badges", snap.badges), zap.Strings("samples", snap.samples))
	p.screenshot(ctx, env, "home")

	if err := p.openModels(ctx, env); err != nil {
		return err
	}
	p.screenshot(ctx, env, "models")
	return nil
}

// BasicDisplay reports the badges the landing page rendered during setup.
func (p *Probe) BasicDisplay(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	p.mu.Lock()
	snap := p.home
	p.mu.Unlock()
	if snap == nil {
		return harness.Verdict{}, errors.New("landing page was never loaded")
	}
	if snap.badges == 0 {
		return harness.Fail("no badges found on the landing page (tried %s)", strings.Join(p.cfg.Selectors.Badge, ", ")), nil
	}
	if len(snap.samples) == 0 {
		return harness.Pass("%d badge(s) on the landing page", snap.badges), nil
	}
	return harness.Pass("%d badge(s) on the landing page, e.g. %s", snap.badges, strings.Join(snap.samples, ", ")), nil
}

// LoadingState reloads without waiting for subresources and looks for a
// loading indicator straight away.
func (p *Probe) LoadingState(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	if err := env.Page.Reload(ctx, schemas.WaitDOMContentLoaded); err != nil {
		return harness.Verdict{}, fmt.Errorf("reloading: %w", err)
	}
	indicators, err := selector.Resolve(ctx, env.Page, p.loading)
	if err != nil {
		return harness.Verdict{}, err
	}

	var v harness.Verdict
	if indicators.Resolved {
		v = harness.Pass("%d loading indicator(s) matched %q", indicators.MatchCount, indicators.Candidate.Expr)
	} else {
		v = harness.Warn("no loading indicator seen; loading may have finished too fast to observe")
	}

	// Later scenarios expect the models view again.
	p.settle(ctx, env)
	if err := p.openModels(ctx, env); err != nil {
		env.Logger.Warn("Could not restore the models view after reload.", zap.Error(err))
		v.Details += fmt.Sprintf(" (models view not restored: %v)", err)
	}
	return v, nil
}

// ErrorHandling fails when any uncaught error was thrown since the session began.
func (p *Probe) ErrorHandling(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	errs := env.Events.PageErrors()
	if len(errs) == 0 {
		return harness.Pass("no page errors captured"), nil
	}
	shown := errs
	if len(shown) > errorListSize {
		shown = shown[:errorListSize]
	}
	msgs := make([]string, len(shown))
	for i, e := range shown {
		msgs[i] = e.Message
	}
	return harness.Fail("%d page error(s): %s", len(errs), strings.Join(msgs, "; ")), nil
}

// NoBadges inspects the first model sections and counts those rendering
// without any badge.
func (p *Probe) NoBadges(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	script, err := sectionBadgeCountsScript(p.cfg.Selectors.Section, p.cfg.Selectors.Badge, p.cfg.MaxSections)
	if err != nil {
		return harness.Verdict{}, err
	}
	var counts []int
	if err := env.Page.Evaluate(ctx, script, &counts); err != nil {
		return harness.Verdict{}, fmt.Errorf("counting badges per section: %w", err)
	}
	if len(counts) == 0 {
		return harness.Warn("no model sections found (tried %s)", strings.Join(p.cfg.Selectors.Section, ", ")), nil
	}

	without := 0
	for _, n := range counts {
		if n == 0 {
			without++
		}
	}
	if errs := env.Events.PageErrors(); len(errs) > 0 {
		return harness.Warn("%d of %d section(s) without badges, but %d page error(s) were captured", without, len(counts), len(errs)), nil
	}
	return harness.Pass("%d of %d section(s) render without badges and no page errors", without, len(counts)), nil
}

func componentLevel(context.Context, *harness.Env) (harness.Verdict, error) {
	return harness.Skip("requires component-level props; covered by unit tests"), nil
}

func (p *Probe) login(ctx context.Context, env *harness.Env) error {
	if p.cred.Email == "" || p.cred.Password == "" {
		return errors.New("login form present but no credentials configured")
	}
	fields := []struct {
		chain selector.Chain
		text  string
	}{
		{p.email, p.cred.Email},
		{p.password, p.cred.Password},
	}
	for _, f := range fields {
		out, err := selector.Resolve(ctx, env.Page, f.chain)
		if err != nil {
			return err
		}
		if err := out.Err(); err != nil {
			return err
		}
		if err := env.Page.Fill(ctx, out.Element, f.text); err != nil {
			return fmt.Errorf("filling %s: %w", out.Role, err)
		}
	}
	if err := p.click(ctx, env, p.submit); err != nil {
		return err
	}
	p.settle(ctx, env)
	env.Logger.Info("Logged in to reach the landing page.")
	return nil
}

func (p *Probe) snapshotHome(ctx context.Context, env *harness.Env) (*homeSnapshot, error) {
	count, err := selector.Count(ctx, env.Page, p.badge)
	if err != nil {
		return nil, err
	}
	snap := &homeSnapshot{badges: count}
	if count == 0 {
		return snap, nil
	}
	script, err := sampleTextsScript(p.cfg.Selectors.Badge, sampleLimit)
	if err != nil {
		return nil, err
	}
	// Samples only decorate the details.
	if err := env.Page.Evaluate(ctx, script, &snap.samples); err != nil {
		env.Logger.Debug("Badge texts unavailable.", zap.Error(err))
		snap.samples = nil
	}
	return snap, nil
}

// openModels clicks through settings to the models tab.
func (p *Probe) openModels(ctx context.Context, env *harness.Env) error {
	if err := p.click(ctx, env, p.settings); err != nil {
		return err
	}
	p.settle(ctx, env)
	if err := p.click(ctx, env, p.modelsTab); err != nil {
		return err
	}
	p.settle(ctx, env)
	return nil
}

// click waits for the chain to resolve and clicks its first match.
func (p *Probe) click(ctx context.Context, env *harness.Env, chain selector.Chain) error {
	out, err := selector.WaitResolve(ctx, env.Page, chain, p.cfg.SettleTimeout, pollInterval)
	if err != nil {
		return err
	}
	if err := out.Err(); err != nil {
		return err
	}
	if err := env.Page.Click(ctx, out.Element); err != nil {
		return fmt.Errorf("clicking %s: %w", out.Role, err)
	}
	return nil
}

// settle waits for the network to go quiet. Pages that never settle are not
// an error here; the scenarios judge what rendered.
func (p *Probe) settle(ctx context.Context, env *harness.Env) {
	if err := env.Events.WaitNetworkIdle(ctx, p.cfg.SettleWait, p.cfg.SettleTimeout); err != nil && !errors.Is(err, wait.ErrTimeout) {
		env.Logger.Debug("Settle interrupted.", zap.Error(err))
	}
}

func (p *Probe) screenshot(ctx context.Context, env *harness.Env, name string) string {
	path, err := env.Screenshot(ctx, name, p.fullPage)
	if err != nil {
		env.Logger.Warn("Screenshot failed.", zap.String("name", name), zap.Error(err))
		return ""
	}
	if path != "" {
		env.Logger.Info("Screenshot saved.", zap.String("path", path))
	}
	return path
}
