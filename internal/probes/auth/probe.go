// Package auth probes the authentication-token lifecycle of the target:
// login success and failure, and how stored expired or malformed tokens are
// handled on a protected route.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/recorder"
	"github.com/xkilldash9x/uiprobe/internal/selector"
	"github.com/xkilldash9x/uiprobe/internal/wait"
)

// Scenario ids, in registration order.
const (
	ScenarioValidLogin     = "valid_login"
	ScenarioInvalidLogin   = "invalid_login"
	ScenarioExpiredToken   = "expired_token"
	ScenarioMalformedToken = "malformed_token"
)

const pollInterval = 150 * time.Millisecond

// Probe drives the token scenarios against one target.
type Probe struct {
	cfg    config.AuthConfig
	target config.TargetConfig
	logger *zap.Logger
	now    func() time.Time

	email    selector.Chain
	password selector.Chain
	submit   selector.Chain
	alert    selector.Chain
}

// NewProbe builds the token probe from configuration.
func NewProbe(cfg config.AuthConfig, target config.TargetConfig, logger *zap.Logger) *Probe {
	return &Probe{
		cfg:      cfg,
		target:   target,
		logger:   logger.Named("auth"),
		now:      time.Now,
		email:    selector.NewChain("email field", cfg.Selectors.Email...),
		password: selector.NewChain("password field", cfg.Selectors.Password...),
		submit:   selector.NewChain("submit button", cfg.Selectors.Submit...),
		alert:    selector.NewChain("error indicator", cfg.Selectors.ErrorIndicator...),
	}
}

// Suite returns the four token scenarios as an isolated suite.
func (p *Probe) Suite() harness.Suite {
	return harness.Suite{
		Name: "auth",
		Mode: harness.Isolated,
		Scenarios: []harness.Scenario{
			{ID: ScenarioValidLogin, Description: "correct credentials reach the protected route and store a token without leaking secrets", Run: p.ValidLogin},
			{ID: ScenarioInvalidLogin, Description: "wrong credentials show an inline error and store nothing", Run: p.InvalidLogin},
			{ID: ScenarioExpiredToken, Description: "an expired stored token is cleared and redirected to login", Run: p.ExpiredToken},
			{ID: ScenarioMalformedToken, Description: "a malformed stored token is cleared and redirected to login", Run: p.MalformedToken},
		},
	}
}

// ValidLogin submits the configured credentials. Secrets showing up in the
// console fail the scenario even when the login itself worked.
func (p *Probe) ValidLogin(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	cred := p.cfg.Valid
	if cred.Email == "" || cred.Password == "" {
		return harness.Skip("no valid credentials configured"), nil
	}

	if v, err := p.submitLogin(ctx, env, cred); v != nil || err != nil {
		return deref(v), err
	}

	finalURL, err := wait.Value(ctx, p.cfg.NavigationWait, pollInterval, env.Page.CurrentURL, func(u string) bool {
		return onRoute(u, p.target.ProtectedPath)
	})
	navigated := err == nil
	if err != nil && !errors.Is(err, wait.ErrTimeout) {
		return harness.Verdict{}, fmt.Errorf("waiting for %s: %w", p.target.ProtectedPath, err)
	}

	token, _, err := env.Page.ReadLocalStorageItem(ctx, p.cfg.TokenStorageKey)
	if err != nil {
		return harness.Verdict{}, fmt.Errorf("reading stored token: %w", err)
	}

	secrets := []Secret{
		{Label: "email", Value: cred.Email},
		{Label: "password", Value: cred.Password},
	}
	if token != "" {
		secrets = append(secrets, Secret{Label: "token prefix", Value: tokenPrefix(token, p.cfg.TokenLeakPrefix)})
	}
	if leaked := FindLeaks(env.Events.ConsoleLogs(), secrets); len(leaked) > 0 {
		return harness.Fail("sensitive data found in console output: %s", strings.Join(leaked, ", ")), nil
	}

	switch {
	case navigated && token != "":
		return harness.Pass("redirected to %s; token stored (%s); no secrets in console", finalURL, ClassifyToken(token, p.now())), nil
	case !navigated && token == "":
		return harness.Fail("still on %s after %s and no token stored", finalURL, p.cfg.NavigationWait), nil
	case !navigated:
		return harness.Fail("token stored but still on %s after %s", finalURL, p.cfg.NavigationWait), nil
	default:
		return harness.Fail("redirected to %s but no token stored under %q", finalURL, p.cfg.TokenStorageKey), nil
	}
}

// InvalidLogin submits credentials the target must reject.
func (p *Probe) InvalidLogin(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	if v, err := p.submitLogin(ctx, env, p.cfg.Invalid); v != nil || err != nil {
		return deref(v), err
	}

	indicator, err := selector.WaitResolve(ctx, env.Page, p.alert, p.cfg.ErrorIndicatorWait, pollInterval)
	if err != nil {
		return harness.Verdict{}, err
	}
	current, err := env.Page.CurrentURL(ctx)
	if err != nil {
		return harness.Verdict{}, fmt.Errorf("reading current url: %w", err)
	}
	token, present, err := env.Page.ReadLocalStorageItem(ctx, p.cfg.TokenStorageKey)
	if err != nil {
		return harness.Verdict{}, fmt.Errorf("reading stored token: %w", err)
	}
	errorLogs := recorder.CountConsoleMentions(env.Events, "[error]")

	var problems []string
	if !indicator.Resolved {
		problems = append(problems, fmt.Sprintf("no error indicator within %s", p.cfg.ErrorIndicatorWait))
	}
	if !onRoute(current, p.target.LoginPath) {
		problems = append(problems, "left the login route for "+current)
	}
	if present && token != "" {
		problems = append(problems, "a token was stored")
	}
	if len(problems) > 0 {
		return harness.Fail("%s", strings.Join(problems, "; ")), nil
	}
	return harness.Pass("error indicator shown (%s); stayed on %s; no token; %d error log line(s)",
		indicator.Candidate.Expr, current, errorLogs), nil
}

// ExpiredToken plants a well-formed token whose exp lies in the past.
func (p *Probe) ExpiredToken(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	value := p.cfg.ExpiredToken
	if value == "" {
		minted, err := MintExpiredToken()
		if err != nil {
			return harness.Verdict{}, err
		}
		value = minted
	}
	return p.injectedToken(ctx, env, value, Expired, "expired")
}

// MalformedToken plants a value that is not a token at all.
func (p *Probe) MalformedToken(ctx context.Context, env *harness.Env) (harness.Verdict, error) {
	return p.injectedToken(ctx, env, p.cfg.MalformedToken, Malformed, "invalid")
}

type storageView struct {
	url     string
	token   string
	present bool
}

func (p *Probe) injectedToken(ctx context.Context, env *harness.Env, value string, want AuthState, hint string) (harness.Verdict, error) {
	if got := ClassifyToken(value, p.now()); got != want {
		p.logger.Error("Injected token misconfigured.", zap.Stringer("got", got), zap.Stringer("want", want))
		return harness.Verdict{}, fmt.Errorf("configured token classifies as %s, want %s", got, want)
	}

	// Storage is per-origin, so the origin has to be loaded before writing.
	if err := env.Page.Navigate(ctx, p.target.LoginURL(), schemas.WaitNetworkIdle); err != nil {
		return harness.Verdict{}, fmt.Errorf("opening login page: %w", err)
	}
	if err := env.Page.WriteLocalStorageItem(ctx, p.cfg.TokenStorageKey, value); err != nil {
		return harness.Verdict{}, fmt.Errorf("injecting %s token: %w", want, err)
	}
	env.Logger.Debug("Token injected.", zap.String("state", want.String()), zap.String("key", p.cfg.TokenStorageKey))

	if err := env.Page.Navigate(ctx, p.target.ProtectedURL(), schemas.WaitNetworkIdle); err != nil {
		return harness.Verdict{}, fmt.Errorf("opening protected route: %w", err)
	}

	// Client-side guards may redirect and clear storage after load.
	view, err := wait.Value(ctx, p.cfg.NavigationWait, pollInterval, func(c context.Context) (storageView, error) {
		u, err := env.Page.CurrentURL(c)
		if err != nil {
			return storageView{}, err
		}
		tok, present, err := env.Page.ReadLocalStorageItem(c, p.cfg.TokenStorageKey)
		return storageView{url: u, token: tok, present: present}, err
	}, func(v storageView) bool {
		return onRoute(v.url, p.target.LoginPath) && v.token == ""
	})
	if err != nil && !errors.Is(err, wait.ErrTimeout) {
		return harness.Verdict{}, fmt.Errorf("observing redirect: %w", err)
	}

	mentions := recorder.CountConsoleMentions(env.Events, hint)
	if err == nil {
		return harness.Pass("%s token rejected: redirected to %s and token cleared; %d console line(s) mention %q",
			want, view.url, mentions, hint), nil
	}
	return harness.Fail("%s token not handled: url=%s token_present=%t (after %s); %d console line(s) mention %q",
		want, view.url, view.token != "", p.cfg.NavigationWait, mentions, hint), nil
}

// submitLogin opens the login page, fills both fields and clicks submit. A
// non-nil verdict means a form element could not be resolved.
func (p *Probe) submitLogin(ctx context.Context, env *harness.Env, cred schemas.Credential) (*harness.Verdict, error) {
	if err := env.Page.Navigate(ctx, p.target.LoginURL(), schemas.WaitNetworkIdle); err != nil {
		return nil, fmt.Errorf("opening login page: %w", err)
	}

	fields := []struct {
		chain selector.Chain
		text  string
	}{
		{p.email, cred.Email},
		{p.password, cred.Password},
	}
	for _, f := range fields {
		out, err := selector.WaitResolve(ctx, env.Page, f.chain, p.cfg.NavigationWait, pollInterval)
		if err != nil {
			return nil, err
		}
		if !out.Resolved {
			v := harness.Fail("%v", out.Err())
			return &v, nil
		}
		if err := env.Page.Fill(ctx, out.Element, f.text); err != nil {
			return nil, fmt.Errorf("filling %s: %w", out.Role, err)
		}
	}

	submit, err := selector.Resolve(ctx, env.Page, p.submit)
	if err != nil {
		return nil, err
	}
	if !submit.Resolved {
		v := harness.Fail("%v", submit.Err())
		return &v, nil
	}
	if err := env.Page.Click(ctx, submit.Element); err != nil {
		return nil, fmt.Errorf("clicking %s: %w", submit.Role, err)
	}
	return nil, nil
}

func deref(v *harness.Verdict) harness.Verdict {
	if v == nil {
		return harness.Verdict{}
	}
	return *v
}

// onRoute reports whether raw points at route, either by path or by a
// hash-router fragment such as "#/login".
func onRoute(raw, route string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	route = "/" + strings.Trim(route, "/")
	for _, path := range []string{u.Path, u.Fragment} {
		path = "/" + strings.Trim(path, "/")
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}
