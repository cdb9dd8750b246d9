package badges

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/mocks"
	"github.com/xkilldash9x/uiprobe/internal/recorder"
)

const (
	appURL      = "http://app.test"
	badgeSel    = `.MuiChip-root`
	cardSel     = `[class*="ModelCard"], [class*="model-card"]`
	settingsSel = `button[aria-label*="settings"]`
	modelsSel   = `xpath=//button[contains(normalize-space(.), "Modelos")]`
	spinnerSel  = `.MuiCircularProgress-root`
	emailSel    = `input[type="email"]`
)

// -- Test Fixtures --

// app models the badge UI: a landing page with badges and a settings
// button, a models view reached through two clicks, and one API call per
// render pass of the models view unless perCardFetch is set.
type app struct {
	page *mocks.FakePage
	rec  *recorder.Recorder
	env  *harness.Env

	gated        bool
	perCardFetch bool
	cards        int
	spinner      bool
	sections     []int
	reqSeq       int
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		page:     mocks.NewFakePage(),
		rec:      recorder.New(zaptest.NewLogger(t)),
		cards:    4,
		spinner:  true,
		sections: []int{2, 0, 1},
	}
	a.env = &harness.Env{SessionID: "s", Page: a.page, Events: a.rec, Logger: zaptest.NewLogger(t)}

	landing := func(p *mocks.FakePage) {
		p.Set(badgeSel, 3)
		p.Set(settingsSel, 1)
		p.Set(modelsSel, 0)
		p.Set(cardSel, 0)
		p.Set(spinnerSel, 0)
	}
	a.page.OnNavigate = func(p *mocks.FakePage, url string) string {
		if a.gated {
			p.Set(emailSel, 1)
			p.Set(`input[type="password"]`, 1)
			p.Set(`button[type="submit"]`, 1)
			return url
		}
		landing(p)
		return url
	}
	a.page.OnClick = func(p *mocks.FakePage, sel string) {
		switch sel {
		case `button[type="submit"]`:
			a.gated = false
			p.Set(emailSel, 0)
			landing(p)
		case settingsSel:
			p.Set(modelsSel, 1)
		case modelsSel:
			p.Set(cardSel, a.cards)
			p.Set(badgeSel, 7)
			calls := 1
			if a.perCardFetch {
				calls = a.cards
			}
			for i := 0; i < calls; i++ {
				a.api()
			}
		}
	}
	a.page.OnReload = func(p *mocks.FakePage, wait schemas.WaitPolicy) {
		landing(p)
		if a.spinner && wait == schemas.WaitDOMContentLoaded {
			p.Set(spinnerSel, 2)
		}
	}
	a.page.OnEvaluate = func(p *mocks.FakePage, script string) (interface{}, error) {
		switch {
		case strings.Contains(script, "textContent"):
			return []string{"AWS SAA", "CKA", "GCP ACE"}, nil
		case strings.Contains(script, "map(s =>"):
			return a.sections, nil
		}
		return nil, fmt.Errorf("unexpected script")
	}
	return a
}

func (a *app) api() {
	a.reqSeq++
	id := fmt.Sprintf("req-%d", a.reqSeq)
	a.rec.RequestStarted(id, schemas.APICallRecord{URL: appURL + "/api/certifications?model=" + id, Method: "GET", Timestamp: time.Now()})
	a.rec.RequestFinished(id)
}

func newTestProbe(t *testing.T) *Probe {
	t.Helper()
	cfg := config.NewDefaultConfig()
	b := cfg.Badges()
	b.BaseURL = appURL
	b.SettleWait = 20 * time.Millisecond
	b.SettleTimeout = 300 * time.Millisecond
	b.LayoutSettle = 200 * time.Millisecond
	return NewProbe(b, cfg.Auth(), true, zaptest.NewLogger(t))
}

func ctxFor(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// -- Heuristics --

func TestClassifyCache(t *testing.T) {
	tests := []struct {
		calls, entities int
		want            schemas.Status
	}{
		{1, 4, schemas.StatusPass},
		{0, 1, schemas.StatusPass},
		{4, 4, schemas.StatusWarning},
		{9, 4, schemas.StatusWarning},
		{3, 0, schemas.StatusWarning},
		{0, 0, schemas.StatusWarning},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d calls %d entities", tt.calls, tt.entities), func(t *testing.T) {
			v := ClassifyCache(tt.calls, tt.entities)
			assert.Equal(t, tt.want, v.Status)
			assert.NotEqual(t, schemas.StatusFail, v.Status)
			assert.Contains(t, v.Details, "heuristic")
		})
	}
	assert.Contains(t, ClassifyCache(2, 0).Details, "inconclusive")
}

func TestEvaluateViewports(t *testing.T) {
	desktop := schemas.Viewport{Width: 1920, Height: 1080, Label: "Desktop"}
	tablet := schemas.Viewport{Width: 768, Height: 1024, Label: "Tablet"}
	mobile := schemas.Viewport{Width: 375, Height: 667, Label: "Mobile"}

	v := EvaluateViewports([]ViewportResult{{Viewport: desktop, Visible: 5}, {Viewport: tablet, Visible: 3}, {Viewport: mobile, Visible: 1}})
	assert.Equal(t, schemas.StatusPass, v.Status)

	v = EvaluateViewports([]ViewportResult{{Viewport: desktop, Visible: 5}, {Viewport: tablet, Visible: 0}, {Viewport: mobile, Visible: 0}})
	assert.Equal(t, schemas.StatusFail, v.Status)
	assert.Contains(t, v.Details, "Tablet, Mobile")
	assert.NotContains(t, v.Details, "at Desktop")

	assert.Equal(t, schemas.StatusFail, EvaluateViewports(nil).Status)
}

func TestScripts(t *testing.T) {
	s, err := sampleTextsScript([]string{`[class*="chip"]`, `xpath=//span`}, 5)
	require.NoError(t, err)
	assert.Contains(t, s, `["[class*=\"chip\"]","xpath=//span"]`)
	assert.Contains(t, s, "slice(0, 5)")

	s, err = sectionBadgeCountsScript([]string{`[class*="model"]`}, []string{`.MuiChip-root`}, 10)
	require.NoError(t, err)
	assert.Contains(t, s, "slice(0, 10)")
	assert.Contains(t, s, `first(s, [".MuiChip-root"])`)
}

// -- Scenarios --

func TestSetup(t *testing.T) {
	t.Run("records the landing page and opens the models view", func(t *testing.T) {
		a := newApp(t)
		p := newTestProbe(t)
		require.NoError(t, p.Setup(ctxFor(t), a.env))
		assert.Equal(t, []string{appURL}, a.page.Visited)
		assert.Equal(t, []string{settingsSel, modelsSel}, a.page.Clicked)

		v, err := p.BasicDisplay(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusPass, v.Status)
		assert.Equal(t, "3 badge(s) on the landing page, e.g. AWS SAA, CKA, GCP ACE", v.Details)
	})

	t.Run("logs in through a gate", func(t *testing.T) {
		a := newApp(t)
		a.gated = true
		p := newTestProbe(t)
		require.NoError(t, p.Setup(ctxFor(t), a.env))
		assert.Equal(t, "123@123.com", a.page.Filled[emailSel])
		assert.Equal(t, []string{`button[type="submit"]`, settingsSel, modelsSel}, a.page.Clicked)
	})

	t.Run("gate without credentials fails setup", func(t *testing.T) {
		a := newApp(t)
		a.gated = true
		p := newTestProbe(t)
		p.cred = schemas.Credential{}
		err := p.Setup(ctxFor(t), a.env)
		assert.ErrorContains(t, err, "no credentials configured")
	})

	t.Run("missing settings control fails setup but keeps the landing snapshot", func(t *testing.T) {
		a := newApp(t)
		p := newTestProbe(t)
		p.cfg.SettleTimeout = 100 * time.Millisecond
		a.page.OnNavigate = func(pg *mocks.FakePage, url string) string {
			pg.Set(badgeSel, 0)
			return url
		}
		err := p.Setup(ctxFor(t), a.env)
		assert.ErrorContains(t, err, "settings control")

		v, err := p.BasicDisplay(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusFail, v.Status)
	})

	t.Run("basic display without setup is an error", func(t *testing.T) {
		_, err := newTestProbe(t).BasicDisplay(ctxFor(t), newApp(t).env)
		assert.Error(t, err)
	})
}

func TestSharedCache(t *testing.T) {
	t.Run("one call for many cards passes", func(t *testing.T) {
		a := newApp(t)
		p := newTestProbe(t)
		require.NoError(t, p.Setup(ctxFor(t), a.env))
		v, err := p.SharedCache(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusPass, v.Status, v.Details)
		assert.Contains(t, v.Details, "1 call(s) for 4 rendered entities")
	})

	t.Run("one call per card warns", func(t *testing.T) {
		a := newApp(t)
		a.perCardFetch = true
		p := newTestProbe(t)
		require.NoError(t, p.Setup(ctxFor(t), a.env))
		v, err := p.SharedCache(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusWarning, v.Status)
		assert.Contains(t, v.Details, "4 call(s) for 4 rendered entities")
	})
}

func TestLoadingState(t *testing.T) {
	a := newApp(t)
	p := newTestProbe(t)
	require.NoError(t, p.Setup(ctxFor(t), a.env))

	v, err := p.LoadingState(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPass, v.Status, v.Details)
	assert.Equal(t, 4, a.page.Elements[cardSel], "models view restored")

	a.spinner = false
	v, err = p.LoadingState(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusWarning, v.Status)
}

func TestErrorHandling(t *testing.T) {
	a := newApp(t)
	p := newTestProbe(t)
	v, err := p.ErrorHandling(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPass, v.Status)

	for i := 0; i < 5; i++ {
		a.rec.AddPageError(schemas.PageError{Message: fmt.Sprintf("TypeError %d", i)})
	}
	v, err = p.ErrorHandling(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusFail, v.Status)
	assert.Equal(t, "5 page error(s): TypeError 0; TypeError 1; TypeError 2", v.Details)
}

func TestNoBadges(t *testing.T) {
	a := newApp(t)
	p := newTestProbe(t)
	v, err := p.NoBadges(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPass, v.Status)
	assert.Equal(t, "1 of 3 section(s) render without badges and no page errors", v.Details)

	a.rec.AddPageError(schemas.PageError{Message: "boom"})
	v, err = p.NoBadges(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusWarning, v.Status)

	a.sections = nil
	v, err = p.NoBadges(ctxFor(t), a.env)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusWarning, v.Status)
	assert.Contains(t, v.Details, "no model sections")
}

func TestResponsiveness(t *testing.T) {
	t.Run("all viewports show badges", func(t *testing.T) {
		a := newApp(t)
		a.page.Set(badgeSel, 3)
		v, err := newTestProbe(t).Responsiveness(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusPass, v.Status)
		assert.Equal(t, [2]int{375, 667}, a.page.Viewport)
	})

	t.Run("names every failing viewport", func(t *testing.T) {
		a := newApp(t)
		a.page.Set(badgeSel, 3)
		a.page.OnViewport = func(p *mocks.FakePage, w, h int) {
			if w < 1000 {
				p.Visible[badgeSel] = 0
			} else {
				delete(p.Visible, badgeSel)
			}
		}
		v, err := newTestProbe(t).Responsiveness(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusFail, v.Status)
		assert.Contains(t, v.Details, "Tablet, Mobile")
		assert.Contains(t, v.Details, "Desktop=3")
	})

	t.Run("zero layout settle still reads visible badges", func(t *testing.T) {
		a := newApp(t)
		a.page.Set(badgeSel, 3)
		probe := newTestProbe(t)
		probe.cfg.LayoutSettle = 0
		v, err := probe.Responsiveness(ctxFor(t), a.env)
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusPass, v.Status, v.Details)
	})

	t.Run("driver errors propagate", func(t *testing.T) {
		a := newApp(t)
		a.page.Err = fmt.Errorf("target closed")
		_, err := newTestProbe(t).Responsiveness(ctxFor(t), a.env)
		assert.ErrorContains(t, err, "target closed")
	})
}

// -- Full Suite --

type staticSession struct{ a *app }

func (s staticSession) ID() string                      { return "static" }
func (s staticSession) Page() schemas.Page              { return s.a.page }
func (s staticSession) Events() schemas.EventLog        { return s.a.rec }
func (s staticSession) Close(ctx context.Context) error { return nil }

type staticProvider struct{ a *app }

func (p staticProvider) NewSession(ctx context.Context) (schemas.Session, error) {
	return staticSession(p), nil
}

func TestSuite_RunsInOrderOnOneSession(t *testing.T) {
	a := newApp(t)
	probe := newTestProbe(t)
	runner := harness.NewRunner(staticProvider{a}, zaptest.NewLogger(t), harness.WithScenarioTimeout(5*time.Second))

	report, err := runner.Run(ctxFor(t), probe.Suite())
	require.NoError(t, err)

	got := map[string]schemas.Status{}
	var order []string
	for _, o := range report.Outcomes {
		order = append(order, o.ScenarioID)
		got[o.ScenarioID] = o.Status
	}
	assert.Equal(t, []string{
		ScenarioBasicDisplay, ScenarioBadgeFilter, ScenarioCustomOrder, ScenarioSharedCache,
		ScenarioLoadingState, ScenarioErrorHandling, ScenarioNoBadges, ScenarioResponsiveness,
	}, order)
	assert.Equal(t, map[string]schemas.Status{
		ScenarioBasicDisplay:   schemas.StatusPass,
		ScenarioBadgeFilter:    schemas.StatusSkip,
		ScenarioCustomOrder:    schemas.StatusSkip,
		ScenarioSharedCache:    schemas.StatusPass,
		ScenarioLoadingState:   schemas.StatusPass,
		ScenarioErrorHandling:  schemas.StatusPass,
		ScenarioNoBadges:       schemas.StatusPass,
		ScenarioResponsiveness: schemas.StatusPass,
	}, got)
	assert.Equal(t, 6, report.Summary.Passed)
	assert.Equal(t, 2, report.Summary.Skipped)
}

func TestSuite_SetupFailureMarksDependents(t *testing.T) {
	a := newApp(t)
	a.page.OnNavigate = func(p *mocks.FakePage, url string) string {
		p.Set(badgeSel, 2)
		return url
	}
	probe := newTestProbe(t)
	probe.cfg.SettleTimeout = 100 * time.Millisecond
	runner := harness.NewRunner(staticProvider{a}, zaptest.NewLogger(t), harness.WithScenarioTimeout(5*time.Second))

	report, err := runner.Run(ctxFor(t), probe.Suite())
	require.NoError(t, err)

	basic, ok := report.Outcome(ScenarioBasicDisplay)
	require.True(t, ok)
	assert.Equal(t, schemas.StatusPass, basic.Status)
	filter, _ := report.Outcome(ScenarioBadgeFilter)
	assert.Equal(t, schemas.StatusSkip, filter.Status)
	for _, id := range []string{ScenarioSharedCache, ScenarioLoadingState, ScenarioErrorHandling, ScenarioNoBadges, ScenarioResponsiveness} {
		o, ok := report.Outcome(id)
		require.True(t, ok, id)
		assert.Equal(t, schemas.StatusError, o.Status, id)
		assert.Contains(t, o.Details, "setup failed:", id)
	}
}
