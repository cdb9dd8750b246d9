// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Target() config.TargetConfig {
	args := m.Called()
	return args.Get(0).(config.TargetConfig)
}

func (m *MockConfig) Auth() config.AuthConfig {
	args := m.Called()
	return args.Get(0).(config.AuthConfig)
}

func (m *MockConfig) Badges() config.BadgesConfig {
	args := m.Called()
	return args.Get(0).(config.BadgesConfig)
}

func (m *MockConfig) Runner() config.RunnerConfig {
	args := m.Called()
	return args.Get(0).(config.RunnerConfig)
}

func (m *MockConfig) Artifacts() config.ArtifactsConfig {
	args := m.Called()
	return args.Get(0).(config.ArtifactsConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

// --- Setters ---

func (m *MockConfig) SetRunnerConcurrency(n int)               { m.Called(n) }
func (m *MockConfig) SetRunnerScenarioTimeout(d time.Duration) { m.Called(d) }
func (m *MockConfig) SetBrowserHeadless(b bool)                { m.Called(b) }
func (m *MockConfig) SetTargetBaseURL(u string)                { m.Called(u) }
func (m *MockConfig) SetBadgesBaseURL(u string)                { m.Called(u) }
func (m *MockConfig) SetReportFormat(f string)                 { m.Called(f) }
func (m *MockConfig) SetReportOutput(p string)                 { m.Called(p) }

// -- Browser Mocks --

// MockPage mocks schemas.Page.
type MockPage struct {
	mock.Mock
}

var _ schemas.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string, wait schemas.WaitPolicy) error {
	return m.Called(ctx, url, wait).Error(0)
}

func (m *MockPage) Reload(ctx context.Context, wait schemas.WaitPolicy) error {
	return m.Called(ctx, wait).Error(0)
}

func (m *MockPage) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Locate(ctx context.Context, selector string) ([]schemas.ElementHandle, error) {
	args := m.Called(ctx, selector)
	var handles []schemas.ElementHandle
	if h := args.Get(0); h != nil {
		handles = h.([]schemas.ElementHandle)
	}
	return handles, args.Error(1)
}

func (m *MockPage) Fill(ctx context.Context, el schemas.ElementHandle, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *MockPage) Click(ctx context.Context, el schemas.ElementHandle) error {
	return m.Called(ctx, el).Error(0)
}

// Evaluate records the call; use .Run on the expectation to populate res.
func (m *MockPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	return m.Called(ctx, script, res).Error(0)
}

func (m *MockPage) CountVisible(ctx context.Context, selector string) (int, error) {
	args := m.Called(ctx, selector)
	return args.Int(0), args.Error(1)
}

func (m *MockPage) SetViewport(ctx context.Context, width, height int) error {
	return m.Called(ctx, width, height).Error(0)
}

func (m *MockPage) CaptureScreenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	args := m.Called(ctx, fullPage)
	var data []byte
	if d := args.Get(0); d != nil {
		data = d.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockPage) ReadLocalStorageItem(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPage) WriteLocalStorageItem(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

// MockEventLog mocks schemas.EventLog.
type MockEventLog struct {
	mock.Mock
}

var _ schemas.EventLog = (*MockEventLog)(nil)

func (m *MockEventLog) ConsoleLogs() []schemas.ConsoleLog {
	args := m.Called()
	if l := args.Get(0); l != nil {
		return l.([]schemas.ConsoleLog)
	}
	return nil
}

func (m *MockEventLog) PageErrors() []schemas.PageError {
	args := m.Called()
	if l := args.Get(0); l != nil {
		return l.([]schemas.PageError)
	}
	return nil
}

func (m *MockEventLog) APICalls() []schemas.APICallRecord {
	args := m.Called()
	if l := args.Get(0); l != nil {
		return l.([]schemas.APICallRecord)
	}
	return nil
}

func (m *MockEventLog) CountAPICalls(pattern string) int {
	return m.Called(pattern).Int(0)
}

func (m *MockEventLog) WaitNetworkIdle(ctx context.Context, quietPeriod, timeout time.Duration) error {
	return m.Called(ctx, quietPeriod, timeout).Error(0)
}

// MockSession mocks schemas.Session.
type MockSession struct {
	mock.Mock
}

var _ schemas.Session = (*MockSession)(nil)

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Page() schemas.Page {
	return m.Called().Get(0).(schemas.Page)
}

func (m *MockSession) Events() schemas.EventLog {
	return m.Called().Get(0).(schemas.EventLog)
}

func (m *MockSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// MockSessionProvider mocks schemas.SessionProvider.
type MockSessionProvider struct {
	mock.Mock
}

var _ schemas.SessionProvider = (*MockSessionProvider)(nil)

func (m *MockSessionProvider) NewSession(ctx context.Context) (schemas.Session, error) {
	args := m.Called(ctx)
	var s schemas.Session
	if v := args.Get(0); v != nil {
		s = v.(schemas.Session)
	}
	return s, args.Error(1)
}
