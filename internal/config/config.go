// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Target() TargetConfig
	Auth() AuthConfig
	Badges() BadgesConfig
	Runner() RunnerConfig
	Artifacts() ArtifactsConfig
	Report() ReportConfig

	// Runner Setters
	SetRunnerConcurrency(int)
	SetRunnerScenarioTimeout(d time.Duration)

	// Browser Setters
	SetBrowserHeadless(bool)

	// Target Setters
	SetTargetBaseURL(string)
	SetBadgesBaseURL(string)

	// Report Setters
	SetReportFormat(string)
	SetReportOutput(string)
}

// Config holds the entire application configuration. Sections are exported
// for viper's decoder; callers go through the Interface getters.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	TargetCfg    TargetConfig    `mapstructure:"target" yaml:"target"`
	AuthCfg      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	BadgesCfg    BadgesConfig    `mapstructure:"badges" yaml:"badges"`
	RunnerCfg    RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	ReportCfg    ReportConfig    `mapstructure:"report" yaml:"report"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Target() TargetConfig       { return c.TargetCfg }
func (c *Config) Auth() AuthConfig           { return c.AuthCfg }
func (c *Config) Badges() BadgesConfig       { return c.BadgesCfg }
func (c *Config) Runner() RunnerConfig       { return c.RunnerCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Report() ReportConfig       { return c.ReportCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunnerConcurrency(n int)               { c.RunnerCfg.Concurrency = n }
func (c *Config) SetRunnerScenarioTimeout(d time.Duration) { c.RunnerCfg.ScenarioTimeout = d }
func (c *Config) SetBrowserHeadless(b bool)                { c.BrowserCfg.Headless = b }
func (c *Config) SetTargetBaseURL(u string)                { c.TargetCfg.BaseURL = u }
func (c *Config) SetBadgesBaseURL(u string)                { c.BadgesCfg.BaseURL = u }
func (c *Config) SetReportFormat(f string)                 { c.ReportCfg.Format = f }
func (c *Config) SetReportOutput(p string)                 { c.ReportCfg.Output = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance the harness drives.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableCache    bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Viewport        ViewportSize  `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportSize is the initial window size of every session.
type ViewportSize struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath     string `mapstructure:"login_path" yaml:"login_path"`
	ProtectedPath string `mapstructure:"protected_path" yaml:"protected_path"`
}

// LoginURL joins the base URL and the login route.
func (t TargetConfig) LoginURL() string { return joinURL(t.BaseURL, t.LoginPath) }

// ProtectedURL joins the base URL and the protected route.
func (t TargetConfig) ProtectedURL() string { return joinURL(t.BaseURL, t.ProtectedPath) }

// AuthConfig tunes the token lifecycle suite.
type AuthConfig struct {
	Valid              schemas.Credential `mapstructure:"valid" yaml:"valid"`
	Invalid            schemas.Credential `mapstructure:"invalid" yaml:"invalid"`
	TokenStorageKey    string             `mapstructure:"token_storage_key" yaml:"token_storage_key"`
	TokenLeakPrefix    int                `mapstructure:"token_leak_prefix" yaml:"token_leak_prefix"`
	MalformedToken     string             `mapstructure:"malformed_token" yaml:"malformed_token"`
	ExpiredToken       string             `mapstructure:"expired_token" yaml:"expired_token"`
	NavigationWait     time.Duration      `mapstructure:"navigation_wait" yaml:"navigation_wait"`
	ErrorIndicatorWait time.Duration      `mapstructure:"error_indicator_wait" yaml:"error_indicator_wait"`
	Selectors          AuthSelectors      `mapstructure:"selectors" yaml:"selectors"`
}

// AuthSelectors lists the candidate chains for each login form field, in priority order.
type AuthSelectors struct {
	Email          []string `mapstructure:"email" yaml:"email"`
	Password       []string `mapstructure:"password" yaml:"password"`
	Submit         []string `mapstructure:"submit" yaml:"submit"`
	ErrorIndicator []string `mapstructure:"error_indicator" yaml:"error_indicator"`
}

// BadgesConfig tunes the badge rendering suite.
type BadgesConfig struct {
	BaseURL       string             `mapstructure:"base_url" yaml:"base_url"`
	APIPattern    string             `mapstructure:"api_pattern" yaml:"api_pattern"`
	SettleWait    time.Duration      `mapstructure:"settle_wait" yaml:"settle_wait"`
	SettleTimeout time.Duration      `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	LayoutSettle  time.Duration      `mapstructure:"layout_settle" yaml:"layout_settle"`
	MaxSections   int                `mapstructure:"max_sections" yaml:"max_sections"`
	Viewports     []schemas.Viewport `mapstructure:"viewports" yaml:"viewports"`
	Selectors     BadgeSelectors     `mapstructure:"selectors" yaml:"selectors"`
}

// BadgeSelectors lists the candidate chains used by the badge suite.
type BadgeSelectors struct {
	Badge     []string `mapstructure:"badge" yaml:"badge"`
	Entity    []string `mapstructure:"entity" yaml:"entity"`
	Section   []string `mapstructure:"section" yaml:"section"`
	Loading   []string `mapstructure:"loading" yaml:"loading"`
	Settings  []string `mapstructure:"settings" yaml:"settings"`
	ModelsTab []string `mapstructure:"models_tab" yaml:"models_tab"`
	LoginGate []string `mapstructure:"login_gate" yaml:"login_gate"`
}

// RunnerConfig configures scenario scheduling.
type RunnerConfig struct {
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	AbandonGrace    time.Duration `mapstructure:"abandon_grace" yaml:"abandon_grace"`
}

// ArtifactsConfig controls where screenshots land.
type ArtifactsConfig struct {
	Dir                 string `mapstructure:"dir" yaml:"dir"`
	ScreenshotOnFailure bool   `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
	FullPage            bool   `mapstructure:"full_page" yaml:"full_page"`
}

// ReportConfig selects the report encoder and destination. An empty output writes to stdout.
type ReportConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`
	Output      string `mapstructure:"output" yaml:"output"`
	ConsoleTail int    `mapstructure:"console_tail" yaml:"console_tail"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uiprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:3003")
	v.SetDefault("target.login_path", "/login")
	v.SetDefault("target.protected_path", "/certifications")

	// -- Auth --
	v.SetDefault("auth.valid.email", "123@123.com")
	v.SetDefault("auth.valid.password", "123123")
	v.SetDefault("auth.invalid.email", "invalid@test.com")
	v.SetDefault("auth.invalid.password", "wrong")
	v.SetDefault("auth.token_storage_key", "auth_token")
	v.SetDefault("auth.token_leak_prefix", 10)
	v.SetDefault("auth.malformed_token", "invalid.token.here")
	// Empty means a fresh HS256 token with an exp in 2020 is minted per run.
	v.SetDefault("auth.expired_token", "")
	v.SetDefault("auth.navigation_wait", "10s")
	v.SetDefault("auth.error_indicator_wait", "5s")
	v.SetDefault("auth.selectors.email", []string{`input[type="email"]`, `input[name="email"]`, `#email`})
	v.SetDefault("auth.selectors.password", []string{`input[type="password"]`, `input[name="password"]`, `#password`})
	v.SetDefault("auth.selectors.submit", []string{`button[type="submit"]`, `input[type="submit"]`, `xpath=//form//button[last()]`})
	v.SetDefault("auth.selectors.error_indicator", []string{`.MuiAlert-root`, `[role="alert"]`})

	// -- Badges --
	v.SetDefault("badges.base_url", "http://localhost:3000")
	v.SetDefault("badges.api_pattern", "/api/certification")
	v.SetDefault("badges.settle_wait", "1s")
	v.SetDefault("badges.settle_timeout", "10s")
	v.SetDefault("badges.layout_settle", "2s")
	v.SetDefault("badges.max_sections", 10)
	v.SetDefault("badges.viewports", []map[string]interface{}{
		{"width": 1920, "height": 1080, "label": "Desktop"},
		{"width": 768, "height": 1024, "label": "Tablet"},
		{"width": 375, "height": 667, "label": "Mobile"},
	})
	v.SetDefault("badges.selectors.badge", []string{`.MuiChip-root`})
	// One selector list so cards using either class naming are counted together.
	v.SetDefault("badges.selectors.entity", []string{`[class*="ModelCard"], [class*="model-card"]`})
	v.SetDefault("badges.selectors.section", []string{`[class*="model"]`})
	v.SetDefault("badges.selectors.loading", []string{`.MuiCircularProgress-root`, `[class*="loading"]`, `[class*="skeleton"]`})
	v.SetDefault("badges.selectors.settings", []string{`button[aria-label*="settings"]`, `button[aria-label*="configurações"]`, `a[href*="settings"]`})
	v.SetDefault("badges.selectors.models_tab", []string{
		`xpath=//button[contains(normalize-space(.), "Modelos")]`,
		`xpath=//button[contains(normalize-space(.), "Models")]`,
	})
	v.SetDefault("badges.selectors.login_gate", []string{`input[type="email"]`})

	// -- Runner --
	v.SetDefault("runner.concurrency", 4)
	v.SetDefault("runner.scenario_timeout", "90s")
	v.SetDefault("runner.abandon_grace", "2s")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "~/.uiprobe/artifacts")
	v.SetDefault("artifacts.screenshot_on_failure", true)
	v.SetDefault("artifacts.full_page", true)

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")
	v.SetDefault("report.console_tail", 20)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are commonly injected by CI.
	_ = v.BindEnv("auth.valid.email", "UIPROBE_AUTH_EMAIL")
	_ = v.BindEnv("auth.valid.password", "UIPROBE_AUTH_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := validateURL("target.base_url", c.TargetCfg.BaseURL); err != nil {
		return err
	}
	if c.BadgesCfg.BaseURL != "" {
		if err := validateURL("badges.base_url", c.BadgesCfg.BaseURL); err != nil {
			return err
		}
	}
	if c.RunnerCfg.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.RunnerCfg.ScenarioTimeout <= 0 {
		return fmt.Errorf("runner.scenario_timeout must be a positive duration")
	}
	if c.BrowserCfg.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be a positive duration")
	}
	if err := c.AuthCfg.Validate(); err != nil {
		return fmt.Errorf("auth configuration invalid: %w", err)
	}
	if err := c.BadgesCfg.Validate(); err != nil {
		return fmt.Errorf("badges configuration invalid: %w", err)
	}
	switch strings.ToLower(c.ReportCfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("report.format must be one of json, text (got %q)", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks the auth suite settings.
func (a *AuthConfig) Validate() error {
	if a.TokenStorageKey == "" {
		return fmt.Errorf("token_storage_key is required")
	}
	if a.TokenLeakPrefix <= 0 {
		return fmt.Errorf("token_leak_prefix must be greater than 0")
	}
	if a.NavigationWait <= 0 || a.ErrorIndicatorWait <= 0 {
		return fmt.Errorf("navigation_wait and error_indicator_wait must be positive durations")
	}
	if len(a.Selectors.Email) == 0 || len(a.Selectors.Password) == 0 || len(a.Selectors.Submit) == 0 {
		return fmt.Errorf("selectors.email, selectors.password and selectors.submit need at least one candidate")
	}
	if len(a.Selectors.ErrorIndicator) == 0 {
		return fmt.Errorf("selectors.error_indicator needs at least one candidate")
	}
	return nil
}

// Validate checks the badge suite settings.
func (b *BadgesConfig) Validate() error {
	if b.APIPattern == "" {
		return fmt.Errorf("api_pattern is required")
	}
	if b.SettleWait <= 0 || b.SettleTimeout < b.SettleWait {
		return fmt.Errorf("settle_wait must be positive and no longer than settle_timeout")
	}
	if b.LayoutSettle <= 0 {
		return fmt.Errorf("layout_settle must be a positive duration")
	}
	if len(b.Viewports) == 0 {
		return fmt.Errorf("at least one viewport is required")
	}
	for _, vp := range b.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 || vp.Label == "" {
			return fmt.Errorf("viewport %q needs a label and positive dimensions", vp.Label)
		}
	}
	if len(b.Selectors.Badge) == 0 || len(b.Selectors.Entity) == 0 {
		return fmt.Errorf("selectors.badge and selectors.entity need at least one candidate")
	}
	if len(b.Selectors.Settings) == 0 || len(b.Selectors.ModelsTab) == 0 {
		return fmt.Errorf("selectors.settings and selectors.models_tab need at least one candidate")
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL (got %q)", field, raw)
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
