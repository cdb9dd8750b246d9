package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/artifacts"
	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/observability"
	"github.com/xkilldash9x/uiprobe/internal/probes/auth"
	"github.com/xkilldash9x/uiprobe/internal/probes/badges"
	"github.com/xkilldash9x/uiprobe/internal/reporting"
)

// ErrUnhealthy is returned when at least one scenario failed or errored.
var ErrUnhealthy = errors.New("one or more scenarios failed")

const shutdownTimeout = 15 * time.Second

// sessionProvider is the part of browser.Manager a run depends on.
type sessionProvider interface {
	schemas.SessionProvider
	Shutdown(ctx context.Context) error
}

var newProvider = func(cfg config.BrowserConfig, logger *zap.Logger) sessionProvider {
	return browser.NewManager(cfg, logger)
}

type suiteFactory func(cfg config.Interface, logger *zap.Logger) harness.Suite

func authSuite(cfg config.Interface, logger *zap.Logger) harness.Suite {
	return auth.NewProbe(cfg.Auth(), cfg.Target(), logger).Suite()
}

func badgesSuite(cfg config.Interface, logger *zap.Logger) harness.Suite {
	return badges.NewProbe(cfg.Badges(), cfg.Auth(), cfg.Artifacts().FullPage, logger).Suite()
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Run the token handling suite (valid, invalid, expired and malformed credentials)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, authSuite)
		},
	}
}

func newBadgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "badges",
		Short: "Run the certification badge suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, badgesSuite)
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every suite and write a single report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, authSuite, badgesSuite)
		},
	}
}

// runSuites executes each suite in order against one browser, writes every
// report, and returns ErrUnhealthy when any scenario failed or errored.
func runSuites(cmd *cobra.Command, factories ...suiteFactory) (err error) {
	ctx := cmd.Context()
	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()
	runID := uuid.NewString()

	store, err := artifacts.NewStore(cfg.Artifacts().Dir, runID, logger)
	if err != nil {
		return err
	}
	reporter, err := reporting.New(strings.ToLower(cfg.Report().Format), cfg.Report().Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reporter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize report: %w", cerr)
		}
	}()

	provider := newProvider(cfg.Browser(), logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := provider.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("Browser shutdown did not complete cleanly.", zap.Error(serr))
		}
	}()

	runnerCfg := cfg.Runner()
	artifactsCfg := cfg.Artifacts()
	runner := harness.NewRunner(provider, logger,
		harness.WithRunID(runID),
		harness.WithConcurrency(runnerCfg.Concurrency),
		harness.WithScenarioTimeout(runnerCfg.ScenarioTimeout),
		harness.WithAbandonGrace(runnerCfg.AbandonGrace),
		harness.WithArtifacts(store, artifactsCfg.ScreenshotOnFailure, artifactsCfg.FullPage),
		harness.WithConsoleTail(cfg.Report().ConsoleTail),
	)

	logger.Info("Run starting.", zap.String("run_id", runID), zap.Int("suites", len(factories)), zap.String("artifacts", store.Dir()))

	var unhealthy int
	for _, factory := range factories {
		suite := factory(cfg, logger)
		report, runErr := runner.Run(ctx, suite)
		if runErr != nil {
			return fmt.Errorf("suite %s: %w", suite.Name, runErr)
		}
		if werr := reporter.Write(report); werr != nil {
			return fmt.Errorf("failed to write report for suite %s: %w", suite.Name, werr)
		}
		if !report.Summary.Healthy() {
			unhealthy += report.Summary.Failed + report.Summary.Errored
		}
		if ctx.Err() != nil {
			return fmt.Errorf("run aborted: %w", ctx.Err())
		}
	}

	if unhealthy > 0 {
		logger.Warn("Run finished with failures.", zap.String("run_id", runID), zap.Int("failed_or_errored", unhealthy))
		return fmt.Errorf("%w: %d scenario(s) failed or errored", ErrUnhealthy, unhealthy)
	}
	logger.Info("Run finished.", zap.String("run_id", runID))
	return nil
}
