// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// newRootCmd builds the command tree. Every call returns an independent tree
// with its own viper instance.
func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "uiprobe",
		Short:         "uiprobe runs browser acceptance suites against a web frontend.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "uiprobe"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			applyFlagOverrides(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "uiprobe"})
				return fmt.Errorf("invalid flag value: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting uiprobe", zap.String("version", Version))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, config.Interface(cfg)))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.String("base-url", "", "base URL of the application under test (overrides target.base_url and badges.base_url)")
	flags.StringP("output", "o", "", "report destination; empty or \"stdout\" writes to standard output")
	flags.StringP("format", "f", "text", "report format: json or text")
	flags.Int("concurrency", 4, "maximum number of browser contexts for isolated suites")
	flags.Duration("scenario-timeout", 0, "upper bound for a single scenario")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newAuthCmd(), newBadgesCmd(), newAllCmd(), newVersionCmd())
	return rootCmd
}

// Execute runs the CLI and exits non-zero on any error, including a run
// with failed or errored scenarios.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		if !errors.Is(err, ErrUnhealthy) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// initializeConfig reads the config file and environment. Only the log level
// flag is bound through viper; the remaining flags are applied afterwards so
// that --base-url can feed two sections.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("UIPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("logger.level", f); err != nil {
			return err
		}
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags into cfg.
func applyFlagOverrides(flags *pflag.FlagSet, cfg config.Interface) {
	if flags.Changed("base-url") {
		u, _ := flags.GetString("base-url")
		cfg.SetTargetBaseURL(u)
		cfg.SetBadgesBaseURL(u)
	} else if cfg.Badges().BaseURL == "" {
		cfg.SetBadgesBaseURL(cfg.Target().BaseURL)
	}
	if flags.Changed("output") {
		out, _ := flags.GetString("output")
		cfg.SetReportOutput(out)
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.SetReportFormat(strings.ToLower(format))
	}
	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		cfg.SetRunnerConcurrency(n)
	}
	if flags.Changed("scenario-timeout") {
		d, _ := flags.GetDuration("scenario-timeout")
		cfg.SetRunnerScenarioTimeout(d)
	}
	if flags.Changed("headless") {
		h, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(h)
	}
}

func configFrom(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
