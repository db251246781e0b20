package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/config"
	"StockPulse/internal/logger"
)

var version = "dev"

// commandTimeout bounds one-shot market commands.
const commandTimeout = 60 * time.Second

type rootFlags struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var a *app

	root := &cobra.Command{
		Use:           "stockpulse",
		Short:         "Multi-market stock quotes, charts, analysis and news",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultPath, "config file path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level")
	root.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "print results as JSON")

	get := func() *app { return a }
	root.AddCommand(
		newServeCmd(get),
		newQuoteCmd(get, flags),
		newDetailCmd(get, flags),
		newChartCmd(get, flags),
		newAnalyzeCmd(get, flags),
		newNewsCmd(get, flags),
		newSearchCmd(get, flags),
	)
	return root
}

func loadConfig(flags *rootFlags) (*config.Config, arbor.ILogger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Logging.Level, cfg.Logging.File), nil
}
