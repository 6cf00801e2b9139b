// Package cli wires the hlpilot commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal"
	"github.com/vadiminshakov/hlpilot/internal/setup"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "hlpilot",
		Short: "LLM-driven perpetual futures trading on Hyperliquid",
		Long: `hlpilot builds a market context from indicators, sentiment and news,
asks a language model for a decision and executes it with protective orders.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newRunOnceCmd(flags))
	rootCmd.AddCommand(newRunLoopCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags))
	rootCmd.AddCommand(newCloseAllCmd(flags))
	rootCmd.AddCommand(newSetupCmd())

	return rootCmd
}

func newRunOnceCmd(flags *globalFlags) *cobra.Command {
	var auto bool
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single decision cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(flags, func(ctx context.Context, bot *internal.TradingBot, _ config.Config) error {
				report, err := bot.RunOnce(ctx, auto)
				if err != nil {
					return err
				}
				fmt.Println(RenderCycle(report))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "Execute without asking for confirmation")
	return cmd
}

func newRunLoopCmd(flags *globalFlags) *cobra.Command {
	var (
		auto     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run-loop",
		Short: "Run decision cycles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(flags, func(ctx context.Context, bot *internal.TradingBot, conf config.Config) error {
				every := conf.Loop.Interval
				if interval > 0 {
					every = interval
				}
				err := bot.Run(ctx, every, auto)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "Execute without asking for confirmation")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between cycles (defaults to loop.interval)")
	return cmd
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balance, positions and trade statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(flags, func(ctx context.Context, bot *internal.TradingBot, _ config.Config) error {
				report, err := bot.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Println(RenderStatus(report))
				return nil
			})
		},
	}
}

func newCloseAllCmd(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "close-all",
		Short: "Close every open position",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirmCloseAll()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("aborted")
					return nil
				}
			}
			return withBot(flags, func(ctx context.Context, bot *internal.TradingBot, _ config.Config) error {
				results, err := bot.CloseAll(ctx)
				if err != nil {
					return err
				}
				fmt.Println(RenderCloseAll(results))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSetupCmd() *cobra.Command {
	var out, envPath string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.RunTUI(out, envPath)
		},
	}
	cmd.Flags().StringVar(&out, "out", "config.gen.yaml", "Where to write the configuration")
	cmd.Flags().StringVar(&envPath, "env", ".env", "Where to write secrets")
	return cmd
}

// withBot loads config, builds the bot and runs fn under a signal-aware context.
func withBot(flags *globalFlags, fn func(ctx context.Context, bot *internal.TradingBot, conf config.Config) error) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(conf.Log, flags.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := internal.NewTradingBot(ctx, conf, logger, NewConfirmer())
	if err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Warn("failed to close bot", zap.Error(err))
		}
	}()

	return fn(ctx, bot, conf)
}

func newLogger(conf config.LogConfig, override string) (*zap.Logger, error) {
	levelName := conf.Level
	if override != "" {
		levelName = override
	}
	level := zapcore.InfoLevel
	if levelName != "" {
		if err := level.Set(levelName); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", levelName)
		}
	}

	zc := zap.NewProductionConfig()
	if conf.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
