package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steinarvk/recquery/lib/config"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/logging"
	"github.com/steinarvk/recquery/lib/version"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// loadConfig reads --config, or the default location when it is unset.
func (g *globalFlags) loadConfig(ctx context.Context) (*config.Config, string, error) {
	if g.configPath != "" {
		cfg, err := config.Load(ctx, g.configPath)
		return cfg, g.configPath, err
	}
	return config.LoadDefault(ctx)
}

// setup loads the config and installs a logger at the configured level.
func (g *globalFlags) setup(cmd *cobra.Command) (*config.Config, error) {
	ctx := cmd.Context()

	cfg, path, err := g.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}

	logger, err := logging.New(level)
	if err != nil {
		return nil, dexerror.New(
			dexerror.WithKind(dexerror.KindInvalidConfig),
			dexerror.WithPublicMessage(err.Error()),
		)
	}
	zap.ReplaceGlobals(logger)

	ctx = logging.NewContextWithLogger(ctx, logger, level == "debug")
	cmd.SetContext(ctx)

	if info, err := version.GetInfo(); err == nil {
		logger.Debug("starting", info.LogFields()...)
	}
	logger.Debug("loaded config", zap.String("path", path), zap.Strings("namespaces", cfg.NamespaceNames()))

	return cfg, nil
}

func mkVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := version.GetInfo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:      %s\n", info.String())
			if info.GoVersion != "" {
				fmt.Fprintf(out, "Go version:   %s\n", info.GoVersion)
			}
			if info.CommitHash != "" {
				dirtyFlag := ""
				if info.DirtyCommit {
					dirtyFlag = " (dirty)"
				}
				fmt.Fprintf(out, "Commit:       %s%s\n", info.CommitHash, dirtyFlag)
				fmt.Fprintf(out, "Commit time:  %s\n", info.CommitTime)
			}
			if info.BinaryHash != "" {
				fmt.Fprintf(out, "Binary hash:  %s\n", info.BinaryHash)
			}

			return nil
		},
	}
}

func mkConfigCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the config file location and effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn := g.configPath
			if fn == "" {
				defaultPath, err := config.DefaultPath()
				if err != nil {
					return err
				}
				fn = defaultPath
			}

			_, err := os.Stat(fn)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			status := "exists"
			if err != nil {
				status = "missing"
			}

			cfg, err := g.setup(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# [%s]\t%s\n", status, fn)

			marshalled, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(marshalled)
			return err
		},
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "recq",
		Short:         "Query JSONL records in memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file, or inline YAML starting with '{' (default $"+config.EnvConfigPath+" or ~/.config/recquery/recquery.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		mkQueryCommand(g),
		mkWatchCommand(g),
		mkInspectCommand(g),
		mkConfigCommand(g),
		mkVersionCommand(),
	)

	return rootCmd
}

func exitCode(err error) int {
	var de dexerror.DexError
	if errors.As(err, &de) {
		return de.ExitCode()
	}
	return 1
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New("info")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	ctx = logging.NewContextWithLogger(ctx, logger, false)

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}
