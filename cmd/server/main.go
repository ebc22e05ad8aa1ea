// Command placement-server runs the campus placement API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/config"
)

const programName = "placement-server"

var (
	version   = "dev"
	buildDate = "unknown"
)

var globalFlags = struct {
	debug      bool
	configFile string
}{}

// commonRun builds the logger and sizes GOMAXPROCS to the container quota.
func commonRun(cfg *config.Config) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if cfg.Debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
		log.Warn("maxprocs", zap.Error(err))
	}
	log.Info("starting",
		zap.String("program", programName),
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)
	return log, nil
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("no config found in context")
	}
	return cfg, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", programName, version, buildDate)
		},
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          programName,
		Short:        "Campus placement API server",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging and gRPC reflection")
	root.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "path to YAML config file")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(globalFlags.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			cfg.Debug = true
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	root.AddCommand(serveCommand())
	root.AddCommand(migrateCommand())
	root.AddCommand(createUserCommand())
	root.AddCommand(versionCommand())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
