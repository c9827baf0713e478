package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/irfndi/carprice-ai-go/internal/app"
	"github.com/irfndi/carprice-ai-go/internal/config"
	"github.com/irfndi/carprice-ai-go/internal/logging"
)

// cli carries the hooks commands use to reach configuration and the
// component container.
type cli struct {
	loadConfig func() (*config.Config, error)
	open       func(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app.Container, error)
	verbose    bool
}

func defaultCLI() *cli {
	return &cli{loadConfig: config.Load, open: app.New}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "carsignal",
		Short: "Used vehicle buy signals",
		Long: `carsignal runs the buy-signal analysis for a vehicle and maintains the
result cache shared with the API server.

Example usage:
  carsignal analyze --make toyota --model camry --year 2018 --mileage 45000
  carsignal analyze --question "Is now a good time to buy a 2019 Honda CR-V?"
  carsignal cache reset --mode forecast_errors
  carsignal cache seed`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newAnalyzeCmd(c))
	root.AddCommand(newCacheCmd(c))
	return root
}

// container loads configuration and opens the component container. The
// caller closes it.
func (c *cli) container(ctx context.Context) (*app.Container, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	logger := logging.NewLoggerWithOutput(level, cfg.Environment, os.Stderr)

	return c.open(ctx, cfg, logger)
}
