// Command schemadrift checks Supabase query code against generated database types.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rlch/schemadrift"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes.
const (
	exitMismatches = 1
	exitError      = 2
)

type app struct {
	logger *zap.Logger
}

func main() {
	a := &app{logger: zap.NewNop()}

	if err := a.command().Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, schemadrift.ErrMismatchesFound) {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(exitMismatches)
		}

		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "schemadrift",
		Usage: "Detect drift between Supabase database types and the code that queries them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("SCHEMADRIFT_DEBUG"),
			},
		},
		Before: a.setup,
		After:  a.teardown,
		Commands: []*cli.Command{
			a.scanCommand(),
			a.schemaCommand(),
		},
	}
}

// setup builds the logger. Logs go to stderr so reports can be piped.
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

	if cmd.Bool("debug") {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return ctx, fmt.Errorf("building logger: %w", err)
	}

	a.logger = logger

	return ctx, nil
}

func (a *app) teardown(_ context.Context, _ *cli.Command) error {
	_ = a.logger.Sync()

	return nil
}
