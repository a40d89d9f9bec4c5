package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/analysis"
	"github.com/rlch/schemadrift/report"
	"github.com/rlch/schemadrift/scanner"
	"github.com/rlch/schemadrift/schema"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func (a *app) scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan source files for queries that disagree with the database types",
		ArgsUsage: "[root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "schema",
				Aliases: []string{"s"},
				Usage:   "generated database.types.ts or a YAML snapshot (default " + schemadrift.DefaultSchemaPath + ")",
				Sources: cli.EnvVars("SCHEMADRIFT_SCHEMA"),
			},
			&cli.StringSliceFlag{
				Name:    "ext",
				Usage:   "file extensions to scan (default ts, tsx)",
				Sources: cli.EnvVars("SCHEMADRIFT_EXT"),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "report format: text, json, markdown, html",
				Sources: cli.EnvVars("SCHEMADRIFT_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the report to a file instead of stdout",
				Sources: cli.EnvVars("SCHEMADRIFT_OUTPUT"),
			},
			&cli.BoolFlag{
				Name:    "strict",
				Usage:   "report missing RPC functions as critical",
				Sources: cli.EnvVars("SCHEMADRIFT_STRICT"),
			},
			&cli.BoolFlag{
				Name:    "require-views",
				Usage:   "report queries that hit a base table with no view",
				Sources: cli.EnvVars("SCHEMADRIFT_REQUIRE_VIEWS"),
			},
			&cli.StringFlag{
				Name:    "fail-on",
				Usage:   "exit non-zero at or above this severity: critical, high, medium, low, none",
				Sources: cli.EnvVars("SCHEMADRIFT_FAIL_ON"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "files scanned in parallel (default GOMAXPROCS)",
				Sources: cli.EnvVars("SCHEMADRIFT_WORKERS"),
			},
			&cli.StringSliceFlag{
				Name:  "ignore",
				Usage: "drop mismatches matching an expression, e.g. 'type == \"property_possibly_not_found\"'",
			},
			&cli.BoolFlag{
				Name:  "no-suggestions",
				Usage: "skip did-you-mean suggestions",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default: nearest .schemadrift.yaml)",
				Sources: cli.EnvVars("SCHEMADRIFT_CONFIG"),
			},
		},
		Action: a.runScan,
	}
}

func (a *app) runScan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := applyFlags(cfg, cmd); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	root := cfg.RootPath()
	if cmd.Args().Len() > 0 {
		root = cmd.Args().First()
	}

	schemaPath := cfg.SchemaPath()

	model, err := schema.Load(schemaPath)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}

	stats := model.Stats()
	a.logger.Debug("Loaded schema",
		zap.String("path", schemaPath),
		zap.Int("schemas", stats.Schemas),
		zap.Int("tables", stats.Tables),
		zap.Int("views", stats.Views),
		zap.Int("functions", stats.Functions))

	if stats.Tables+stats.Views+stats.Functions == 0 {
		a.logger.Warn("Schema declares no relations or functions", zap.String("path", schemaPath))
	}

	sc := scanner.New(
		scanner.WithExtensions(cfg.Extensions...),
		scanner.WithSkipDirs(cfg.SkipDirs...),
		scanner.WithReceivers(cfg.Receivers...),
		scanner.WithWorkers(cfg.Workers),
		scanner.WithLogger(a.logger),
	)

	res, err := sc.Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	a.logger.Debug("Scanned sources",
		zap.String("root", root),
		zap.Int("files", len(res.Files)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("events", len(res.Events)))

	detector, err := analysis.NewDetector(model,
		analysis.WithStrict(cfg.Strict),
		analysis.WithRequireViews(cfg.RequireViews),
		analysis.WithSuggestions(!cmd.Bool("no-suggestions")),
		analysis.WithIgnore(cfg.Ignore...),
		analysis.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	rep := report.Aggregate(detector.Detect(res.Events))

	if err := writeReport(cmd.Root().Writer, cfg, rep, report.NewRun(schemaPath, model, res)); err != nil {
		return err
	}

	code, err := rep.ExitCode(cfg.FailOn)
	if err != nil {
		return err
	}

	if code != 0 {
		worst, _ := rep.MaxSeverity()

		return fmt.Errorf("%w: %d total, worst %s", schemadrift.ErrMismatchesFound, rep.Summary.Total, worst)
	}

	return nil
}

// loadConfig reads --config, or the nearest config above the working
// directory, falling back to defaults.
func loadConfig(cmd *cli.Command) (*schemadrift.Config, error) {
	if path := cmd.String("config"); path != "" {
		return schemadrift.LoadConfigFile(path)
	}

	return schemadrift.LoadConfigOrDefault(".")
}

// applyFlags overrides config values with explicitly set flags. Flag paths
// are relative to the working directory.
func applyFlags(cfg *schemadrift.Config, cmd *cli.Command) error {
	if cmd.IsSet("schema") {
		path, err := filepath.Abs(cmd.String("schema"))
		if err != nil {
			return err
		}

		cfg.Schema = path
	}

	if cmd.IsSet("output") {
		path, err := filepath.Abs(cmd.String("output"))
		if err != nil {
			return err
		}

		cfg.Output = path
	}

	if cmd.IsSet("ext") {
		cfg.Extensions = cmd.StringSlice("ext")
	}

	if cmd.IsSet("format") {
		cfg.Format = cmd.String("format")
	}

	if cmd.IsSet("strict") {
		cfg.Strict = cmd.Bool("strict")
	}

	if cmd.IsSet("require-views") {
		cfg.RequireViews = cmd.Bool("require-views")
	}

	if cmd.IsSet("fail-on") {
		cfg.FailOn = cmd.String("fail-on")
	}

	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}

	cfg.Ignore = append(cfg.Ignore, cmd.StringSlice("ignore")...)

	return nil
}

// writeReport formats rep to the configured output file, or to stdout.
func writeReport(stdout io.Writer, cfg *schemadrift.Config, rep *report.Report, run report.Run) (err error) {
	w := stdout
	color := report.IsTerminal(stdout)

	if path := cfg.OutputPath(); path != "" {
		f, createErr := os.Create(path) //nolint:gosec // G304: output path from user input is expected
		if createErr != nil {
			return fmt.Errorf("creating report: %w", createErr)
		}

		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		w = f
		color = false
	}

	formatter, err := report.NewFormatter(cfg.Format, w, report.Options{Color: color, Run: run})
	if err != nil {
		return err
	}

	return formatter.Format(rep)
}
