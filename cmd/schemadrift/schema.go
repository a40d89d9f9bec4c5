package main

import (
	"context"
	"fmt"

	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/schema"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func (a *app) schemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print the schema model extracted from the database types",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: tree or yaml",
				Value:   schemadrift.FormatTree,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default: nearest .schemadrift.yaml)",
				Sources: cli.EnvVars("SCHEMADRIFT_CONFIG"),
			},
		},
		Action: a.runSchema,
	}
}

func (a *app) runSchema(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		path = cfg.SchemaPath()
	}

	model, err := schema.Load(path)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}

	a.logger.Debug("Loaded schema", zap.String("path", path), zap.Strings("schemas", model.SchemaNames()))

	switch format := cmd.String("format"); format {
	case schemadrift.FormatTree:
		return schema.RenderTree(cmd.Root().Writer, model)
	case schemadrift.FormatYAML:
		return schema.WriteSnapshot(cmd.Root().Writer, model)
	default:
		return fmt.Errorf("%w: %q (want tree or yaml)", schemadrift.ErrUnknownFormat, format)
	}
}
