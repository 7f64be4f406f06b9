package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/braidmgr/braidmgr/cmd/app/commands"
	"github.com/braidmgr/braidmgr/internal/app"
	"github.com/braidmgr/braidmgr/internal/config"
	"github.com/braidmgr/braidmgr/internal/database"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run central directory migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "migrate-tenant",
			Usage: "Run tenant store migrations for one tenant or every active tenant",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "tenant",
					Aliases: []string{"t"},
					Usage:   "Tenant ID (omit to migrate every active tenant)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				directory, err := container.Directory()
				if err != nil {
					return err
				}

				connector := database.NewTemplateConnector(database.PoolConfig{
					Driver:      cfg.TenantDBDriver,
					DSNTemplate: cfg.TenantDBDSNTemplate,
				})

				return commands.RunTenantMigrations(
					ctx,
					directory,
					connector,
					cfg.TenantDBDriver,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("tenant"),
				)
			},
		},
		{
			Name:  "check-pools",
			Usage: "Open and health-check the store pool of every active tenant",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				directory, err := container.Directory()
				if err != nil {
					return err
				}

				registry, err := container.PoolRegistry()
				if err != nil {
					return err
				}

				return commands.RunCheckPools(ctx, directory, registry, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
	}
}
