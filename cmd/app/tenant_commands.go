package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/braidmgr/braidmgr/cmd/app/commands"
	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/app"
	"github.com/braidmgr/braidmgr/internal/config"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

func getTenantCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-tenant",
			Usage: "Register a tenant and the locator of its store",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true, Usage: "Tenant (organization) ID"},
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Organization name"},
				&cli.StringFlag{
					Name:     "locator",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Database name of the tenant store",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				directory, err := container.Directory()
				if err != nil {
					return err
				}

				return commands.RunCreateTenant(
					ctx,
					directory,
					container.Logger(),
					commands.DefaultIO().Writer,
					&tenantDomain.CreateTenantInput{
						ID:      cmd.String("id"),
						Name:    cmd.String("name"),
						Locator: cmd.String("locator"),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "deactivate-tenant",
			Usage: "Soft-delete a tenant",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true, Usage: "Tenant (organization) ID"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				directory, err := container.Directory()
				if err != nil {
					return err
				}

				return commands.RunDeactivateTenant(
					ctx,
					directory,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
				)
			},
		},
		{
			Name:  "list-tenants",
			Usage: "List active tenants",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				directory, err := container.Directory()
				if err != nil {
					return err
				}

				return commands.RunListTenants(ctx, directory, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
		{
			Name:  "issue-token",
			Usage: "Issue a bearer credential for a user",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Required: true, Usage: "User ID (UUID)"},
				&cli.StringFlag{Name: "tenant", Aliases: []string{"t"}, Required: true, Usage: "Tenant (organization) ID"},
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email"},
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "User display name"},
				&cli.StringFlag{
					Name:    "org-role",
					Aliases: []string{"r"},
					Value:   string(accessDomain.OrgRoleMember),
					Usage:   "Organization role: owner, admin, member or viewer",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				subjectID, err := uuid.Parse(cmd.String("subject"))
				if err != nil {
					return fmt.Errorf("invalid subject: %w", err)
				}

				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				credentials, err := container.CredentialService(ctx)
				if err != nil {
					return err
				}

				return commands.RunIssueToken(
					credentials,
					commands.DefaultIO().Writer,
					&accessDomain.IssueCredentialInput{
						SubjectID: subjectID,
						Email:     cmd.String("email"),
						Name:      cmd.String("name"),
						TenantID:  cmd.String("tenant"),
						OrgRole:   accessDomain.OrgRole(cmd.String("org-role")),
					},
					cmd.String("format"),
				)
			},
		},
	}
}
