package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/podlift/tenantdb/cmd/tenantctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug logging."`
		Version kong.VersionFlag

		Migrate   commands.MigrateCmd   `cmd:"" help:"Apply shared-schema registry migrations."`
		Provision commands.ProvisionCmd `cmd:"" help:"Create an organization and its tenant schema."`
		Resolve   commands.ResolveCmd   `cmd:"" help:"Resolve a tenant reference to its schema name."`
		Exec      commands.ExecCmd      `cmd:"" help:"Run a parameterized statement against one tenant schema."`
		Rollup    commands.RollupCmd    `cmd:"" help:"Run a statement across every active tenant schema."`
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
