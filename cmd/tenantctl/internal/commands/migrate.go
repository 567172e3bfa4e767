package commands

import (
	"context"

	"github.com/podlift/tenantdb/internal/store/postgres"
	"github.com/rs/zerolog/log"
)

type MigrateCmd struct {
	DatabaseFlags
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	pool, shared, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, shared); err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Msg("registry migrations applied")
	return nil
}
