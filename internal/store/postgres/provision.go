package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlift/tenantdb/internal/tenant"
	"github.com/rs/zerolog/log"
)

// CreateTenantSchema creates the schema for a newly provisioned
// organization. Table DDL inside the schema is applied by the
// provisioning pipeline; only the namespace is created here.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema tenant.SchemaName) error {
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema.Quoted()); err != nil {
		return fmt.Errorf("failed to create tenant schema %s: %w", schema, err)
	}

	log.Info().Str("schema", schema.String()).Msg("created tenant schema")
	return nil
}

// DropTenantSchema removes a tenant schema and everything in it. Only
// used by offboarding tooling and tests.
func DropTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema tenant.SchemaName) error {
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema.Quoted()+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop tenant schema %s: %w", schema, err)
	}

	log.Info().Str("schema", schema.String()).Msg("dropped tenant schema")
	return nil
}
