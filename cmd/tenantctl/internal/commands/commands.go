package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlift/tenantdb/internal/logger"
	"github.com/podlift/tenantdb/internal/store/postgres"
	"github.com/podlift/tenantdb/internal/tenant"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Version string
}

func setupLogging(globals *Globals) {
	log.Logger = logger.Setup(globals.Debug)
}

// DatabaseFlags is the connection configuration shared by all commands.
// Credentials come from the environment at process start.
type DatabaseFlags struct {
	DatabaseURL  string `help:"Postgres connection string." env:"TENANTDB_DATABASE_URL" required:""`
	SharedSchema string `help:"Name of the shared schema." env:"TENANTDB_SHARED_SCHEMA" default:"shared"`
}

func (f *DatabaseFlags) connect(ctx context.Context) (*pgxpool.Pool, tenant.SchemaName, error) {
	shared, err := tenant.ParseSchemaName(f.SharedSchema)
	if err != nil {
		return nil, tenant.SchemaName{}, fmt.Errorf("invalid shared schema name: %w", err)
	}

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: f.DatabaseURL})
	if err != nil {
		return nil, tenant.SchemaName{}, err
	}

	return pool, shared, nil
}

// router wires the full tenant routing stack over one pool.
func (f *DatabaseFlags) router(pool *pgxpool.Pool, shared tenant.SchemaName) (*tenant.Router, *tenant.PostgresAuditor, error) {
	executor, err := tenant.NewExecutor(pool, &tenant.ExecutorConfig{SharedSchema: shared.String()})
	if err != nil {
		return nil, nil, err
	}

	auditor := tenant.NewPostgresAuditor(pool, shared)
	orgs := postgres.NewOrganizationStore(pool, shared)

	return tenant.NewRouter(orgs, executor, auditor, nil), auditor, nil
}
