package commands

import (
	"context"
	"fmt"

	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store/postgres"
	"github.com/podlift/tenantdb/internal/tenant"
	"github.com/rs/zerolog/log"
)

type RollupCmd struct {
	DatabaseFlags
	SQL         string `arg:"" help:"Statement to run in every active tenant schema."`
	Concurrency int    `help:"Number of tenants queried at once." default:"1"`
}

func (c *RollupCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	pool, shared, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	executor, err := tenant.NewExecutor(pool, &tenant.ExecutorConfig{SharedSchema: shared.String()})
	if err != nil {
		return err
	}
	safe := tenant.NewSafeExecutor(executor)

	orgs := postgres.NewOrganizationStore(pool, shared)
	aggregator := tenant.NewAggregator(orgs, &tenant.AggregatorConfig{Concurrency: c.Concurrency})

	report, err := aggregator.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema tenant.SchemaName) error {
		result, err := safe.Query(ctx, schema, c.SQL)
		if err != nil {
			return err
		}
		for _, row := range result.Rows {
			parts := make([]any, 0, len(row)+1)
			parts = append(parts, org.Slug)
			parts = append(parts, row...)
			fmt.Println(parts...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, failure := range report.Failures {
		log.Warn().Str("org", failure.Slug).Err(failure.Err).Msg("organization skipped")
	}

	log.Info().
		Int("visited", report.Visited).
		Int("failed", len(report.Failures)).
		Msg("rollup complete")

	return report.Err()
}
