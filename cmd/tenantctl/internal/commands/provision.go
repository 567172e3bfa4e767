package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store/postgres"
	"github.com/podlift/tenantdb/internal/tenant"
	"github.com/rs/zerolog/log"
)

type ProvisionCmd struct {
	DatabaseFlags
	Slug string `help:"Organization slug; the schema name derives from it." required:""`
	Name string `help:"Display name. Defaults to the slug."`
}

func (c *ProvisionCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	// Validate the slug before touching the database at all.
	schema, err := tenant.SchemaNameForSlug(c.Slug)
	if err != nil {
		return err
	}

	pool, shared, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	name := c.Name
	if name == "" {
		name = c.Slug
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate organization ID: %w", err)
	}

	now := time.Now()
	org := &models.Organization{
		ID:        orgID,
		Slug:      c.Slug,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	orgs := postgres.NewOrganizationStore(pool, shared)
	if err := orgs.Create(ctx, org); err != nil {
		return err
	}

	if err := postgres.CreateTenantSchema(ctx, pool, schema); err != nil {
		return err
	}

	log.Info().
		Str("org_id", org.ID.String()).
		Str("slug", org.Slug).
		Str("schema", schema.String()).
		Msg("provisioned organization")

	fmt.Println(org.ID)
	return nil
}
