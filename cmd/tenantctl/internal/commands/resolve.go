package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/tenant"
)

// operatorCaller is the synthetic identity CLI commands run as. It holds
// the super-admin role and belongs to no organization, so every access
// lands in the audit trail.
func operatorCaller() models.Caller {
	return models.Caller{
		UserID: uuid.Nil,
		OrgID:  uuid.Nil,
		Role:   models.RoleSuperAdmin,
	}
}

// parseRef turns a command-line tenant reference into a TenantRef: a
// UUID is treated as an organization ID, anything else as a slug.
func parseRef(ref string) tenant.TenantRef {
	if id, err := uuid.Parse(ref); err == nil {
		return tenant.OrgRef(id)
	}
	return tenant.SlugRef(ref)
}

type ResolveCmd struct {
	DatabaseFlags
	Ref string `arg:"" help:"Organization ID or slug."`
}

func (c *ResolveCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	pool, shared, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	router, auditor, err := c.router(pool, shared)
	if err != nil {
		return err
	}
	defer auditor.Stop()

	res, err := router.Resolve(ctx, operatorCaller(), parseRef(c.Ref))
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", res.Org.ID, res.Schema)
	return nil
}
