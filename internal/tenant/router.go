package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
)

// Router is the collaborator-facing surface of the tenant-schema query
// subsystem: resolve, execute, safe execute, and the cross-tenant loop.
// Route handlers depend on this type only.
type Router struct {
	resolver   *Resolver
	executor   Querier
	safe       *SafeExecutor
	aggregator *Aggregator
}

// NewRouter wires the resolver, executor, and aggregator over one shared
// pool and organization registry.
func NewRouter(orgs store.OrganizationStore, executor Querier, auditor Auditor, cfg *ResolverConfig) *Router {
	resolver := NewResolver(orgs, auditor, cfg)
	return &Router{
		resolver:   resolver,
		executor:   executor,
		safe:       NewSafeExecutor(executor),
		aggregator: NewAggregator(orgs, nil),
	}
}

// Resolver exposes the underlying resolver, mainly for cache
// invalidation hooks.
func (r *Router) Resolver() *Resolver {
	return r.resolver
}

// Resolve maps a tenant reference to its schema name on the caller's
// behalf. See Resolver.Resolve.
func (r *Router) Resolve(ctx context.Context, caller models.Caller, ref TenantRef) (*Resolution, error) {
	return r.resolver.Resolve(ctx, caller, ref)
}

// Query resolves the tenant and runs the statement under its schema.
func (r *Router) Query(ctx context.Context, caller models.Caller, ref TenantRef, sql string, args ...any) (*Result, error) {
	res, err := r.resolver.ResolveForOperation(ctx, caller, ref, sqlVerb(sql))
	if err != nil {
		return nil, err
	}
	return r.executor.Query(ctx, res.Schema, sql, args...)
}

// Exec resolves the tenant and runs the statement under its schema,
// returning rows affected.
func (r *Router) Exec(ctx context.Context, caller models.Caller, ref TenantRef, sql string, args ...any) (int64, error) {
	res, err := r.resolver.ResolveForOperation(ctx, caller, ref, sqlVerb(sql))
	if err != nil {
		return 0, err
	}
	return r.executor.Exec(ctx, res.Schema, sql, args...)
}

// SafeQuery is Query through the degrading wrapper: execution failures
// come back as an empty result plus the error. Authorization and
// resolution failures stay hard.
func (r *Router) SafeQuery(ctx context.Context, caller models.Caller, ref TenantRef, sql string, args ...any) (*Result, error) {
	res, err := r.resolver.ResolveForOperation(ctx, caller, ref, sqlVerb(sql))
	if err != nil {
		if IsHardFailure(err) {
			return nil, err
		}
		return &Result{}, err
	}
	return r.safe.Query(ctx, res.Schema, sql, args...)
}

// ForEachOrganization runs a privileged rollup across all active
// organizations. The caller is authorized once, here, before the loop;
// anything short of super-admin is refused outright.
func (r *Router) ForEachOrganization(ctx context.Context, caller models.Caller, visit VisitFunc) (*AggregateReport, error) {
	if !caller.IsSuperAdmin() {
		return nil, fmt.Errorf("%w: cross-tenant aggregation requires the super-admin role", ErrAuthorization)
	}
	return r.aggregator.ForEachOrganization(ctx, visit)
}

// sqlVerb extracts the leading SQL keyword for audit records.
func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
