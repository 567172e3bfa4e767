package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
	"github.com/podlift/tenantdb/internal/telemetry"
	"github.com/rs/zerolog/log"
)

type refKind int

const (
	refOrgID refKind = iota
	refSlug
	refUserID
)

// TenantRef is an opaque tenant reference: an organization ID, an
// organization slug, or a user ID requiring one indirection through the
// shared-schema user mapping.
type TenantRef struct {
	kind   refKind
	orgID  uuid.UUID
	slug   string
	userID uuid.UUID
}

// OrgRef references a tenant by organization ID.
func OrgRef(orgID uuid.UUID) TenantRef {
	return TenantRef{kind: refOrgID, orgID: orgID}
}

// SlugRef references a tenant by organization slug.
func SlugRef(slug string) TenantRef {
	return TenantRef{kind: refSlug, slug: slug}
}

// UserRef references a tenant by one of its users.
func UserRef(userID uuid.UUID) TenantRef {
	return TenantRef{kind: refUserID, userID: userID}
}

// String returns a stable cache key for the reference.
func (r TenantRef) String() string {
	switch r.kind {
	case refSlug:
		return "slug:" + r.slug
	case refUserID:
		return "user:" + r.userID.String()
	default:
		return "org:" + r.orgID.String()
	}
}

// Resolution is a successful tenant resolution: the organization record
// and its validated schema name.
type Resolution struct {
	Org    *models.Organization
	Schema SchemaName
}

type cachedOrg struct {
	org       *models.Organization
	expiresAt time.Time
}

// ResolverConfig holds configuration for the schema identifier resolver.
type ResolverConfig struct {
	// CacheTTL bounds how long an organization lookup is reused. Short on
	// purpose: it absorbs repeated resolution within one request burst,
	// while mutation events invalidate eagerly. Default: 30s
	CacheTTL time.Duration
}

func (c *ResolverConfig) applyDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Second
	}
}

// Resolver maps tenant references to validated schema names, enforcing
// caller authorization before any schema-name computation. Super-admin
// resolutions of a foreign organization are reported to the auditor.
type Resolver struct {
	orgs    store.OrganizationStore
	auditor Auditor
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]*cachedOrg
}

// NewResolver creates a resolver backed by the shared-schema
// organization registry. A nil auditor disables audit records.
func NewResolver(orgs store.OrganizationStore, auditor Auditor, cfg *ResolverConfig) *Resolver {
	if cfg == nil {
		cfg = &ResolverConfig{}
	}
	cfg.applyDefaults()

	if auditor == nil {
		auditor = NoopAuditor{}
	}

	return &Resolver{
		orgs:    orgs,
		auditor: auditor,
		ttl:     cfg.CacheTTL,
		cache:   make(map[string]*cachedOrg),
	}
}

// Resolve maps a tenant reference to its schema name on behalf of the
// caller. Authorization comes first: callers without the super-admin
// role are pinned to their own organization and receive ErrAuthorization
// for any other reference, whether or not the target exists. Unknown and
// inactive organizations resolve to ErrNotFound, never to a default
// schema.
func (r *Resolver) Resolve(ctx context.Context, caller models.Caller, ref TenantRef) (*Resolution, error) {
	return r.resolve(ctx, caller, ref, "resolve")
}

// ResolveForOperation is Resolve with the operation name recorded in the
// audit trail when the resolution crosses a tenant boundary.
func (r *Resolver) ResolveForOperation(ctx context.Context, caller models.Caller, ref TenantRef, operation string) (*Resolution, error) {
	return r.resolve(ctx, caller, ref, operation)
}

func (r *Resolver) resolve(ctx context.Context, caller models.Caller, ref TenantRef, operation string) (*Resolution, error) {
	res, err := r.doResolve(ctx, caller, ref)

	m := telemetry.Get()
	switch {
	case err == nil:
		m.ResolutionsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrAuthorization):
		m.ResolutionsTotal.WithLabelValues("authorization").Inc()
	case errors.Is(err, ErrNotFound):
		m.ResolutionsTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, ErrResolution):
		m.ResolutionsTotal.WithLabelValues("resolution").Inc()
	default:
		m.ResolutionsTotal.WithLabelValues("error").Inc()
	}

	if err != nil {
		return nil, err
	}

	if caller.IsSuperAdmin() && res.Org.ID != caller.OrgID {
		r.auditor.RecordCrossTenantAccess(AuditEntry{
			CallerID:   caller.UserID,
			CallerOrg:  caller.OrgID,
			TargetOrg:  res.Org.ID,
			Operation:  operation,
			OccurredAt: time.Now(),
		})
	}

	return res, nil
}

func (r *Resolver) doResolve(ctx context.Context, caller models.Caller, ref TenantRef) (*Resolution, error) {
	lookupRef := ref
	if !caller.IsSuperAdmin() {
		// Refs carrying a foreign identity are rejected before any
		// registry lookup; the caller learns nothing about the target.
		switch ref.kind {
		case refOrgID:
			if ref.orgID != caller.OrgID {
				return nil, fmt.Errorf("%w: caller org %s requested org %s", ErrAuthorization, caller.OrgID, ref.orgID)
			}
		case refUserID:
			if ref.userID != caller.UserID {
				return nil, fmt.Errorf("%w: caller may only resolve their own user reference", ErrAuthorization)
			}
		}
		// Pinned: whatever the ref says, only the caller's own
		// organization is ever looked up.
		lookupRef = OrgRef(caller.OrgID)
	}

	org, err := r.fetchCached(ctx, lookupRef)
	if err != nil {
		return nil, err
	}

	if !caller.IsSuperAdmin() {
		// Deferred slug check, against the caller's own record only. A
		// mismatch is an authorization failure regardless of whether the
		// requested slug exists anywhere.
		if ref.kind == refSlug && ref.slug != org.Slug {
			return nil, fmt.Errorf("%w: slug does not denote the caller's organization", ErrAuthorization)
		}
		if org.ID != caller.OrgID {
			return nil, fmt.Errorf("%w: resolved organization is not the caller's", ErrAuthorization)
		}
	}

	if !org.Active {
		return nil, fmt.Errorf("%w: organization %s is inactive", ErrNotFound, org.Slug)
	}

	schema, err := SchemaNameForSlug(org.Slug)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("org", org.Slug).
		Str("schema", schema.String()).
		Msg("resolved tenant schema")

	return &Resolution{Org: org, Schema: schema}, nil
}

// fetchCached looks up an organization record, reusing a recent result
// within the TTL. Only found records are cached; misses always hit the
// registry.
func (r *Resolver) fetchCached(ctx context.Context, ref TenantRef) (*models.Organization, error) {
	key := ref.String()
	m := telemetry.Get()

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()

	if ok && time.Now().Before(cached.expiresAt) {
		m.ResolverCacheHits.Inc()
		return cached.org, nil
	}
	m.ResolverCacheMiss.Inc()

	var (
		org *models.Organization
		err error
	)
	switch ref.kind {
	case refOrgID:
		org, err = r.orgs.GetByID(ctx, ref.orgID)
	case refSlug:
		org, err = r.orgs.GetBySlug(ctx, ref.slug)
	case refUserID:
		org, err = r.orgs.GetByUserID(ctx, ref.userID)
	}

	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) || errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("organization lookup failed: %w", err)
	}

	r.mu.Lock()
	r.cache[key] = &cachedOrg{org: org, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return org, nil
}

// Invalidate drops every cached lookup for the organization. The
// collaborator owning organization mutation calls this on rename or
// deactivation, ahead of the TTL.
func (r *Resolver) Invalidate(orgID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, cached := range r.cache {
		if cached.org.ID == orgID {
			delete(r.cache, key)
		}
	}
}

// InvalidateAll clears the lookup cache.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*cachedOrg)
}
