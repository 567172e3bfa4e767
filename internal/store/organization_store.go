package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrUserNotFound              = errors.New("user not found")
)

// OrganizationStore defines the interface for the organization registry
// held in the shared schema. It is the lookup side of the collaborator
// contract consumed by the tenant resolver; mutation is owned by the
// provisioning path.
type OrganizationStore interface {
	// Create creates a new organization record.
	// Returns ErrOrganizationAlreadyExists if the ID or slug is taken.
	Create(ctx context.Context, org *models.Organization) error

	// GetByID retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// GetBySlug retrieves an organization by slug.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// GetByUserID resolves a user to the organization they belong to via
	// the shared-schema user mapping.
	// Returns ErrUserNotFound if the user doesn't exist, or
	// ErrOrganizationNotFound if their organization record is gone.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error)

	// ListActive returns all active organizations, ordered by creation
	// time. Used by the cross-tenant aggregator.
	ListActive(ctx context.Context) ([]*models.Organization, error)

	// Update updates an organization's mutable fields (slug, name).
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Update(ctx context.Context, org *models.Organization) error

	// Deactivate marks an organization inactive. Its schema is kept; the
	// resolver will refuse to resolve it from then on.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Deactivate(ctx context.Context, orgID uuid.UUID) error
}
