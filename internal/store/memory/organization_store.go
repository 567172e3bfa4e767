package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
)

// OrganizationStore is an in-memory implementation of
// store.OrganizationStore for development and testing.
type OrganizationStore struct {
	mu         sync.RWMutex
	orgs       map[uuid.UUID]*models.Organization
	orgsBySlug map[string]uuid.UUID
	userOrgs   map[uuid.UUID]uuid.UUID // user ID -> org ID
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs:       make(map[uuid.UUID]*models.Organization),
		orgsBySlug: make(map[string]uuid.UUID),
		userOrgs:   make(map[uuid.UUID]uuid.UUID),
	}
}

// Create creates a new organization record.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.ID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.orgsBySlug[org.Slug]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	s.orgs[org.ID] = s.copyOrg(org)
	s.orgsBySlug[org.Slug] = org.ID

	return nil
}

// GetByID retrieves an organization by ID.
func (s *OrganizationStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	return s.copyOrg(org), nil
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgID, exists := s.orgsBySlug[slug]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	return s.copyOrg(s.orgs[orgID]), nil
}

// GetByUserID resolves a user to their organization.
func (s *OrganizationStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgID, exists := s.userOrgs[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	return s.copyOrg(org), nil
}

// ListActive returns all active organizations ordered by creation time.
func (s *OrganizationStore) ListActive(ctx context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orgs []*models.Organization
	for _, org := range s.orgs {
		if org.Active {
			orgs = append(orgs, s.copyOrg(org))
		}
	}

	// Map iteration order is random; callers expect creation order.
	sort.SliceStable(orgs, func(i, j int) bool {
		return orgs[i].CreatedAt.Before(orgs[j].CreatedAt)
	})

	return orgs, nil
}

// Update updates an organization's mutable fields.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.orgs[org.ID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	if existing.Slug != org.Slug {
		delete(s.orgsBySlug, existing.Slug)
		s.orgsBySlug[org.Slug] = org.ID
	}

	updated := s.copyOrg(org)
	updated.UpdatedAt = time.Now()
	s.orgs[org.ID] = updated

	return nil
}

// Deactivate marks an organization inactive.
func (s *OrganizationStore) Deactivate(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	org.Active = false
	org.UpdatedAt = time.Now()

	return nil
}

// AddUser registers a user → organization mapping. Test and development
// helper; the production mapping lives in the shared-schema users table.
func (s *OrganizationStore) AddUser(userID, orgID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userOrgs[userID] = orgID
}

// copyOrg returns a copy to avoid external modifications.
func (s *OrganizationStore) copyOrg(org *models.Organization) *models.Organization {
	dup := *org
	return &dup
}
