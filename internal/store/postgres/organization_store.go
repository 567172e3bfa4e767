package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
	"github.com/podlift/tenantdb/internal/tenant"
	"github.com/rs/zerolog/log"
)

// OrganizationStore implements store.OrganizationStore against the
// shared schema. Every statement addresses the shared schema by its
// validated, qualified name; registry reads never depend on the session
// search path.
type OrganizationStore struct {
	pool       *pgxpool.Pool
	orgsTable  string
	usersTable string
}

// NewOrganizationStore creates a registry store over the shared pool.
// The shared schema name has already passed allow-list validation.
func NewOrganizationStore(pool *pgxpool.Pool, shared tenant.SchemaName) *OrganizationStore {
	return &OrganizationStore{
		pool:       pool,
		orgsTable:  shared.Quoted() + ".organizations",
		usersTable: shared.Quoted() + ".users",
	}
}

const orgColumns = "org_id, slug, name, active, created_at, updated_at"

// Create creates a new organization record.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO ` + s.orgsTable + ` (` + orgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		org.ID,
		org.Slug,
		org.Name,
		org.Active,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return mapRegistryError(err)
	}

	log.Debug().
		Str("org_id", org.ID.String()).
		Str("slug", org.Slug).
		Msg("created organization")

	return nil
}

// GetByID retrieves an organization by ID.
func (s *OrganizationStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM ` + s.orgsTable + ` WHERE org_id = $1`
	return s.getOne(ctx, query, orgID)
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM ` + s.orgsTable + ` WHERE slug = $1`
	return s.getOne(ctx, query, slug)
}

// GetByUserID resolves a user to their organization through the
// shared-schema user mapping.
func (s *OrganizationStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.usersTable+` WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	if !exists {
		return nil, store.ErrUserNotFound
	}

	query := `
		SELECT ` + qualifiedOrgColumns("o") + `
		FROM ` + s.orgsTable + ` o
		JOIN ` + s.usersTable + ` u ON u.org_id = o.org_id
		WHERE u.user_id = $1
	`
	return s.getOne(ctx, query, userID)
}

// ListActive returns all active organizations ordered by creation time.
func (s *OrganizationStore) ListActive(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM ` + s.orgsTable + `
		WHERE active
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, mapRegistryError(err)
	}

	return orgs, nil
}

// Update updates an organization's slug and name.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE ` + s.orgsTable + ` SET
			slug = $2,
			name = $3,
			updated_at = $4
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query, org.ID, org.Slug, org.Name, org.UpdatedAt)
	if err != nil {
		return mapRegistryError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Debug().
		Str("org_id", org.ID.String()).
		Str("slug", org.Slug).
		Msg("updated organization")

	return nil
}

// Deactivate marks an organization inactive. The schema stays in place;
// the resolver stops resolving it.
func (s *OrganizationStore) Deactivate(ctx context.Context, orgID uuid.UUID) error {
	query := `
		UPDATE ` + s.orgsTable + ` SET
			active = false,
			updated_at = $2
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query, orgID, time.Now())
	if err != nil {
		return mapRegistryError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Msg("deactivated organization")

	return nil
}

func (s *OrganizationStore) getOne(ctx context.Context, query string, arg any) (*models.Organization, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, mapRegistryError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapRegistryError(err)
		}
		return nil, store.ErrOrganizationNotFound
	}

	org, err := scanOrg(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}

	return org, rows.Err()
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.Slug,
		&org.Name,
		&org.Active,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func qualifiedOrgColumns(alias string) string {
	return alias + ".org_id, " + alias + ".slug, " + alias + ".name, " +
		alias + ".active, " + alias + ".created_at, " + alias + ".updated_at"
}
