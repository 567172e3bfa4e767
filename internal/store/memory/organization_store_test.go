package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
	"github.com/stretchr/testify/require"
)

func testOrg(slug string, createdAt time.Time) *models.Organization {
	return &models.Organization{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      slug,
		Active:    true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrganizationStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := NewOrganizationStore()
		org := testOrg("acme", time.Now())

		require.NoError(t, s.Create(ctx, org))

		got, err := s.GetByID(ctx, org.ID)
		require.NoError(t, err)
		require.Equal(t, org.Slug, got.Slug)

		got, err = s.GetBySlug(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
	})

	t.Run("duplicate ID returns error", func(t *testing.T) {
		s := NewOrganizationStore()
		org := testOrg("acme", time.Now())

		require.NoError(t, s.Create(ctx, org))
		err := s.Create(ctx, org)
		require.ErrorIs(t, err, store.ErrOrganizationAlreadyExists)
	})

	t.Run("duplicate slug returns error", func(t *testing.T) {
		s := NewOrganizationStore()

		require.NoError(t, s.Create(ctx, testOrg("acme", time.Now())))
		err := s.Create(ctx, testOrg("acme", time.Now()))
		require.ErrorIs(t, err, store.ErrOrganizationAlreadyExists)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := NewOrganizationStore()
		org := testOrg("acme", time.Now())
		require.NoError(t, s.Create(ctx, org))

		got, err := s.GetByID(ctx, org.ID)
		require.NoError(t, err)
		got.Slug = "mutated"

		again, err := s.GetByID(ctx, org.ID)
		require.NoError(t, err)
		require.Equal(t, "acme", again.Slug)
	})
}

func TestOrganizationStore_GetByUserID(t *testing.T) {
	ctx := context.Background()

	t.Run("maps user to org", func(t *testing.T) {
		s := NewOrganizationStore()
		org := testOrg("acme", time.Now())
		require.NoError(t, s.Create(ctx, org))

		userID := uuid.New()
		s.AddUser(userID, org.ID)

		got, err := s.GetByUserID(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
	})

	t.Run("unknown user returns error", func(t *testing.T) {
		s := NewOrganizationStore()

		_, err := s.GetByUserID(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestOrganizationStore_ListActive(t *testing.T) {
	ctx := context.Background()

	t.Run("ordered by creation time, inactive excluded", func(t *testing.T) {
		s := NewOrganizationStore()
		base := time.Now()

		third := testOrg("gamma", base.Add(2*time.Second))
		first := testOrg("acme", base)
		second := testOrg("beta", base.Add(time.Second))
		for _, org := range []*models.Organization{third, first, second} {
			require.NoError(t, s.Create(ctx, org))
		}
		require.NoError(t, s.Deactivate(ctx, second.ID))

		orgs, err := s.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, orgs, 2)
		require.Equal(t, "acme", orgs[0].Slug)
		require.Equal(t, "gamma", orgs[1].Slug)
	})
}

func TestOrganizationStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("slug change reindexes", func(t *testing.T) {
		s := NewOrganizationStore()
		org := testOrg("acme", time.Now())
		require.NoError(t, s.Create(ctx, org))

		renamed := *org
		renamed.Slug = "acme-media"
		require.NoError(t, s.Update(ctx, &renamed))

		_, err := s.GetBySlug(ctx, "acme")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)

		got, err := s.GetBySlug(ctx, "acme-media")
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
	})

	t.Run("unknown org returns error", func(t *testing.T) {
		s := NewOrganizationStore()

		err := s.Update(ctx, testOrg("ghost", time.Now()))
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})
}

func TestOrganizationStore_Deactivate(t *testing.T) {
	ctx := context.Background()

	s := NewOrganizationStore()
	org := testOrg("acme", time.Now())
	require.NoError(t, s.Create(ctx, org))

	require.NoError(t, s.Deactivate(ctx, org.ID))

	got, err := s.GetByID(ctx, org.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.ErrorIs(t, s.Deactivate(ctx, uuid.New()), store.ErrOrganizationNotFound)
}
