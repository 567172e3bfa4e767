package tenant

import (
	"context"
	"testing"

	"github.com/podlift/tenantdb/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRouter_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves then executes under the tenant schema", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme")
		q := &fakeQuerier{results: map[string]*Result{
			"org_acme": {Columns: []string{"name"}, Rows: [][]any{{"spring push"}}},
		}}
		router := NewRouter(orgs, q, nil, nil)

		result, err := router.Query(ctx, memberOf(created[0]), SlugRef("acme"), "SELECT name FROM campaigns")
		require.NoError(t, err)
		require.Equal(t, [][]any{{"spring push"}}, result.Rows)
		require.Equal(t, []string{"org_acme"}, q.calls)
	})

	t.Run("authorization failure never reaches the executor", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		q := &fakeQuerier{}
		router := NewRouter(orgs, q, nil, nil)

		_, err := router.Query(ctx, memberOf(created[0]), SlugRef("beta"), "SELECT 1")
		require.ErrorIs(t, err, ErrAuthorization)
		require.Empty(t, q.calls)
	})

	t.Run("audit records the SQL verb", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		auditor := NewMemoryAuditor()
		router := NewRouter(orgs, &fakeQuerier{}, auditor, nil)

		_, err := router.Query(ctx, superAdminOf(created[0]), SlugRef("beta"), "SELECT name FROM campaigns")
		require.NoError(t, err)

		entries := auditor.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, "select", entries[0].Operation)
	})
}

func TestRouter_SafeQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("execution failure degrades", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme")
		router := NewRouter(orgs, &fakeQuerier{err: ErrSchemaSwitch}, nil, nil)

		result, err := router.SafeQuery(ctx, memberOf(created[0]), SlugRef("acme"), "SELECT 1")
		require.ErrorIs(t, err, ErrSchemaSwitch)
		require.NotNil(t, result)
		require.Empty(t, result.Rows)
	})

	t.Run("resolution failure stays hard", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		router := NewRouter(orgs, &fakeQuerier{}, nil, nil)

		result, err := router.SafeQuery(ctx, memberOf(created[0]), SlugRef("beta"), "SELECT 1")
		require.ErrorIs(t, err, ErrAuthorization)
		require.Nil(t, result)
	})

	t.Run("not found degrades to empty result", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme")
		router := NewRouter(orgs, &fakeQuerier{}, nil, nil)

		result, err := router.SafeQuery(ctx, superAdminOf(created[0]), SlugRef("ghost"), "SELECT 1")
		require.ErrorIs(t, err, ErrNotFound)
		require.NotNil(t, result)
		require.Empty(t, result.Rows)
	})
}

func TestRouter_ForEachOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("requires super-admin", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		router := NewRouter(orgs, &fakeQuerier{}, nil, nil)

		_, err := router.ForEachOrganization(ctx, memberOf(created[0]), func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			t.Fatal("visitor must not run for unauthorized callers")
			return nil
		})
		require.ErrorIs(t, err, ErrAuthorization)
	})

	t.Run("super-admin visits all orgs", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		router := NewRouter(orgs, &fakeQuerier{}, nil, nil)

		var schemas []string
		report, err := router.ForEachOrganization(ctx, superAdminOf(created[0]), func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			schemas = append(schemas, schema.String())
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, report.Visited)
		require.Equal(t, []string{"org_acme", "org_beta"}, schemas)
	})
}
