package tenant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/podlift/tenantdb/internal/models"
	"github.com/stretchr/testify/require"
)

func TestAggregator_ForEachOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("visits every active org in creation order", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "acme", "beta", "gamma")
		agg := NewAggregator(orgs, nil)

		var visited []string
		report, err := agg.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			visited = append(visited, schema.String())
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 3, report.Visited)
		require.Equal(t, []string{"org_acme", "org_beta", "org_gamma"}, visited)
	})

	t.Run("skips inactive orgs", func(t *testing.T) {
		orgs, created := seedOrgs(t, "acme", "beta")
		require.NoError(t, orgs.Deactivate(ctx, created[1].ID))

		agg := NewAggregator(orgs, nil)

		report, err := agg.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			require.Equal(t, "acme", org.Slug)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, report.Visited)
	})

	t.Run("one failing org does not stop the others", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "acme", "beta", "gamma")
		agg := NewAggregator(orgs, nil)

		report, err := agg.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			if org.Slug == "beta" {
				return fmt.Errorf("schema is broken")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, report.Visited)
		require.Len(t, report.Failures, 1)
		require.Equal(t, "beta", report.Failures[0].Slug)

		var aggErr *AggregateError
		require.ErrorAs(t, report.Err(), &aggErr)
		require.Len(t, aggErr.Failures, 1)
	})

	t.Run("invalid slug becomes a per-org failure", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "acme")
		bad := newTestOrg(t, "bad;slug")
		require.NoError(t, orgs.Create(ctx, bad))

		agg := NewAggregator(orgs, nil)

		report, err := agg.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, report.Visited)
		require.Len(t, report.Failures, 1)
		require.ErrorIs(t, report.Failures[0].Err, ErrResolution)
	})

	t.Run("cancellation stops the loop and keeps partial results", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "acme", "beta", "gamma")
		agg := NewAggregator(orgs, nil)

		loopCtx, cancel := context.WithCancel(ctx)

		var visited int
		report, err := agg.ForEachOrganization(loopCtx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			visited++
			if visited == 1 {
				cancel()
			}
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, report.Visited)
	})

	t.Run("cancellation with all slots busy stops scheduling promptly", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "a", "b", "c", "d")
		agg := NewAggregator(orgs, &AggregatorConfig{Concurrency: 2})

		loopCtx, cancel := context.WithCancel(ctx)

		release := make(chan struct{})
		started := make(chan struct{}, 4)

		done := make(chan struct{})
		var report *AggregateReport
		var loopErr error
		go func() {
			defer close(done)
			report, loopErr = agg.ForEachOrganization(loopCtx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()

		// Both slots occupied; the scheduler is now waiting for one.
		<-started
		<-started
		cancel()

		// Let the two in-flight visits finish. Nothing further may
		// have been scheduled after cancellation.
		close(release)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("aggregation did not return after cancellation")
		}

		require.ErrorIs(t, loopErr, context.Canceled)
		require.Equal(t, 2, report.Visited)
	})

	t.Run("bounded concurrency isolates failures", func(t *testing.T) {
		orgs, _ := seedOrgs(t, "a", "b", "c", "d", "e")
		agg := NewAggregator(orgs, &AggregatorConfig{Concurrency: 2})

		var (
			mu      sync.Mutex
			current int
			peak    int
		)
		report, err := agg.ForEachOrganization(ctx, func(ctx context.Context, org *models.Organization, schema SchemaName) error {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()

			if org.Slug == "c" {
				return fmt.Errorf("broken tenant")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 4, report.Visited)
		require.Len(t, report.Failures, 1)
		require.LessOrEqual(t, peak, 2)
	})
}
