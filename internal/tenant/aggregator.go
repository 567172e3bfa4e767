package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/podlift/tenantdb/internal/models"
	"github.com/podlift/tenantdb/internal/store"
	"github.com/rs/zerolog/log"
)

// VisitFunc is invoked once per active organization with its resolved
// schema name. The visitor typically runs queries through the executor
// or safe executor on the organization's behalf.
type VisitFunc func(ctx context.Context, org *models.Organization, schema SchemaName) error

// AggregateReport is the outcome of a cross-tenant aggregation: how many
// organizations were visited successfully and which ones failed. Partial
// results with a reported failure list beat an all-or-nothing rollup
// across hundreds of tenants; callers decide whether any failure is
// fatal.
type AggregateReport struct {
	Visited  int
	Failures []OrgFailure
}

// Err returns an *AggregateError wrapping the failure list, or nil when
// every organization was visited cleanly.
func (r *AggregateReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &AggregateError{Failures: r.Failures}
}

// AggregatorConfig holds configuration for the cross-tenant aggregator.
type AggregatorConfig struct {
	// Concurrency caps how many organizations are visited at once.
	// Sequential (1) by default to bound peak pool pressure. Values
	// above the pool size buy nothing.
	Concurrency int
}

func (c *AggregatorConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}

// Aggregator iterates the active organizations for privileged rollups.
// Callers authorize once, globally, as super-admin before starting the
// loop; per-organization resolution here skips the per-caller check.
type Aggregator struct {
	orgs        store.OrganizationStore
	concurrency int
}

// NewAggregator creates an aggregator over the organization registry.
func NewAggregator(orgs store.OrganizationStore, cfg *AggregatorConfig) *Aggregator {
	if cfg == nil {
		cfg = &AggregatorConfig{}
	}
	cfg.applyDefaults()

	return &Aggregator{
		orgs:        orgs,
		concurrency: cfg.Concurrency,
	}
}

// ForEachOrganization visits every active organization. One broken or
// slow tenant never fails or stalls the others: its error goes into the
// report's failure list and the loop continues. Context cancellation
// stops scheduling new visits promptly; in-flight visits finish (and
// drain their connections) before the call returns. Results already
// collected by the visitor are kept.
func (a *Aggregator) ForEachOrganization(ctx context.Context, visit VisitFunc) (*AggregateReport, error) {
	orgs, err := a.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	report := &AggregateReport{}
	if a.concurrency == 1 {
		a.visitSequential(ctx, orgs, visit, report)
	} else {
		a.visitConcurrent(ctx, orgs, visit, report)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (a *Aggregator) visitSequential(ctx context.Context, orgs []*models.Organization, visit VisitFunc, report *AggregateReport) {
	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}
		a.visitOne(ctx, org, visit, report, nil)
	}
}

func (a *Aggregator) visitConcurrent(ctx context.Context, orgs []*models.Organization, visit VisitFunc, report *AggregateReport) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, a.concurrency)
	)

	for _, org := range orgs {
		// Waiting for a slot must not outlive the context: with every
		// slot held by a slow visit, cancellation still stops
		// scheduling promptly.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(org *models.Organization) {
			defer wg.Done()
			defer func() { <-sem }()
			a.visitOne(ctx, org, visit, report, &mu)
		}(org)
	}

	wg.Wait()
}

func (a *Aggregator) visitOne(ctx context.Context, org *models.Organization, visit VisitFunc, report *AggregateReport, mu *sync.Mutex) {
	err := a.visitOrg(ctx, org, visit)

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("org", org.Slug).
			Msg("organization failed during aggregation")
		report.Failures = append(report.Failures, OrgFailure{
			OrgID: org.ID.String(),
			Slug:  org.Slug,
			Err:   err,
		})
		return
	}

	report.Visited++
}

func (a *Aggregator) visitOrg(ctx context.Context, org *models.Organization, visit VisitFunc) error {
	schema, err := SchemaNameForSlug(org.Slug)
	if err != nil {
		return err
	}
	return visit(ctx, org, schema)
}
