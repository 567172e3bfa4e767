package tenant

import (
	"context"

	"github.com/rs/zerolog/log"
)

// SafeExecutor is a non-throwing wrapper over a Querier. Execution
// failures come back as an empty result alongside the error so route
// handlers can degrade to a best-effort response instead of failing the
// whole request. The swallow-vs-surface decision lives here, once, not
// per call site.
//
// Authorization and resolution errors are never downgraded: an empty
// result for a denied caller would be indistinguishable from "no data
// exists", which leaks more than an explicit denial.
type SafeExecutor struct {
	q Querier
}

var _ Querier = (*SafeExecutor)(nil)

// NewSafeExecutor wraps a Querier with degrade-on-failure semantics.
func NewSafeExecutor(q Querier) *SafeExecutor {
	return &SafeExecutor{q: q}
}

// Query delegates to the underlying Querier. On execution failure it
// returns an empty, non-nil Result together with the error; callers that
// ignore the error get an empty row set. Hard failures (authorization,
// resolution) propagate with a nil result.
func (s *SafeExecutor) Query(ctx context.Context, schema SchemaName, sql string, args ...any) (*Result, error) {
	result, err := s.q.Query(ctx, schema, sql, args...)
	if err == nil {
		return result, nil
	}

	if IsHardFailure(err) {
		return nil, err
	}

	log.Ctx(ctx).Warn().Err(err).
		Str("schema", schema.String()).
		Msg("query degraded to empty result")

	return &Result{}, err
}

// Exec delegates to the underlying Querier, reporting zero rows affected
// alongside the error on execution failure. Hard failures propagate.
func (s *SafeExecutor) Exec(ctx context.Context, schema SchemaName, sql string, args ...any) (int64, error) {
	affected, err := s.q.Exec(ctx, schema, sql, args...)
	if err == nil {
		return affected, nil
	}

	if IsHardFailure(err) {
		return 0, err
	}

	log.Ctx(ctx).Warn().Err(err).
		Str("schema", schema.String()).
		Msg("exec degraded, no rows affected")

	return 0, err
}
