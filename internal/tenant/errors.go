package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for tenant routing operations.
//
// ErrAuthorization and ErrResolution indicate a bug or an attack, never a
// transient condition; they are always surfaced as hard failures, even
// through the safe executor.
var (
	// ErrNotFound means the referenced organization is unknown or inactive.
	ErrNotFound = errors.New("organization not found")

	// ErrAuthorization means the caller is not entitled to the requested
	// tenant.
	ErrAuthorization = errors.New("not authorized for requested tenant")

	// ErrResolution means the slug-to-schema transform produced a value
	// that failed allow-list validation.
	ErrResolution = errors.New("schema name failed validation")

	// ErrConnectionExhausted means no pool connection became available
	// within the configured wait.
	ErrConnectionExhausted = errors.New("connection pool exhausted")

	// ErrSchemaSwitch means the search-path statement itself failed, e.g.
	// the schema was dropped concurrently. Fatal for the call, never
	// retried here.
	ErrSchemaSwitch = errors.New("schema switch failed")
)

// QueryError wraps a database error from the caller's own statement,
// preserving the underlying Postgres error code.
type QueryError struct {
	Code    string // Postgres error code (SQLSTATE), empty if not a PgError
	Message string
	err     error
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query failed [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("query failed: %s", e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.err
}

// OrgFailure records one organization's failure during an aggregation.
type OrgFailure struct {
	OrgID string
	Slug  string
	Err   error
}

// AggregateError wraps the per-organization failures of a cross-tenant
// aggregation. Callers decide whether any failure is fatal to their use
// case; partial results are returned alongside.
type AggregateError struct {
	Failures []OrgFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Slug, f.Err))
	}
	return fmt.Sprintf("aggregation failed for %d organization(s): %s",
		len(e.Failures), strings.Join(parts, "; "))
}

// newQueryError maps a driver error from the caller's statement to a
// *QueryError, preserving the SQLSTATE code when present.
func newQueryError(err error) *QueryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			err:     err,
		}
	}
	return &QueryError{
		Message: err.Error(),
		err:     err,
	}
}

// isSchemaMissing reports whether err indicates the target schema does
// not exist, which maps to ErrSchemaSwitch on the search-path statement.
func isSchemaMissing(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.InvalidSchemaName, pgerrcode.InvalidCatalogName:
		return true
	}
	return false
}

// IsHardFailure reports whether err must never be downgraded to an
// empty result by the safe executor.
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrAuthorization) || errors.Is(err, ErrResolution)
}
