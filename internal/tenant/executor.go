package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlift/tenantdb/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Querier is the query contract exposed to collaborators. Executor
// implements it with a live pool; the safe executor and the aggregator
// consume it.
type Querier interface {
	// Query runs a parameterized statement with the session search path
	// bound to the given tenant schema and returns the collected rows.
	Query(ctx context.Context, schema SchemaName, sql string, args ...any) (*Result, error)

	// Exec runs a parameterized statement the same way and returns the
	// number of rows affected.
	Exec(ctx context.Context, schema SchemaName, sql string, args ...any) (int64, error)
}

// Result holds a fully drained result set. Rows are collected before the
// underlying connection is released so no reader can outlive the
// session's schema binding.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ExecutorConfig holds configuration for the session-scoped executor.
type ExecutorConfig struct {
	// SharedSchema is the literal name of the schema holding cross-tenant
	// records. It is appended after the tenant schema on every search
	// path. Default: "shared"
	SharedSchema string

	// AcquireTimeout is the maximum time to wait for a pool connection
	// before surfacing ErrConnectionExhausted. Default: 5s
	AcquireTimeout time.Duration

	// QueryTimeout is the maximum time a single statement can run.
	// Default: 10s
	QueryTimeout time.Duration
}

func (c *ExecutorConfig) applyDefaults() {
	if c.SharedSchema == "" {
		c.SharedSchema = "shared"
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// resetTimeout bounds the search-path reset on release. Deliberately
// independent of the request context, which may already be canceled.
const resetTimeout = 3 * time.Second

// Executor runs parameterized SQL against a tenant schema by switching
// the session search path on a borrowed pool connection. Each call is a
// single borrow → bind → run → reset → return cycle; schema binding is
// never ambient state.
type Executor struct {
	pool           *pgxpool.Pool
	shared         SchemaName
	acquireTimeout time.Duration
	queryTimeout   time.Duration
}

var _ Querier = (*Executor)(nil)

// NewExecutor creates an executor on top of a shared connection pool.
// The shared schema name is validated once here, with the same
// allow-list as tenant schema names.
func NewExecutor(pool *pgxpool.Pool, cfg *ExecutorConfig) (*Executor, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	if cfg == nil {
		cfg = &ExecutorConfig{}
	}
	cfg.applyDefaults()

	shared, err := ParseSchemaName(cfg.SharedSchema)
	if err != nil {
		return nil, fmt.Errorf("invalid shared schema name: %w", err)
	}

	return &Executor{
		pool:           pool,
		shared:         shared,
		acquireTimeout: cfg.AcquireTimeout,
		queryTimeout:   cfg.QueryTimeout,
	}, nil
}

// Query runs a parameterized statement under the tenant schema and
// returns the fully drained rows.
func (e *Executor) Query(ctx context.Context, schema SchemaName, sql string, args ...any) (*Result, error) {
	started := time.Now()

	var result *Result
	err := e.withSchema(ctx, schema, func(runCtx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(runCtx, sql, args...)
		if err != nil {
			return newQueryError(err)
		}
		result, err = collectResult(rows)
		return err
	})

	e.observe(started, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Exec runs a parameterized statement under the tenant schema and
// returns the number of rows affected.
func (e *Executor) Exec(ctx context.Context, schema SchemaName, sql string, args ...any) (int64, error) {
	started := time.Now()

	var affected int64
	err := e.withSchema(ctx, schema, func(runCtx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(runCtx, sql, args...)
		if err != nil {
			return newQueryError(err)
		}
		affected = tag.RowsAffected()
		return nil
	})

	e.observe(started, err)
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// withSchema is the borrow → bind → run → reset → return cycle shared by
// Query and Exec. The connection never goes back to the pool with a
// tenant search path still active; if the reset fails the connection is
// discarded instead.
func (e *Executor) withSchema(ctx context.Context, schema SchemaName, run func(context.Context, *pgxpool.Conn) error) error {
	if schema.IsZero() {
		return fmt.Errorf("%w: empty schema name", ErrResolution)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, e.acquireTimeout)
	defer cancel()

	conn, err := e.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: no connection within %s", ErrConnectionExhausted, e.acquireTimeout)
		}
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer e.release(conn)

	runCtx := ctx
	if e.queryTimeout > 0 {
		var cancelRun context.CancelFunc
		runCtx, cancelRun = context.WithTimeout(ctx, e.queryTimeout)
		defer cancelRun()
	}

	// The schema name is allow-list validated; this is the only SQL
	// fragment in the system built by concatenation.
	setPath := "SET search_path TO " + schema.Quoted() + ", " + e.shared.Quoted()
	if _, err := conn.Exec(runCtx, setPath); err != nil {
		// Cancellation during the switch is the caller's context at
		// work, not a schema problem.
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return fmt.Errorf("schema switch interrupted: %w", ctxErr)
		}
		if isSchemaMissing(err) {
			return fmt.Errorf("%w: schema %s does not exist", ErrSchemaSwitch, schema)
		}
		return fmt.Errorf("%w: %s: %v", ErrSchemaSwitch, schema, err)
	}

	return run(runCtx, conn)
}

// release neutralizes the session before the connection re-enters the
// shared pool. A connection whose search path cannot be reset is
// hijacked and closed rather than pooled.
func (e *Executor) release(conn *pgxpool.Conn) {
	resetCtx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if _, err := conn.Exec(resetCtx, "RESET search_path"); err != nil {
		log.Warn().Err(err).Msg("failed to reset search path, discarding connection")
		telemetry.Get().ConnectionsDiscarded.Inc()

		raw := conn.Hijack()
		_ = raw.Close(resetCtx)
		return
	}

	conn.Release()
}

func (e *Executor) observe(started time.Time, err error) {
	m := telemetry.Get()
	m.QueryDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		m.QueriesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrConnectionExhausted):
		m.QueriesTotal.WithLabelValues("pool_exhausted").Inc()
	case errors.Is(err, ErrSchemaSwitch):
		m.QueriesTotal.WithLabelValues("schema_switch").Inc()
	default:
		m.QueriesTotal.WithLabelValues("query_error").Inc()
	}
}

// collectResult drains rows into a Result. Rows are always closed here,
// before the caller's connection is released.
func collectResult(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, newQueryError(err)
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, newQueryError(err)
	}

	return result, nil
}
