package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlift/tenantdb/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// AuditEntry records one privileged cross-tenant access: a super-admin
// caller resolved a schema belonging to an organization other than their
// own.
type AuditEntry struct {
	CallerID   uuid.UUID
	CallerOrg  uuid.UUID
	TargetOrg  uuid.UUID
	Operation  string
	OccurredAt time.Time
}

// Auditor is the append-only side channel for cross-tenant access
// records. Implementations must never block or fail the query path;
// audit logging is best-effort, not a precondition for data access.
type Auditor interface {
	RecordCrossTenantAccess(entry AuditEntry)
}

// NoopAuditor discards all entries. Used when auditing is disabled.
type NoopAuditor struct{}

func (NoopAuditor) RecordCrossTenantAccess(AuditEntry) {}

// MemoryAuditor collects entries in memory for development and testing.
type MemoryAuditor struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func NewMemoryAuditor() *MemoryAuditor {
	return &MemoryAuditor{}
}

func (a *MemoryAuditor) RecordCrossTenantAccess(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (a *MemoryAuditor) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditEntry(nil), a.entries...)
}

// PostgresAuditor writes audit entries to the shared-schema
// tenant_access_audit table. Writes happen on a background goroutine fed
// by a bounded channel; a full channel drops the entry with a warning
// rather than stalling a request. Each write is retried once before
// being dropped.
type PostgresAuditor struct {
	pool    *pgxpool.Pool
	shared  SchemaName
	entries chan AuditEntry
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

const auditBufferSize = 256

// NewPostgresAuditor creates the auditor and starts its writer
// goroutine. Call Stop to flush and shut it down.
func NewPostgresAuditor(pool *pgxpool.Pool, shared SchemaName) *PostgresAuditor {
	a := &PostgresAuditor{
		pool:    pool,
		shared:  shared,
		entries: make(chan AuditEntry, auditBufferSize),
		done:    make(chan struct{}),
	}
	go a.writeLoop()
	return a
}

// RecordCrossTenantAccess enqueues an entry for the background writer.
// Entries arriving after Stop, or into a full buffer, are dropped with a
// warning; enqueueing never blocks or panics the caller.
func (a *PostgresAuditor) RecordCrossTenantAccess(entry AuditEntry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		telemetry.Get().AuditDroppedTotal.Inc()
		log.Warn().
			Str("caller_id", entry.CallerID.String()).
			Str("target_org", entry.TargetOrg.String()).
			Msg("auditor stopped, dropping cross-tenant access record")
		return
	}

	select {
	case a.entries <- entry:
	default:
		telemetry.Get().AuditDroppedTotal.Inc()
		log.Warn().
			Str("caller_id", entry.CallerID.String()).
			Str("target_org", entry.TargetOrg.String()).
			Msg("audit buffer full, dropping cross-tenant access record")
	}
}

// Stop drains queued entries and stops the writer goroutine. Safe to
// call more than once and concurrently with producers.
func (a *PostgresAuditor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.stopped = true
	close(a.entries)
	a.mu.Unlock()

	<-a.done
}

func (a *PostgresAuditor) writeLoop() {
	defer close(a.done)

	for entry := range a.entries {
		a.write(entry)
	}
}

func (a *PostgresAuditor) write(entry AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Fully qualified: audit inserts run with the default search path,
	// never a tenant binding.
	query := `
		INSERT INTO ` + a.shared.Quoted() + `.tenant_access_audit (
			caller_id, caller_org, target_org, operation, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := a.pool.Exec(ctx, query,
			entry.CallerID,
			entry.CallerOrg,
			entry.TargetOrg,
			entry.Operation,
			entry.OccurredAt,
		)
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(2))

	if err != nil {
		telemetry.Get().AuditDroppedTotal.Inc()
		log.Warn().Err(err).
			Str("caller_id", entry.CallerID.String()).
			Str("target_org", entry.TargetOrg.String()).
			Str("operation", entry.Operation).
			Msg("failed to write cross-tenant access record, dropping")
		return
	}

	telemetry.Get().AuditWritesTotal.Inc()
}
