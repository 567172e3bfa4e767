package tenant

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryAuditor(t *testing.T) {
	t.Run("records entries", func(t *testing.T) {
		auditor := NewMemoryAuditor()

		entry := AuditEntry{
			CallerID:   uuid.New(),
			CallerOrg:  uuid.New(),
			TargetOrg:  uuid.New(),
			Operation:  "select",
			OccurredAt: time.Now(),
		}
		auditor.RecordCrossTenantAccess(entry)

		entries := auditor.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, entry, entries[0])
	})

	t.Run("entries are copied out", func(t *testing.T) {
		auditor := NewMemoryAuditor()
		auditor.RecordCrossTenantAccess(AuditEntry{Operation: "select"})

		entries := auditor.Entries()
		entries[0].Operation = "mutated"

		require.Equal(t, "select", auditor.Entries()[0].Operation)
	})

	t.Run("safe under concurrent writers", func(t *testing.T) {
		auditor := NewMemoryAuditor()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				auditor.RecordCrossTenantAccess(AuditEntry{Operation: "select"})
			}()
		}
		wg.Wait()

		require.Len(t, auditor.Entries(), 10)
	})
}

func TestPostgresAuditor_Stop(t *testing.T) {
	shared, err := ParseSchemaName("shared")
	require.NoError(t, err)

	t.Run("record after stop drops instead of panicking", func(t *testing.T) {
		auditor := NewPostgresAuditor(nil, shared)
		auditor.Stop()

		require.NotPanics(t, func() {
			auditor.RecordCrossTenantAccess(AuditEntry{Operation: "select"})
		})
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		auditor := NewPostgresAuditor(nil, shared)
		auditor.Stop()
		require.NotPanics(t, auditor.Stop)
	})

	t.Run("record racing stop never panics", func(t *testing.T) {
		auditor := NewPostgresAuditor(nil, shared)

		// Stop before any entry can be enqueued, then race producers
		// against the closed state.
		auditor.Stop()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NotPanics(t, func() {
					auditor.RecordCrossTenantAccess(AuditEntry{Operation: "select"})
				})
			}()
		}
		wg.Wait()
	})
}
