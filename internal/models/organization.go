package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the system. Each organization owns
// exactly one Postgres schema, derived from its slug; the mapping is 1:1
// and never reassigned.
type Organization struct {
	ID        uuid.UUID // UUIDv7
	Slug      string    // source of truth for the schema name
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
