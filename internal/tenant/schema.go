package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// SchemaPrefix is the fixed namespace token prepended to every tenant
// schema name. It is part of the wire contract with the out-of-band
// provisioning process; changing it requires re-provisioning every
// tenant schema.
const SchemaPrefix = "org_"

// maxIdentifierLen is the Postgres identifier limit (NAMEDATALEN - 1).
const maxIdentifierLen = 63

// schemaNamePattern is the allow-list a schema name must match before it
// is ever interpolated into SQL. Validation failures are resolution
// errors, never silently corrected.
var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SchemaName is a validated Postgres schema identifier. The zero value
// is invalid; values are only constructible through SchemaNameForSlug or
// ParseSchemaName, which enforce the allow-list. This is the only SQL
// fragment in the system ever assembled by string concatenation.
type SchemaName struct {
	name string
}

// String returns the raw schema name.
func (s SchemaName) String() string {
	return s.name
}

// Quoted returns the schema name as a quoted SQL identifier.
func (s SchemaName) Quoted() string {
	return `"` + s.name + `"`
}

// IsZero reports whether s is the invalid zero value.
func (s SchemaName) IsZero() bool {
	return s.name == ""
}

// SchemaNameForSlug derives the tenant schema name from an organization
// slug: lowercase, hyphens and spaces mapped to underscores, prefixed
// with SchemaPrefix. Any other character outside [a-z0-9_] fails closed
// with ErrResolution — a maliciously crafted slug must never reach SQL
// interpolation, truncated or otherwise.
func SchemaNameForSlug(slug string) (SchemaName, error) {
	if slug == "" {
		return SchemaName{}, fmt.Errorf("%w: empty slug", ErrResolution)
	}

	sanitized := strings.ToLower(slug)
	sanitized = strings.NewReplacer("-", "_", " ", "_").Replace(sanitized)

	name := SchemaPrefix + sanitized
	if !schemaNamePattern.MatchString(name) {
		return SchemaName{}, fmt.Errorf("%w: slug %q produces invalid schema name", ErrResolution, slug)
	}
	if len(name) > maxIdentifierLen {
		return SchemaName{}, fmt.Errorf("%w: slug %q produces schema name longer than %d bytes", ErrResolution, slug, maxIdentifierLen)
	}

	return SchemaName{name: name}, nil
}

// ParseSchemaName validates an already-derived schema name, e.g. the
// shared-schema literal supplied through configuration. No transform is
// applied; the value must already match the allow-list.
func ParseSchemaName(name string) (SchemaName, error) {
	if !schemaNamePattern.MatchString(name) || len(name) > maxIdentifierLen {
		return SchemaName{}, fmt.Errorf("%w: %q is not a valid schema name", ErrResolution, name)
	}
	return SchemaName{name: name}, nil
}
