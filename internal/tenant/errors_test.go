package tenant

import (
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsSchemaMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "invalid schema name",
			err:  &pgconn.PgError{Code: pgerrcode.InvalidSchemaName},
			want: true,
		},
		{
			name: "invalid catalog name",
			err:  &pgconn.PgError{Code: pgerrcode.InvalidCatalogName},
			want: true,
		},
		{
			name: "undefined table is not a missing schema",
			err:  &pgconn.PgError{Code: pgerrcode.UndefinedTable},
			want: false,
		},
		{
			name: "wrapped pg error unwraps",
			err:  fmt.Errorf("exec failed: %w", &pgconn.PgError{Code: pgerrcode.InvalidSchemaName}),
			want: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("connection refused"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isSchemaMissing(tt.err))
		})
	}
}

func TestNewQueryError(t *testing.T) {
	t.Run("preserves the sqlstate code", func(t *testing.T) {
		cause := &pgconn.PgError{Code: pgerrcode.UndefinedColumn, Message: "column does not exist"}

		qe := newQueryError(fmt.Errorf("query failed: %w", cause))
		require.Equal(t, pgerrcode.UndefinedColumn, qe.Code)
		require.Equal(t, "column does not exist", qe.Message)
		require.ErrorAs(t, qe, &cause)
	})

	t.Run("non-pg errors keep the message only", func(t *testing.T) {
		qe := newQueryError(fmt.Errorf("broken pipe"))
		require.Empty(t, qe.Code)
		require.Equal(t, "broken pipe", qe.Message)
	})
}
