package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/platform/apperr"
)

// liveRows answers EXISTS queries from a set of live ids.
type liveRows struct {
	live    map[string]bool
	queries []string
}

func (q *liveRows) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (q *liveRows) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (q *liveRows) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.queries = append(q.queries, sql)
	return existsRow(q.live[args[0].(string)])
}

func (q *liveRows) MissingRef(ctx context.Context, refs ...Ref) (string, error) {
	return MissingRef(ctx, q, refs...)
}

func TestMissingRef(t *testing.T) {
	q := &liveRows{live: map[string]bool{"emp-1": true, "dep-1": true}}

	field, err := MissingRef(context.Background(), q,
		EmployeeRef("employeeId", "emp-1"),
		PositionRef("positionId", ""),
		DepartmentRef("departmentId", "dep-1"),
	)
	require.NoError(t, err)
	assert.Empty(t, field)
	require.Len(t, q.queries, 2)
	assert.Contains(t, q.queries[0], "FROM employees WHERE id = $1 AND NOT is_deleted")
	assert.Contains(t, q.queries[1], "FROM departments")

	field, err = MissingRef(context.Background(), q, EmployeeRef("managerId", "emp-deleted"), DepartmentRef("departmentId", "dep-1"))
	require.NoError(t, err)
	assert.Equal(t, "managerId", field)
}

func TestCheckRefs(t *testing.T) {
	q := &liveRows{live: map[string]bool{"pos-1": true}}

	assert.NoError(t, CheckRefs(context.Background(), q, PositionRef("positionId", "pos-1")))

	err := CheckRefs(context.Background(), q, PositionRef("positionId", "pos-gone"))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "positionId does not exist", apperr.Message(err))
}
