package db

import (
	"context"
	"fmt"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/querier"
)

// Ref ties a request field to the soft-deletable row it points at. Build refs
// with EmployeeRef, DepartmentRef or PositionRef so table is never user input.
type Ref struct {
	Field string
	ID    string
	table string
}

func EmployeeRef(field, id string) Ref   { return Ref{Field: field, ID: id, table: "employees"} }
func DepartmentRef(field, id string) Ref { return Ref{Field: field, ID: id, table: "departments"} }
func PositionRef(field, id string) Ref   { return Ref{Field: field, ID: id, table: "positions"} }

// Table names the referenced table.
func (r Ref) Table() string { return r.table }

// RefChecker finds the first reference whose row is missing or soft-deleted.
type RefChecker interface {
	MissingRef(ctx context.Context, refs ...Ref) (string, error)
}

// MissingRef returns the field of the first ref without a live row, or "".
// Refs with an empty ID are optional and skipped. Foreign keys do not see
// is_deleted.
func MissingRef(ctx context.Context, q querier.Querier, refs ...Ref) (string, error) {
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		var live bool
		query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND NOT is_deleted)", ref.table)
		if err := q.QueryRow(ctx, query, ref.ID).Scan(&live); err != nil {
			return "", fmt.Errorf("check %s: %w", ref.Field, err)
		}
		if !live {
			return ref.Field, nil
		}
	}
	return "", nil
}

// CheckRefs answers validation_error naming the first dangling reference.
func CheckRefs(ctx context.Context, c RefChecker, refs ...Ref) error {
	field, err := c.MissingRef(ctx, refs...)
	if err != nil {
		return err
	}
	if field != "" {
		return apperr.Validation(field + " does not exist")
	}
	return nil
}
