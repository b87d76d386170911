package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"backoffice/internal/platform/apperr"
)

type existsRow bool

func (r existsRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = bool(r)
	return nil
}

type existsQuerier struct {
	exists bool
	query  string
}

func (q *existsQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (q *existsQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (q *existsQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.query = sql
	return existsRow(q.exists)
}

func TestVersionMiss(t *testing.T) {
	live := &existsQuerier{exists: true}
	err := VersionMiss(context.Background(), live, "employees", "e1", "employee")
	assert.True(t, apperr.Is(err, apperr.CodeVersionConflict))
	assert.Contains(t, live.query, "FROM employees")

	gone := &existsQuerier{}
	err = VersionMiss(context.Background(), gone, "employees", "e1", "employee")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestActorRef(t *testing.T) {
	assert.Nil(t, ActorRef("apikey:123"))
	assert.Nil(t, ActorRef(""))
	assert.Equal(t, "0b1d3c2a-9f5e-4f43-8d0a-6a1f3c9f2e11", ActorRef("0b1d3c2a-9f5e-4f43-8d0a-6a1f3c9f2e11"))
}
