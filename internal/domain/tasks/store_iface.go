package tasks

import (
	"context"
	"time"

	"backoffice/internal/platform/db"
)

type StoreAPI interface {
	db.RefChecker
	List(ctx context.Context, filter Filter, limit, offset int) ([]Task, int, error)
	Get(ctx context.Context, id string) (Task, error)
	Create(ctx context.Context, in Input, actorID string) (Task, error)
	Update(ctx context.Context, id string, version int, in Input, actorID string) (Task, error)
	Delete(ctx context.Context, id string, version int, actorID string) error
	SetStatus(ctx context.Context, id string, version int, status string, completedAt *time.Time, actorID string) (Task, error)
	Overdue(ctx context.Context, today time.Time) ([]Overdue, error)
	MarkOverdueNotified(ctx context.Context, id string, at time.Time) error
}
