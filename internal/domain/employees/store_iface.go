package employees

import (
	"context"

	"backoffice/internal/platform/db"
)

type StoreAPI interface {
	db.RefChecker
	List(ctx context.Context, filter Filter, limit, offset int) ([]Employee, int, error)
	Get(ctx context.Context, id string) (Employee, error)
	Create(ctx context.Context, in Input, actorID string) (Employee, error)
	Update(ctx context.Context, id string, version int, in Input, actorID string) (Employee, error)
	Delete(ctx context.Context, id string, version int, actorID string) error
	HasReports(ctx context.Context, id string) (bool, error)
	IDByUserID(ctx context.Context, userID string) (string, error)
}
