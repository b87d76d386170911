package contracts

import (
	"context"

	"backoffice/internal/platform/db"
)

// TransitionFunc mutates a locked contract and its steps in memory. Steps
// without an ID replace the existing chain when persisted.
type TransitionFunc func(c *Contract, steps []Approval) ([]Approval, error)

type StoreAPI interface {
	db.RefChecker
	List(ctx context.Context, filter Filter, limit, offset int) ([]Contract, int, error)
	Get(ctx context.Context, id string) (Contract, error)
	Create(ctx context.Context, in Input, actorID string) (Contract, error)
	UpdateDraft(ctx context.Context, id string, version int, in Input, actorID string) (Contract, error)
	DeleteDraft(ctx context.Context, id string, version int, actorID string) error
	Approvals(ctx context.Context, contractID string) ([]Approval, error)
	Transition(ctx context.Context, id string, version int, actorID string, fn TransitionFunc) (Contract, error)
}
