package certifications

import (
	"context"
	"time"

	"backoffice/internal/platform/db"
	"backoffice/internal/platform/storage"
)

type StoreAPI interface {
	db.RefChecker
	List(ctx context.Context, filter Filter, limit, offset int) ([]Certification, int, error)
	Get(ctx context.Context, id string) (Certification, error)
	Create(ctx context.Context, in Input, actorID string) (Certification, error)
	Update(ctx context.Context, id string, version int, in Input, actorID string) (Certification, error)
	Delete(ctx context.Context, id string, version int, actorID string) error
	SetAttachment(ctx context.Context, id string, version int, att storage.Attachment, actorID string) (Certification, error)
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Expiring, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}
