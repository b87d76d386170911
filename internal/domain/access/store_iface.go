package access

import (
	"context"

	"backoffice/internal/domain/auth"
)

type StoreAPI interface {
	ListPermissions(ctx context.Context) ([]auth.Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	CreateRole(ctx context.Context, in RoleInput, actorID string) (Role, error)
	UpdateRole(ctx context.Context, id string, version int, in RoleInput, actorID string) (Role, error)
	SetRolePermissions(ctx context.Context, id string, version int, keys []string, actorID string) (Role, error)
	// DeleteRole removes a role nobody holds. Revoked API keys bound to it
	// go with it.
	DeleteRole(ctx context.Context, id string, version int) error
}
