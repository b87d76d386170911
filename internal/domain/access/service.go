package access

import (
	"context"
	"slices"
	"sort"
	"strings"

	"backoffice/internal/domain/auth"
	"backoffice/internal/platform/apperr"
)

// PermissionCache drops cached permission sets after a role changes.
type PermissionCache interface {
	InvalidateRole(ctx context.Context, roleID string)
}

type Service struct {
	store StoreAPI
	cache PermissionCache
}

func NewService(store StoreAPI, cache PermissionCache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.store.GetRole(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, actorID string, in RoleInput) (Role, error) {
	in, err := normalize(in)
	if err != nil {
		return Role{}, err
	}
	return s.store.CreateRole(ctx, in, actorID)
}

// UpdateRole renames a role. System roles keep their names since the
// approval chain and seed refer to them.
func (s *Service) UpdateRole(ctx context.Context, actorID, id string, version int, in RoleInput) (Role, error) {
	in, err := normalize(in)
	if err != nil {
		return Role{}, err
	}
	current, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.IsSystem && !strings.EqualFold(current.Name, in.Name) {
		return Role{}, apperr.InvalidState("system roles cannot be renamed")
	}
	return s.store.UpdateRole(ctx, id, version, in, actorID)
}

func (s *Service) SetPermissions(ctx context.Context, actorID, id string, version int, keys []string) (Role, error) {
	keys = dedupe(keys)
	if unknown := unknownPermissions(keys); len(unknown) > 0 {
		return Role{}, apperr.Validation("unknown permissions: " + strings.Join(unknown, ", "))
	}
	current, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.Name == auth.RoleAdmin && !slices.Contains(keys, auth.PermRolesManage) {
		return Role{}, apperr.InvalidState("the Admin role must keep " + auth.PermRolesManage)
	}
	role, err := s.store.SetRolePermissions(ctx, id, version, keys, actorID)
	if err != nil {
		return Role{}, err
	}
	s.cache.InvalidateRole(ctx, id)
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, id string, version int) error {
	current, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return apperr.InvalidState("system roles cannot be deleted")
	}
	if err := s.store.DeleteRole(ctx, id, version); err != nil {
		return err
	}
	s.cache.InvalidateRole(ctx, id)
	return nil
}

func normalize(in RoleInput) (RoleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, apperr.Validation("name is required")
	}
	in.Permissions = dedupe(in.Permissions)
	if unknown := unknownPermissions(in.Permissions); len(unknown) > 0 {
		return in, apperr.Validation("unknown permissions: " + strings.Join(unknown, ", "))
	}
	return in, nil
}

func dedupe(keys []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func unknownPermissions(keys []string) []string {
	var unknown []string
	for _, key := range keys {
		known := slices.ContainsFunc(auth.DefaultPermissions, func(p auth.Permission) bool { return p.Key == key })
		if !known {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
