package auth

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/platform/querier"
)

// Seed installs the permission catalog, the system roles with their default
// grants, and the initial administrator. It is idempotent.
func Seed(ctx context.Context, db querier.Querier, adminEmail, adminPassword string) error {
	if err := seedPermissions(ctx, db); err != nil {
		return err
	}
	roleIDs, err := seedRoles(ctx, db)
	if err != nil {
		return err
	}
	if err := seedRolePermissions(ctx, db, roleIDs); err != nil {
		return err
	}
	return seedAdminUser(ctx, db, roleIDs[RoleAdmin], adminEmail, adminPassword)
}

func seedPermissions(ctx context.Context, db querier.Querier) error {
	for _, perm := range DefaultPermissions {
		_, err := db.Exec(ctx, `
			INSERT INTO permissions (key, description) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET description = EXCLUDED.description`,
			perm.Key, perm.Description)
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", perm.Key, err)
		}
	}
	return nil
}

func seedRoles(ctx context.Context, db querier.Querier) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range RolePermissions {
		var id string
		err := db.QueryRow(ctx, `
			INSERT INTO roles (name, description, is_system) VALUES ($1, $2, TRUE)
			ON CONFLICT (name) DO UPDATE SET is_system = TRUE
			RETURNING id`, roleName, RoleDescription(roleName)).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seed role %s: %w", roleName, err)
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

// seedRolePermissions only adds missing grants so that edits made through the
// roles API survive restarts. Admin always holds the full catalog.
func seedRolePermissions(ctx context.Context, db querier.Querier, roleIDs map[string]string) error {
	for roleName, perms := range RolePermissions {
		var granted int
		if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM role_permissions WHERE role_id = $1", roleIDs[roleName]).Scan(&granted); err != nil {
			return err
		}
		if granted > 0 && roleName != RoleAdmin {
			continue
		}
		_, err := db.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, p.id FROM permissions p WHERE p.key = ANY($2)
			ON CONFLICT DO NOTHING`, roleIDs[roleName], perms)
		if err != nil {
			return fmt.Errorf("seed grants for %s: %w", roleName, err)
		}
	}
	return nil
}

func seedAdminUser(ctx context.Context, db querier.Querier, roleID, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	var exists bool
	if err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, "INSERT INTO users (email, password_hash, role_id) VALUES ($1, $2, $3)", email, hash, roleID)
	return err
}
