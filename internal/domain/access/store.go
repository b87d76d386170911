package access

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/domain/auth"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

const (
	entity = "role"
	table  = "roles"
)

const roleColumns = `
    SELECT r.id, r.name, r.description, r.is_system,
           COALESCE(ARRAY(SELECT p.key FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
                          WHERE rp.role_id = r.id ORDER BY p.key), '{}'),
           (SELECT COUNT(1) FROM users u WHERE u.role_id = r.id),
           r.created_at, r.updated_at, r.version
    FROM roles r`

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRole(row scanner) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.IsSystem, &r.Permissions, &r.UserCount, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	return r, err
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.DB.Query(ctx, "SELECT key, description FROM permissions ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []auth.Permission{}
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.Key, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.DB.Query(ctx, roleColumns+" WHERE NOT r.is_deleted ORDER BY r.is_system DESC, r.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, id string) (Role, error) {
	r, err := scanRole(s.DB.QueryRow(ctx, roleColumns+" WHERE r.id = $1 AND NOT r.is_deleted", id))
	if err != nil {
		return Role{}, db.MapError(err, entity)
	}
	return r, nil
}

func (s *Store) CreateRole(ctx context.Context, in RoleInput, actorID string) (Role, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Role{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO roles (name, description, created_by, updated_by)
    VALUES ($1, $2, $3, $3)
    RETURNING id
  `, in.Name, in.Description, db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Role{}, db.MapError(err, entity)
	}
	if err := replacePermissions(ctx, tx, id, in.Permissions); err != nil {
		return Role{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Role{}, err
	}
	return s.GetRole(ctx, id)
}

func (s *Store) UpdateRole(ctx context.Context, id string, version int, in RoleInput, actorID string) (Role, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE roles
    SET name = $3, description = $4, updated_by = $5, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.Name, in.Description, db.ActorRef(actorID))
	if err != nil {
		return Role{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.GetRole(ctx, id)
}

func (s *Store) SetRolePermissions(ctx context.Context, id string, version int, keys []string, actorID string) (Role, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Role{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE roles
    SET updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return Role{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, db.VersionMiss(ctx, tx, table, id, entity)
	}
	if err := replacePermissions(ctx, tx, id, keys); err != nil {
		return Role{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Role{}, err
	}
	return s.GetRole(ctx, id)
}

func replacePermissions(ctx context.Context, tx pgx.Tx, roleID string, keys []string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", roleID); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `
    INSERT INTO role_permissions (role_id, permission_id)
    SELECT $1, p.id FROM permissions p WHERE p.key = ANY($2)
  `, roleID, keys)
	if err != nil {
		return db.MapError(err, entity)
	}
	if int(tag.RowsAffected()) != len(keys) {
		return apperr.Validation("one or more permissions do not exist")
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, id string, version int) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var users, keys int
	err = tx.QueryRow(ctx, `
    SELECT (SELECT COUNT(1) FROM users WHERE role_id = $1),
           (SELECT COUNT(1) FROM api_keys WHERE role_id = $1 AND revoked_at IS NULL)
  `, id).Scan(&users, &keys)
	if err != nil {
		return err
	}
	if users > 0 || keys > 0 {
		return apperr.Conflict(fmt.Sprintf("role is still assigned to %d user(s) and %d active API key(s)", users, keys))
	}
	if _, err := tx.Exec(ctx, "DELETE FROM api_keys WHERE role_id = $1 AND revoked_at IS NOT NULL", id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM roles WHERE id = $1 AND version = $2 AND NOT is_deleted", id, version)
	if err != nil {
		return db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return db.VersionMiss(ctx, tx, table, id, entity)
	}
	return tx.Commit(ctx)
}
