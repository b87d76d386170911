package org

import (
	"context"

	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// MissingRef reports the first referenced row that is missing or soft-deleted.
func (s *Store) MissingRef(ctx context.Context, refs ...db.Ref) (string, error) {
	return db.MissingRef(ctx, s.DB, refs...)
}

const departmentColumns = `
    SELECT id, name, COALESCE(code, ''), description,
           COALESCE(parent_id::text, ''), COALESCE(manager_id::text, ''),
           created_at, COALESCE(created_by::text, ''), updated_at, COALESCE(updated_by::text, ''), version
    FROM departments`

type scanner interface {
	Scan(dest ...any) error
}

func scanDepartment(row scanner) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.ParentID, &d.ManagerID,
		&d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy, &d.Version)
	return d, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, departmentColumns+" WHERE NOT is_deleted ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id string) (Department, error) {
	d, err := scanDepartment(s.DB.QueryRow(ctx, departmentColumns+" WHERE id = $1 AND NOT is_deleted", id))
	if err != nil {
		return Department{}, db.MapError(err, "department")
	}
	return d, nil
}

func (s *Store) CreateDepartment(ctx context.Context, in DepartmentInput, actorID string) (Department, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, code, description, parent_id, manager_id, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$6)
    RETURNING id
  `, in.Name, db.NullIfEmpty(in.Code), in.Description, db.NullIfEmpty(in.ParentID), db.NullIfEmpty(in.ManagerID), db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Department{}, db.MapError(err, "department")
	}
	return s.GetDepartment(ctx, id)
}

func (s *Store) UpdateDepartment(ctx context.Context, id string, version int, in DepartmentInput, actorID string) (Department, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE departments
    SET name = $3, code = $4, description = $5, parent_id = $6, manager_id = $7,
        updated_by = $8, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.Name, db.NullIfEmpty(in.Code), in.Description, db.NullIfEmpty(in.ParentID), db.NullIfEmpty(in.ManagerID), db.ActorRef(actorID))
	if err != nil {
		return Department{}, db.MapError(err, "department")
	}
	if tag.RowsAffected() == 0 {
		return Department{}, db.VersionMiss(ctx, s.DB, "departments", id, "department")
	}
	return s.GetDepartment(ctx, id)
}

func (s *Store) DeleteDepartment(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE departments
    SET is_deleted = true, updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return db.MapError(err, "department")
	}
	if tag.RowsAffected() == 0 {
		return db.VersionMiss(ctx, s.DB, "departments", id, "department")
	}
	return nil
}

// DepartmentInUse reports live employees, positions or child departments.
func (s *Store) DepartmentInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS(SELECT 1 FROM employees WHERE department_id = $1 AND NOT is_deleted)
        OR EXISTS(SELECT 1 FROM positions WHERE department_id = $1 AND NOT is_deleted)
        OR EXISTS(SELECT 1 FROM departments WHERE parent_id = $1 AND NOT is_deleted)
  `, id).Scan(&inUse)
	return inUse, err
}

// IsDescendant reports whether candidateID sits below ancestorID in the tree.
func (s *Store) IsDescendant(ctx context.Context, candidateID, ancestorID string) (bool, error) {
	var found bool
	err := s.DB.QueryRow(ctx, `
    WITH RECURSIVE tree AS (
      SELECT id FROM departments WHERE parent_id = $2 AND NOT is_deleted
      UNION
      SELECT d.id FROM departments d JOIN tree t ON d.parent_id = t.id WHERE NOT d.is_deleted
    )
    SELECT EXISTS(SELECT 1 FROM tree WHERE id = $1)
  `, candidateID, ancestorID).Scan(&found)
	return found, err
}

const positionColumns = `
    SELECT id, title, COALESCE(code, ''), department_id::text, COALESCE(grade, ''),
           min_salary, max_salary, description,
           created_at, COALESCE(created_by::text, ''), updated_at, COALESCE(updated_by::text, ''), version
    FROM positions`

func scanPosition(row scanner) (Position, error) {
	var p Position
	err := row.Scan(&p.ID, &p.Title, &p.Code, &p.DepartmentID, &p.Grade, &p.MinSalary, &p.MaxSalary, &p.Description,
		&p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy, &p.Version)
	return p, err
}

func (s *Store) ListPositions(ctx context.Context, departmentID string, limit, offset int) ([]Position, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM positions
    WHERE NOT is_deleted AND ($1 = '' OR department_id::text = $1)
  `, departmentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, positionColumns+`
    WHERE NOT is_deleted AND ($1 = '' OR department_id::text = $1)
    ORDER BY title, id
    LIMIT $2 OFFSET $3
  `, departmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) GetPosition(ctx context.Context, id string) (Position, error) {
	p, err := scanPosition(s.DB.QueryRow(ctx, positionColumns+" WHERE id = $1 AND NOT is_deleted", id))
	if err != nil {
		return Position{}, db.MapError(err, "position")
	}
	return p, nil
}

func (s *Store) CreatePosition(ctx context.Context, in PositionInput, actorID string) (Position, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO positions (title, code, department_id, grade, min_salary, max_salary, description, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
    RETURNING id
  `, in.Title, db.NullIfEmpty(in.Code), in.DepartmentID, db.NullIfEmpty(in.Grade), in.MinSalary, in.MaxSalary, in.Description, db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Position{}, db.MapError(err, "position")
	}
	return s.GetPosition(ctx, id)
}

func (s *Store) UpdatePosition(ctx context.Context, id string, version int, in PositionInput, actorID string) (Position, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE positions
    SET title = $3, code = $4, department_id = $5, grade = $6, min_salary = $7, max_salary = $8, description = $9,
        updated_by = $10, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.Title, db.NullIfEmpty(in.Code), in.DepartmentID, db.NullIfEmpty(in.Grade), in.MinSalary, in.MaxSalary, in.Description, db.ActorRef(actorID))
	if err != nil {
		return Position{}, db.MapError(err, "position")
	}
	if tag.RowsAffected() == 0 {
		return Position{}, db.VersionMiss(ctx, s.DB, "positions", id, "position")
	}
	return s.GetPosition(ctx, id)
}

func (s *Store) DeletePosition(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE positions
    SET is_deleted = true, updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return db.MapError(err, "position")
	}
	if tag.RowsAffected() == 0 {
		return db.VersionMiss(ctx, s.DB, "positions", id, "position")
	}
	return nil
}

func (s *Store) PositionInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS(SELECT 1 FROM employees WHERE position_id = $1 AND NOT is_deleted)
        OR EXISTS(SELECT 1 FROM contracts WHERE position_id = $1 AND NOT is_deleted)
  `, id).Scan(&inUse)
	return inUse, err
}
