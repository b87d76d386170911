package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

const (
	entity = "task"
	table  = "tasks"
)

const selectColumns = `
    SELECT t.id, t.title, t.description, COALESCE(t.assignee_id::text, ''), COALESCE(u.email, ''),
           COALESCE(t.employee_id::text, ''), t.priority, t.status, t.due_date, t.completed_at, t.overdue_notified_at,
           t.created_at, COALESCE(t.created_by::text, ''), t.updated_at, COALESCE(t.updated_by::text, ''), t.version
    FROM tasks t
    LEFT JOIN users u ON u.id = t.assignee_id`

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

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.AssigneeID, &t.AssigneeEmail,
		&t.EmployeeID, &t.Priority, &t.Status, &t.DueDate, &t.CompletedAt, &t.OverdueNotifiedAt,
		&t.CreatedAt, &t.CreatedBy, &t.UpdatedAt, &t.UpdatedBy, &t.Version)
	return t, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Task, int, error) {
	clauses := []string{"NOT t.is_deleted"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.AssigneeID != "" {
		add("t.assignee_id = $%d", filter.AssigneeID)
	}
	if filter.EmployeeID != "" {
		add("t.employee_id = $%d", filter.EmployeeID)
	}
	if filter.Status != "" {
		add("t.status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		add("t.priority = $%d", filter.Priority)
	}
	if filter.Overdue {
		clauses = append(clauses, "t.due_date < CURRENT_DATE AND t.status IN ('todo','in_progress')")
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM tasks t"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + fmt.Sprintf(" ORDER BY t.due_date NULLS LAST, t.created_at, t.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Task, error) {
	t, err := scanTask(s.DB.QueryRow(ctx, selectColumns+" WHERE t.id = $1 AND NOT t.is_deleted", id))
	if err != nil {
		return Task{}, db.MapError(err, entity)
	}
	return t, nil
}

func (s *Store) Create(ctx context.Context, in Input, actorID string) (Task, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tasks (title, description, assignee_id, employee_id, priority, due_date, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
    RETURNING id
  `, in.Title, in.Description, db.NullIfEmpty(in.AssigneeID), db.NullIfEmpty(in.EmployeeID), in.Priority, in.DueDate,
		db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Task{}, db.MapError(err, entity)
	}
	return s.Get(ctx, id)
}

// Update resets the overdue marker when the due date or assignee changes.
func (s *Store) Update(ctx context.Context, id string, version int, in Input, actorID string) (Task, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tasks
    SET title = $3, description = $4,
        overdue_notified_at = CASE WHEN due_date IS DISTINCT FROM $7 OR assignee_id IS DISTINCT FROM $5::uuid
                                   THEN NULL ELSE overdue_notified_at END,
        assignee_id = $5, employee_id = $6, due_date = $7, priority = $8,
        updated_by = $9, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.Title, in.Description, db.NullIfEmpty(in.AssigneeID), db.NullIfEmpty(in.EmployeeID), in.DueDate, in.Priority,
		db.ActorRef(actorID))
	if err != nil {
		return Task{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Task{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tasks
    SET is_deleted = true, updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, id string, version int, status string, completedAt *time.Time, actorID string) (Task, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tasks
    SET status = $3, completed_at = $4, updated_by = $5, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, status, completedAt, db.ActorRef(actorID))
	if err != nil {
		return Task{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Task{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Overdue(ctx context.Context, today time.Time) ([]Overdue, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, title, assignee_id::text, due_date
    FROM tasks
    WHERE NOT is_deleted AND status IN ('todo','in_progress')
      AND assignee_id IS NOT NULL AND due_date < $1 AND overdue_notified_at IS NULL
    ORDER BY due_date, id
  `, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Overdue
	for rows.Next() {
		var item Overdue
		if err := rows.Scan(&item.ID, &item.Title, &item.AssigneeID, &item.DueDate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) MarkOverdueNotified(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE tasks SET overdue_notified_at = $2 WHERE id = $1", id, at)
	return err
}
