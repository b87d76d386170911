package certifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
	"backoffice/internal/platform/storage"
)

const (
	entity = "certification"
	table  = "certifications"
)

const selectColumns = `
    SELECT c.id, c.employee_id::text, e.first_name || ' ' || e.last_name,
           c.name, c.issuer, c.credential_id, c.issue_date, c.expiry_date,
           COALESCE(c.file_key, ''), COALESCE(c.file_name, ''), COALESCE(c.file_content_type, ''), COALESCE(c.file_size, 0),
           c.reminder_sent_at,
           c.created_at, COALESCE(c.created_by::text, ''), c.updated_at, COALESCE(c.updated_by::text, ''), c.version
    FROM certifications c
    JOIN employees e ON e.id = c.employee_id AND NOT e.is_deleted`

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

func scanCertification(row scanner) (Certification, error) {
	var c Certification
	var att storage.Attachment
	err := row.Scan(&c.ID, &c.EmployeeID, &c.EmployeeName,
		&c.Name, &c.Issuer, &c.CredentialID, &c.IssueDate, &c.ExpiryDate,
		&att.Key, &att.FileName, &att.ContentType, &att.Size,
		&c.ReminderSentAt,
		&c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy, &c.Version)
	if err != nil {
		return Certification{}, err
	}
	if att.Key != "" {
		c.Attachment = &att
	}
	return c, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Certification, int, error) {
	clauses := []string{"NOT c.is_deleted"}
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("c.employee_id = $%d", len(args)))
	}
	if filter.ExpiringWithinDays > 0 {
		args = append(args, filter.ExpiringWithinDays)
		clauses = append(clauses, fmt.Sprintf("c.expiry_date IS NOT NULL AND c.expiry_date <= CURRENT_DATE + $%d::int", len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM certifications c JOIN employees e ON e.id = c.employee_id AND NOT e.is_deleted"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + fmt.Sprintf(" ORDER BY c.expiry_date NULLS LAST, c.name, c.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Certification{}
	for rows.Next() {
		c, err := scanCertification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Certification, error) {
	c, err := scanCertification(s.DB.QueryRow(ctx, selectColumns+" WHERE c.id = $1 AND NOT c.is_deleted", id))
	if err != nil {
		return Certification{}, db.MapError(err, entity)
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, in Input, actorID string) (Certification, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO certifications (employee_id, name, issuer, credential_id, issue_date, expiry_date, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
    RETURNING id
  `, in.EmployeeID, in.Name, in.Issuer, in.CredentialID, in.IssueDate, in.ExpiryDate, db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Certification{}, db.MapError(err, entity)
	}
	return s.Get(ctx, id)
}

// Update clears reminder_sent_at when the expiry date moves so a renewed
// certification gets a fresh reminder.
func (s *Store) Update(ctx context.Context, id string, version int, in Input, actorID string) (Certification, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE certifications
    SET employee_id = $3, name = $4, issuer = $5, credential_id = $6, issue_date = $7,
        reminder_sent_at = CASE WHEN expiry_date IS DISTINCT FROM $8 THEN NULL ELSE reminder_sent_at END,
        expiry_date = $8, updated_by = $9, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.EmployeeID, in.Name, in.Issuer, in.CredentialID, in.IssueDate, in.ExpiryDate, db.ActorRef(actorID))
	if err != nil {
		return Certification{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Certification{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE certifications
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

func (s *Store) SetAttachment(ctx context.Context, id string, version int, att storage.Attachment, actorID string) (Certification, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE certifications
    SET file_key = $3, file_name = $4, file_content_type = $5, file_size = $6,
        updated_by = $7, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, att.Key, att.FileName, att.ContentType, att.Size, db.ActorRef(actorID))
	if err != nil {
		return Certification{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Certification{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Expiring, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT c.id, c.name, e.first_name || ' ' || e.last_name, COALESCE(e.user_id::text, ''), c.expiry_date
    FROM certifications c
    JOIN employees e ON e.id = c.employee_id
    WHERE NOT c.is_deleted AND NOT e.is_deleted
      AND c.expiry_date IS NOT NULL AND c.expiry_date >= CURRENT_DATE AND c.expiry_date <= $1
      AND c.reminder_sent_at IS NULL
    ORDER BY c.expiry_date, c.id
  `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expiring
	for rows.Next() {
		var item Expiring
		if err := rows.Scan(&item.ID, &item.Name, &item.EmployeeName, &item.UserID, &item.ExpiryDate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE certifications SET reminder_sent_at = $2 WHERE id = $1", id, at)
	return err
}
