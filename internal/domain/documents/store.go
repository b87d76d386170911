package documents

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
	entity = "identity document"
	table  = "identity_documents"
)

const selectColumns = `
    SELECT d.id, d.employee_id::text, e.first_name || ' ' || e.last_name,
           d.document_type, d.document_number, d.issuing_country, d.issue_date, d.expiry_date,
           COALESCE(d.file_key, ''), COALESCE(d.file_name, ''), COALESCE(d.file_content_type, ''), COALESCE(d.file_size, 0),
           d.reminder_sent_at,
           d.created_at, COALESCE(d.created_by::text, ''), d.updated_at, COALESCE(d.updated_by::text, ''), d.version
    FROM identity_documents d
    JOIN employees e ON e.id = d.employee_id AND NOT e.is_deleted`

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

func scanDocument(row scanner) (Document, error) {
	var d Document
	var att storage.Attachment
	err := row.Scan(&d.ID, &d.EmployeeID, &d.EmployeeName,
		&d.DocumentType, &d.DocumentNumber, &d.IssuingCountry, &d.IssueDate, &d.ExpiryDate,
		&att.Key, &att.FileName, &att.ContentType, &att.Size,
		&d.ReminderSentAt,
		&d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy, &d.Version)
	if err != nil {
		return Document{}, err
	}
	if att.Key != "" {
		d.File = &att
	}
	return d, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Document, int, error) {
	clauses := []string{"NOT d.is_deleted"}
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		clauses = append(clauses, fmt.Sprintf("d.employee_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		clauses = append(clauses, fmt.Sprintf("d.document_type = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM identity_documents d JOIN employees e ON e.id = d.employee_id AND NOT e.is_deleted"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + fmt.Sprintf(" ORDER BY d.expiry_date NULLS LAST, d.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	d, err := scanDocument(s.DB.QueryRow(ctx, selectColumns+" WHERE d.id = $1 AND NOT d.is_deleted", id))
	if err != nil {
		return Document{}, db.MapError(err, entity)
	}
	return d, nil
}

func (s *Store) Create(ctx context.Context, in Input, actorID string) (Document, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO identity_documents (employee_id, document_type, document_number, issuing_country, issue_date, expiry_date, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
    RETURNING id
  `, in.EmployeeID, in.DocumentType, in.DocumentNumber, in.IssuingCountry, in.IssueDate, in.ExpiryDate, db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Document{}, db.MapError(err, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Update(ctx context.Context, id string, version int, in Input, actorID string) (Document, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE identity_documents
    SET employee_id = $3, document_type = $4, document_number = $5, issuing_country = $6, issue_date = $7,
        reminder_sent_at = CASE WHEN expiry_date IS DISTINCT FROM $8 THEN NULL ELSE reminder_sent_at END,
        expiry_date = $8, updated_by = $9, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, in.EmployeeID, in.DocumentType, in.DocumentNumber, in.IssuingCountry, in.IssueDate, in.ExpiryDate, db.ActorRef(actorID))
	if err != nil {
		return Document{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Document{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE identity_documents
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

func (s *Store) SetFile(ctx context.Context, id string, version int, att storage.Attachment, actorID string) (Document, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE identity_documents
    SET file_key = $3, file_name = $4, file_content_type = $5, file_size = $6,
        updated_by = $7, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, att.Key, att.FileName, att.ContentType, att.Size, db.ActorRef(actorID))
	if err != nil {
		return Document{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Document{}, db.VersionMiss(ctx, s.DB, table, id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Expiring, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT d.id, d.document_type, e.first_name || ' ' || e.last_name, COALESCE(e.user_id::text, ''), d.expiry_date
    FROM identity_documents d
    JOIN employees e ON e.id = d.employee_id
    WHERE NOT d.is_deleted AND NOT e.is_deleted
      AND d.expiry_date IS NOT NULL AND d.expiry_date >= CURRENT_DATE AND d.expiry_date <= $1
      AND d.reminder_sent_at IS NULL
    ORDER BY d.expiry_date, d.id
  `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expiring
	for rows.Next() {
		var item Expiring
		if err := rows.Scan(&item.ID, &item.DocumentType, &item.EmployeeName, &item.UserID, &item.ExpiryDate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE identity_documents SET reminder_sent_at = $2 WHERE id = $1", id, at)
	return err
}
