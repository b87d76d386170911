package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

const entity = "contract"

const selectColumns = `
    SELECT c.id, c.employee_id::text, e.first_name || ' ' || e.last_name, COALESCE(e.user_id::text, ''),
           COALESCE(c.position_id::text, ''), c.contract_number, c.contract_type,
           c.start_date, c.end_date, c.salary, c.currency, c.working_hours, c.notes, c.status,
           COALESCE(c.submitted_by::text, ''), c.submitted_at, c.decided_at,
           c.created_at, COALESCE(c.created_by::text, ''), c.updated_at, COALESCE(c.updated_by::text, ''), c.version
    FROM contracts c
    JOIN employees e ON e.id = c.employee_id AND NOT e.is_deleted`

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

// MissingRef reports the first referenced row that is missing or soft-deleted.
func (s *Store) MissingRef(ctx context.Context, refs ...db.Ref) (string, error) {
	return db.MissingRef(ctx, s.DB, refs...)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (Contract, error) {
	var c Contract
	err := row.Scan(&c.ID, &c.EmployeeID, &c.EmployeeName, &c.EmployeeUserID,
		&c.PositionID, &c.ContractNumber, &c.Type,
		&c.StartDate, &c.EndDate, &c.Salary, &c.Currency, &c.WorkingHours, &c.Notes, &c.Status,
		&c.SubmittedBy, &c.SubmittedAt, &c.DecidedAt,
		&c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy, &c.Version)
	return c, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Contract, int, error) {
	clauses := []string{"NOT c.is_deleted"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.EmployeeID != "" {
		add("c.employee_id = $%d", filter.EmployeeID)
	}
	if filter.Status != "" {
		add("c.status = $%d", filter.Status)
	}
	if filter.Type != "" {
		add("c.contract_type = $%d", filter.Type)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM contracts c JOIN employees e ON e.id = c.employee_id AND NOT e.is_deleted"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + fmt.Sprintf(" ORDER BY c.created_at DESC, c.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Contract, error) {
	c, err := scanContract(s.DB.QueryRow(ctx, selectColumns+" WHERE c.id = $1 AND NOT c.is_deleted", id))
	if err != nil {
		return Contract{}, db.MapError(err, entity)
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, in Input, actorID string) (Contract, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO contracts (employee_id, position_id, contract_number, contract_type, start_date, end_date,
                           salary, currency, working_hours, notes, status, created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'draft',$11,$11)
    RETURNING id
  `, in.EmployeeID, db.NullIfEmpty(in.PositionID), in.ContractNumber, in.Type, in.StartDate, in.EndDate,
		in.Salary, in.Currency, in.WorkingHours, in.Notes, db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Contract{}, db.MapError(err, entity)
	}
	return s.Get(ctx, id)
}

// UpdateDraft rewrites a contract that is still a draft.
func (s *Store) UpdateDraft(ctx context.Context, id string, version int, in Input, actorID string) (Contract, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE contracts
    SET employee_id = $3, position_id = $4, contract_number = $5, contract_type = $6, start_date = $7, end_date = $8,
        salary = $9, currency = $10, working_hours = $11, notes = $12,
        updated_by = $13, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND status = 'draft' AND NOT is_deleted
  `, id, version, in.EmployeeID, db.NullIfEmpty(in.PositionID), in.ContractNumber, in.Type, in.StartDate, in.EndDate,
		in.Salary, in.Currency, in.WorkingHours, in.Notes, db.ActorRef(actorID))
	if err != nil {
		return Contract{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Contract{}, s.draftMiss(ctx, id)
	}
	return s.Get(ctx, id)
}

func (s *Store) DeleteDraft(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE contracts
    SET is_deleted = true, updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND status = 'draft' AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return s.draftMiss(ctx, id)
	}
	return nil
}

func (s *Store) draftMiss(ctx context.Context, id string) error {
	var status string
	err := s.DB.QueryRow(ctx, "SELECT status FROM contracts WHERE id = $1 AND NOT is_deleted", id).Scan(&status)
	if err != nil {
		return db.MapError(err, entity)
	}
	if !CanEdit(status) {
		return apperr.InvalidState("only draft contracts can be modified")
	}
	return apperr.VersionConflict(entity)
}

func (s *Store) Approvals(ctx context.Context, contractID string) ([]Approval, error) {
	return loadApprovals(ctx, s.DB, contractID, false)
}

func loadApprovals(ctx context.Context, q querier.Querier, contractID string, forUpdate bool) ([]Approval, error) {
	query := `
    SELECT id, contract_id, step_order, required_role, status, COALESCE(approver_id::text, ''), comment, decided_at
    FROM contract_approvals
    WHERE contract_id = $1
    ORDER BY step_order`
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Approval{}
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.ContractID, &a.StepOrder, &a.RequiredRole, &a.Status, &a.ApproverID, &a.Comment, &a.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Transition locks the contract row, checks the caller's version, applies fn
// and persists the contract and its approval chain in one transaction.
func (s *Store) Transition(ctx context.Context, id string, version int, actorID string, fn TransitionFunc) (Contract, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Contract{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := scanContract(tx.QueryRow(ctx, selectColumns+" WHERE c.id = $1 AND NOT c.is_deleted FOR UPDATE OF c", id))
	if err != nil {
		return Contract{}, db.MapError(err, entity)
	}
	if c.Version != version {
		return Contract{}, apperr.VersionConflict(entity)
	}
	steps, err := loadApprovals(ctx, tx, id, true)
	if err != nil {
		return Contract{}, err
	}

	steps, err = fn(&c, steps)
	if err != nil {
		return Contract{}, err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE contracts
    SET status = $2, submitted_by = $3, submitted_at = $4, decided_at = $5,
        updated_by = $6, updated_at = now(), version = version + 1
    WHERE id = $1
  `, id, c.Status, db.ActorRef(c.SubmittedBy), c.SubmittedAt, c.DecidedAt, db.ActorRef(actorID)); err != nil {
		return Contract{}, db.MapError(err, entity)
	}
	if err := saveApprovals(ctx, tx, id, steps); err != nil {
		return Contract{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Contract{}, err
	}

	out, err := s.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	out.Approvals, err = s.Approvals(ctx, id)
	return out, err
}

func saveApprovals(ctx context.Context, tx pgx.Tx, contractID string, steps []Approval) error {
	replace := false
	for _, step := range steps {
		if step.ID == "" {
			replace = true
			break
		}
	}
	if replace {
		if _, err := tx.Exec(ctx, "DELETE FROM contract_approvals WHERE contract_id = $1", contractID); err != nil {
			return err
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, `
        INSERT INTO contract_approvals (contract_id, step_order, required_role, status, approver_id, comment, decided_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
      `, contractID, step.StepOrder, step.RequiredRole, step.Status, db.ActorRef(step.ApproverID), step.Comment, step.DecidedAt); err != nil {
				return err
			}
		}
		return nil
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, `
      UPDATE contract_approvals
      SET status = $2, approver_id = $3, comment = $4, decided_at = $5
      WHERE id = $1
    `, step.ID, step.Status, db.ActorRef(step.ApproverID), step.Comment, step.DecidedAt); err != nil {
			return err
		}
	}
	return nil
}
