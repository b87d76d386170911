package employees

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/platform/apperr"
	cryptoutil "backoffice/internal/platform/crypto"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/querier"
)

const entity = "employee"

const selectColumns = `
    SELECT id,
           COALESCE(user_id::text, ''),
           COALESCE(employee_number, ''),
           first_name, last_name, email,
           COALESCE(phone, ''),
           date_of_birth,
           COALESCE(national_id, ''),
           national_id_enc,
           COALESCE(bank_account, ''),
           bank_account_enc,
           COALESCE(department_id::text, ''),
           COALESCE(position_id::text, ''),
           COALESCE(manager_id::text, ''),
           hire_date, termination_date, status,
           created_at, COALESCE(created_by::text, ''),
           updated_at, COALESCE(updated_by::text, ''),
           version
    FROM employees`

type Store struct {
	DB     querier.Querier
	Crypto *cryptoutil.Service
}

func NewStore(db querier.Querier, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

// MissingRef reports the first referenced row that is missing or soft-deleted.
func (s *Store) MissingRef(ctx context.Context, refs ...db.Ref) (string, error) {
	return db.MissingRef(ctx, s.DB, refs...)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (Employee, error) {
	var emp Employee
	var nationalEnc, bankEnc []byte
	var nationalPlain, bankPlain string
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.EmployeeNumber, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Phone,
		&emp.DateOfBirth, &nationalPlain, &nationalEnc, &bankPlain, &bankEnc,
		&emp.DepartmentID, &emp.PositionID, &emp.ManagerID,
		&emp.HireDate, &emp.TerminationDate, &emp.Status,
		&emp.CreatedAt, &emp.CreatedBy, &emp.UpdatedAt, &emp.UpdatedBy, &emp.Version,
	)
	if err != nil {
		return Employee{}, err
	}
	emp.NationalID = decryptStringFallback(s.Crypto, nationalEnc, nationalPlain)
	emp.BankAccount = decryptStringFallback(s.Crypto, bankEnc, bankPlain)
	return emp, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Employee, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + fmt.Sprintf(" ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		emp, err := s.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, emp)
	}
	return out, total, rows.Err()
}

func buildWhere(filter Filter) (string, []any) {
	clauses := []string{"NOT is_deleted"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.ReplaceAll(clause, "$?", fmt.Sprintf("$%d", len(args))))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("(first_name ILIKE $? OR last_name ILIKE $? OR email ILIKE $? OR employee_number ILIKE $?)", "%"+search+"%")
	}
	if filter.DepartmentID != "" {
		add("department_id = $?", filter.DepartmentID)
	}
	if filter.PositionID != "" {
		add("position_id = $?", filter.PositionID)
	}
	if filter.ManagerID != "" {
		add("manager_id = $?", filter.ManagerID)
	}
	if filter.Status != "" {
		add("status = $?", filter.Status)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) Get(ctx context.Context, id string) (Employee, error) {
	emp, err := s.scan(s.DB.QueryRow(ctx, selectColumns+" WHERE id = $1 AND NOT is_deleted", id))
	if err != nil {
		return Employee{}, db.MapError(err, entity)
	}
	return emp, nil
}

func (s *Store) Create(ctx context.Context, in Input, actorID string) (Employee, error) {
	nationalPlain, nationalEnc, err := s.sealed(in.NationalID)
	if err != nil {
		return Employee{}, err
	}
	bankPlain, bankEnc, err := s.sealed(in.BankAccount)
	if err != nil {
		return Employee{}, err
	}

	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO employees (user_id, employee_number, first_name, last_name, email, phone, date_of_birth,
                           national_id, national_id_enc, bank_account, bank_account_enc,
                           department_id, position_id, manager_id, hire_date, termination_date, status,
                           created_by, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
    RETURNING id
  `, db.NullIfEmpty(in.UserID), db.NullIfEmpty(in.EmployeeNumber), in.FirstName, in.LastName, in.Email, db.NullIfEmpty(in.Phone), in.DateOfBirth,
		nationalPlain, nationalEnc, bankPlain, bankEnc,
		db.NullIfEmpty(in.DepartmentID), db.NullIfEmpty(in.PositionID), db.NullIfEmpty(in.ManagerID), in.HireDate, in.TerminationDate, in.Status,
		db.ActorRef(actorID)).Scan(&id)
	if err != nil {
		return Employee{}, db.MapError(err, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Update(ctx context.Context, id string, version int, in Input, actorID string) (Employee, error) {
	nationalPlain, nationalEnc, err := s.sealed(in.NationalID)
	if err != nil {
		return Employee{}, err
	}
	bankPlain, bankEnc, err := s.sealed(in.BankAccount)
	if err != nil {
		return Employee{}, err
	}

	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET user_id = $3, employee_number = $4, first_name = $5, last_name = $6, email = $7, phone = $8,
        date_of_birth = $9, national_id = $10, national_id_enc = $11, bank_account = $12, bank_account_enc = $13,
        department_id = $14, position_id = $15, manager_id = $16, hire_date = $17, termination_date = $18,
        status = $19, updated_by = $20, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.NullIfEmpty(in.UserID), db.NullIfEmpty(in.EmployeeNumber), in.FirstName, in.LastName, in.Email, db.NullIfEmpty(in.Phone),
		in.DateOfBirth, nationalPlain, nationalEnc, bankPlain, bankEnc,
		db.NullIfEmpty(in.DepartmentID), db.NullIfEmpty(in.PositionID), db.NullIfEmpty(in.ManagerID), in.HireDate, in.TerminationDate,
		in.Status, db.ActorRef(actorID))
	if err != nil {
		return Employee{}, db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, db.VersionMiss(ctx, s.DB, "employees", id, entity)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string, version int, actorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET is_deleted = true, updated_by = $3, updated_at = now(), version = version + 1
    WHERE id = $1 AND version = $2 AND NOT is_deleted
  `, id, version, db.ActorRef(actorID))
	if err != nil {
		return db.MapError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return db.VersionMiss(ctx, s.DB, "employees", id, entity)
	}
	return nil
}

func (s *Store) HasReports(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM employees WHERE manager_id = $1 AND NOT is_deleted)", id).Scan(&exists)
	return exists, err
}

func (s *Store) IDByUserID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM employees WHERE user_id = $1 AND NOT is_deleted", userID).Scan(&id)
	if err != nil {
		return "", db.MapError(err, entity)
	}
	return id, nil
}

// sealed returns the value for the plaintext column and the ciphertext column.
// With a data key configured only the ciphertext is stored.
func (s *Store) sealed(value string) (any, []byte, error) {
	if value == "" {
		return nil, nil, nil
	}
	if !s.Crypto.Configured() {
		return value, nil, nil
	}
	enc, err := s.Crypto.EncryptString(value)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, "", fmt.Errorf("encrypt field: %w", err))
	}
	return nil, enc, nil
}

func decryptStringFallback(crypto *cryptoutil.Service, enc []byte, plain string) string {
	if len(enc) == 0 {
		return plain
	}
	value, err := crypto.DecryptString(enc)
	if err != nil {
		return plain
	}
	return value
}
