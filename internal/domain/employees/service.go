package employees

import (
	"context"
	"strings"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, viewer Viewer, filter Filter, limit, offset int) ([]Employee, int, error) {
	items, total, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		FilterFields(&items[i], viewer)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (Employee, error) {
	emp, err := s.store.Get(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	FilterFields(&emp, viewer)
	return emp, nil
}

// Exists reports whether a live employee with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if apperr.Is(err, apperr.CodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) IDByUserID(ctx context.Context, userID string) (string, error) {
	return s.store.IDByUserID(ctx, userID)
}

func (s *Service) Create(ctx context.Context, actorID string, in Input) (Employee, error) {
	in = normalize(in)
	if in.Status == "" {
		in.Status = StatusActive
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Employee{}, err
	}
	return s.store.Create(ctx, in, actorID)
}

func (s *Service) Update(ctx context.Context, actorID, id string, version int, in Input) (Employee, error) {
	in = normalize(in)
	if in.ManagerID == id {
		return Employee{}, apperr.Validation("an employee cannot be their own manager")
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Employee{}, err
	}
	return s.store.Update(ctx, id, version, in, actorID)
}

func (s *Service) Delete(ctx context.Context, actorID, id string, version int) error {
	hasReports, err := s.store.HasReports(ctx, id)
	if err != nil {
		return err
	}
	if hasReports {
		return apperr.Conflict("employee still manages other employees")
	}
	return s.store.Delete(ctx, id, version, actorID)
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	return db.CheckRefs(ctx, s.store,
		db.DepartmentRef("departmentId", in.DepartmentID),
		db.PositionRef("positionId", in.PositionID),
		db.EmployeeRef("managerId", in.ManagerID),
	)
}

func normalize(in Input) Input {
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.BankAccount = strings.TrimSpace(in.BankAccount)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	return in
}
