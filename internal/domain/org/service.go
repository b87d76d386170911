package org

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/cache"
	"backoffice/internal/platform/db"
)

type Service struct {
	store    StoreAPI
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewService(store StoreAPI, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{store: store, cache: c, cacheTTL: cacheTTL}
}

// ListDepartments pages over the cached department list.
func (s *Service) ListDepartments(ctx context.Context, limit, offset int) ([]Department, int, error) {
	all, err := s.allDepartments(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if offset >= total {
		return []Department{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *Service) allDepartments(ctx context.Context) ([]Department, error) {
	var cached []Department
	found, err := s.cache.GetJSON(ctx, cache.KeyDepartments, &cached)
	if err != nil {
		slog.Warn("department cache read failed", "err", err)
	}
	if found {
		return cached, nil
	}
	all, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, cache.KeyDepartments, all, s.cacheTTL); err != nil {
		slog.Warn("department cache write failed", "err", err)
	}
	return all, nil
}

func (s *Service) invalidateDepartments(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.KeyDepartments); err != nil {
		slog.Warn("department cache invalidation failed", "err", err)
	}
}

func (s *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return s.store.GetDepartment(ctx, id)
}

func (s *Service) CreateDepartment(ctx context.Context, actorID string, in DepartmentInput) (Department, error) {
	in = normalizeDepartment(in)
	if err := s.checkDepartmentRefs(ctx, in); err != nil {
		return Department{}, err
	}
	dep, err := s.store.CreateDepartment(ctx, in, actorID)
	if err != nil {
		return Department{}, err
	}
	s.invalidateDepartments(ctx)
	return dep, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, actorID, id string, version int, in DepartmentInput) (Department, error) {
	in = normalizeDepartment(in)
	if in.ParentID != "" {
		if in.ParentID == id {
			return Department{}, apperr.Validation("a department cannot be its own parent")
		}
		below, err := s.store.IsDescendant(ctx, in.ParentID, id)
		if err != nil {
			return Department{}, err
		}
		if below {
			return Department{}, apperr.Validation("parent department would create a cycle")
		}
	}
	if err := s.checkDepartmentRefs(ctx, in); err != nil {
		return Department{}, err
	}
	dep, err := s.store.UpdateDepartment(ctx, id, version, in, actorID)
	if err != nil {
		return Department{}, err
	}
	s.invalidateDepartments(ctx)
	return dep, nil
}

func (s *Service) DeleteDepartment(ctx context.Context, actorID, id string, version int) error {
	inUse, err := s.store.DepartmentInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return apperr.Conflict("department still has employees, positions or sub-departments")
	}
	if err := s.store.DeleteDepartment(ctx, id, version, actorID); err != nil {
		return err
	}
	s.invalidateDepartments(ctx)
	return nil
}

func (s *Service) ListPositions(ctx context.Context, departmentID string, limit, offset int) ([]Position, int, error) {
	return s.store.ListPositions(ctx, departmentID, limit, offset)
}

func (s *Service) GetPosition(ctx context.Context, id string) (Position, error) {
	return s.store.GetPosition(ctx, id)
}

func (s *Service) CreatePosition(ctx context.Context, actorID string, in PositionInput) (Position, error) {
	in, err := s.checkPosition(ctx, in)
	if err != nil {
		return Position{}, err
	}
	return s.store.CreatePosition(ctx, in, actorID)
}

func (s *Service) UpdatePosition(ctx context.Context, actorID, id string, version int, in PositionInput) (Position, error) {
	in, err := s.checkPosition(ctx, in)
	if err != nil {
		return Position{}, err
	}
	return s.store.UpdatePosition(ctx, id, version, in, actorID)
}

func (s *Service) DeletePosition(ctx context.Context, actorID, id string, version int) error {
	inUse, err := s.store.PositionInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return apperr.Conflict("position is referenced by employees or contracts")
	}
	return s.store.DeletePosition(ctx, id, version, actorID)
}

func (s *Service) checkPosition(ctx context.Context, in PositionInput) (PositionInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.TrimSpace(in.Code)
	in.Grade = strings.TrimSpace(in.Grade)
	if in.MinSalary.Valid && in.MaxSalary.Valid && in.MinSalary.Decimal.GreaterThan(in.MaxSalary.Decimal) {
		return in, apperr.Validation("minSalary must not exceed maxSalary")
	}
	if _, err := s.store.GetDepartment(ctx, in.DepartmentID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return in, apperr.Validation("department does not exist")
		}
		return in, err
	}
	return in, nil
}

func (s *Service) checkDepartmentRefs(ctx context.Context, in DepartmentInput) error {
	return db.CheckRefs(ctx, s.store, db.DepartmentRef("parentId", in.ParentID), db.EmployeeRef("managerId", in.ManagerID))
}

func normalizeDepartment(in DepartmentInput) DepartmentInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Description = strings.TrimSpace(in.Description)
	return in
}
