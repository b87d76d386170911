package org

import (
	"context"

	"backoffice/internal/platform/db"
)

type StoreAPI interface {
	db.RefChecker

	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput, actorID string) (Department, error)
	UpdateDepartment(ctx context.Context, id string, version int, in DepartmentInput, actorID string) (Department, error)
	DeleteDepartment(ctx context.Context, id string, version int, actorID string) error
	DepartmentInUse(ctx context.Context, id string) (bool, error)
	IsDescendant(ctx context.Context, candidateID, ancestorID string) (bool, error)

	ListPositions(ctx context.Context, departmentID string, limit, offset int) ([]Position, int, error)
	GetPosition(ctx context.Context, id string) (Position, error)
	CreatePosition(ctx context.Context, in PositionInput, actorID string) (Position, error)
	UpdatePosition(ctx context.Context, id string, version int, in PositionInput, actorID string) (Position, error)
	DeletePosition(ctx context.Context, id string, version int, actorID string) error
	PositionInUse(ctx context.Context, id string) (bool, error)
}
