package org

import (
	"time"

	"github.com/shopspring/decimal"
)

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parentId,omitempty"`
	ManagerID   string    `json:"managerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	Version     int       `json:"version"`
}

type DepartmentInput struct {
	Name        string
	Code        string
	Description string
	ParentID    string
	ManagerID   string
}

type Position struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Code         string              `json:"code,omitempty"`
	DepartmentID string              `json:"departmentId"`
	Grade        string              `json:"grade,omitempty"`
	MinSalary    decimal.NullDecimal `json:"minSalary"`
	MaxSalary    decimal.NullDecimal `json:"maxSalary"`
	Description  string              `json:"description,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	CreatedBy    string              `json:"createdBy,omitempty"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	UpdatedBy    string              `json:"updatedBy,omitempty"`
	Version      int                 `json:"version"`
}

type PositionInput struct {
	Title        string
	Code         string
	DepartmentID string
	Grade        string
	MinSalary    decimal.NullDecimal
	MaxSalary    decimal.NullDecimal
	Description  string
}
