package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	StepWaiting   = "waiting"
	StepPending   = "pending"
	StepApproved  = "approved"
	StepRejected  = "rejected"
	StepCancelled = "cancelled"
)

const (
	TypePermanent   = "permanent"
	TypeFixedTerm   = "fixed_term"
	TypeInternship  = "internship"
	TypeConsultancy = "consultancy"
)

// MaxSalary is the largest amount a NUMERIC(14,2) salary column holds.
var MaxSalary = decimal.RequireFromString("999999999999.99")

var (
	Types    = []string{TypePermanent, TypeFixedTerm, TypeInternship, TypeConsultancy}
	Statuses = []string{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled}
)

type Contract struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	EmployeeName   string          `json:"employeeName,omitempty"`
	EmployeeUserID string          `json:"-"`
	PositionID     string          `json:"positionId,omitempty"`
	ContractNumber string          `json:"contractNumber"`
	Type           string          `json:"type"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        *time.Time      `json:"endDate,omitempty"`
	Salary         decimal.Decimal `json:"salary"`
	Currency       string          `json:"currency"`
	WorkingHours   int             `json:"workingHours"`
	Notes          string          `json:"notes,omitempty"`
	Status         string          `json:"status"`
	SubmittedBy    string          `json:"submittedBy,omitempty"`
	SubmittedAt    *time.Time      `json:"submittedAt,omitempty"`
	DecidedAt      *time.Time      `json:"decidedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	UpdatedBy      string          `json:"updatedBy,omitempty"`
	Version        int             `json:"version"`
	Approvals      []Approval      `json:"approvals,omitempty"`
}

type Approval struct {
	ID           string     `json:"id"`
	ContractID   string     `json:"contractId"`
	StepOrder    int        `json:"stepOrder"`
	RequiredRole string     `json:"requiredRole"`
	Status       string     `json:"status"`
	ApproverID   string     `json:"approverId,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
}

type Input struct {
	EmployeeID     string
	PositionID     string
	ContractNumber string
	Type           string
	StartDate      time.Time
	EndDate        *time.Time
	Salary         decimal.Decimal
	Currency       string
	WorkingHours   int
	Notes          string
}

type Filter struct {
	EmployeeID string
	Status     string
	Type       string
}

// Actor is the principal performing a workflow transition.
type Actor struct {
	ID       string
	UserID   string
	RoleName string
	IsAdmin  bool
}
