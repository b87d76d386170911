package employees

import "time"

const (
	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusTerminated = "terminated"
)

var Statuses = []string{StatusActive, StatusOnLeave, StatusTerminated}

type Employee struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId,omitempty"`
	EmployeeNumber  string     `json:"employeeNumber,omitempty"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	DateOfBirth     *time.Time `json:"dateOfBirth,omitempty"`
	NationalID      string     `json:"nationalId,omitempty"`
	BankAccount     string     `json:"bankAccount,omitempty"`
	DepartmentID    string     `json:"departmentId,omitempty"`
	PositionID      string     `json:"positionId,omitempty"`
	ManagerID       string     `json:"managerId,omitempty"`
	HireDate        *time.Time `json:"hireDate,omitempty"`
	TerminationDate *time.Time `json:"terminationDate,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	UpdatedBy       string     `json:"updatedBy,omitempty"`
	Version         int        `json:"version"`
}

// Input carries the writable fields of create and update.
type Input struct {
	UserID          string
	EmployeeNumber  string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	DateOfBirth     *time.Time
	NationalID      string
	BankAccount     string
	DepartmentID    string
	PositionID      string
	ManagerID       string
	HireDate        *time.Time
	TerminationDate *time.Time
	Status          string
}

type Filter struct {
	Search       string
	DepartmentID string
	PositionID   string
	ManagerID    string
	Status       string
}

// Viewer decides which fields of a record the caller may see.
type Viewer struct {
	UserID     string
	Privileged bool
}
