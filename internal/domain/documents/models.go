package documents

import (
	"time"

	"backoffice/internal/platform/storage"
)

const (
	TypePassport        = "passport"
	TypeNationalID      = "national_id"
	TypeDriverLicense   = "driver_license"
	TypeResidencePermit = "residence_permit"
	TypeWorkPermit      = "work_permit"
)

var Types = []string{TypePassport, TypeNationalID, TypeDriverLicense, TypeResidencePermit, TypeWorkPermit}

// Document is an identity document held on file for an employee.
type Document struct {
	ID             string              `json:"id"`
	EmployeeID     string              `json:"employeeId"`
	EmployeeName   string              `json:"employeeName,omitempty"`
	DocumentType   string              `json:"documentType"`
	DocumentNumber string              `json:"documentNumber"`
	IssuingCountry string              `json:"issuingCountry"`
	IssueDate      *time.Time          `json:"issueDate,omitempty"`
	ExpiryDate     *time.Time          `json:"expiryDate,omitempty"`
	File           *storage.Attachment `json:"file,omitempty"`
	ReminderSentAt *time.Time          `json:"reminderSentAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	CreatedBy      string              `json:"createdBy,omitempty"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	UpdatedBy      string              `json:"updatedBy,omitempty"`
	Version        int                 `json:"version"`
}

type Input struct {
	EmployeeID     string
	DocumentType   string
	DocumentNumber string
	IssuingCountry string
	IssueDate      *time.Time
	ExpiryDate     *time.Time
}

type Filter struct {
	EmployeeID   string
	DocumentType string
}

type Expiring struct {
	ID           string
	DocumentType string
	EmployeeName string
	UserID       string
	ExpiryDate   time.Time
}
