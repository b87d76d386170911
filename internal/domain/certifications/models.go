package certifications

import (
	"time"

	"backoffice/internal/platform/storage"
)

type Certification struct {
	ID             string              `json:"id"`
	EmployeeID     string              `json:"employeeId"`
	EmployeeName   string              `json:"employeeName,omitempty"`
	Name           string              `json:"name"`
	Issuer         string              `json:"issuer,omitempty"`
	CredentialID   string              `json:"credentialId,omitempty"`
	IssueDate      time.Time           `json:"issueDate"`
	ExpiryDate     *time.Time          `json:"expiryDate,omitempty"`
	Attachment     *storage.Attachment `json:"attachment,omitempty"`
	ReminderSentAt *time.Time          `json:"reminderSentAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	CreatedBy      string              `json:"createdBy,omitempty"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	UpdatedBy      string              `json:"updatedBy,omitempty"`
	Version        int                 `json:"version"`
}

type Input struct {
	EmployeeID   string
	Name         string
	Issuer       string
	CredentialID string
	IssueDate    time.Time
	ExpiryDate   *time.Time
}

type Filter struct {
	EmployeeID string
	// ExpiringWithinDays limits results to certifications expiring in the
	// next n days. Zero disables the filter.
	ExpiringWithinDays int
}

// Expiring is a certification due for a reminder.
type Expiring struct {
	ID           string
	Name         string
	EmployeeName string
	UserID       string
	ExpiryDate   time.Time
}
