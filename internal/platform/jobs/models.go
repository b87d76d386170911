package jobs

import (
	"context"
	"encoding/json"
	"time"
)

const (
	JobCertificationExpiry = "certification_expiry"
	JobDocumentExpiry      = "document_expiry"
	JobTaskOverdue         = "task_overdue"
	JobSessionCleanup      = "session_cleanup"
	JobAuditRetention      = "audit_retention"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Func performs one run of a job and returns details stored with the run.
type Func func(ctx context.Context) (any, error)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Trigger     string          `json:"trigger"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}
