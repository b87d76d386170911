package tasks

import "time"

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusDone, StatusCancelled}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusTodo:       {StatusInProgress, StatusDone, StatusCancelled},
	StatusInProgress: {StatusTodo, StatusDone, StatusCancelled},
	StatusDone:       {StatusInProgress},
	StatusCancelled:  {StatusTodo},
}

type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	AssigneeID        string     `json:"assigneeId,omitempty"`
	AssigneeEmail     string     `json:"assigneeEmail,omitempty"`
	EmployeeID        string     `json:"employeeId,omitempty"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	OverdueNotifiedAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	CreatedBy         string     `json:"createdBy,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	UpdatedBy         string     `json:"updatedBy,omitempty"`
	Version           int        `json:"version"`
}

type Input struct {
	Title       string
	Description string
	AssigneeID  string
	EmployeeID  string
	Priority    string
	DueDate     *time.Time
}

type Filter struct {
	AssigneeID string
	EmployeeID string
	Status     string
	Priority   string
	Overdue    bool
}

// Viewer is the caller of a task operation. Without Manage the caller only
// sees and updates tasks assigned to them.
type Viewer struct {
	ActorID string
	UserID  string
	Manage  bool
}

func (v Viewer) canSee(t Task) bool {
	return v.Manage || (v.UserID != "" && t.AssigneeID == v.UserID)
}

// Overdue is an open task past its due date that has not been reported yet.
type Overdue struct {
	ID         string
	Title      string
	AssigneeID string
	DueDate    time.Time
}
