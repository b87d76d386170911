package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"backoffice/internal/domain/notifications"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
)

type Service struct {
	store    StoreAPI
	notifier notifications.Notifier
	now      func() time.Time
}

func NewService(store StoreAPI, notifier notifications.Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

func (s *Service) List(ctx context.Context, viewer Viewer, filter Filter, limit, offset int) ([]Task, int, error) {
	if !viewer.Manage {
		if viewer.UserID == "" {
			return []Task{}, 0, nil
		}
		filter.AssigneeID = viewer.UserID
	}
	return s.store.List(ctx, filter, limit, offset)
}

// Get hides tasks the viewer may not see behind not_found.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !viewer.canSee(t) {
		return Task{}, apperr.NotFound("task not found")
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, viewer Viewer, in Input) (Task, error) {
	in, err := normalize(in)
	if err != nil {
		return Task{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Task{}, err
	}
	t, err := s.store.Create(ctx, in, viewer.ActorID)
	if err != nil {
		return Task{}, err
	}
	s.notifyAssigned(ctx, viewer, t)
	return t, nil
}

func (s *Service) Update(ctx context.Context, viewer Viewer, id string, version int, in Input) (Task, error) {
	in, err := normalize(in)
	if err != nil {
		return Task{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Task{}, err
	}
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	t, err := s.store.Update(ctx, id, version, in, viewer.ActorID)
	if err != nil {
		return Task{}, err
	}
	if t.AssigneeID != before.AssigneeID {
		s.notifyAssigned(ctx, viewer, t)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, viewer Viewer, id string, version int) error {
	return s.store.Delete(ctx, id, version, viewer.ActorID)
}

// ChangeStatus moves a task along its lifecycle. Completing a task stamps
// completedAt; leaving done clears it.
func (s *Service) ChangeStatus(ctx context.Context, viewer Viewer, id string, version int, status string) (Task, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !slices.Contains(Statuses, status) {
		return Task{}, apperr.Validation("status must be one of: " + strings.Join(Statuses, ", "))
	}
	t, err := s.Get(ctx, viewer, id)
	if err != nil {
		return Task{}, err
	}
	if t.Status == status {
		return t, nil
	}
	if !slices.Contains(transitions[t.Status], status) {
		return Task{}, apperr.InvalidState(fmt.Sprintf("cannot move a task from %s to %s", t.Status, status))
	}
	var completedAt *time.Time
	if status == StatusDone {
		now := s.now().UTC()
		completedAt = &now
	}
	return s.store.SetStatus(ctx, id, version, status, completedAt, viewer.ActorID)
}

// NotifyOverdue tells assignees about open tasks past their due date, once
// per task.
func (s *Service) NotifyOverdue(ctx context.Context) (any, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	items, err := s.store.Overdue(ctx, today)
	if err != nil {
		return nil, err
	}
	notified := 0
	for _, item := range items {
		if s.notifier != nil {
			body := fmt.Sprintf("Task %q was due on %s.", item.Title, item.DueDate.Format(time.DateOnly))
			if err := s.notifier.Notify(ctx, item.AssigneeID, notifications.TypeTaskOverdue, "Task overdue", body); err != nil {
				slog.Warn("overdue task notification failed", "err", err, "taskId", item.ID)
				continue
			}
			notified++
		}
		if err := s.store.MarkOverdueNotified(ctx, item.ID, now); err != nil {
			return nil, fmt.Errorf("mark task %s notified: %w", item.ID, err)
		}
	}
	return map[string]any{"overdue": len(items), "notified": notified}, nil
}

func (s *Service) notifyAssigned(ctx context.Context, viewer Viewer, t Task) {
	if s.notifier == nil || t.AssigneeID == "" || t.AssigneeID == viewer.UserID {
		return
	}
	body := fmt.Sprintf("You have been assigned %q.", t.Title)
	if t.DueDate != nil {
		body = fmt.Sprintf("You have been assigned %q, due %s.", t.Title, t.DueDate.Format(time.DateOnly))
	}
	if err := s.notifier.Notify(ctx, t.AssigneeID, notifications.TypeTaskAssigned, "New task assigned", body); err != nil {
		slog.Warn("task assignment notification failed", "err", err, "taskId", t.ID)
	}
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	return db.CheckRefs(ctx, s.store, db.EmployeeRef("employeeId", in.EmployeeID))
}

func normalize(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	if in.Title == "" {
		return in, apperr.Validation("title is required")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(Priorities, in.Priority) {
		return in, apperr.Validation("priority must be one of: " + strings.Join(Priorities, ", "))
	}
	return in, nil
}
