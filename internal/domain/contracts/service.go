package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain/notifications"
	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/db"
)

type Service struct {
	store    StoreAPI
	notifier notifications.Notifier
	chain    []string
	now      func() time.Time
}

func NewService(store StoreAPI, notifier notifications.Notifier, approvalChain []string) *Service {
	chain := make([]string, 0, len(approvalChain))
	for _, role := range approvalChain {
		if role = strings.TrimSpace(role); role != "" {
			chain = append(chain, role)
		}
	}
	return &Service{store: store, notifier: notifier, chain: chain, now: time.Now}
}

// ApprovalChain returns the roles that must sign off, in order.
func (s *Service) ApprovalChain() []string {
	return append([]string(nil), s.chain...)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Contract, int, error) {
	return s.store.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	c.Approvals, err = s.store.Approvals(ctx, id)
	return c, err
}

func (s *Service) Approvals(ctx context.Context, id string) ([]Approval, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Approvals(ctx, id)
}

func (s *Service) Create(ctx context.Context, actorID string, in Input) (Contract, error) {
	in, err := normalize(in)
	if err != nil {
		return Contract{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Contract{}, err
	}
	return s.store.Create(ctx, in, actorID)
}

func (s *Service) Update(ctx context.Context, actorID, id string, version int, in Input) (Contract, error) {
	in, err := normalize(in)
	if err != nil {
		return Contract{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Contract{}, err
	}
	return s.store.UpdateDraft(ctx, id, version, in, actorID)
}

func (s *Service) Delete(ctx context.Context, actorID, id string, version int) error {
	return s.store.DeleteDraft(ctx, id, version, actorID)
}

func (s *Service) Submit(ctx context.Context, actor Actor, id string, version int) (Contract, error) {
	now := s.now().UTC()
	c, err := s.store.Transition(ctx, id, version, actor.ID, func(c *Contract, _ []Approval) ([]Approval, error) {
		return Submit(c, s.chain, actor, now)
	})
	if err != nil {
		return Contract{}, err
	}
	if idx, ok := CurrentStep(c.Approvals); ok {
		s.notifyRole(ctx, c.Approvals[idx].RequiredRole, actor.UserID, notifications.TypeContractApprovalRequired,
			"Contract awaiting approval",
			fmt.Sprintf("Contract %s for %s needs your approval (step %d).", c.ContractNumber, c.EmployeeName, c.Approvals[idx].StepOrder))
	}
	return c, nil
}

func (s *Service) Approve(ctx context.Context, actor Actor, id string, version int, comment string) (Contract, error) {
	now := s.now().UTC()
	var next *Approval
	c, err := s.store.Transition(ctx, id, version, actor.ID, func(c *Contract, steps []Approval) ([]Approval, error) {
		pending, err := Approve(c, steps, actor, comment, now)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			copied := *pending
			next = &copied
		}
		return steps, nil
	})
	if err != nil {
		return Contract{}, err
	}
	if next != nil {
		s.notifyRole(ctx, next.RequiredRole, actor.UserID, notifications.TypeContractApprovalRequired,
			"Contract awaiting approval",
			fmt.Sprintf("Contract %s for %s needs your approval (step %d).", c.ContractNumber, c.EmployeeName, next.StepOrder))
		return c, nil
	}
	s.notifyUser(ctx, c.SubmittedBy, notifications.TypeContractApproved,
		"Contract approved", fmt.Sprintf("Contract %s for %s has been approved.", c.ContractNumber, c.EmployeeName))
	return c, nil
}

func (s *Service) Reject(ctx context.Context, actor Actor, id string, version int, comment string) (Contract, error) {
	now := s.now().UTC()
	c, err := s.store.Transition(ctx, id, version, actor.ID, func(c *Contract, steps []Approval) ([]Approval, error) {
		return steps, Reject(c, steps, actor, comment, now)
	})
	if err != nil {
		return Contract{}, err
	}
	s.notifyUser(ctx, c.SubmittedBy, notifications.TypeContractRejected,
		"Contract rejected", fmt.Sprintf("Contract %s for %s was rejected: %s", c.ContractNumber, c.EmployeeName, strings.TrimSpace(comment)))
	return c, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, id string, version int) (Contract, error) {
	now := s.now().UTC()
	wasPending := false
	c, err := s.store.Transition(ctx, id, version, actor.ID, func(c *Contract, steps []Approval) ([]Approval, error) {
		wasPending = c.Status == StatusPending
		return steps, Cancel(c, steps, now)
	})
	if err != nil {
		return Contract{}, err
	}
	if wasPending && c.SubmittedBy != actor.UserID {
		s.notifyUser(ctx, c.SubmittedBy, notifications.TypeContractCancelled,
			"Contract cancelled", fmt.Sprintf("Contract %s for %s was cancelled.", c.ContractNumber, c.EmployeeName))
	}
	return c, nil
}

// PDF renders an approved contract.
func (s *Service) PDF(ctx context.Context, id string) (Contract, []byte, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Contract{}, nil, err
	}
	if c.Status != StatusApproved {
		return Contract{}, nil, apperr.InvalidState("only approved contracts can be exported")
	}
	data, err := RenderPDF(c)
	if err != nil {
		return Contract{}, nil, fmt.Errorf("render contract pdf: %w", err)
	}
	return c, data, nil
}

func (s *Service) notifyRole(ctx context.Context, role, excludeUserID, ntype, title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRole(ctx, role, excludeUserID, ntype, title, body); err != nil {
		slog.Warn("contract role notification failed", "err", err, "role", role)
	}
}

func (s *Service) notifyUser(ctx context.Context, userID, ntype, title, body string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, ntype, title, body); err != nil {
		slog.Warn("contract notification failed", "err", err, "userId", userID)
	}
}

func (s *Service) checkRefs(ctx context.Context, in Input) error {
	return db.CheckRefs(ctx, s.store, db.EmployeeRef("employeeId", in.EmployeeID), db.PositionRef("positionId", in.PositionID))
}

func normalize(in Input) (Input, error) {
	in.ContractNumber = strings.TrimSpace(in.ContractNumber)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Type == TypeFixedTerm && in.EndDate == nil {
		return in, apperr.Validation("endDate is required for fixed_term contracts")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return in, apperr.Validation("endDate must be on or after startDate")
	}
	if !in.Salary.GreaterThan(decimal.Zero) {
		return in, apperr.Validation("salary must be greater than zero")
	}
	if in.Salary.GreaterThan(MaxSalary) {
		return in, apperr.Validation("salary is too large")
	}
	if in.WorkingHours == 0 {
		in.WorkingHours = 40
	}
	if in.WorkingHours < 1 || in.WorkingHours > 80 {
		return in, apperr.Validation("workingHours must be between 1 and 80")
	}
	return in, nil
}
