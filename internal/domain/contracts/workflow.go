package contracts

import (
	"strconv"
	"strings"
	"time"

	"backoffice/internal/platform/apperr"
)

// BuildSteps lays out one approval step per role in chain. The first step is
// immediately actionable; the rest wait their turn.
func BuildSteps(contractID string, chain []string) []Approval {
	steps := make([]Approval, 0, len(chain))
	for i, role := range chain {
		status := StepWaiting
		if i == 0 {
			status = StepPending
		}
		steps = append(steps, Approval{
			ContractID:   contractID,
			StepOrder:    i + 1,
			RequiredRole: strings.TrimSpace(role),
			Status:       status,
		})
	}
	return steps
}

// CurrentStep returns the index of the lowest pending step.
func CurrentStep(steps []Approval) (int, bool) {
	idx := -1
	for i, step := range steps {
		if step.Status != StepPending {
			continue
		}
		if idx == -1 || step.StepOrder < steps[idx].StepOrder {
			idx = i
		}
	}
	return idx, idx >= 0
}

func nextWaiting(steps []Approval, after int) (int, bool) {
	idx := -1
	for i, step := range steps {
		if step.Status != StepWaiting || step.StepOrder <= after {
			continue
		}
		if idx == -1 || step.StepOrder < steps[idx].StepOrder {
			idx = i
		}
	}
	return idx, idx >= 0
}

func CanEdit(status string) bool {
	return status == StatusDraft
}

func CanSubmit(status string) bool {
	return status == StatusDraft || status == StatusRejected
}

func CanCancel(status string) bool {
	return status == StatusDraft || status == StatusPending
}

// authorize checks that actor may decide the current step of c.
func authorize(c *Contract, steps []Approval, actor Actor) (int, error) {
	if c.Status != StatusPending {
		return -1, apperr.InvalidState("contract is not awaiting approval")
	}
	idx, ok := CurrentStep(steps)
	if !ok {
		return -1, apperr.InvalidState("contract has no pending approval step")
	}
	if actor.UserID != "" && actor.UserID == c.EmployeeUserID {
		return -1, apperr.Forbidden("you cannot approve your own contract")
	}
	if !actor.IsAdmin && !strings.EqualFold(actor.RoleName, steps[idx].RequiredRole) {
		return -1, apperr.Forbidden("step " + strconv.Itoa(steps[idx].StepOrder) + " requires role " + steps[idx].RequiredRole)
	}
	return idx, nil
}

// Submit starts (or restarts) the approval chain.
func Submit(c *Contract, chain []string, actor Actor, now time.Time) ([]Approval, error) {
	if !CanSubmit(c.Status) {
		return nil, apperr.InvalidState("only draft or rejected contracts can be submitted")
	}
	if len(chain) == 0 {
		return nil, apperr.InvalidState("no approval chain is configured")
	}
	c.Status = StatusPending
	c.SubmittedBy = actor.UserID
	c.SubmittedAt = &now
	c.DecidedAt = nil
	return BuildSteps(c.ID, chain), nil
}

// Approve signs off the current step. It returns the step that became
// pending, or nil when the chain completed and the contract is approved.
func Approve(c *Contract, steps []Approval, actor Actor, comment string, now time.Time) (*Approval, error) {
	idx, err := authorize(c, steps, actor)
	if err != nil {
		return nil, err
	}
	steps[idx].Status = StepApproved
	steps[idx].ApproverID = actor.ID
	steps[idx].Comment = strings.TrimSpace(comment)
	steps[idx].DecidedAt = &now

	if next, ok := nextWaiting(steps, steps[idx].StepOrder); ok {
		steps[next].Status = StepPending
		return &steps[next], nil
	}
	c.Status = StatusApproved
	c.DecidedAt = &now
	return nil, nil
}

// Reject declines the current step and cancels every step after it.
func Reject(c *Contract, steps []Approval, actor Actor, comment string, now time.Time) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return apperr.Validation("a comment is required when rejecting")
	}
	idx, err := authorize(c, steps, actor)
	if err != nil {
		return err
	}
	steps[idx].Status = StepRejected
	steps[idx].ApproverID = actor.ID
	steps[idx].Comment = comment
	steps[idx].DecidedAt = &now
	for i := range steps {
		if steps[i].Status == StepWaiting {
			steps[i].Status = StepCancelled
		}
	}
	c.Status = StatusRejected
	c.DecidedAt = &now
	return nil
}

func Cancel(c *Contract, steps []Approval, now time.Time) error {
	if !CanCancel(c.Status) {
		return apperr.InvalidState("only draft or pending contracts can be cancelled")
	}
	for i := range steps {
		if steps[i].Status == StepPending || steps[i].Status == StepWaiting {
			steps[i].Status = StepCancelled
			steps[i].DecidedAt = &now
		}
	}
	c.Status = StatusCancelled
	c.DecidedAt = &now
	return nil
}
