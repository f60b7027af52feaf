package purchaserequest

import (
	"github.com/frahmantamala/procure-to-pay/internal"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
)

// requiredLevels are the levels that must each hold an approved decision.
var requiredLevels = []int{coreuser.LevelOne, coreuser.LevelTwo}

// reviewLevel checks that pr can be reviewed by actor and returns the level
// the actor reviews at. State is checked before role.
func reviewLevel(pr *PurchaseRequest, actor *coreuser.Actor) (int, error) {
	if pr.Status != StatusPending {
		return 0, internal.ErrInvalidState
	}
	if actor == nil {
		return 0, internal.ErrPermissionDenied
	}
	level, ok := actor.Role.Level()
	if !ok {
		return 0, internal.ErrPermissionDenied
	}
	return level, nil
}

// checkEditable enforces that only the creating staff member edits, and only
// while the request is pending.
func checkEditable(pr *PurchaseRequest, actor *coreuser.Actor) error {
	if actor == nil || !actor.Is(coreuser.RoleStaff) || pr.CreatedByID != actor.ID {
		return internal.ErrPermissionDenied
	}
	if pr.Status.Terminal() {
		return internal.ErrInvalidState
	}
	return nil
}

func (pr *PurchaseRequest) HasApprovedLevel(level int) bool {
	for _, a := range pr.Approvals {
		if a.Level == level && a.Decision == DecisionApproved {
			return true
		}
	}
	return false
}

func (pr *PurchaseRequest) ReviewedBy(actorID int64) bool {
	for _, a := range pr.Approvals {
		if a.ApproverID == actorID {
			return true
		}
	}
	return false
}

// FullyApproved reports whether every required level has an approval.
func (pr *PurchaseRequest) FullyApproved() bool {
	for _, level := range requiredLevels {
		if !pr.HasApprovedLevel(level) {
			return false
		}
	}
	return true
}

// applyApproval records an approved decision and advances the status. It
// returns false when the level was already approved and nothing changed.
func (pr *PurchaseRequest) applyApproval(a Approval) bool {
	if pr.HasApprovedLevel(a.Level) {
		return false
	}
	a.Decision = DecisionApproved
	pr.Approvals = append(pr.Approvals, a)
	if pr.FullyApproved() {
		pr.Status = StatusApproved
	}
	return true
}

// applyRejection records a rejection. Rejection is final whatever was
// approved before.
func (pr *PurchaseRequest) applyRejection(a Approval) {
	a.Decision = DecisionRejected
	pr.Approvals = append(pr.Approvals, a)
	pr.Status = StatusRejected
}
