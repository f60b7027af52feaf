package purchaserequest

import (
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
)

type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeReviewer
	ScopeAll
)

// Visibility is the row filter applied to every read for one actor.
type Visibility struct {
	Scope   Scope
	ActorID int64
	Level   int
}

func VisibilityFor(actor *coreuser.Actor) Visibility {
	if actor == nil {
		return Visibility{Scope: ScopeNone}
	}
	switch actor.Role {
	case coreuser.RoleStaff:
		return Visibility{Scope: ScopeOwn, ActorID: actor.ID}
	case coreuser.RoleApproverL1, coreuser.RoleApproverL2:
		level, _ := actor.Role.Level()
		return Visibility{Scope: ScopeReviewer, ActorID: actor.ID, Level: level}
	case coreuser.RoleFinance:
		return Visibility{Scope: ScopeAll, ActorID: actor.ID}
	default:
		return Visibility{Scope: ScopeNone, ActorID: actor.ID}
	}
}

// Allows evaluates the filter against a loaded request. Approvals must be
// loaded. It agrees with the repository's list query.
func (v Visibility) Allows(pr *PurchaseRequest) bool {
	switch v.Scope {
	case ScopeAll:
		return true
	case ScopeOwn:
		return pr.CreatedByID == v.ActorID
	case ScopeReviewer:
		if pr.ReviewedBy(v.ActorID) {
			return true
		}
		return pr.Status == StatusPending && !pr.HasApprovedLevel(v.Level)
	case ScopeNone:
		return false
	default:
		return false
	}
}
