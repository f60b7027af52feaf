package user

// Role is the single authority a user holds in the procurement workflow.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleApproverL1 Role = "approver_l1"
	RoleApproverL2 Role = "approver_l2"
	RoleFinance    Role = "finance"
)

// Approval levels of the fixed two-step chain.
const (
	LevelOne = 1
	LevelTwo = 2
)

func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleApproverL1, RoleApproverL2, RoleFinance:
		return true
	default:
		return false
	}
}

// Level reports the approval level a role acts at. Only approver roles have one.
func (r Role) Level() (int, bool) {
	switch r {
	case RoleApproverL1:
		return LevelOne, true
	case RoleApproverL2:
		return LevelTwo, true
	case RoleStaff, RoleFinance:
		return 0, false
	default:
		return 0, false
	}
}

func (r Role) IsApprover() bool {
	_, ok := r.Level()
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

func (a *Actor) Is(role Role) bool {
	return a != nil && a.Role == role
}
