package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/procure-to-pay/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
)

type User struct {
	ID           int64         `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"-"`
	Role         coreuser.Role `json:"role"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Profile is the current user as returned by /users/me, with what the role
// lets them do in the workflow.
type Profile struct {
	*User
	ApprovalLevel *int     `json:"approval_level,omitempty"`
	Capabilities  []string `json:"capabilities"`
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

// Capabilities lists the workflow operations open to the user's role.
func Capabilities(role coreuser.Role) []string {
	switch role {
	case coreuser.RoleStaff:
		return []string{"request:create", "request:update_own", "request:delete_own", "receipt:submit"}
	case coreuser.RoleApproverL1, coreuser.RoleApproverL2:
		return []string{"request:review", "request:approve", "request:reject"}
	case coreuser.RoleFinance:
		return []string{"request:read_all", "purchase_order:read", "report:read"}
	default:
		return []string{}
	}
}

func ProfileOf(u *User) *Profile {
	p := &Profile{User: u, Capabilities: Capabilities(u.Role)}
	if u.Role.IsApprover() {
		level, _ := u.Role.Level()
		p.ApprovalLevel = &level
	}
	return p
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         coreuser.Role(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
