package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/procure-to-pay/internal"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/transport"
)

// RBACAuthorization gates routes on the actor's role. Finer rules (creator
// only, level already approved) stay in the services.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// Require lets the request through only for the listed roles.
func (ra *RBACAuthorization) Require(roles ...coreuser.Role) func(http.Handler) http.Handler {
	allowed := make(map[coreuser.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: actor not found in context")
				ra.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
				return
			}

			if _, ok := allowed[actor.Role]; !ok {
				ra.Logger.Warn("access denied: role not allowed",
					"actor_id", actor.ID,
					"role", actor.Role,
					"allowed_roles", roles)
				ra.HandleError(w, internal.ErrPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireApprover() func(http.Handler) http.Handler {
	return ra.Require(coreuser.RoleApproverL1, coreuser.RoleApproverL2)
}

func (ra *RBACAuthorization) RequireStaff() func(http.Handler) http.Handler {
	return ra.Require(coreuser.RoleStaff)
}

func (ra *RBACAuthorization) RequireFinance() func(http.Handler) http.Handler {
	return ra.Require(coreuser.RoleFinance)
}
