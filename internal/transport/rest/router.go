package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/auth"
	"github.com/frahmantamala/procure-to-pay/internal/metrics"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	"github.com/frahmantamala/procure-to-pay/internal/purchaserequest"
	"github.com/frahmantamala/procure-to-pay/internal/report"
	"github.com/frahmantamala/procure-to-pay/internal/transport"
	"github.com/frahmantamala/procure-to-pay/internal/transport/middleware"
	"github.com/frahmantamala/procure-to-pay/internal/transport/swagger"
	"github.com/frahmantamala/procure-to-pay/internal/user"
	"github.com/go-chi/chi"
)

const APIPrefix = "/api/v1"

type Handlers struct {
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	User     *user.Handler
	Requests *purchaserequest.Handler
	Orders   *purchaseorder.Handler
	Reports  *report.Handler
	Health   *HealthHandler
}

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Recorder
	MetricsPath    string
	OpenAPI        *OpenAPISpec
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics.Handler())
	}

	if opts.OpenAPI != nil {
		router.Handle("/openapi.yml", opts.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route(APIPrefix, func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", h.User.GetCurrentUser)

			pr.Route("/requests", func(rr chi.Router) {
				rr.Get("/", h.Requests.ListRequests)
				rr.With(h.RBAC.RequireStaff()).Post("/", h.Requests.CreateRequest)

				rr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", h.Requests.GetRequest)
					ir.Patch("/", h.Requests.UpdateRequest)
					ir.Delete("/", h.Requests.DeleteRequest)
					ir.Post("/submit-receipt", h.Requests.SubmitReceipt)

					ir.Group(func(ar chi.Router) {
						ar.Use(h.RBAC.RequireApprover())
						ar.Patch("/approve", h.Requests.ApproveRequest)
						ar.Patch("/reject", h.Requests.RejectRequest)
					})
				})
			})

			pr.Route("/purchase-orders/{number}", func(po chi.Router) {
				po.Get("/", h.Orders.GetPurchaseOrder)
				po.Get("/document.pdf", h.Orders.DownloadDocument)
			})

			pr.With(h.RBAC.RequireFinance()).Get("/reports/spend", h.Reports.GetSpend)
		})
	})

	base := transport.BaseHandler{Logger: logger}
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		base.HandleError(w, internal.NewNotFoundError("route not found", internal.ErrCodeRouteNotFound))
	})
}
