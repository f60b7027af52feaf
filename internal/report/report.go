package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/transport"
	"github.com/shopspring/decimal"
)

// StatusTotal is the number and summed amount of requests in one status.
type StatusTotal struct {
	Status string          `db:"status" json:"status"`
	Count  int64           `db:"request_count" json:"count"`
	Amount decimal.Decimal `db:"total_amount" json:"total_amount"`
}

type OrderTotal struct {
	Count int64           `db:"order_count" json:"count"`
	Value decimal.Decimal `db:"total_value" json:"total_value"`
}

type SpendSummary struct {
	ByStatus       []StatusTotal `json:"by_status"`
	PurchaseOrders OrderTotal    `json:"purchase_orders"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

type Repository interface {
	TotalsByStatus(ctx context.Context) ([]StatusTotal, error)
	OrderTotals(ctx context.Context) (OrderTotal, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Spend summarises requests per status and the value of issued orders.
// Every status appears, with zero totals when no request holds it.
func (s *Service) Spend(ctx context.Context) (*SpendSummary, error) {
	rows, err := s.repo.TotalsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to total requests by status: %w", err)
	}
	orders, err := s.repo.OrderTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to total purchase orders: %w", err)
	}

	found := make(map[string]StatusTotal, len(rows))
	for _, row := range rows {
		found[row.Status] = row
	}

	byStatus := make([]StatusTotal, 0, len(statuses))
	for _, status := range statuses {
		row, ok := found[status]
		if !ok {
			row = StatusTotal{Status: status, Amount: decimal.Zero}
		}
		row.Amount = row.Amount.Round(2)
		byStatus = append(byStatus, row)
	}
	orders.Value = orders.Value.Round(2)

	return &SpendSummary{
		ByStatus:       byStatus,
		PurchaseOrders: orders,
		GeneratedAt:    s.now().UTC(),
	}, nil
}

var statuses = []string{"pending", "approved", "rejected"}

type ServiceAPI interface {
	Spend(ctx context.Context) (*SpendSummary, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Service:     service,
	}
}

// GetSpend handles GET /api/v1/reports/spend
func (h *Handler) GetSpend(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	if !actor.Is(coreuser.RoleFinance) {
		h.HandleError(w, internal.ErrPermissionDenied)
		return
	}

	summary, err := h.Service.Spend(r.Context())
	if err != nil {
		h.Logger.Error("GetSpend: report failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}
