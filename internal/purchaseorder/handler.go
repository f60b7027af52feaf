package purchaseorder

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/frahmantamala/procure-to-pay/internal"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/transport"
	"github.com/go-chi/chi"
)

// AccessChecker reports whether the actor may see the request an order
// belongs to.
type AccessChecker interface {
	CanViewPurchaseOrder(ctx context.Context, actor *coreuser.Actor, orderID int64) (bool, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Access  AccessChecker
}

func NewHandler(service ServiceAPI, access AccessChecker, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Service:     service,
		Access:      access,
	}
}

type PurchaseOrderResponse struct {
	PurchaseOrder *PurchaseOrder `json:"purchase_order"`
	Document      *Record        `json:"document"`
}

// authorize loads the order and hides it from actors who cannot see its request.
func (h *Handler) authorize(r *http.Request, number string) (*PurchaseOrder, error) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		return nil, internal.ErrInvalidToken
	}

	po, err := h.Service.GetByNumber(r.Context(), number)
	if err != nil {
		return nil, err
	}
	if actor.Is(coreuser.RoleFinance) {
		return po, nil
	}
	if h.Access == nil {
		return nil, internal.ErrPurchaseOrderNotFound
	}

	allowed, err := h.Access.CanViewPurchaseOrder(r.Context(), actor, po.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, internal.ErrPurchaseOrderNotFound
	}
	return po, nil
}

// GetPurchaseOrder handles GET /api/v1/purchase-orders/{number}
func (h *Handler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	po, err := h.authorize(r, number)
	if err != nil {
		h.Logger.Warn("GetPurchaseOrder: lookup failed", "po_number", number, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	rec, err := h.Service.Record(r.Context(), number)
	if err != nil {
		h.Logger.Error("GetPurchaseOrder: document unavailable", "po_number", number, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PurchaseOrderResponse{PurchaseOrder: po, Document: rec})
}

// DownloadDocument handles GET /api/v1/purchase-orders/{number}/document.pdf
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	if _, err := h.authorize(r, number); err != nil {
		h.Logger.Warn("DownloadDocument: lookup failed", "po_number", number, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	path, err := h.Service.PDFPath(r.Context(), number)
	if err != nil {
		h.Logger.Error("DownloadDocument: document unavailable", "po_number", number, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
