package purchaseorder_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/frahmantamala/procure-to-pay/internal"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

type stubOrderService struct {
	order   *purchaseorder.PurchaseOrder
	pdfPath string
}

func (s *stubOrderService) Issue(context.Context, purchaseorder.Source) (*purchaseorder.PurchaseOrder, error) {
	return nil, errors.New("not used")
}

func (s *stubOrderService) GetByID(context.Context, int64) (*purchaseorder.PurchaseOrder, error) {
	return s.order, nil
}

func (s *stubOrderService) GetByNumber(_ context.Context, number string) (*purchaseorder.PurchaseOrder, error) {
	if s.order == nil || s.order.Number != number {
		return nil, internal.ErrPurchaseOrderNotFound
	}
	return s.order, nil
}

func (s *stubOrderService) Record(context.Context, string) (*purchaseorder.Record, error) {
	rec := purchaseorder.RecordOf(s.order)
	return &rec, nil
}

func (s *stubOrderService) PDFPath(context.Context, string) (string, error) {
	return s.pdfPath, nil
}

type stubAccess struct {
	allowed bool
	asked   []int64
}

func (a *stubAccess) CanViewPurchaseOrder(_ context.Context, _ *coreuser.Actor, orderID int64) (bool, error) {
	a.asked = append(a.asked, orderID)
	return a.allowed, nil
}

var _ = Describe("Handler", func() {
	const number = "PO-7-17000000001"

	var (
		svc    *stubOrderService
		access *stubAccess
		router *chi.Mux
	)

	BeforeEach(func() {
		pdf := filepath.Join(GinkgoT().TempDir(), number+".pdf")
		Expect(os.WriteFile(pdf, []byte("%PDF-1.3"), 0o644)).To(Succeed())

		svc = &stubOrderService{
			order: &purchaseorder.PurchaseOrder{
				ID:        3,
				Number:    number,
				RequestID: 7,
				Vendor:    "Acme Corp",
				Terms:     purchaseorder.DefaultTerms,
				Total:     decimal.RequireFromString("20.00"),
			},
			pdfPath: pdf,
		}
		access = &stubAccess{}

		h := purchaseorder.NewHandler(svc, access, quietLogger())
		router = chi.NewRouter()
		router.Get("/purchase-orders/{number}", h.GetPurchaseOrder)
		router.Get("/purchase-orders/{number}/document.pdf", h.DownloadDocument)
	})

	do := func(path string, actor *coreuser.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if actor != nil {
			req = req.WithContext(internal.ContextWithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	finance := &coreuser.Actor{ID: 4, Role: coreuser.RoleFinance}
	staff := &coreuser.Actor{ID: 1, Role: coreuser.RoleStaff}

	It("lets finance read any order without a visibility check", func() {
		rec := do("/purchase-orders/"+number, finance)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(access.asked).To(BeEmpty())

		var body struct {
			PurchaseOrder purchaseorder.PurchaseOrder `json:"purchase_order"`
			Document      purchaseorder.Record        `json:"document"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.PurchaseOrder.Number).To(Equal(number))
		Expect(body.Document.Vendor).To(Equal("Acme Corp"))
	})

	It("hides orders whose request the actor cannot see", func() {
		rec := do("/purchase-orders/"+number, staff)

		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(access.asked).To(ConsistOf(int64(3)))
	})

	It("serves orders whose request the actor can see", func() {
		access.allowed = true

		rec := do("/purchase-orders/"+number, staff)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("streams the PDF rendering", func() {
		rec := do("/purchase-orders/"+number+"/document.pdf", finance)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
		Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring(number + ".pdf"))
		Expect(rec.Body.String()).To(HavePrefix("%PDF"))
	})

	It("reports unknown numbers as not found", func() {
		rec := do("/purchase-orders/PO-1-10", finance)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("requires an authenticated actor", func() {
		rec := do("/purchase-orders/"+number, nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
