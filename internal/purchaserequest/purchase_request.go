package purchaserequest

import (
	"io"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal/document"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

type Item struct {
	ID        int64           `json:"id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Vendor    string          `json:"vendor,omitempty"`
}

func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Approval is one reviewer decision. Rows are never updated.
type Approval struct {
	ID         int64     `json:"id"`
	ApproverID int64     `json:"approver_id"`
	Level      int       `json:"level"`
	Decision   Decision  `json:"status"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PurchaseRequest struct {
	ID                  int64           `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Status              Status          `json:"status"`
	CreatedByID         int64           `json:"created_by"`
	ProformaPath        string          `json:"proforma,omitempty"`
	ReceiptPath         string          `json:"receipt,omitempty"`
	PurchaseOrderID     *int64          `json:"purchase_order_id,omitempty"`
	PurchaseOrderNumber string          `json:"purchase_order,omitempty"`
	Items               []Item          `json:"items"`
	Approvals           []Approval      `json:"approvals"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ItemsTotal is the sum of quantity times unit price over all items.
func (pr *PurchaseRequest) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range pr.Items {
		total = total.Add(it.Total())
	}
	return total.Round(2)
}

// Upload is a file attached to a workflow operation.
type Upload struct {
	Filename string
	Content  io.Reader
}

func (u *Upload) present() bool {
	return u != nil && u.Content != nil
}

// SubmitReceiptResult pairs the updated request with the receipt check. The
// validation is nil when the request has no purchase order to compare with.
type SubmitReceiptResult struct {
	Request    *PurchaseRequest           `json:"request"`
	Validation *document.ValidationResult `json:"validation,omitempty"`
}
