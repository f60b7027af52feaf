package purchaseorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTerms are the payment terms stamped on every generated order.
const DefaultTerms = "Net 30"

type Item struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Vendor    string          `json:"vendor,omitempty"`
}

type PurchaseOrder struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	RequestID    int64           `json:"request_id"`
	Vendor       string          `json:"vendor"`
	Terms        string          `json:"terms"`
	Total        decimal.Decimal `json:"total_amount"`
	DocumentPath string          `json:"document"`
	Items        []Item          `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Source is the approved request data an order is derived from.
type Source struct {
	RequestID int64
	Amount    decimal.Decimal
	Items     []Item
}

// Derive builds the order for src without touching storage. The vendor is
// taken from the first item and the total always equals the request amount.
func Derive(src Source, now time.Time) (*PurchaseOrder, error) {
	number, err := NewNumber(src.RequestID, now)
	if err != nil {
		return nil, err
	}

	vendor := ""
	if len(src.Items) > 0 {
		vendor = src.Items[0].Vendor
	}

	items := make([]Item, len(src.Items))
	copy(items, src.Items)

	return &PurchaseOrder{
		Number:    number,
		RequestID: src.RequestID,
		Vendor:    vendor,
		Terms:     DefaultTerms,
		Total:     src.Amount,
		Items:     items,
		CreatedAt: now,
	}, nil
}
