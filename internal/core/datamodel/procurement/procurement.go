package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseRequest struct {
	ID              int64           `gorm:"primaryKey"`
	Title           string          `gorm:"column:title;size:255;not null"`
	Description     string          `gorm:"column:description;type:text"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Status          string          `gorm:"column:status;size:20;not null;default:pending;index"`
	CreatedByID     int64           `gorm:"column:created_by_id;not null;index"`
	ProformaPath    string          `gorm:"column:proforma_path;size:512"`
	ReceiptPath     string          `gorm:"column:receipt_path;size:512"`
	PurchaseOrderID *int64          `gorm:"column:purchase_order_id;uniqueIndex"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Items         []RequestItem  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	Approvals     []Approval     `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	PurchaseOrder *PurchaseOrder `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:SET NULL"`
}

func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

type RequestItem struct {
	ID        int64           `gorm:"primaryKey"`
	RequestID int64           `gorm:"column:request_id;not null;index"`
	Name      string          `gorm:"column:name;size:255;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null"`
	Vendor    string          `gorm:"column:vendor;size:255"`
}

func (RequestItem) TableName() string {
	return "request_items"
}

type Approval struct {
	ID         int64     `gorm:"primaryKey"`
	RequestID  int64     `gorm:"column:request_id;not null;index"`
	ApproverID int64     `gorm:"column:approver_id;not null;index"`
	Level      int       `gorm:"column:level;not null"`
	Status     string    `gorm:"column:status;size:20;not null"`
	Comment    string    `gorm:"column:comment;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Approval) TableName() string {
	return "approvals"
}

type PurchaseOrder struct {
	ID           int64               `gorm:"primaryKey"`
	Number       string              `gorm:"column:number;size:64;uniqueIndex;not null"`
	RequestID    int64               `gorm:"column:request_id;not null;index"`
	Vendor       string              `gorm:"column:vendor;size:255"`
	Terms        string              `gorm:"column:terms;type:text"`
	TotalAmount  decimal.Decimal     `gorm:"column:total_amount;type:decimal(12,2);not null"`
	DocumentPath string              `gorm:"column:document_path;size:512"`
	Items        []PurchaseOrderItem `gorm:"column:items;serializer:json;type:text"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderItem is the item snapshot frozen on the order at issue time.
type PurchaseOrderItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Vendor    string          `json:"vendor,omitempty"`
}
