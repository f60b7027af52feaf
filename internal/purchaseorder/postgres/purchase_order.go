package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	"github.com/frahmantamala/procure-to-pay/internal/core/datamodel/procurement"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	"gorm.io/gorm"
)

type PurchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// Create inserts the order using the transaction on ctx when there is one.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *purchaseorder.PurchaseOrder) error {
	row := toRow(po)
	if err := database.GetDB(ctx, r.db).Create(&row).Error; err != nil {
		return err
	}
	po.ID = row.ID
	po.CreatedAt = row.CreatedAt
	return nil
}

func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id int64) (*purchaseorder.PurchaseOrder, error) {
	var row procurement.PurchaseOrder
	err := database.GetDB(ctx, r.db).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPurchaseOrderNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *PurchaseOrderRepository) GetByNumber(ctx context.Context, number string) (*purchaseorder.PurchaseOrder, error) {
	var row procurement.PurchaseOrder
	err := database.GetDB(ctx, r.db).Where("number = ?", number).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPurchaseOrderNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func toRow(po *purchaseorder.PurchaseOrder) procurement.PurchaseOrder {
	items := make([]procurement.PurchaseOrderItem, 0, len(po.Items))
	for _, it := range po.Items {
		items = append(items, procurement.PurchaseOrderItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Vendor:    it.Vendor,
		})
	}
	return procurement.PurchaseOrder{
		ID:           po.ID,
		Number:       po.Number,
		RequestID:    po.RequestID,
		Vendor:       po.Vendor,
		Terms:        po.Terms,
		TotalAmount:  po.Total,
		DocumentPath: po.DocumentPath,
		Items:        items,
		CreatedAt:    po.CreatedAt,
	}
}

func fromRow(row *procurement.PurchaseOrder) *purchaseorder.PurchaseOrder {
	items := make([]purchaseorder.Item, 0, len(row.Items))
	for _, it := range row.Items {
		items = append(items, purchaseorder.Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Vendor:    it.Vendor,
		})
	}
	return &purchaseorder.PurchaseOrder{
		ID:           row.ID,
		Number:       row.Number,
		RequestID:    row.RequestID,
		Vendor:       row.Vendor,
		Terms:        row.Terms,
		Total:        row.TotalAmount,
		DocumentPath: row.DocumentPath,
		Items:        items,
		CreatedAt:    row.CreatedAt,
	}
}
