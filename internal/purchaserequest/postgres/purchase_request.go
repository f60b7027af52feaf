package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	"github.com/frahmantamala/procure-to-pay/internal/core/datamodel/procurement"
	"github.com/frahmantamala/procure-to-pay/internal/purchaserequest"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseRequestRepository implements purchaserequest.Repository using GORM
type PurchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: db}
}

// Create saves the request together with its items
func (r *PurchaseRequestRepository) Create(ctx context.Context, pr *purchaserequest.PurchaseRequest) error {
	row := toRow(pr)
	if err := database.GetDB(ctx, r.db).Create(&row).Error; err != nil {
		return err
	}

	pr.ID = row.ID
	pr.CreatedAt = row.CreatedAt
	pr.UpdatedAt = row.UpdatedAt
	for i := range row.Items {
		pr.Items[i].ID = row.Items[i].ID
	}
	if pr.Approvals == nil {
		pr.Approvals = []purchaserequest.Approval{}
	}
	return nil
}

func (r *PurchaseRequestRepository) GetByID(ctx context.Context, id int64) (*purchaserequest.PurchaseRequest, error) {
	db := database.GetDB(ctx, r.db)

	var row procurement.PurchaseRequest
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return r.load(db, &row)
}

// GetForUpdate locks the request row with SELECT ... FOR UPDATE. It must be
// called with a transaction on ctx for the lock to outlive the statement.
func (r *PurchaseRequestRepository) GetForUpdate(ctx context.Context, id int64) (*purchaserequest.PurchaseRequest, error) {
	db := database.GetDB(ctx, r.db)

	var row procurement.PurchaseRequest
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return r.load(db, &row)
}

func (r *PurchaseRequestRepository) GetByPurchaseOrderID(ctx context.Context, orderID int64) (*purchaserequest.PurchaseRequest, error) {
	db := database.GetDB(ctx, r.db)

	var row procurement.PurchaseRequest
	if err := db.Where("purchase_order_id = ?", orderID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return r.load(db, &row)
}

// ListVisible returns the requests v allows, newest first. The reviewer
// filter mirrors purchaserequest.Visibility.Allows.
func (r *PurchaseRequestRepository) ListVisible(ctx context.Context, v purchaserequest.Visibility) ([]*purchaserequest.PurchaseRequest, error) {
	q := database.GetDB(ctx, r.db).Model(&procurement.PurchaseRequest{})

	switch v.Scope {
	case purchaserequest.ScopeAll:
	case purchaserequest.ScopeOwn:
		q = q.Where("created_by_id = ?", v.ActorID)
	case purchaserequest.ScopeReviewer:
		q = q.Where(
			"(status = ? AND NOT EXISTS (SELECT 1 FROM approvals a WHERE a.request_id = purchase_requests.id AND a.level = ? AND a.status = ?))"+
				" OR EXISTS (SELECT 1 FROM approvals a WHERE a.request_id = purchase_requests.id AND a.approver_id = ?)",
			string(purchaserequest.StatusPending), v.Level, string(purchaserequest.DecisionApproved), v.ActorID,
		)
	default:
		return []*purchaserequest.PurchaseRequest{}, nil
	}

	var rows []procurement.PurchaseRequest
	err := q.
		Preload("Items", byID).
		Preload("Approvals", byID).
		Preload("PurchaseOrder", func(db *gorm.DB) *gorm.DB { return db.Select("id", "number") }).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*purchaserequest.PurchaseRequest, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

// Update writes the scalar fields a workflow step may change.
func (r *PurchaseRequestRepository) Update(ctx context.Context, pr *purchaserequest.PurchaseRequest) error {
	updatedAt := pr.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return database.GetDB(ctx, r.db).
		Model(&procurement.PurchaseRequest{}).
		Where("id = ?", pr.ID).
		Updates(map[string]interface{}{
			"title":             pr.Title,
			"description":       pr.Description,
			"amount":            pr.Amount,
			"status":            string(pr.Status),
			"purchase_order_id": pr.PurchaseOrderID,
			"updated_at":        updatedAt,
		}).Error
}

// ReplaceItems deletes every item of the request and inserts items in their
// place, writing the new ids back into items.
func (r *PurchaseRequestRepository) ReplaceItems(ctx context.Context, requestID int64, items []purchaserequest.Item) error {
	db := database.GetDB(ctx, r.db)

	if err := db.Where("request_id = ?", requestID).Delete(&procurement.RequestItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	rows := itemRows(requestID, items)
	if err := db.Create(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		items[i].ID = rows[i].ID
	}
	return nil
}

func (r *PurchaseRequestRepository) AddApproval(ctx context.Context, requestID int64, approval *purchaserequest.Approval) error {
	row := procurement.Approval{
		RequestID:  requestID,
		ApproverID: approval.ApproverID,
		Level:      approval.Level,
		Status:     string(approval.Decision),
		Comment:    approval.Comment,
		CreatedAt:  approval.CreatedAt,
	}
	if err := database.GetDB(ctx, r.db).Create(&row).Error; err != nil {
		return err
	}
	approval.ID = row.ID
	approval.CreatedAt = row.CreatedAt
	return nil
}

func (r *PurchaseRequestRepository) SetReceipt(ctx context.Context, requestID int64, path string) error {
	res := database.GetDB(ctx, r.db).
		Model(&procurement.PurchaseRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"receipt_path": path,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRequestNotFound
	}
	return nil
}

// Delete removes the request, its items and its approvals. The purchase
// order row is left in place.
func (r *PurchaseRequestRepository) Delete(ctx context.Context, id int64) error {
	db := database.GetDB(ctx, r.db)

	if err := db.Where("request_id = ?", id).Delete(&procurement.Approval{}).Error; err != nil {
		return err
	}
	if err := db.Where("request_id = ?", id).Delete(&procurement.RequestItem{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&procurement.PurchaseRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRequestNotFound
	}
	return nil
}

func (r *PurchaseRequestRepository) load(db *gorm.DB, row *procurement.PurchaseRequest) (*purchaserequest.PurchaseRequest, error) {
	if err := db.Where("request_id = ?", row.ID).Order("id").Find(&row.Items).Error; err != nil {
		return nil, err
	}
	if err := db.Where("request_id = ?", row.ID).Order("id").Find(&row.Approvals).Error; err != nil {
		return nil, err
	}
	if row.PurchaseOrderID != nil {
		var po procurement.PurchaseOrder
		err := db.Select("id", "number").Where("id = ?", *row.PurchaseOrderID).First(&po).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			row.PurchaseOrder = &po
		}
	}
	return fromRow(row), nil
}

func byID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrRequestNotFound
	}
	return err
}

func itemRows(requestID int64, items []purchaserequest.Item) []procurement.RequestItem {
	rows := make([]procurement.RequestItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, procurement.RequestItem{
			RequestID: requestID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Vendor:    it.Vendor,
		})
	}
	return rows
}

func toRow(pr *purchaserequest.PurchaseRequest) procurement.PurchaseRequest {
	return procurement.PurchaseRequest{
		ID:              pr.ID,
		Title:           pr.Title,
		Description:     pr.Description,
		Amount:          pr.Amount,
		Status:          string(pr.Status),
		CreatedByID:     pr.CreatedByID,
		ProformaPath:    pr.ProformaPath,
		ReceiptPath:     pr.ReceiptPath,
		PurchaseOrderID: pr.PurchaseOrderID,
		Items:           itemRows(pr.ID, pr.Items),
	}
}

func fromRow(row *procurement.PurchaseRequest) *purchaserequest.PurchaseRequest {
	pr := &purchaserequest.PurchaseRequest{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		Amount:          row.Amount,
		Status:          purchaserequest.Status(row.Status),
		CreatedByID:     row.CreatedByID,
		ProformaPath:    row.ProformaPath,
		ReceiptPath:     row.ReceiptPath,
		PurchaseOrderID: row.PurchaseOrderID,
		Items:           make([]purchaserequest.Item, 0, len(row.Items)),
		Approvals:       make([]purchaserequest.Approval, 0, len(row.Approvals)),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.PurchaseOrder != nil {
		pr.PurchaseOrderNumber = row.PurchaseOrder.Number
	}
	for _, it := range row.Items {
		pr.Items = append(pr.Items, purchaserequest.Item{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Vendor:    it.Vendor,
		})
	}
	for _, a := range row.Approvals {
		pr.Approvals = append(pr.Approvals, purchaserequest.Approval{
			ID:         a.ID,
			ApproverID: a.ApproverID,
			Level:      a.Level,
			Decision:   purchaserequest.Decision(a.Status),
			Comment:    a.Comment,
			CreatedAt:  a.CreatedAt,
		})
	}
	return pr
}
