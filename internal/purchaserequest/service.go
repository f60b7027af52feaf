package purchaserequest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	"github.com/frahmantamala/procure-to-pay/internal/core/events"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/document"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	"github.com/google/uuid"
)

// Repository interface defines the data access methods for purchase requests.
// Every method uses the transaction carried by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, pr *PurchaseRequest) error
	GetByID(ctx context.Context, id int64) (*PurchaseRequest, error)
	// GetForUpdate loads the request holding an exclusive row lock until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*PurchaseRequest, error)
	GetByPurchaseOrderID(ctx context.Context, orderID int64) (*PurchaseRequest, error)
	ListVisible(ctx context.Context, v Visibility) ([]*PurchaseRequest, error)
	Update(ctx context.Context, pr *PurchaseRequest) error
	ReplaceItems(ctx context.Context, requestID int64, items []Item) error
	AddApproval(ctx context.Context, requestID int64, approval *Approval) error
	SetReceipt(ctx context.Context, requestID int64, path string) error
	Delete(ctx context.Context, id int64) error
}

type Orders interface {
	Issue(ctx context.Context, src purchaseorder.Source) (*purchaseorder.PurchaseOrder, error)
	GetByID(ctx context.Context, id int64) (*purchaseorder.PurchaseOrder, error)
}

type ProformaExtractor interface {
	ExtractProforma(ctx context.Context, path string, kind document.Kind) document.Metadata
}

type ReceiptChecker interface {
	Validate(ctx context.Context, path string, expected document.Expected) document.ValidationResult
}

type FileStore interface {
	PutStream(name string, r io.Reader) (string, error)
	Path(name string) (string, error)
	Remove(name string) error
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *coreuser.Actor, dto CreateRequestDTO, proforma *Upload) (*PurchaseRequest, error)
	Get(ctx context.Context, id int64, actor *coreuser.Actor) (*PurchaseRequest, error)
	List(ctx context.Context, actor *coreuser.Actor) ([]*PurchaseRequest, error)
	Update(ctx context.Context, id int64, actor *coreuser.Actor, dto UpdateRequestDTO) (*PurchaseRequest, error)
	Delete(ctx context.Context, id int64, actor *coreuser.Actor) error
	Approve(ctx context.Context, id int64, actor *coreuser.Actor) (*PurchaseRequest, error)
	Reject(ctx context.Context, id int64, actor *coreuser.Actor, reason string) (*PurchaseRequest, error)
	SubmitReceipt(ctx context.Context, id int64, actor *coreuser.Actor, receipt *Upload) (*SubmitReceiptResult, error)
}

type Deps struct {
	Repo      Repository
	Tx        database.TransactionManager
	Orders    Orders
	Extractor ProformaExtractor
	Receipts  ReceiptChecker
	Files     FileStore
	Events    events.Publisher
	Logger    *slog.Logger
}

// Service handles the purchase request workflow.
type Service struct {
	repo      Repository
	tx        database.TransactionManager
	orders    Orders
	extractor ProformaExtractor
	receipts  ReceiptChecker
	files     FileStore
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Deps) *Service {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Service{
		repo:      deps.Repo,
		tx:        deps.Tx,
		orders:    deps.Orders,
		extractor: deps.Extractor,
		receipts:  deps.Receipts,
		files:     deps.Files,
		events:    deps.Events,
		logger:    lg,
		now:       time.Now,
	}
}

// Create stores a new pending request. When a proforma is attached its
// extracted items are appended to the given ones, and whenever items are
// present the amount is their total.
func (s *Service) Create(ctx context.Context, actor *coreuser.Actor, dto CreateRequestDTO, proforma *Upload) (*PurchaseRequest, error) {
	if !actor.Is(coreuser.RoleStaff) {
		return nil, internal.ErrPermissionDenied
	}
	if err := dto.Validate(); err != nil {
		s.logger.Warn("purchase request validation failed", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	pr := &PurchaseRequest{
		Title:       strings.TrimSpace(dto.Title),
		Description: dto.Description,
		Amount:      dto.Amount.Round(2),
		Status:      StatusPending,
		CreatedByID: actor.ID,
		Items:       itemsFromDTO(dto.Items),
	}

	extracted := 0
	if proforma.present() {
		name, err := s.store("proformas", 0, proforma)
		if err != nil {
			return nil, err
		}
		pr.ProformaPath = name

		meta := s.extract(ctx, name, proforma.Filename)
		for _, it := range meta.Items {
			pr.Items = append(pr.Items, Item{
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice.Round(2),
				Vendor:    meta.Vendor,
			})
		}
		extracted = len(meta.Items)
	}

	if len(pr.Items) > 0 {
		pr.Amount = pr.ItemsTotal()
	} else if !pr.Amount.IsPositive() {
		s.discard(pr.ProformaPath)
		return nil, internal.NewValidationFieldError("amount", "amount must be greater than 0 when no items are given", internal.ErrCodeInvalidAmount)
	}

	if err := s.repo.Create(ctx, pr); err != nil {
		s.logger.Error("failed to create purchase request", "error", err, "actor_id", actor.ID)
		s.discard(pr.ProformaPath)
		return nil, err
	}

	s.logger.Info("purchase request created",
		"request_id", pr.ID,
		"actor_id", actor.ID,
		"amount", pr.Amount.StringFixed(2),
		"items", len(pr.Items),
		"extracted_items", extracted)

	s.publish(ctx, events.NewRequestCreatedEvent(pr.ID, actor.ID, pr.Amount, extracted))
	return pr, nil
}

// Get returns the request when actor is allowed to see it. Hidden requests
// are reported as not found.
func (s *Service) Get(ctx context.Context, id int64, actor *coreuser.Actor) (*PurchaseRequest, error) {
	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !VisibilityFor(actor).Allows(pr) {
		return nil, internal.ErrRequestNotFound
	}
	return pr, nil
}

func (s *Service) List(ctx context.Context, actor *coreuser.Actor) ([]*PurchaseRequest, error) {
	v := VisibilityFor(actor)
	if v.Scope == ScopeNone {
		return []*PurchaseRequest{}, nil
	}
	return s.repo.ListVisible(ctx, v)
}

func (s *Service) Update(ctx context.Context, id int64, actor *coreuser.Actor, dto UpdateRequestDTO) (*PurchaseRequest, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var updated *PurchaseRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pr, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := checkEditable(pr, actor); err != nil {
			return err
		}
		if dto.empty() {
			updated = pr
			return nil
		}

		if dto.Title != nil {
			pr.Title = strings.TrimSpace(*dto.Title)
		}
		if dto.Description != nil {
			pr.Description = *dto.Description
		}
		if dto.Amount != nil {
			pr.Amount = dto.Amount.Round(2)
		}
		if dto.Items != nil {
			pr.Items = itemsFromDTO(*dto.Items)
			if err := s.repo.ReplaceItems(txCtx, pr.ID, pr.Items); err != nil {
				return err
			}
		}
		if len(pr.Items) > 0 {
			pr.Amount = pr.ItemsTotal()
		} else if !pr.Amount.IsPositive() {
			return internal.NewValidationFieldError("amount", "amount must be greater than 0 when no items are given", internal.ErrCodeInvalidAmount)
		}

		pr.UpdatedAt = s.now()
		if err := s.repo.Update(txCtx, pr); err != nil {
			return err
		}
		updated = pr
		return nil
	})
	if err != nil {
		s.logger.Warn("purchase request update failed", "error", err, "request_id", id, "actor_id", actorID(actor))
		return nil, err
	}

	s.logger.Info("purchase request updated", "request_id", id, "actor_id", actor.ID)
	return updated, nil
}

// Delete removes a request with its items and approvals. An issued purchase
// order is kept.
func (s *Service) Delete(ctx context.Context, id int64, actor *coreuser.Actor) error {
	var files []string
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pr, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if actor == nil || pr.CreatedByID != actor.ID {
			return internal.ErrPermissionDenied
		}
		files = []string{pr.ProformaPath, pr.ReceiptPath}
		return s.repo.Delete(txCtx, pr.ID)
	})
	if err != nil {
		s.logger.Warn("purchase request delete failed", "error", err, "request_id", id, "actor_id", actorID(actor))
		return err
	}

	for _, name := range files {
		s.discard(name)
	}
	s.logger.Info("purchase request deleted", "request_id", id, "actor_id", actor.ID)
	return nil
}

// Approve records the actor's approval at their level. Approving a level
// that is already approved changes nothing. The approval that completes
// both levels moves the request to approved and issues its purchase order
// in the same transaction.
func (s *Service) Approve(ctx context.Context, id int64, actor *coreuser.Actor) (*PurchaseRequest, error) {
	var (
		result   *PurchaseRequest
		recorded *Approval
		issued   *purchaseorder.PurchaseOrder
	)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pr, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		level, err := reviewLevel(pr, actor)
		if err != nil {
			return err
		}

		if !pr.applyApproval(Approval{ApproverID: actor.ID, Level: level, CreatedAt: s.now()}) {
			result = pr
			return nil
		}

		recorded = &pr.Approvals[len(pr.Approvals)-1]
		if err := s.repo.AddApproval(txCtx, pr.ID, recorded); err != nil {
			return err
		}

		if pr.Status == StatusApproved && pr.PurchaseOrderID == nil {
			po, err := s.orders.Issue(txCtx, sourceOf(pr))
			if err != nil {
				return err
			}
			pr.PurchaseOrderID = &po.ID
			pr.PurchaseOrderNumber = po.Number
			issued = po
		}

		pr.UpdatedAt = s.now()
		if err := s.repo.Update(txCtx, pr); err != nil {
			return err
		}
		result = pr
		return nil
	})
	if err != nil {
		s.logger.Warn("purchase request approval failed", "error", err, "request_id", id, "actor_id", actorID(actor))
		return nil, err
	}

	if recorded == nil {
		s.logger.Info("purchase request level already approved", "request_id", id, "actor_id", actor.ID)
		return result, nil
	}

	s.logger.Info("purchase request approved at level",
		"request_id", id,
		"actor_id", actor.ID,
		"level", recorded.Level,
		"status", result.Status)

	s.publish(ctx, events.NewLevelApprovedEvent(result.ID, actor.ID, recorded.Level))
	if result.Status == StatusApproved {
		s.publish(ctx, events.NewRequestApprovedEvent(result.ID, result.Amount))
	}
	if issued != nil {
		s.publish(ctx, events.NewPurchaseOrderIssuedEvent(result.ID, issued.ID, issued.Number, issued.Vendor, issued.Total))
	}
	return result, nil
}

// Reject records a rejection and moves the request to rejected, whatever
// levels were approved before.
func (s *Service) Reject(ctx context.Context, id int64, actor *coreuser.Actor, reason string) (*PurchaseRequest, error) {
	if err := (RejectRequestDTO{Reason: reason}).Validate(); err != nil {
		return nil, err
	}

	var (
		result   *PurchaseRequest
		recorded *Approval
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pr, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		level, err := reviewLevel(pr, actor)
		if err != nil {
			return err
		}

		pr.applyRejection(Approval{ApproverID: actor.ID, Level: level, Comment: reason, CreatedAt: s.now()})
		recorded = &pr.Approvals[len(pr.Approvals)-1]
		if err := s.repo.AddApproval(txCtx, pr.ID, recorded); err != nil {
			return err
		}

		pr.UpdatedAt = s.now()
		if err := s.repo.Update(txCtx, pr); err != nil {
			return err
		}
		result = pr
		return nil
	})
	if err != nil {
		s.logger.Warn("purchase request rejection failed", "error", err, "request_id", id, "actor_id", actorID(actor))
		return nil, err
	}

	s.logger.Info("purchase request rejected", "request_id", id, "actor_id", actor.ID, "level", recorded.Level)
	s.publish(ctx, events.NewRequestRejectedEvent(result.ID, actor.ID, recorded.Level, reason))
	return result, nil
}

// SubmitReceipt stores the creator's receipt and, when the request has a
// purchase order, checks the receipt against it. A mismatch is reported in
// the result, never as an error.
func (s *Service) SubmitReceipt(ctx context.Context, id int64, actor *coreuser.Actor, receipt *Upload) (*SubmitReceiptResult, error) {
	pr, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if pr.CreatedByID != actor.ID {
		return nil, internal.ErrPermissionDenied
	}
	if !receipt.present() {
		return nil, internal.ErrMissingFile
	}

	name, err := s.store("receipts", pr.ID, receipt)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetReceipt(ctx, pr.ID, name); err != nil {
		s.logger.Error("failed to save receipt path", "error", err, "request_id", pr.ID)
		s.discard(name)
		return nil, err
	}
	previous := pr.ReceiptPath
	pr.ReceiptPath = name
	if previous != "" && previous != name {
		s.discard(previous)
	}

	result := &SubmitReceiptResult{Request: pr}
	if pr.PurchaseOrderID == nil {
		s.logger.Info("receipt stored without purchase order", "request_id", pr.ID)
		return result, nil
	}

	po, err := s.orders.GetByID(ctx, *pr.PurchaseOrderID)
	if err != nil {
		s.logger.Error("failed to load purchase order for receipt", "error", err, "request_id", pr.ID)
		return nil, err
	}

	path, err := s.files.Path(name)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve receipt path", err)
	}
	validation := s.receipts.Validate(ctx, path, document.Expected{Vendor: po.Vendor, Total: po.Total})
	result.Validation = &validation

	s.logger.Info("receipt validated",
		"request_id", pr.ID,
		"po_number", po.Number,
		"matches", validation.Matches,
		"issues", len(validation.Issues))

	s.publish(ctx, events.NewReceiptValidatedEvent(pr.ID, po.Number, validation.Matches, validation.Issues))
	return result, nil
}

// CanViewPurchaseOrder reports whether the actor may see the request the
// order was issued for.
func (s *Service) CanViewPurchaseOrder(ctx context.Context, actor *coreuser.Actor, orderID int64) (bool, error) {
	v := VisibilityFor(actor)
	switch v.Scope {
	case ScopeAll:
		return true, nil
	case ScopeNone:
		return false, nil
	}

	pr, err := s.repo.GetByPurchaseOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, internal.ErrRequestNotFound) {
			return false, nil
		}
		return false, err
	}
	return v.Allows(pr), nil
}

func sourceOf(pr *PurchaseRequest) purchaseorder.Source {
	items := make([]purchaseorder.Item, 0, len(pr.Items))
	for _, it := range pr.Items {
		items = append(items, purchaseorder.Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Vendor:    it.Vendor,
		})
	}
	return purchaseorder.Source{RequestID: pr.ID, Amount: pr.Amount, Items: items}
}

func (s *Service) store(dir string, requestID int64, up *Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	name := fmt.Sprintf("%s/%s%s", dir, uuid.NewString(), ext)
	if requestID > 0 {
		name = fmt.Sprintf("%s/%d-%s%s", dir, requestID, uuid.NewString(), ext)
	}

	stored, err := s.files.PutStream(name, up.Content)
	if err != nil {
		s.logger.Error("failed to store upload", "error", err, "name", name)
		return "", internal.NewInternalError("failed to store uploaded file", err)
	}
	return stored, nil
}

func (s *Service) extract(ctx context.Context, name, filename string) document.Metadata {
	path, err := s.files.Path(name)
	if err != nil {
		s.logger.Warn("proforma path unavailable", "error", err, "name", name)
		return document.Metadata{}
	}
	return s.extractor.ExtractProforma(ctx, path, document.KindFromPath(filename))
}

func (s *Service) discard(name string) {
	if name == "" {
		return
	}
	if err := s.files.Remove(name); err != nil {
		s.logger.Warn("failed to remove stored file", "error", err, "name", name)
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event", "error", err, "event_type", evt.EventType())
	}
}

func actorID(actor *coreuser.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}
