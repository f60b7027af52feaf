package purchaseorder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"golang.org/x/sync/singleflight"
)

type Repository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*PurchaseOrder, error)
	GetByNumber(ctx context.Context, number string) (*PurchaseOrder, error)
}

type ServiceAPI interface {
	Issue(ctx context.Context, src Source) (*PurchaseOrder, error)
	GetByID(ctx context.Context, id int64) (*PurchaseOrder, error)
	GetByNumber(ctx context.Context, number string) (*PurchaseOrder, error)
	Record(ctx context.Context, number string) (*Record, error)
	PDFPath(ctx context.Context, number string) (string, error)
}

type Service struct {
	repo   Repository
	docs   *Documents
	cache  *DocumentCache
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository, docs *Documents, cache *DocumentCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		docs:   docs,
		cache:  cache,
		now:    time.Now,
		logger: logger,
	}
}

// Issue derives, renders and stores the order for an approved request. It
// runs inside the caller's transaction when ctx carries one, so a failed
// insert rolls back with the approval that triggered it.
func (s *Service) Issue(ctx context.Context, src Source) (*PurchaseOrder, error) {
	po, err := Derive(src, s.now().UTC().Truncate(time.Second))
	if err != nil {
		return nil, internal.NewInternalError("failed to derive purchase order", err)
	}

	path, err := s.docs.Write(po)
	if err != nil {
		s.logger.Error("failed to write purchase order document", "error", err, "request_id", src.RequestID, "po_number", po.Number)
		return nil, internal.NewInternalError("failed to write purchase order document", err)
	}
	po.DocumentPath = path

	if err := s.repo.Create(ctx, po); err != nil {
		s.logger.Error("failed to save purchase order", "error", err, "request_id", src.RequestID, "po_number", po.Number)
		return nil, err
	}

	s.logger.Info("purchase order issued",
		"request_id", src.RequestID,
		"po_number", po.Number,
		"vendor", po.Vendor,
		"total", po.Total.StringFixed(2))

	return po, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber looks up a well-formed number. A stored order whose request
// differs from the one embedded in its number is treated as missing.
func (s *Service) GetByNumber(ctx context.Context, number string) (*PurchaseOrder, error) {
	requestID, err := RequestIDFromNumber(number)
	if err != nil {
		return nil, err
	}
	po, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if po.RequestID != requestID {
		s.logger.Error("purchase order number does not match its request",
			"po_number", number,
			"request_id", po.RequestID)
		return nil, internal.ErrPurchaseOrderNotFound
	}
	return po, nil
}

// Record returns the stored document for number, served from redis when it
// is cached. Concurrent reads of the same number share one disk load.
func (s *Service) Record(ctx context.Context, number string) (*Record, error) {
	if err := ValidateNumber(number); err != nil {
		return nil, err
	}

	rec, err := s.cache.Get(ctx, number)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("purchase order cache unavailable", "error", err, "po_number", number)
	}

	v, err, _ := s.group.Do(number, func() (interface{}, error) {
		rec, err := s.docs.Load(number)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn("failed to cache purchase order", "error", err, "po_number", number)
		}
		return rec, nil
	})
	if err != nil {
		s.logger.Error("failed to load purchase order document", "error", err, "po_number", number)
		return nil, internal.ErrPurchaseOrderNotFound.WithCause(err)
	}
	return v.(*Record), nil
}

func (s *Service) PDFPath(ctx context.Context, number string) (string, error) {
	if _, err := s.GetByNumber(ctx, number); err != nil {
		return "", err
	}
	path, err := s.docs.PDFPath(number)
	if err != nil {
		return "", internal.NewInternalError("failed to resolve purchase order document", err)
	}
	return path, nil
}
