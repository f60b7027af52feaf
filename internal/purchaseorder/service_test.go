package purchaseorder_test

import (
	"context"
	"os"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	"github.com/frahmantamala/procure-to-pay/internal/core/datamodel/procurement"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder/postgres"
	"github.com/frahmantamala/procure-to-pay/pkg/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		store   *storage.LocalStorage
		service *purchaseorder.Service
		request procurement.PurchaseRequest
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(database.AutoMigrate(db)).To(Succeed())

		store, err = storage.NewLocalStorage(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		request = procurement.PurchaseRequest{
			Title:       "Office supplies",
			Amount:      decimal.RequireFromString("20.00"),
			Status:      "approved",
			CreatedByID: 1,
		}
		Expect(db.Create(&request).Error).To(Succeed())

		service = purchaseorder.NewService(
			postgres.NewPurchaseOrderRepository(db),
			purchaseorder.NewDocuments(store),
			purchaseorder.NewDocumentCache(nil, time.Minute),
			quietLogger(),
		)
	})

	issue := func(ctx context.Context) *purchaseorder.PurchaseOrder {
		po, err := service.Issue(ctx, purchaseorder.Source{
			RequestID: request.ID,
			Amount:    request.Amount,
			Items: []purchaseorder.Item{
				{Name: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Vendor: "Acme Corp"},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return po
	}

	It("persists the order with its item snapshot", func() {
		po := issue(ctx)
		Expect(po.ID).NotTo(BeZero())
		Expect(po.DocumentPath).To(Equal(purchaseorder.JSONName(po.Number)))

		found, err := service.GetByNumber(ctx, po.Number)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.RequestID).To(Equal(request.ID))
		Expect(found.Vendor).To(Equal("Acme Corp"))
		Expect(found.Items).To(HaveLen(1))
		Expect(found.Items[0].UnitPrice.StringFixed(2)).To(Equal("10.00"))
		Expect(found.Total.Equal(decimal.RequireFromString("20.00"))).To(BeTrue())

		byID, err := service.GetByID(ctx, po.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Number).To(Equal(po.Number))
	})

	It("writes a JSON record and a PDF rendering", func() {
		po := issue(ctx)

		rec, err := service.Record(ctx, po.Number)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Number).To(Equal(po.Number))
		Expect(rec.RequestID).To(Equal(request.ID))
		Expect(rec.Terms).To(Equal("Net 30"))

		path, err := service.PDFPath(ctx, po.Number)
		Expect(err).NotTo(HaveOccurred())
		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw[:5])).To(Equal("%PDF-"))
	})

	It("reports unknown numbers as not found", func() {
		number, err := purchaseorder.NewNumber(999, time.Now())
		Expect(err).NotTo(HaveOccurred())

		_, err = service.GetByNumber(ctx, number)
		Expect(err).To(MatchError(internal.ErrPurchaseOrderNotFound))
	})

	It("hides orders whose number names another request", func() {
		number, err := purchaseorder.NewNumber(request.ID+100, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(postgres.NewPurchaseOrderRepository(db).Create(ctx, &purchaseorder.PurchaseOrder{
			Number:    number,
			RequestID: request.ID,
			Terms:     purchaseorder.DefaultTerms,
			Total:     request.Amount,
		})).To(Succeed())

		_, err = service.GetByNumber(ctx, number)
		Expect(err).To(MatchError(internal.ErrPurchaseOrderNotFound))
	})

	It("rejects malformed numbers before touching storage", func() {
		_, err := service.Record(ctx, "../../etc/passwd")
		Expect(err).To(MatchError(internal.ErrInvalidPONumber))
	})

	It("joins the caller's transaction", func() {
		tx := database.NewTransactionManager(db)

		err := tx.RunInTx(ctx, func(txCtx context.Context) error {
			issue(txCtx)
			return internal.ErrInvalidState
		})
		Expect(err).To(MatchError(internal.ErrInvalidState))

		var count int64
		Expect(db.Model(&procurement.PurchaseOrder{}).Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
	})
})
