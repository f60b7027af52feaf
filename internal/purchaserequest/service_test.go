package purchaserequest_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/datamodel/procurement"
	"github.com/frahmantamala/procure-to-pay/internal/core/events"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/document"
	"github.com/frahmantamala/procure-to-pay/internal/purchaserequest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func widgetRequest() purchaserequest.CreateRequestDTO {
	return purchaserequest.CreateRequestDTO{
		Title:  "Widgets for the lab",
		Amount: decimal.NewFromInt(999),
		Items: []purchaserequest.ItemDTO{
			{Name: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Vendor: "Acme Corp"},
		},
	}
}

func textUpload(name, body string) *purchaserequest.Upload {
	return &purchaserequest.Upload{Filename: name, Content: strings.NewReader(body)}
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
	})

	countOrders := func() int64 {
		var n int64
		Expect(f.db.Model(&procurement.PurchaseOrder{}).Count(&n).Error).To(Succeed())
		return n
	}

	countApprovals := func(requestID int64, level int) int64 {
		var n int64
		Expect(f.db.Model(&procurement.Approval{}).
			Where("request_id = ? AND level = ?", requestID, level).
			Count(&n).Error).To(Succeed())
		return n
	}

	create := func() *purchaserequest.PurchaseRequest {
		pr, err := f.service.Create(ctx, staff, widgetRequest(), nil)
		Expect(err).NotTo(HaveOccurred())
		return pr
	}

	Describe("Create", func() {
		It("recomputes the amount from the items", func() {
			pr := create()
			Expect(pr.ID).NotTo(BeZero())
			Expect(pr.Status).To(Equal(purchaserequest.StatusPending))
			Expect(pr.Amount.StringFixed(2)).To(Equal("20.00"))
			Expect(pr.Items).To(HaveLen(1))
			Expect(f.published.Types()).To(ContainElement(events.EventTypeRequestCreated))
		})

		It("keeps the given amount when there are no items", func() {
			pr, err := f.service.Create(ctx, staff, purchaserequest.CreateRequestDTO{
				Title:  "Consulting",
				Amount: decimal.RequireFromString("150.456"),
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(pr.Amount.StringFixed(2)).To(Equal("150.46"))
		})

		It("requires a positive amount when there are no items", func() {
			_, err := f.service.Create(ctx, staff, purchaserequest.CreateRequestDTO{Title: "Nothing"}, nil)
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			Expect(details.Errors).To(HaveLen(1))
			Expect(details.Errors[0].Field).To(Equal("amount"))
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidAmount)))
		})

		It("rejects invalid items", func() {
			dto := widgetRequest()
			dto.Items[0].Quantity = 0
			_, err := f.service.Create(ctx, staff, dto, nil)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("only lets staff create requests", func() {
			_, err := f.service.Create(ctx, approver1, widgetRequest(), nil)
			Expect(err).To(MatchError(internal.ErrPermissionDenied))
		})

		It("merges items extracted from a proforma", func() {
			// Given a text proforma naming a vendor and two lines
			proforma := textUpload("quote.txt", "PROFORMA\nVendor: Initech\nStapler 3 x 4.50\nPaper 1 x 6.00\n")

			// When staff create a request with one item of their own
			pr, err := f.service.Create(ctx, staff, widgetRequest(), proforma)

			// Then extracted items carry the proforma vendor and count towards the amount
			Expect(err).NotTo(HaveOccurred())
			Expect(pr.Items).To(HaveLen(3))
			Expect(pr.Items[1].Vendor).To(Equal("Initech"))
			Expect(pr.Amount.StringFixed(2)).To(Equal("39.50"))
			Expect(pr.ProformaPath).To(HavePrefix("proformas/"))

			raw, err := f.store.ReadAll(pr.ProformaPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring("Vendor: Initech"))
		})

		It("still creates the request when the proforma is unreadable", func() {
			pr, err := f.service.Create(ctx, staff, purchaserequest.CreateRequestDTO{
				Title:  "Scanned quote",
				Amount: decimal.NewFromInt(75),
			}, textUpload("quote.pdf", "not really a pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(pr.Items).To(BeEmpty())
			Expect(pr.Amount.StringFixed(2)).To(Equal("75.00"))
		})
	})

	Describe("approval workflow", func() {
		It("issues one purchase order once both levels approve", func() {
			// Given a pending request for two widgets
			pr := create()

			// When the level one approver approves
			afterL1, err := f.service.Approve(ctx, pr.ID, approver1)

			// Then it is still pending with one approval and no order
			Expect(err).NotTo(HaveOccurred())
			Expect(afterL1.Status).To(Equal(purchaserequest.StatusPending))
			Expect(countApprovals(pr.ID, coreuser.LevelOne)).To(Equal(int64(1)))
			Expect(afterL1.PurchaseOrderID).To(BeNil())
			Expect(countOrders()).To(BeZero())

			// When the level two approver approves
			afterL2, err := f.service.Approve(ctx, pr.ID, approver2)

			// Then the request is approved and linked to a single order for 20.00
			Expect(err).NotTo(HaveOccurred())
			Expect(afterL2.Status).To(Equal(purchaserequest.StatusApproved))
			Expect(afterL2.PurchaseOrderID).NotTo(BeNil())
			Expect(afterL2.PurchaseOrderNumber).To(HavePrefix("PO-"))
			Expect(countOrders()).To(Equal(int64(1)))

			var order procurement.PurchaseOrder
			Expect(f.db.First(&order, *afterL2.PurchaseOrderID).Error).To(Succeed())
			Expect(order.TotalAmount.StringFixed(2)).To(Equal("20.00"))
			Expect(order.Vendor).To(Equal("Acme Corp"))
			Expect(order.RequestID).To(Equal(pr.ID))

			reloaded, err := f.service.Get(ctx, pr.ID, finance)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.PurchaseOrderNumber).To(Equal(order.Number))

			Expect(f.published.Types()).To(ContainElements(
				events.EventTypeApprovalLevelGranted,
				events.EventTypeRequestApproved,
				events.EventTypePurchaseOrderIssued,
			))
		})

		It("accepts level two before level one", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver2)
			Expect(err).NotTo(HaveOccurred())

			final, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Status).To(Equal(purchaserequest.StatusApproved))
			Expect(countOrders()).To(Equal(int64(1)))
		})

		It("treats a second approval at the same level as a no-op", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())

			another := &coreuser.Actor{ID: 11, Role: coreuser.RoleApproverL1}
			again, err := f.service.Approve(ctx, pr.ID, another)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(purchaserequest.StatusPending))
			Expect(countApprovals(pr.ID, coreuser.LevelOne)).To(Equal(int64(1)))
		})

		It("lets a rejection override a prior approval", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())

			rejected, err := f.service.Reject(ctx, pr.ID, approver2, "over budget")
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(purchaserequest.StatusRejected))
			Expect(rejected.PurchaseOrderID).To(BeNil())
			Expect(countOrders()).To(BeZero())

			last := rejected.Approvals[len(rejected.Approvals)-1]
			Expect(last.Decision).To(Equal(purchaserequest.DecisionRejected))
			Expect(last.Comment).To(Equal("over budget"))
			Expect(last.Level).To(Equal(coreuser.LevelTwo))
		})

		It("refuses reviews from roles without a level", func() {
			pr := create()
			for _, actor := range []*coreuser.Actor{staff, finance, {ID: 99, Role: coreuser.Role("auditor")}} {
				_, err := f.service.Approve(ctx, pr.ID, actor)
				Expect(err).To(MatchError(internal.ErrPermissionDenied))
				_, err = f.service.Reject(ctx, pr.ID, actor, "no")
				Expect(err).To(MatchError(internal.ErrPermissionDenied))
			}

			var approvals int64
			Expect(f.db.Model(&procurement.Approval{}).Count(&approvals).Error).To(Succeed())
			Expect(approvals).To(BeZero())
		})

		DescribeTable("keeps terminal requests terminal",
			func(finish func(id int64)) {
				pr := create()
				finish(pr.ID)

				before, err := f.service.Get(ctx, pr.ID, finance)
				Expect(err).NotTo(HaveOccurred())

				_, err = f.service.Approve(ctx, pr.ID, approver1)
				Expect(err).To(MatchError(internal.ErrInvalidState))
				_, err = f.service.Reject(ctx, pr.ID, approver2, "late")
				Expect(err).To(MatchError(internal.ErrInvalidState))
				_, err = f.service.Update(ctx, pr.ID, staff, purchaserequest.UpdateRequestDTO{Title: strPtr("renamed")})
				Expect(err).To(MatchError(internal.ErrInvalidState))

				after, err := f.service.Get(ctx, pr.ID, finance)
				Expect(err).NotTo(HaveOccurred())
				Expect(after.Status).To(Equal(before.Status))
				Expect(after.Approvals).To(HaveLen(len(before.Approvals)))
				Expect(after.Title).To(Equal(before.Title))
			},
			Entry("approved", func(id int64) {
				_, err := f.service.Approve(ctx, id, approver1)
				Expect(err).NotTo(HaveOccurred())
				_, err = f.service.Approve(ctx, id, approver2)
				Expect(err).NotTo(HaveOccurred())
			}),
			Entry("rejected", func(id int64) {
				_, err := f.service.Reject(ctx, id, approver1, "duplicate")
				Expect(err).NotTo(HaveOccurred())
			}),
		)

		It("rolls the final approval back when the order cannot be issued", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())

			broken := f.withOrders(failingOrders{err: errors.New("disk full")})
			_, err = broken.Approve(ctx, pr.ID, approver2)
			Expect(err).To(MatchError(ContainSubstring("disk full")))

			after, err := f.service.Get(ctx, pr.ID, finance)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Status).To(Equal(purchaserequest.StatusPending))
			Expect(after.PurchaseOrderID).To(BeNil())
			Expect(countApprovals(pr.ID, coreuser.LevelTwo)).To(BeZero())
			Expect(countOrders()).To(BeZero())

			// a retry with a working issuer completes the request
			done, err := f.service.Approve(ctx, pr.ID, approver2)
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(purchaserequest.StatusApproved))
			Expect(countOrders()).To(Equal(int64(1)))
		})

		It("reports unknown requests as not found", func() {
			_, err := f.service.Approve(ctx, 4242, approver1)
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})

		It("issues exactly one order when both levels approve concurrently", func() {
			for round := 0; round < 5; round++ {
				pr := create()

				var wg sync.WaitGroup
				errs := make([]error, 2)
				for i, actor := range []*coreuser.Actor{approver1, approver2} {
					wg.Add(1)
					go func(i int, actor *coreuser.Actor) {
						defer GinkgoRecover()
						defer wg.Done()
						_, errs[i] = f.service.Approve(ctx, pr.ID, actor)
					}(i, actor)
				}
				wg.Wait()

				Expect(errs[0]).NotTo(HaveOccurred())
				Expect(errs[1]).NotTo(HaveOccurred())

				final, err := f.service.Get(ctx, pr.ID, finance)
				Expect(err).NotTo(HaveOccurred())
				Expect(final.Status).To(Equal(purchaserequest.StatusApproved))

				var n int64
				Expect(f.db.Model(&procurement.PurchaseOrder{}).Where("request_id = ?", pr.ID).Count(&n).Error).To(Succeed())
				Expect(n).To(Equal(int64(1)))
			}
		})
	})

	Describe("Update", func() {
		It("replaces items and recomputes the amount", func() {
			pr := create()
			items := []purchaserequest.ItemDTO{
				{Name: "Gadget", Quantity: 3, UnitPrice: decimal.RequireFromString("5.25")},
			}

			updated, err := f.service.Update(ctx, pr.ID, staff, purchaserequest.UpdateRequestDTO{
				Title: strPtr("Gadgets instead"),
				Items: &items,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Title).To(Equal("Gadgets instead"))
			Expect(updated.Amount.StringFixed(2)).To(Equal("15.75"))

			reloaded, err := f.service.Get(ctx, pr.ID, staff)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Items).To(HaveLen(1))
			Expect(reloaded.Items[0].Name).To(Equal("Gadget"))
			Expect(reloaded.Amount.StringFixed(2)).To(Equal("15.75"))
		})

		It("ignores a manual amount while items are present", func() {
			pr := create()
			amount := decimal.NewFromInt(500)
			updated, err := f.service.Update(ctx, pr.ID, staff, purchaserequest.UpdateRequestDTO{Amount: &amount})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Amount.StringFixed(2)).To(Equal("20.00"))
		})

		It("only lets the creator edit", func() {
			pr := create()
			_, err := f.service.Update(ctx, pr.ID, otherStaff, purchaserequest.UpdateRequestDTO{Title: strPtr("mine now")})
			Expect(err).To(MatchError(internal.ErrPermissionDenied))
			_, err = f.service.Update(ctx, pr.ID, approver1, purchaserequest.UpdateRequestDTO{Title: strPtr("mine now")})
			Expect(err).To(MatchError(internal.ErrPermissionDenied))
		})
	})

	Describe("Delete", func() {
		It("removes the request but keeps its purchase order", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.Approve(ctx, pr.ID, approver2)
			Expect(err).NotTo(HaveOccurred())

			Expect(f.service.Delete(ctx, pr.ID, staff)).To(Succeed())

			_, err = f.service.Get(ctx, pr.ID, finance)
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
			Expect(countOrders()).To(Equal(int64(1)))

			var leftovers int64
			Expect(f.db.Model(&procurement.Approval{}).Where("request_id = ?", pr.ID).Count(&leftovers).Error).To(Succeed())
			Expect(leftovers).To(BeZero())
		})

		It("only lets the creator delete", func() {
			pr := create()
			Expect(f.service.Delete(ctx, pr.ID, otherStaff)).To(MatchError(internal.ErrPermissionDenied))
			Expect(f.service.Delete(ctx, pr.ID, finance)).To(MatchError(internal.ErrPermissionDenied))
		})
	})

	Describe("visibility", func() {
		It("never shows staff another member's requests", func() {
			mine := create()
			theirs, err := f.service.Create(ctx, otherStaff, widgetRequest(), nil)
			Expect(err).NotTo(HaveOccurred())

			list, err := f.service.List(ctx, staff)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(list)).To(ConsistOf(mine.ID))

			_, err = f.service.Get(ctx, theirs.ID, staff)
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})

		It("keeps reviewed requests visible to their approver", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.Approve(ctx, pr.ID, approver2)
			Expect(err).NotTo(HaveOccurred())

			list, err := f.service.List(ctx, approver1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(list)).To(ContainElement(pr.ID))

			got, err := f.service.Get(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(purchaserequest.StatusApproved))
		})

		It("hides a level's approved requests from other approvers at that level", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())

			peer := &coreuser.Actor{ID: 12, Role: coreuser.RoleApproverL1}
			list, err := f.service.List(ctx, peer)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(list)).NotTo(ContainElement(pr.ID))

			list, err = f.service.List(ctx, approver2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(list)).To(ContainElement(pr.ID))
		})

		It("shows finance everything and unknown roles nothing", func() {
			a := create()
			b, err := f.service.Create(ctx, otherStaff, widgetRequest(), nil)
			Expect(err).NotTo(HaveOccurred())

			list, err := f.service.List(ctx, finance)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(list)).To(ConsistOf(a.ID, b.ID))

			list, err = f.service.List(ctx, &coreuser.Actor{ID: 77, Role: coreuser.Role("auditor")})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})
	})

	Describe("SubmitReceipt", func() {
		approve := func(id int64) {
			_, err := f.service.Approve(ctx, id, approver1)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.Approve(ctx, id, approver2)
			Expect(err).NotTo(HaveOccurred())
		}

		It("validates a matching receipt against the order", func() {
			pr := create()
			approve(pr.ID)

			result, err := f.service.SubmitReceipt(ctx, pr.ID, staff, textUpload("receipt.txt", "ACME CORP LTD\nsubtotal 18.00\nTotal 20.00\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Validation).NotTo(BeNil())
			Expect(result.Validation.Matches).To(BeTrue())
			Expect(result.Validation.Issues).To(BeEmpty())
			Expect(result.Request.ReceiptPath).To(HavePrefix("receipts/"))
			Expect(f.published.Types()).To(ContainElement(events.EventTypeReceiptValidated))
		})

		It("reports every mismatch without failing", func() {
			pr := create()
			approve(pr.ID)

			result, err := f.service.SubmitReceipt(ctx, pr.ID, staff, textUpload("receipt.txt", "Other Co Total 250.00"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Validation.Matches).To(BeFalse())
			Expect(result.Validation.Issues).To(Equal([]string{document.IssueVendorMismatch, document.IssueTotalMismatch}))
		})

		It("stores the receipt without validation before an order exists", func() {
			pr := create()

			result, err := f.service.SubmitReceipt(ctx, pr.ID, staff, textUpload("receipt.txt", "Acme 20.00"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Validation).To(BeNil())

			reloaded, err := f.service.Get(ctx, pr.ID, staff)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.ReceiptPath).To(Equal(result.Request.ReceiptPath))
		})

		It("requires a file", func() {
			pr := create()
			_, err := f.service.SubmitReceipt(ctx, pr.ID, staff, nil)
			Expect(err).To(MatchError(internal.ErrMissingFile))
		})

		It("only accepts receipts from the creator", func() {
			pr := create()
			approve(pr.ID)

			_, err := f.service.SubmitReceipt(ctx, pr.ID, finance, textUpload("receipt.txt", "Acme 20.00"))
			Expect(err).To(MatchError(internal.ErrPermissionDenied))

			_, err = f.service.SubmitReceipt(ctx, pr.ID, otherStaff, textUpload("receipt.txt", "Acme 20.00"))
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})
	})

	Describe("CanViewPurchaseOrder", func() {
		It("follows the visibility of the linked request", func() {
			pr := create()
			_, err := f.service.Approve(ctx, pr.ID, approver1)
			Expect(err).NotTo(HaveOccurred())
			approved, err := f.service.Approve(ctx, pr.ID, approver2)
			Expect(err).NotTo(HaveOccurred())
			orderID := *approved.PurchaseOrderID

			for actor, want := range map[*coreuser.Actor]bool{
				staff:      true,
				otherStaff: false,
				approver1:  true,
				finance:    true,
			} {
				ok, err := f.service.CanViewPurchaseOrder(ctx, actor, orderID)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(Equal(want), "actor %s", actor.Username)
			}
		})
	})
})

func strPtr(s string) *string { return &s }

func ids(list []*purchaserequest.PurchaseRequest) []int64 {
	out := make([]int64, 0, len(list))
	for _, pr := range list {
		out = append(out, pr.ID)
	}
	return out
}
