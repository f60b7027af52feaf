package purchaseorder_test

import (
	"strings"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/purchaseorder"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Purchase order numbers", func() {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	It("embeds the request id and timestamp with a check digit", func() {
		number, err := purchaseorder.NewNumber(42, at)
		Expect(err).NotTo(HaveOccurred())
		Expect(number).To(HavePrefix("PO-42-1709294400"))
		Expect(number).To(HaveLen(len("PO-42-1709294400") + 1))
		Expect(purchaseorder.ValidateNumber(number)).To(Succeed())

		id, err := purchaseorder.RequestIDFromNumber(number)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(int64(42)))
	})

	It("rejects a number with a mistyped digit", func() {
		number, err := purchaseorder.NewNumber(7, at)
		Expect(err).NotTo(HaveOccurred())

		last := number[len(number)-1] - '0'
		tampered := number[:len(number)-1] + string(rune('0'+(last+1)%10))
		Expect(purchaseorder.ValidateNumber(tampered)).To(MatchError(internal.ErrInvalidPONumber))
	})

	DescribeTable("rejects malformed numbers",
		func(number string) {
			Expect(purchaseorder.ValidateNumber(number)).To(MatchError(internal.ErrInvalidPONumber))
		},
		Entry("empty", ""),
		Entry("missing prefix", "42-17092944001"),
		Entry("letters", "PO-4a-1709294400"),
		Entry("path traversal", "PO-1-1/../../etc"),
	)

	It("refuses to number an unsaved request", func() {
		_, err := purchaseorder.NewNumber(0, at)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Derive", func() {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	It("takes the vendor from the first item and the total from the request", func() {
		// Given a request whose amount differs from the sum of its items
		src := purchaseorder.Source{
			RequestID: 5,
			Amount:    decimal.RequireFromString("99.00"),
			Items: []purchaseorder.Item{
				{Name: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Vendor: "Acme Corp"},
				{Name: "Gadget", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00"), Vendor: "Globex"},
			},
		}

		// When the order is derived
		po, err := purchaseorder.Derive(src, at)

		// Then the request amount wins
		Expect(err).NotTo(HaveOccurred())
		Expect(po.Vendor).To(Equal("Acme Corp"))
		Expect(po.Total.Equal(decimal.RequireFromString("99.00"))).To(BeTrue())
		Expect(po.Terms).To(Equal(purchaseorder.DefaultTerms))
		Expect(po.Items).To(HaveLen(2))
		Expect(strings.HasPrefix(po.Number, "PO-5-")).To(BeTrue())
	})

	It("leaves the vendor empty for a request without items", func() {
		po, err := purchaseorder.Derive(purchaseorder.Source{RequestID: 9, Amount: decimal.NewFromInt(150)}, at)
		Expect(err).NotTo(HaveOccurred())
		Expect(po.Vendor).To(BeEmpty())
		Expect(po.Items).To(BeEmpty())
		Expect(po.Total.StringFixed(2)).To(Equal("150.00"))
	})

	It("snapshots items so later edits do not leak into the order", func() {
		items := []purchaseorder.Item{{Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(1), Vendor: "Acme"}}
		po, err := purchaseorder.Derive(purchaseorder.Source{RequestID: 1, Amount: decimal.NewFromInt(1), Items: items}, at)
		Expect(err).NotTo(HaveOccurred())

		items[0].Name = "Changed"
		Expect(po.Items[0].Name).To(Equal("Widget"))
	})
})
