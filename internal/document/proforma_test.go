package document_test

import (
	"github.com/frahmantamala/procure-to-pay/internal/document"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseProforma", func() {
	It("recovers vendor, terms and items from labelled lines", func() {
		meta := document.ParseProforma(`
PROFORMA INVOICE
Vendor: Acme Corp
Terms: Net 15
Widget 2 x 10.00
USB hub 3x 4.50
`)
		Expect(meta.Vendor).To(Equal("Acme Corp"))
		Expect(meta.Terms).To(Equal("Net 15"))
		Expect(meta.Items).To(HaveLen(2))
		Expect(meta.Items[0].Name).To(Equal("Widget"))
		Expect(meta.Items[0].Quantity).To(Equal(2))
		Expect(meta.Items[0].UnitPrice.StringFixed(2)).To(Equal("10.00"))
		Expect(meta.Items[1].Name).To(Equal("USB hub"))
		Expect(meta.Total.StringFixed(2)).To(Equal("33.50"))
	})

	It("matches labels anywhere on the line regardless of case", func() {
		meta := document.ParseProforma("Supplier VENDOR: Globex\nPayment terms: 50% upfront")
		Expect(meta.Vendor).To(Equal("Globex"))
		Expect(meta.Terms).To(Equal("50% upfront"))
	})

	It("drops item candidates with zero quantity", func() {
		meta := document.ParseProforma("Widget 0 x 10.00\nGadget 1 x 5")
		Expect(meta.Items).To(HaveLen(1))
		Expect(meta.Items[0].Name).To(Equal("Gadget"))
	})

	It("returns an empty result for empty text", func() {
		meta := document.ParseProforma("")
		Expect(meta.Vendor).To(BeEmpty())
		Expect(meta.Items).To(BeEmpty())
		Expect(meta.Total.IsZero()).To(BeTrue())
	})
})
