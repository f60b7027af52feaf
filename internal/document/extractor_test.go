package document_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/frahmantamala/procure-to-pay/internal/document"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeImageReader struct {
	text string
	err  error
	seen []string
}

func (f *fakeImageReader) ReadImage(_ context.Context, path string) (string, error) {
	f.seen = append(f.seen, path)
	return f.text, f.err
}

var _ = Describe("Extractor", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
	})

	DescribeTable("KindFromPath",
		func(path string, kind document.Kind) {
			Expect(document.KindFromPath(path)).To(Equal(kind))
		},
		Entry("pdf", "a/b/proforma.PDF", document.KindPDF),
		Entry("text", "quote.txt", document.KindText),
		Entry("png", "scan.png", document.KindImage),
		Entry("no extension", "upload", document.KindImage),
	)

	It("extracts proforma metadata from a text upload", func() {
		path := filepath.Join(dir, "proforma.txt")
		Expect(os.WriteFile(path, []byte("Vendor: Acme Corp\nWidget 2 x 10.00\n"), 0o644)).To(Succeed())

		meta := document.NewExtractor(nil, quietLogger()).ExtractProforma(ctx, path, document.KindText)
		Expect(meta.Vendor).To(Equal("Acme Corp"))
		Expect(meta.Items).To(HaveLen(1))
		Expect(meta.Total.StringFixed(2)).To(Equal("20.00"))
	})

	It("routes images through the image reader", func() {
		reader := &fakeImageReader{text: "Vendor: Initech\nStapler 1 x 7.25"}
		meta := document.NewExtractor(reader, quietLogger()).ExtractProforma(ctx, "scan.jpg", document.KindImage)
		Expect(reader.seen).To(Equal([]string{"scan.jpg"}))
		Expect(meta.Vendor).To(Equal("Initech"))
	})

	It("returns empty metadata when the image reader fails", func() {
		reader := &fakeImageReader{err: errors.New("ocr crashed")}
		meta := document.NewExtractor(reader, quietLogger()).ExtractProforma(ctx, "scan.jpg", document.KindImage)
		Expect(meta.Vendor).To(BeEmpty())
		Expect(meta.Items).To(BeEmpty())
	})

	It("returns empty text for an unreadable pdf", func() {
		path := filepath.Join(dir, "broken.pdf")
		Expect(os.WriteFile(path, []byte("not a pdf"), 0o644)).To(Succeed())
		Expect(document.NewExtractor(nil, quietLogger()).ReadText(ctx, path, document.KindPDF)).To(BeEmpty())
	})

	It("returns empty text for images when no reader is configured", func() {
		Expect(document.NewExtractor(nil, quietLogger()).ReadText(ctx, "scan.png", document.KindImage)).To(BeEmpty())
	})

	It("reports a missing OCR command", func() {
		_, err := document.CommandImageReader{}.ReadImage(ctx, "scan.png")
		Expect(err).To(MatchError(document.ErrNoOCRCommand))
	})
})
