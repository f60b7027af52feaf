package purchaseorder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

const documentDir = "purchase_orders"

// Record is the persisted purchase order document, keyed by number.
type Record struct {
	Number    string          `json:"po_number"`
	RequestID int64           `json:"request_id"`
	Vendor    string          `json:"vendor"`
	Terms     string          `json:"terms"`
	Total     decimal.Decimal `json:"total"`
	Items     []Item          `json:"items"`
	IssuedAt  time.Time       `json:"issued_at"`
}

func RecordOf(po *PurchaseOrder) Record {
	items := po.Items
	if items == nil {
		items = []Item{}
	}
	return Record{
		Number:    po.Number,
		RequestID: po.RequestID,
		Vendor:    po.Vendor,
		Terms:     po.Terms,
		Total:     po.Total,
		Items:     items,
		IssuedAt:  po.CreatedAt.UTC(),
	}
}

// Store is the file storage the documents are written to.
type Store interface {
	Put(name string, data []byte) (string, error)
	ReadAll(name string) ([]byte, error)
	Path(name string) (string, error)
}

// Documents writes and reads the JSON record and PDF rendering of orders.
type Documents struct {
	store Store
}

func NewDocuments(store Store) *Documents {
	return &Documents{store: store}
}

func JSONName(number string) string { return documentDir + "/" + number + ".json" }
func PDFName(number string) string  { return documentDir + "/" + number + ".pdf" }

// Write stores both renderings and returns the name of the JSON record.
func (d *Documents) Write(po *PurchaseOrder) (string, error) {
	rec := RecordOf(po)

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode purchase order %s: %w", po.Number, err)
	}
	name, err := d.store.Put(JSONName(po.Number), raw)
	if err != nil {
		return "", err
	}

	pdf, err := RenderPDF(rec)
	if err != nil {
		return "", err
	}
	if _, err := d.store.Put(PDFName(po.Number), pdf); err != nil {
		return "", err
	}
	return name, nil
}

func (d *Documents) Load(number string) (*Record, error) {
	raw, err := d.store.ReadAll(JSONName(number))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode purchase order %s: %w", number, err)
	}
	return &rec, nil
}

func (d *Documents) PDFPath(number string) (string, error) {
	return d.store.Path(PDFName(number))
}

// RenderPDF lays the order out on a single A4 page.
func RenderPDF(rec Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PURCHASE ORDER", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	for _, row := range [][2]string{
		{"Number", rec.Number},
		{"Request", "#" + strconv.FormatInt(rec.RequestID, 10)},
		{"Vendor", rec.Vendor},
		{"Terms", rec.Terms},
		{"Issued", rec.IssuedAt.Format("2006-01-02 15:04 MST")},
	} {
		pdf.CellFormat(30, 6, row[0]+":", "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, row[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{80, 25, 35, 40}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Item", "Qty", "Unit price", "Line total"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, it := range rec.Items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		pdf.CellFormat(widths[0], 7, it.Name, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, it.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, line.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, rec.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render purchase order pdf: %w", err)
	}
	return buf.Bytes(), nil
}
