package document

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a line item recognised in a proforma.
type Item struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Metadata is everything extraction could recover from a proforma. The zero
// value means nothing was found.
type Metadata struct {
	Vendor string          `json:"vendor"`
	Terms  string          `json:"terms"`
	Items  []Item          `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

var (
	vendorLine = regexp.MustCompile(`(?i)\bvendor\s*:\s*(.*)$`)
	termsLine  = regexp.MustCompile(`(?i)\bterms\s*:\s*(.*)$`)
	// "<name> <qty> x <price>", e.g. "Widget 2 x 10.00" or "USB hub 3x 19.5"
	itemLine = regexp.MustCompile(`^(.+?)\s+(\d+)\s*[xX×]\s*\$?\s*(\d+(?:\.\d+)?)\b`)
)

// ParseProforma applies the line heuristics to extracted text. Items that
// are not structurally valid (empty name, zero quantity) are dropped.
func ParseProforma(text string) Metadata {
	meta := Metadata{Items: []Item{}, Total: decimal.Zero}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := vendorLine.FindStringSubmatch(line); m != nil {
			meta.Vendor = strings.TrimSpace(m[1])
			continue
		}
		if m := termsLine.FindStringSubmatch(line); m != nil {
			meta.Terms = strings.TrimSpace(m[1])
			continue
		}

		item, ok := parseItem(line)
		if !ok {
			continue
		}
		meta.Items = append(meta.Items, item)
		meta.Total = meta.Total.Add(item.Total())
	}

	meta.Total = meta.Total.Round(2)
	return meta
}

func parseItem(line string) (Item, bool) {
	m := itemLine.FindStringSubmatch(line)
	if m == nil {
		return Item{}, false
	}

	name := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(m[1]), "-:"))
	qty, err := strconv.Atoi(m[2])
	if err != nil || qty <= 0 || name == "" {
		return Item{}, false
	}
	price, err := decimal.NewFromString(m[3])
	if err != nil || price.IsNegative() {
		return Item{}, false
	}

	return Item{Name: name, Quantity: qty, UnitPrice: price}, true
}
