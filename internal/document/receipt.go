package document

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	IssueVendorMismatch = "Vendor mismatch"
	IssueTotalMismatch  = "Total amount mismatch"
)

// totalTolerance is the largest accepted gap between receipt and order totals.
var totalTolerance = decimal.RequireFromString("0.01")

// Expected is the purchase order data a receipt is checked against.
type Expected struct {
	Vendor string
	Total  decimal.Decimal
}

type ValidationResult struct {
	Matches bool     `json:"matches"`
	Issues  []string `json:"issues"`
}

// CompareReceipt checks receipt text against the order. The vendor must
// appear somewhere in the text (case-insensitive); the largest number in the
// text is taken as the receipt total.
func CompareReceipt(text string, expected Expected) ValidationResult {
	result := ValidationResult{Matches: true, Issues: []string{}}

	if expected.Vendor != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(expected.Vendor)) {
		result.Matches = false
		result.Issues = append(result.Issues, IssueVendorMismatch)
	}

	if receiptTotal, ok := largestNumber(text); ok {
		if receiptTotal.Sub(expected.Total).Abs().GreaterThan(totalTolerance) {
			result.Matches = false
			result.Issues = append(result.Issues, IssueTotalMismatch)
		}
	}

	return result
}

func largestNumber(text string) (decimal.Decimal, bool) {
	var (
		max   decimal.Decimal
		found bool
	)
	for _, token := range strings.Fields(strings.ReplaceAll(text, ",", " ")) {
		n, err := decimal.NewFromString(token)
		if err != nil {
			continue
		}
		if !found || n.GreaterThan(max) {
			max, found = n, true
		}
	}
	return max, found
}

// TextSource is the part of Extractor the validator needs.
type TextSource interface {
	ReadText(ctx context.Context, path string, kind Kind) string
}

// ReceiptValidator reconciles an uploaded receipt with its purchase order.
type ReceiptValidator struct {
	text   TextSource
	logger *slog.Logger
}

func NewReceiptValidator(text TextSource, logger *slog.Logger) *ReceiptValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptValidator{text: text, logger: logger}
}

// Validate never fails; unreadable receipts are compared as empty text.
func (v *ReceiptValidator) Validate(ctx context.Context, path string, expected Expected) ValidationResult {
	text := v.text.ReadText(ctx, path, KindFromPath(path))
	result := CompareReceipt(text, expected)
	v.logger.Info("receipt validated",
		"path", path,
		"matches", result.Matches,
		"issues", result.Issues)
	return result
}
