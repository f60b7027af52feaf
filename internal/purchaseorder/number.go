package purchaseorder

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/frahmantamala/procure-to-pay/internal"
)

var numberPattern = regexp.MustCompile(`^PO-(\d+)-(\d+)$`)

// NewNumber formats PO-<request id>-<unix seconds><check digit>. The Luhn
// digit is computed over the request id and timestamp digits together, so a
// mistyped number is rejected before it reaches the database.
func NewNumber(requestID int64, at time.Time) (string, error) {
	if requestID <= 0 {
		return "", fmt.Errorf("purchase order number: invalid request id %d", requestID)
	}
	id := strconv.FormatInt(requestID, 10)
	stamp := strconv.FormatInt(at.Unix(), 10)

	check, _, err := goluhn.Calculate(id + stamp)
	if err != nil {
		return "", fmt.Errorf("purchase order number: %w", err)
	}
	return "PO-" + id + "-" + stamp + check, nil
}

// ValidateNumber checks the shape and check digit of a purchase order number.
func ValidateNumber(number string) error {
	m := numberPattern.FindStringSubmatch(number)
	if m == nil {
		return internal.ErrInvalidPONumber
	}
	if err := goluhn.Validate(m[1] + m[2]); err != nil {
		return internal.ErrInvalidPONumber.WithCause(err)
	}
	return nil
}

// RequestIDFromNumber returns the request id embedded in a valid number.
func RequestIDFromNumber(number string) (int64, error) {
	if err := ValidateNumber(number); err != nil {
		return 0, err
	}
	m := numberPattern.FindStringSubmatch(number)
	return strconv.ParseInt(m[1], 10, 64)
}
