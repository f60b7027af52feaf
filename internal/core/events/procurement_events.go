package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeRequestCreated       = "purchase_request.created"
	EventTypeRequestApproved      = "purchase_request.approved"
	EventTypeRequestRejected      = "purchase_request.rejected"
	EventTypePurchaseOrderIssued  = "purchase_order.issued"
	EventTypeReceiptValidated     = "receipt.validated"
	EventTypeApprovalLevelGranted = "purchase_request.level_approved"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type RequestCreatedEvent struct {
	BaseEvent
	RequestID      int64           `json:"request_id"`
	CreatedByID    int64           `json:"created_by_id"`
	Amount         decimal.Decimal `json:"amount"`
	FromProforma   bool            `json:"from_proforma"`
	ExtractedItems int             `json:"extracted_items"`
}

func NewRequestCreatedEvent(requestID, createdByID int64, amount decimal.Decimal, extractedItems int) *RequestCreatedEvent {
	return &RequestCreatedEvent{
		BaseEvent: newBase(EventTypeRequestCreated, map[string]interface{}{
			"request_id":      requestID,
			"created_by_id":   createdByID,
			"amount":          amount.StringFixed(2),
			"extracted_items": extractedItems,
		}),
		RequestID:      requestID,
		CreatedByID:    createdByID,
		Amount:         amount,
		FromProforma:   extractedItems > 0,
		ExtractedItems: extractedItems,
	}
}

// ApprovalRecordedEvent covers both a single-level approval and the
// rejection of a request; Decision tells them apart.
type ApprovalRecordedEvent struct {
	BaseEvent
	RequestID  int64  `json:"request_id"`
	ApproverID int64  `json:"approver_id"`
	Level      int    `json:"level"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment,omitempty"`
}

func NewLevelApprovedEvent(requestID, approverID int64, level int) *ApprovalRecordedEvent {
	return newApprovalEvent(EventTypeApprovalLevelGranted, requestID, approverID, level, "approved", "")
}

func NewRequestRejectedEvent(requestID, approverID int64, level int, reason string) *ApprovalRecordedEvent {
	return newApprovalEvent(EventTypeRequestRejected, requestID, approverID, level, "rejected", reason)
}

func newApprovalEvent(eventType string, requestID, approverID int64, level int, decision, comment string) *ApprovalRecordedEvent {
	return &ApprovalRecordedEvent{
		BaseEvent: newBase(eventType, map[string]interface{}{
			"request_id":  requestID,
			"approver_id": approverID,
			"level":       level,
			"decision":    decision,
		}),
		RequestID:  requestID,
		ApproverID: approverID,
		Level:      level,
		Decision:   decision,
		Comment:    comment,
	}
}

type RequestApprovedEvent struct {
	BaseEvent
	RequestID int64           `json:"request_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func NewRequestApprovedEvent(requestID int64, amount decimal.Decimal) *RequestApprovedEvent {
	return &RequestApprovedEvent{
		BaseEvent: newBase(EventTypeRequestApproved, map[string]interface{}{
			"request_id": requestID,
			"amount":     amount.StringFixed(2),
		}),
		RequestID: requestID,
		Amount:    amount,
	}
}

type PurchaseOrderIssuedEvent struct {
	BaseEvent
	RequestID       int64           `json:"request_id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	Number          string          `json:"number"`
	Vendor          string          `json:"vendor"`
	Total           decimal.Decimal `json:"total"`
}

func NewPurchaseOrderIssuedEvent(requestID, orderID int64, number, vendor string, total decimal.Decimal) *PurchaseOrderIssuedEvent {
	return &PurchaseOrderIssuedEvent{
		BaseEvent: newBase(EventTypePurchaseOrderIssued, map[string]interface{}{
			"request_id":        requestID,
			"purchase_order_id": orderID,
			"number":            number,
			"vendor":            vendor,
			"total":             total.StringFixed(2),
		}),
		RequestID:       requestID,
		PurchaseOrderID: orderID,
		Number:          number,
		Vendor:          vendor,
		Total:           total,
	}
}

type ReceiptValidatedEvent struct {
	BaseEvent
	RequestID int64    `json:"request_id"`
	Number    string   `json:"number"`
	Matches   bool     `json:"matches"`
	Issues    []string `json:"issues"`
}

func NewReceiptValidatedEvent(requestID int64, number string, matches bool, issues []string) *ReceiptValidatedEvent {
	return &ReceiptValidatedEvent{
		BaseEvent: newBase(EventTypeReceiptValidated, map[string]interface{}{
			"request_id": requestID,
			"number":     number,
			"matches":    matches,
			"issues":     issues,
		}),
		RequestID: requestID,
		Number:    number,
		Matches:   matches,
		Issues:    issues,
	}
}
