package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

// RefundDetails is the refund record kept on a return request.
type RefundDetails struct {
	OriginalAmount  decimal.Decimal    `json:"original_amount"`
	RefundAmount    *decimal.Decimal   `json:"refund_amount,omitempty"`
	TransactionID   string             `json:"transaction_id,omitempty"`
	Status          enums.RefundStatus `json:"status,omitempty"`
	Receipt         string             `json:"receipt,omitempty"`
	GatewayResponse *GatewayRefund     `json:"gateway_response,omitempty"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	LastCheckedAt   *time.Time         `json:"last_checked_at,omitempty"`
}

// Amount returns the explicit refund amount when set, else the original amount.
func (r RefundDetails) Amount() decimal.Decimal {
	if r.RefundAmount != nil {
		return *r.RefundAmount
	}
	return r.OriginalAmount
}

// HasSuccessfulTransaction reports whether a gateway refund has already been
// recorded for the return.
func (r RefundDetails) HasSuccessfulTransaction() bool {
	return r.TransactionID != "" && r.Status != enums.RefundStatusFailed
}

// GatewayRefund mirrors the refund object returned by the payment gateway.
type GatewayRefund struct {
	ID            string             `json:"id"`
	Status        enums.RefundStatus `json:"status"`
	GatewayStatus string             `json:"gateway_status"`
	AmountMinor   int64              `json:"amount"`
	Currency      string             `json:"currency,omitempty"`
	PaymentID     string             `json:"payment_id"`
	Speed         string             `json:"speed,omitempty"`
	CreatedAt     *time.Time         `json:"created_at,omitempty"`
	Raw           JSONMap            `json:"raw,omitempty"`
}

// OrderRefundSummary is attached to an order once it has been refunded in full.
type OrderRefundSummary struct {
	ReturnID      string          `json:"return_id"`
	ReturnNumber  string          `json:"return_number"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	RefundedAt    time.Time       `json:"refunded_at"`
}
