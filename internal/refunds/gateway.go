package refunds

import (
	"context"

	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// RefundRequest is a refund of AmountMinor currency units against a captured payment.
type RefundRequest struct {
	PaymentID   string
	AmountMinor int64
	Currency    string
	Receipt     string
	Metadata    map[string]string
}

// PaymentGateway issues and inspects refunds at the payment provider.
type PaymentGateway interface {
	Refund(ctx context.Context, req RefundRequest) (*types.GatewayRefund, error)
	GetRefund(ctx context.Context, refundID string) (*types.GatewayRefund, error)
}
