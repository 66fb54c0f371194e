package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgstripe "github.com/aurelia-jewels/aurelia-backend/pkg/stripe"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// StripeGateway issues refunds through Stripe.
type StripeGateway struct {
	currency string
}

// NewStripeGateway wraps the configured Stripe client.
func NewStripeGateway(client *pkgstripe.Client) (*StripeGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeGateway{currency: client.Currency()}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*types.GatewayRefund, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, fmt.Errorf("payment id required")
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("refund amount must be positive")
	}
	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.AmountMinor),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if strings.HasPrefix(req.PaymentID, "ch_") {
		params.Charge = stripe.String(req.PaymentID)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentID)
	}
	if req.Receipt != "" {
		params.SetIdempotencyKey(req.Receipt)
		params.AddMetadata("receipt", req.Receipt)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	created, err := refund.New(params)
	if err != nil {
		return nil, err
	}
	return g.toGatewayRefund(created, req.PaymentID), nil
}

func (g *StripeGateway) GetRefund(ctx context.Context, refundID string) (*types.GatewayRefund, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, fmt.Errorf("refund id required")
	}
	params := &stripe.RefundParams{}
	params.Context = ctx
	fetched, err := refund.Get(refundID, params)
	if err != nil {
		return nil, err
	}
	return g.toGatewayRefund(fetched, ""), nil
}

func (g *StripeGateway) toGatewayRefund(r *stripe.Refund, paymentID string) *types.GatewayRefund {
	if r.PaymentIntent != nil && r.PaymentIntent.ID != "" {
		paymentID = r.PaymentIntent.ID
	} else if r.Charge != nil && r.Charge.ID != "" {
		paymentID = r.Charge.ID
	}
	currency := string(r.Currency)
	if currency == "" {
		currency = g.currency
	}
	out := &types.GatewayRefund{
		ID:            r.ID,
		Status:        MapStripeStatus(r.Status),
		GatewayStatus: string(r.Status),
		AmountMinor:   r.Amount,
		Currency:      currency,
		PaymentID:     paymentID,
		Raw: types.JSONMap{
			"object":  r.Object,
			"reason":  string(r.Reason),
			"status":  string(r.Status),
			"receipt": r.Metadata["receipt"],
		},
	}
	if r.Created > 0 {
		created := time.Unix(r.Created, 0).UTC()
		out.CreatedAt = &created
	}
	return out
}

// MapStripeStatus folds Stripe refund states into processed, pending or failed.
func MapStripeStatus(status stripe.RefundStatus) enums.RefundStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return enums.RefundStatusProcessed
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}
