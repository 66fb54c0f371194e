package notifications

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names the customer-facing event a notification describes.
type Kind string

const (
	KindReturnApproved        Kind = "return_approved"
	KindReturnRejected        Kind = "return_rejected"
	KindReturnPickupScheduled Kind = "return_pickup_scheduled"
	KindReturnReceived        Kind = "return_received"
	KindRefundProcessed       Kind = "refund_processed"
	KindOrderShipped          Kind = "order_shipped"
	KindOrderDelivered        Kind = "order_delivered"
	KindOrderCancelled        Kind = "order_cancelled"
)

// Message is the rendered content of one customer notification.
type Message struct {
	Kind     Kind
	ReturnID *uuid.UUID
	Subject  string
	Body     string
	Data     map[string]string
}

func (m Message) validate() error {
	if strings.TrimSpace(string(m.Kind)) == "" {
		return fmt.Errorf("notification kind required")
	}
	if strings.TrimSpace(m.Subject) == "" || strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("notification subject and body required")
	}
	return nil
}

func ReturnApproved(returnID uuid.UUID, returnNumber string) Message {
	return Message{
		Kind:     KindReturnApproved,
		ReturnID: &returnID,
		Subject:  fmt.Sprintf("Your return %s has been approved", returnNumber),
		Body: fmt.Sprintf("Good news! Your return request %s has been approved. "+
			"We will arrange a pickup from your address shortly.", returnNumber),
		Data: map[string]string{"return_number": returnNumber},
	}
}

func ReturnRejected(returnID uuid.UUID, returnNumber, reason string) Message {
	body := fmt.Sprintf("Your return request %s could not be approved.", returnNumber)
	if reason = strings.TrimSpace(reason); reason != "" {
		body += " Reason: " + reason
	}
	return Message{
		Kind:     KindReturnRejected,
		ReturnID: &returnID,
		Subject:  fmt.Sprintf("Update on your return %s", returnNumber),
		Body:     body,
		Data:     map[string]string{"return_number": returnNumber},
	}
}

func ReturnPickupScheduled(returnID uuid.UUID, returnNumber, awb, courier, trackingURL string) Message {
	return Message{
		Kind:     KindReturnPickupScheduled,
		ReturnID: &returnID,
		Subject:  fmt.Sprintf("Pickup scheduled for return %s", returnNumber),
		Body: fmt.Sprintf("A pickup for your return %s has been scheduled with %s. "+
			"AWB: %s. Track it at %s", returnNumber, courier, awb, trackingURL),
		Data: map[string]string{
			"return_number": returnNumber,
			"awb_code":      awb,
			"courier_name":  courier,
			"tracking_url":  trackingURL,
		},
	}
}

func ReturnReceived(returnID uuid.UUID, returnNumber string) Message {
	return Message{
		Kind:     KindReturnReceived,
		ReturnID: &returnID,
		Subject:  fmt.Sprintf("We received your return %s", returnNumber),
		Body: fmt.Sprintf("Your return %s has reached our warehouse. "+
			"We will inspect the items and process your refund.", returnNumber),
		Data: map[string]string{"return_number": returnNumber},
	}
}

func RefundProcessed(returnID uuid.UUID, returnNumber string, amount decimal.Decimal, currency string) Message {
	return Message{
		Kind:     KindRefundProcessed,
		ReturnID: &returnID,
		Subject:  fmt.Sprintf("Refund issued for return %s", returnNumber),
		Body: fmt.Sprintf("A refund of %s %s for return %s has been issued to your original payment method.",
			strings.ToUpper(currency), amount.StringFixed(2), returnNumber),
		Data: map[string]string{
			"return_number": returnNumber,
			"amount":        amount.StringFixed(2),
		},
	}
}

func OrderShipped(orderNumber, awb, courier, trackingURL string) Message {
	return Message{
		Kind:    KindOrderShipped,
		Subject: fmt.Sprintf("Your order %s has shipped", orderNumber),
		Body: fmt.Sprintf("Your order %s is on its way with %s. AWB: %s. Track it at %s",
			orderNumber, courier, awb, trackingURL),
		Data: map[string]string{
			"order_number": orderNumber,
			"awb_code":     awb,
			"courier_name": courier,
			"tracking_url": trackingURL,
		},
	}
}

func OrderDelivered(orderNumber string) Message {
	return Message{
		Kind:    KindOrderDelivered,
		Subject: fmt.Sprintf("Your order %s was delivered", orderNumber),
		Body:    fmt.Sprintf("Your order %s has been delivered. We hope you love it.", orderNumber),
		Data:    map[string]string{"order_number": orderNumber},
	}
}

func OrderCancelled(orderNumber, reason string) Message {
	body := fmt.Sprintf("Your order %s has been cancelled.", orderNumber)
	if reason = strings.TrimSpace(reason); reason != "" {
		body += " Reason: " + reason
	}
	return Message{
		Kind:    KindOrderCancelled,
		Subject: fmt.Sprintf("Your order %s was cancelled", orderNumber),
		Body:    body,
		Data:    map[string]string{"order_number": orderNumber},
	}
}
