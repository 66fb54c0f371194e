package courier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID accepts both numeric and string identifiers from the courier API.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as numbers, which the courier API expects.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty or the numeric 0 the courier sends
// on rejected bookings.
func (id ID) IsZero() bool {
	v := strings.TrimSpace(string(id))
	return v == "" || v == "0"
}

// OrderItem is a line of a courier order.
type OrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
	QCEnable     bool    `json:"qc_enable,omitempty"`
}

// Package describes the parcel dimensions in cm and weight in kg.
type Package struct {
	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`
}

// ReturnOrderRequest books a reverse shipment from a customer to the warehouse.
type ReturnOrderRequest struct {
	OrderID   string `json:"order_id"`
	OrderDate string `json:"order_date"`

	PickupCustomerName string `json:"pickup_customer_name"`
	PickupAddress      string `json:"pickup_address"`
	PickupAddress2     string `json:"pickup_address_2,omitempty"`
	PickupCity         string `json:"pickup_city"`
	PickupState        string `json:"pickup_state"`
	PickupCountry      string `json:"pickup_country"`
	PickupPincode      string `json:"pickup_pincode"`
	PickupEmail        string `json:"pickup_email"`
	PickupPhone        string `json:"pickup_phone"`

	ShippingCustomerName string `json:"shipping_customer_name"`
	ShippingAddress      string `json:"shipping_address"`
	ShippingAddress2     string `json:"shipping_address_2,omitempty"`
	ShippingCity         string `json:"shipping_city"`
	ShippingState        string `json:"shipping_state"`
	ShippingCountry      string `json:"shipping_country"`
	ShippingPincode      string `json:"shipping_pincode"`
	ShippingEmail        string `json:"shipping_email,omitempty"`
	ShippingPhone        string `json:"shipping_phone"`

	OrderItems    []OrderItem `json:"order_items"`
	PaymentMethod string      `json:"payment_method"`
	SubTotal      float64     `json:"sub_total"`
	Package
}

// ForwardOrderRequest books an outbound shipment from the warehouse pickup
// location to the customer.
type ForwardOrderRequest struct {
	OrderID        string `json:"order_id"`
	OrderDate      string `json:"order_date"`
	PickupLocation string `json:"pickup_location"`

	BillingCustomerName string `json:"billing_customer_name"`
	BillingLastName     string `json:"billing_last_name"`
	BillingAddress      string `json:"billing_address"`
	BillingAddress2     string `json:"billing_address_2,omitempty"`
	BillingCity         string `json:"billing_city"`
	BillingState        string `json:"billing_state"`
	BillingCountry      string `json:"billing_country"`
	BillingPincode      string `json:"billing_pincode"`
	BillingEmail        string `json:"billing_email"`
	BillingPhone        string `json:"billing_phone"`
	ShippingIsBilling   bool   `json:"shipping_is_billing"`

	OrderItems    []OrderItem `json:"order_items"`
	PaymentMethod string      `json:"payment_method"`
	SubTotal      float64     `json:"sub_total"`
	Package
}

// OrderResponse is returned by both order creation endpoints.
type OrderResponse struct {
	OrderID    ID     `json:"order_id"`
	ShipmentID ID     `json:"shipment_id"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
}

// Accepted reports whether the courier booked the shipment. Rejections come
// back as HTTP 200 with a zero status code and shipment id.
func (r *OrderResponse) Accepted() bool {
	return r != nil && r.StatusCode > 0 && !r.ShipmentID.IsZero()
}

// RejectedError is returned when an order creation call succeeds at the HTTP
// level but the courier declined the booking.
type RejectedError struct {
	Path       string
	StatusCode int
	ShipmentID ID
	Message    string
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no shipment created"
	}
	return fmt.Sprintf("courier rejected %s (status_code=%d, shipment_id=%q): %s", e.Path, e.StatusCode, e.ShipmentID, msg)
}

// ServiceabilityQuery asks which couriers serve a lane.
type ServiceabilityQuery struct {
	PickupPostcode   string
	DeliveryPostcode string
	WeightKg         float64
	IsReturn         bool
}

// CourierOption is one courier able to serve a lane.
type CourierOption struct {
	CourierCompanyID int     `json:"courier_company_id"`
	CourierName      string  `json:"courier_name"`
	FreightCharge    float64 `json:"freight_charge"`
	Rate             float64 `json:"rate"`
	IsSurface        bool    `json:"is_surface"`
	ETD              string  `json:"etd"`
}

// AWBAssignment is the courier allocation for a shipment.
type AWBAssignment struct {
	AWBCode     string `json:"awb_code"`
	CourierID   int    `json:"courier_company_id"`
	CourierName string `json:"courier_name"`
	ShipmentID  ID     `json:"shipment_id"`
}

// PickupConfirmation is the courier's answer to a pickup request.
type PickupConfirmation struct {
	Status        int    `json:"pickup_status"`
	ScheduledDate string `json:"pickup_scheduled_date"`
	TokenNumber   string `json:"pickup_token_number"`
}

// TrackingActivity is a single scan in the courier's tracking feed.
type TrackingActivity struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	Activity string `json:"activity"`
	Location string `json:"location"`
}

// TrackingInfo summarizes a shipment's courier-side state.
type TrackingInfo struct {
	AWBCode       string
	CurrentStatus string
	ETD           string
	TrackURL      string
	Activities    []TrackingActivity
}
