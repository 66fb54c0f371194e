package shipping

import (
	"strings"
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

func unitCount(order *models.Order) int {
	total := 0
	for _, item := range order.Items {
		total += item.Qty
	}
	return total
}

func deliveryAddress(order *models.Order) types.Address {
	addr := order.ShippingAddress
	if strings.TrimSpace(addr.Email) == "" && order.User != nil {
		addr.Email = order.User.Email
	}
	if strings.TrimSpace(addr.Name) == "" && order.User != nil {
		addr.Name = order.User.Name
	}
	return addr
}

func validateForShipment(order *models.Order) error {
	addr := deliveryAddress(order)
	var reasons []string
	if strings.TrimSpace(addr.Name) == "" {
		reasons = append(reasons, "Shipping name is required")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		reasons = append(reasons, "Shipping address line is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		reasons = append(reasons, "Shipping city is required")
	}
	if strings.TrimSpace(addr.State) == "" {
		reasons = append(reasons, "Shipping state is required")
	}
	if !types.ValidPostalCode(addr.PostalCode) {
		reasons = append(reasons, "Shipping postal code must be 6 digits")
	}
	if len(types.NormalizePhone(addr.Phone)) != 10 {
		reasons = append(reasons, "Shipping phone must be 10 digits")
	}
	if len(order.Items) == 0 {
		reasons = append(reasons, "Order has no items")
	}
	if verr := pkgerrors.Validation(reasons); verr != nil {
		return verr
	}
	return nil
}

func buildForwardOrder(order *models.Order, warehouse config.WarehouseConfig, now time.Time) courier.ForwardOrderRequest {
	addr := deliveryAddress(order)
	items := make([]courier.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, courier.OrderItem{
			Name:         item.Name,
			SKU:          item.SKU,
			Units:        item.Qty,
			SellingPrice: item.UnitPrice.InexactFloat64(),
		})
	}
	first, last := splitName(addr.Name)
	country := addr.Country
	if country == "" {
		country = "India"
	}
	return courier.ForwardOrderRequest{
		OrderID:        order.OrderNumber,
		OrderDate:      now.Format("2006-01-02 15:04"),
		PickupLocation: warehouse.PickupAlias,

		BillingCustomerName: first,
		BillingLastName:     last,
		BillingAddress:      addr.Line1,
		BillingAddress2:     addr.Line2,
		BillingCity:         addr.City,
		BillingState:        addr.State,
		BillingCountry:      country,
		BillingPincode:      strings.TrimSpace(addr.PostalCode),
		BillingEmail:        addr.Email,
		BillingPhone:        types.NormalizePhone(addr.Phone),
		ShippingIsBilling:   true,

		OrderItems:    items,
		PaymentMethod: "Prepaid",
		SubTotal:      order.TotalAmount.InexactFloat64(),
		Package:       courier.StandardParcel(unitCount(order)),
	}
}

// splitName splits on the last space; the courier wants separate name fields.
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	idx := strings.LastIndex(full, " ")
	if idx <= 0 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}
