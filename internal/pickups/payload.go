package pickups

import (
	"fmt"
	"strings"
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

func packageWeight(itemCount int) float64 {
	return courier.ParcelWeight(itemCount)
}

// pickupAddress returns the pickup-from address with the customer's account
// email as fallback.
func pickupAddress(ret *models.ReturnRequest) types.Address {
	addr := ret.Pickup.Address
	if strings.TrimSpace(addr.Email) == "" && ret.User != nil {
		addr.Email = ret.User.Email
	}
	return addr
}

// validateForPickup collects every problem with the return at once.
func validateForPickup(ret *models.ReturnRequest) error {
	addr := pickupAddress(ret)
	var reasons []string
	if strings.TrimSpace(addr.Name) == "" {
		reasons = append(reasons, "Pickup name is required")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		reasons = append(reasons, "Pickup address line is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		reasons = append(reasons, "Pickup city is required")
	}
	if strings.TrimSpace(addr.State) == "" {
		reasons = append(reasons, "Pickup state is required")
	}
	if !types.ValidPostalCode(addr.PostalCode) {
		reasons = append(reasons, "Pickup postal code must be 6 digits")
	}
	if len(types.NormalizePhone(addr.Phone)) != 10 {
		reasons = append(reasons, "Pickup phone must be 10 digits")
	}
	if len(ret.Items) == 0 {
		reasons = append(reasons, "Return has no items")
	}
	if !ret.RefundDetails.Amount().IsPositive() {
		reasons = append(reasons, "Return amount must be greater than zero")
	}
	if strings.TrimSpace(addr.Email) == "" {
		reasons = append(reasons, "Customer email is required")
	}
	if verr := pkgerrors.Validation(reasons); verr != nil {
		return verr
	}
	return nil
}

func buildReturnOrder(ret *models.ReturnRequest, warehouse config.WarehouseConfig, now time.Time) courier.ReturnOrderRequest {
	addr := pickupAddress(ret)
	items := make([]courier.OrderItem, 0, len(ret.Items))
	for i, item := range ret.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			sku = "RET-ITEM"
		}
		items = append(items, courier.OrderItem{
			Name:         item.Name,
			SKU:          fmt.Sprintf("%s-%d", sku, i+1),
			Units:        item.Quantity,
			SellingPrice: item.UnitPrice.InexactFloat64(),
			QCEnable:     true,
		})
	}
	country := addr.Country
	if country == "" {
		country = "India"
	}
	return courier.ReturnOrderRequest{
		OrderID:   ret.ReturnNumber,
		OrderDate: now.Format("2006-01-02 15:04"),

		PickupCustomerName: addr.Name,
		PickupAddress:      addr.Line1,
		PickupAddress2:     addr.Line2,
		PickupCity:         addr.City,
		PickupState:        addr.State,
		PickupCountry:      country,
		PickupPincode:      strings.TrimSpace(addr.PostalCode),
		PickupEmail:        addr.Email,
		PickupPhone:        types.NormalizePhone(addr.Phone),

		ShippingCustomerName: warehouse.Name,
		ShippingAddress:      warehouse.Line1,
		ShippingAddress2:     warehouse.Line2,
		ShippingCity:         warehouse.City,
		ShippingState:        warehouse.State,
		ShippingCountry:      warehouse.Country,
		ShippingPincode:      warehouse.PostalCode,
		ShippingEmail:        warehouse.Email,
		ShippingPhone:        types.NormalizePhone(warehouse.Phone),

		OrderItems:    items,
		PaymentMethod: "Prepaid",
		SubTotal:      ret.ItemsTotal().InexactFloat64(),
		Package:       courier.StandardParcel(ret.ItemCount()),
	}
}
