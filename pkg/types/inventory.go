package types

import "github.com/google/uuid"

// InventoryItemDetail records one product whose stock changed.
type InventoryItemDetail struct {
	ProductID     uuid.UUID `json:"product_id"`
	Name          string    `json:"name,omitempty"`
	Quantity      int       `json:"quantity"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
}

// InventoryItemError records one line item that could not be adjusted.
type InventoryItemError struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason"`
	Requested int       `json:"requested,omitempty"`
	Available *int      `json:"available,omitempty"`
}
