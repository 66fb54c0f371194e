package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func scanJSON(value any, dest any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Value implements driver.Valuer.
func (a Address) Value() (driver.Value, error) { return jsonValue(a) }

// Scan implements sql.Scanner.
func (a *Address) Scan(value any) error { return scanJSON(value, a) }

// Value implements driver.Valuer.
func (p ReturnPickup) Value() (driver.Value, error) { return jsonValue(p) }

// Scan implements sql.Scanner.
func (p *ReturnPickup) Scan(value any) error { return scanJSON(value, p) }

// Value implements driver.Valuer.
func (r RefundDetails) Value() (driver.Value, error) { return jsonValue(r) }

// Scan implements sql.Scanner.
func (r *RefundDetails) Scan(value any) error { return scanJSON(value, r) }

// Value implements driver.Valuer.
func (s OrderRefundSummary) Value() (driver.Value, error) { return jsonValue(s) }

// Scan implements sql.Scanner.
func (s *OrderRefundSummary) Scan(value any) error { return scanJSON(value, s) }

// Value implements driver.Valuer.
func (s OrderShipment) Value() (driver.Value, error) { return jsonValue(s) }

// Scan implements sql.Scanner.
func (s *OrderShipment) Scan(value any) error { return scanJSON(value, s) }

// InventoryDetails is the per-product section of an inventory log entry.
type InventoryDetails []InventoryItemDetail

// Value implements driver.Valuer.
func (d InventoryDetails) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	return jsonValue([]InventoryItemDetail(d))
}

// Scan implements sql.Scanner.
func (d *InventoryDetails) Scan(value any) error { return scanJSON(value, (*[]InventoryItemDetail)(d)) }

// InventoryErrors is the per-item error section of an inventory log entry.
type InventoryErrors []InventoryItemError

// Value implements driver.Valuer.
func (e InventoryErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return jsonValue([]InventoryItemError(e))
}

// Scan implements sql.Scanner.
func (e *InventoryErrors) Scan(value any) error { return scanJSON(value, (*[]InventoryItemError)(e)) }
