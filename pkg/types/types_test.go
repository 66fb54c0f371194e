package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765-43210": "9876543210",
		"919876543210":    "9876543210",
		"098765 43210":    "9876543210",
		"9876543210":      "9876543210",
		"12345":           "12345",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestValidPostalCode(t *testing.T) {
	assert.True(t, ValidPostalCode("560001"))
	assert.True(t, ValidPostalCode(" 110011 "))
	assert.False(t, ValidPostalCode("056001"))
	assert.False(t, ValidPostalCode("5600"))
	assert.False(t, ValidPostalCode("56000A"))
}

func TestRefundDetailsAmount(t *testing.T) {
	details := RefundDetails{OriginalAmount: decimal.NewFromInt(5000)}
	assert.True(t, details.Amount().Equal(decimal.NewFromInt(5000)))

	partial := decimal.NewFromInt(1200)
	details.RefundAmount = &partial
	assert.True(t, details.Amount().Equal(partial))
}

func TestRefundDetailsHasSuccessfulTransaction(t *testing.T) {
	assert.False(t, RefundDetails{}.HasSuccessfulTransaction())
	assert.True(t, RefundDetails{TransactionID: "re_1", Status: enums.RefundStatusPending}.HasSuccessfulTransaction())
	assert.False(t, RefundDetails{TransactionID: "re_1", Status: enums.RefundStatusFailed}.HasSuccessfulTransaction())
}

func TestReturnPickupJSONRoundTrip(t *testing.T) {
	awb := "AWB123"
	pickup := ReturnPickup{ShipmentID: "987", AWBCode: &awb, Status: enums.PickupStatusScheduled}

	value, err := pickup.Value()
	require.NoError(t, err)

	var decoded ReturnPickup
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, "987", decoded.ShipmentID)
	assert.True(t, decoded.HasAWB())
	assert.Equal(t, enums.PickupStatusScheduled, decoded.Status)
}

func TestReturnPickupWithoutAWB(t *testing.T) {
	var pickup ReturnPickup
	require.NoError(t, pickup.Scan(`{"shipment_id":"55","awb_code":null}`))
	assert.True(t, pickup.HasShipment())
	assert.False(t, pickup.HasAWB())
	assert.Nil(t, pickup.AWBCode)
}

func TestInventoryErrorsNilEncodesEmptyArray(t *testing.T) {
	var errs InventoryErrors
	value, err := errs.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)
}
