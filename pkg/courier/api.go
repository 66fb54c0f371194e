package courier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreateReturnOrder books a reverse shipment.
func (c *Client) CreateReturnOrder(ctx context.Context, req ReturnOrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/create/return", req, &out); err != nil {
		return nil, err
	}
	if !out.Accepted() {
		return nil, rejected("/orders/create/return", &out)
	}
	return &out, nil
}

// CreateOrder books a forward shipment.
func (c *Client) CreateOrder(ctx context.Context, req ForwardOrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", req, &out); err != nil {
		return nil, err
	}
	if !out.Accepted() {
		return nil, rejected("/orders/create/adhoc", &out)
	}
	return &out, nil
}

func rejected(path string, out *OrderResponse) error {
	return &RejectedError{
		Path:       path,
		StatusCode: out.StatusCode,
		ShipmentID: out.ShipmentID,
		Message:    out.Message,
	}
}

// Serviceability lists couriers able to carry a parcel on the lane.
func (c *Client) Serviceability(ctx context.Context, q ServiceabilityQuery) ([]CourierOption, error) {
	params := url.Values{}
	params.Set("pickup_postcode", q.PickupPostcode)
	params.Set("delivery_postcode", q.DeliveryPostcode)
	params.Set("weight", strconv.FormatFloat(q.WeightKg, 'f', 2, 64))
	params.Set("cod", "0")
	if q.IsReturn {
		params.Set("is_return", "1")
	}
	var out struct {
		Data struct {
			AvailableCourierCompanies []CourierOption `json:"available_courier_companies"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/courier/serviceability/?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data.AvailableCourierCompanies, nil
}

// AssignAWB allocates a courier and airway bill to a shipment.
func (c *Client) AssignAWB(ctx context.Context, shipmentID ID, courierID int, isReturn bool) (*AWBAssignment, error) {
	in := map[string]any{
		"shipment_id": shipmentID,
		"courier_id":  courierID,
	}
	if isReturn {
		in["is_return"] = 1
	}
	var out struct {
		AssignStatus int `json:"awb_assign_status"`
		Response     struct {
			Data AWBAssignment `json:"data"`
		} `json:"response"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/assign/awb", in, &out); err != nil {
		return nil, err
	}
	if out.AssignStatus != 1 || out.Response.Data.AWBCode == "" {
		msg := out.Message
		if msg == "" {
			msg = "no awb assigned"
		}
		return nil, fmt.Errorf("courier awb assignment failed: %s", msg)
	}
	return &out.Response.Data, nil
}

// GeneratePickup requests a pickup slot for the shipment.
func (c *Client) GeneratePickup(ctx context.Context, shipmentID ID) (*PickupConfirmation, error) {
	in := map[string]any{"shipment_id": []ID{shipmentID}}
	var out struct {
		PickupStatus int `json:"pickup_status"`
		Response     struct {
			ScheduledDate string `json:"pickup_scheduled_date"`
			TokenNumber   string `json:"pickup_token_number"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/generate/pickup", in, &out); err != nil {
		return nil, err
	}
	if out.PickupStatus != 1 {
		return nil, errors.New("courier did not confirm pickup")
	}
	return &PickupConfirmation{
		Status:        out.PickupStatus,
		ScheduledDate: out.Response.ScheduledDate,
		TokenNumber:   out.Response.TokenNumber,
	}, nil
}

// TrackByAWB fetches the tracking feed for an airway bill.
func (c *Client) TrackByAWB(ctx context.Context, awb string) (*TrackingInfo, error) {
	if awb == "" {
		return nil, errors.New("awb code is required")
	}
	var out struct {
		TrackingData struct {
			TrackStatus   int `json:"track_status"`
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				EDD           string `json:"edd"`
			} `json:"shipment_track"`
			Activities []struct {
				Date     string `json:"date"`
				Status   string `json:"status"`
				Activity string `json:"activity"`
				Location string `json:"location"`
				Label    string `json:"sr-status-label"`
			} `json:"shipment_track_activities"`
			TrackURL string `json:"track_url"`
			ETD      string `json:"etd"`
			Error    string `json:"error"`
		} `json:"tracking_data"`
	}
	if err := c.do(ctx, http.MethodGet, "/courier/track/awb/"+url.PathEscape(awb), nil, &out); err != nil {
		return nil, err
	}
	data := out.TrackingData
	if data.Error != "" {
		return nil, fmt.Errorf("courier tracking: %s", data.Error)
	}
	info := &TrackingInfo{
		AWBCode:  awb,
		ETD:      data.ETD,
		TrackURL: data.TrackURL,
	}
	if len(data.ShipmentTrack) > 0 {
		info.CurrentStatus = data.ShipmentTrack[0].CurrentStatus
		if info.ETD == "" {
			info.ETD = data.ShipmentTrack[0].EDD
		}
	}
	for _, act := range data.Activities {
		status := act.Label
		if status == "" {
			status = act.Status
		}
		info.Activities = append(info.Activities, TrackingActivity{
			Date:     act.Date,
			Status:   status,
			Activity: act.Activity,
			Location: act.Location,
		})
	}
	return info, nil
}

// CancelByAWB cancels shipments by airway bill.
func (c *Client) CancelByAWB(ctx context.Context, awbs ...string) error {
	if len(awbs) == 0 {
		return errors.New("at least one awb is required")
	}
	return c.do(ctx, http.MethodPost, "/orders/cancel/shipment/awbs", map[string]any{"awbs": awbs}, nil)
}
