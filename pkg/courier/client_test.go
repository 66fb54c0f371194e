package courier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.CourierConfig{
		BaseURL:     srv.URL,
		Email:       "ops@aurelia.test",
		Password:    "secret",
		Timeout:     2 * time.Second,
		TrackingURL: "https://track.example/",
	}, nil)
	require.NoError(t, err)
	return client
}

func loginHandler(logins *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(logins, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.CourierConfig{BaseURL: "https://api.example"}, nil)
	assert.ErrorIs(t, err, errCredentialsRequired)
}

func TestCreateReturnOrderAuthenticatesOnce(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/orders/create/return", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "RET-20261017-000001", body["order_id"])
		assert.EqualValues(t, 0.3, body["weight"])
		_, _ = w.Write([]byte(`{"order_id":991,"shipment_id":7781,"status":"RETURN PENDING","status_code":21}`))
	})
	client := newTestClient(t, mux)

	for i := 0; i < 2; i++ {
		resp, err := client.CreateReturnOrder(context.Background(), ReturnOrderRequest{
			OrderID: "RET-20261017-000001",
			Package: Package{Length: 15, Breadth: 10, Height: 5, Weight: 0.3},
		})
		require.NoError(t, err)
		assert.Equal(t, ID("7781"), resp.ShipmentID)
		assert.Equal(t, ID("991"), resp.OrderID)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&logins))
}

func TestCreateOrdersRejectZeroShipment(t *testing.T) {
	var logins int32
	body := []byte(`{"status_code":0,"shipment_id":0,"order_id":0,"message":"Invalid pickup pincode"}`)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/orders/create/return", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
	client := newTestClient(t, mux)

	resp, err := client.CreateReturnOrder(context.Background(), ReturnOrderRequest{OrderID: "RET2604100001"})
	assert.Nil(t, resp)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "/orders/create/return", rejected.Path)
	assert.Equal(t, 0, rejected.StatusCode)
	assert.Contains(t, err.Error(), "Invalid pickup pincode")

	resp, err = client.CreateOrder(context.Background(), ForwardOrderRequest{OrderID: "AUR-1"})
	assert.Nil(t, resp)
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "/orders/create/adhoc", rejected.Path)
}

func TestOrderResponseAccepted(t *testing.T) {
	cases := []struct {
		name string
		resp *OrderResponse
		want bool
	}{
		{"nil", nil, false},
		{"booked return", &OrderResponse{ShipmentID: "7781", StatusCode: 21}, true},
		{"booked forward", &OrderResponse{ShipmentID: "9200", StatusCode: 1}, true},
		{"zero shipment", &OrderResponse{ShipmentID: "0", StatusCode: 1}, false},
		{"missing status code", &OrderResponse{ShipmentID: "7781"}, false},
		{"empty shipment", &OrderResponse{StatusCode: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.resp.Accepted())
		})
	}
}

func TestDoRefreshesTokenOnUnauthorized(t *testing.T) {
	var logins, calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/courier/generate/pickup", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"pickup_status":1,"response":{"pickup_scheduled_date":"2026-10-18 10:00:00"}}`))
	})
	client := newTestClient(t, mux)

	conf, err := client.GeneratePickup(context.Background(), ID("7781"))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18 10:00:00", conf.ScheduledDate)
	assert.EqualValues(t, 2, atomic.LoadInt32(&logins))
}

func TestStatusErrorOnFailure(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/orders/create/adhoc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"pincode not serviceable"}`))
	})
	client := newTestClient(t, mux)

	_, err := client.CreateOrder(context.Background(), ForwardOrderRequest{OrderID: "AUR-1001"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "pincode not serviceable")
}

func TestServiceabilityAndAssignAWB(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/courier/serviceability/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "400001", q.Get("pickup_postcode"))
		assert.Equal(t, "560001", q.Get("delivery_postcode"))
		assert.Equal(t, "0.30", q.Get("weight"))
		assert.Equal(t, "1", q.Get("is_return"))
		_, _ = w.Write([]byte(`{"data":{"available_courier_companies":[
			{"courier_company_id":10,"courier_name":"Air Express","freight_charge":180,"rate":180,"is_surface":false},
			{"courier_company_id":12,"courier_name":"Surface Saver","freight_charge":95,"rate":95,"is_surface":true}
		]}}`))
	})
	mux.HandleFunc("/courier/assign/awb", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 7781, body["shipment_id"])
		assert.EqualValues(t, 12, body["courier_id"])
		assert.EqualValues(t, 1, body["is_return"])
		_, _ = w.Write([]byte(`{"awb_assign_status":1,"response":{"data":{"awb_code":"AWB123","courier_company_id":12,"courier_name":"Surface Saver","shipment_id":7781}}}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	options, err := client.Serviceability(ctx, ServiceabilityQuery{
		PickupPostcode:   "400001",
		DeliveryPostcode: "560001",
		WeightKg:         0.3,
		IsReturn:         true,
	})
	require.NoError(t, err)
	require.Len(t, options, 2)

	chosen, ok := SelectCourier(options)
	require.True(t, ok)
	assert.Equal(t, 12, chosen.CourierCompanyID)

	assignment, err := client.AssignAWB(ctx, ID("7781"), chosen.CourierCompanyID, true)
	require.NoError(t, err)
	assert.Equal(t, "AWB123", assignment.AWBCode)
	assert.Equal(t, "https://track.example/AWB123", client.TrackingURL(assignment.AWBCode))
}

func TestAssignAWBRejected(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/courier/assign/awb", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"awb_assign_status":0,"message":"courier not available"}`))
	})
	client := newTestClient(t, mux)

	_, err := client.AssignAWB(context.Background(), ID("1"), 12, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "courier not available")
}

func TestTrackByAWB(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/courier/track/awb/AWB123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tracking_data":{"track_status":1,
			"shipment_track":[{"current_status":"In Transit","edd":"2026-10-20 18:00:00"}],
			"shipment_track_activities":[{"date":"2026-10-18 09:00:00","status":"X","activity":"Picked up","location":"Mumbai","sr-status-label":"PICKED UP"}],
			"track_url":"https://track.example/AWB123"}}`))
	})
	client := newTestClient(t, mux)

	info, err := client.TrackByAWB(context.Background(), "AWB123")
	require.NoError(t, err)
	assert.Equal(t, "In Transit", info.CurrentStatus)
	assert.Equal(t, "2026-10-20 18:00:00", info.ETD)
	require.Len(t, info.Activities, 1)
	assert.Equal(t, "PICKED UP", info.Activities[0].Status)
	assert.Equal(t, "Mumbai", info.Activities[0].Location)
}

func TestCancelByAWB(t *testing.T) {
	var logins int32
	var got []string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins))
	mux.HandleFunc("/orders/cancel/shipment/awbs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AWBs []string `json:"awbs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = body.AWBs
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.CancelByAWB(context.Background(), "AWB123"))
	assert.Equal(t, []string{"AWB123"}, got)
	assert.Error(t, client.CancelByAWB(context.Background()))
}

func TestSelectCourierFallsBackToFirst(t *testing.T) {
	options := []CourierOption{
		{CourierCompanyID: 3, Rate: 200},
		{CourierCompanyID: 4, Rate: 100, IsSurface: true},
	}
	chosen, ok := SelectCourier(options)
	require.True(t, ok)
	assert.Equal(t, 3, chosen.CourierCompanyID)

	_, ok = SelectCourier(nil)
	assert.False(t, ok)
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"SR-9","c":null}`), &v))
	assert.Equal(t, ID("12"), v.A)
	assert.Equal(t, ID("SR-9"), v.B)
	assert.Equal(t, ID(""), v.C)
}
