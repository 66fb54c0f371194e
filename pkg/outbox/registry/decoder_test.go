package registry

import (
	"encoding/json"
	"testing"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventCustomerNotificationRequested, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.CustomerNotificationRequestedEvent
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"kind":"return_approved","subject":"Return approved"}`)
	output, err := reg.Decode(enums.EventCustomerNotificationRequested, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, ok := output.(payloads.CustomerNotificationRequestedEvent)
	if !ok || decoded.Kind != "return_approved" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventCustomerNotificationRequested, 2, input); err == nil {
		t.Fatal("expected error for unregistered version")
	}
}
