package outbox

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/smartbook-ai/smartbook/libs/kafkax"
)

func TestNewEventEncodesPayload(t *testing.T) {
	evt, err := NewEvent(AppointmentCreated, "appointment", 17, map[string]any{"title": "Consultation"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if evt.AggregateID != "17" || evt.EventType != AppointmentCreated {
		t.Fatalf("unexpected envelope %+v", evt)
	}
	if string(evt.Payload) != `{"title":"Consultation"}` {
		t.Fatalf("payload=%s", evt.Payload)
	}
}

func TestToMessageCarriesHeadersAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	rec := Record{
		ID:            1,
		EventID:       "6f1c7c1e-3d7a-4c55-9a53-2d9b8d5f3f10",
		AggregateType: "appointment",
		AggregateID:   "17",
		EventType:     AppointmentUpdated,
		Payload:       []byte(`{}`),
		Traceparent:   "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	msg := ToMessage(context.Background(), rec)
	if msg.Topic != AppointmentUpdated || string(msg.Key) != "appointment:17" {
		t.Fatalf("unexpected routing topic=%s key=%s", msg.Topic, msg.Key)
	}
	if kafkax.HeaderValue(msg.Headers, "event_id") != rec.EventID {
		t.Fatalf("event_id header missing")
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != rec.Traceparent {
		t.Fatalf("traceparent=%q", got)
	}
}
