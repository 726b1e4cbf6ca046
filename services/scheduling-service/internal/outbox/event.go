package outbox

import (
	"encoding/json"
	"strconv"
)

// Event types double as Kafka topic names.
const (
	AppointmentCreated      = "smartbook.appointment.created.v1"
	AppointmentUpdated      = "smartbook.appointment.updated.v1"
	AppointmentDeleted      = "smartbook.appointment.deleted.v1"
	RecommendationGenerated = "smartbook.recommendation.generated.v1"
)

// Event is the envelope written to outbox_events in the same transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent encodes payload as JSON for the aggregate with the given numeric id.
func NewEvent(eventType, aggregateType string, aggregateID int64, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(aggregateID, 10),
		EventType:     eventType,
		Payload:       b,
	}, nil
}
