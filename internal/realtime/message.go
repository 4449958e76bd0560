package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the only frame clients ever receive.
type Message struct {
	EventType string    `json:"eventType"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(eventType string, payload any, at time.Time) ([]byte, error) {
	data, err := json.Marshal(Message{EventType: eventType, Payload: payload, Timestamp: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", eventType, err)
	}
	return data, nil
}
