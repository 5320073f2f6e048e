package realtime

import (
	"encoding/json"

	"artizen/internal/models"
)

const (
	EventMessageNew       = "message:new"
	EventMessageNewGlobal = "message:new-global"
	EventThreadJoin       = "thread:join"
	EventThreadLeave      = "thread:leave"
	EventError            = "error"
)

// Event is the frame exchanged over the socket in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	ThreadID string `json:"threadId"`
}

// Envelope carries a persisted message to every instance that may hold sockets for its participants.
type Envelope struct {
	Origin       string         `json:"origin"`
	Message      models.Message `json:"message"`
	Participants []string       `json:"participants"`
}

func encodeEvent(name string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: name, Data: data})
}
