package function

import (
	"encoding/json"
)

// Event is the input of a single invocation. It keeps the raw JSON it was
// decoded from, so the event can be logged exactly as received.
type Event struct {
	// Message is the optional message of the event. A missing or non-string
	// message decodes to the empty string.
	Message string

	raw json.RawMessage
}

// NewEvent returns an event carrying message.
func NewEvent(message string) Event {
	return Event{Message: message}
}

// UnmarshalJSON retains data and picks the message out of it. Any valid JSON
// value is accepted.
func (e *Event) UnmarshalJSON(data []byte) error {
	e.raw = append(e.raw[:0], data...)
	e.Message = ""

	var fields struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	var message string
	if err := json.Unmarshal(fields.Message, &message); err == nil {
		e.Message = message
	}

	return nil
}

// MarshalJSON returns the raw event, or a message object for events built
// in code.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(greeting{Message: e.Message})
}

// Response is the result of an invocation. It is wire compatible with the
// API Gateway proxy response.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type greeting struct {
	Message string `json:"message"`
}
