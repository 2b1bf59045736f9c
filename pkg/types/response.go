package types

import "time"

// SuccessEnvelope wraps admin API payloads.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the body returned to the processor once an event is accepted.
type WebhookAck struct {
	Received    bool      `json:"received"`
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// WebhookError is the body returned when an event was not accepted.
// Event identity is omitted when the payload never verified.
type WebhookError struct {
	Error     string `json:"error"`
	EventType string `json:"event_type,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}
