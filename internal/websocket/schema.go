package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionInit       Action = "init"
	ActionGetResults Action = "getResults"
	ActionPing       Action = "ping"
)

// RequestEnvelope carries every client message. ID correlates the ack;
// Data is decoded once the action is known.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	ID     *int64          `json:"id,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck          Event = "ack"
	EventStatusChange Event = "change:status"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// AckResponse answers a request. Data is null when the request was rejected.
type AckResponse struct {
	Event  Event       `json:"event"`
	Action Action      `json:"action"`
	ID     *int64      `json:"id,omitempty"`
	Data   interface{} `json:"data"`
}

// StatusChangeResponse is pushed to every client subscribed to a variant.
type StatusChangeResponse struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
