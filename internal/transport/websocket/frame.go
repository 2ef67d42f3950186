package websocket

// Frame ops understood by the relay.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPublish     = "publish"
	OpMessage     = "message"
	OpSubscribed  = "subscribed"
	OpError       = "error"
)

type (
	// Frame is the unit exchanged between relay and clients. Payload is
	// opaque and travels base64 encoded.
	Frame struct {
		Op      string `json:"op" validate:"required,oneof=subscribe unsubscribe publish message subscribed error"`
		Topic   string `json:"topic" validate:"required"`
		Payload []byte `json:"payload,omitempty"`
		ID      string `json:"id,omitempty"`
		Error   string `json:"error,omitempty"`
	}
)
