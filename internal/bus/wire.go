package bus

import "time"

// Frame ops. A connection declares itself with a sub frame and then only
// receives, or sends pub frames and never receives.
const (
	opSub = "sub"
	opPub = "pub"
)

// wireFrame is the JSON frame exchanged between peers and the router.
// Payload is base64-encoded by encoding/json.
type wireFrame struct {
	Op      string    `json:"op"`
	ID      string    `json:"id,omitempty"`
	Channel string    `json:"channel,omitempty"`
	Payload []byte    `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at,omitzero"`
}
