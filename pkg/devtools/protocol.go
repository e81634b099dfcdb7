package devtools

import "encoding/json"

// Message types.
const (
	TypeInit     = "INIT"
	TypeAction   = "ACTION"
	TypeDispatch = "DISPATCH"
)

// Dispatch payload types.
const (
	JumpToState  = "JUMP_TO_STATE"
	JumpToAction = "JUMP_TO_ACTION"
)

// LabelTimeTravel labels writes applied from the inspector.
const LabelTimeTravel = "time-travel"

// Message is the unit exchanged with the inspector.
type Message struct {
	Type     string          `json:"type"`
	Store    string          `json:"store"`
	Instance string          `json:"instance,omitempty"`
	Label    string          `json:"label,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Payload  *Payload        `json:"payload,omitempty"`
}

// Payload qualifies a DISPATCH message.
type Payload struct {
	Type string `json:"type"`

	// Index is the history entry for JUMP_TO_ACTION.
	Index int `json:"index,omitempty"`
}
