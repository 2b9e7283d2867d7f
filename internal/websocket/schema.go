package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionState  Action = "state"
	ActionPing   Action = "ping"
)

// Request is one client message. QID and Answer are only read for ActionAnswer.
type Request struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventProgress Event = "progress"
	EventState    Event = "state"
	EventPong     Event = "pong"
)

// Envelope wraps every server message.
type Envelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

// ErrorData is the payload of an EventError.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
