package matchdto

import "encoding/json"

// EventType enumerates realtime frame types in both directions.
type EventType string

// Client → server.
const (
	EvRegisterIdentity EventType = "register_identity"
	EvJoinSession      EventType = "join_session"
	EvLeaveSession     EventType = "leave_session"
	EvSpectateSession  EventType = "spectate_session"
	EvMove             EventType = "move"
	EvOfferDraw        EventType = "offer_draw"
	EvAcceptDraw       EventType = "accept_draw"
	EvDeclineDraw      EventType = "decline_draw"
	EvWithdrawDraw     EventType = "withdraw_draw"
)

// Server → client.
const (
	EvSessionJoined   EventType = "session_joined"
	EvSessionUpdate   EventType = "session_update"
	EvMoveApplied     EventType = "move"
	EvDrawOffered     EventType = "draw_offered"
	EvDrawDeclined    EventType = "draw_declined"
	EvDrawWithdrawn   EventType = "draw_withdrawn"
	EvSessionSnapshot EventType = "session_snapshot"
	EvError           EventType = "error"
)

// Frame is the single wire shape for realtime traffic. Payload carries the
// type-specific body; SessionID is set whenever the frame targets a session.
type Frame struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RegisterIdentityPayload authenticates a connection.
type RegisterIdentityPayload struct {
	SignedRequest
}

// MovePayload is a candidate ply.
type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// DrawOfferedPayload names the offering side.
type DrawOfferedPayload struct {
	By string `json:"by"`
}

// ErrorPayload reports a rejected action. Action echoes the client frame
// type that failed, so clients can surface e.g. move_error.
type ErrorPayload struct {
	Action EventType `json:"action"`
	Code   ErrorCode `json:"code"`
	Reason string    `json:"reason"`
}
