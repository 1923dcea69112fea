package matchdto

import "time"

// SessionProjection is the full client-facing view of one match session.
// It is what the snapshot endpoint returns and what the realtime channel
// delivers inside session_update frames.
type SessionProjection struct {
	ID          string    `json:"id"`
	Creator     string    `json:"creator"`
	Opponent    string    `json:"opponent,omitempty"`
	Wager       uint64    `json:"wager"`
	EscrowRef   string    `json:"escrow_ref,omitempty"`
	FEN         string    `json:"fen,omitempty"`
	MovesUCI    []string  `json:"moves_uci,omitempty"`
	MovesSAN    []string  `json:"moves_san,omitempty"`
	Turn        string    `json:"turn,omitempty"`
	Status      string    `json:"status"`
	Outcome     string    `json:"outcome,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	WhiteMs     int64     `json:"white_ms"`
	BlackMs     int64     `json:"black_ms"`
	DrawOfferBy string    `json:"draw_offer_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LobbyProjection is the reduced listing view. Waiting sessions omit the
// opponent and position on purpose.
type LobbyProjection struct {
	ID        string    `json:"id"`
	Creator   string    `json:"creator"`
	Wager     uint64    `json:"wager"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultProjection is returned by GET /sessions/{id}/result. Outcome fields
// are populated only once the session is finished.
type ResultProjection struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Winner  string `json:"winner,omitempty"`
	Settled bool   `json:"settled,omitempty"`
}

// Profile maps an identity to a display name.
type Profile struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}
