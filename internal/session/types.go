package session

import (
	"time"

	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
)

// Color identifies a chess side. The creator always plays white.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Status is the session lifecycle state. Transitions are strictly forward:
// waiting → playing|cancelled, playing → finished.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Outcome names the winning side by role, or a draw. Empty until finished,
// immutable afterwards.
type Outcome string

const (
	OutcomeUnset    Outcome = ""
	OutcomeCreator  Outcome = "creator"
	OutcomeOpponent Outcome = "opponent"
	OutcomeDraw     Outcome = "draw"
)

// Reason classifies how a session ended.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonCheckmate    Reason = "checkmate"
	ReasonStalemate    Reason = "stalemate"
	ReasonInsufficient Reason = "insufficient_material"
	ReasonRepetition   Reason = "repetition"
	ReasonFiftyMove    Reason = "fifty_move"
	ReasonTimeout      Reason = "timeout"
	ReasonForfeit      Reason = "forfeit"
	ReasonAgreement    Reason = "agreement"
)

// Session is the aggregate root for one match: participants, wager,
// position, lifecycle state, clocks and the pending draw offer. Version is
// the optimistic-concurrency token enforced by Store.Put.
type Session struct {
	ID        string `json:"id"`
	Creator   string `json:"creator"`
	Opponent  string `json:"opponent,omitempty"`
	Wager     uint64 `json:"wager"`
	EscrowRef string `json:"escrow_ref,omitempty"`

	FEN      string   `json:"fen"`
	MovesUCI []string `json:"moves_uci"`
	MovesSAN []string `json:"moves_san"`
	Turn     Color    `json:"turn"`

	Status  Status  `json:"status"`
	Outcome Outcome `json:"outcome,omitempty"`
	Reason  Reason  `json:"reason,omitempty"`

	WhiteClockMs int64 `json:"white_clock_ms"`
	BlackClockMs int64 `json:"black_clock_ms"`

	DrawOfferBy Outcome `json:"draw_offer_by,omitempty"` // creator or opponent

	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Settled   bool       `json:"settled,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// Participant reports whether identity plays in this session.
func (s *Session) Participant(id wallet.Identity) bool {
	return s.RoleOf(id) != OutcomeUnset
}

// RoleOf maps an identity to its role, or OutcomeUnset when not a player.
func (s *Session) RoleOf(id wallet.Identity) Outcome {
	switch {
	case s.Creator != "" && s.Creator == string(id):
		return OutcomeCreator
	case s.Opponent != "" && s.Opponent == string(id):
		return OutcomeOpponent
	default:
		return OutcomeUnset
	}
}

// OtherRole flips creator ↔ opponent.
func OtherRole(r Outcome) Outcome {
	switch r {
	case OutcomeCreator:
		return OutcomeOpponent
	case OutcomeOpponent:
		return OutcomeCreator
	default:
		return OutcomeUnset
	}
}

// ColorOf maps a role to its board color.
func ColorOf(r Outcome) Color {
	if r == OutcomeOpponent {
		return Black
	}
	return White
}

// WinnerAddress resolves the outcome to a concrete identity; empty for a
// draw or an unfinished session.
func (s *Session) WinnerAddress() string {
	switch s.Outcome {
	case OutcomeCreator:
		return s.Creator
	case OutcomeOpponent:
		return s.Opponent
	default:
		return ""
	}
}

// Clone returns a deep copy safe to hand outside the store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.MovesUCI = append([]string(nil), s.MovesUCI...)
	c.MovesSAN = append([]string(nil), s.MovesSAN...)
	if s.SettledAt != nil {
		t := *s.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// Projection renders the full client-facing view.
func (s *Session) Projection() *matchdto.SessionProjection {
	return &matchdto.SessionProjection{
		ID:          s.ID,
		Creator:     s.Creator,
		Opponent:    s.Opponent,
		Wager:       s.Wager,
		EscrowRef:   s.EscrowRef,
		FEN:         s.FEN,
		MovesUCI:    s.MovesUCI,
		MovesSAN:    s.MovesSAN,
		Turn:        string(s.Turn),
		Status:      string(s.Status),
		Outcome:     string(s.Outcome),
		Reason:      string(s.Reason),
		WhiteMs:     s.WhiteClockMs,
		BlackMs:     s.BlackClockMs,
		DrawOfferBy: string(s.DrawOfferBy),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// LobbyProjection renders the listing view; waiting sessions expose no
// opponent or position by construction of the DTO.
func (s *Session) LobbyProjection() *matchdto.LobbyProjection {
	return &matchdto.LobbyProjection{
		ID:        s.ID,
		Creator:   s.Creator,
		Wager:     s.Wager,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

// ResultProjection renders the settlement-facing view.
func (s *Session) ResultProjection() *matchdto.ResultProjection {
	p := &matchdto.ResultProjection{ID: s.ID, Status: string(s.Status)}
	if s.Status == StatusFinished {
		p.Outcome = string(s.Outcome)
		p.Reason = string(s.Reason)
		p.Winner = s.WinnerAddress()
		p.Settled = s.Settled
	}
	return p
}
