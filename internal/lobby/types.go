package lobby

import (
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
)

// Sink receives every state-changing event for fan-out. Delivery targets
// both the session room and each listed participant's identity channel, so
// a participant whose room subscription lags still hears about the change.
type Sink interface {
	Publish(ev Event)
}

// Event is one state delta to deliver.
type Event struct {
	Type         matchdto.EventType
	SessionID    string
	Participants []string
	Payload      any
}

// Settler is handed a finished or cancelled session exactly once per
// transition, after it has been persisted. Implementations must not block.
type Settler interface {
	Settle(s *session.Session)
}

// NopSink drops events; used when no gateway is attached.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// NopSettler ignores sessions; used for wager-free deployments and tests.
type NopSettler struct{}

func (NopSettler) Settle(*session.Session) {}

// Errors are sentinels so the transport layer can map them to the error
// taxonomy without string matching.
var (
	ErrInvalidID      = errf("malformed session id")
	ErrInvalidWager   = errf("wager exceeds allowed maximum")
	ErrAlreadyWaiting = errf("identity already owns a waiting session")
	ErrAlreadyPlaying = errf("identity already in a playing session")
	ErrHasOpponent    = errf("session already has an opponent")
	ErrSelfJoin       = errf("cannot join own session")
	ErrNotWaiting     = errf("session is not waiting")
	ErrNotPlaying     = errf("session is not playing")
	ErrNotCreator     = errf("only the creator may cancel")
	ErrNotParticipant = errf("identity is not a participant")
	ErrNotYourTurn    = errf("not your turn")
	ErrIllegalMove    = errf("illegal move")
	ErrDrawPending    = errf("a draw offer is already pending")
	ErrNoDrawOffer    = errf("no draw offer pending")
	ErrOwnDrawOffer   = errf("cannot act on own draw offer")
	ErrOtherDrawOffer = errf("only the offering side may withdraw")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
