package lobby

import (
	"errors"

	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
)

// CodeFor maps an error from the mutation path onto the wire taxonomy.
// Both transports (HTTP and the realtime channel) use this, so a given
// failure is reported identically regardless of how the request arrived.
func CodeFor(err error) matchdto.ErrorCode {
	switch {
	case errors.Is(err, wallet.ErrBadSignature):
		return matchdto.CodeAuthInvalid
	case errors.Is(err, wallet.ErrStaleMessage):
		return matchdto.CodeAuthStale
	case errors.Is(err, wallet.ErrBadMessage),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidWager):
		return matchdto.CodeValidation
	case errors.Is(err, session.ErrNotFound):
		return matchdto.CodeNotFound
	case errors.Is(err, session.ErrVersionConflict),
		errors.Is(err, ErrAlreadyWaiting),
		errors.Is(err, ErrAlreadyPlaying),
		errors.Is(err, ErrHasOpponent),
		errors.Is(err, ErrSelfJoin),
		errors.Is(err, ErrNotWaiting),
		errors.Is(err, ErrNotPlaying),
		errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrIllegalMove),
		errors.Is(err, ErrDrawPending),
		errors.Is(err, ErrNoDrawOffer),
		errors.Is(err, ErrOwnDrawOffer),
		errors.Is(err, ErrOtherDrawOffer):
		return matchdto.CodeStateConflict
	default:
		return matchdto.CodeUpstream
	}
}
