package lobby

import (
	"context"

	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"go.uber.org/zap"
)

// Draw handshake: none → offered-by-X → none. Only the non-offering
// participant may accept or decline; only the offerer may withdraw. Any
// accepted ply clears the marker, so an offer cannot survive the board
// moving on.

// OfferDraw places a draw offer by the caller.
func (m *Manager) OfferDraw(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		if s.DrawOfferBy != session.OutcomeUnset {
			return ErrDrawPending
		}
		s.DrawOfferBy = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("draw_offer",
		zap.String("session_id", s.ID),
		zap.String("by", string(s.DrawOfferBy)),
	)
	m.sink.Publish(Event{
		Type:         matchdto.EvDrawOffered,
		SessionID:    s.ID,
		Participants: participants(s),
		Payload:      matchdto.DrawOfferedPayload{By: string(s.DrawOfferBy)},
	})
	return s, nil
}

// AcceptDraw concludes the session as an agreed draw. Rejected when the
// caller is the offerer (self-accept) or no offer is pending.
func (m *Manager) AcceptDraw(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		if s.DrawOfferBy == session.OutcomeUnset {
			return ErrNoDrawOffer
		}
		if s.DrawOfferBy == role {
			return ErrOwnDrawOffer
		}
		m.finish(s, session.OutcomeDraw, session.ReasonAgreement)
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("draw_accept", zap.String("session_id", s.ID))
	m.finalize(s)
	return s, nil
}

// DeclineDraw clears a pending offer. Non-offerer only.
func (m *Manager) DeclineDraw(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		if s.DrawOfferBy == session.OutcomeUnset {
			return ErrNoDrawOffer
		}
		if s.DrawOfferBy == role {
			return ErrOwnDrawOffer
		}
		s.DrawOfferBy = session.OutcomeUnset
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("draw_decline", zap.String("session_id", s.ID))
	m.sink.Publish(Event{
		Type:         matchdto.EvDrawDeclined,
		SessionID:    s.ID,
		Participants: participants(s),
	})
	return s, nil
}

// WithdrawDraw retracts the caller's own pending offer.
func (m *Manager) WithdrawDraw(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		if s.DrawOfferBy == session.OutcomeUnset {
			return ErrNoDrawOffer
		}
		if s.DrawOfferBy != role {
			return ErrOtherDrawOffer
		}
		s.DrawOfferBy = session.OutcomeUnset
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("draw_withdraw", zap.String("session_id", s.ID))
	m.sink.Publish(Event{
		Type:         matchdto.EvDrawWithdrawn,
		SessionID:    s.ID,
		Participants: participants(s),
	})
	return s, nil
}
