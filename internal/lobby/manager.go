package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/rules"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"go.uber.org/zap"
)

// Options tunes the lifecycle manager.
type Options struct {
	// Allotment is the starting clock per side.
	Allotment time.Duration
	// MaxWager caps the stake; zero means uncapped.
	MaxWager uint64
}

// Manager owns every session mutation: lifecycle transitions, move
// application, the draw handshake and clock debits. All mutations to one
// session run under its keyed mutex and are written back through the
// versioned store, so two instances racing on the same id surface a
// conflict instead of silently interleaving.
type Manager struct {
	store   session.Store
	sink    Sink
	settler Settler
	opts    Options
	locks   *keyedMutex
	now     func() time.Time
}

func NewManager(store session.Store, opts Options) *Manager {
	if opts.Allotment <= 0 {
		opts.Allotment = 10 * time.Minute
	}
	return &Manager{
		store:   store,
		sink:    NopSink{},
		settler: NopSettler{},
		opts:    opts,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// AttachSink wires the realtime gateway.
func (m *Manager) AttachSink(s Sink) {
	if m != nil && s != nil {
		m.sink = s
	}
}

// AttachSettler wires the settlement bridge.
func (m *Manager) AttachSettler(s Settler) {
	if m != nil && s != nil {
		m.settler = s
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create opens a new waiting session with the caller as creator (white).
// An identity may own at most one waiting session and sit in at most one
// playing session at a time.
func (m *Manager) Create(ctx context.Context, id wallet.Identity, wager uint64, escrowRef string) (*session.Session, error) {
	if m.opts.MaxWager > 0 && wager > m.opts.MaxWager {
		return nil, ErrInvalidWager
	}
	// The participation caps are check-then-act; serialize per identity so
	// concurrent creates cannot both pass the check.
	unlock := m.locks.Lock(identityKey(id))
	defer unlock()

	if _, err := m.store.WaitingByCreator(ctx, id); err == nil {
		return nil, ErrAlreadyWaiting
	} else if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}
	if _, err := m.store.PlayingByParticipant(ctx, id); err == nil {
		return nil, ErrAlreadyPlaying
	} else if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	now := m.now()
	s := &session.Session{
		ID:        session.NewID(),
		Creator:   string(id),
		Wager:     wager,
		EscrowRef: escrowRef,
		FEN:       rules.StartFEN(),
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Turn:      session.White,
		Status:    session.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_create",
		zap.String("session_id", s.ID),
		zap.String("creator", s.Creator),
		zap.Uint64("wager", s.Wager),
	)
	return s, nil
}

// Join pairs the caller into a waiting session and starts the match.
func (m *Manager) Join(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	unlock := m.locks.Lock(identityKey(id))
	defer unlock()

	if _, err := m.store.PlayingByParticipant(ctx, id); err == nil {
		return nil, ErrAlreadyPlaying
	} else if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusWaiting {
			return ErrNotWaiting
		}
		if s.Opponent != "" {
			return ErrHasOpponent
		}
		if s.Creator == string(id) {
			return ErrSelfJoin
		}
		s.Opponent = string(id)
		s.Status = session.StatusPlaying
		s.WhiteClockMs = m.opts.Allotment.Milliseconds()
		s.BlackClockMs = m.opts.Allotment.Milliseconds()
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_join",
		zap.String("session_id", s.ID),
		zap.String("opponent", s.Opponent),
	)
	m.publish(matchdto.EvSessionJoined, s)
	return s, nil
}

// Cancel withdraws an unpaired waiting session. Creator only.
func (m *Manager) Cancel(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusWaiting {
			return ErrNotWaiting
		}
		if s.Opponent != "" {
			return ErrHasOpponent
		}
		if s.Creator != string(id) {
			return ErrNotCreator
		}
		s.Status = session.StatusCancelled
		s.DrawOfferBy = session.OutcomeUnset
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_cancel", zap.String("session_id", s.ID))
	m.publish(matchdto.EvSessionUpdate, s)
	if s.Wager > 0 {
		m.settler.Settle(s.Clone())
	}
	return s, nil
}

// Concede forfeits a playing session; the other participant wins.
func (m *Manager) Concede(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		m.finish(s, session.OtherRole(role), session.ReasonForfeit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_concede",
		zap.String("session_id", s.ID),
		zap.String("outcome", string(s.Outcome)),
	)
	m.finalize(s)
	return s, nil
}

// ReportTimeout lets a participant declare that their own clock ran out.
// The caller only ever signs their own defeat, so a malicious report can at
// worst lose the reporter's game. Idempotent against the scheduler's own
// declaration: once finished, further reports are no-ops.
func (m *Manager) ReportTimeout(ctx context.Context, sid string, id wallet.Identity) (*session.Session, error) {
	var already bool
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		if s.Status == session.StatusFinished {
			already = true
			return errNoop
		}
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		m.finish(s, session.OtherRole(role), session.ReasonTimeout)
		return nil
	})
	if already {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_timeout_reported",
		zap.String("session_id", s.ID),
		zap.String("loser", string(id)),
	)
	m.finalize(s)
	return s, nil
}

// Move applies a candidate ply for the caller. Turn ownership is derived
// from the position's side to move, never from separate bookkeeping. An
// accepted ply clears any pending draw offer.
func (m *Manager) Move(ctx context.Context, sid string, id wallet.Identity, ply rules.Ply) (*session.Session, error) {
	s, err := m.mutate(ctx, sid, func(s *session.Session) error {
		if s.Status != session.StatusPlaying {
			return ErrNotPlaying
		}
		role := s.RoleOf(id)
		if role == session.OutcomeUnset {
			return ErrNotParticipant
		}
		whiteToMove, terr := rules.SideToMove(s.MovesUCI)
		if terr != nil {
			return terr
		}
		if (session.ColorOf(role) == session.White) != whiteToMove {
			return ErrNotYourTurn
		}

		res, aerr := rules.Apply(s.MovesUCI, ply)
		if aerr != nil {
			if errors.Is(aerr, rules.ErrIllegalMove) {
				return ErrIllegalMove
			}
			return aerr
		}

		s.MovesUCI = append(s.MovesUCI, res.UCI)
		s.MovesSAN = append(s.MovesSAN, res.SAN)
		s.FEN = res.FEN
		if res.NextWhite {
			s.Turn = session.White
		} else {
			s.Turn = session.Black
		}
		s.DrawOfferBy = session.OutcomeUnset

		switch res.Terminal {
		case rules.TerminalNone:
		case rules.TerminalCheckmate:
			winner := session.OutcomeOpponent
			if res.WhiteWins {
				winner = session.OutcomeCreator
			}
			m.finish(s, winner, session.ReasonCheckmate)
		case rules.TerminalStalemate:
			m.finish(s, session.OutcomeDraw, session.ReasonStalemate)
		case rules.TerminalInsufficient:
			m.finish(s, session.OutcomeDraw, session.ReasonInsufficient)
		case rules.TerminalRepetition:
			m.finish(s, session.OutcomeDraw, session.ReasonRepetition)
		case rules.TerminalFiftyMove:
			m.finish(s, session.OutcomeDraw, session.ReasonFiftyMove)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("lobby_move",
		zap.String("session_id", s.ID),
		zap.String("mover", string(id)),
		zap.String("uci", lastOf(s.MovesUCI)),
		zap.String("status", string(s.Status)),
	)
	m.publish(matchdto.EvMoveApplied, s)
	if s.Status == session.StatusFinished {
		m.settle(s)
	}
	return s, nil
}

// Snapshot is the pull-based full projection read. No lock: the store read
// is atomic and clients reconcile against whatever version they get.
func (m *Manager) Snapshot(ctx context.Context, sid string) (*session.Session, error) {
	if !session.ValidID(sid) {
		return nil, ErrInvalidID
	}
	return m.store.Get(ctx, sid)
}

// List returns sessions by status for the lobby listing.
func (m *Manager) List(ctx context.Context, st session.Status) ([]*session.Session, error) {
	return m.store.ListByStatus(ctx, st)
}

// errNoop aborts a mutate without writing or failing the caller.
var errNoop = errf("noop")

// mutate runs fn on the session under its lock and persists the result.
func (m *Manager) mutate(ctx context.Context, sid string, fn func(*session.Session) error) (*session.Session, error) {
	if !session.ValidID(sid) {
		return nil, ErrInvalidID
	}
	unlock := m.locks.Lock(sid)
	defer unlock()

	s, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		if errors.Is(err, errNoop) {
			return s, err
		}
		return nil, err
	}
	s.UpdatedAt = m.now()
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// finish records a terminal result in place. Outcome is written exactly
// once; callers guard on Status beforehand.
func (m *Manager) finish(s *session.Session, outcome session.Outcome, reason session.Reason) {
	s.Status = session.StatusFinished
	s.Outcome = outcome
	s.Reason = reason
	s.DrawOfferBy = session.OutcomeUnset
}

// finalize fans out the terminal update and hands the session to
// settlement.
func (m *Manager) finalize(s *session.Session) {
	m.publish(matchdto.EvSessionUpdate, s)
	m.settle(s)
}

func (m *Manager) settle(s *session.Session) {
	if s.Wager == 0 {
		return
	}
	m.settler.Settle(s.Clone())
}

func (m *Manager) publish(t matchdto.EventType, s *session.Session) {
	m.sink.Publish(Event{
		Type:         t,
		SessionID:    s.ID,
		Participants: participants(s),
		Payload:      s.Projection(),
	})
}

func participants(s *session.Session) []string {
	var out []string
	if s.Creator != "" {
		out = append(out, s.Creator)
	}
	if s.Opponent != "" {
		out = append(out, s.Opponent)
	}
	return out
}

// identityKey namespaces identity locks away from session-id locks in the
// shared keyed mutex.
func identityKey(id wallet.Identity) string { return "identity:" + string(id) }

func lastOf(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[len(xs)-1]
}
