package lobby

import (
	"context"
	"time"

	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/session"
	"go.uber.org/zap"
)

// ClockScheduler debits wall-clock time from the side on move of every
// playing session at a fixed period, and declares a timeout result when a
// clock reaches zero. It is the authoritative timeout source; the
// client-reported endpoint is only a convenience guarded by idempotence.
type ClockScheduler struct {
	m    *Manager
	tick time.Duration
	done chan struct{}
}

func NewClockScheduler(m *Manager, tick time.Duration) *ClockScheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &ClockScheduler{m: m, tick: tick, done: make(chan struct{})}
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (c *ClockScheduler) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(c.tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-t.C:
				c.sweep(ctx)
			}
		}
	}()
}

func (c *ClockScheduler) Stop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *ClockScheduler) sweep(ctx context.Context) {
	playing, err := c.m.store.ListByStatus(ctx, session.StatusPlaying)
	if err != nil {
		obslog.L().Warn("clock_sweep_error", zap.Error(err))
		return
	}
	for _, s := range playing {
		c.tickSession(ctx, s.ID)
	}
}

// tickSession debits one tick from the side on move. A session whose lock
// is held by an in-flight mutation is skipped for this tick: the move wins
// the race and the clock resumes on the next period.
func (c *ClockScheduler) tickSession(ctx context.Context, sid string) {
	unlock, ok := c.m.locks.TryLock(sid)
	if !ok {
		return
	}
	defer unlock()

	s, err := c.m.store.Get(ctx, sid)
	if err != nil || s.Status != session.StatusPlaying {
		return
	}

	debit := c.tick.Milliseconds()
	var remaining int64
	if s.Turn == session.White {
		s.WhiteClockMs = floorZero(s.WhiteClockMs - debit)
		remaining = s.WhiteClockMs
	} else {
		s.BlackClockMs = floorZero(s.BlackClockMs - debit)
		remaining = s.BlackClockMs
	}

	timedOut := remaining == 0
	if timedOut {
		loser := session.OutcomeCreator
		if s.Turn == session.Black {
			loser = session.OutcomeOpponent
		}
		c.m.finish(s, session.OtherRole(loser), session.ReasonTimeout)
	}

	s.UpdatedAt = c.m.now()
	if err := c.m.store.Put(ctx, s); err != nil {
		obslog.L().Warn("clock_tick_write_error", zap.String("session_id", sid), zap.Error(err))
		return
	}
	if timedOut {
		obslog.L().Info("clock_timeout",
			zap.String("session_id", s.ID),
			zap.String("outcome", string(s.Outcome)),
		)
		c.m.finalize(s)
	}
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
