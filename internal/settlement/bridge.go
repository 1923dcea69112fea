package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Bridge dispatches settlement for terminal wagered sessions. Dispatch is
// fire-and-forget: the session is already finished and persisted when the
// bridge sees it, so a slow or failing escrow call never blocks gameplay.
// Failures are retried with backoff and, past that, picked up again by the
// periodic resweep over finished-but-unsettled sessions.
type Bridge struct {
	ledger  Ledger
	store   session.Store
	results *ResultsRepository // optional archive

	mu       sync.Mutex
	inflight map[string]struct{}

	done chan struct{}
	once sync.Once
}

func NewBridge(ledger Ledger, store session.Store) *Bridge {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &Bridge{
		ledger:   ledger,
		store:    store,
		inflight: make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// AttachResults wires the optional Postgres archive.
func (b *Bridge) AttachResults(r *ResultsRepository) {
	if b != nil {
		b.results = r
	}
}

// Settle implements lobby.Settler.
func (b *Bridge) Settle(s *session.Session) {
	if s == nil || !s.Status.Terminal() {
		return
	}
	if b.results != nil && s.Status == session.StatusFinished {
		go b.archive(s)
	}
	if s.Wager == 0 || s.Settled || s.EscrowRef == "" {
		return
	}
	b.mu.Lock()
	if _, busy := b.inflight[s.ID]; busy {
		b.mu.Unlock()
		return
	}
	b.inflight[s.ID] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.inflight, s.ID)
			b.mu.Unlock()
		}()
		b.settle(s)
	}()
}

func (b *Bridge) settle(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		if s.Status == session.StatusCancelled {
			callErr = b.ledger.Cancel(ctx, s.EscrowRef)
		} else {
			callErr = b.ledger.Resolve(ctx, s.EscrowRef, s.WinnerAddress())
		}
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		obslog.L().Error("settlement_failed",
			zap.String("session_id", s.ID),
			zap.String("escrow_ref", s.EscrowRef),
			zap.Error(err),
		)
		return
	}

	b.markSettled(ctx, s.ID)
	obslog.L().Info("settlement_done",
		zap.String("session_id", s.ID),
		zap.String("winner", s.WinnerAddress()),
	)
}

// markSettled flips the settled flag with a fresh read, retrying once on a
// version conflict with a concurrent mutation.
func (b *Bridge) markSettled(ctx context.Context, sid string) {
	for attempt := 0; attempt < 2; attempt++ {
		cur, err := b.store.Get(ctx, sid)
		if err != nil || cur.Settled {
			return
		}
		now := time.Now()
		cur.Settled = true
		cur.SettledAt = &now
		err = b.store.Put(ctx, cur)
		if err == nil {
			return
		}
		if !errors.Is(err, session.ErrVersionConflict) {
			obslog.L().Warn("settlement_mark_error", zap.String("session_id", sid), zap.Error(err))
			return
		}
	}
}

// StartResweep re-invokes settlement for terminal wagered sessions that
// never got marked settled, at the given interval.
func (b *Bridge) StartResweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case <-t.C:
				b.resweep(ctx)
			}
		}
	}()
}

func (b *Bridge) Stop() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) resweep(ctx context.Context) {
	for _, st := range []session.Status{session.StatusFinished, session.StatusCancelled} {
		sessions, err := b.store.ListByStatus(ctx, st)
		if err != nil {
			obslog.L().Warn("settlement_resweep_error", zap.Error(err))
			continue
		}
		for _, s := range sessions {
			if s.Wager > 0 && !s.Settled && s.EscrowRef != "" {
				b.Settle(s)
			}
		}
	}
}

func (b *Bridge) archive(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.results.SaveResult(ctx, s); err != nil {
		obslog.L().Error("result_archive_error", zap.String("session_id", s.ID), zap.Error(err))
	}
}
