package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_DebitsSideOnMoveOnly(t *testing.T) {
	f := newFixture(t, Options{Allotment: 10 * time.Second})
	ctx := context.Background()
	s := f.started(t, 0)

	c := NewClockScheduler(f.m, time.Second)
	c.tickSession(ctx, s.ID)
	c.tickSession(ctx, s.ID)

	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), got.WhiteClockMs)
	assert.Equal(t, int64(10000), got.BlackClockMs, "idle side untouched")

	// After white moves the debit switches sides.
	_, err = f.m.Move(ctx, s.ID, alice, mv("e2e4"))
	require.NoError(t, err)
	c.tickSession(ctx, s.ID)

	got, err = f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), got.WhiteClockMs)
	assert.Equal(t, int64(9000), got.BlackClockMs)
}

func TestClock_ZeroDeclaresTimeout(t *testing.T) {
	f := newFixture(t, Options{Allotment: 2 * time.Second})
	ctx := context.Background()
	s := f.started(t, 30)

	c := NewClockScheduler(f.m, time.Second)
	c.tickSession(ctx, s.ID)
	c.tickSession(ctx, s.ID)

	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.WhiteClockMs)
	assert.Equal(t, session.StatusFinished, got.Status)
	assert.Equal(t, session.OutcomeOpponent, got.Outcome, "white flag falls, black wins")
	assert.Equal(t, session.ReasonTimeout, got.Reason)
	assert.Equal(t, 1, f.settler.count())

	// A further tick on the finished session is a no-op.
	v := got.Version
	c.tickSession(ctx, s.ID)
	got, err = f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got.Version)
	assert.Equal(t, 1, f.settler.count())
}

func TestClock_NeverNegative(t *testing.T) {
	f := newFixture(t, Options{Allotment: 500 * time.Millisecond})
	ctx := context.Background()
	s := f.started(t, 0)

	c := NewClockScheduler(f.m, time.Second)
	c.tickSession(ctx, s.ID)

	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.WhiteClockMs)
	assert.Equal(t, session.StatusFinished, got.Status)
}

func TestClock_SkipsLockedSession(t *testing.T) {
	f := newFixture(t, Options{Allotment: 10 * time.Second})
	ctx := context.Background()
	s := f.started(t, 0)

	// Hold the session lock as an in-flight move would.
	unlock := f.m.locks.Lock(s.ID)
	c := NewClockScheduler(f.m, time.Second)
	c.tickSession(ctx, s.ID)
	unlock()

	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.WhiteClockMs, "contended tick skipped")
}

func TestClock_SweepCoversAllPlaying(t *testing.T) {
	f := newFixture(t, Options{Allotment: 10 * time.Second})
	ctx := context.Background()

	s1 := f.started(t, 0)
	s2, err := f.m.Create(ctx, carol, 0, "")
	require.NoError(t, err)
	s2, err = f.m.Join(ctx, s2.ID, wallet.Identity("dave-addr"))
	require.NoError(t, err)

	c := NewClockScheduler(f.m, time.Second)
	c.sweep(ctx)

	for _, id := range []string{s1.ID, s2.ID} {
		got, err := f.m.Snapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(9000), got.WhiteClockMs, "session %s", id)
	}
}

func TestClock_StartStop(t *testing.T) {
	f := newFixture(t, Options{Allotment: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClockScheduler(f.m, 10*time.Millisecond)
	c.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Stop() // idempotent
}
