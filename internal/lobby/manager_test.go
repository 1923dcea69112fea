package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ryanongwx/chessbet/internal/rules"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = wallet.Identity("alice-addr")
	bob   = wallet.Identity("bob-addr")
	carol = wallet.Identity("carol-addr")
)

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordSink) byType(t matchdto.EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type recordSettler struct {
	mu       sync.Mutex
	sessions []*session.Session
}

func (r *recordSettler) Settle(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recordSettler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type fixture struct {
	m       *Manager
	sink    *recordSink
	settler *recordSettler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		m:       NewManager(session.NewMemStore(), opts),
		sink:    &recordSink{},
		settler: &recordSettler{},
	}
	f.m.AttachSink(f.sink)
	f.m.AttachSettler(f.settler)
	return f
}

// started creates and pairs a session, returning it in playing state.
func (f *fixture) started(t *testing.T, wager uint64) *session.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.m.Create(ctx, alice, wager, refFor(wager))
	require.NoError(t, err)
	s, err = f.m.Join(ctx, s.ID, bob)
	require.NoError(t, err)
	return s
}

func refFor(wager uint64) string {
	if wager == 0 {
		return ""
	}
	return "escrow-ref-1"
}

func mv(uci string) rules.Ply {
	p := rules.Ply{From: uci[0:2], To: uci[2:4]}
	if len(uci) > 4 {
		p.Promotion = uci[4:]
	}
	return p
}

func TestCreate_OneWaitingPerCreator(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	s, err := f.m.Create(ctx, alice, 0, "")
	require.NoError(t, err)

	_, err = f.m.Create(ctx, alice, 0, "")
	assert.ErrorIs(t, err, ErrAlreadyWaiting)

	// Cancelling frees the slot.
	_, err = f.m.Cancel(ctx, s.ID, alice)
	require.NoError(t, err)
	_, err = f.m.Create(ctx, alice, 0, "")
	assert.NoError(t, err)
}

func TestCreate_RejectsWhilePlaying(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.started(t, 0)

	_, err := f.m.Create(ctx, alice, 0, "")
	assert.ErrorIs(t, err, ErrAlreadyPlaying)
	_, err = f.m.Create(ctx, bob, 0, "")
	assert.ErrorIs(t, err, ErrAlreadyPlaying)
}

func TestCreate_ConcurrentCapEnforced(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.m.Create(ctx, alice, 0, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyWaiting)
		}
	}
	assert.Equal(t, 1, ok, "exactly one create may win")
}

func TestCreate_WagerCap(t *testing.T) {
	f := newFixture(t, Options{MaxWager: 100})
	_, err := f.m.Create(context.Background(), alice, 101, "ref")
	assert.ErrorIs(t, err, ErrInvalidWager)
}

func TestJoin_StartsMatch(t *testing.T) {
	f := newFixture(t, Options{Allotment: 5 * time.Minute})
	ctx := context.Background()

	s, err := f.m.Create(ctx, alice, 0, "")
	require.NoError(t, err)
	assert.Equal(t, session.StatusWaiting, s.Status)
	assert.Empty(t, s.Opponent)

	s, err = f.m.Join(ctx, s.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPlaying, s.Status)
	assert.Equal(t, string(bob), s.Opponent)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), s.WhiteClockMs)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), s.BlackClockMs)
	assert.Equal(t, session.White, s.Turn)

	// The start notification reaches the room and both identity channels,
	// covering a creator whose room subscription lags the join.
	joined := f.sink.byType(matchdto.EvSessionJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, s.ID, joined[0].SessionID)
	assert.ElementsMatch(t, []string{string(alice), string(bob)}, joined[0].Participants)
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	s, err := f.m.Create(ctx, alice, 0, "")
	require.NoError(t, err)

	_, err = f.m.Join(ctx, s.ID, alice)
	assert.ErrorIs(t, err, ErrSelfJoin)

	_, err = f.m.Join(ctx, "not-a-uuid", bob)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = f.m.Join(ctx, session.NewID(), bob)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = f.m.Join(ctx, s.ID, bob)
	require.NoError(t, err)

	// Session already started.
	_, err = f.m.Join(ctx, s.ID, carol)
	assert.ErrorIs(t, err, ErrNotWaiting)

	// Bob is busy now; he cannot join another waiting session.
	other, err := f.m.Create(ctx, carol, 0, "")
	require.NoError(t, err)
	_, err = f.m.Join(ctx, other.ID, bob)
	assert.ErrorIs(t, err, ErrAlreadyPlaying)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	s, err := f.m.Create(ctx, alice, 0, "")
	require.NoError(t, err)

	// Not the creator: rejected, session stays waiting.
	_, err = f.m.Cancel(ctx, s.ID, bob)
	assert.ErrorIs(t, err, ErrNotCreator)
	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusWaiting, got.Status)

	s, err = f.m.Cancel(ctx, s.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCancelled, s.Status)

	// Already cancelled.
	_, err = f.m.Cancel(ctx, s.ID, alice)
	assert.ErrorIs(t, err, ErrNotWaiting)
}

func TestCancel_WageredRefundsViaSettler(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s, err := f.m.Create(ctx, alice, 50, "escrow-ref-9")
	require.NoError(t, err)
	_, err = f.m.Cancel(ctx, s.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, f.settler.count())
}

func TestScenario_CreateJoinMovesConcede(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 0)

	s, err := f.m.Move(ctx, s.ID, alice, mv("e2e4"))
	require.NoError(t, err)
	assert.Equal(t, session.Black, s.Turn)

	s, err = f.m.Move(ctx, s.ID, bob, mv("e7e5"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e4", "e7e5"}, s.MovesUCI)

	s, err = f.m.Concede(ctx, s.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFinished, s.Status)
	assert.Equal(t, session.OutcomeOpponent, s.Outcome)
	assert.Equal(t, session.ReasonForfeit, s.Reason)
	assert.Equal(t, string(bob), s.WinnerAddress())

	// Wager-free sessions never reach settlement.
	assert.Equal(t, 0, f.settler.count())
}

func TestMove_TurnAndAuth(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 0)

	_, err := f.m.Move(ctx, s.ID, bob, mv("e7e5"))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = f.m.Move(ctx, s.ID, carol, mv("e2e4"))
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.m.Move(ctx, s.ID, alice, mv("e2e5"))
	assert.ErrorIs(t, err, ErrIllegalMove)

	// The rejected attempts must not have advanced anything.
	got, err := f.m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.MovesUCI)
	assert.Equal(t, session.White, got.Turn)
}

func TestMove_TurnDerivedFromPosition(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 0)

	// Corrupt the turn bookkeeping behind the manager's back; move
	// authorization must follow the position, not the stored field.
	raw, err := f.m.store.Get(ctx, s.ID)
	require.NoError(t, err)
	raw.Turn = session.Black
	require.NoError(t, f.m.store.Put(ctx, raw))

	_, err = f.m.Move(ctx, s.ID, bob, mv("e7e5"))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	got, err := f.m.Move(ctx, s.ID, alice, mv("e2e4"))
	require.NoError(t, err)
	assert.Equal(t, session.Black, got.Turn, "bookkeeping resynced by the applied ply")
}

func TestScenario_CheckmateFinishesAndLocks(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 25)

	// Fool's mate: black (the opponent) delivers checkmate.
	for _, step := range []struct {
		who wallet.Identity
		uci string
	}{
		{alice, "f2f3"}, {bob, "e7e5"}, {alice, "g2g4"}, {bob, "d8h4"},
	} {
		var err error
		s, err = f.m.Move(ctx, s.ID, step.who, mv(step.uci))
		require.NoError(t, err, "move %s", step.uci)
	}

	assert.Equal(t, session.StatusFinished, s.Status)
	assert.Equal(t, session.OutcomeOpponent, s.Outcome)
	assert.Equal(t, session.ReasonCheckmate, s.Reason)

	// No further moves accepted.
	_, err := f.m.Move(ctx, s.ID, alice, mv("a2a3"))
	assert.ErrorIs(t, err, ErrNotPlaying)

	// Wagered finish reaches settlement exactly once.
	assert.Equal(t, 1, f.settler.count())
}

func TestOutcomeImmutable_TimeoutAndConcedeAfterFinish(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 0)

	s, err := f.m.Concede(ctx, s.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeCreator, s.Outcome)
	v := s.Version

	// Client-reported timeout after finish is a no-op returning the
	// finished state unchanged.
	got, err := f.m.ReportTimeout(ctx, s.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeCreator, got.Outcome)
	assert.Equal(t, session.ReasonForfeit, got.Reason)
	assert.Equal(t, v, got.Version, "no write on the duplicate report")

	_, err = f.m.Concede(ctx, s.ID, alice)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestReportTimeout_CallerSignsOwnDefeat(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.started(t, 0)

	// Bob reports his own flag fell; alice wins even though it is not
	// bob's turn.
	s, err := f.m.ReportTimeout(ctx, s.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFinished, s.Status)
	assert.Equal(t, session.OutcomeCreator, s.Outcome)
	assert.Equal(t, session.ReasonTimeout, s.Reason)

	// The idempotent no-op is for participants only; a stranger is still
	// rejected after the game is over.
	_, err = f.m.ReportTimeout(ctx, s.ID, carol)
	assert.ErrorIs(t, err, ErrNotParticipant)
}
