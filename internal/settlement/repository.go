package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/ryanongwx/chessbet/internal/session"
)

// ResultsRepository archives finished games in Postgres for history and
// leaderboard queries. Upserts are keyed by session id so re-settlement is
// harmless.
type ResultsRepository struct {
	db *sql.DB
}

func NewResultsRepository(databaseURL string) (*ResultsRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &ResultsRepository{db: db}, nil
}

func (r *ResultsRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one finished session.
func (r *ResultsRepository) SaveResult(ctx context.Context, s *session.Session) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}

	pgnResult := pgnResultOf(s.Outcome)
	pgn := buildPGN(s, pgnResult)
	movesUCI, _ := json.Marshal(s.MovesUCI)
	movesSAN, _ := json.Marshal(s.MovesSAN)
	duration := s.UpdatedAt.Sub(s.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO match_results (
	    session_id, creator, opponent, wager, escrow_ref,
	    outcome, reason, winner, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    outcome=EXCLUDED.outcome,
	    reason=EXCLUDED.reason,
	    winner=EXCLUDED.winner,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Creator, s.Opponent, s.Wager, s.EscrowRef,
		string(s.Outcome), string(s.Reason), s.WinnerAddress(),
		string(movesUCI), string(movesSAN), pgn,
		s.CreatedAt, s.UpdatedAt, duration,
	)
	return err
}

func pgnResultOf(o session.Outcome) string {
	switch o {
	case session.OutcomeCreator:
		return "1-0"
	case session.OutcomeOpponent:
		return "0-1"
	case session.OutcomeDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(s *session.Session, pgnResult string) string {
	var b strings.Builder
	date := s.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"ChessBet\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(s.Creator)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(s.Opponent)))
	if s.Reason != session.ReasonNone {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(string(s.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(s.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(s.MovesSAN[i])))
		if i+1 < len(s.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(s.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
