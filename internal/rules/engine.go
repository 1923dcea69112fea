// Package rules wraps the chess rules library behind the narrow surface the
// lobby needs: apply one candidate ply to a position, report the updated
// position and whether the game ended.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrIllegalMove = errors.New("illegal move")

// Terminal classifies how a position ended, if it did.
type Terminal string

const (
	TerminalNone         Terminal = ""
	TerminalCheckmate    Terminal = "checkmate"
	TerminalStalemate    Terminal = "stalemate"
	TerminalInsufficient Terminal = "insufficient_material"
	TerminalRepetition   Terminal = "repetition"
	TerminalFiftyMove    Terminal = "fifty_move"
)

// Ply is one candidate move in coordinate form.
type Ply struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the ply in UCI notation.
func (p Ply) UCI() string {
	return strings.ToLower(strings.TrimSpace(p.From) + strings.TrimSpace(p.To) + strings.TrimSpace(p.Promotion))
}

// Result is the accepted outcome of applying a ply.
type Result struct {
	FEN       string
	SAN       string
	UCI       string
	NextWhite bool
	Terminal  Terminal
	// WhiteWins is meaningful only for TerminalCheckmate.
	WhiteWins bool
}

// StartFEN is the initial position.
func StartFEN() string {
	return nchess.NewGame().FEN()
}

// Apply replays movesUCI from the start position and then attempts the
// candidate ply. The stored move list, not the cached FEN, is the source of
// truth, so a corrupted FEN can never desynchronize legality checks.
func Apply(movesUCI []string, ply Ply) (*Result, error) {
	game, err := replay(movesUCI)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, ErrIllegalMove
	}

	pos := game.Position()
	uci := ply.UCI()
	if uci == "" {
		return nil, ErrIllegalMove
	}
	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, uci)
	if err != nil {
		return nil, ErrIllegalMove
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)

	// Rule-based draws end the game without either side claiming them.
	if game.Outcome() == nchess.NoOutcome {
		for _, m := range game.EligibleDraws() {
			if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
				if derr := game.Draw(m); derr == nil {
					break
				}
			}
		}
	}

	res := &Result{
		FEN:       game.FEN(),
		SAN:       san,
		UCI:       uci,
		NextWhite: game.Position().Turn() == nchess.White,
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Terminal = TerminalCheckmate
		res.WhiteWins = true
	case nchess.BlackWon:
		res.Terminal = TerminalCheckmate
	case nchess.Draw:
		res.Terminal = drawTerminal(game.Method())
	}
	return res, nil
}

// SideToMove reports whose turn it is after replaying movesUCI.
func SideToMove(movesUCI []string) (white bool, err error) {
	game, err := replay(movesUCI)
	if err != nil {
		return false, err
	}
	return game.Position().Turn() == nchess.White, nil
}

func drawTerminal(m nchess.Method) Terminal {
	switch m {
	case nchess.Stalemate:
		return TerminalStalemate
	case nchess.InsufficientMaterial:
		return TerminalInsufficient
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return TerminalRepetition
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return TerminalFiftyMove
	default:
		return TerminalStalemate
	}
}

func replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range movesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return game, nil
}
