package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, moves []string, uci string) *Result {
	t.Helper()
	res, err := Apply(moves, plyFromUCI(uci))
	require.NoError(t, err, "move %s", uci)
	return res
}

func plyFromUCI(uci string) Ply {
	p := Ply{From: uci[0:2], To: uci[2:4]}
	if len(uci) > 4 {
		p.Promotion = uci[4:]
	}
	return p
}

func TestApply_LegalMove(t *testing.T) {
	res := apply(t, nil, "e2e4")
	assert.Equal(t, "e2e4", res.UCI)
	assert.Equal(t, "e4", res.SAN)
	assert.False(t, res.NextWhite)
	assert.Equal(t, TerminalNone, res.Terminal)
}

func TestApply_IllegalMove(t *testing.T) {
	for _, uci := range []string{"e2e5", "e7e5", "a1a8", "zzzz"} {
		_, err := Apply(nil, plyFromUCI(uci))
		assert.ErrorIs(t, err, ErrIllegalMove, "uci=%s", uci)
	}
}

func TestApply_Promotion(t *testing.T) {
	moves := []string{"a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c8b7", "a6b7", "d7d6"}
	res := apply(t, moves, "b7a8q")
	assert.Equal(t, TerminalNone, res.Terminal)
	assert.Contains(t, res.SAN, "=Q")
}

func TestApply_FoolsMate(t *testing.T) {
	moves := []string{"f2f3", "e7e5", "g2g4"}
	res := apply(t, moves, "d8h4")
	assert.Equal(t, TerminalCheckmate, res.Terminal)
	assert.False(t, res.WhiteWins)
}

func TestApply_ScholarsMate(t *testing.T) {
	moves := []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6"}
	res := apply(t, moves, "h5f7")
	assert.Equal(t, TerminalCheckmate, res.Terminal)
	assert.True(t, res.WhiteWins)
}

func TestApply_Stalemate(t *testing.T) {
	// Loyd's ten-move stalemate.
	moves := []string{
		"e2e3", "a7a5",
		"d1h5", "a8a6",
		"h5a5", "h7h5",
		"h2h4", "a6h6",
		"a5c7", "f7f6",
		"c7d7", "e8f7",
		"d7b7", "d8d3",
		"b7b8", "d3h7",
		"b8c8", "f7g6",
	}
	res := apply(t, moves, "c8e6")
	assert.Equal(t, TerminalStalemate, res.Terminal)
}

func TestApply_RejectsMoveAfterGameOver(t *testing.T) {
	moves := []string{"f2f3", "e7e5", "g2g4", "d8h4"}
	_, err := Apply(moves, plyFromUCI("a2a3"))
	assert.ErrorIs(t, err, ErrIllegalMove)
}

func TestSideToMove(t *testing.T) {
	white, err := SideToMove(nil)
	require.NoError(t, err)
	assert.True(t, white)

	white, err = SideToMove([]string{"e2e4"})
	require.NoError(t, err)
	assert.False(t, white)
}

func TestPlyUCI(t *testing.T) {
	assert.Equal(t, "e7e8q", Ply{From: "E7", To: "E8", Promotion: "Q"}.UCI())
	assert.Equal(t, "e2e4", Ply{From: " e2", To: "e4 "}.UCI())
}
