package economy_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/economy"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEngine(t *testing.T) (*parchis.Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	b := board.Standard()
	e := parchis.New(parchis.Config{
		Board:    b,
		Dice:     parchis.NewSequenceDice(1),
		Clock:    clock.Now,
		Handlers: economy.Handlers(b, economy.DefaultOptions),
	})
	return e, clock
}

func newGame(t *testing.T, e *parchis.Engine, n int) *parchis.Game {
	t.Helper()
	g, err := e.CreateGame("GAME", parchis.Seat{ID: "p1", Name: "Player 1"})
	require.NoError(t, err)
	for i := 2; i <= n; i++ {
		_, _, err := e.Join(g, parchis.Seat{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)})
		require.NoError(t, err)
	}
	_, err = e.Start(g)
	require.NoError(t, err)
	return g
}

// actionPhase hands the turn to playerID and skips to the action phase.
func actionPhase(g *parchis.Game, playerID string) {
	v := 3
	g.CurrentTurn.PlayerID = playerID
	g.CurrentTurn.Phase = parchis.PhaseAction
	g.CurrentTurn.Dice = &v
}

func place(b *board.Board, pc *parchis.Piece, index int) {
	pc.Position = b.PositionAt(index)
	pc.Status = parchis.PieceBoard
}

func lastEvent(g *parchis.Game) parchis.Event {
	return g.Events[len(g.Events)-1]
}
