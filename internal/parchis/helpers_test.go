package parchis_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEngine(t *testing.T, dice parchis.Dice, handlers ...parchis.SecondaryHandler) (*parchis.Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	e := parchis.New(parchis.Config{
		Dice:     dice,
		Clock:    clock.Now,
		Handlers: handlers,
	})
	return e, clock
}

// newWaitingGame creates a game with n players, p1..pn, not started.
func newWaitingGame(t *testing.T, e *parchis.Engine, n int) *parchis.Game {
	t.Helper()
	g, err := e.CreateGame("GAME", parchis.Seat{ID: "p1", Name: "Player 1"})
	require.NoError(t, err)
	for i := 2; i <= n; i++ {
		_, _, err := e.Join(g, parchis.Seat{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)})
		require.NoError(t, err)
	}
	return g
}

func newActiveGame(t *testing.T, e *parchis.Engine, n int) *parchis.Game {
	t.Helper()
	g := newWaitingGame(t, e, n)
	_, err := e.Start(g)
	require.NoError(t, err)
	return g
}

// place puts a piece on a board index, bypassing the rules.
func place(b *board.Board, pc *parchis.Piece, index int) {
	pc.Position = b.PositionAt(index)
	switch pc.Position.Zone {
	case board.ZoneFinish:
		pc.Status = parchis.PieceFinished
	case board.ZoneHome:
		pc.Status = parchis.PieceHome
	default:
		pc.Status = parchis.PieceBoard
	}
}

func eventTypes(events []parchis.Event) []parchis.EventType {
	out := make([]parchis.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func findEvent(events []parchis.Event, typ parchis.EventType) (parchis.Event, bool) {
	for _, ev := range events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return parchis.Event{}, false
}

func dice(v int) *int { return &v }
