package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/economy"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/config"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/logging"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testEngine(dice parchis.Dice, clock *fakeClock) *parchis.Engine {
	b := board.Standard()
	return parchis.New(parchis.Config{
		Board:    b,
		Dice:     dice,
		Clock:    clock.Now,
		Handlers: economy.Handlers(b, economy.DefaultOptions),
	})
}

func newTestManager(t *testing.T, dice parchis.Dice, autoStart bool) (*GameManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	gm := NewGameManager(testEngine(dice, clock), ManagerOptions{
		AutoStart: autoStart,
		Logger:    logging.Discard(),
	})
	return gm, clock
}

// seatPlayers creates a game hosted by Alice and joins the rest of names.
func seatPlayers(t *testing.T, gm *GameManager, names ...string) (string, []string) {
	t.Helper()
	gameID, hostID, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	ids := []string{hostID}
	for _, name := range names {
		id, _, err := gm.JoinGame(gameID, name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return gameID, ids
}

func testConfig() config.Config {
	return config.Config{
		Port:            8080,
		LogLevel:        "info",
		LogFormat:       "text",
		SessionSecret:   "test-secret",
		SessionTTL:      time.Hour,
		AutoStart:       true,
		TickInterval:    time.Second,
		RollTimeout:     15 * time.Second,
		MoveTimeout:     30 * time.Second,
		ActionTimeout:   15 * time.Second,
		SaveInterval:    30 * time.Second,
		CleanupInterval: time.Hour,
		FinishedTTL:     24 * time.Hour,
		RateLimit:       100,
		RateBurst:       100,
		ServiceName:     "albion-parchis-test",
	}
}

func eventTypes(events []parchis.Event) []parchis.EventType {
	out := make([]parchis.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
