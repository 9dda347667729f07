package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGame(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), true)

	gameID, playerID, err := gm.CreateGame("  Alice ")
	require.NoError(t, err)
	assert.NoError(ValidateRoomCode(gameID))
	assert.NotEmpty(playerID)

	snap, ok := gm.GetGameState(gameID)
	require.True(t, ok)
	assert.Equal(parchis.StatusWaiting, snap.Status)
	require.Len(t, snap.Players, 1)
	assert.Equal("Alice", snap.Players[0].Name)
	assert.Equal(playerID, snap.Players[0].ID)

	_, ok = gm.GetGameState(strings.ToLower(gameID))
	assert.True(ok, "lookups ignore case")

	_, _, err = gm.CreateGame("   ")
	assert.Equal(CodeUsernameInvalid, parchis.CodeOf(err))
}

func TestJoinGameRejections(t *testing.T) {
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	gameID, _ := seatPlayers(t, gm, "Bob")
	fullID, _ := seatPlayers(t, gm, "Bob", "Cy", "Di")

	tests := []struct {
		name     string
		gameID   string
		username string
		want     parchis.Code
	}{
		{name: "malformed code", gameID: "AB1", username: "Eve", want: CodeInvalidRoomCode},
		{name: "unknown game", gameID: "QQQQ", username: "Eve", want: parchis.CodeGameNotFound},
		{name: "empty name", gameID: gameID, username: "", want: CodeUsernameInvalid},
		{name: "name taken ignoring case", gameID: gameID, username: "bob", want: CodeUsernameTaken},
		{name: "full game", gameID: fullID, username: "Eve", want: parchis.CodeGameFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := gm.JoinGame(tt.gameID, tt.username)
			assert.Equal(t, tt.want, parchis.CodeOf(err))
		})
	}

	snap, _ := gm.GetGameState(gameID)
	assert.Len(t, snap.Players, 2, "rejected joins leave the game untouched")
}

func TestAutoStartOnFourthJoin(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), true)
	gameID, hostID, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	for _, name := range []string{"Bob", "Cy"} {
		_, events, err := gm.JoinGame(gameID, name)
		require.NoError(t, err)
		assert.Equal([]parchis.EventType{parchis.EventPlayerJoined}, eventTypes(events))
	}

	_, events, err := gm.JoinGame(gameID, "Di")
	require.NoError(t, err)
	assert.Equal([]parchis.EventType{
		parchis.EventPlayerJoined,
		parchis.EventGameStarted,
		parchis.EventTurnStarted,
	}, eventTypes(events))

	snap, _ := gm.GetGameState(gameID)
	assert.Equal(parchis.StatusActive, snap.Status)
	require.NotNil(t, snap.CurrentTurn)
	assert.Equal(hostID, snap.CurrentTurn.PlayerID)
	assert.Equal(parchis.PhaseRoll, snap.CurrentTurn.Phase)

	_, _, err = gm.JoinGame(gameID, "Eve")
	assert.Equal(parchis.CodeGameAlreadyStarted, parchis.CodeOf(err))
}

func TestManualStart(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)

	soloID, _ := seatPlayers(t, gm)
	_, err := gm.StartGame(soloID)
	assert.Equal(parchis.CodeInsufficientPlayers, parchis.CodeOf(err))

	gameID, _ := seatPlayers(t, gm, "Bob", "Cy", "Di")
	snap, _ := gm.GetGameState(gameID)
	assert.Equal(parchis.StatusWaiting, snap.Status, "no auto-start when disabled")

	events, err := gm.StartGame(gameID)
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGameStarted)

	_, err = gm.StartGame(gameID)
	assert.Equal(parchis.CodeGameAlreadyStarted, parchis.CodeOf(err))

	_, err = gm.StartGame("ZZZZ")
	assert.Error(err)
}

func TestProcessPlayerAction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	gm, _ := newTestManager(t, parchis.NewSequenceDice(3), false)
	gameID, ids := seatPlayers(t, gm, "Bob")
	_, err := gm.StartGame(gameID)
	require.NoError(t, err)

	res := gm.ProcessPlayerAction(ctx, gameID, ids[1], parchis.Envelope{ActionType: "roll_dice"})
	assert.False(res.Success)
	assert.Equal(parchis.CodeNotYourTurn, res.Code)

	res = gm.ProcessPlayerAction(ctx, gameID, ids[0], parchis.Envelope{ActionType: "roll_dice", PlayerID: ids[1]})
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Game)
	assert.Equal(ids[1], res.Game.CurrentTurn.PlayerID, "a 3 with everyone at home passes the turn")
	assert.Equal(ids[0], res.Events[0].PlayerID, "the session player acts, not the envelope's")

	res = gm.ProcessPlayerAction(ctx, gameID, ids[1], parchis.Envelope{ActionType: "warp"})
	assert.Equal(parchis.CodeUnknownActionType, res.Code)

	res = gm.ProcessPlayerAction(ctx, "NOPE", ids[0], parchis.Envelope{ActionType: "roll_dice"})
	assert.False(res.Success)
	assert.Equal(parchis.CodeGameNotFound, res.Code)
}

func TestAvailableMoves(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(5), false)
	gameID, ids := seatPlayers(t, gm, "Bob")
	_, err := gm.StartGame(gameID)
	require.NoError(t, err)

	moves, err := gm.AvailableMoves(gameID, ids[0])
	require.NoError(t, err)
	assert.Empty(moves)

	res := gm.ProcessPlayerAction(context.Background(), gameID, ids[0], parchis.Envelope{ActionType: "roll_dice"})
	require.True(t, res.Success, res.Error)

	moves, err = gm.AvailableMoves(gameID, ids[0])
	require.NoError(t, err)
	assert.Len(moves, parchis.PiecesPerPlayer)

	_, err = gm.AvailableMoves(gameID, "ghost")
	assert.Equal(parchis.CodePlayerNotFound, parchis.CodeOf(err))
}

func TestTickAllForcesExpiredTurns(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	activeID, ids := seatPlayers(t, gm, "Bob", "Cy")
	_, err := gm.StartGame(activeID)
	require.NoError(t, err)
	waitingID, _ := seatPlayers(t, gm, "Bob")

	assert.Empty(gm.TickAll(10 * time.Second))

	events := gm.TickAll(6 * time.Second)
	require.Contains(t, events, activeID)
	assert.NotContains(events, waitingID)
	assert.Contains(eventTypes(events[activeID]), parchis.EventTurnForced)

	snap, _ := gm.GetGameState(activeID)
	assert.Equal(ids[1], snap.CurrentTurn.PlayerID)

	report, _, err := gm.Tick(activeID, time.Second)
	require.NoError(t, err)
	assert.False(report.Expired)
	assert.Empty(report.Findings)

	_, _, err = gm.Tick("NOPE", time.Second)
	assert.Equal(parchis.CodeGameNotFound, parchis.CodeOf(err))
}

func TestDisconnectAndReconnect(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	gameID, ids := seatPlayers(t, gm, "Bob")
	_, err := gm.StartGame(gameID)
	require.NoError(t, err)

	events, err := gm.DisconnectPlayer(gameID, ids[1])
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGamePaused)

	snap, _ := gm.GetGameState(gameID)
	assert.Equal(parchis.StatusPaused, snap.Status)

	events, err = gm.ReconnectPlayer(gameID, ids[1])
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGameResumed)

	snap, _ = gm.GetGameState(gameID)
	assert.Equal(parchis.StatusActive, snap.Status)
	assert.Equal(ids[0], snap.CurrentTurn.PlayerID)

	_, err = gm.ReconnectPlayer(gameID, "ghost")
	assert.Equal(parchis.CodePlayerNotFound, parchis.CodeOf(err))
}

func TestReconnectStartsHeldBackGame(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), true)
	gameID, ids := seatPlayers(t, gm, "Bob", "Cy")

	_, err := gm.DisconnectPlayer(gameID, ids[1])
	require.NoError(t, err)

	_, events, err := gm.JoinGame(gameID, "Di")
	require.NoError(t, err)
	assert.NotContains(eventTypes(events), parchis.EventGameStarted)

	events, err = gm.ReconnectPlayer(gameID, ids[1])
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGameStarted)

	snap, _ := gm.GetGameState(gameID)
	assert.Equal(parchis.StatusActive, snap.Status)
}

func TestStatsAndPublicGames(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)

	openID, _ := seatPlayers(t, gm, "Bob")
	activeID, activeIDs := seatPlayers(t, gm, "Bob")
	_, err := gm.StartGame(activeID)
	require.NoError(t, err)
	seatPlayers(t, gm, "Bob", "Cy", "Di")

	st := gm.Stats()
	assert.Equal(Stats{
		TotalGames:       3,
		WaitingGames:     2,
		ActiveGames:      1,
		Players:          8,
		ConnectedPlayers: 8,
	}, st)

	public := gm.PublicGames()
	require.Len(t, public, 1, "full and started games are not listed")
	assert.Equal(openID, public[0].ID)
	assert.Equal(2, public[0].PlayerCount)
	assert.Equal([]string{"Alice", "Bob"}, public[0].Players)

	_, err = gm.DisconnectPlayer(activeID, activeIDs[1])
	require.NoError(t, err)
	st = gm.Stats()
	assert.Equal(1, st.PausedGames)
	assert.Equal(0, st.ActiveGames)
	assert.Equal(7, st.ConnectedPlayers)
}

func TestManualPauseAndResume(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	gameID, ids := seatPlayers(t, gm, "Bob", "Cy")

	_, err := gm.PauseGame(gameID, ids[1])
	assert.Equal(parchis.CodeInvalidGameState, parchis.CodeOf(err), "waiting games cannot pause")

	_, err = gm.StartGame(gameID)
	require.NoError(t, err)

	_, err = gm.PauseGame(gameID, "ghost")
	assert.Equal(parchis.CodePlayerNotFound, parchis.CodeOf(err))

	events, err := gm.PauseGame(gameID, ids[1])
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGamePaused)
	snap, _ := gm.GetGameState(gameID)
	assert.Equal(parchis.StatusPaused, snap.Status)
	assert.Equal(parchis.PauseManual, snap.PauseReason)

	_, err = gm.DisconnectPlayer(gameID, ids[2])
	require.NoError(t, err)
	_, err = gm.ReconnectPlayer(gameID, ids[2])
	require.NoError(t, err)
	snap, _ = gm.GetGameState(gameID)
	assert.Equal(parchis.StatusPaused, snap.Status, "reconnecting does not lift a manual pause")

	events, err = gm.ResumeGame(gameID, ids[2])
	require.NoError(t, err)
	assert.Contains(eventTypes(events), parchis.EventGameResumed)
	snap, _ = gm.GetGameState(gameID)
	assert.Equal(parchis.StatusActive, snap.Status)
	assert.Equal(ids[0], snap.CurrentTurn.PlayerID)

	_, err = gm.ResumeGame(gameID, ids[0])
	assert.Equal(parchis.CodeInvalidGameState, parchis.CodeOf(err))
}

func TestRemoveGames(t *testing.T) {
	assert := assert.New(t)
	gm, clock := newTestManager(t, parchis.NewSequenceDice(1), false)
	doneID, ids := seatPlayers(t, gm, "Bob")
	_, err := gm.StartGame(doneID)
	require.NoError(t, err)
	liveID, _ := seatPlayers(t, gm, "Bob")

	gm.ForEach(func(g *parchis.Game) {
		if g.ID == doneID {
			_, err := gm.engine.Lifecycle().EndGame(g, ids[0])
			require.NoError(t, err)
		}
	})
	clock.Advance(time.Hour)

	assert.Empty(gm.RemoveFinished(epoch))
	assert.Equal([]string{doneID}, gm.RemoveFinished(epoch.Add(time.Minute)))

	_, ok := gm.GetGameState(doneID)
	assert.False(ok)
	assert.False(gm.usedCodes[doneID], "the room code is free again")

	assert.True(gm.RemoveGame(liveID))
	assert.False(gm.RemoveGame(liveID))
	assert.Equal(0, gm.Stats().TotalGames)
}

func TestRestoreMarksPlayersOffline(t *testing.T) {
	assert := assert.New(t)
	source, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	gameID, ids := seatPlayers(t, source, "Bob", "Cy")
	_, err := source.StartGame(gameID)
	require.NoError(t, err)

	var saved []byte
	source.ForEach(func(g *parchis.Game) {
		rec, err := storage.Encode(g)
		require.NoError(t, err)
		saved = rec.Data
	})
	restored, err := storage.Decode(saved)
	require.NoError(t, err)

	gm, _ := newTestManager(t, parchis.NewSequenceDice(1), false)
	assert.Equal(1, gm.Restore([]*parchis.Game{restored, nil}))
	assert.Equal(0, gm.Restore([]*parchis.Game{restored}), "live ids are not restored twice")
	assert.True(gm.usedCodes[gameID])

	snap, ok := gm.GetGameState(gameID)
	require.True(t, ok)
	assert.Equal(parchis.StatusPaused, snap.Status)
	assert.Equal(parchis.PauseNotEnoughConnected, snap.PauseReason)
	assert.Equal(ids[0], snap.CurrentTurn.PlayerID, "the current turn survives the restart")
	for _, p := range snap.Players {
		assert.False(p.Connected, p.Name)
	}

	_, err = gm.ReconnectPlayer(gameID, ids[0])
	require.NoError(t, err)
	_, err = gm.ReconnectPlayer(gameID, ids[2])
	require.NoError(t, err)

	snap, _ = gm.GetGameState(gameID)
	assert.Equal(parchis.StatusActive, snap.Status)
	assert.Equal(ids[0], snap.CurrentTurn.PlayerID)
}

func TestConcurrentGamesDoNotInterfere(t *testing.T) {
	gm, _ := newTestManager(t, parchis.NewSequenceDice(3), false)
	ctx := context.Background()

	var gameIDs []string
	for i := 0; i < 4; i++ {
		gameID, _ := seatPlayers(t, gm, fmt.Sprintf("Bob%d", i))
		_, err := gm.StartGame(gameID)
		require.NoError(t, err)
		gameIDs = append(gameIDs, gameID)
	}

	var wg sync.WaitGroup
	failures := make(chan string, 100)
	for _, gameID := range gameIDs {
		wg.Add(1)
		go func(gameID string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				snap, _ := gm.GetGameState(gameID)
				res := gm.ProcessPlayerAction(ctx, gameID, snap.CurrentTurn.PlayerID, parchis.Envelope{ActionType: "roll_dice"})
				if !res.Success {
					failures <- res.Error
					return
				}
				gm.Stats()
				gm.PublicGames()
			}
		}(gameID)
	}
	wg.Wait()
	close(failures)

	for msg := range failures {
		t.Error(msg)
	}
	for _, gameID := range gameIDs {
		snap, _ := gm.GetGameState(gameID)
		assert.Equal(t, 51, snap.TurnNumber)
	}
}
