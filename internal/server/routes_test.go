package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/config"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/logging"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func setupTestServer(t *testing.T, cfg config.Config, dice parchis.Dice) (*Server, *httptest.Server) {
	t.Helper()
	s := newServer(cfg, logging.Discard(), testEngine(dice, &fakeClock{now: epoch}), NewMemoryStore(), nopPublisher{})
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, mustMarshal(msg)))
}

// expect reads until a message of msgType arrives, skipping broadcasts of
// other types.
func expect(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %s", msgType)
		var msg inbound
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg.Payload
		}
	}
}

func expectError(t *testing.T, conn *websocket.Conn, code parchis.Code) {
	t.Helper()
	var e ErrorMessage
	require.NoError(t, json.Unmarshal(expect(t, conn, MsgError), &e))
	assert.Equal(t, string(code), e.Code, e.Message)
}

// expectEvent reads game_events broadcasts until one carries evType.
func expectEvent(t *testing.T, conn *websocket.Conn, evType parchis.EventType) GameEventsMessage {
	t.Helper()
	for {
		var msg GameEventsMessage
		require.NoError(t, json.Unmarshal(expect(t, conn, MsgGameEvents), &msg))
		for _, ev := range msg.Events {
			if ev.Type == evType {
				return msg
			}
		}
	}
}

func createGame(t *testing.T, conn *websocket.Conn, username string) SeatResponse {
	t.Helper()
	send(t, conn, "create_game", CreateGameRequest{Username: username})
	var seat SeatResponse
	require.NoError(t, json.Unmarshal(expect(t, conn, MsgGameCreated), &seat))
	return seat
}

func joinGame(t *testing.T, conn *websocket.Conn, gameID, username string) SeatResponse {
	t.Helper()
	send(t, conn, "join_game", JoinGameRequest{GameID: gameID, Username: username})
	var seat SeatResponse
	require.NoError(t, json.Unmarshal(expect(t, conn, MsgGameJoined), &seat))
	return seat
}

func TestWebSocketPingPong(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))
	conn := dial(t, ts)

	send(t, conn, "ping", nil)
	expect(t, conn, MsgPong)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))
	conn := dial(t, ts)
	ctx := context.Background()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	expectError(t, conn, CodeInvalidPayload)

	send(t, conn, "teleport", nil)
	expectError(t, conn, CodeInvalidMessageType)

	send(t, conn, "create_game", "not an object")
	expectError(t, conn, CodeInvalidPayload)

	send(t, conn, "create_game", CreateGameRequest{Username: "   "})
	expectError(t, conn, CodeUsernameInvalid)

	send(t, conn, "join_game", JoinGameRequest{GameID: "AB", Username: "Bob"})
	expectError(t, conn, CodeInvalidRoomCode)

	// The socket survives every rejection.
	send(t, conn, "ping", nil)
	expect(t, conn, MsgPong)
}

func TestWebSocketRequiresSeat(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))
	conn := dial(t, ts)

	for _, msgType := range []string{"start_game", "pause_game", "resume_game", "player_action", "request_game_state", "get_available_moves", "leave_game"} {
		t.Run(msgType, func(t *testing.T) {
			send(t, conn, msgType, map[string]any{})
			expectError(t, conn, CodeNotInGame)
		})
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	assert := assert.New(t)
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(3))

	alice := dial(t, ts)
	bob := dial(t, ts)

	host := createGame(t, alice, "Alice")
	assert.Len(host.GameID, 4)
	assert.NotEmpty(host.Token)
	require.NotNil(t, host.Game)
	assert.Equal(parchis.StatusWaiting, host.Game.Status)

	guest := joinGame(t, bob, strings.ToLower(host.GameID), "Bob")
	assert.Equal(host.GameID, guest.GameID)
	assert.Len(guest.Game.Players, 2)

	var joined GameEventsMessage
	require.NoError(t, json.Unmarshal(expect(t, alice, MsgGameEvents), &joined))
	assert.Equal(host.GameID, joined.GameID)
	assert.Equal([]parchis.EventType{parchis.EventPlayerJoined}, eventTypes(joined.Events))

	send(t, bob, "join_game", JoinGameRequest{GameID: host.GameID, Username: "alice"})
	expectError(t, bob, CodeUsernameTaken)

	send(t, alice, "start_game", nil)
	var started GameEventsMessage
	require.NoError(t, json.Unmarshal(expect(t, bob, MsgGameEvents), &started))
	assert.Equal(parchis.EventGameStarted, started.Events[0].Type)
	assert.Equal(parchis.StatusActive, started.Game.Status)
	expect(t, alice, MsgGameEvents)

	send(t, bob, "player_action", PlayerActionRequest{ActionType: "roll_dice"})
	var rejected parchis.Result
	require.NoError(t, json.Unmarshal(expect(t, bob, MsgActionResult), &rejected))
	assert.False(rejected.Success)
	assert.Equal(parchis.CodeNotYourTurn, rejected.Code)

	send(t, alice, "player_action", PlayerActionRequest{ActionType: "roll_dice"})
	var rolled parchis.Result
	require.NoError(t, json.Unmarshal(expect(t, alice, MsgActionResult), &rolled))
	require.True(t, rolled.Success, rolled.Error)
	assert.Equal(guest.PlayerID, rolled.Game.CurrentTurn.PlayerID, "a three from home has no moves")

	send(t, bob, "get_available_moves", nil)
	var moves AvailableMovesResponse
	require.NoError(t, json.Unmarshal(expect(t, bob, MsgAvailableMoves), &moves))
	assert.Equal(guest.PlayerID, moves.PlayerID)
	assert.Empty(moves.Moves)

	send(t, bob, "request_game_state", nil)
	var state parchis.Snapshot
	require.NoError(t, json.Unmarshal(expect(t, bob, MsgGameState), &state))
	assert.Equal(host.GameID, state.ID)
	assert.Equal(2, state.TurnNumber)

	assert.Equal(2, s.connectionManager.Count())
}

func TestWebSocketReconnectTakesOverSeat(t *testing.T) {
	assert := assert.New(t)
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))

	first := dial(t, ts)
	seat := createGame(t, first, "Alice")

	second := dial(t, ts)
	send(t, second, "reconnect", ReconnectRequest{Token: seat.Token})
	var back SeatResponse
	require.NoError(t, json.Unmarshal(expect(t, second, MsgReconnected), &back))
	assert.Equal(seat.GameID, back.GameID)
	assert.Equal(seat.PlayerID, back.PlayerID)
	assert.Empty(back.Token)

	expect(t, first, MsgDisconnectedElsewhere)
	_, _, err := first.Read(context.Background())
	assert.Equal(websocket.StatusNormalClosure, websocket.CloseStatus(err))

	// Closing the replaced socket must not take the player offline.
	require.Eventually(t, func() bool { return s.connectionManager.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	state, ok := s.gameManager.GetGameState(seat.GameID)
	require.True(t, ok)
	assert.True(state.Players[0].Connected)

	send(t, second, "request_game_state", nil)
	expect(t, second, MsgGameState)

	third := dial(t, ts)
	send(t, third, "reconnect", ReconnectRequest{Token: seat.Token + "x"})
	expectError(t, third, CodeTokenInvalid)
}

func TestWebSocketLeaveAndCloseDisconnect(t *testing.T) {
	assert := assert.New(t)
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))

	alice := dial(t, ts)
	seat := createGame(t, alice, "Alice")
	bob := dial(t, ts)
	guest := joinGame(t, bob, seat.GameID, "Bob")

	send(t, bob, "leave_game", nil)
	expect(t, bob, MsgLeftGame)

	state, _ := s.gameManager.GetGameState(seat.GameID)
	assert.False(state.Players[1].Connected)
	assert.Equal(guest.PlayerID, state.Players[1].ID)

	send(t, bob, "request_game_state", nil)
	expectError(t, bob, CodeNotInGame)

	alice.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		state, _ := s.gameManager.GetGameState(seat.GameID)
		return !state.Players[0].Connected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketMovingToAnotherGameReleasesSeat(t *testing.T) {
	assert := assert.New(t)
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))

	alice := dial(t, ts)
	first := createGame(t, alice, "Alice")
	bob := dial(t, ts)
	joinGame(t, bob, first.GameID, "Bob")

	carol := dial(t, ts)
	second := createGame(t, carol, "Carol")

	moved := joinGame(t, alice, second.GameID, "Alice")
	assert.Equal(second.GameID, moved.GameID)

	left := expectEvent(t, bob, parchis.EventPlayerDisconnected)
	assert.Equal(first.GameID, left.GameID)

	state, _ := s.gameManager.GetGameState(first.GameID)
	assert.False(state.Players[0].Connected, "the old seat has no socket any more")
	assert.True(state.Players[1].Connected)
	assert.Empty(s.connectionManager.ConnectionFor(first.GameID, first.PlayerID))

	alice.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		state, _ := s.gameManager.GetGameState(second.GameID)
		return !state.Players[1].Connected
	}, 2*time.Second, 10*time.Millisecond, "closing the socket frees the seat it moved to")
}

func TestWebSocketReconnectIntoAnotherSeatReleasesCurrentOne(t *testing.T) {
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))

	alice := dial(t, ts)
	first := createGame(t, alice, "Alice")

	other := dial(t, ts)
	second := createGame(t, other, "Dora")
	send(t, other, "leave_game", nil)
	expect(t, other, MsgLeftGame)

	send(t, alice, "reconnect", ReconnectRequest{Token: second.Token})
	expect(t, alice, MsgReconnected)

	state, _ := s.gameManager.GetGameState(first.GameID)
	assert.False(t, state.Players[0].Connected)
	state, _ = s.gameManager.GetGameState(second.GameID)
	assert.True(t, state.Players[0].Connected)
}

func TestWebSocketPauseAndResume(t *testing.T) {
	assert := assert.New(t)
	_, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))

	alice := dial(t, ts)
	host := createGame(t, alice, "Alice")
	bob := dial(t, ts)
	joinGame(t, bob, host.GameID, "Bob")

	send(t, alice, "pause_game", nil)
	expectError(t, alice, parchis.CodeInvalidGameState)

	send(t, alice, "start_game", nil)
	expectEvent(t, bob, parchis.EventGameStarted)

	send(t, bob, "pause_game", nil)
	paused := expectEvent(t, alice, parchis.EventGamePaused)
	assert.Equal(parchis.StatusPaused, paused.Game.Status)
	assert.Equal(parchis.PauseManual, paused.Game.PauseReason)

	send(t, alice, "player_action", PlayerActionRequest{ActionType: "roll_dice"})
	var res parchis.Result
	require.NoError(t, json.Unmarshal(expect(t, alice, MsgActionResult), &res))
	assert.Equal(parchis.CodeGameNotActive, res.Code)

	send(t, alice, "resume_game", nil)
	resumed := expectEvent(t, bob, parchis.EventGameResumed)
	assert.Equal(parchis.StatusActive, resumed.Game.Status)
	assert.Equal(host.PlayerID, resumed.Game.CurrentTurn.PlayerID)
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.5
	cfg.RateBurst = 2
	_, ts := setupTestServer(t, cfg, parchis.NewSequenceDice(1))
	conn := dial(t, ts)

	send(t, conn, "ping", nil)
	send(t, conn, "ping", nil)
	send(t, conn, "ping", nil)

	expect(t, conn, MsgPong)
	expect(t, conn, MsgPong)
	expectError(t, conn, CodeRateLimited)
}

func TestHTTPEndpoints(t *testing.T) {
	s, ts := setupTestServer(t, testConfig(), parchis.NewSequenceDice(1))
	openID, _ := seatPlayers(t, s.gameManager, "Bob")
	startedID, _ := seatPlayers(t, s.gameManager, "Bob")
	_, err := s.gameManager.StartGame(startedID)
	require.NoError(t, err)

	get := func(t *testing.T, path string, v any) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	t.Run("health", func(t *testing.T) {
		var health HealthResponse
		get(t, "/health", &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, 2, health.Games)
	})

	t.Run("stats", func(t *testing.T) {
		var stats StatsResponse
		get(t, "/api/stats", &stats)
		assert.Equal(t, 2, stats.TotalGames)
		assert.Equal(t, 1, stats.WaitingGames)
		assert.Equal(t, 1, stats.ActiveGames)
		assert.Equal(t, 4, stats.Players)
	})

	t.Run("public games", func(t *testing.T) {
		var games PublicGamesResponse
		get(t, "/api/games", &games)
		require.Len(t, games.Games, 1)
		assert.Equal(t, openID, games.Games[0].ID)
		assert.Equal(t, []string{"Alice", "Bob"}, games.Games[0].Players)
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/games", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}
