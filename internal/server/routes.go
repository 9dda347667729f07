package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	CodeInvalidPayload parchis.Code = "INVALID_PAYLOAD"
	CodeNotInGame      parchis.Code = "NOT_IN_GAME"

	broadcastTimeout = 5 * time.Second
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/stats", s.statsHandler)
	mux.HandleFunc("GET /api/games", s.publicGamesHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, HealthResponse{
		Status:      "ok",
		Games:       s.gameManager.Stats().TotalGames,
		Connections: s.connectionManager.Count(),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, StatsResponse{
		Stats:       s.gameManager.Stats(),
		Connections: s.connectionManager.Count(),
	})
}

func (s *Server) publicGamesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, PublicGamesResponse{Games: s.gameManager.PublicGames()})
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to open websocket")
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	log := s.log.WithField("connection_id", connectionID)
	log.Debug("connection opened")

	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer func() {
		s.rateLimiter.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		seat, bound := s.connectionManager.RemoveConnection(connectionID)
		log.Debug("connection closed")
		if !bound {
			return
		}

		events, err := s.gameManager.DisconnectPlayer(seat.GameID, seat.PlayerID)
		if err != nil {
			log.WithError(err).WithField("game_id", seat.GameID).Debug("disconnect after close")
			return
		}
		s.broadcastEvents(seat.GameID, events)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.WithError(err).Debug("read loop ended")
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, parchis.Errorf(CodeRateLimited, "too many messages, slow down"))
			continue
		}
		s.connectionHealth.UpdateActivity(connectionID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(socket, ctx, parchis.Errorf(CodeInvalidPayload, "invalid JSON"))
			continue
		}
		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err)
			continue
		}

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID, msg.Payload)
		case "create_game":
			s.handleCreateGame(socket, ctx, connectionID, msg.Payload)
		case "join_game":
			s.handleJoinGame(socket, ctx, connectionID, msg.Payload)
		case "reconnect":
			s.handleReconnect(socket, ctx, connectionID, msg.Payload)
		case "start_game":
			s.handleStartGame(socket, ctx, connectionID, msg.Payload)
		case "pause_game":
			s.handlePauseGame(socket, ctx, connectionID, msg.Payload)
		case "resume_game":
			s.handleResumeGame(socket, ctx, connectionID, msg.Payload)
		case "player_action":
			s.handlePlayerAction(socket, ctx, connectionID, msg.Payload)
		case "request_game_state":
			s.handleRequestGameState(socket, ctx, connectionID, msg.Payload)
		case "get_available_moves":
			s.handleGetAvailableMoves(socket, ctx, connectionID, msg.Payload)
		case "leave_game":
			s.handleLeaveGame(socket, ctx, connectionID, msg.Payload)
		}
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) reply(socket *websocket.Conn, ctx context.Context, msgType string, payload any) {
	if err := s.sendMessage(socket, ctx, ServerMessage{Type: msgType, Payload: payload}); err != nil {
		s.log.WithError(err).WithField("type", msgType).Debug("failed to send message")
	}
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, err error) {
	s.reply(socket, ctx, MsgError, ErrorMessage{
		Message: err.Error(),
		Code:    string(parchis.CodeOf(err)),
	})
}

// seatOf returns the seat bound to a connection or sends NOT_IN_GAME.
func (s *Server) seatOf(socket *websocket.Conn, ctx context.Context, connectionID string) (PlayerConnection, bool) {
	seat, ok := s.connectionManager.GetPlayer(connectionID)
	if !ok {
		s.sendError(socket, ctx, parchis.Errorf(CodeNotInGame, "no active game session"))
	}
	return seat, ok
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	s.reply(socket, ctx, MsgPong, struct{}{})
}

func (s *Server) handleCreateGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, parchis.Errorf(CodeInvalidPayload, "invalid create_game payload"))
		return
	}

	gameID, playerID, err := s.gameManager.CreateGame(req.Username)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.seat(socket, ctx, connectionID, MsgGameCreated, gameID, playerID, req.Username)
}

func (s *Server) handleJoinGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, parchis.Errorf(CodeInvalidPayload, "invalid join_game payload"))
		return
	}

	playerID, events, err := s.gameManager.JoinGame(req.GameID, req.Username)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	gameID := NormalizeRoomCode(req.GameID)
	s.seat(socket, ctx, connectionID, MsgGameJoined, gameID, playerID, req.Username)
	s.broadcastEvents(gameID, events)
}

// seat binds the connection to a freshly created seat and hands the client
// its session token.
func (s *Server) seat(socket *websocket.Conn, ctx context.Context, connectionID, msgType, gameID, playerID, username string) {
	token, err := s.sessionManager.Issue(SessionInfo{GameID: gameID, PlayerID: playerID, Username: username})
	if err != nil {
		s.log.WithError(err).Error("failed to issue session token")
		s.sendError(socket, ctx, err)
		return
	}
	next := PlayerConnection{GameID: gameID, PlayerID: playerID, Username: username}
	s.leaveSeat(connectionID, next)
	s.connectionManager.Bind(connectionID, next)

	snapshot, _ := s.gameManager.GetGameState(gameID)
	s.reply(socket, ctx, msgType, SeatResponse{
		GameID:   gameID,
		PlayerID: playerID,
		Token:    token,
		Game:     snapshot,
	})
}

// leaveSeat takes the connection's current seat offline before the
// connection is bound to a different one.
func (s *Server) leaveSeat(connectionID string, next PlayerConnection) {
	prev, ok := s.connectionManager.GetPlayer(connectionID)
	if !ok || (prev.GameID == next.GameID && prev.PlayerID == next.PlayerID) {
		return
	}

	s.connectionManager.Unbind(connectionID)
	events, err := s.gameManager.DisconnectPlayer(prev.GameID, prev.PlayerID)
	if err != nil {
		s.log.WithFields(logrus.Fields{"game_id": prev.GameID, "player_id": prev.PlayerID}).WithError(err).Debug("failed to release previous seat")
		return
	}
	s.broadcastEvents(prev.GameID, events)
}

func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, parchis.Errorf(CodeInvalidPayload, "invalid reconnect payload"))
		return
	}

	session, err := s.sessionManager.Parse(req.Token)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}

	events, err := s.gameManager.ReconnectPlayer(session.GameID, session.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}

	next := PlayerConnection{
		GameID:   session.GameID,
		PlayerID: session.PlayerID,
		Username: session.Username,
	}
	s.leaveSeat(connectionID, next)
	previous := s.connectionManager.Bind(connectionID, next)
	if previous != "" {
		if old := s.connectionManager.GetConnection(previous); old != nil {
			s.reply(old, context.Background(), MsgDisconnectedElsewhere, struct {
				Message string `json:"message"`
			}{Message: "You connected on another device"})
			// Close waits for the old client's handshake.
			go old.Close(websocket.StatusNormalClosure, "Connected from another device")
		}
	}

	snapshot, _ := s.gameManager.GetGameState(session.GameID)
	s.reply(socket, ctx, MsgReconnected, SeatResponse{
		GameID:   session.GameID,
		PlayerID: session.PlayerID,
		Game:     snapshot,
	})
	s.broadcastEvents(session.GameID, events)
}

func (s *Server) handleStartGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	events, err := s.gameManager.StartGame(seat.GameID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.broadcastEvents(seat.GameID, events)
}

func (s *Server) handlePauseGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	events, err := s.gameManager.PauseGame(seat.GameID, seat.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.broadcastEvents(seat.GameID, events)
}

func (s *Server) handleResumeGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	events, err := s.gameManager.ResumeGame(seat.GameID, seat.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.broadcastEvents(seat.GameID, events)
}

func (s *Server) handlePlayerAction(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	var req PlayerActionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, parchis.Errorf(CodeInvalidPayload, "invalid player_action payload"))
		return
	}

	res := s.gameManager.ProcessPlayerAction(ctx, seat.GameID, seat.PlayerID, parchis.Envelope{
		ActionType: req.ActionType,
		PlayerID:   seat.PlayerID,
		Payload:    req.Payload,
		Timestamp:  time.Now(),
	})
	s.reply(socket, ctx, MsgActionResult, res)
	if res.Success {
		s.broadcastEvents(seat.GameID, res.Events)
	}
}

func (s *Server) handleRequestGameState(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	snapshot, found := s.gameManager.GetGameState(seat.GameID)
	if !found {
		s.sendError(socket, ctx, parchis.Errorf(parchis.CodeGameNotFound, "game %s not found", seat.GameID))
		return
	}
	s.reply(socket, ctx, MsgGameState, snapshot)
}

func (s *Server) handleGetAvailableMoves(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	moves, err := s.gameManager.AvailableMoves(seat.GameID, seat.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.reply(socket, ctx, MsgAvailableMoves, AvailableMovesResponse{
		GameID:   seat.GameID,
		PlayerID: seat.PlayerID,
		Moves:    moves,
	})
}

// handleLeaveGame releases the seat. The player stays in the game as
// disconnected and can come back with their token.
func (s *Server) handleLeaveGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	seat, ok := s.seatOf(socket, ctx, connectionID)
	if !ok {
		return
	}

	s.connectionManager.Unbind(connectionID)
	events, err := s.gameManager.DisconnectPlayer(seat.GameID, seat.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err)
		return
	}
	s.reply(socket, ctx, MsgLeftGame, struct {
		GameID string `json:"gameId"`
	}{GameID: seat.GameID})
	s.broadcastEvents(seat.GameID, events)
}

// broadcastEvents sends new events and the resulting snapshot to every
// connected player of the game, then publishes them.
func (s *Server) broadcastEvents(gameID string, events []parchis.Event) {
	if len(events) == 0 {
		return
	}

	snapshot, _ := s.gameManager.GetGameState(gameID)
	msg := newEventsMessage(gameID, events, snapshot)

	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	for playerID, conn := range s.connectionManager.GameConnections(gameID) {
		if err := s.sendMessage(conn, ctx, ServerMessage{Type: MsgGameEvents, Payload: msg}); err != nil {
			s.log.WithFields(logrus.Fields{"game_id": gameID, "player_id": playerID}).WithError(err).Debug("broadcast failed")
		}
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.WithField("game_id", gameID).WithError(err).Warn("failed to publish events")
	}
}
