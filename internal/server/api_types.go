package server

import (
	"encoding/json"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// CREATE / JOIN GAME (create_game, join_game)
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	Username string `json:"username"`
}

// tygo:generate
type JoinGameRequest struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

// SeatResponse answers create_game, join_game and reconnect. The token is
// what the client sends back on reconnect.
// tygo:generate
type SeatResponse struct {
	GameID   string            `json:"gameId"`
	PlayerID string            `json:"playerId"`
	Token    string            `json:"token,omitempty"`
	Game     *parchis.Snapshot `json:"game"`
}

// ============================================================================
// RECONNECT (reconnect)
// ============================================================================
// tygo:generate
type ReconnectRequest struct {
	Token string `json:"token"`
}

// ============================================================================
// PLAYER ACTIONS (player_action, get_available_moves)
// ============================================================================
// tygo:generate
type PlayerActionRequest struct {
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// tygo:generate
type AvailableMovesResponse struct {
	GameID   string         `json:"gameId"`
	PlayerID string         `json:"playerId"`
	Moves    []parchis.Move `json:"moves"`
}

// ============================================================================
// BROADCASTS (game_events, game_state)
// ============================================================================
// tygo:generate
type GameEventsMessage struct {
	GameID string            `json:"gameId"`
	Events []parchis.Event   `json:"events"`
	Game   *parchis.Snapshot `json:"game,omitempty"`
}

// ============================================================================
// HTTP
// ============================================================================
// tygo:generate
type HealthResponse struct {
	Status      string `json:"status"`
	Games       int    `json:"games"`
	Connections int    `json:"connections"`
}

// tygo:generate
type StatsResponse struct {
	Stats
	Connections int `json:"connections"`
}

// tygo:generate
type PublicGamesResponse struct {
	Games []parchis.Summary `json:"games"`
}
