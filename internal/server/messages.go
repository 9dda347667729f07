package server

import "encoding/json"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Server message types.
const (
	MsgPong                  = "pong"
	MsgError                 = "error"
	MsgGameCreated           = "game_created"
	MsgGameJoined            = "game_joined"
	MsgReconnected           = "reconnected"
	MsgDisconnectedElsewhere = "disconnected_elsewhere"
	MsgActionResult          = "action_result"
	MsgGameState             = "game_state"
	MsgGameEvents            = "game_events"
	MsgAvailableMoves        = "available_moves"
	MsgLeftGame              = "left_game"
)
