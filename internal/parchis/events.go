package parchis

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventGameCreated        EventType = "game_created"
	EventPlayerJoined       EventType = "player_joined"
	EventGameStarted        EventType = "game_started"
	EventGamePaused         EventType = "game_paused"
	EventGameResumed        EventType = "game_resumed"
	EventGameEnded          EventType = "game_ended"
	EventTurnStarted        EventType = "turn_started"
	EventTurnEnded          EventType = "turn_ended"
	EventTurnForced         EventType = "turn_forced"
	EventPhaseAdvanced      EventType = "phase_advanced"
	EventDiceRolled         EventType = "dice_rolled"
	EventPieceMoved         EventType = "piece_moved"
	EventPieceCaptured      EventType = "piece_captured"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPlayerReconnected  EventType = "player_reconnected"
	EventTerritoryClaimed   EventType = "territory_claimed"
	EventTerritoryUpgraded  EventType = "territory_upgraded"
	EventResourcesCollected EventType = "resources_collected"
	EventTradeOffered       EventType = "trade_offered"
	EventTradeAccepted      EventType = "trade_accepted"
	EventTradeRejected      EventType = "trade_rejected"
	EventTradeExpired       EventType = "trade_expired"
)

// Event is an entry in the game's append-only log.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	PlayerID  string          `json:"playerId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Record appends an event to the log. Payloads are plain structs or maps
// and always marshal; a failure leaves the payload empty rather than
// dropping the event.
func (g *Game) Record(at time.Time, typ EventType, playerID string, payload any) Event {
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}

	ev := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		PlayerID:  playerID,
		Timestamp: at,
		Payload:   raw,
	}
	g.Events = append(g.Events, ev)
	return ev
}

// EventsSince copies the events appended after mark.
func (g *Game) EventsSince(mark int) []Event {
	if mark < 0 || mark > len(g.Events) {
		mark = len(g.Events)
	}
	out := make([]Event, len(g.Events)-mark)
	copy(out, g.Events[mark:])
	return out
}

// Payload shapes for the core events.

type TurnPayload struct {
	TurnNumber int   `json:"turnNumber"`
	Phase      Phase `json:"phase"`
}

type ForcedPayload struct {
	Reason         ForceReason `json:"reason"`
	PreviousPlayer string      `json:"previousPlayerId"`
	Phase          Phase       `json:"phase"`
}

type PhasePayload struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

type DicePayload struct {
	Value          int `json:"value"`
	AvailableMoves int `json:"availableMoves"`
}

type CapturePayload struct {
	PieceID    string `json:"pieceId"`
	OwnerID    string `json:"ownerId"`
	CapturedBy string `json:"capturedBy"`
}

type StatusPayload struct {
	Reason string `json:"reason,omitempty"`
}
