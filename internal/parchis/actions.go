package parchis

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

type ActionType string

const (
	// Core turn actions
	ActionRollDice  ActionType = "roll_dice"
	ActionMovePiece ActionType = "move_piece"
	ActionEndTurn   ActionType = "end_turn"

	// Secondary actions, action phase only
	ActionClaimTerritory ActionType = "territory_claim"
	ActionOfferTrade     ActionType = "trade_offer"
	ActionAcceptTrade    ActionType = "trade_accept"
	ActionRejectTrade    ActionType = "trade_reject"
)

// Secondary reports whether the action belongs to a pluggable handler
// rather than the turn machinery.
func (t ActionType) Secondary() bool {
	switch t {
	case ActionRollDice, ActionMovePiece, ActionEndTurn:
		return false
	}
	return true
}

// Action is the closed set of things a player can ask the engine to do.
type Action interface {
	Type() ActionType
	action()
}

type RollDice struct{}

type MovePiece struct {
	PieceID string         `json:"pieceId"`
	Target  board.Position `json:"targetPosition"`
}

type EndTurn struct{}

type ClaimTerritory struct {
	Position board.Position `json:"position"`
}

type OfferTrade struct {
	To         string    `json:"toPlayerId"`
	Offering   Resources `json:"offering"`
	Requesting Resources `json:"requesting"`
}

type AcceptTrade struct {
	OfferID string `json:"offerId"`
}

type RejectTrade struct {
	OfferID string `json:"offerId"`
}

func (RollDice) Type() ActionType       { return ActionRollDice }
func (MovePiece) Type() ActionType      { return ActionMovePiece }
func (EndTurn) Type() ActionType        { return ActionEndTurn }
func (ClaimTerritory) Type() ActionType { return ActionClaimTerritory }
func (OfferTrade) Type() ActionType     { return ActionOfferTrade }
func (AcceptTrade) Type() ActionType    { return ActionAcceptTrade }
func (RejectTrade) Type() ActionType    { return ActionRejectTrade }

func (RollDice) action()       {}
func (MovePiece) action()      {}
func (EndTurn) action()        {}
func (ClaimTerritory) action() {}
func (OfferTrade) action()     {}
func (AcceptTrade) action()    {}
func (RejectTrade) action()    {}

// Envelope is what the transport hands over for every player action.
type Envelope struct {
	ActionType string          `json:"actionType"`
	PlayerID   string          `json:"playerId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Decode turns the envelope into a typed action.
func (e Envelope) Decode() (Action, error) {
	return DecodeAction(ActionType(e.ActionType), e.Payload)
}

type cellField struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (c *cellField) position() (board.Position, bool) {
	if c == nil || c.X == nil || c.Y == nil {
		return board.Position{}, false
	}
	return board.Position{X: *c.X, Y: *c.Y}, true
}

// DecodeAction parses a raw payload for the given action type. Unknown
// types yield UNKNOWN_ACTION_TYPE and absent required fields MISSING_FIELD.
func DecodeAction(typ ActionType, payload json.RawMessage) (Action, error) {
	switch typ {
	case ActionRollDice:
		return RollDice{}, nil

	case ActionEndTurn:
		return EndTurn{}, nil

	case ActionMovePiece:
		var raw struct {
			PieceID string     `json:"pieceId"`
			Target  *cellField `json:"targetPosition"`
		}
		if err := unmarshalPayload(payload, &raw); err != nil {
			return nil, err
		}
		if raw.PieceID == "" {
			return nil, Errorf(CodeMissingField, "pieceId is required")
		}
		pos, ok := raw.Target.position()
		if !ok {
			return nil, Errorf(CodeMissingField, "targetPosition is required")
		}
		return MovePiece{PieceID: raw.PieceID, Target: pos}, nil

	case ActionClaimTerritory:
		var raw struct {
			Position *cellField `json:"position"`
		}
		if err := unmarshalPayload(payload, &raw); err != nil {
			return nil, err
		}
		pos, ok := raw.Position.position()
		if !ok {
			return nil, Errorf(CodeMissingField, "position is required")
		}
		return ClaimTerritory{Position: pos}, nil

	case ActionOfferTrade:
		var a OfferTrade
		if err := unmarshalPayload(payload, &a); err != nil {
			return nil, err
		}
		if a.To == "" {
			return nil, Errorf(CodeMissingField, "toPlayerId is required")
		}
		return a, nil

	case ActionAcceptTrade, ActionRejectTrade:
		var raw struct {
			OfferID string `json:"offerId"`
		}
		if err := unmarshalPayload(payload, &raw); err != nil {
			return nil, err
		}
		if raw.OfferID == "" {
			return nil, Errorf(CodeMissingField, "offerId is required")
		}
		if typ == ActionAcceptTrade {
			return AcceptTrade{OfferID: raw.OfferID}, nil
		}
		return RejectTrade{OfferID: raw.OfferID}, nil
	}

	return nil, Errorf(CodeUnknownActionType, "unknown action type %q", typ)
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return Errorf(CodeMissingField, "payload is required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return Errorf(CodeMissingField, "malformed payload: %v", err)
	}
	return nil
}
