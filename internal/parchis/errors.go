package parchis

import (
	"errors"
	"fmt"
)

type Code string

const (
	// Lifecycle
	CodeGameNotFound        Code = "GAME_NOT_FOUND"
	CodeGameFull            Code = "GAME_FULL"
	CodeGameAlreadyStarted  Code = "GAME_ALREADY_STARTED"
	CodeInsufficientPlayers Code = "INSUFFICIENT_PLAYERS"
	CodeInvalidGameState    Code = "INVALID_GAME_STATE"
	CodePlayerAlreadyJoined Code = "PLAYER_ALREADY_JOINED"
	CodeNoConnectedPlayers  Code = "NO_CONNECTED_PLAYERS"

	// Validation
	CodeGameNotActive         Code = "GAME_NOT_ACTIVE"
	CodeNoCurrentTurn         Code = "NO_CURRENT_TURN"
	CodePlayerNotFound        Code = "PLAYER_NOT_FOUND"
	CodePlayerDisconnected    Code = "PLAYER_DISCONNECTED"
	CodeNotYourTurn           Code = "NOT_YOUR_TURN"
	CodeWrongPhase            Code = "WRONG_PHASE"
	CodeDiceAlreadyRolled     Code = "DICE_ALREADY_ROLLED"
	CodeMissingDiceRoll       Code = "MISSING_DICE_ROLL"
	CodeMissingField          Code = "MISSING_FIELD"
	CodePieceNotFound         Code = "PIECE_NOT_FOUND"
	CodeInvalidMove           Code = "INVALID_MOVE"
	CodeUnknownActionType     Code = "UNKNOWN_ACTION_TYPE"
	CodeInsufficientResources Code = "INSUFFICIENT_RESOURCES"

	// Secondary handlers
	CodeSelfTrade                Code = "SELF_TRADE_ATTEMPT"
	CodeTargetPlayerNotFound     Code = "TARGET_PLAYER_NOT_FOUND"
	CodeTargetPlayerDisconnected Code = "TARGET_PLAYER_DISCONNECTED"
	CodeOfferNotFound            Code = "OFFER_NOT_FOUND"
	CodeOfferNotPending          Code = "OFFER_NOT_PENDING"
	CodeNotOfferRecipient        Code = "NOT_OFFER_RECIPIENT"
	CodeTerritoryAlreadyClaimed  Code = "TERRITORY_ALREADY_CLAIMED"
	CodeTerritoryNotClaimable    Code = "TERRITORY_NOT_CLAIMABLE"
	CodeTerritoryMaxLevel        Code = "TERRITORY_MAX_LEVEL"
	CodeNoPieceInTerritory       Code = "NO_PIECE_IN_TERRITORY"
	CodeInvalidTrade             Code = "INVALID_TRADE"

	// Consistency findings, never returned to callers
	CodeInvalidPieceCount          Code = "INVALID_PIECE_COUNT"
	CodeDuplicatePiecePositions    Code = "DUPLICATE_PIECE_POSITIONS"
	CodeMultiplePiecesSamePosition Code = "MULTIPLE_PIECES_SAME_POSITION"
	CodeInvalidCurrentPlayer       Code = "INVALID_CURRENT_PLAYER"
	CodeCurrentPlayerDisconnected  Code = "CURRENT_PLAYER_DISCONNECTED"
	CodeStatusZoneMismatch         Code = "STATUS_ZONE_MISMATCH"
)

// Error renders as "CODE: message" so it reads the same on the wire as the
// rest of the server's errors.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var ErrNoConnectedPlayers = &Error{Code: CodeNoConnectedPlayers, Message: "no connected players"}

// CodeOf returns the code carried by err, or "" if err has none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
