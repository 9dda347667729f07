package parchis

import "time"

// SecondaryHandler owns an action kind outside the core turn machinery,
// such as trading or territory. Validate must not mutate the game.
type SecondaryHandler interface {
	Handles() []ActionType
	Validate(g *Game, playerID string, a Action) error
	Apply(g *Game, playerID string, a Action, now time.Time) error
}

// TurnHook runs after a new turn has started.
type TurnHook interface {
	OnTurnStart(g *Game, playerID string, now time.Time)
}

// Ticker runs on every periodic tick of an active game.
type Ticker interface {
	Tick(g *Game, now time.Time)
}

type Verdict struct {
	Valid  bool   `json:"valid"`
	Code   Code   `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

var valid = Verdict{Valid: true}

func reject(err error) Verdict {
	code := CodeOf(err)
	if code == "" {
		code = CodeInvalidGameState
	}
	reason := err.Error()
	if e, ok := err.(*Error); ok {
		reason = e.Message
	}
	return Verdict{Code: code, Reason: reason}
}

// Err returns nil for a valid verdict.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return &Error{Code: v.Code, Message: v.Reason}
}

// Validator gates every action: game state, then actor, then the turn and
// phase check, then the rule specific to the action.
type Validator struct {
	turns    *TurnSequencer
	moves    *MoveResolver
	handlers map[ActionType]SecondaryHandler
}

func NewValidator(turns *TurnSequencer, moves *MoveResolver, handlers map[ActionType]SecondaryHandler) *Validator {
	if handlers == nil {
		handlers = map[ActionType]SecondaryHandler{}
	}
	return &Validator{turns: turns, moves: moves, handlers: handlers}
}

func (v *Validator) Validate(g *Game, playerID string, a Action) Verdict {
	if a == nil {
		return reject(Errorf(CodeUnknownActionType, "no action given"))
	}

	if err := v.checkGame(g); err != nil {
		return reject(err)
	}
	if err := v.checkActor(g, playerID); err != nil {
		return reject(err)
	}
	if err := v.turns.CanAct(g, playerID, a.Type()); err != nil {
		return reject(err)
	}
	if err := v.checkAction(g, playerID, a); err != nil {
		return reject(err)
	}
	return valid
}

func (v *Validator) checkGame(g *Game) error {
	if g.Status != StatusActive {
		return Errorf(CodeGameNotActive, "game is %s", g.Status)
	}
	if g.CurrentTurn == nil || g.CurrentTurn.PlayerID == "" {
		return Errorf(CodeNoCurrentTurn, "no turn in progress")
	}
	if len(g.Players) < MinPlayers {
		return Errorf(CodeInsufficientPlayers, "need at least %d players", MinPlayers)
	}
	return nil
}

func (v *Validator) checkActor(g *Game, playerID string) error {
	p := g.Player(playerID)
	if p == nil {
		return Errorf(CodePlayerNotFound, "player %s not in game", playerID)
	}
	if !p.Connected {
		return Errorf(CodePlayerDisconnected, "player %s is disconnected", playerID)
	}
	return nil
}

func (v *Validator) checkAction(g *Game, playerID string, a Action) error {
	switch act := a.(type) {
	case RollDice:
		if g.CurrentTurn.Dice != nil {
			return Errorf(CodeDiceAlreadyRolled, "dice already rolled this turn")
		}
		return nil

	case MovePiece:
		if act.PieceID == "" {
			return Errorf(CodeMissingField, "pieceId is required")
		}
		if g.Player(playerID).Piece(act.PieceID) == nil {
			return Errorf(CodePieceNotFound, "piece %s not found", act.PieceID)
		}
		moves := v.moves.CalculateAvailableMoves(g, playerID, *g.CurrentTurn.Dice)
		if _, ok := findMove(moves, act.PieceID, act.Target); !ok {
			return Errorf(CodeInvalidMove, "piece %s cannot move to (%d,%d)", act.PieceID, act.Target.X, act.Target.Y)
		}
		return nil

	case EndTurn:
		return nil
	}

	h, ok := v.handlers[a.Type()]
	if !ok {
		return Errorf(CodeUnknownActionType, "no handler for %s", a.Type())
	}
	return h.Validate(g, playerID, a)
}
