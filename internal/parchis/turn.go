package parchis

import (
	"errors"
	"time"
)

type ForceReason string

const (
	ForceTimeout    ForceReason = "timeout"
	ForceDisconnect ForceReason = "disconnect"
)

// Clock returns the current time. Tests pass a fixed or stepping clock.
type Clock func() time.Time

// PhaseTimeouts is the time budget of each turn phase.
type PhaseTimeouts struct {
	Roll   time.Duration
	Move   time.Duration
	Action time.Duration
}

var DefaultTimeouts = PhaseTimeouts{
	Roll:   15 * time.Second,
	Move:   30 * time.Second,
	Action: 15 * time.Second,
}

func (pt PhaseTimeouts) For(phase Phase) time.Duration {
	switch phase {
	case PhaseMove:
		return pt.Move
	case PhaseAction:
		return pt.Action
	default:
		return pt.Roll
	}
}

// TurnSequencer decides whose turn it is and which phase is running.
// All methods assume the caller holds the game's lock.
type TurnSequencer struct {
	timeouts PhaseTimeouts
	now      Clock
}

func NewTurnSequencer(timeouts PhaseTimeouts, now Clock) *TurnSequencer {
	return &TurnSequencer{timeouts: timeouts, now: now}
}

func (ts *TurnSequencer) Timeouts() PhaseTimeouts {
	return ts.timeouts
}

// InitializeFirstTurn hands the first turn to the first player who joined.
func (ts *TurnSequencer) InitializeFirstTurn(g *Game) error {
	if len(g.Players) == 0 {
		return Errorf(CodeInsufficientPlayers, "cannot start a turn without players")
	}
	g.TurnNumber = 0
	ts.beginTurn(g, g.Players[0].ID)
	return nil
}

func (ts *TurnSequencer) beginTurn(g *Game, playerID string) {
	now := ts.now()
	g.TurnNumber++
	g.CurrentTurn = &CurrentTurn{
		PlayerID:       playerID,
		Phase:          PhaseRoll,
		TimeRemaining:  ts.timeouts.Roll,
		AvailableMoves: []Move{},
		StartedAt:      now,
	}
	g.Record(now, EventTurnStarted, playerID, TurnPayload{TurnNumber: g.TurnNumber, Phase: PhaseRoll})
}

// AdvancePhase moves roll→move (storing the dice), move→action, and ends
// the turn from action.
func (ts *TurnSequencer) AdvancePhase(g *Game, dice *int) error {
	turn := g.CurrentTurn
	if turn == nil {
		return Errorf(CodeNoCurrentTurn, "no turn in progress")
	}

	switch turn.Phase {
	case PhaseRoll:
		if dice == nil {
			return Errorf(CodeMissingDiceRoll, "a dice value is required to leave the roll phase")
		}
		v := *dice
		turn.Dice = &v
		ts.setPhase(g, PhaseMove)
	case PhaseMove:
		ts.setPhase(g, PhaseAction)
	case PhaseAction:
		return ts.NextTurn(g)
	}
	return nil
}

func (ts *TurnSequencer) setPhase(g *Game, phase Phase) {
	turn := g.CurrentTurn
	from := turn.Phase
	turn.Phase = phase
	turn.TimeRemaining = ts.timeouts.For(phase)
	g.Record(ts.now(), EventPhaseAdvanced, turn.PlayerID, PhasePayload{From: from, To: phase})
}

// NextTurn passes the turn to the next connected player in join order. The
// game is left untouched when nobody is connected.
func (ts *TurnSequencer) NextTurn(g *Game) error {
	n := len(g.Players)
	if n == 0 {
		return ErrNoConnectedPlayers
	}

	current := -1
	if g.CurrentTurn != nil {
		current = g.PlayerIndex(g.CurrentTurn.PlayerID)
	}

	next := -1
	for i := 1; i <= n; i++ {
		idx := ((current+i)%n + n) % n
		if g.Players[idx].Connected {
			next = idx
			break
		}
	}
	if next == -1 {
		return ErrNoConnectedPlayers
	}

	if g.CurrentTurn != nil {
		g.Record(ts.now(), EventTurnEnded, g.CurrentTurn.PlayerID, TurnPayload{
			TurnNumber: g.TurnNumber,
			Phase:      g.CurrentTurn.Phase,
		})
	}
	ts.beginTurn(g, g.Players[next].ID)
	return nil
}

// ForceTurnAdvance ends the current turn on timeout or disconnect. When no
// one is left to play the game is paused instead.
func (ts *TurnSequencer) ForceTurnAdvance(g *Game, reason ForceReason) error {
	payload := ForcedPayload{Reason: reason}
	playerID := ""
	if g.CurrentTurn != nil {
		playerID = g.CurrentTurn.PlayerID
		payload.PreviousPlayer = playerID
		payload.Phase = g.CurrentTurn.Phase
	}
	g.Record(ts.now(), EventTurnForced, playerID, payload)

	err := ts.NextTurn(g)
	if errors.Is(err, ErrNoConnectedPlayers) {
		pause(g, ts.now(), PauseNoConnectedPlayers)
		return nil
	}
	return err
}

// CanAct is the turn and phase gate in front of every action.
func (ts *TurnSequencer) CanAct(g *Game, playerID string, action ActionType) error {
	turn := g.CurrentTurn
	if turn == nil {
		return Errorf(CodeNoCurrentTurn, "no turn in progress")
	}
	if turn.PlayerID != playerID {
		return Errorf(CodeNotYourTurn, "it is not your turn")
	}

	switch action {
	case ActionRollDice:
		if turn.Phase != PhaseRoll {
			return Errorf(CodeWrongPhase, "cannot roll during the %s phase", turn.Phase)
		}
		if turn.Dice != nil {
			return Errorf(CodeDiceAlreadyRolled, "dice already rolled this turn")
		}
	case ActionMovePiece:
		if turn.Phase != PhaseMove {
			return Errorf(CodeWrongPhase, "cannot move during the %s phase", turn.Phase)
		}
		if turn.Dice == nil {
			return Errorf(CodeMissingDiceRoll, "roll the dice before moving")
		}
	default:
		if turn.Phase != PhaseAction {
			return Errorf(CodeWrongPhase, "%s is only allowed during the action phase", action)
		}
	}
	return nil
}

// UpdateTimer spends delta from the phase budget and reports expiry. The
// caller is expected to force the turn forward when it returns true.
func (ts *TurnSequencer) UpdateTimer(g *Game, delta time.Duration) bool {
	turn := g.CurrentTurn
	if turn == nil {
		return false
	}
	turn.TimeRemaining -= delta
	if turn.TimeRemaining <= 0 {
		turn.TimeRemaining = 0
		return true
	}
	return false
}
