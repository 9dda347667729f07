package parchis

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

// Config wires an Engine. Zero fields fall back to the standard board,
// crypto-seeded dice, the wall clock and the default phase timeouts.
type Config struct {
	Board             *board.Board
	Dice              Dice
	Clock             Clock
	Timeouts          PhaseTimeouts
	StartingResources *Resources
	Handlers          []SecondaryHandler
}

// Engine runs the per-game pipeline: validate, apply, check for a winner.
// It keeps no per-game state, so one Engine serves every game as long as
// callers serialize access to each Game.
type Engine struct {
	board     *board.Board
	dice      Dice
	now       Clock
	turns     *TurnSequencer
	moves     *MoveResolver
	validator *Validator
	lifecycle *Lifecycle
	handlers  map[ActionType]SecondaryHandler
	hooks     []TurnHook
	tickers   []Ticker
}

func New(cfg Config) *Engine {
	if cfg.Board == nil {
		cfg.Board = board.Standard()
	}
	if cfg.Dice == nil {
		cfg.Dice = NewSeededDice()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Timeouts == (PhaseTimeouts{}) {
		cfg.Timeouts = DefaultTimeouts
	}
	starting := StartingResources
	if cfg.StartingResources != nil {
		starting = *cfg.StartingResources
	}

	e := &Engine{
		board:    cfg.Board,
		dice:     cfg.Dice,
		now:      cfg.Clock,
		handlers: make(map[ActionType]SecondaryHandler),
	}
	for _, h := range cfg.Handlers {
		for _, t := range h.Handles() {
			e.handlers[t] = h
		}
		if hook, ok := h.(TurnHook); ok {
			e.hooks = append(e.hooks, hook)
		}
		if ticker, ok := h.(Ticker); ok {
			e.tickers = append(e.tickers, ticker)
		}
	}

	e.turns = NewTurnSequencer(cfg.Timeouts, cfg.Clock)
	e.moves = NewMoveResolver(cfg.Board, cfg.Clock)
	e.validator = NewValidator(e.turns, e.moves, e.handlers)
	e.lifecycle = NewLifecycle(cfg.Board, e.turns, e.moves, cfg.Clock, starting)
	return e
}

func (e *Engine) Board() *board.Board   { return e.board }
func (e *Engine) Turns() *TurnSequencer { return e.turns }
func (e *Engine) Moves() *MoveResolver  { return e.moves }
func (e *Engine) Validator() *Validator { return e.validator }
func (e *Engine) Lifecycle() *Lifecycle { return e.lifecycle }
func (e *Engine) Now() time.Time        { return e.now() }

// Result is returned for every processed action.
type Result struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Code    Code      `json:"code,omitempty"`
	Game    *Snapshot `json:"game,omitempty"`
	Events  []Event   `json:"events,omitempty"`
}

func Failure(err error) Result {
	code := CodeOf(err)
	if code == "" {
		code = CodeInvalidGameState
	}
	return Result{Error: err.Error(), Code: code}
}

func (e *Engine) CreateGame(id string, host Seat) (*Game, error) {
	return e.lifecycle.InitializeGame(id, []Seat{host})
}

func (e *Engine) Join(g *Game, seat Seat) (*Player, []Event, error) {
	mark := len(g.Events)
	p, err := e.lifecycle.AddPlayer(g, seat)
	if err != nil {
		return nil, nil, err
	}
	return p, g.EventsSince(mark), nil
}

func (e *Engine) Start(g *Game) ([]Event, error) {
	return e.mutate(g, func() error { return e.lifecycle.StartGame(g) })
}

func (e *Engine) Pause(g *Game) ([]Event, error) {
	return e.mutate(g, func() error { return e.lifecycle.PauseGame(g, PauseManual) })
}

func (e *Engine) Resume(g *Game) ([]Event, error) {
	return e.mutate(g, func() error { return e.lifecycle.ResumeGame(g) })
}

func (e *Engine) Disconnect(g *Game, playerID string) ([]Event, error) {
	return e.mutate(g, func() error { return e.lifecycle.HandlePlayerDisconnection(g, playerID) })
}

func (e *Engine) Reconnect(g *Game, playerID string) ([]Event, error) {
	return e.mutate(g, func() error { return e.lifecycle.HandlePlayerReconnection(g, playerID) })
}

func (e *Engine) mutate(g *Game, fn func() error) ([]Event, error) {
	mark, turn := len(g.Events), g.TurnNumber
	if err := fn(); err != nil {
		return g.EventsSince(mark), err
	}
	e.settle(g, turn)
	return g.EventsSince(mark), nil
}

// ApplyEnvelope decodes and applies a transport envelope. Malformed
// payloads come back as failed results, never as panics.
func (e *Engine) ApplyEnvelope(g *Game, env Envelope) Result {
	a, err := env.Decode()
	if err != nil {
		return Failure(err)
	}
	return e.Apply(g, env.PlayerID, a)
}

// Apply validates and executes one action.
func (e *Engine) Apply(g *Game, playerID string, a Action) Result {
	if verdict := e.validator.Validate(g, playerID, a); !verdict.Valid {
		return Failure(verdict.Err())
	}

	mark, turn := len(g.Events), g.TurnNumber
	if err := e.dispatch(g, playerID, a); err != nil {
		return Failure(err)
	}
	e.settle(g, turn)

	return Result{
		Success: true,
		Game:    NewSnapshot(g),
		Events:  g.EventsSince(mark),
	}
}

func (e *Engine) dispatch(g *Game, playerID string, a Action) error {
	switch act := a.(type) {
	case RollDice:
		return e.roll(g, playerID)
	case MovePiece:
		return e.move(g, playerID, act)
	case EndTurn:
		return e.turns.AdvancePhase(g, nil)
	}

	h, ok := e.handlers[a.Type()]
	if !ok {
		return Errorf(CodeUnknownActionType, "no handler for %s", a.Type())
	}
	return h.Apply(g, playerID, a, e.now())
}

// roll throws the dice and opens the move phase. With nothing to move the
// turn passes straight to the next player.
func (e *Engine) roll(g *Game, playerID string) error {
	value := e.dice.Roll()
	moves := e.moves.CalculateAvailableMoves(g, playerID, value)
	g.Record(e.now(), EventDiceRolled, playerID, DicePayload{Value: value, AvailableMoves: len(moves)})

	if err := e.turns.AdvancePhase(g, &value); err != nil {
		return err
	}
	g.CurrentTurn.AvailableMoves = moves

	if len(moves) == 0 {
		return e.turns.NextTurn(g)
	}
	return nil
}

func (e *Engine) move(g *Game, playerID string, a MovePiece) error {
	if _, err := e.moves.ExecuteMove(g, playerID, a.PieceID, a.Target); err != nil {
		return err
	}

	if w := e.lifecycle.CheckWinConditions(g); w != nil {
		_, err := e.lifecycle.EndGame(g, w.ID)
		return err
	}

	g.CurrentTurn.AvailableMoves = []Move{}
	if len(e.handlers) == 0 {
		return e.turns.NextTurn(g)
	}
	return e.turns.AdvancePhase(g, nil)
}

// settle runs after any mutation: winner check, then turn-start hooks when
// the turn changed hands.
func (e *Engine) settle(g *Game, turnBefore int) {
	now := e.now()
	if g.Status == StatusActive {
		if w := e.lifecycle.CheckWinConditions(g); w != nil {
			_, _ = e.lifecycle.EndGame(g, w.ID)
		}
	}
	if g.Status == StatusActive && g.CurrentTurn != nil && g.TurnNumber != turnBefore {
		for _, h := range e.hooks {
			h.OnTurnStart(g, g.CurrentTurn.PlayerID, now)
		}
	}
	g.UpdatedAt = now
}

// Tick advances timers and runs periodic handlers. Inactive games are not
// touched at all.
func (e *Engine) Tick(g *Game, delta time.Duration) (TickReport, []Event) {
	if g.Status != StatusActive {
		return TickReport{}, nil
	}

	mark, turn := len(g.Events), g.TurnNumber
	report := e.lifecycle.Tick(g, delta)
	if g.Status == StatusActive {
		now := e.now()
		for _, t := range e.tickers {
			t.Tick(g, now)
		}
	}
	if len(g.Events) != mark {
		e.settle(g, turn)
	}
	return report, g.EventsSince(mark)
}

// AvailableMoves lists the current player's options without changing
// anything.
func (e *Engine) AvailableMoves(g *Game, playerID string) []Move {
	if g.CurrentTurn == nil || g.CurrentTurn.PlayerID != playerID || g.CurrentTurn.Dice == nil {
		return []Move{}
	}
	return e.moves.CalculateAvailableMoves(g, playerID, *g.CurrentTurn.Dice)
}
