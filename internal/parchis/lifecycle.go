package parchis

import (
	"fmt"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

// Seat is a player about to be placed in a game.
type Seat struct {
	ID   string
	Name string
}

const (
	PauseNoConnectedPlayers = "no_connected_players"
	PauseNotEnoughConnected = "not_enough_connected_players"
	PauseManual             = "manual"
)

// Lifecycle moves a game through waiting, active, paused and finished.
type Lifecycle struct {
	board     *board.Board
	turns     *TurnSequencer
	moves     *MoveResolver
	now       Clock
	resources Resources
}

func NewLifecycle(b *board.Board, turns *TurnSequencer, moves *MoveResolver, now Clock, starting Resources) *Lifecycle {
	return &Lifecycle{board: b, turns: turns, moves: moves, now: now, resources: starting}
}

// InitializeGame builds a waiting game around the given seats.
func (lc *Lifecycle) InitializeGame(id string, seats []Seat) (*Game, error) {
	if len(seats) == 0 {
		return nil, Errorf(CodeInsufficientPlayers, "a game needs at least one player")
	}
	if len(seats) > MaxPlayers {
		return nil, Errorf(CodeGameFull, "a game holds at most %d players", MaxPlayers)
	}

	now := lc.now()
	g := &Game{
		ID:          id,
		Status:      StatusWaiting,
		Players:     make([]*Player, 0, MaxPlayers),
		Territories: []*Territory{},
		TradeOffers: []*TradeOffer{},
		Events:      []Event{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	g.Record(now, EventGameCreated, seats[0].ID, map[string]string{"hostName": seats[0].Name})

	for _, seat := range seats {
		if _, err := lc.AddPlayer(g, seat); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddPlayer seats a new player. Only waiting games accept joins.
func (lc *Lifecycle) AddPlayer(g *Game, seat Seat) (*Player, error) {
	if g.Status != StatusWaiting {
		return nil, Errorf(CodeGameAlreadyStarted, "game %s is %s", g.ID, g.Status)
	}
	if len(g.Players) >= MaxPlayers {
		return nil, Errorf(CodeGameFull, "game %s is full (%d/%d players)", g.ID, len(g.Players), MaxPlayers)
	}
	if g.Player(seat.ID) != nil {
		return nil, Errorf(CodePlayerAlreadyJoined, "player %s already in game", seat.ID)
	}

	now := lc.now()
	faction := board.FactionForSeat(len(g.Players))
	p := &Player{
		ID:        seat.ID,
		Name:      seat.Name,
		Faction:   faction,
		Resources: lc.resources,
		Pieces:    make([]*Piece, 0, PiecesPerPlayer),
		Connected: true,
		Level:     1,
		JoinedAt:  now,
	}
	for i, pos := range lc.board.HomePositions(faction) {
		p.Pieces = append(p.Pieces, &Piece{
			ID:       fmt.Sprintf("%s-piece-%d", seat.ID, i),
			PlayerID: seat.ID,
			Slot:     i,
			Status:   PieceHome,
			Position: pos,
			Level:    1,
		})
	}

	g.Players = append(g.Players, p)
	g.UpdatedAt = now
	g.Record(now, EventPlayerJoined, p.ID, map[string]any{"name": p.Name, "faction": faction})
	return p, nil
}

// StartGame activates a waiting game with at least two connected players.
func (lc *Lifecycle) StartGame(g *Game) error {
	if g.Status != StatusWaiting {
		return Errorf(CodeGameAlreadyStarted, "game %s is %s", g.ID, g.Status)
	}
	if len(g.Players) < MinPlayers {
		return Errorf(CodeInsufficientPlayers, "need at least %d players, have %d", MinPlayers, len(g.Players))
	}
	for _, p := range g.Players {
		if !p.Connected {
			return Errorf(CodePlayerDisconnected, "player %s is not connected", p.Name)
		}
	}

	now := lc.now()
	g.Status = StatusActive
	g.StartedAt = now
	g.UpdatedAt = now
	g.Record(now, EventGameStarted, "", map[string]int{"players": len(g.Players)})
	return lc.turns.InitializeFirstTurn(g)
}

func (lc *Lifecycle) PauseGame(g *Game, reason string) error {
	if g.Status != StatusActive {
		return Errorf(CodeInvalidGameState, "cannot pause a %s game", g.Status)
	}
	pause(g, lc.now(), reason)
	return nil
}

func pause(g *Game, at time.Time, reason string) {
	g.Status = StatusPaused
	g.PauseReason = reason
	g.UpdatedAt = at
	g.Record(at, EventGamePaused, "", StatusPayload{Reason: reason})
}

// ResumeGame reactivates a paused game. The turn record survives the pause;
// if its owner went away meanwhile the turn is forced on.
func (lc *Lifecycle) ResumeGame(g *Game) error {
	if g.Status != StatusPaused {
		return Errorf(CodeInvalidGameState, "cannot resume a %s game", g.Status)
	}
	if g.ConnectedCount() < MinPlayers {
		return Errorf(CodeInsufficientPlayers, "need %d connected players to resume", MinPlayers)
	}

	now := lc.now()
	g.Status = StatusActive
	g.PauseReason = ""
	g.UpdatedAt = now
	g.Record(now, EventGameResumed, "", nil)

	if g.CurrentTurn == nil {
		return lc.turns.InitializeFirstTurn(g)
	}
	if p := g.Player(g.CurrentTurn.PlayerID); p == nil || !p.Connected {
		return lc.turns.ForceTurnAdvance(g, ForceDisconnect)
	}
	return nil
}

// EndGame freezes the game and records final standings.
func (lc *Lifecycle) EndGame(g *Game, winnerID string) (*GameResult, error) {
	if g.Status == StatusFinished {
		return g.Result, Errorf(CodeInvalidGameState, "game %s already finished", g.ID)
	}

	now := lc.now()
	result := &GameResult{
		WinnerID:      winnerID,
		WinCondition:  WinAllPiecesFinished,
		Scores:        FinalScores(lc.board, g),
		TotalTurns:    g.TurnNumber,
		TotalMoves:    g.TotalMoves,
		TotalCaptures: g.Captures,
		EndedAt:       now,
	}
	if !g.StartedAt.IsZero() {
		result.Duration = now.Sub(g.StartedAt)
	}

	g.Status = StatusFinished
	g.Result = result
	g.CurrentTurn = nil
	g.UpdatedAt = now
	g.Record(now, EventGameEnded, winnerID, result)
	return result, nil
}

// HandlePlayerDisconnection marks the player offline, forces the turn on if
// it was theirs, and pauses an active game left with fewer than two players.
func (lc *Lifecycle) HandlePlayerDisconnection(g *Game, playerID string) error {
	p := g.Player(playerID)
	if p == nil {
		return Errorf(CodePlayerNotFound, "player %s not in game", playerID)
	}
	if !p.Connected {
		return nil
	}

	now := lc.now()
	p.Connected = false
	g.UpdatedAt = now
	g.Record(now, EventPlayerDisconnected, playerID, nil)

	if g.Status != StatusActive {
		return nil
	}

	if g.CurrentTurn != nil && g.CurrentTurn.PlayerID == playerID {
		if err := lc.turns.ForceTurnAdvance(g, ForceDisconnect); err != nil {
			return err
		}
	}

	if g.Status == StatusActive && g.ConnectedCount() < MinPlayers {
		pause(g, now, PauseNotEnoughConnected)
	}
	return nil
}

// HandlePlayerReconnection marks the player online and resumes a game that
// was paused for lack of players.
func (lc *Lifecycle) HandlePlayerReconnection(g *Game, playerID string) error {
	p := g.Player(playerID)
	if p == nil {
		return Errorf(CodePlayerNotFound, "player %s not in game", playerID)
	}
	if p.Connected {
		return nil
	}

	now := lc.now()
	p.Connected = true
	g.UpdatedAt = now
	g.Record(now, EventPlayerReconnected, playerID, nil)

	if g.Status == StatusPaused && g.PauseReason != PauseManual && g.ConnectedCount() >= MinPlayers {
		return lc.ResumeGame(g)
	}
	return nil
}

// CheckWinConditions returns the first player, in join order, with every
// piece finished.
func (lc *Lifecycle) CheckWinConditions(g *Game) *Player {
	for _, p := range g.Players {
		if lc.moves.HasPlayerWon(p) {
			return p
		}
	}
	return nil
}

type TickReport struct {
	Expired  bool      `json:"expired"`
	WinnerID string    `json:"winnerId,omitempty"`
	Findings []Finding `json:"findings,omitempty"`
}

// Tick advances the turn timer by delta. Games that are not active are left
// alone, so ticking a finished game any number of times changes nothing.
func (lc *Lifecycle) Tick(g *Game, delta time.Duration) TickReport {
	var report TickReport
	if g.Status != StatusActive {
		return report
	}

	if lc.turns.UpdateTimer(g, delta) {
		report.Expired = true
		if err := lc.turns.ForceTurnAdvance(g, ForceTimeout); err != nil {
			report.Findings = append(report.Findings, Finding{Code: CodeOf(err), Message: err.Error()})
		}
	}

	if g.Status == StatusActive {
		if w := lc.CheckWinConditions(g); w != nil {
			if _, err := lc.EndGame(g, w.ID); err == nil {
				report.WinnerID = w.ID
			}
		}
	}

	report.Findings = append(report.Findings, CheckIntegrity(lc.board, g)...)
	return report
}
