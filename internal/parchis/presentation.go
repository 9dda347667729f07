package parchis

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

// Snapshot is the broadcast view of a game. Nothing in this game is hidden,
// so every player gets the same snapshot; it shares no memory with the Game.
type Snapshot struct {
	ID          string       `json:"id"`
	Status      Status       `json:"status"`
	PauseReason string       `json:"pauseReason,omitempty"`
	Players     []PlayerView `json:"players"`
	CurrentTurn *TurnView    `json:"currentTurn,omitempty"`
	Territories []Territory  `json:"territories"`
	TradeOffers []TradeOffer `json:"tradeOffers"`
	TurnNumber  int          `json:"turnNumber"`
	Progress    int          `json:"progress"`
	EventCount  int          `json:"eventCount"`
	Result      *GameResult  `json:"result,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type PlayerView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Faction    board.Faction `json:"faction"`
	Resources  Resources     `json:"resources"`
	Pieces     []Piece       `json:"pieces"`
	Connected  bool          `json:"connected"`
	Level      int           `json:"level"`
	Experience int           `json:"experience"`
}

type TurnView struct {
	PlayerID        string `json:"playerId"`
	Phase           Phase  `json:"phase"`
	TimeRemainingMs int64  `json:"timeRemainingMs"`
	Dice            *int   `json:"dice,omitempty"`
	AvailableMoves  []Move `json:"availableMoves"`
}

func NewSnapshot(g *Game) *Snapshot {
	s := &Snapshot{
		ID:          g.ID,
		Status:      g.Status,
		PauseReason: g.PauseReason,
		Players:     make([]PlayerView, 0, len(g.Players)),
		Territories: make([]Territory, 0, len(g.Territories)),
		TradeOffers: make([]TradeOffer, 0, len(g.TradeOffers)),
		TurnNumber:  g.TurnNumber,
		Progress:    Progress(g),
		EventCount:  len(g.Events),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}

	for _, p := range g.Players {
		view := PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			Faction:    p.Faction,
			Resources:  p.Resources,
			Pieces:     make([]Piece, 0, len(p.Pieces)),
			Connected:  p.Connected,
			Level:      p.Level,
			Experience: p.Experience,
		}
		for _, pc := range p.Pieces {
			view.Pieces = append(view.Pieces, *pc)
		}
		s.Players = append(s.Players, view)
	}

	if t := g.CurrentTurn; t != nil {
		view := &TurnView{
			PlayerID:        t.PlayerID,
			Phase:           t.Phase,
			TimeRemainingMs: t.TimeRemaining.Milliseconds(),
			AvailableMoves:  append([]Move{}, t.AvailableMoves...),
		}
		if t.Dice != nil {
			d := *t.Dice
			view.Dice = &d
		}
		s.CurrentTurn = view
	}

	for _, t := range g.Territories {
		s.Territories = append(s.Territories, *t)
	}
	for _, o := range g.TradeOffers {
		s.TradeOffers = append(s.TradeOffers, *o)
	}

	if g.Result != nil {
		r := *g.Result
		r.Scores = append([]PlayerScore(nil), g.Result.Scores...)
		s.Result = &r
	}

	return s
}

// Summary is the short listing used for lobbies and statistics.
type Summary struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	Players     []string  `json:"players"`
	TurnNumber  int       `json:"turnNumber"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewSummary(g *Game) Summary {
	names := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		names = append(names, p.Name)
	}
	return Summary{
		ID:          g.ID,
		Status:      g.Status,
		PlayerCount: len(g.Players),
		MaxPlayers:  MaxPlayers,
		Players:     names,
		TurnNumber:  g.TurnNumber,
		Progress:    Progress(g),
		CreatedAt:   g.CreatedAt,
	}
}
