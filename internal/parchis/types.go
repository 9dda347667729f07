package parchis

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

const (
	MinPlayers      = 2
	MaxPlayers      = 4
	PiecesPerPlayer = 4
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

type Phase string

const (
	PhaseRoll   Phase = "roll"
	PhaseMove   Phase = "move"
	PhaseAction Phase = "action"
)

type PieceStatus string

const (
	PieceHome     PieceStatus = "home"
	PieceBoard    PieceStatus = "board"
	PieceFinished PieceStatus = "finished"
)

type Game struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	PauseReason string        `json:"pauseReason,omitempty"`
	Players     []*Player     `json:"players"`
	CurrentTurn *CurrentTurn  `json:"currentTurn,omitempty"`
	Territories []*Territory  `json:"territories"`
	TradeOffers []*TradeOffer `json:"tradeOffers"`
	Events      []Event       `json:"events"`
	TurnNumber  int           `json:"turnNumber"`
	TotalMoves  int           `json:"totalMoves"`
	Captures    int           `json:"captures"`
	Result      *GameResult   `json:"result,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	StartedAt   time.Time     `json:"startedAt"`
}

type Player struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Faction    board.Faction `json:"faction"`
	Resources  Resources     `json:"resources"`
	Pieces     []*Piece      `json:"pieces"`
	Connected  bool          `json:"connected"`
	Level      int           `json:"level"`
	Experience int           `json:"experience"`
	JoinedAt   time.Time     `json:"joinedAt"`
}

type Piece struct {
	ID         string         `json:"id"`
	PlayerID   string         `json:"playerId"`
	Slot       int            `json:"slot"`
	Status     PieceStatus    `json:"status"`
	Position   board.Position `json:"position"`
	Level      int            `json:"level"`
	Experience int            `json:"experience"`
	Equipment  Equipment      `json:"equipment"`
}

type Equipment struct {
	Weapon    bool `json:"weapon"`
	Armor     bool `json:"armor"`
	Accessory bool `json:"accessory"`
}

type CurrentTurn struct {
	PlayerID       string        `json:"playerId"`
	Phase          Phase         `json:"phase"`
	TimeRemaining  time.Duration `json:"timeRemaining"`
	Dice           *int          `json:"dice,omitempty"`
	AvailableMoves []Move        `json:"availableMoves"`
	StartedAt      time.Time     `json:"startedAt"`
}

type Territory struct {
	ID        string         `json:"id"`
	Position  board.Position `json:"position"`
	OwnerID   string         `json:"ownerId"`
	Level     int            `json:"level"`
	Yield     Resources      `json:"yield"`
	ClaimedAt time.Time      `json:"claimedAt"`
}

type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeRejected TradeStatus = "rejected"
	TradeExpired  TradeStatus = "expired"
)

type TradeOffer struct {
	ID         string      `json:"id"`
	FromID     string      `json:"fromPlayerId"`
	ToID       string      `json:"toPlayerId"`
	Offering   Resources   `json:"offering"`
	Requesting Resources   `json:"requesting"`
	Status     TradeStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	SettledAt  time.Time   `json:"settledAt"`
}

type GameResult struct {
	WinnerID      string        `json:"winnerId"`
	WinCondition  string        `json:"winCondition"`
	Scores        []PlayerScore `json:"scores"`
	Duration      time.Duration `json:"duration"`
	TotalTurns    int           `json:"totalTurns"`
	TotalMoves    int           `json:"totalMoves"`
	TotalCaptures int           `json:"totalCaptures"`
	EndedAt       time.Time     `json:"endedAt"`
}

const WinAllPiecesFinished = "all_pieces_finished"

func (g *Game) Player(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) PlayerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *Game) ConnectedCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// PieceAt returns the piece standing on pos, ignoring pieces at home.
func (g *Game) PieceAt(pos board.Position) (*Player, *Piece) {
	for _, p := range g.Players {
		for _, pc := range p.Pieces {
			if pc.Status != PieceHome && pc.Position.SameCell(pos) {
				return p, pc
			}
		}
	}
	return nil, nil
}

func (p *Player) Piece(id string) *Piece {
	for _, pc := range p.Pieces {
		if pc.ID == id {
			return pc
		}
	}
	return nil
}

func (p *Player) CountPieces(status PieceStatus) int {
	n := 0
	for _, pc := range p.Pieces {
		if pc.Status == status {
			n++
		}
	}
	return n
}

func (t *Territory) At(pos board.Position) bool {
	return t.Position.SameCell(pos)
}

func (g *Game) TerritoryAt(pos board.Position) *Territory {
	for _, t := range g.Territories {
		if t.At(pos) {
			return t
		}
	}
	return nil
}

func (g *Game) TradeOffer(id string) *TradeOffer {
	for _, o := range g.TradeOffers {
		if o.ID == id {
			return o
		}
	}
	return nil
}
