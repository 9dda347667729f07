package parchis

import (
	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

type MoveKind string

const (
	MoveExitHome    MoveKind = "exit_home"
	MoveNormal      MoveKind = "normal"
	MoveEnterSafe   MoveKind = "enter_safe"
	MoveEnterFinish MoveKind = "enter_finish"
)

const (
	CaptureExperience  = 10
	ExperiencePerLevel = 100
)

type PieceRef struct {
	PlayerID string `json:"playerId"`
	PieceID  string `json:"pieceId"`
}

type Move struct {
	PieceID  string         `json:"pieceId"`
	From     board.Position `json:"from"`
	To       board.Position `json:"to"`
	Kind     MoveKind       `json:"kind"`
	Captures *PieceRef      `json:"captures,omitempty"`
}

type MovePayload struct {
	Move
	Dice int `json:"dice"`
}

// MoveResolver enumerates and executes piece moves. It never touches turn
// state; the engine decides what happens after a move.
type MoveResolver struct {
	board *board.Board
	now   Clock
}

func NewMoveResolver(b *board.Board, now Clock) *MoveResolver {
	return &MoveResolver{board: b, now: now}
}

func (mr *MoveResolver) Board() *board.Board {
	return mr.board
}

// CalculateAvailableMoves lists every legal move for the player's pieces
// with the given dice value.
func (mr *MoveResolver) CalculateAvailableMoves(g *Game, playerID string, dice int) []Move {
	moves := []Move{}
	player := g.Player(playerID)
	if player == nil || dice < 1 {
		return moves
	}

	for _, pc := range player.Pieces {
		var target board.Position
		kind := MoveNormal

		switch pc.Status {
		case PieceHome:
			if dice != 5 && dice != 6 {
				continue
			}
			target = mr.board.StartPosition(player.Faction)
			kind = MoveExitHome
		case PieceBoard:
			next, ok := mr.board.NewPosition(pc.Position, dice, player.Faction)
			if !ok {
				continue
			}
			target = next
			switch target.Zone {
			case board.ZoneFinish:
				kind = MoveEnterFinish
			case board.ZoneSafe:
				kind = MoveEnterSafe
			}
		default:
			continue
		}

		move := Move{PieceID: pc.ID, From: pc.Position, To: target, Kind: kind}

		owner, occupant := g.PieceAt(target)
		if occupant != nil {
			if owner.ID == player.ID {
				continue
			}
			if target.Zone == board.ZoneSafe {
				continue
			}
			move.Captures = &PieceRef{PlayerID: owner.ID, PieceID: occupant.ID}
		}

		moves = append(moves, move)
	}

	return moves
}

// ExecuteMove re-checks the move against the current dice and applies it,
// capture included. Nothing is mutated when an error is returned.
func (mr *MoveResolver) ExecuteMove(g *Game, playerID, pieceID string, target board.Position) (Move, error) {
	player := g.Player(playerID)
	if player == nil {
		return Move{}, Errorf(CodePlayerNotFound, "player %s not in game", playerID)
	}
	piece := player.Piece(pieceID)
	if piece == nil {
		return Move{}, Errorf(CodePieceNotFound, "piece %s not found", pieceID)
	}
	if g.CurrentTurn == nil || g.CurrentTurn.Dice == nil {
		return Move{}, Errorf(CodeMissingDiceRoll, "no dice value for this turn")
	}
	dice := *g.CurrentTurn.Dice

	move, ok := findMove(mr.CalculateAvailableMoves(g, playerID, dice), pieceID, target)
	if !ok {
		return Move{}, Errorf(CodeInvalidMove, "piece %s cannot move to %s with a %d", pieceID, target, dice)
	}

	now := mr.now()

	if move.Captures != nil {
		victimOwner := g.Player(move.Captures.PlayerID)
		victim := victimOwner.Piece(move.Captures.PieceID)
		mr.sendHome(victimOwner, victim)

		piece.Experience += CaptureExperience
		piece.Level = 1 + piece.Experience/ExperiencePerLevel
		player.Experience += CaptureExperience
		player.Level = 1 + player.Experience/ExperiencePerLevel
		g.Captures++
	}

	piece.Position = move.To
	if move.To.Zone == board.ZoneFinish {
		piece.Status = PieceFinished
	} else {
		piece.Status = PieceBoard
	}
	g.TotalMoves++

	g.Record(now, EventPieceMoved, playerID, MovePayload{Move: move, Dice: dice})
	if move.Captures != nil {
		g.Record(now, EventPieceCaptured, playerID, CapturePayload{
			PieceID:    move.Captures.PieceID,
			OwnerID:    move.Captures.PlayerID,
			CapturedBy: pieceID,
		})
	}

	return move, nil
}

func (mr *MoveResolver) sendHome(owner *Player, pc *Piece) {
	pc.Status = PieceHome
	pc.Position = mr.board.HomePositions(owner.Faction)[pc.Slot]
}

func findMove(moves []Move, pieceID string, target board.Position) (Move, bool) {
	for _, m := range moves {
		if m.PieceID == pieceID && m.To.SameCell(target) {
			return m, true
		}
	}
	return Move{}, false
}

// HasPlayerWon is true once all four pieces are finished. Finished pieces
// never move again, so the result never flips back.
func (mr *MoveResolver) HasPlayerWon(p *Player) bool {
	return len(p.Pieces) == PiecesPerPlayer && p.CountPieces(PieceFinished) == PiecesPerPlayer
}

type MovementStats struct {
	Home             int `json:"home"`
	OnBoard          int `json:"onBoard"`
	Finished         int `json:"finished"`
	DistanceToFinish int `json:"distanceToFinish"`
}

func (mr *MoveResolver) MovementStats(g *Game, playerID string) MovementStats {
	var stats MovementStats
	player := g.Player(playerID)
	if player == nil {
		return stats
	}
	for _, pc := range player.Pieces {
		switch pc.Status {
		case PieceHome:
			stats.Home++
		case PieceBoard:
			stats.OnBoard++
		case PieceFinished:
			stats.Finished++
		}
		stats.DistanceToFinish += mr.board.DistanceToFinish(pc.Position, player.Faction)
	}
	return stats
}
