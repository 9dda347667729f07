package parchis

import (
	"sort"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

type PlayerScore struct {
	PlayerID string        `json:"playerId"`
	Name     string        `json:"name"`
	Faction  board.Faction `json:"faction"`
	Finished int           `json:"finished"`
	OnBoard  int           `json:"onBoard"`
	Score    int           `json:"score"`
	Rank     int           `json:"rank"`
}

// Score weights finished pieces above anything on the board: a finished
// piece is worth 100, the rest of the position can add at most 99.
func Score(b *board.Board, p *Player) PlayerScore {
	s := PlayerScore{PlayerID: p.ID, Name: p.Name, Faction: p.Faction}
	progress := 0
	for _, pc := range p.Pieces {
		switch pc.Status {
		case PieceFinished:
			s.Finished++
		case PieceBoard:
			s.OnBoard++
			if pr := b.Progress(pc.Position, p.Faction); pr > 0 {
				progress += pr
			}
		}
	}
	s.Score = s.Finished*100 + s.OnBoard*10 + progress/PiecesPerPlayer
	return s
}

// FinalScores ranks every player, best first. Equal scores share a rank
// and keep join order.
func FinalScores(b *board.Board, g *Game) []PlayerScore {
	scores := make([]PlayerScore, 0, len(g.Players))
	for _, p := range g.Players {
		scores = append(scores, Score(b, p))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	for i := range scores {
		if i > 0 && scores[i].Score == scores[i-1].Score {
			scores[i].Rank = scores[i-1].Rank
		} else {
			scores[i].Rank = i + 1
		}
	}
	return scores
}

// Progress is the share of all pieces in the game that have finished, in
// percent.
func Progress(g *Game) int {
	total, finished := 0, 0
	for _, p := range g.Players {
		total += len(p.Pieces)
		finished += p.CountPieces(PieceFinished)
	}
	if total == 0 {
		return 0
	}
	return finished * 100 / total
}
