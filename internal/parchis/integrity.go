package parchis

import (
	"fmt"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
)

// Finding is a consistency problem spotted by CheckIntegrity. Findings are
// reported for logging only.
type Finding struct {
	Code     Code   `json:"code"`
	PlayerID string `json:"playerId,omitempty"`
	Message  string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// CheckIntegrity looks for states no sequence of valid actions should
// produce.
func CheckIntegrity(b *board.Board, g *Game) []Finding {
	var findings []Finding

	occupied := make(map[int]string)
	for _, p := range g.Players {
		if len(p.Pieces) != PiecesPerPlayer {
			findings = append(findings, Finding{
				Code:     CodeInvalidPieceCount,
				PlayerID: p.ID,
				Message:  fmt.Sprintf("player %s has %d pieces", p.ID, len(p.Pieces)),
			})
		}

		own := make(map[int]bool)
		for _, pc := range p.Pieces {
			if f, ok := statusZoneMismatch(b, p, pc); !ok {
				findings = append(findings, f)
			}
			if pc.Status == PieceHome {
				continue
			}

			idx := b.IndexOf(pc.Position)
			if own[idx] {
				findings = append(findings, Finding{
					Code:     CodeDuplicatePiecePositions,
					PlayerID: p.ID,
					Message:  fmt.Sprintf("player %s has two pieces on %s", p.ID, pc.Position),
				})
			}
			own[idx] = true

			if b.ZoneOf(pc.Position) == board.ZoneSafe {
				continue
			}
			if other, taken := occupied[idx]; taken && other != p.ID {
				findings = append(findings, Finding{
					Code:     CodeMultiplePiecesSamePosition,
					PlayerID: p.ID,
					Message:  fmt.Sprintf("players %s and %s share %s", other, p.ID, pc.Position),
				})
			}
			occupied[idx] = p.ID
		}
	}

	if g.Status == StatusActive && g.CurrentTurn != nil {
		current := g.Player(g.CurrentTurn.PlayerID)
		switch {
		case current == nil:
			findings = append(findings, Finding{
				Code:     CodeInvalidCurrentPlayer,
				PlayerID: g.CurrentTurn.PlayerID,
				Message:  fmt.Sprintf("current turn belongs to unknown player %s", g.CurrentTurn.PlayerID),
			})
		case !current.Connected:
			findings = append(findings, Finding{
				Code:     CodeCurrentPlayerDisconnected,
				PlayerID: current.ID,
				Message:  fmt.Sprintf("current player %s is disconnected", current.ID),
			})
		}
	}

	return findings
}

func statusZoneMismatch(b *board.Board, p *Player, pc *Piece) (Finding, bool) {
	zone := b.ZoneOf(pc.Position)
	var ok bool
	switch pc.Status {
	case PieceHome:
		ok = zone == board.ZoneHome
	case PieceFinished:
		ok = b.IsFinishFor(pc.Position, p.Faction)
	case PieceBoard:
		ok = b.OnTrack(pc.Position)
	}
	if ok {
		return Finding{}, true
	}
	return Finding{
		Code:     CodeStatusZoneMismatch,
		PlayerID: p.ID,
		Message:  fmt.Sprintf("piece %s is %s but sits on a %s cell", pc.ID, pc.Status, zone),
	}, false
}
