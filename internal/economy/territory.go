package economy

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/google/uuid"
)

type TerritoryRules struct {
	ClaimCost   parchis.Resources
	UpgradeCost parchis.Resources
	// BaseYield is paid per level at the start of each of the owner's turns.
	BaseYield parchis.Resources
	MaxLevel  int
}

var DefaultTerritoryRules = TerritoryRules{
	ClaimCost:   parchis.Resources{Stone: 5, Wood: 5},
	UpgradeCost: parchis.Resources{Ore: 2},
	BaseYield:   parchis.Resources{Stone: 1, Wood: 1, Fiber: 1},
	MaxLevel:    3,
}

type CollectedPayload struct {
	Source string            `json:"source"`
	Amount parchis.Resources `json:"amount"`
}

type TerritoryPayload struct {
	TerritoryID string            `json:"territoryId"`
	Position    board.Position    `json:"position"`
	Level       int               `json:"level"`
	Cost        parchis.Resources `json:"cost"`
}

// Territories lets players claim the normal track cell one of their pieces
// stands on, and upgrade cells they already own.
type Territories struct {
	board *board.Board
	rules TerritoryRules
}

func NewTerritories(b *board.Board, rules TerritoryRules) *Territories {
	return &Territories{board: b, rules: rules}
}

func (t *Territories) Handles() []parchis.ActionType {
	return []parchis.ActionType{parchis.ActionClaimTerritory}
}

func (t *Territories) Validate(g *parchis.Game, playerID string, a parchis.Action) error {
	claim, ok := a.(parchis.ClaimTerritory)
	if !ok {
		return parchis.Errorf(parchis.CodeUnknownActionType, "territory handler cannot process %s", a.Type())
	}
	_, _, err := t.check(g, playerID, claim.Position)
	return err
}

// check returns the territory being upgraded (nil for a fresh claim) and
// what the claim will cost.
func (t *Territories) check(g *parchis.Game, playerID string, pos board.Position) (*parchis.Territory, parchis.Resources, error) {
	if !t.board.InBounds(pos) || t.board.ZoneOf(pos) != board.ZoneNormal {
		return nil, parchis.Resources{}, parchis.Errorf(parchis.CodeTerritoryNotClaimable, "cell %s cannot be claimed", pos)
	}

	p := g.Player(playerID)
	if p == nil {
		return nil, parchis.Resources{}, parchis.Errorf(parchis.CodePlayerNotFound, "player %s not in game", playerID)
	}
	owner, _ := g.PieceAt(pos)
	if owner == nil || owner.ID != playerID {
		return nil, parchis.Resources{}, parchis.Errorf(parchis.CodeNoPieceInTerritory, "no piece of yours on %s", pos)
	}

	existing := g.TerritoryAt(pos)
	cost := t.rules.ClaimCost
	if existing != nil {
		if existing.OwnerID != playerID {
			return nil, parchis.Resources{}, parchis.Errorf(parchis.CodeTerritoryAlreadyClaimed, "%s belongs to another player", pos)
		}
		if existing.Level >= t.rules.MaxLevel {
			return nil, parchis.Resources{}, parchis.Errorf(parchis.CodeTerritoryMaxLevel, "territory is already level %d", existing.Level)
		}
		cost = t.rules.UpgradeCost
	}

	if !p.Resources.Covers(cost) {
		return nil, parchis.Resources{}, parchis.Errorf(parchis.CodeInsufficientResources, "claim costs %+v", cost)
	}
	return existing, cost, nil
}

func (t *Territories) Apply(g *parchis.Game, playerID string, a parchis.Action, now time.Time) error {
	claim, ok := a.(parchis.ClaimTerritory)
	if !ok {
		return parchis.Errorf(parchis.CodeUnknownActionType, "territory handler cannot process %s", a.Type())
	}
	existing, cost, err := t.check(g, playerID, claim.Position)
	if err != nil {
		return err
	}

	p := g.Player(playerID)
	p.Resources = p.Resources.Sub(cost)

	if existing != nil {
		existing.Level++
		existing.Yield = t.rules.BaseYield.Scale(existing.Level)
		g.Record(now, parchis.EventTerritoryUpgraded, playerID, TerritoryPayload{
			TerritoryID: existing.ID,
			Position:    existing.Position,
			Level:       existing.Level,
			Cost:        cost,
		})
		return nil
	}

	territory := &parchis.Territory{
		ID:        uuid.NewString(),
		Position:  t.board.PositionAt(t.board.IndexOf(claim.Position)),
		OwnerID:   playerID,
		Level:     1,
		Yield:     t.rules.BaseYield,
		ClaimedAt: now,
	}
	g.Territories = append(g.Territories, territory)
	g.Record(now, parchis.EventTerritoryClaimed, playerID, TerritoryPayload{
		TerritoryID: territory.ID,
		Position:    territory.Position,
		Level:       territory.Level,
		Cost:        cost,
	})
	return nil
}

// OnTurnStart pays out every territory the player owns.
func (t *Territories) OnTurnStart(g *parchis.Game, playerID string, now time.Time) {
	p := g.Player(playerID)
	if p == nil {
		return
	}

	var total parchis.Resources
	for _, tr := range g.Territories {
		if tr.OwnerID == playerID {
			total = total.Add(tr.Yield)
		}
	}
	if total.IsZero() {
		return
	}

	p.Resources = p.Resources.Add(total).Clamp(parchis.ResourceLimits)
	g.Record(now, parchis.EventResourcesCollected, playerID, CollectedPayload{Source: "territory", Amount: total})
}

// Owned lists the territories held by a player.
func Owned(g *parchis.Game, playerID string) []*parchis.Territory {
	var out []*parchis.Territory
	for _, tr := range g.Territories {
		if tr.OwnerID == playerID {
			out = append(out, tr)
		}
	}
	return out
}
