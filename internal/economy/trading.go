package economy

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/google/uuid"
)

const (
	DefaultOfferTTL       = 5 * time.Minute
	DefaultOfferRetention = 24 * time.Hour
)

type TradePayload struct {
	OfferID    string            `json:"offerId"`
	FromID     string            `json:"fromPlayerId"`
	ToID       string            `json:"toPlayerId"`
	Offering   parchis.Resources `json:"offering"`
	Requesting parchis.Resources `json:"requesting"`
}

func tradePayload(o *parchis.TradeOffer) TradePayload {
	return TradePayload{
		OfferID:    o.ID,
		FromID:     o.FromID,
		ToID:       o.ToID,
		Offering:   o.Offering,
		Requesting: o.Requesting,
	}
}

// Trading runs resource swaps between players. An offer is made during the
// sender's action phase and answered during the recipient's. Pending offers
// lapse after ttl; settled ones are forgotten after retention.
type Trading struct {
	ttl       time.Duration
	retention time.Duration
}

func NewTrading(ttl, retention time.Duration) *Trading {
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	if retention <= 0 {
		retention = DefaultOfferRetention
	}
	return &Trading{ttl: ttl, retention: retention}
}

func (tr *Trading) Handles() []parchis.ActionType {
	return []parchis.ActionType{
		parchis.ActionOfferTrade,
		parchis.ActionAcceptTrade,
		parchis.ActionRejectTrade,
	}
}

func (tr *Trading) Validate(g *parchis.Game, playerID string, a parchis.Action) error {
	switch act := a.(type) {
	case parchis.OfferTrade:
		return tr.checkOffer(g, playerID, act)
	case parchis.AcceptTrade:
		_, err := tr.checkAnswer(g, playerID, act.OfferID, true)
		return err
	case parchis.RejectTrade:
		_, err := tr.checkAnswer(g, playerID, act.OfferID, false)
		return err
	}
	return parchis.Errorf(parchis.CodeUnknownActionType, "trading cannot process %s", a.Type())
}

func (tr *Trading) checkOffer(g *parchis.Game, playerID string, a parchis.OfferTrade) error {
	if a.To == playerID {
		return parchis.Errorf(parchis.CodeSelfTrade, "cannot trade with yourself")
	}
	if a.Offering.HasNegative() || a.Requesting.HasNegative() {
		return parchis.Errorf(parchis.CodeInvalidTrade, "amounts cannot be negative")
	}
	if a.Offering.IsZero() && a.Requesting.IsZero() {
		return parchis.Errorf(parchis.CodeInvalidTrade, "offer is empty")
	}

	target := g.Player(a.To)
	if target == nil {
		return parchis.Errorf(parchis.CodeTargetPlayerNotFound, "player %s not in game", a.To)
	}
	if !target.Connected {
		return parchis.Errorf(parchis.CodeTargetPlayerDisconnected, "player %s is not connected", target.Name)
	}

	from := g.Player(playerID)
	if from == nil {
		return parchis.Errorf(parchis.CodePlayerNotFound, "player %s not in game", playerID)
	}
	if !from.Resources.Covers(a.Offering) {
		return parchis.Errorf(parchis.CodeInsufficientResources, "you cannot cover %+v", a.Offering)
	}
	return nil
}

func (tr *Trading) checkAnswer(g *parchis.Game, playerID, offerID string, accepting bool) (*parchis.TradeOffer, error) {
	offer := g.TradeOffer(offerID)
	if offer == nil {
		return nil, parchis.Errorf(parchis.CodeOfferNotFound, "offer %s not found", offerID)
	}
	if offer.Status != parchis.TradePending {
		return nil, parchis.Errorf(parchis.CodeOfferNotPending, "offer is %s", offer.Status)
	}
	if offer.ToID != playerID {
		return nil, parchis.Errorf(parchis.CodeNotOfferRecipient, "offer %s is not addressed to you", offerID)
	}
	if !accepting {
		return offer, nil
	}

	from, to := g.Player(offer.FromID), g.Player(offer.ToID)
	if from == nil || to == nil {
		return nil, parchis.Errorf(parchis.CodeTargetPlayerNotFound, "a party to offer %s left the game", offerID)
	}
	if !from.Resources.Covers(offer.Offering) {
		return nil, parchis.Errorf(parchis.CodeInsufficientResources, "%s can no longer cover the offer", from.Name)
	}
	if !to.Resources.Covers(offer.Requesting) {
		return nil, parchis.Errorf(parchis.CodeInsufficientResources, "you cannot cover %+v", offer.Requesting)
	}
	return offer, nil
}

func (tr *Trading) Apply(g *parchis.Game, playerID string, a parchis.Action, now time.Time) error {
	switch act := a.(type) {
	case parchis.OfferTrade:
		if err := tr.checkOffer(g, playerID, act); err != nil {
			return err
		}
		offer := &parchis.TradeOffer{
			ID:         uuid.NewString(),
			FromID:     playerID,
			ToID:       act.To,
			Offering:   act.Offering,
			Requesting: act.Requesting,
			Status:     parchis.TradePending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(tr.ttl),
		}
		g.TradeOffers = append(g.TradeOffers, offer)
		g.Record(now, parchis.EventTradeOffered, playerID, tradePayload(offer))
		return nil

	case parchis.AcceptTrade:
		offer, err := tr.answerable(g, playerID, act.OfferID, true, now)
		if err != nil {
			return err
		}
		from, to := g.Player(offer.FromID), g.Player(offer.ToID)
		from.Resources = from.Resources.Sub(offer.Offering).Add(offer.Requesting).Clamp(parchis.ResourceLimits)
		to.Resources = to.Resources.Sub(offer.Requesting).Add(offer.Offering).Clamp(parchis.ResourceLimits)
		settle(offer, parchis.TradeAccepted, now)
		g.Record(now, parchis.EventTradeAccepted, playerID, tradePayload(offer))
		return nil

	case parchis.RejectTrade:
		offer, err := tr.answerable(g, playerID, act.OfferID, false, now)
		if err != nil {
			return err
		}
		settle(offer, parchis.TradeRejected, now)
		g.Record(now, parchis.EventTradeRejected, playerID, tradePayload(offer))
		return nil
	}
	return parchis.Errorf(parchis.CodeUnknownActionType, "trading cannot process %s", a.Type())
}

// answerable is checkAnswer plus the clock. A lapsed offer is left for the
// next tick to expire.
func (tr *Trading) answerable(g *parchis.Game, playerID, offerID string, accepting bool, now time.Time) (*parchis.TradeOffer, error) {
	offer, err := tr.checkAnswer(g, playerID, offerID, accepting)
	if err != nil {
		return nil, err
	}
	if now.After(offer.ExpiresAt) {
		return nil, parchis.Errorf(parchis.CodeOfferNotPending, "offer %s has expired", offerID)
	}
	return offer, nil
}

func settle(o *parchis.TradeOffer, status parchis.TradeStatus, now time.Time) {
	o.Status = status
	o.SettledAt = now
}

// Tick expires lapsed offers and drops settled ones past retention.
func (tr *Trading) Tick(g *parchis.Game, now time.Time) {
	kept := g.TradeOffers[:0]
	for _, o := range g.TradeOffers {
		if o.Status == parchis.TradePending && now.After(o.ExpiresAt) {
			settle(o, parchis.TradeExpired, now)
			g.Record(now, parchis.EventTradeExpired, o.FromID, tradePayload(o))
		}
		if o.Status != parchis.TradePending && now.Sub(o.SettledAt) > tr.retention {
			continue
		}
		kept = append(kept, o)
	}
	g.TradeOffers = kept
}

// Pending lists the open offers addressed to a player.
func Pending(g *parchis.Game, playerID string) []*parchis.TradeOffer {
	var out []*parchis.TradeOffer
	for _, o := range g.TradeOffers {
		if o.ToID == playerID && o.Status == parchis.TradePending {
			out = append(out, o)
		}
	}
	return out
}
