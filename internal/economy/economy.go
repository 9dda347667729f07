// Package economy holds the secondary actions played in the action phase:
// territory claims with their per-turn yield, and resource trades.
package economy

import (
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
)

type Options struct {
	Territory      TerritoryRules
	OfferTTL       time.Duration
	OfferRetention time.Duration
}

var DefaultOptions = Options{
	Territory:      DefaultTerritoryRules,
	OfferTTL:       DefaultOfferTTL,
	OfferRetention: DefaultOfferRetention,
}

// Handlers returns every economy handler, ready for parchis.Config.
func Handlers(b *board.Board, opts Options) []parchis.SecondaryHandler {
	return []parchis.SecondaryHandler{
		NewTerritories(b, opts.Territory),
		NewTrading(opts.OfferTTL, opts.OfferRetention),
	}
}
