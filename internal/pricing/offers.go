package pricing

import (
	"math"
	"sort"
	"strings"

	"suptia-engine/internal/catalog"
)

// Source names where an effective price came from.
type Source string

const (
	SourceList    Source = "list"
	SourceOffer   Source = "offer"
	SourceUnknown Source = "unknown"
)

// Quote is the price used for cost calculations.
type Quote struct {
	PriceJPY    float64 `json:"price_jpy"`
	Source      Source  `json:"source"`
	OfferSource string  `json:"offer_source,omitempty"`
}

// Known reports whether a usable price was found.
func (q Quote) Known() bool {
	return q.Source != SourceUnknown && q.PriceJPY > 0
}

// EffectivePrice returns the list price when set, otherwise the cheapest
// in-stock offer, otherwise the cheapest offer of any stock state.
func EffectivePrice(p catalog.Product) Quote {
	if validPrice(p.PriceJPY) {
		return Quote{PriceJPY: p.PriceJPY, Source: SourceList}
	}
	if offer, ok := BestOffer(p.PriceData); ok {
		return Quote{PriceJPY: offer.PriceJPY, Source: SourceOffer, OfferSource: offer.Source}
	}
	return Quote{Source: SourceUnknown}
}

// BestOffer picks the cheapest usable offer, preferring in-stock listings.
// Ties break on source name so the result does not depend on input order.
func BestOffer(offers []catalog.PriceOffer) (catalog.PriceOffer, bool) {
	candidates := make([]catalog.PriceOffer, 0, len(offers))
	for _, offer := range offers {
		if validPrice(offer.PriceJPY) {
			candidates = append(candidates, offer)
		}
	}
	if len(candidates) == 0 {
		return catalog.PriceOffer{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.InStock != b.InStock {
			return a.InStock
		}
		if a.PriceJPY != b.PriceJPY {
			return a.PriceJPY < b.PriceJPY
		}
		return strings.ToLower(a.Source) < strings.ToLower(b.Source)
	})
	return candidates[0], true
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
