package pricing

import (
	"testing"

	"suptia-engine/internal/catalog"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name         string
		product      catalog.Product
		expectPrice  float64
		expectSource Source
	}{
		{
			name:         "list price wins",
			product:      catalog.Product{PriceJPY: 3000, PriceData: []catalog.PriceOffer{{Source: "rakuten", PriceJPY: 2500, InStock: true}}},
			expectPrice:  3000,
			expectSource: SourceList,
		},
		{
			name: "cheapest in-stock offer",
			product: catalog.Product{PriceData: []catalog.PriceOffer{
				{Source: "amazon", PriceJPY: 1800, InStock: false},
				{Source: "yahoo", PriceJPY: 2400, InStock: true},
				{Source: "rakuten", PriceJPY: 2200, InStock: true},
			}},
			expectPrice:  2200,
			expectSource: SourceOffer,
		},
		{
			name:         "out of stock offer used as last resort",
			product:      catalog.Product{PriceData: []catalog.PriceOffer{{Source: "amazon", PriceJPY: 1800}}},
			expectPrice:  1800,
			expectSource: SourceOffer,
		},
		{
			name:         "unknown",
			product:      catalog.Product{PriceData: []catalog.PriceOffer{{Source: "amazon", PriceJPY: 0}}},
			expectPrice:  0,
			expectSource: SourceUnknown,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quote := EffectivePrice(tc.product)
			if quote.PriceJPY != tc.expectPrice || quote.Source != tc.expectSource {
				t.Fatalf("expected %.0f/%s got %.0f/%s", tc.expectPrice, tc.expectSource, quote.PriceJPY, quote.Source)
			}
		})
	}
}

func TestBestOfferIsOrderIndependent(t *testing.T) {
	a := []catalog.PriceOffer{{Source: "b", PriceJPY: 1000, InStock: true}, {Source: "a", PriceJPY: 1000, InStock: true}}
	b := []catalog.PriceOffer{a[1], a[0]}
	first, _ := BestOffer(a)
	second, _ := BestOffer(b)
	if first.Source != "a" || second.Source != "a" {
		t.Fatalf("expected tie to resolve to source a, got %s and %s", first.Source, second.Source)
	}
}
