package tier

import (
	"sort"

	"suptia-engine/internal/catalog"
)

// AbsoluteRank buckets a 0-100 score: >=90 S, >=80 A, >=70 B, >=60 C, else D.
func AbsoluteRank(score float64) catalog.TierRank {
	switch {
	case score >= 90:
		return catalog.RankS
	case score >= 80:
		return catalog.RankA
	case score >= 70:
		return catalog.RankB
	case score >= 60:
		return catalog.RankC
	default:
		return catalog.RankD
	}
}

// Percentile returns the share of peers that value beats, in [0,1], where
// 1 is best. The distribution normally contains value itself; that one
// entry is not a peer. Tied peers count half. With no peers the result is 1.
func Percentile(value float64, distribution []float64, lowerIsBetter bool) float64 {
	var worse, equal int
	for _, v := range distribution {
		switch {
		case v == value:
			equal++
		case lowerIsBetter && v > value, !lowerIsBetter && v < value:
			worse++
		}
	}
	self := 0
	if equal > 0 {
		self = 1
	}
	peers := len(distribution) - self
	if peers == 0 {
		return 1
	}
	return (float64(worse) + 0.5*float64(equal-self)) / float64(peers)
}

// RelativeRank buckets the percentile of value within distribution:
// >=0.9 S, >=0.7 A, >=0.5 B, >=0.3 C, else D.
func RelativeRank(value float64, distribution []float64, lowerIsBetter bool) catalog.TierRank {
	p := Percentile(value, distribution, lowerIsBetter)
	switch {
	case p >= 0.9:
		return catalog.RankS
	case p >= 0.7:
		return catalog.RankA
	case p >= 0.5:
		return catalog.RankB
	case p >= 0.3:
		return catalog.RankC
	default:
		return catalog.RankD
	}
}

// OverallRank is S+ only when every dimension is S. Otherwise it buckets
// the mean dimension ordinal (S=4 .. D=0).
func OverallRank(r catalog.TierRatings) catalog.TierRank {
	if r.AllS() {
		return catalog.RankSPlus
	}
	dims := r.Dimensions()
	total := 0
	for _, d := range dims {
		if o := d.Ordinal(); o > 0 {
			total += o
		}
	}
	mean := float64(total) / float64(len(dims))
	switch {
	case mean >= 3.5:
		return catalog.RankS
	case mean >= 2.5:
		return catalog.RankA
	case mean >= 1.5:
		return catalog.RankB
	case mean >= 0.5:
		return catalog.RankC
	default:
		return catalog.RankD
	}
}

// CohortStats holds the sorted per-dimension distributions of one
// comparison set. Missing values are left out of a distribution.
type CohortStats struct {
	Size       int       `json:"size"`
	Prices     []float64 `json:"prices"`
	CostsPerMg []float64 `json:"costs_per_mg"`
	DailyDoses []float64 `json:"daily_doses_mg"`
}

// NewCohortStats computes the distributions once for a comparison set.
func NewCohortStats(products []catalog.Product) *CohortStats {
	stats := &CohortStats{Size: len(products)}
	for _, p := range products {
		v := measure(p)
		if v.price > 0 {
			stats.Prices = append(stats.Prices, v.price)
		}
		if v.costPerMg > 0 {
			stats.CostsPerMg = append(stats.CostsPerMg, v.costPerMg)
		}
		if v.dailyDose > 0 {
			stats.DailyDoses = append(stats.DailyDoses, v.dailyDose)
		}
	}
	sort.Float64s(stats.Prices)
	sort.Float64s(stats.CostsPerMg)
	sort.Float64s(stats.DailyDoses)
	return stats
}

// hasPeers reports whether a distribution has a member other than the
// product being rated.
func hasPeers(value float64, distribution []float64) bool {
	return value > 0 && len(distribution) > 1
}
