package store

import (
	"errors"
	"fmt"
)

// CategoryCount is the number of products in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
}

// Categories aggregates product counts per category, largest first.
func (d *Database) Categories(limit int) ([]CategoryCount, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	query := d.gorm.Table("products").
		Select("LOWER(category) AS category, COUNT(*) AS total").
		Where("category <> ''").
		Group("LOWER(category)").
		Order("total DESC, category ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var results []CategoryCount
	if err := query.Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	return results, nil
}

// RankDistribution counts stored tier snapshots per overall rank.
func (d *Database) RankDistribution() (map[string]int, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var rows []struct {
		OverallRank string
		Total       int
	}
	err := d.gorm.Table("tier_snapshots").
		Select("overall_rank, COUNT(*) AS total").
		Group("overall_rank").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank distribution: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.OverallRank] = r.Total
	}
	return out, nil
}
