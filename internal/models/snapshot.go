package models

import (
	"time"
)

// RankedSeries is one entry in the popularity snapshot: a series, its
// accumulated score and up to three member articles kept as thumbnail
// fallbacks.
type RankedSeries struct {
	SeriesID         int64   `json:"series_id"`
	Score            float64 `json:"score"`
	SampleArticleIDs []int64 `json:"sample_article_ids"`
}

// PopularitySnapshot is the ranked series cache produced wholesale by an
// aggregation pass. It holds scores and ids only, never per-viewer state.
type PopularitySnapshot struct {
	ComputedAt   time.Time      `json:"computed_at"`
	LookbackDays int            `json:"lookback_days"`
	ItemsScored  int            `json:"items_scored"`
	Items        []RankedSeries `json:"items"`
}

// Empty reports whether the snapshot has no usable ranking.
func (s *PopularitySnapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}
