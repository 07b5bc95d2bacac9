package popularity

import (
	"math"
	"time"

	"github.com/serieshub/channels/pkg/config"
)

// Inputs holds the raw signals for scoring one article. Views and
// favorites are all-time totals; comments are counted within the
// lookback window only.
type Inputs struct {
	TotalViews     int64
	RecentComments int64
	Subscribers    int64
	Favorites      int64
	AgeDays        float64
}

// DefaultWeights returns the stock signal weights.
func DefaultWeights() config.Weights {
	return config.Weights{
		Views:         1.0,
		Comments:      1.0,
		Subscriptions: 1.0,
		Favorites:     1.5,
		Recency:       0.5,
	}
}

// AgeDays returns the whole days elapsed since publication, floored at 0.
func AgeDays(publishedAt, now time.Time) float64 {
	elapsed := now.Sub(publishedAt)
	if elapsed < 0 {
		return 0
	}
	return math.Floor(elapsed.Hours() / 24)
}

// RecencyFactor decays linearly from 1 at publication to 0 at the
// lookback horizon, clamped at 0 for older items.
func RecencyFactor(ageDays float64, lookbackDays int) float64 {
	horizon := float64(lookbackDays)
	if horizon < 1 {
		horizon = 1
	}
	factor := 1 - ageDays/horizon
	if factor < 0 {
		return 0
	}
	return factor
}

// Score computes the weighted popularity score for one article, rounded
// to 4 decimal places so stored scores are stable across recomputation.
func Score(in Inputs, w config.Weights, lookbackDays int) float64 {
	score := w.Views*float64(in.TotalViews) +
		w.Comments*float64(in.RecentComments) +
		w.Subscriptions*float64(in.Subscribers) +
		w.Favorites*float64(in.Favorites) +
		w.Recency*RecencyFactor(in.AgeDays, lookbackDays)
	return round4(score)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
