package popularity

import (
	"testing"
	"time"
)

func TestScoreZeroSignalsAtHorizon(t *testing.T) {
	in := Inputs{AgeDays: 120}
	score := Score(in, DefaultWeights(), 120)
	if score != 0 {
		t.Errorf("Expected score 0 at the lookback horizon with no signals, got %f", score)
	}
}

func TestRecencyFactor(t *testing.T) {
	tests := []struct {
		name     string
		ageDays  float64
		lookback int
		expected float64
	}{
		{"fresh", 0, 120, 1.0},
		{"half way", 60, 120, 0.5},
		{"at horizon", 120, 120, 0.0},
		{"beyond horizon clamps", 240, 120, 0.0},
		{"zero lookback floors to one day", 0, 0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyFactor(tt.ageDays, tt.lookback)
			if got != tt.expected {
				t.Errorf("RecencyFactor(%v, %d) = %v, want %v", tt.ageDays, tt.lookback, got, tt.expected)
			}
		})
	}
}

func TestRecencyFactorMonotonic(t *testing.T) {
	prev := RecencyFactor(0, 120)
	for age := float64(1); age <= 240; age++ {
		cur := RecencyFactor(age, 120)
		if cur > prev {
			t.Fatalf("RecencyFactor increased from %v to %v at age %v", prev, cur, age)
		}
		prev = cur
	}
}

func TestScoreWeightedSum(t *testing.T) {
	// 1.0*100 views + 1.5*5 favorites + 0.5*1.0 recency
	in := Inputs{
		TotalViews: 100,
		Favorites:  5,
		AgeDays:    0,
	}
	score := Score(in, DefaultWeights(), 120)
	if score != 108.0 {
		t.Errorf("Expected score 108.0, got %f", score)
	}
}

func TestScoreRounding(t *testing.T) {
	in := Inputs{AgeDays: 1}
	// recency alone: 0.5 * (1 - 1/3) = 0.33333... rounds to 0.3333
	score := Score(in, DefaultWeights(), 3)
	if score != 0.3333 {
		t.Errorf("Expected score rounded to 0.3333, got %f", score)
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		published time.Time
		expected  float64
	}{
		{"same instant", now, 0},
		{"under a day", now.Add(-23 * time.Hour), 0},
		{"exactly two days", now.AddDate(0, 0, -2), 2},
		{"future publish floors to zero", now.Add(time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgeDays(tt.published, now); got != tt.expected {
				t.Errorf("AgeDays() = %v, want %v", got, tt.expected)
			}
		})
	}
}
