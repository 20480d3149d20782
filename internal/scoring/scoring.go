// Package scoring ranks trader statistics against the smart-money heuristic:
// qualification filter, cross-sectional normalization, weighted composite
// score with small-sample correction, and informational tags.
package scoring

import (
	"math"
	"sort"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Thresholds are the minimum-activity qualification gates and the
// sample-correction base.
type Thresholds struct {
	MinTradesCount       int
	MinMarketsCount      int
	MinVolumeUSDC        float64
	SampleCorrectionBase int
}

// Weights are the composite score weights. They should sum to 1.
type Weights struct {
	ROI     float64
	WinRate float64
	Volume  float64
}

// DefaultThresholds mirror the production leaderboard gates.
var DefaultThresholds = Thresholds{
	MinTradesCount:       20,
	MinMarketsCount:      5,
	MinVolumeUSDC:        500,
	SampleCorrectionBase: 50,
}

// DefaultWeights favor ROI over consistency over size.
var DefaultWeights = Weights{
	ROI:     0.45,
	WinRate: 0.35,
	Volume:  0.20,
}

// Qualified filters stats down to addresses meeting every activity gate.
func Qualified(stats []domain.TraderStats, th Thresholds) []domain.TraderStats {
	out := make([]domain.TraderStats, 0, len(stats))
	for _, s := range stats {
		if s.TradesCount >= th.MinTradesCount &&
			s.MarketsCount >= th.MinMarketsCount &&
			s.VolumeUSDC >= th.MinVolumeUSDC {
			out = append(out, s)
		}
	}
	return out
}

// Normalize min-max scales values into [0,1]. A degenerate equal-range set
// maps uniformly to 0.5 instead of dividing by zero.
func Normalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// SampleCorrection shrinks scores of low-trade-count wallets so they cannot
// reach the top of the leaderboard on noise.
func SampleCorrection(score float64, tradesCount, base int) float64 {
	if base < 1 {
		return score
	}
	correction := math.Min(1, float64(tradesCount)/float64(base))
	return score * correction
}

// Tags derives the informational boolean heuristics. They never feed the
// score.
func Tags(s domain.TraderStats) []string {
	var tags []string
	if s.VolumeUSDC > 10_000 {
		tags = append(tags, "whale")
	}
	if s.ROI > 50 {
		tags = append(tags, "high-roi")
	}
	if s.WinRate > 60 {
		tags = append(tags, "consistent")
	}
	if s.TradesCount > 100 {
		tags = append(tags, "active")
	}
	if s.MarketsCount > 20 {
		tags = append(tags, "diversified")
	}
	if s.RealizedPnL > 0 {
		tags = append(tags, "profitable")
	}
	return tags
}

// Score filters, normalizes, and scores the stat set, returning scored
// traders sorted descending by score. Volume is log1p-transformed before
// normalization to tame outliers.
func Score(stats []domain.TraderStats, th Thresholds, w Weights) []domain.ScoredTrader {
	qualified := Qualified(stats, th)
	if len(qualified) == 0 {
		return nil
	}

	rois := make([]float64, len(qualified))
	winRates := make([]float64, len(qualified))
	volumes := make([]float64, len(qualified))
	for i, s := range qualified {
		rois[i] = s.ROI
		winRates[i] = s.WinRate
		volumes[i] = math.Log1p(s.VolumeUSDC)
	}

	normROI := Normalize(rois)
	normWin := Normalize(winRates)
	normVol := Normalize(volumes)

	scored := make([]domain.ScoredTrader, len(qualified))
	for i, s := range qualified {
		raw := w.ROI*normROI[i] + w.WinRate*normWin[i] + w.Volume*normVol[i]
		scored[i] = domain.ScoredTrader{
			TraderStats: s,
			Score:       SampleCorrection(raw, s.TradesCount, th.SampleCorrectionBase),
			Tags:        Tags(s),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
