package scoring

import (
	"math"
	"slices"
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func qualifiedStats(addr string, roi, winRate, volume float64) domain.TraderStats {
	return domain.TraderStats{
		Address:      addr,
		TradesCount:  DefaultThresholds.SampleCorrectionBase, // full correction factor
		MarketsCount: DefaultThresholds.MinMarketsCount,
		VolumeUSDC:   volume,
		ROI:          roi,
		WinRate:      winRate,
	}
}

func TestQualified(t *testing.T) {
	tests := []struct {
		name string
		stat domain.TraderStats
		want bool
	}{
		{
			name: "meets all gates",
			stat: domain.TraderStats{TradesCount: 20, MarketsCount: 5, VolumeUSDC: 500},
			want: true,
		},
		{
			name: "too few trades",
			stat: domain.TraderStats{TradesCount: 19, MarketsCount: 5, VolumeUSDC: 500},
			want: false,
		},
		{
			name: "too few markets",
			stat: domain.TraderStats{TradesCount: 20, MarketsCount: 4, VolumeUSDC: 500},
			want: false,
		},
		{
			name: "too little volume",
			stat: domain.TraderStats{TradesCount: 20, MarketsCount: 5, VolumeUSDC: 499.99},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Qualified([]domain.TraderStats{tt.stat}, DefaultThresholds)
			if (len(got) == 1) != tt.want {
				t.Errorf("qualified = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{10, 20, 30})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("normalize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	// All-equal inputs map to 0.5, not a division by zero.
	for _, v := range Normalize([]float64{7, 7, 7}) {
		if v != 0.5 {
			t.Fatalf("degenerate normalize = %v, want 0.5", v)
		}
	}
	if Normalize(nil) != nil {
		t.Error("normalize of empty input should be nil")
	}
}

func TestSampleCorrection(t *testing.T) {
	if got := SampleCorrection(1.0, 25, 50); got != 0.5 {
		t.Errorf("correction at 25/50 trades = %v, want 0.5", got)
	}
	if got := SampleCorrection(1.0, 200, 50); got != 1.0 {
		t.Errorf("correction caps at 1, got %v", got)
	}
	if got := SampleCorrection(0.8, 10, 0); got != 0.8 {
		t.Errorf("zero base disables correction, got %v", got)
	}
}

func TestTags(t *testing.T) {
	s := domain.TraderStats{
		VolumeUSDC:   20_000,
		ROI:          60,
		WinRate:      70,
		TradesCount:  150,
		MarketsCount: 25,
		RealizedPnL:  100,
	}
	got := Tags(s)
	for _, want := range []string{"whale", "high-roi", "consistent", "active", "diversified", "profitable"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing tag %s in %v", want, got)
		}
	}

	if tags := Tags(domain.TraderStats{}); len(tags) != 0 {
		t.Errorf("zero stats should produce no tags, got %v", tags)
	}
}

func TestScoreRanking(t *testing.T) {
	// Equal win rate and volume, so ROI alone decides the order.
	stats := []domain.TraderStats{
		qualifiedStats("0xlow", 5, 50, 1000),
		qualifiedStats("0xhigh", 80, 50, 1000),
		qualifiedStats("0xmid", 40, 50, 1000),
	}

	scored := Score(stats, DefaultThresholds, DefaultWeights)
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored traders, got %d", len(scored))
	}

	order := []string{scored[0].Address, scored[1].Address, scored[2].Address}
	want := []string{"0xhigh", "0xmid", "0xlow"}
	if !slices.Equal(order, want) {
		t.Errorf("ranking = %v, want %v", order, want)
	}

	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, scored[i].Score, scored[i-1].Score)
		}
	}
}

func TestScoreSampleCorrectionShrinksNewcomers(t *testing.T) {
	veteran := qualifiedStats("0xveteran", 50, 50, 1000)
	newcomer := qualifiedStats("0xnew", 50, 50, 1000)
	newcomer.TradesCount = DefaultThresholds.MinTradesCount // 20 of base 50

	scored := Score([]domain.TraderStats{veteran, newcomer}, DefaultThresholds, DefaultWeights)
	if len(scored) != 2 {
		t.Fatalf("expected 2 scored traders, got %d", len(scored))
	}
	if scored[0].Address != "0xveteran" {
		t.Fatalf("veteran should outrank an otherwise identical newcomer, got %s first", scored[0].Address)
	}
	wantRatio := float64(newcomer.TradesCount) / float64(DefaultThresholds.SampleCorrectionBase)
	if got := scored[1].Score / scored[0].Score; math.Abs(got-wantRatio) > 1e-9 {
		t.Errorf("score ratio = %v, want %v", got, wantRatio)
	}
}

func TestScoreNoQualifiers(t *testing.T) {
	if scored := Score([]domain.TraderStats{{TradesCount: 1}}, DefaultThresholds, DefaultWeights); scored != nil {
		t.Errorf("expected nil for no qualifiers, got %v", scored)
	}
}
