package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA_ConstantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 42.5
	}
	for _, period := range []int{1, 5, 20, 30} {
		out := SMA(prices, period)
		wantLen := len(prices) - period + 1
		if len(out) != wantLen {
			t.Fatalf("period %d: expected %d values, got %d", period, wantLen, len(out))
		}
		for k, v := range out {
			if !almostEqual(v, 42.5) {
				t.Errorf("period %d: element %d = %v, want 42.5", period, k, v)
			}
		}
	}
}

func TestSMA_WindowMeans(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	out := SMA(prices, 3)
	want := []float64{2, 3, 4}
	if len(out) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(out))
	}
	for i := range want {
		if !almostEqual(out[i], want[i]) {
			t.Errorf("element %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestSMA_TooShort(t *testing.T) {
	if out := SMA([]float64{1, 2, 3}, 5); out != nil {
		t.Errorf("expected nil for short series, got %v", out)
	}
}

func TestSMA_PrefixConsistency(t *testing.T) {
	// Computing on a growing prefix and slicing the full computation
	// must agree: SMA(prices[:k], p) last == SMA(prices, p)[k-p].
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)/3)
	}
	for _, p := range []int{5, 20, 60} {
		full := SMA(prices, p)
		for k := p; k <= len(prices); k++ {
			prefix := SMA(prices[:k], p)
			got := prefix[len(prefix)-1]
			want := full[k-p]
			if !almostEqual(got, want) {
				t.Fatalf("p=%d k=%d: prefix last=%v, full slice=%v", p, k, got, want)
			}
		}
	}
}

func TestRSI_Bounds(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + 20*math.Sin(float64(i)) + float64(i%7)
	}
	for _, v := range RSI(prices, 14) {
		if v < 0 || v > 100 {
			t.Errorf("RSI value %v out of [0,100]", v)
		}
	}
}

func TestRSI_AllGainsIs100(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i) // strictly increasing
	}
	out := RSI(prices, 14)
	if len(out) == 0 {
		t.Fatal("expected RSI output for 40 increasing prices")
	}
	for i, v := range out {
		if !almostEqual(v, 100) {
			t.Errorf("element %d = %v, want exactly 100 for zero average loss", i, v)
		}
	}
}

func TestRSI_OutputLength(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = float64(i * i % 37)
	}
	out := RSI(prices, 14)
	// One value per full window after the initial differencing.
	want := len(prices) - 1 - 14
	if len(out) != want {
		t.Errorf("expected %d values, got %d", want, len(out))
	}
}

func TestRSI_PrefixConsistency(t *testing.T) {
	prices := make([]float64, 70)
	for i := range prices {
		prices[i] = 500 + 30*math.Cos(float64(i)/2)
	}
	full := RSI(prices, 14)
	for k := 17; k <= len(prices); k++ {
		prefix := RSI(prices[:k], 14)
		if len(prefix) == 0 {
			continue
		}
		got := prefix[len(prefix)-1]
		want := full[len(prefix)-1]
		if !almostEqual(got, want) {
			t.Fatalf("k=%d: prefix last=%v, full=%v", k, got, want)
		}
	}
}

func TestVolumeRatio(t *testing.T) {
	volumes := []float64{10, 10, 10, 10}
	if got := VolumeRatio(20, volumes, 4); !almostEqual(got, 200) {
		t.Errorf("expected 200%%, got %v", got)
	}
	if got := VolumeRatio(5, volumes, 4); !almostEqual(got, 50) {
		t.Errorf("expected 50%%, got %v", got)
	}
	if got := VolumeRatio(5, nil, 4); got != 0 {
		t.Errorf("expected 0 for empty volumes, got %v", got)
	}
}

func TestVolatility_ConstantIsZero(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100}
	if got := Volatility(prices, 5); !almostEqual(got, 0) {
		t.Errorf("expected 0 volatility for constant series, got %v", got)
	}
}

func TestVolatility_KnownValue(t *testing.T) {
	// mean=3, population variance=2, stddev=sqrt(2), CV = sqrt(2)/3*100
	prices := []float64{1, 2, 3, 4, 5}
	want := math.Sqrt(2) / 3 * 100
	if got := Volatility(prices, 5); !almostEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGoldenCross(t *testing.T) {
	// Flat then rising: MA5 should sit above MA20.
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}
	for i := 25; i < 30; i++ {
		prices[i] = 120
	}
	if !GoldenCross(prices) {
		t.Error("expected golden cross after price surge")
	}

	// Falling tail: MA5 below MA20.
	for i := 25; i < 30; i++ {
		prices[i] = 80
	}
	if GoldenCross(prices) {
		t.Error("did not expect golden cross after price drop")
	}

	if GoldenCross(prices[:10]) {
		t.Error("expected false when series is shorter than MA20 lookback")
	}
}
