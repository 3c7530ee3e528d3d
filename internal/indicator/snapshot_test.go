package indicator

import (
	"testing"

	"capas-server/internal/model"
)

func makeCandles(n int, price, volume float64) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Market:     "KRW-BTC",
			TradePrice: price,
			HighPrice:  price * 1.01,
			LowPrice:   price * 0.99,
			AccVolume:  volume,
		}
	}
	return candles
}

func TestCompute_ConstantSeries(t *testing.T) {
	snap, err := Compute(makeCandles(90, 1000, 50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, v := range map[string]Value{"ma5": snap.MA5, "ma20": snap.MA20, "ma60": snap.MA60} {
		if !v.Valid {
			t.Errorf("%s: expected valid reading", name)
		}
		if v.Value != 1000 {
			t.Errorf("%s: expected 1000, got %v", name, v.Value)
		}
	}
	if snap.CurrentPrice != 1000 {
		t.Errorf("expected current price 1000, got %v", snap.CurrentPrice)
	}
	if snap.VolumeRatio != 100 {
		t.Errorf("expected volume ratio 100%%, got %v", snap.VolumeRatio)
	}
	if snap.Volatility != 0 {
		t.Errorf("expected zero volatility, got %v", snap.Volatility)
	}
	if snap.GoldenCross {
		t.Error("equal MAs must not report a golden cross")
	}
}

func TestCompute_ShortSeriesMarksInvalid(t *testing.T) {
	snap, err := Compute(makeCandles(10, 500, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.MA5.Valid {
		t.Error("MA5 should be valid with 10 candles")
	}
	if snap.MA20.Valid || snap.MA60.Valid || snap.RSI14.Valid {
		t.Error("MA20/MA60/RSI14 must be invalid with 10 candles, not zero-valued")
	}
}

func TestCompute_Empty(t *testing.T) {
	if _, err := Compute(nil); err != ErrNoCandles {
		t.Fatalf("expected ErrNoCandles, got %v", err)
	}
}
