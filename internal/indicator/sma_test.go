package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// SMA(3) for [10,11,12,13,14,15]:
	// [0] = (10+11+12)/3 = 11
	// [1] = (11+12+13)/3 = 12
	// [2] = (12+13+14)/3 = 13
	// [3] = (13+14+15)/3 = 14

	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	prices := []float64{10, 11}
	sma := SMA(prices, 5)

	if len(sma) != 0 {
		t.Errorf("expected empty slice, got %d values", len(sma))
	}
}

func TestLastSMA(t *testing.T) {
	v, ok := LastSMA([]float64{10, 11, 12, 13, 14, 15}, 3)
	if !ok || v != 14 {
		t.Errorf("LastSMA = %f, %v; want 14, true", v, ok)
	}
	if _, ok := LastSMA([]float64{1, 2}, 3); ok {
		t.Error("expected not ok with too few prices")
	}
}

func TestRising(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}

	if r, ok := Rising(up, 10, 5); !ok || !r {
		t.Error("expected rising SMA on increasing prices")
	}
	if r, ok := Rising(down, 10, 5); !ok || r {
		t.Error("expected falling SMA on decreasing prices")
	}
	if _, ok := Rising(up[:12], 10, 5); ok {
		t.Error("expected not ok when lookback exceeds SMA history")
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
