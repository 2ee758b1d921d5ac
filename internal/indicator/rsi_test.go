package indicator

import "testing"

func TestRSI_Wilder(t *testing.T) {
	// deltas +2, -1: avg gain 1, avg loss 0.5, RS 2
	v, ok := RSI([]float64{10, 12, 11}, 2)
	if !ok || !almostEqual(v, 66.6667, 0.001) {
		t.Errorf("RSI = %f, %v; want 66.667", v, ok)
	}

	// next delta +2 smooths to gain 1.5, loss 0.25, RS 6
	v, ok = RSI([]float64{10, 12, 11, 13}, 2)
	if !ok || !almostEqual(v, 85.7143, 0.001) {
		t.Errorf("RSI = %f, %v; want 85.714", v, ok)
	}
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range up {
		up[i] = float64(50 + i)
		down[i] = float64(50 - i)
		flat[i] = 50
	}

	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"all gains", up, 100},
		{"all losses", down, 0},
		{"flat", flat, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.prices, 14)
			if !ok || got != tt.want {
				t.Errorf("RSI = %f, %v; want %f", got, ok, tt.want)
			}
		})
	}
}

func TestRSI_NotEnoughData(t *testing.T) {
	if _, ok := RSI([]float64{1, 2, 3}, 14); ok {
		t.Error("expected not ok")
	}
}
