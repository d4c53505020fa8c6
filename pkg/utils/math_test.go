package utils

import (
	"math"
	"testing"
)

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name      string
		priceHigh float64
		priceLow  float64
		expected  float64
	}{
		{"1% spread", 101.0, 100.0, 1.0},
		{"0.2% spread", 25050.0, 25000.0, 0.2},
		{"0.5% spread", 100.5, 100.0, 0.5},
		{"zero spread", 100.0, 100.0, 0.0},
		{"zero priceLow", 100.0, 0.0, 0.0},
		{"negative priceLow", 100.0, -50.0, 0.0},
		{"10% spread", 110.0, 100.0, 10.0},
		{"50% spread", 150.0, 100.0, 50.0},
		{"0.01% spread", 100.01, 100.0, 0.01},
		{"0.05% spread", 100.05, 100.0, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateSpread(tt.priceHigh, tt.priceLow)
			if !floatEquals(result, tt.expected) {
				t.Errorf("CalculateSpread(%v, %v) = %v, want %v",
					tt.priceHigh, tt.priceLow, result, tt.expected)
			}
		})
	}
}

func TestCalculateSpreadFromPrices(t *testing.T) {
	tests := []struct {
		name     string
		priceA   float64
		priceB   float64
		expected float64
	}{
		{"A higher", 101.0, 100.0, 1.0},
		{"B higher", 100.0, 101.0, 1.0},
		{"equal", 100.0, 100.0, 0.0},
		{"zero A", 0.0, 100.0, 0.0},
		{"zero B", 100.0, 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateSpreadFromPrices(tt.priceA, tt.priceB)
			if !floatEquals(result, tt.expected) {
				t.Errorf("CalculateSpreadFromPrices(%v, %v) = %v, want %v",
					tt.priceA, tt.priceB, result, tt.expected)
			}
		})
	}
}

func TestCalculateNetSpread(t *testing.T) {
	tests := []struct {
		name      string
		spreadPct float64
		feeA      float64
		feeB      float64
		expected  float64
	}{
		{"example 1", 1.0, 0.0004, 0.0005, 0.82},
		{"example 2", 0.5, 0.0005, 0.0005, 0.3},
		{"zero fees", 1.0, 0, 0, 1.0},
		{"zero spread", 0, 0.0005, 0.0005, -0.2},
		{"high fees eat all profit", 0.1, 0.0005, 0.0005, -0.1},
		{"Bybit 0.06% both", 1.0, 0.0006, 0.0006, 0.76},
		{"Bitget 0.04% both", 1.0, 0.0004, 0.0004, 0.84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateNetSpread(tt.spreadPct, tt.feeA, tt.feeB)
			if !floatEquals(result, tt.expected) {
				t.Errorf("CalculateNetSpread(%v, %v, %v) = %v, want %v",
					tt.spreadPct, tt.feeA, tt.feeB, result, tt.expected)
			}
		})
	}
}

func TestCalculateNetSpreadDirect(t *testing.T) {
	priceHigh := 101.0
	priceLow := 100.0
	feeA := 0.0004
	feeB := 0.0005
	expected := 0.82

	result := CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB)
	if !floatEquals(result, expected) {
		t.Errorf("CalculateNetSpreadDirect(%v, %v, %v, %v) = %v, want %v",
			priceHigh, priceLow, feeA, feeB, result, expected)
	}
}

func TestCalculateWeightedAverage(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		weights  []float64
		expected float64
	}{
		{
			"doc example",
			[]float64{100.0, 101.0, 102.0},
			[]float64{10.0, 20.0, 10.0},
			101.0,
		},
		{
			"equal weights",
			[]float64{100.0, 102.0},
			[]float64{1.0, 1.0},
			101.0,
		},
		{
			"single element",
			[]float64{100.0},
			[]float64{10.0},
			100.0,
		},
		{"empty values", []float64{}, []float64{}, 0},
		{"empty weights", []float64{100}, []float64{}, 0},
		{"length mismatch", []float64{100, 101}, []float64{1}, 0},
		{"zero weights", []float64{100, 101}, []float64{0, 0}, 0},
		{
			"negative weight ignored",
			[]float64{100.0, 101.0, 102.0},
			[]float64{10.0, -5.0, 10.0},
			101.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateWeightedAverage(tt.values, tt.weights)
			if !floatEquals(result, tt.expected) {
				t.Errorf("CalculateWeightedAverage(%v, %v) = %v, want %v",
					tt.values, tt.weights, result, tt.expected)
			}
		})
	}
}

func TestPercentileByCeilingRule(t *testing.T) {
	sorted := make([]float64, 20)
	for i := range sorted {
		sorted[i] = float64(i+1) * 0.1 // 0.1 .. 2.0
	}

	upper, ok := PercentileByCeilingRule(sorted, 0.97)
	if !ok || !floatEquals(upper, 2.0) {
		t.Errorf("P97 over 20 samples = %v, want 2.0", upper)
	}

	lower, ok := PercentileByCeilingRule(sorted, 0.03)
	if !ok || !floatEquals(lower, 0.1) {
		t.Errorf("P3 over 20 samples = %v, want 0.1", lower)
	}

	if _, ok := PercentileByCeilingRule(nil, 0.5); ok {
		t.Error("PercentileByCeilingRule on empty slice should return ok=false")
	}
}

func TestSanitizeFloat(t *testing.T) {
	if got := SanitizeFloat(math.Inf(1), 0); got != 0 {
		t.Errorf("SanitizeFloat(+Inf) = %v, want 0", got)
	}
	if got := SanitizeFloat(math.Inf(-1), 0); got != 0 {
		t.Errorf("SanitizeFloat(-Inf) = %v, want 0", got)
	}
	if got := SanitizeFloat(math.NaN(), 0); got != 0 {
		t.Errorf("SanitizeFloat(NaN) = %v, want 0", got)
	}
	if got := SanitizeFloat(1.5, 0); got != 1.5 {
		t.Errorf("SanitizeFloat(1.5) = %v, want 1.5", got)
	}
}

const floatEpsilon = 1e-6

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatEpsilon
}
