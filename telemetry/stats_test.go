package telemetry

import (
	"math"
	"testing"
)

func TestTrailMassAndPeak(t *testing.T) {
	data := []float32{0, 0.25, 0.5, 0.125, 1, 0}
	if got := TrailMass(data); math.Abs(got-1.875) > 1e-6 {
		t.Errorf("expected mass 1.875, got %v", got)
	}
	if got := TrailPeak(data); got != 1 {
		t.Errorf("expected peak 1, got %v", got)
	}
	if TrailMass(nil) != 0 || TrailPeak(nil) != 0 {
		t.Error("expected zeros for an empty grid")
	}
}

func TestTrailMassLargeGrid(t *testing.T) {
	// 1280x720 RGBA
	data := make([]float32, 1280*720*4)
	for i := range data {
		data[i] = 0.1
	}

	want := float64(float32(0.1)) * float64(len(data))
	if got := TrailMass(data); math.Abs(got-want) > 1e-6*want {
		t.Errorf("expected mass %.4f, got %.4f", want, got)
	}
}

func TestQuantiles(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	p50, p90 := Quantiles(values)
	if p50 != 5 {
		t.Errorf("expected p50 5, got %v", p50)
	}
	if p90 != 9 {
		t.Errorf("expected p90 9, got %v", p90)
	}

	if p50, p90 := Quantiles(nil); p50 != 0 || p90 != 0 {
		t.Error("expected zeros for empty input")
	}
}

func TestSpread(t *testing.T) {
	mean, std := Spread([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("expected mean 5, got %v", mean)
	}
	// Sample standard deviation of the series above
	if math.Abs(std-2.138) > 0.001 {
		t.Errorf("expected std ~2.138, got %v", std)
	}

	if mean, std := Spread([]float64{3}); mean != 3 || std != 0 {
		t.Errorf("expected (3, 0) for one sample, got (%v, %v)", mean, std)
	}
}

func TestMeanHeading(t *testing.T) {
	// Angles either side of zero average to zero, not π
	got := MeanHeading([]float64{0.1, 2*math.Pi - 0.1})
	if math.Abs(got) > 1e-9 && math.Abs(got-2*math.Pi) > 1e-9 {
		t.Errorf("expected heading near 0, got %v", got)
	}

	got = MeanHeading([]float64{3 * math.Pi / 2, 3*math.Pi/2 + 0.2, 3*math.Pi/2 - 0.2})
	if math.Abs(got-3*math.Pi/2) > 1e-9 {
		t.Errorf("expected 3π/2, got %v", got)
	}
}
