package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	RunID           string `csv:"run_id"`
	WindowStartTick int64  `csv:"-"`
	WindowEndTick   int64  `csv:"window_end"`

	Agents int `csv:"agents"`

	// Trail field
	TrailMass     float64 `csv:"trail_mass"`     // sum of every trail channel
	TrailPeak     float64 `csv:"trail_peak"`     // largest single channel value
	IntensityP50  float64 `csv:"intensity_p50"`  // over cells with any trail
	IntensityP90  float64 `csv:"intensity_p90"`  // over cells with any trail
	Coverage      float64 `csv:"coverage"`       // fraction of cells above threshold
	OccupiedCells int     `csv:"occupied_cells"` // cells holding at least one agent

	// Agent distribution
	SpreadMean  float64 `csv:"spread_mean"` // distance from grid center
	SpreadStd   float64 `csv:"spread_std"`
	HeadingMean float64 `csv:"heading_mean"` // circular mean, radians
}

// TrailMass sums a non-negative float32 grid. It accumulates in float64:
// a float32 sum over a full-size grid drifts by whole units.
func TrailMass(data []float32) float64 {
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	return sum
}

// TrailPeak returns the largest value in a non-negative float32 grid.
func TrailPeak(data []float32) float64 {
	if len(data) == 0 {
		return 0
	}
	return float64(data[blas32.Iamax(blas32.Vector{N: len(data), Inc: 1, Data: data})])
}

// Quantiles returns the p50 and p90 of values, sorting them in place.
func Quantiles(values []float64) (p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil),
		stat.Quantile(0.9, stat.Empirical, values, nil)
}

// Spread returns the mean and standard deviation of distances. A single
// sample has zero spread.
func Spread(dists []float64) (mean, std float64) {
	switch len(dists) {
	case 0:
		return 0, 0
	case 1:
		return dists[0], 0
	}
	mean, std = stat.MeanStdDev(dists, nil)
	return mean, std
}

// MeanHeading returns the circular mean of angles normalized to [0, 2π).
func MeanHeading(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	m := stat.CircularMean(angles, nil)
	if m < 0 {
		m += 2 * math.Pi
	}
	return m
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Int("agents", s.Agents),
		slog.Float64("trail_mass", s.TrailMass),
		slog.Float64("trail_peak", s.TrailPeak),
		slog.Float64("intensity_p50", s.IntensityP50),
		slog.Float64("intensity_p90", s.IntensityP90),
		slog.Float64("coverage", s.Coverage),
		slog.Int("occupied_cells", s.OccupiedCells),
		slog.Float64("spread_mean", s.SpreadMean),
		slog.Float64("spread_std", s.SpreadStd),
		slog.Float64("heading_mean", s.HeadingMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "run_id", s.RunID, "tick", s.WindowEndTick, "window", s)
}
