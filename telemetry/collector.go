package telemetry

import (
	"math"

	"github.com/pthm-cable/slime/systems"
)

// Collector samples the field and population at the end of each stats window
// and produces WindowStats.
type Collector struct {
	windowTicks     int64
	windowStartTick int64
	threshold       float32 // mean RGB a cell needs to count as covered

	// Scratch buffers reused across flushes
	intensities []float64
	dists       []float64
	headings    []float64
}

// NewCollector creates a collector that flushes every windowTicks ticks.
// coverageThreshold is the mean channel value a cell must reach to count
// toward Coverage.
func NewCollector(windowTicks int, coverageThreshold float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: int64(windowTicks),
		threshold:   float32(coverageThreshold),
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int64 {
	return c.windowTicks
}

// Flush samples the committed state and starts the next window.
func (c *Collector) Flush(currentTick int64, f *systems.Field, agents []systems.Agent) WindowStats {
	trail := f.TrailData()
	presence := f.PresenceData()
	w, h := f.Width(), f.Height()

	c.intensities = c.intensities[:0]
	var covered, occupied int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := f.Intensity(x, y)
			if v > 0 {
				c.intensities = append(c.intensities, float64(v))
			}
			if v/3 >= c.threshold {
				covered++
			}
			if presence[(y*w+x)*systems.Channels] > 0 {
				occupied++
			}
		}
	}

	cx, cy := float64(w)/2, float64(h)/2
	c.dists = c.dists[:0]
	c.headings = c.headings[:0]
	for _, a := range agents {
		c.dists = append(c.dists, math.Hypot(float64(a.X)-cx, float64(a.Y)-cy))
		c.headings = append(c.headings, float64(a.Angle))
	}

	p50, p90 := Quantiles(c.intensities)
	spreadMean, spreadStd := Spread(c.dists)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		Agents:          len(agents),
		TrailMass:       TrailMass(trail),
		TrailPeak:       TrailPeak(trail),
		IntensityP50:    p50,
		IntensityP90:    p90,
		Coverage:        float64(covered) / float64(w*h),
		OccupiedCells:   occupied,
		SpreadMean:      spreadMean,
		SpreadStd:       spreadStd,
		HeadingMean:     MeanHeading(c.headings),
	}

	c.windowStartTick = currentTick
	return stats
}
