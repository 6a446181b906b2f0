package game

import (
	"log/slog"

	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
)

// afterStep runs inside every simulation step.
func (g *Game) afterStep(s *sim.Simulation) {
	tick := s.Tick()

	if g.snapshotEvery > 0 && tick%g.snapshotEvery == 0 {
		g.saveSnapshot(s, nil)
	}

	g.flushTelemetry(s, tick)
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry(s *sim.Simulation, tick int64) {
	if !g.collector.ShouldFlush(tick) {
		return
	}

	stats := g.collector.Flush(tick, s.Field(), s.Agents())
	stats.RunID = g.runID
	g.lastStats = &stats
	perfStats := g.perfCollector.Stats()

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		g.saveSnapshot(s, &bm)
	}
}

// saveSnapshot writes the current field to the snapshot directory.
func (g *Game) saveSnapshot(s *sim.Simulation, bookmark *telemetry.Bookmark) {
	if g.snapshotDir == "" {
		return
	}

	cfg := s.Config()
	snapshot := &telemetry.Snapshot{
		RunID:      g.runID,
		RNGSeed:    s.Seed(),
		MapWidth:   cfg.MapWidth,
		MapHeight:  cfg.MapHeight,
		AgentCount: cfg.AgentCount,
		Tick:       s.Tick(),
		Stats:      g.lastStats,
		Bookmark:   bookmark,
	}

	path, err := telemetry.SaveSnapshot(snapshot, s.Field(), g.snapshotDir, g.snapshotWidth)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", s.Tick())
}
