package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkCoverageSurge BookmarkType = "coverage_surge"
	BookmarkTrailCollapse BookmarkType = "trail_collapse"
	BookmarkAggregation   BookmarkType = "aggregation"
	BookmarkStableNetwork BookmarkType = "stable_network"
)

// Bookmark marks a window where the pattern changed noticeably.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector watches successive WindowStats for pattern changes.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	peakMass           float64 // highest trail mass since the last collapse
	peakSpread         float64 // widest agent spread since the last aggregation
	stableWindowsCount int     // consecutive windows with steady coverage
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable network detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	for _, check := range []func(WindowStats) *Bookmark{
		bd.checkCoverageSurge,
		bd.checkTrailCollapse,
		bd.checkAggregation,
		bd.checkStableNetwork,
	} {
		if b := check(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	bd.peakMass = max(bd.peakMass, stats.TrailMass)
	bd.peakSpread = max(bd.peakSpread, stats.SpreadMean)

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n of the latest windows, oldest first.
func (bd *BookmarkDetector) recent(n int) []WindowStats {
	size := bd.historyIdx
	if bd.historyFull {
		size = bd.historySize
	}
	n = min(n, size)

	out := make([]WindowStats, n)
	for i := 0; i < n; i++ {
		idx := (bd.historyIdx - n + i + bd.historySize) % bd.historySize
		out[i] = bd.history[idx]
	}
	return out
}

func (bd *BookmarkDetector) checkCoverageSurge(stats WindowStats) *Bookmark {
	history := bd.recent(bd.historySize)
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Coverage
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.Coverage > avg*2 && stats.Coverage >= 0.01 {
		return &Bookmark{
			Type:        BookmarkCoverageSurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Coverage %.3f is %.1fx average (%.3f)", stats.Coverage, stats.Coverage/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkTrailCollapse(stats WindowStats) *Bookmark {
	if bd.peakMass == 0 {
		return nil
	}

	drop := 1 - stats.TrailMass/bd.peakMass
	if drop > 0.30 {
		oldPeak := bd.peakMass
		bd.peakMass = stats.TrailMass
		return &Bookmark{
			Type:        BookmarkTrailCollapse,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Trail mass fell %.0f%% from peak %.1f to %.1f", drop*100, oldPeak, stats.TrailMass),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkAggregation(stats WindowStats) *Bookmark {
	if bd.peakSpread == 0 {
		return nil
	}

	drop := 1 - stats.SpreadMean/bd.peakSpread
	if drop > 0.30 {
		oldPeak := bd.peakSpread
		bd.peakSpread = stats.SpreadMean
		return &Bookmark{
			Type:        BookmarkAggregation,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Agents contracted %.0f%% from spread %.1f to %.1f", drop*100, oldPeak, stats.SpreadMean),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStableNetwork(stats WindowStats) *Bookmark {
	if stats.Coverage < 0.01 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.recent(4)
	if len(history) < 4 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.Coverage
	}
	mean := sum / 4

	var variance float64
	for _, h := range history {
		d := h.Coverage - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.0025 means CV < 5%
	if mean > 0 && variance/(mean*mean) < 0.0025 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once
		return &Bookmark{
			Type:        BookmarkStableNetwork,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Coverage steady near %.3f over 5+ windows", mean),
		}
	}
	return nil
}
