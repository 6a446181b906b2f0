package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is a timed section of a simulation tick.
type Phase int

const (
	PhaseAgentPass Phase = iota // agent dispatch through its barrier
	PhaseFieldPass              // field dispatch through its barrier
	PhaseCommit
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"agent_pass", "field_pass", "commit", "telemetry"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// tickTiming is what the collector keeps per tick.
type tickTiming struct {
	total  time.Duration
	phase  [numPhases]time.Duration
	wait   time.Duration // blocked in barriers, counted inside the pass phases
	agents int
	cells  int
}

// PerfCollector times the passes of recent ticks and derives throughput
// from the work they covered. A nil *PerfCollector records nothing, so the
// simulation can call it unconditionally.
type PerfCollector struct {
	ring    []tickTiming
	next    int
	filled  int
	workers int

	cur       tickTiming
	tickStart time.Time
	active    Phase
	hasPhase  bool
	phaseMark time.Time
	waitMark  time.Time

	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector keeps the last window ticks (60 if window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]tickTiming, window), workers: 1}
}

// SetWorkers records how many goroutines run the passes.
func (p *PerfCollector) SetWorkers(n int) {
	if p == nil || n < 1 {
		return
	}
	p.workers = n
}

// StartTick resets the per-tick counters.
func (p *PerfCollector) StartTick() {
	if p == nil {
		return
	}
	p.cur = tickTiming{}
	p.hasPhase = false
	p.tickStart = time.Now()
}

// StartPhase closes the running phase and opens ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	if p == nil {
		return
	}
	now := time.Now()
	p.closePhase(now)
	p.active, p.hasPhase, p.phaseMark = ph, true, now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.hasPhase {
		p.cur.phase[p.active] += now.Sub(p.phaseMark)
	}
}

// StartWait and EndWait bracket a barrier. The wait is also charged to
// the open phase.
func (p *PerfCollector) StartWait() {
	if p == nil {
		return
	}
	p.waitMark = time.Now()
}

func (p *PerfCollector) EndWait() {
	if p == nil || p.waitMark.IsZero() {
		return
	}
	p.cur.wait += time.Since(p.waitMark)
	p.waitMark = time.Time{}
}

// AddWork counts agents updated and cells diffused in the current tick.
func (p *PerfCollector) AddWork(agents, cells int) {
	if p == nil {
		return
	}
	p.cur.agents += agents
	p.cur.cells += cells
}

// EndTick stores the tick in the window, overwriting the oldest.
func (p *PerfCollector) EndTick() {
	if p == nil {
		return
	}
	now := time.Now()
	p.closePhase(now)
	p.hasPhase = false
	p.cur.total = now.Sub(p.tickStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.filled = min(p.filled+1, len(p.ring))
}

// RecordFrame measures the time since the previous frame.
func (p *PerfCollector) RecordFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats summarizes the collector window.
type PerfStats struct {
	Ticks   int
	Workers int

	AvgTick time.Duration
	MinTick time.Duration
	P95Tick time.Duration
	MaxTick time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64
	WaitPct  float64 // share of tick time spent blocked on barriers

	TicksPerSec  float64
	AgentsPerSec float64 // agents over agent pass time
	CellsPerSec  float64 // cells over field pass time
	FPS          float64
}

// Stats aggregates the ticks currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil {
		return PerfStats{}
	}

	s := PerfStats{Ticks: p.filled, Workers: p.workers}
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.filled == 0 {
		return s
	}

	var total, wait time.Duration
	var phaseSum [numPhases]time.Duration
	var agents, cells int
	ticks := make([]float64, 0, p.filled)
	for _, t := range p.ring[:p.filled] {
		total += t.total
		wait += t.wait
		agents += t.agents
		cells += t.cells
		for i, d := range t.phase {
			phaseSum[i] += d
		}
		ticks = append(ticks, float64(t.total))
	}
	slices.Sort(ticks)

	n := time.Duration(p.filled)
	s.AvgTick = total / n
	s.MinTick = time.Duration(ticks[0])
	s.MaxTick = time.Duration(ticks[len(ticks)-1])
	s.P95Tick = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))

	for i, sum := range phaseSum {
		s.PhaseAvg[i] = sum / n
		if total > 0 {
			s.PhasePct[i] = 100 * float64(sum) / float64(total)
		}
	}
	if total > 0 {
		s.WaitPct = 100 * float64(wait) / float64(total)
		s.TicksPerSec = float64(p.filled) / total.Seconds()
	}
	s.AgentsPerSec = rate(agents, phaseSum[PhaseAgentPass])
	s.CellsPerSec = rate(cells, phaseSum[PhaseFieldPass])
	return s
}

func rate(work int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(work) / d.Seconds()
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ticks", s.Ticks),
		slog.Int("workers", s.Workers),
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("p95_tick_us", s.P95Tick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSec),
		slog.Float64("agents_per_sec", s.AgentsPerSec),
		slog.Float64("cells_per_sec", s.CellsPerSec),
		slog.Float64("barrier_wait_pct", s.WaitPct),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the window summary.
func (s PerfStats) LogStats() {
	slog.Info("perf", "window", s)
}

// PerfRow is one perf.csv record.
type PerfRow struct {
	WindowEnd    int64   `csv:"window_end"`
	Workers      int     `csv:"workers"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	P95TickUS    int64   `csv:"p95_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	AgentsPerSec float64 `csv:"agents_per_sec"`
	CellsPerSec  float64 `csv:"cells_per_sec"`
	WaitPct      float64 `csv:"barrier_wait_pct"`
	AgentPassPct float64 `csv:"agent_pass_pct"`
	FieldPassPct float64 `csv:"field_pass_pct"`
	CommitPct    float64 `csv:"commit_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
	FPS          float64 `csv:"fps"`
}

// Row flattens the stats for the window ending at windowEnd.
func (s PerfStats) Row(windowEnd int64) PerfRow {
	return PerfRow{
		WindowEnd:    windowEnd,
		Workers:      s.Workers,
		AvgTickUS:    s.AvgTick.Microseconds(),
		P95TickUS:    s.P95Tick.Microseconds(),
		MaxTickUS:    s.MaxTick.Microseconds(),
		TicksPerSec:  s.TicksPerSec,
		AgentsPerSec: s.AgentsPerSec,
		CellsPerSec:  s.CellsPerSec,
		WaitPct:      s.WaitPct,
		AgentPassPct: s.PhasePct[PhaseAgentPass],
		FieldPassPct: s.PhasePct[PhaseFieldPass],
		CommitPct:    s.PhasePct[PhaseCommit],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
		FPS:          s.FPS,
	}
}
