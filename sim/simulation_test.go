package sim

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/systems"
	"github.com/pthm-cable/slime/telemetry"
)

func testConfig(t testing.TB, mutate func(c *config.Config)) *config.Config {
	t.Helper()
	base := config.MustLoad("")
	base.AgentCount = 500
	base.MapWidth, base.MapHeight = 96, 80
	if mutate != nil {
		mutate(base)
	}
	cfg, err := base.Clone()
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

func newTestSim(t testing.TB, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// newRunningSim is newTestSim already switched to Running.
func newRunningSim(t testing.TB, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	s := newTestSim(t, cfg, opts)
	if st := s.TogglePause(); st != StateRunning {
		t.Fatalf("expected %s, got %s", StateRunning, st)
	}
	return s
}

// deferredDispatcher holds work until Barrier so tests can observe the
// state between dispatch and commit.
type deferredDispatcher struct {
	queued []func()
}

func (d *deferredDispatcher) Dispatch(n int, fn func(start, end int)) {
	d.queued = append(d.queued, func() { fn(0, n) })
}

func (d *deferredDispatcher) Barrier() {
	for _, fn := range d.queued {
		fn()
	}
	d.queued = d.queued[:0]
}

func (d *deferredDispatcher) Close() {}

func TestNewStartsPaused(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 1})
	if s.State() != StatePaused {
		t.Errorf("expected %s, got %s", StatePaused, s.State())
	}
	if len(s.Agents()) != 500 {
		t.Errorf("expected 500 agents, got %d", len(s.Agents()))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.AgentCount = 0

	s, err := New(cfg, Options{})
	if s != nil {
		t.Error("expected no simulation on error")
	}
	if !errors.Is(err, config.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	if _, err := New(nil, Options{}); !errors.Is(err, config.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for nil config, got %v", err)
	}
}

func TestPauseFreezesState(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 3})

	before := slices.Clone(s.Agents())
	trail := slices.Clone(s.Field().TrailData())

	for i := 0; i < 10; i++ {
		if n := s.Update(); n != 0 {
			t.Fatalf("expected no steps while paused, got %d", n)
		}
	}
	if s.Tick() != 0 {
		t.Errorf("expected tick 0 while paused, got %d", s.Tick())
	}
	if !slices.Equal(before, s.Agents()) {
		t.Error("expected agents unchanged while paused")
	}
	if !slices.Equal(trail, s.Field().TrailData()) {
		t.Error("expected trail unchanged while paused")
	}

	if st := s.TogglePause(); st != StateRunning {
		t.Fatalf("expected %s after toggle, got %s", StateRunning, st)
	}
	if n := s.Update(); n != s.Config().Dispatch.StepsPerUpdate {
		t.Errorf("expected %d steps, got %d", s.Config().Dispatch.StepsPerUpdate, n)
	}
	if s.Tick() == 0 {
		t.Error("expected tick to advance after resume")
	}

	if st := s.TogglePause(); st != StatePaused {
		t.Errorf("expected %s after second toggle, got %s", StatePaused, st)
	}
}

func TestPausedPassesDoNothing(t *testing.T) {
	d := &deferredDispatcher{}
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 3, Dispatcher: d})

	before := s.Agents()
	trail := slices.Clone(s.Field().TrailData())

	s.Step()
	s.RunAgentPass()
	s.Barrier()
	s.RunFieldPass()
	s.Barrier()

	if s.State() != StatePaused || s.Tick() != 0 {
		t.Errorf("expected paused at tick 0, got %s at tick %d", s.State(), s.Tick())
	}
	if len(d.queued) != 0 {
		t.Errorf("expected nothing dispatched while paused, got %d tasks", len(d.queued))
	}
	if !slices.Equal(before, s.Agents()) {
		t.Error("expected agents unchanged while paused")
	}
	if !slices.Equal(trail, s.Field().TrailData()) {
		t.Error("expected trail unchanged while paused")
	}
}

func TestNewRecomputesDerivedValues(t *testing.T) {
	// Settings edited after Load: derived values still describe the old grid
	edited := config.MustLoad("")
	edited.AgentCount = 300
	edited.SpawnMethod = config.SpawnRandom
	edited.MapWidth, edited.MapHeight = 64, 48

	// A literal config never had derived values computed
	literal := &config.Config{
		AgentCount:  1,
		SpawnMethod: config.SpawnCenter,
		MapWidth:    32,
		MapHeight:   32,
		MoveSpeed:   1,
		ColorR:      255,
		DecayRate:   0.1,
		DiffuseRate: 0.5,
	}

	for name, cfg := range map[string]*config.Config{"edited": edited, "literal": literal} {
		t.Run(name, func(t *testing.T) {
			s := newRunningSim(t, cfg, Options{Seed: 6, Dispatcher: SerialDispatcher{}})
			w, h := float32(cfg.MapWidth), float32(cfg.MapHeight)

			start := s.Agents()
			for i := 0; i < 20; i++ {
				s.Step()
			}
			end := s.Agents()

			for i, a := range end {
				if a.X < 0 || a.X >= w || a.Y < 0 || a.Y >= h {
					t.Fatalf("agent %d outside %vx%v grid: (%.2f,%.2f)", i, w, h, a.X, a.Y)
				}
			}
			if slices.Equal(start, end) {
				t.Error("expected agents to move")
			}
			if s.Field().Mass() <= 0 {
				t.Error("expected deposited trail")
			}
		})
	}
}

func TestNewRejectsOversizedField(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.MapWidth, c.MapHeight = 1<<31, 1<<31
	})

	s, err := New(cfg, Options{Dispatcher: SerialDispatcher{}})
	if s != nil {
		t.Error("expected no simulation on error")
	}
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}
}

func TestPassesReadAgentStore(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.AgentCount = 50
		c.MoveSpeed = 1
	})
	s := newRunningSim(t, cfg, Options{Seed: 2, Dispatcher: SerialDispatcher{}})

	// Edit the ECS directly; the next pass must start from the edit
	agents := s.Agents()
	agents[0] = systems.Agent{X: 10.5, Y: 20.5, Angle: 0}
	s.store.Store(agents)

	if got := s.Agents()[0]; got != agents[0] {
		t.Fatalf("expected store to hold %+v, got %+v", agents[0], got)
	}

	s.Step()

	// Empty trail: heading kept, one unit along +X
	got := s.Agents()[0]
	if math.Abs(float64(got.X-11.5)) > 1e-4 || math.Abs(float64(got.Y-20.5)) > 1e-4 {
		t.Errorf("expected agent at (11.5,20.5), got (%.4f,%.4f)", got.X, got.Y)
	}
}

func TestCenterSpawnSingleAgent(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.AgentCount = 1
		c.SpawnMethod = config.SpawnCenter
		c.MoveSpeed = 2
	})
	s := newRunningSim(t, cfg, Options{Seed: 9, Dispatcher: SerialDispatcher{}})

	start := s.Agents()[0]
	if start.X != 48 || start.Y != 40 {
		t.Fatalf("expected agent at center (48,40), got (%.2f,%.2f)", start.X, start.Y)
	}

	s.Step()

	// Zero field: every sensor reads 0, so the heading is kept
	a := s.Agents()[0]
	if a.Angle != start.Angle {
		t.Errorf("expected heading %.4f kept, got %.4f", start.Angle, a.Angle)
	}
	wantX := start.X + float32(math.Cos(float64(start.Angle)))*2
	wantY := start.Y + float32(math.Sin(float64(start.Angle)))*2
	if math.Abs(float64(a.X-wantX)) > 1e-4 || math.Abs(float64(a.Y-wantY)) > 1e-4 {
		t.Errorf("expected position (%.4f,%.4f), got (%.4f,%.4f)", wantX, wantY, a.X, a.Y)
	}

	cx, cy := a.Cell()
	if v := s.Field().Intensity(cx, cy); v <= 0 {
		t.Errorf("expected trail at (%d,%d) after field pass, got %.4f", cx, cy, v)
	}
	if p := s.Field().Presence(cx, cy); p[0] != 1 {
		t.Errorf("expected presence at (%d,%d), got %v", cx, cy, p)
	}
}

func TestBarrierCommitsPasses(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.AgentCount = 50 })
	d := &deferredDispatcher{}
	s := newRunningSim(t, cfg, Options{Seed: 2, Dispatcher: d})

	before := slices.Clone(s.Agents())
	s.RunAgentPass()
	if !slices.Equal(before, s.Agents()) {
		t.Fatal("expected agents untouched before barrier")
	}
	s.Barrier()
	if slices.Equal(before, s.Agents()) {
		t.Fatal("expected agents moved after barrier")
	}

	a := s.Agents()[0]
	cx, cy := a.Cell()
	if v := s.Field().Intensity(cx, cy); v != 0 {
		t.Errorf("expected deposits invisible before field pass commit, got %.3f", v)
	}

	s.RunFieldPass()
	if s.Tick() != 0 {
		t.Errorf("expected tick 0 before barrier, got %d", s.Tick())
	}
	s.Barrier()
	if s.Tick() != 1 {
		t.Errorf("expected tick 1 after barrier, got %d", s.Tick())
	}
	if v := s.Field().Intensity(cx, cy); v <= 0 {
		t.Errorf("expected committed trail at (%d,%d), got %.3f", cx, cy, v)
	}
}

func TestPassWithoutBarrierIsSettled(t *testing.T) {
	d := &deferredDispatcher{}
	s := newRunningSim(t, testConfig(t, nil), Options{Seed: 2, Dispatcher: d})

	s.RunAgentPass()
	s.RunFieldPass() // commits the agent pass first
	s.RunAgentPass() // commits the field pass first
	s.Barrier()

	if s.Tick() != 1 {
		t.Errorf("expected tick 1, got %d", s.Tick())
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.AgentCount = 3000 })

	serial := newRunningSim(t, cfg, Options{Seed: 77, Dispatcher: SerialDispatcher{}})
	pool := NewWorkerPool(4)
	defer pool.Close()
	parallel := newRunningSim(t, cfg, Options{Seed: 77, Dispatcher: pool})

	for tick := 0; tick < 40; tick++ {
		serial.Step()
		parallel.Step()
	}

	if !slices.Equal(serial.Agents(), parallel.Agents()) {
		t.Error("expected identical agents for serial and parallel dispatch")
	}
	if !slices.Equal(serial.Field().TrailData(), parallel.Field().TrailData()) {
		t.Error("expected identical trail for serial and parallel dispatch")
	}
}

func TestInvariantsHoldOverTicks(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.AgentCount = 2000
		c.SpawnMethod = config.SpawnRandom
		c.MoveSpeed = 2.5
		c.DiffuseRate = 0.8
		c.DecayRate = 0.001
	})
	s := newRunningSim(t, cfg, Options{Seed: 5})

	for tick := 0; tick < 60; tick++ {
		s.Step()

		for i, a := range s.Agents() {
			if a.X < 0 || a.X >= 96 || a.Y < 0 || a.Y >= 80 {
				t.Fatalf("tick %d agent %d out of bounds: (%.3f,%.3f)", tick, i, a.X, a.Y)
			}
		}
		for i, v := range s.Field().TrailData() {
			if v < 0 || v > 1 {
				t.Fatalf("tick %d: trail value %d out of range: %f", tick, i, v)
			}
		}
	}
}

func TestQuitTakesEffectAtStepBoundary(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 1})
	s.TogglePause()

	done := make(chan struct{})
	go func() {
		s.Quit()
		close(done)
	}()
	<-done

	if n := s.Update(); n != 0 {
		t.Errorf("expected no steps after quit, got %d", n)
	}
	if s.State() != StateTerminated {
		t.Errorf("expected %s, got %s", StateTerminated, s.State())
	}
	if st := s.TogglePause(); st != StateTerminated {
		t.Errorf("expected toggle to leave %s, got %s", StateTerminated, st)
	}

	tick := s.Tick()
	s.Step()
	if s.Tick() != tick {
		t.Error("expected Step to do nothing after termination")
	}
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	steps := 0
	s := newTestSim(t, testConfig(t, nil), Options{
		Seed:   4,
		OnStep: func(*Simulation) { steps++ },
	})
	s.TogglePause()

	if err := s.Run(context.Background(), 7); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if s.Tick() != 7 || steps != 7 {
		t.Errorf("expected 7 ticks and hooks, got %d and %d", s.Tick(), steps)
	}
	if s.State() != StateTerminated {
		t.Errorf("expected %s, got %s", StateTerminated, s.State())
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 4})
	s.TogglePause()

	ctx, cancel := context.WithCancel(context.Background())
	s.onStep = func(s *Simulation) {
		if s.Tick() == 3 {
			cancel()
		}
	}

	err := s.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if s.Tick() != 3 {
		t.Errorf("expected cancellation observed after tick 3, got %d", s.Tick())
	}
}

func TestRunWaitsWhilePaused(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{Seed: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if s.Tick() != 0 {
		t.Errorf("expected no ticks while paused, got %d", s.Tick())
	}
}

func TestToggleFullscreen(t *testing.T) {
	s := newTestSim(t, testConfig(t, nil), Options{})
	if s.Fullscreen() {
		t.Fatal("expected windowed by default")
	}
	if !s.ToggleFullscreen() || !s.Fullscreen() {
		t.Error("expected fullscreen after toggle")
	}
	if s.ToggleFullscreen() {
		t.Error("expected windowed after second toggle")
	}
}

func TestPerfPhasesRecorded(t *testing.T) {
	pc := telemetry.NewPerfCollector(10)
	pool := NewWorkerPool(3)
	defer pool.Close()
	s := newRunningSim(t, testConfig(t, nil), Options{Seed: 1, Perf: pc, Dispatcher: pool})
	for i := 0; i < 3; i++ {
		s.Step()
	}

	stats := pc.Stats()
	if stats.Ticks != 3 || stats.Workers != 3 {
		t.Errorf("expected 3 ticks on 3 workers, got %d on %d", stats.Ticks, stats.Workers)
	}
	for _, phase := range []telemetry.Phase{telemetry.PhaseAgentPass, telemetry.PhaseFieldPass, telemetry.PhaseCommit} {
		if stats.PhaseAvg[phase] <= 0 {
			t.Errorf("expected phase %s to be timed", phase)
		}
	}
	if stats.AgentsPerSec <= 0 || stats.CellsPerSec <= 0 {
		t.Errorf("expected pass throughput, got %.0f agents/s and %.0f cells/s", stats.AgentsPerSec, stats.CellsPerSec)
	}
}

func TestStateString(t *testing.T) {
	if StateRunning.String() != "running" || State(99).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

func BenchmarkStep(b *testing.B) {
	cfg := testConfig(b, func(c *config.Config) {
		c.AgentCount = 50000
		c.MapWidth, c.MapHeight = 1280, 720
	})
	s := newRunningSim(b, cfg, Options{Seed: 1})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Step()
	}
}

func BenchmarkStepSerial(b *testing.B) {
	cfg := testConfig(b, func(c *config.Config) {
		c.AgentCount = 50000
		c.MapWidth, c.MapHeight = 1280, 720
	})
	s := newRunningSim(b, cfg, Options{Seed: 1, Dispatcher: SerialDispatcher{}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Step()
	}
}
