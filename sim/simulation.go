// Package sim orchestrates the simulation step: the agent pass, the field
// pass, and the barrier that commits each one.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/systems"
	"github.com/pthm-cable/slime/telemetry"
)

// ErrResource reports that the simulation could not allocate its stores.
var ErrResource = errors.New("sim: resource allocation failed")

// pausePoll is how often Run checks for resume while paused.
const pausePoll = 10 * time.Millisecond

type pass int

const (
	passNone pass = iota
	passAgents
	passField
)

// Options configures a Simulation.
type Options struct {
	Seed int64

	// Dispatcher runs the passes. Nil creates a WorkerPool sized by
	// cfg.Dispatch.Workers, owned and closed by the Simulation.
	Dispatcher Dispatcher

	// Perf receives per-phase timings. May be nil.
	Perf *telemetry.PerfCollector

	// OnStep runs at the end of every step, timed as the telemetry phase.
	OnStep func(s *Simulation)
}

// Simulation owns the agent population and the trail field.
//
// Every method except TogglePause, ToggleFullscreen, Fullscreen, Quit and
// State must be called from one goroutine.
type Simulation struct {
	cfg   *config.Config
	field *systems.Field
	store *systems.AgentStore

	// agents is the pass buffer; each task owns one slot.
	agents []systems.Agent

	dispatch     Dispatcher
	ownsDispatch bool
	perf         *telemetry.PerfCollector
	onStep       func(s *Simulation)

	seed     int64
	seedHash uint32
	tick     int64
	pending  pass

	state      atomic.Int32
	quit       atomic.Bool
	fullscreen atomic.Bool
}

// New validates cfg, allocates the field and agent store, spawns the
// population and returns a paused Simulation. The Simulation keeps its own
// copy of cfg with derived values recomputed, so later edits to cfg have no
// effect.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrConfigInvalid)
	}
	cfg, err := cfg.Clone()
	if err != nil {
		return nil, err
	}

	field, err := systems.NewField(cfg.MapWidth, cfg.MapHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}

	agents, err := systems.Spawn(cfg, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}

	store := systems.NewAgentStore(agents)
	if store.Len() != cfg.AgentCount {
		return nil, fmt.Errorf("%w: agent store holds %d of %d agents", ErrResource, store.Len(), cfg.AgentCount)
	}

	s := &Simulation{
		cfg:      cfg,
		field:    field,
		store:    store,
		agents:   store.Load(nil),
		dispatch: opts.Dispatcher,
		perf:     opts.Perf,
		onStep:   opts.OnStep,
		seed:     opts.Seed,
		seedHash: systems.SeedHash(opts.Seed),
	}
	if s.dispatch == nil {
		s.dispatch = NewWorkerPool(cfg.Dispatch.Workers)
		s.ownsDispatch = true
	}
	if wc, ok := s.dispatch.(interface{ Workers() int }); ok {
		s.perf.SetWorkers(wc.Workers())
	}
	s.state.Store(int32(StatePaused))

	return s, nil
}

// RunAgentPass loads the agents from the store and dispatches one
// sense/steer/move/deposit task per agent. The results are not visible until
// Barrier. It does nothing unless the simulation is running.
func (s *Simulation) RunAgentPass() {
	if s.State() != StateRunning {
		return
	}
	s.settle()
	s.perf.StartPhase(telemetry.PhaseAgentPass)

	s.field.ClearPresence()
	s.agents = s.store.Load(s.agents)
	s.perf.AddWork(len(s.agents), 0)

	cfg, field, agents := s.cfg, s.field, s.agents
	seed, tick := s.seedHash, uint32(s.tick)
	s.dispatch.Dispatch(len(agents), func(start, end int) {
		for i := start; i < end; i++ {
			rnd := systems.RandUnit(seed, tick, uint32(i))
			agents[i] = systems.StepAgent(agents[i], cfg, field, rnd)
		}
	})
	s.pending = passAgents
}

// RunFieldPass dispatches the diffuse/decay rule over the grid rows. The new
// trail is not visible until Barrier. It does nothing unless the simulation
// is running.
func (s *Simulation) RunFieldPass() {
	if s.State() != StateRunning {
		return
	}
	s.settle()
	s.perf.StartPhase(telemetry.PhaseFieldPass)

	field := s.field
	s.perf.AddWork(0, field.Width()*field.Height())
	diffuse := s.cfg.Derived.DiffuseRate32
	decay := s.cfg.Derived.DecayRate32
	s.dispatch.Dispatch(field.Height(), func(y0, y1 int) {
		field.DiffuseRows(y0, y1, diffuse, decay)
	})
	s.pending = passField
}

// Barrier waits for the outstanding pass and commits it: agent results are
// written back to the store, or the new trail buffer is swapped in and the
// tick advances.
func (s *Simulation) Barrier() {
	s.perf.StartWait()
	s.dispatch.Barrier()
	s.perf.EndWait()

	switch s.pending {
	case passAgents:
		s.perf.StartPhase(telemetry.PhaseCommit)
		s.store.Store(s.agents)
	case passField:
		s.perf.StartPhase(telemetry.PhaseCommit)
		s.field.Commit()
		s.tick++
	}
	s.pending = passNone
}

// settle commits a pass left open by a caller that skipped Barrier.
func (s *Simulation) settle() {
	if s.pending != passNone {
		s.Barrier()
	}
}

// Step advances one tick: agent pass, barrier, field pass, barrier. While
// paused or terminated it does nothing.
func (s *Simulation) Step() {
	if s.State() != StateRunning {
		return
	}

	s.perf.StartTick()
	s.RunAgentPass()
	s.Barrier()
	s.RunFieldPass()
	s.Barrier()
	if s.onStep != nil {
		s.perf.StartPhase(telemetry.PhaseTelemetry)
		s.onStep(s)
	}
	s.perf.EndTick()
}

// Update runs cfg.Dispatch.StepsPerUpdate steps if the simulation is running
// and returns how many were taken. A pending Quit is honored first.
func (s *Simulation) Update() int {
	n := 0
	for n < s.cfg.Dispatch.StepsPerUpdate {
		if s.observeQuit() || s.State() != StateRunning {
			break
		}
		s.Step()
		n++
	}
	s.observeQuit()
	return n
}

// Run steps until ctx is done, Quit is called, or maxTicks is reached
// (maxTicks <= 0 means unlimited). While paused it waits without stepping.
// Cancellation is only observed between steps. Run returns ctx.Err() when
// stopped by the context and nil otherwise.
func (s *Simulation) Run(ctx context.Context, maxTicks int64) error {
	defer s.terminate()

	for {
		if s.observeQuit() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxTicks > 0 && s.tick >= maxTicks {
			return nil
		}

		if s.State() != StateRunning {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pausePoll):
			}
			continue
		}

		s.Step()
	}
}

// TogglePause switches between Paused and Running and returns the new
// state. Other states are left unchanged. Safe from any goroutine.
func (s *Simulation) TogglePause() State {
	for {
		cur := State(s.state.Load())
		var next State
		switch cur {
		case StatePaused:
			next = StateRunning
		case StateRunning:
			next = StatePaused
		default:
			return cur
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			return next
		}
	}
}

// ToggleFullscreen flips the fullscreen flag and returns the new value. The
// host applies it to the window.
func (s *Simulation) ToggleFullscreen() bool {
	for {
		cur := s.fullscreen.Load()
		if s.fullscreen.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// Fullscreen reports the fullscreen flag.
func (s *Simulation) Fullscreen() bool {
	return s.fullscreen.Load()
}

// Quit requests termination. Safe from any goroutine; it takes effect at the
// next step boundary.
func (s *Simulation) Quit() {
	s.quit.Store(true)
}

func (s *Simulation) observeQuit() bool {
	if s.quit.Load() {
		s.terminate()
		return true
	}
	return s.State() == StateTerminated
}

func (s *Simulation) terminate() {
	s.state.Store(int32(StateTerminated))
}

// Close terminates the simulation and stops an owned worker pool.
func (s *Simulation) Close() {
	s.settle()
	s.terminate()
	if s.ownsDispatch {
		s.dispatch.Close()
	}
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	return State(s.state.Load())
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int64 {
	return s.tick
}

// Seed returns the seed the population was spawned with.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// Config returns the simulation's configuration. It must not be modified.
func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Field returns the trail field.
func (s *Simulation) Field() *systems.Field {
	return s.field
}

// Agents returns a copy of the committed agent state, read from the store.
func (s *Simulation) Agents() []systems.Agent {
	return s.store.Load(nil)
}

// AgentCount returns the population size.
func (s *Simulation) AgentCount() int {
	return s.store.Len()
}
