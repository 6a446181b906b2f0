// Package game hosts the simulation: window, input, rendering and telemetry.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/renderer"
	"github.com/pthm-cable/slime/sim"
	"github.com/pthm-cable/slime/telemetry"
)

var (
	// ErrWindow reports that the window or graphics context could not open.
	ErrWindow = errors.New("game: window initialization failed")
	// ErrOutput reports that the output directory could not be prepared.
	ErrOutput = errors.New("game: output setup failed")
)

// Options configures a Game.
type Options struct {
	RunID       string
	Seed        int64
	Headless    bool
	LogStats    bool
	OutputDir   string // CSV logs and config snapshot, empty disables
	SnapshotDir string // PNG snapshots, empty disables
}

// Game wires a Simulation to its host: input, rendering and telemetry.
type Game struct {
	cfg *config.Config
	sim *sim.Simulation

	runID    string
	headless bool

	// Rendering
	field *renderer.FieldRenderer

	// Telemetry
	perfCollector    *telemetry.PerfCollector
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	logStats         bool
	snapshotDir      string
	snapshotEvery    int64
	snapshotWidth    int
	lastStats        *telemetry.WindowStats
}

// NewGame builds the simulation and its telemetry. In graphical mode the
// window must already be open (see OpenWindow).
func NewGame(cfg *config.Config, opts Options) (*Game, error) {
	if !opts.Headless && !rl.IsWindowReady() {
		return nil, fmt.Errorf("%w: window not open", ErrWindow)
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, fmt.Errorf("%w: %v", ErrOutput, err)
	}

	g := &Game{
		cfg:              cfg,
		runID:            opts.RunID,
		headless:         opts.Headless,
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:        telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Telemetry.CoverageThreshold),
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		outputManager:    om,
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
		snapshotEvery:    int64(cfg.Telemetry.SnapshotEvery),
		snapshotWidth:    cfg.Telemetry.SnapshotWidth,
	}

	g.sim, err = sim.New(cfg, sim.Options{
		Seed:   opts.Seed,
		Perf:   g.perfCollector,
		OnStep: g.afterStep,
	})
	if err != nil {
		om.Close()
		return nil, err
	}

	if !opts.Headless {
		g.field = renderer.NewFieldRenderer()
	}

	slog.Info("simulation ready",
		"run_id", g.runID,
		"seed", opts.Seed,
		"agents", cfg.AgentCount,
		"spawn_method", cfg.SpawnMethod,
		"map_width", cfg.MapWidth,
		"map_height", cfg.MapHeight,
		"state", g.sim.State().String(),
	)

	return g, nil
}

// Update handles input and advances the simulation one frame.
func (g *Game) Update() {
	g.handleInput()
	g.sim.Update()
}

// Run steps without a window until ctx is done, Quit is requested, or
// maxTicks is reached. The simulation is resumed first since there is no
// key to unpause it.
func (g *Game) Run(ctx context.Context, maxTicks int64) error {
	if g.sim.State() == sim.StatePaused {
		g.sim.TogglePause()
	}
	err := g.sim.Run(ctx, maxTicks)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Info("simulation interrupted", "run_id", g.runID, "tick", g.sim.Tick())
		return nil
	}
	return err
}

// ShouldClose reports whether the host loop should exit.
func (g *Game) ShouldClose() bool {
	if g.sim.State() == sim.StateTerminated {
		return true
	}
	return !g.headless && rl.WindowShouldClose()
}

// Sim returns the hosted simulation.
func (g *Game) Sim() *sim.Simulation {
	return g.sim
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() int64 {
	return g.sim.Tick()
}

// Unload stops the simulation and releases every resource.
func (g *Game) Unload() {
	g.sim.Close()
	if g.field != nil {
		g.field.Unload()
	}
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}

	slog.Info("simulation finished",
		"run_id", g.runID,
		"tick", g.sim.Tick(),
		"perf", g.perfCollector.Stats(),
	)
}
