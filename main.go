package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/game"
	"github.com/pthm-cable/slime/sim"
)

// Exit codes, one per failure class.
const (
	exitConfigRead    = 2
	exitConfigInvalid = 3
	exitResource      = 4
	exitWindow        = 5
	exitOutput        = 6
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to settings file, YAML or JSON (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for PNG snapshots")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, or time-based if that is 0)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 0, "Simulation ticks per update call (0 = use config)")
	workers := flag.Int("workers", -1, "Worker goroutines (-1 = use config, 0 = GOMAXPROCS)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	runID := uuid.NewString()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("run_id", runID)
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath, *stepsPerUpdate, *workers)
	if err != nil {
		fail("config", err)
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := game.Options{
		RunID:       runID,
		Seed:        rngSeed,
		Headless:    *headless,
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
	}

	if *headless {
		g, err := game.NewGame(cfg, opts)
		if err != nil {
			fail("simulation", err)
		}
		defer g.Unload()

		slog.Info("starting headless simulation",
			"seed", rngSeed,
			"max_ticks", *maxTicks,
			"steps_per_update", cfg.Dispatch.StepsPerUpdate,
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := g.Run(ctx, *maxTicks); err != nil {
			slog.Error("simulation stopped", "error", err)
		}
		return
	}

	// Graphical mode
	if err := game.OpenWindow(cfg, "Slime"); err != nil {
		fail("window", err)
	}
	defer game.CloseWindow()

	g, err := game.NewGame(cfg, opts)
	if err != nil {
		game.CloseWindow()
		fail("simulation", err)
	}
	defer g.Unload()

	for !g.ShouldClose() {
		g.Update()
		g.Draw()

		if *maxTicks > 0 && g.Tick() >= *maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			break
		}
	}
}

// loadConfig reads the settings file and applies command-line overrides.
func loadConfig(path string, stepsPerUpdate, workers int) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if stepsPerUpdate <= 0 && workers < 0 {
		return cfg, nil
	}

	if stepsPerUpdate > 0 {
		cfg.Dispatch.StepsPerUpdate = stepsPerUpdate
	}
	if workers >= 0 {
		cfg.Dispatch.Workers = workers
	}
	return cfg.Clone()
}

// fail logs err against the failing subsystem and exits with its code.
func fail(subsystem string, err error) {
	slog.Error("startup failed", "subsystem", subsystem, "error", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrConfigRead):
		return exitConfigRead
	case errors.Is(err, config.ErrConfigInvalid):
		return exitConfigInvalid
	case errors.Is(err, sim.ErrResource):
		return exitResource
	case errors.Is(err, game.ErrWindow):
		return exitWindow
	case errors.Is(err, game.ErrOutput):
		return exitOutput
	default:
		return 1
	}
}
