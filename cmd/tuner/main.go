// Interactive tuner for the slime mold parameters: a small simulation with
// sliders for the movement and trail settings.
//
// Usage: go run ./cmd/tuner [-config settings.yaml] [-out tuned.yaml]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/slime/config"
	"github.com/pthm-cable/slime/renderer"
	"github.com/pthm-cable/slime/sim"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30

	// The preview runs on a reduced grid so slider changes restart quickly.
	previewGrid   = 256
	previewAgents = 20000
)

// slider describes one tunable parameter.
type slider struct {
	label    string
	min, max float32
	format   string
	value    *float64
}

func main() {
	configPath := flag.String("config", "", "Settings file to start from (empty = defaults)")
	outPath := flag.String("out", "tuned.yaml", "File written by the Save button")
	seed := flag.Int64("seed", 1, "RNG seed for the preview population")
	flag.Parse()

	base, err := config.Load(*configPath)
	if err != nil {
		fail("config", err)
	}
	params := *base

	rl.InitWindow(windowWidth, windowHeight, "Slime Tuner")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	field := renderer.NewFieldRenderer()
	defer field.Unload()

	s, err := newPreview(&params, *seed)
	if err != nil {
		rl.CloseWindow()
		fail("simulation", err)
	}
	s.TogglePause()
	defer func() { s.Close() }()

	sliders := []slider{
		{"Move speed (pixels per tick)", 0.1, 5, "%.2f", &params.MoveSpeed},
		{"Turn speed (radians per tick)", 0, math.Pi, "%.2f", &params.TurnSpeed},
		{"Sensor angle (radians)", 0, math.Pi / 2, "%.2f", &params.SensorAngle},
		{"Sensor distance (pixels)", 0, 50, "%.1f", &params.SensorDistance},
		{"Decay rate", 0, 0.2, "%.3f", &params.DecayRate},
		{"Diffuse rate", 0, 1, "%.2f", &params.DiffuseRate},
	}

	needsRestart := false
	status := ""

	for !rl.WindowShouldClose() {
		if needsRestart {
			next, err := newPreview(&params, *seed)
			if err != nil {
				status = err.Error()
			} else {
				s.Close()
				s = next
				s.TogglePause()
				status = ""
			}
			needsRestart = false
		}

		s.Update()
		field.Update(s.Field())

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Preview is drawn into a fixed square inset
		rl.DrawRectangle(10, 10, previewSize, previewSize, rl.Black)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)
		drawPreview(field)

		statsY := int32(previewSize + 25)
		f := s.Field()
		rl.DrawText(fmt.Sprintf("Tick: %d  Agents: %d", s.Tick(), s.AgentCount()), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Trail mass: %.1f", f.Mass()), 15, statsY+20, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("State: %s", s.State()), 15, statsY+40, 16, rl.DarkGray)
		if status != "" {
			rl.DrawText(status, 15, statsY+60, 14, rl.Red)
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Slime Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		for _, sl := range sliders {
			rl.DrawText(sl.label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			cur := float32(*sl.value)
			next := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				fmt.Sprintf(sl.format, sl.min), fmt.Sprintf(sl.format, sl.max),
				cur, sl.min, sl.max,
			)
			rl.DrawText(fmt.Sprintf(sl.format, cur), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			if next != cur {
				*sl.value = float64(next)
				needsRestart = true
			}
			panelY += 35
		}

		rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
		panelY += 15

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(s.State() == sim.StateRunning, "Pause", "Resume")) {
			s.TogglePause()
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Restart") {
			needsRestart = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			*seed = int64(rl.GetRandomValue(1, 99999))
			needsRestart = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = *base
			needsRestart = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 250, Height: 30}, "Save "+*outPath) {
			if err := saveSettings(*outPath, &params); err != nil {
				status = err.Error()
			} else {
				status = "saved " + *outPath
			}
		}
		panelY += 45

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range settingsLines(&params) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			if data, err := yaml.Marshal(tunedSettings(&params)); err == nil {
				rl.SetClipboardText(string(data))
			}
		}

		rl.EndDrawing()
	}
}

// Exit codes match the slime binary for the failures both can hit.
const (
	exitConfigRead    = 2
	exitConfigInvalid = 3
	exitResource      = 4
)

func fail(subsystem string, err error) {
	slog.Error("tuner startup failed", "subsystem", subsystem, "error", err)
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
	default:
		return 1
	}
}

// newPreview builds a serial simulation on the reduced preview grid using
// the tuned parameters.
func newPreview(params *config.Config, seed int64) (*sim.Simulation, error) {
	p := *params
	p.MapWidth, p.MapHeight = previewGrid, previewGrid
	p.AgentCount = min(p.AgentCount, previewAgents)
	p.Dispatch.StepsPerUpdate = 1

	cfg, err := p.Clone()
	if err != nil {
		return nil, err
	}
	return sim.New(cfg, sim.Options{Seed: seed, Dispatcher: sim.SerialDispatcher{}})
}

func drawPreview(field *renderer.FieldRenderer) {
	rl.BeginScissorMode(10, 10, previewSize, previewSize)
	defer rl.EndScissorMode()

	// FieldRenderer draws from the origin; shift it into the inset
	cam := rl.Camera2D{Offset: rl.Vector2{X: 10, Y: 10}, Zoom: 1}
	rl.BeginMode2D(cam)
	field.Draw(previewSize, previewSize)
	rl.EndMode2D()
}

// tuned holds the keys the tuner edits, in settings-file form.
type tuned struct {
	MoveSpeed      float64 `yaml:"move_speed"`
	TurnSpeed      float64 `yaml:"turn_speed"`
	SensorAngle    float64 `yaml:"sensor_angle"`
	SensorDistance float64 `yaml:"sensor_distance"`
	DecayRate      float64 `yaml:"decay_rate"`
	DiffuseRate    float64 `yaml:"diffuse_rate"`
}

func tunedSettings(c *config.Config) tuned {
	return tuned{
		MoveSpeed:      round(c.MoveSpeed, 3),
		TurnSpeed:      round(c.TurnSpeed, 3),
		SensorAngle:    round(c.SensorAngle, 3),
		SensorDistance: round(c.SensorDistance, 2),
		DecayRate:      round(c.DecayRate, 4),
		DiffuseRate:    round(c.DiffuseRate, 3),
	}
}

func settingsLines(c *config.Config) []string {
	t := tunedSettings(c)
	return []string{
		fmt.Sprintf("move_speed: %g", t.MoveSpeed),
		fmt.Sprintf("turn_speed: %g", t.TurnSpeed),
		fmt.Sprintf("sensor_angle: %g", t.SensorAngle),
		fmt.Sprintf("sensor_distance: %g", t.SensorDistance),
		fmt.Sprintf("decay_rate: %g", t.DecayRate),
		fmt.Sprintf("diffuse_rate: %g", t.DiffuseRate),
	}
}

// saveSettings writes a complete settings file: the full configuration with
// the tuned values applied.
func saveSettings(path string, c *config.Config) error {
	out, err := c.Clone()
	if err != nil {
		return err
	}
	t := tunedSettings(c)
	out.MoveSpeed, out.TurnSpeed = t.MoveSpeed, t.TurnSpeed
	out.SensorAngle, out.SensorDistance = t.SensorAngle, t.SensorDistance
	out.DecayRate, out.DiffuseRate = t.DecayRate, t.DiffuseRate

	return out.WriteYAML(path)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
