package game

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/sim"
)

// Draw renders the field and HUD.
func (g *Game) Draw() {
	g.perfCollector.RecordFrame()
	g.field.Update(g.sim.Field())

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	g.field.Draw(float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight()))
	g.drawHUD()

	rl.EndDrawing()
}

// drawHUD renders tick, population and throughput.
func (g *Game) drawHUD() {
	rl.DrawRectangle(5, 5, 260, 105, rl.Color{R: 0, G: 0, B: 0, A: 160})

	rl.DrawText(fmt.Sprintf("Tick: %d", g.sim.Tick()), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Agents: %d  FPS: %d", g.sim.AgentCount(), rl.GetFPS()), 10, 35, 20, rl.White)

	switch g.sim.State() {
	case sim.StatePaused:
		rl.DrawText("PAUSED [Space]", 10, 60, 20, rl.Yellow)
	default:
		stats := g.perfCollector.Stats()
		rl.DrawText(fmt.Sprintf("TPS: %.0f  wait %.0f%%", stats.TicksPerSec, stats.WaitPct), 10, 60, 20, rl.White)
	}

	if g.lastStats != nil {
		rl.DrawText(fmt.Sprintf("coverage %.3f", g.lastStats.Coverage), 10, 90, 16, rl.LightGray)
	}
}
