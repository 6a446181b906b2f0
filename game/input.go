package game

import rl "github.com/gen2brain/raylib-go/raylib"

// handleInput processes keyboard input.
//
//	Space  pause / resume
//	F11    fullscreen
//	Esc    quit
func (g *Game) handleInput() {
	if rl.IsKeyPressed(rl.KeySpace) {
		g.sim.TogglePause()
	}

	if rl.IsKeyPressed(rl.KeyF11) {
		g.sim.ToggleFullscreen()
	}
	if g.sim.Fullscreen() != rl.IsWindowFullscreen() {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeyEscape) {
		g.sim.Quit()
	}
}
