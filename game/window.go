package game

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/config"
)

// OpenWindow creates the raylib window sized by cfg.Screen. Escape is
// handled by the game rather than closing the window directly.
func OpenWindow(cfg *config.Config, title string) error {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagVsyncHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), title)
	if !rl.IsWindowReady() {
		return fmt.Errorf("%w: %dx%d", ErrWindow, cfg.Screen.Width, cfg.Screen.Height)
	}

	rl.SetExitKey(rl.KeyNull)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))
	return nil
}

// CloseWindow closes the raylib window.
func CloseWindow() {
	rl.CloseWindow()
}
