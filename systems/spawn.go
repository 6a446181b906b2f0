package systems

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/slime/config"
)

// Spawn creates the initial population according to cfg.SpawnMethod.
//
//   - center: every agent at the grid center
//   - random: uniform over the grid
//   - circle: uniform radius in [0, (W+H)/10] around the center
//   - ring:   radius exactly (W+H)/10 around the center
//
// Headings are uniform in [0, 2π). Positions are clamped into the grid.
func Spawn(cfg *config.Config, rng *rand.Rand) ([]Agent, error) {
	w, h := cfg.Derived.W32, cfg.Derived.H32
	cx := float32(cfg.MapWidth / 2)
	cy := float32(cfg.MapHeight / 2)
	maxRadius := (cfg.MapWidth + cfg.MapHeight) / 10

	agents := make([]Agent, cfg.AgentCount)
	for i := range agents {
		a := &agents[i]
		switch cfg.SpawnMethod {
		case config.SpawnCenter:
			a.X, a.Y = cx, cy
		case config.SpawnRandom:
			a.X = rng.Float32() * w
			a.Y = rng.Float32() * h
		case config.SpawnCircle:
			r := float32(rng.Intn(maxRadius + 1))
			t := rng.Float32() * twoPi
			a.X = cx + r*fastCos(t)
			a.Y = cy + r*fastSin(t)
		case config.SpawnRing:
			r := float32(maxRadius)
			t := rng.Float32() * twoPi
			a.X = cx + r*fastCos(t)
			a.Y = cy + r*fastSin(t)
		default:
			return nil, fmt.Errorf("unknown spawn method %q", cfg.SpawnMethod)
		}
		a.Angle = wrapAngle(rng.Float32() * twoPi)
		a.X = clampCoord(a.X, w)
		a.Y = clampCoord(a.Y, h)
	}
	return agents, nil
}
