package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/slime/config"
)

func TestSpawnMethods(t *testing.T) {
	for _, method := range []string{config.SpawnCenter, config.SpawnRandom, config.SpawnCircle, config.SpawnRing} {
		t.Run(method, func(t *testing.T) {
			cfg := testConfig(t, func(c *config.Config) {
				c.AgentCount = 2000
				c.SpawnMethod = method
				c.MapWidth, c.MapHeight = 300, 200
			})

			agents, err := Spawn(cfg, rand.New(rand.NewSource(11)))
			if err != nil {
				t.Fatalf("Spawn: %v", err)
			}
			if len(agents) != cfg.AgentCount {
				t.Fatalf("expected %d agents, got %d", cfg.AgentCount, len(agents))
			}

			maxRadius := float64(300+200) / 10
			for i, a := range agents {
				if a.X < 0 || a.X >= 300 || a.Y < 0 || a.Y >= 200 {
					t.Fatalf("agent %d out of bounds: (%.3f, %.3f)", i, a.X, a.Y)
				}
				if a.Angle < 0 || a.Angle >= twoPi {
					t.Fatalf("agent %d heading out of range: %.4f", i, a.Angle)
				}

				r := math.Hypot(float64(a.X-150), float64(a.Y-100))
				switch method {
				case config.SpawnCenter:
					if a.X != 150 || a.Y != 100 {
						t.Fatalf("expected agent %d at center, got (%.3f, %.3f)", i, a.X, a.Y)
					}
				case config.SpawnCircle:
					if r > maxRadius+1e-3 {
						t.Fatalf("agent %d outside circle: r=%.3f", i, r)
					}
				case config.SpawnRing:
					if math.Abs(r-maxRadius) > 1e-3 {
						t.Fatalf("expected agent %d on ring r=%.1f, got %.3f", i, maxRadius, r)
					}
				}
			}
		})
	}
}

func TestSpawnDeterministic(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.AgentCount = 100 })

	a, _ := Spawn(cfg, rand.New(rand.NewSource(5)))
	b, _ := Spawn(cfg, rand.New(rand.NewSource(5)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("agent %d differs for equal seeds: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSpawnRandomCoversGrid(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.AgentCount = 4000
		c.SpawnMethod = config.SpawnRandom
		c.MapWidth, c.MapHeight = 100, 100
	})
	agents, err := Spawn(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	var quadrants [4]int
	for _, a := range agents {
		q := 0
		if a.X >= 50 {
			q++
		}
		if a.Y >= 50 {
			q += 2
		}
		quadrants[q]++
	}
	for q, n := range quadrants {
		if n < 800 {
			t.Errorf("expected roughly uniform spread, quadrant %d has %d agents", q, n)
		}
	}
}
