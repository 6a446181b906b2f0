package systems

import (
	"math"

	"github.com/pthm-cable/slime/config"
)

// Agent is a single simulated particle.
type Agent struct {
	X, Y  float32 // field-pixel coordinates
	Angle float32 // heading in radians
}

// Cell returns the grid cell the agent occupies. Positions produced by
// UpdateAgent always map inside the grid.
func (a Agent) Cell() (int, int) {
	return int(a.X), int(a.Y)
}

// Sensors holds the three trail readings an agent steers by.
type Sensors struct {
	Left, Center, Right float32
}

// Sense reads trail intensity sensorDistance ahead of the agent along its
// heading and the two offset directions.
func Sense(a Agent, cfg *config.Config, f *Field) Sensors {
	d := cfg.Derived.SensorDistance32
	off := cfg.Derived.SensorAngle32
	return Sensors{
		Left:   sample(f, a.X, a.Y, a.Angle-off, d),
		Center: sample(f, a.X, a.Y, a.Angle, d),
		Right:  sample(f, a.X, a.Y, a.Angle+off, d),
	}
}

// sample reads the trail at the point dist along angle, rounded to the
// nearest cell and clamped into the grid.
func sample(f *Field, x, y, angle, dist float32) float32 {
	sx := x + fastCos(angle)*dist
	sy := y + fastSin(angle)*dist
	return f.Intensity(roundToCell(sx, f.W), roundToCell(sy, f.H))
}

// Steer returns the new heading for the given readings. rnd is a random
// unit in [0,1) that scales the turn.
func Steer(angle float32, s Sensors, turnSpeed, rnd float32) float32 {
	switch {
	case s.Center >= s.Left && s.Center >= s.Right:
		return angle
	case s.Left > s.Right:
		return angle - turnSpeed*rnd
	case s.Right > s.Left:
		return angle + turnSpeed*rnd
	default:
		// Both sides equal and stronger than center: pick a side at random
		return angle + (2*rnd-1)*turnSpeed
	}
}

// UpdateAgent applies one tick of the agent rule without side effects:
// sense, steer, move, then reflect off the grid edge.
//
// Leaving the grid through a vertical edge mirrors the heading about the
// Y axis (a = π - a); a horizontal edge mirrors it about the X axis
// (a = -a). A corner exit does both. The position is clamped into
// [0,W) x [0,H).
func UpdateAgent(a Agent, cfg *config.Config, f *Field, rnd float32) Agent {
	s := Sense(a, cfg, f)
	angle := Steer(a.Angle, s, cfg.Derived.TurnSpeed32, rnd)

	speed := cfg.Derived.MoveSpeed32
	x := a.X + fastCos(angle)*speed
	y := a.Y + fastSin(angle)*speed

	w, h := cfg.Derived.W32, cfg.Derived.H32
	if x < 0 || x >= w {
		angle = math.Pi - angle
		x = clampCoord(x, w)
	}
	if y < 0 || y >= h {
		angle = -angle
		y = clampCoord(y, h)
	}

	return Agent{X: x, Y: y, Angle: wrapAngle(angle)}
}

// StepAgent runs UpdateAgent and applies the tick's side effects: a trail
// deposit and a presence mark at the new cell.
func StepAgent(a Agent, cfg *config.Config, f *Field, rnd float32) Agent {
	next := UpdateAgent(a, cfg, f, rnd)
	cx, cy := next.Cell()
	f.Deposit(cx, cy, cfg.Derived.Color)
	f.Mark(cx, cy)
	return next
}

func fastCos(a float32) float32 {
	return float32(math.Cos(float64(a)))
}

func fastSin(a float32) float32 {
	return float32(math.Sin(float64(a)))
}
