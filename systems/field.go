package systems

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync/atomic"
	"unsafe"
)

// Channels is the number of float32 values stored per cell (RGBA).
const Channels = 4

// Field is the shared 2D store agents read and write: a persistent trail grid
// that diffuses and decays, and an agent-presence grid rewritten every tick.
//
// Trail writes from the agent pass go to a separate deposit layer, so sensors
// read a stable snapshot for the whole pass. The field pass folds deposits in
// (per-channel max), diffuses into the back buffer, and Commit swaps it in.
type Field struct {
	W, H int

	trail    []float32 // front buffer, read by sensors
	next     []float32 // back buffer, written by the field pass
	deposit  []float32 // this tick's deposits, combined by max
	presence []float32 // agent occupancy, last write wins
}

// MaxCells bounds the grid size. Four float32 layers of RGBA at this size
// take 4 GiB.
const MaxCells = 1 << 26

// ErrFieldTooLarge reports a grid above MaxCells.
var ErrFieldTooLarge = errors.New("field exceeds cell limit")

// NewField allocates a w×h field with every channel zeroed.
func NewField(w, h int) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("field size must be positive, got %dx%d", w, h)
	}
	if w > MaxCells/h {
		return nil, fmt.Errorf("%w: %dx%d > %d cells", ErrFieldTooLarge, w, h, MaxCells)
	}
	n := w * h * Channels
	return &Field{
		W:        w,
		H:        h,
		trail:    make([]float32, n),
		next:     make([]float32, n),
		deposit:  make([]float32, n),
		presence: make([]float32, n),
	}, nil
}

// Width returns the grid width in cells.
func (f *Field) Width() int { return f.W }

// Height returns the grid height in cells.
func (f *Field) Height() int { return f.H }

func (f *Field) index(x, y int) int {
	return (y*f.W + x) * Channels
}

// Trail returns the committed trail value of a cell.
func (f *Field) Trail(x, y int) [Channels]float32 {
	i := f.index(x, y)
	return [Channels]float32(f.trail[i : i+Channels])
}

// SetTrail overwrites the committed trail value of a cell, clamped to [0,1].
func (f *Field) SetTrail(x, y int, v [Channels]float32) {
	i := f.index(x, y)
	for c := 0; c < Channels; c++ {
		f.trail[i+c] = clamp01(v[c])
	}
}

// Presence returns the agent-presence value of a cell.
func (f *Field) Presence(x, y int) [Channels]float32 {
	i := f.index(x, y)
	return [Channels]float32(f.presence[i : i+Channels])
}

// Pending returns the uncommitted deposit of a cell for the current tick.
func (f *Field) Pending(x, y int) [Channels]float32 {
	i := f.index(x, y)
	return [Channels]float32(f.deposit[i : i+Channels])
}

// Intensity is the trail strength a sensor perceives: the sum of the color
// channels of the committed trail.
func (f *Field) Intensity(x, y int) float32 {
	i := f.index(x, y)
	return f.trail[i] + f.trail[i+1] + f.trail[i+2]
}

// Deposit lays trail color at a cell. Safe for concurrent use: colliding
// deposits combine by per-channel max, so the result does not depend on
// which agent lands first.
func (f *Field) Deposit(x, y int, rgb [3]float32) {
	i := f.index(x, y)
	for c := 0; c < 3; c++ {
		atomicMaxFloat32(&f.deposit[i+c], clamp01(rgb[c]))
	}
	atomicMaxFloat32(&f.deposit[i+3], 1)
}

// Mark flags a cell as occupied in the presence grid. Safe for concurrent use.
func (f *Field) Mark(x, y int) {
	i := f.index(x, y)
	one := math.Float32bits(1)
	for c := 0; c < Channels; c++ {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&f.presence[i+c])), one)
	}
}

// ClearPresence resets the presence grid before an agent pass.
func (f *Field) ClearPresence() {
	clear(f.presence)
}

// committed is the trail value including this tick's deposits.
func (f *Field) committed(i int) float32 {
	return max(f.trail[i], f.deposit[i])
}

// DiffuseRows runs the diffuse/decay rule for rows [y0, y1), writing the back
// buffer. Each cell blends toward the mean of its 3x3 neighborhood, truncated
// at the grid edge, then decays. Rows are independent so callers may split
// the grid across workers.
func (f *Field) DiffuseRows(y0, y1 int, diffuseRate, decayRate float32) {
	w, h := f.W, f.H
	keep := 1 - decayRate

	for y := y0; y < y1; y++ {
		ylo := max(y-1, 0)
		yhi := min(y+1, h-1)
		for x := 0; x < w; x++ {
			xlo := max(x-1, 0)
			xhi := min(x+1, w-1)

			var sum [Channels]float32
			for ny := ylo; ny <= yhi; ny++ {
				row := ny * w
				for nx := xlo; nx <= xhi; nx++ {
					j := (row + nx) * Channels
					for c := 0; c < Channels; c++ {
						sum[c] += f.committed(j + c)
					}
				}
			}
			n := float32((yhi - ylo + 1) * (xhi - xlo + 1))

			i := f.index(x, y)
			for c := 0; c < Channels; c++ {
				old := f.committed(i + c)
				v := old + (sum[c]/n-old)*diffuseRate
				f.next[i+c] = clamp01(v * keep)
			}
		}
	}
}

// Commit publishes the field pass: the back buffer becomes the trail and the
// deposit layer is emptied for the next tick.
func (f *Field) Commit() {
	f.trail, f.next = f.next, f.trail
	clear(f.deposit)
}

// TrailData returns the committed trail grid (RGBA, row-major).
func (f *Field) TrailData() []float32 {
	return f.trail
}

// PresenceData returns the presence grid (RGBA, row-major).
func (f *Field) PresenceData() []float32 {
	return f.presence
}

// Mass returns the sum of every trail channel.
func (f *Field) Mass() float64 {
	var sum float64
	for _, v := range f.trail {
		sum += float64(v)
	}
	return sum
}

// Composite blends trail and presence into display pixels. dst must hold
// W*H entries.
func (f *Field) Composite(dst []color.RGBA) {
	for p := range dst {
		i := p * Channels
		r := clamp01(f.trail[i] + f.presence[i])
		g := clamp01(f.trail[i+1] + f.presence[i+1])
		b := clamp01(f.trail[i+2] + f.presence[i+2])
		dst[p] = color.RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: 255}
	}
}

func toByte(v float32) uint8 {
	return uint8(v*255 + 0.5)
}

// atomicMaxFloat32 raises *addr to v. Only valid for non-negative values,
// whose IEEE bit patterns order like the floats themselves.
func atomicMaxFloat32(addr *float32, v float32) {
	p := (*uint32)(unsafe.Pointer(addr))
	bits := math.Float32bits(v)
	for {
		old := atomic.LoadUint32(p)
		if old >= bits {
			return
		}
		if atomic.CompareAndSwapUint32(p, old, bits) {
			return
		}
	}
}
