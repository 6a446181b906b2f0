// Package renderer draws the trail field with raylib.
package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/slime/systems"
)

// FieldRenderer uploads the composited trail and presence grids to a texture
// and draws it stretched over the window.
type FieldRenderer struct {
	tex         rl.Texture2D
	texW, texH  int
	pixels      []color.RGBA
	initialized bool
}

// NewFieldRenderer creates a renderer. Init runs lazily on the first Update,
// after the raylib window exists.
func NewFieldRenderer() *FieldRenderer {
	return &FieldRenderer{}
}

// Init allocates a w×h texture.
func (r *FieldRenderer) Init(w, h int) {
	if r.initialized {
		return
	}

	r.texW = w
	r.texH = h
	r.pixels = make([]color.RGBA, w*h)

	img := rl.GenImageColor(w, h, rl.Black)
	r.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(r.tex, rl.FilterPoint)
	rl.UnloadImage(img)

	r.initialized = true
}

// Update composites the field and uploads it to the GPU.
func (r *FieldRenderer) Update(f *systems.Field) {
	if !r.initialized {
		r.Init(f.Width(), f.Height())
	}
	if f.Width() != r.texW || f.Height() != r.texH {
		return
	}

	f.Composite(r.pixels)
	rl.UpdateTexture(r.tex, r.pixels)
}

// Draw renders the field texture over a screenW×screenH area.
func (r *FieldRenderer) Draw(screenW, screenH float32) {
	if !r.initialized {
		return
	}

	srcRect := rl.Rectangle{X: 0, Y: 0, Width: float32(r.texW), Height: float32(r.texH)}
	dstRect := rl.Rectangle{X: 0, Y: 0, Width: screenW, Height: screenH}
	rl.DrawTexturePro(r.tex, srcRect, dstRect, rl.Vector2{}, 0, rl.White)
}

// Unload frees GPU resources.
func (r *FieldRenderer) Unload() {
	if !r.initialized {
		return
	}
	rl.UnloadTexture(r.tex)
	r.initialized = false
}
