package telemetry

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/pthm-cable/slime/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot describes a saved frame. It is written as JSON next to the PNG.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	RNGSeed int64  `json:"rng_seed"`

	MapWidth   int `json:"map_width"`
	MapHeight  int `json:"map_height"`
	AgentCount int `json:"agent_count"`

	Tick  int64        `json:"tick"`
	Stats *WindowStats `json:"stats,omitempty"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`

	Image string `json:"image"` // PNG file name, relative to the JSON
}

// FieldImage composites trail and presence into an image.
func FieldImage(f *systems.Field) *image.RGBA {
	w, h := f.Width(), f.Height()
	pixels := make([]color.RGBA, w*h)
	f.Composite(pixels)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, p := range pixels {
		o := i * 4
		img.Pix[o] = p.R
		img.Pix[o+1] = p.G
		img.Pix[o+2] = p.B
		img.Pix[o+3] = p.A
	}
	return img
}

// SaveSnapshot writes the field as PNG plus the snapshot metadata as JSON.
// width > 0 downscales the image to that width, keeping the aspect ratio.
// Returns the PNG path.
func SaveSnapshot(snapshot *Snapshot, f *systems.Field, dir string, width int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// Build filename
	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}

	var img image.Image = FieldImage(f)
	if width > 0 && width != f.Width() {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}

	pngPath := filepath.Join(dir, name+".png")
	out, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("create snapshot image: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return "", fmt.Errorf("encode snapshot image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close snapshot image: %w", err)
	}

	snapshot.Version = SnapshotVersion
	snapshot.Image = name + ".png"
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return pngPath, nil
}

// LoadSnapshot reads snapshot metadata from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
