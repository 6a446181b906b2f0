// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Configuration failure categories. Callers match them with errors.Is to pick
// an exit status.
var (
	ErrConfigRead    = errors.New("config: read failed")
	ErrConfigInvalid = errors.New("config: invalid settings")
)

// Spawn methods accepted by spawn_method.
const (
	SpawnCenter = "center"
	SpawnRandom = "random"
	SpawnCircle = "circle"
	SpawnRing   = "ring"
)

// RequiredKeys lists the simulation keys a user settings file must define.
var RequiredKeys = []string{
	"agent_count",
	"spawn_method",
	"map_width",
	"map_height",
	"move_speed",
	"turn_speed",
	"sensor_angle",
	"sensor_distance",
	"color_r",
	"color_g",
	"color_b",
	"decay_rate",
	"diffuse_rate",
}

// Config holds all simulation configuration parameters.
// It is immutable once Load returns.
type Config struct {
	AgentCount     int     `yaml:"agent_count"`
	SpawnMethod    string  `yaml:"spawn_method"`
	MapWidth       int     `yaml:"map_width"`
	MapHeight      int     `yaml:"map_height"`
	MoveSpeed      float64 `yaml:"move_speed"`
	TurnSpeed      float64 `yaml:"turn_speed"`
	SensorAngle    float64 `yaml:"sensor_angle"`    // radians
	SensorDistance float64 `yaml:"sensor_distance"` // field pixels
	ColorR         float64 `yaml:"color_r"`         // 0-255
	ColorG         float64 `yaml:"color_g"`         // 0-255
	ColorB         float64 `yaml:"color_b"`         // 0-255
	DecayRate      float64 `yaml:"decay_rate"`      // fraction lost per tick
	DiffuseRate    float64 `yaml:"diffuse_rate"`    // blend toward 3x3 mean per tick

	Seed int64 `yaml:"seed"`

	Screen    ScreenConfig    `yaml:"screen"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings for the host harness.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// DispatchConfig controls the CPU compute backend.
type DispatchConfig struct {
	Workers        int `yaml:"workers"`          // 0 = GOMAXPROCS
	StepsPerUpdate int `yaml:"steps_per_update"` // ticks per Update call
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int     `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	CoverageThreshold   float64 `yaml:"coverage_threshold"`
	SnapshotEvery       int     `yaml:"snapshot_every"`
	SnapshotWidth       int     `yaml:"snapshot_width"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	MoveSpeed32      float32
	TurnSpeed32      float32
	SensorAngle32    float32
	SensorDistance32 float32
	DecayRate32      float32
	DiffuseRate32    float32
	Color            [3]float32 // trail color normalized to [0,1]
	W32, H32         float32
	Cells            int
}

// Load loads configuration from a YAML (or JSON) file, merging with embedded
// defaults. If path is empty, only embedded defaults are used. A user file
// must define every key in RequiredKeys.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing embedded defaults: %v", ErrConfigRead, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrConfigRead, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// merge overlays a user settings document onto cfg.
func (c *Config) merge(data []byte) error {
	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("%w: parsing config file: %v", ErrConfigRead, err)
	}
	for _, k := range RequiredKeys {
		v, ok := keys[k]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing key %q", ErrConfigInvalid, k)
		}
	}

	// Unmarshal into same struct - only overwrites fields present in file
	if err := yaml.Unmarshal(data, c); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
		return fmt.Errorf("%w: parsing config file: %v", ErrConfigRead, err)
	}
	return nil
}

// Validate reports the first setting that would make the simulation unusable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if c.AgentCount <= 0 {
		return invalid("agent_count must be positive, got %d", c.AgentCount)
	}
	switch c.SpawnMethod {
	case SpawnCenter, SpawnRandom, SpawnCircle, SpawnRing:
	default:
		return invalid("spawn_method must be one of center|random|circle|ring, got %q", c.SpawnMethod)
	}
	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		return invalid("map size must be positive, got %dx%d", c.MapWidth, c.MapHeight)
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"move_speed", c.MoveSpeed},
		{"turn_speed", c.TurnSpeed},
		{"sensor_angle", c.SensorAngle},
		{"sensor_distance", c.SensorDistance},
		{"decay_rate", c.DecayRate},
		{"diffuse_rate", c.DiffuseRate},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalid("%s must be finite", f.name)
		}
		// The simulation runs on float32 copies
		if math.IsInf(float64(float32(f.v)), 0) {
			return invalid("%s out of float32 range, got %g", f.name, f.v)
		}
	}
	if c.MoveSpeed < 0 {
		return invalid("move_speed must be >= 0, got %g", c.MoveSpeed)
	}
	if c.SensorDistance < 0 {
		return invalid("sensor_distance must be >= 0, got %g", c.SensorDistance)
	}

	for _, ch := range []struct {
		name string
		v    float64
	}{{"color_r", c.ColorR}, {"color_g", c.ColorG}, {"color_b", c.ColorB}} {
		if ch.v < 0 || ch.v > 255 {
			return invalid("%s must be in [0,255], got %g", ch.name, ch.v)
		}
	}
	if c.DecayRate < 0 || c.DecayRate > 1 {
		return invalid("decay_rate must be in [0,1], got %g", c.DecayRate)
	}
	if c.DiffuseRate < 0 || c.DiffuseRate > 1 {
		return invalid("diffuse_rate must be in [0,1], got %g", c.DiffuseRate)
	}
	if c.Dispatch.Workers < 0 {
		return invalid("dispatch.workers must be >= 0, got %d", c.Dispatch.Workers)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.MoveSpeed32 = float32(c.MoveSpeed)
	c.Derived.TurnSpeed32 = float32(c.TurnSpeed)
	c.Derived.SensorAngle32 = float32(c.SensorAngle)
	c.Derived.SensorDistance32 = float32(c.SensorDistance)
	c.Derived.DecayRate32 = float32(c.DecayRate)
	c.Derived.DiffuseRate32 = float32(c.DiffuseRate)
	c.Derived.Color = [3]float32{
		float32(c.ColorR / 255.0),
		float32(c.ColorG / 255.0),
		float32(c.ColorB / 255.0),
	}
	c.Derived.W32 = float32(c.MapWidth)
	c.Derived.H32 = float32(c.MapHeight)
	c.Derived.Cells = c.MapWidth * c.MapHeight

	// Screen defaults to the map size if not specified
	if c.Screen.Width == 0 {
		c.Screen.Width = c.MapWidth
	}
	if c.Screen.Height == 0 {
		c.Screen.Height = c.MapHeight
	}
	if c.Dispatch.StepsPerUpdate < 1 {
		c.Dispatch.StepsPerUpdate = 1
	}
}

// Clone returns a copy with derived values recomputed. Used by tools that
// tweak settings and rebuild the simulation.
func (c *Config) Clone() (*Config, error) {
	cp := *c
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	cp.computeDerived()
	return &cp, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
