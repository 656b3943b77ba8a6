// Package config loads tilespawner settings from YAML and the environment.
package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
)

// Defaults.
const (
	DefaultSpawnInterval = 150 * time.Millisecond
	DefaultHistoryDB     = "tilespawner.db"
	DefaultSSHAddr       = "0.0.0.0:2323"
	DefaultHostKeyPath   = ".ssh/tilespawner_ed25519"
	DefaultHTTPAddr      = "127.0.0.1:8080"
	DefaultSessionsPerIP = 2

	// MaxGridSide caps the cells per side of any grid, fitted or configured.
	MaxGridSide = 256

	envPrefix         = "TILESPAWNER_"
	customPaletteID   = "custom"
	customPathColor   = "#5C5C5C"
	customCursorColor = "#FFD700"
)

// Vec2 is a world position as written in the config file.
type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// CameraConfig fixes the camera instead of fitting it to the screen.
type CameraConfig struct {
	Position Vec2    `yaml:"position"`
	Size     float64 `yaml:"size"`   // Orthographic half-height
	Aspect   float64 `yaml:"aspect"` // Width / height
}

// SSHConfig configures the SSH viewer.
type SSHConfig struct {
	Addr             string `yaml:"addr"`
	HostKeyPath      string `yaml:"host_key_path"`
	MaxSessionsPerIP int    `yaml:"max_sessions_per_ip"`
}

// HTTPConfig configures the websocket stream.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a time.Duration written as a Go duration string ("150ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds all tilespawner options.
type Config struct {
	// Seed for random number generation. A seed of 0 means a random seed
	// is picked for every walk.
	Seed int64 `yaml:"seed"`

	// Start is the spawner's starting position. Nil starts at the camera centre.
	Start *Vec2 `yaml:"start"`

	// Camera fixes the viewport. Nil fits the camera to the screen.
	Camera *CameraConfig `yaml:"camera"`

	Palette string   `yaml:"palette"`
	Colors  []string `yaml:"colors"` // Overrides Palette when set

	SpawnInterval Duration `yaml:"spawn_interval"`
	Autoplay      bool     `yaml:"autoplay"`
	DrawPath      bool     `yaml:"draw_path"`
	MaxTiles      int      `yaml:"max_tiles"` // 0 means until exhausted

	HistoryDB string `yaml:"history_db"`

	SSH  SSHConfig  `yaml:"ssh"`
	HTTP HTTPConfig `yaml:"http"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Palette:       palette.DefaultID,
		SpawnInterval: Duration(DefaultSpawnInterval),
		Autoplay:      true,
		DrawPath:      true,
		HistoryDB:     DefaultHistoryDB,
		SSH: SSHConfig{
			Addr:             DefaultSSHAddr,
			HostKeyPath:      DefaultHostKeyPath,
			MaxSessionsPerIP: DefaultSessionsPerIP,
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
	}
}

// Load reads a YAML config file on top of the defaults. The file is checked
// against the embedded JSON schema before decoding.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Validate(raw); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Check()
}

// ApplyEnv overrides fields from TILESPAWNER_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", envPrefix, err)
		}
		c.Seed = seed
	}
	if v, ok := lookup(envPrefix + "PALETTE"); ok {
		c.Palette = v
	}
	if v, ok := lookup(envPrefix + "SPAWN_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSPAWN_INTERVAL: %w", envPrefix, err)
		}
		c.SpawnInterval = Duration(d)
	}
	if v, ok := lookup(envPrefix + "AUTOPLAY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUTOPLAY: %w", envPrefix, err)
		}
		c.Autoplay = b
	}
	if v, ok := lookup(envPrefix + "DRAW_PATH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDRAW_PATH: %w", envPrefix, err)
		}
		c.DrawPath = b
	}
	if v, ok := lookup(envPrefix + "MAX_TILES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_TILES: %w", envPrefix, err)
		}
		c.MaxTiles = n
	}
	if v, ok := lookup(envPrefix + "HISTORY_DB"); ok {
		c.HistoryDB = v
	}
	if v, ok := lookup(envPrefix + "SSH_ADDR"); ok {
		c.SSH.Addr = v
	}
	if v, ok := lookup(envPrefix + "SSH_HOST_KEY"); ok {
		c.SSH.HostKeyPath = v
	}
	if v, ok := lookup(envPrefix + "HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	return c.Check()
}

// Check reports semantic errors the schema cannot express.
func (c Config) Check() error {
	if c.SpawnInterval <= 0 {
		return fmt.Errorf("spawn_interval must be positive, got %s", time.Duration(c.SpawnInterval))
	}
	if c.MaxTiles < 0 {
		return fmt.Errorf("max_tiles must not be negative, got %d", c.MaxTiles)
	}
	if c.Camera != nil {
		if c.Camera.Size <= 0 || c.Camera.Aspect <= 0 {
			return fmt.Errorf("camera size and aspect must be positive")
		}
		lo, hi, ok := c.CameraFor(0, 0).Bounds().CellRange()
		if ok && (hi.X-lo.X+1 > MaxGridSide || hi.Y-lo.Y+1 > MaxGridSide) {
			return fmt.Errorf("camera covers %dx%d cells, at most %d per side allowed",
				hi.X-lo.X+1, hi.Y-lo.Y+1, MaxGridSide)
		}
	}
	return nil
}

// Interval returns the autoplay spawn interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.SpawnInterval)
}

// CameraFor returns the configured camera, or one fitted to a cols x rows grid.
func (c Config) CameraFor(cols, rows int) spawner.Camera {
	if c.Camera == nil {
		return spawner.CameraForGrid(cols, rows)
	}
	return spawner.Camera{
		Position:         spawner.Vec2{X: c.Camera.Position.X, Y: c.Camera.Position.Y},
		OrthographicSize: c.Camera.Size,
		Aspect:           c.Camera.Aspect,
	}
}

// StartPosition returns the configured start, or the camera centre.
func (c Config) StartPosition(cam spawner.Camera) spawner.Vec2 {
	if c.Start == nil {
		return cam.Position
	}
	return spawner.Vec2{X: c.Start.X, Y: c.Start.Y}
}

// ResolvePalette returns the palette to colour excursions with.
func (c Config) ResolvePalette(registry *palette.Registry) (*palette.Palette, error) {
	if len(c.Colors) > 0 {
		return palette.New(customPaletteID, c.Colors, customPathColor, customCursorColor)
	}
	if c.Palette == "" {
		return registry.Default(), nil
	}
	p := registry.GetByID(c.Palette)
	if p == nil {
		return nil, fmt.Errorf("unknown palette %q (available: %v)", c.Palette, registry.IDs())
	}
	return p, nil
}

// NewRand returns the walk's random source and the seed it was built from.
func (c Config) NewRand() (*rand.Rand, int64) {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)), seed
}
