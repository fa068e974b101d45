package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/triage/internal/build"
	"github.com/starford/triage/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Colour modes for terminal output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app" toml:"app"`
	Build    BuildConfig       `yaml:"build" toml:"build"`
	Snapshot SnapshotConfig    `yaml:"snapshot" toml:"snapshot"`
	Index    IndexConfig       `yaml:"index" toml:"index"`
	Auth     AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Snapshot.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	Color    string     `yaml:"color" toml:"color"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Color == "" {
		c.Color = ColorAuto
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Color, validation.In(ColorAuto, ColorAlways, ColorNever)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BuildConfig describes the build command whose stderr is captured.
type BuildConfig struct {
	Command string        `yaml:"command" toml:"command"`
	Args    []string      `yaml:"args" toml:"args"`
	Dir     string        `yaml:"dir" toml:"dir"`
	Env     []string      `yaml:"env" toml:"env"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

// Options converts the configuration into runner options.
func (c *BuildConfig) Options() build.Options {
	return build.Options{
		Command: c.Command,
		Args:    c.Args,
		Dir:     c.Dir,
		Env:     c.Env,
		Timeout: c.Timeout,
	}
}

// SnapshotConfig locates the capture file and the persisted snapshot.
type SnapshotConfig struct {
	Dir     string `yaml:"dir" toml:"dir"`
	Capture string `yaml:"capture" toml:"capture"`
	Format  string `yaml:"format" toml:"format"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Capture, validation.Required),
		validation.Field(&c.Format, validation.Required, validation.In(storage.FormatJSON, storage.FormatMsgpack)),
	); err != nil {
		return err
	}
	if filepath.IsAbs(c.Capture) {
		return fmt.Errorf("snapshot: capture must be relative to dir, got %q", c.Capture)
	}
	return nil
}

// Options converts the configuration into store options.
func (c *SnapshotConfig) Options() storage.Options {
	return storage.Options{Dir: c.Dir, Capture: c.Capture, Format: c.Format}
}

// IndexConfig holds the SQLite search index location. An empty Path disables it.
type IndexConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Enabled reports whether the search index is configured.
func (c *IndexConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
			Color:    ColorAuto,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Build: BuildConfig{
			Command: "cargo",
			Args:    []string{"build"},
			Dir:     "lib",
			Env:     []string{"CARGO_TERM_COLOR=never"},
			Timeout: 10 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Dir:     ".triage",
			Capture: storage.DefaultCapture,
			Format:  storage.FormatJSON,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
