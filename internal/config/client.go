package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"example.com/fitlog/internal/domain"
)

// ClientConfig is the TOML configuration of the fitlog CLI.
type ClientConfig struct {
	Database DatabaseConfig             `toml:"database"`
	Remote   RemoteConfig               `toml:"remote"`
	Logging  LoggingConfig              `toml:"logging"`
	Workouts []domain.WorkoutDefinition `toml:"workouts"`
}

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// RemoteConfig describes the hosted collection.
type RemoteConfig struct {
	Enabled     bool   `toml:"enabled"`
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	AccessToken string `toml:"access_token"`
	Table       string `toml:"table"`
	Bucket      string `toml:"bucket"`
	Timeout     string `toml:"timeout"`
}

// LoggingConfig controls console log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultClient returns the client defaults with the store at dbPath.
func DefaultClient(dbPath string) ClientConfig {
	return ClientConfig{
		Database: DatabaseConfig{Path: dbPath},
		Remote: RemoteConfig{
			Enabled: false,
			Table:   "workout_logs",
			Bucket:  "workout-images",
			Timeout: "30s",
		},
		Logging:  LoggingConfig{Level: "warn"},
		Workouts: domain.DefaultWorkouts(),
	}
}

// LoadClient overlays the TOML file at path on defaults. A missing or empty file yields
// the defaults.
func LoadClient(path string, defaults ClientConfig) (ClientConfig, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return ClientConfig{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	cfg.Workouts = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("decode toml: %w", err)
	}
	if len(cfg.Workouts) == 0 {
		cfg.Workouts = defaults.Workouts
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the CLI cannot run with.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if _, err := c.Remote.ParsedTimeout(); err != nil {
		return fmt.Errorf("invalid remote.timeout: %w", err)
	}
	if c.Remote.Enabled {
		parsed, err := url.Parse(strings.TrimSpace(c.Remote.BaseURL))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
		if strings.TrimSpace(c.Remote.APIKey) == "" {
			return errors.New("remote.api_key is required when remote.enabled is true")
		}
	}
	if _, err := domain.NewCatalog(c.Workouts); err != nil {
		return fmt.Errorf("invalid workouts: %w", err)
	}
	return nil
}

// ParsedTimeout returns the remote timeout, or zero when unset.
func (r RemoteConfig) ParsedTimeout() (time.Duration, error) {
	if strings.TrimSpace(r.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// SaveClient writes cfg as TOML to path, refusing to replace an existing file.
func SaveClient(path string, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

// EnsureConfigDir creates the directory holding path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
