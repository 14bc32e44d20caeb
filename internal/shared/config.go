package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and overlaid with environment variables.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Jobs        JobsConfig        `toml:"jobs"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                string `toml:"host" env:"HOST"`
	Port                int    `toml:"port" env:"PORT"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig contains on-disk locations for working directories and archives.
type StorageConfig struct {
	WorkDir     string `toml:"work_dir" env:"SONGZIP_WORK_DIR"`
	ArchiveDir  string `toml:"archive_dir" env:"SONGZIP_ARCHIVE_DIR"`
	ArchiveName string `toml:"archive_name"` // file name offered to browsers
}

// JobsConfig contains job controller settings.
type JobsConfig struct {
	MaxConcurrent int     `toml:"max_concurrent"`
	TTLMinutes    int     `toml:"ttl_minutes"`
	FetchRate     float64 `toml:"fetch_rate"` // fetches per second
}

// TTL returns how long finished jobs are retained.
func (j JobsConfig) TTL() time.Duration {
	return time.Duration(j.TTLMinutes) * time.Minute
}

// FetcherConfig contains yt-dlp settings.
type FetcherConfig struct {
	YTDLPPath    string `toml:"ytdlp_path" env:"YTDLP_PATH"`
	AudioFormat  string `toml:"audio_format"`
	AudioQuality string `toml:"audio_quality"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"SONGZIP_DB"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// LoadConfig reads a TOML configuration file on top of [DefaultConfig] and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists, otherwise the embedded defaults; environment overrides apply either way.
func ResolveConfig(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}

	config := DefaultConfig()
	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// LoadDotEnv loads variables from the given .env files (default ".env") without overriding ones already set.
//
// Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables declared with `env` tags.
func ApplyEnv(config *Config) error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Storage.WorkDir == "" || c.Storage.ArchiveDir == "" {
		return fmt.Errorf("%w: storage directories are required", ErrInvalidConfig)
	}
	if filepath.Clean(c.Storage.WorkDir) == filepath.Clean(c.Storage.ArchiveDir) {
		return fmt.Errorf("%w: work_dir and archive_dir must differ", ErrInvalidConfig)
	}
	if c.Jobs.MaxConcurrent < 1 {
		c.Jobs.MaxConcurrent = 1
	}
	if c.Storage.ArchiveName == "" {
		c.Storage.ArchiveName = "spotify_songs.zip"
	}
	return nil
}

// HasSpotifyCredentials reports whether both client id and secret are set to non-placeholder values.
func (c *Config) HasSpotifyCredentials() bool {
	id, secret := c.Credentials.Spotify.ClientID, c.Credentials.Spotify.ClientSecret
	return id != "" && secret != "" && id != "your_spotify_client_id" && secret != "your_spotify_client_secret"
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
