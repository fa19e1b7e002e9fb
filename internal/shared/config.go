package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sessions    SessionsConfig    `toml:"sessions"`
	Quota       QuotaConfig       `toml:"quota"`
	Fetch       FetchConfig       `toml:"fetch"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
}

// SpotifyConfig contains Spotify Web API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// AnalyzerConfig selects the lyric analyzer. An empty key routes analysis
// through the built-in keyword analyzer.
type AnalyzerConfig struct {
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SessionsConfig bounds discovery session behavior.
type SessionsConfig struct {
	MaxConcurrent    int     `toml:"max_concurrent"`
	DefaultTarget    int     `toml:"default_target"`
	WorkerPool       int     `toml:"worker_pool"`
	OverFetch        int     `toml:"over_fetch"`
	QualityThreshold float64 `toml:"quality_threshold"`
}

// QuotaConfig sets the daily cost budget and per-service request rates.
type QuotaConfig struct {
	DailyBudget int `toml:"daily_budget"`
	YouTubeRPM  int `toml:"youtube_rpm"`
	SpotifyRPM  int `toml:"spotify_rpm"`
}

// FetchConfig points the fetch layer at its hosts and bounds its concurrency.
type FetchConfig struct {
	SearchHost    string `toml:"search_host"`
	LyricsHost    string `toml:"lyrics_host"`
	HeadlessLimit int    `toml:"headless_limit"`
	PlainLimit    int    `toml:"plain_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidInput)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotenv loads a .env file from the working directory when one exists.
// A missing file is not an error.
func LoadDotenv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// ApplyEnv overlays recognized environment variables onto the config. Every
// variable is optional; an unset variable leaves the file value in place.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ANALYZER_API_KEY"); v != "" {
		c.Credentials.Analyzer.APIKey = v
	}
	if v := os.Getenv("STORE_URL"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sessions.MaxConcurrent = n
		}
	}
	if v := os.Getenv("DAILY_COST_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Quota.DailyBudget = n
		}
	}
}
