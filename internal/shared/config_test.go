package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./scout.db" {
			t.Errorf("expected database path ./scout.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Sessions.MaxConcurrent != 4 {
			t.Errorf("expected max_concurrent 4, got %d", config.Sessions.MaxConcurrent)
		}

		if config.Sessions.WorkerPool != 8 {
			t.Errorf("expected worker_pool 8, got %d", config.Sessions.WorkerPool)
		}

		if config.Quota.DailyBudget != 10000 {
			t.Errorf("expected daily_budget 10000, got %d", config.Quota.DailyBudget)
		}

		if config.Fetch.HeadlessLimit != 4 {
			t.Errorf("expected headless_limit 4, got %d", config.Fetch.HeadlessLimit)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[sessions]
max_concurrent = 2
default_target = 25
worker_pool = 4
over_fetch = 3
quality_threshold = 0.5

[quota]
daily_budget = 500
youtube_rpm = 60
spotify_rpm = 90

[fetch]
search_host = "http://search.test"
lyrics_host = "http://lyrics.test"
headless_limit = 1
plain_limit = 8
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Sessions.OverFetch != 3 {
			t.Errorf("expected over_fetch 3, got %d", config.Sessions.OverFetch)
		}

		if config.Quota.DailyBudget != 500 {
			t.Errorf("expected daily_budget 500, got %d", config.Quota.DailyBudget)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		config := DefaultConfig()

		t.Setenv("SPOTIFY_CLIENT_ID", "env_client")
		t.Setenv("STORE_URL", "/env/store.db")
		t.Setenv("MAX_CONCURRENT_SESSIONS", "9")
		t.Setenv("DAILY_COST_BUDGET", "123")

		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_client" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Database.Path != "/env/store.db" {
			t.Errorf("expected env store path, got %s", config.Database.Path)
		}
		if config.Sessions.MaxConcurrent != 9 {
			t.Errorf("expected max concurrent 9, got %d", config.Sessions.MaxConcurrent)
		}
		if config.Quota.DailyBudget != 123 {
			t.Errorf("expected budget 123, got %d", config.Quota.DailyBudget)
		}
	})

	t.Run("ApplyEnv ignores bad numbers", func(t *testing.T) {
		config := DefaultConfig()
		before := config.Sessions.MaxConcurrent

		t.Setenv("MAX_CONCURRENT_SESSIONS", "zero")
		config.ApplyEnv()

		if config.Sessions.MaxConcurrent != before {
			t.Errorf("expected max concurrent unchanged, got %d", config.Sessions.MaxConcurrent)
		}
	})
}
