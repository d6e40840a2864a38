package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("expected default api url, got %s", cfg.APIURL)
	}
	if cfg.StatusPollInterval != 3*time.Second {
		t.Errorf("expected 3s status poll, got %s", cfg.StatusPollInterval)
	}
	if cfg.ChatPollInterval != 2500*time.Millisecond {
		t.Errorf("expected 2.5s chat poll, got %s", cfg.ChatPollInterval)
	}
	if cfg.QueuePollInterval != 5*time.Second {
		t.Errorf("expected 5s queue poll, got %s", cfg.QueuePollInterval)
	}
	if cfg.MaxPollDuration != 30*time.Minute {
		t.Errorf("expected 30m max poll duration, got %s", cfg.MaxPollDuration)
	}
	if cfg.MaxRPS != 10 {
		t.Errorf("expected 10 rps, got %v", cfg.MaxRPS)
	}
}

func TestLoadClient_Overrides(t *testing.T) {
	os.Setenv("CURAMIND_API_URL", "https://api.curamind.test")
	os.Setenv("CHAT_POLL_INTERVAL", "1s")
	defer os.Unsetenv("CURAMIND_API_URL")
	defer os.Unsetenv("CHAT_POLL_INTERVAL")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://api.curamind.test" {
		t.Errorf("got %s", cfg.APIURL)
	}
	if cfg.ChatPollInterval != time.Second {
		t.Errorf("got %s", cfg.ChatPollInterval)
	}
}

func TestLoadClient_RejectsRelativeURL(t *testing.T) {
	os.Setenv("CURAMIND_API_URL", "localhost")
	defer os.Unsetenv("CURAMIND_API_URL")

	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for relative api url")
	}
}

func TestClientConfig_Validate_Intervals(t *testing.T) {
	cfg := ClientConfig{
		APIURL:             "http://localhost:8000",
		StatusPollInterval: time.Second,
		QueuePollInterval:  time.Second,
		ChatPollInterval:   0,
		HTTPTimeout:        time.Second,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero chat interval")
	}
}
