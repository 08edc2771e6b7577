package cfg

import (
	"testing"
	"time"
)

func requiredArgs(extra ...string) []string {
	args := []string{
		"--igdb-client-id", "client",
		"--igdb-client-secret", "secret",
		"--cms-graphql-url", "https://cms.example.com/graphql",
	}
	return append(args, extra...)
}

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	cfg, err := LoadArgs(requiredArgs())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.IGDBBaseUrl != "https://api.igdb.com/v4" {
		t.Errorf("Expected default IGDB URL, got '%s'", cfg.IGDBBaseUrl)
	}
	if cfg.CMSGamesCategory != "Games" {
		t.Errorf("Expected games category 'Games', got '%s'", cfg.CMSGamesCategory)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("Expected upstream timeout 10s, got %v", cfg.UpstreamTimeout)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("Expected lock ttl 30s, got %v", cfg.LockTTL)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("Expected sweep interval 1h, got %v", cfg.SweepInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got '%s'", cfg.LogLevel)
	}
}

func TestLoadArgsOverrides(t *testing.T) {
	cfg, err := LoadArgs(requiredArgs(
		"--port", "9090",
		"--site-url", "https://games.example.com/",
		"--upstream-timeout", "3",
		"--debug",
	))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.SiteUrl != "https://games.example.com" {
		t.Errorf("Expected trailing slash to be trimmed, got '%s'", cfg.SiteUrl)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("Expected upstream timeout 3s, got %v", cfg.UpstreamTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected --debug to force log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLoadArgsValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "missing IGDB credentials",
			args: []string{"--igdb-client-id", "client", "--cms-graphql-url", "https://cms.example.com/graphql"},
		},
		{
			name: "zero upstream timeout",
			args: requiredArgs("--upstream-timeout", "0"),
		},
		{
			name: "lock ttl shorter than a resolution",
			args: requiredArgs("--lock-ttl", "15"),
		},
		{
			name: "lock ttl too short for raised timeout",
			args: requiredArgs("--upstream-timeout", "20"),
		},
		{
			name: "negative cache ttl",
			args: requiredArgs("--response-cache-ttl=-1"),
		},
		{
			name: "missing CMS endpoint",
			args: []string{"--igdb-client-id", "client", "--igdb-access-token", "token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadArgs(tt.args); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestMinLockTTL(t *testing.T) {
	if got := MinLockTTL(10 * time.Second); got != 25*time.Second {
		t.Errorf("Expected 25s, got %v", got)
	}

	cfg, err := LoadArgs(requiredArgs("--upstream-timeout", "20", "--lock-ttl", "45"))
	if err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
	if cfg.LockTTL < MinLockTTL(cfg.UpstreamTimeout) {
		t.Errorf("lock ttl %v shorter than %v", cfg.LockTTL, MinLockTTL(cfg.UpstreamTimeout))
	}
}
