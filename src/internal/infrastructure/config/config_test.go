package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_SECRET_KEY", "test-secret-key-for-configuration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.ServicePort != 8001 {
		t.Errorf("ServicePort = %d, want 8001", cfg.ServicePort)
	}
	if cfg.SignatureValidityWindow != 300 {
		t.Errorf("SignatureValidityWindow = %d, want 300", cfg.SignatureValidityWindow)
	}
	if !cfg.RateLimitEnabled {
		t.Error("RateLimitEnabled = false, want true")
	}
	if cfg.RateLimitRequests != 100 {
		t.Errorf("RateLimitRequests = %d, want 100", cfg.RateLimitRequests)
	}
	if !cfg.AvatarCacheEnabled {
		t.Error("AvatarCacheEnabled = false, want true")
	}
	if cfg.AvatarCacheTTLSeconds != 300 {
		t.Errorf("AvatarCacheTTLSeconds = %d, want 300", cfg.AvatarCacheTTLSeconds)
	}
	if cfg.AvatarMaxFileSizeMB != 2 {
		t.Errorf("AvatarMaxFileSizeMB = %d, want 2", cfg.AvatarMaxFileSizeMB)
	}
	if len(cfg.AllowedHosts) == 0 {
		t.Error("AllowedHosts is empty, want defaults")
	}
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("API_SECRET_KEY", "")
	os.Unsetenv("API_SECRET_KEY")

	if _, err := Load(); err == nil {
		t.Error("Load() with no API_SECRET_KEY should return an error")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_SECRET_KEY", "test-secret-key-for-configuration")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVICE_PORT", "9090")
	t.Setenv("ALLOWED_HOSTS", "api.hackit.tw,*.internal.hackit.tw")
	t.Setenv("API_RATE_LIMIT_REQUESTS", "25")
	t.Setenv("AVATAR_CACHE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if got := cfg.ListenAddr(); got != "0.0.0.0:9090" {
		t.Errorf("ListenAddr() = %q, want %q", got, "0.0.0.0:9090")
	}
	if len(cfg.AllowedHosts) != 2 || cfg.AllowedHosts[1] != "*.internal.hackit.tw" {
		t.Errorf("AllowedHosts = %v, want two entries", cfg.AllowedHosts)
	}
	if cfg.RateLimitRequests != 25 {
		t.Errorf("RateLimitRequests = %d, want 25", cfg.RateLimitRequests)
	}
	if cfg.AvatarCacheEnabled {
		t.Error("AvatarCacheEnabled = true, want false")
	}
}

func TestIsProductionCaseInsensitive(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"Production", true},
		{"PRODUCTION", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		cfg := &Config{Environment: tt.env}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() with %q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestAvatarMaxFileSizeBytes(t *testing.T) {
	cfg := &Config{AvatarMaxFileSizeMB: 2}
	if got := cfg.AvatarMaxFileSizeBytes(); got != 2*1024*1024 {
		t.Errorf("AvatarMaxFileSizeBytes() = %d, want %d", got, 2*1024*1024)
	}
}
