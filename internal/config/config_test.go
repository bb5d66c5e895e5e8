package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-key")
	defer os.Unsetenv("SESSION_SECRET")

	envVars := []string{
		"SERVER_ADDR", "SERVER_PORT", "DATA_DIR", "APP_BASE_URL",
		"REQUIRE_EMAIL_VERIFY", "EMAIL_VERIFICATION_TTL", "SESSION_TTL",
		"CRON_SECRET", "NOTIFY_INTERVAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.RequireEmailVerify {
		t.Error("RequireEmailVerify should default to false")
	}
	if cfg.EmailVerificationTTL != 15*time.Minute {
		t.Errorf("EmailVerificationTTL = %v, want %v", cfg.EmailVerificationTTL, 15*time.Minute)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 7*24*time.Hour)
	}
	if cfg.NotifyInterval != 0 {
		t.Errorf("NotifyInterval = %v, want 0 (disabled)", cfg.NotifyInterval)
	}
}

func TestLoad_RequiredSessionSecret(t *testing.T) {
	os.Unsetenv("SESSION_SECRET")

	if _, err := Load(); err == nil {
		t.Error("Load should fail when SESSION_SECRET is not set")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SESSION_SECRET", "custom-secret")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("REQUIRE_EMAIL_VERIFY", "true")
	os.Setenv("EMAIL_VERIFICATION_TTL", "30m")
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")
	defer func() {
		for _, v := range []string{"SESSION_SECRET", "SERVER_PORT", "REQUIRE_EMAIL_VERIFY", "EMAIL_VERIFICATION_TTL", "CORS_ALLOWED_ORIGINS"} {
			os.Unsetenv(v)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if !cfg.RequireEmailVerify {
		t.Error("RequireEmailVerify = false, want true")
	}
	if cfg.EmailVerificationTTL != 30*time.Minute {
		t.Errorf("EmailVerificationTTL = %v, want %v", cfg.EmailVerificationTTL, 30*time.Minute)
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != want[0] || cfg.CORSAllowedOrigins[1] != want[1] {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
}

func TestFeatureGates(t *testing.T) {
	cfg := &Config{}
	if cfg.HasGoogleOAuth() || cfg.HasSMTP() || cfg.HasTwoFactor() {
		t.Error("feature gates should be off for an empty config")
	}

	cfg.GoogleClientID = "id"
	cfg.GoogleClientSecret = "secret"
	if !cfg.HasGoogleOAuth() {
		t.Error("HasGoogleOAuth = false with both values set")
	}

	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPFrom = "noreply@example.com"
	if !cfg.HasSMTP() {
		t.Error("HasSMTP = false with host and from set")
	}
}
