package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:       AppConfig{Env: "local", Port: 8080},
		Backend:   BackendConfig{BaseURL: "http://localhost:5000/api"},
		Telephony: TelephonyConfig{DefaultCountryCode: "+1"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.HasPrefix(err.Error(), "config errors:") {
		t.Fatalf("expected joined errors, got %q", err.Error())
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Telephony.RingTimeout != 15*time.Second {
		t.Fatalf("expected 15s ring timeout, got %s", c.Telephony.RingTimeout)
	}
	if c.Telephony.ReadyFallback != 3*time.Second {
		t.Fatalf("expected 3s ready fallback, got %s", c.Telephony.ReadyFallback)
	}
	if c.Telephony.DialMode != DialModeDevice {
		t.Fatalf("expected device dial mode, got %q", c.Telephony.DialMode)
	}
	if c.Session.Store != SessionStoreMemory || c.Session.ValidateInterval != 5*time.Minute {
		t.Fatalf("unexpected session defaults: %+v", c.Session)
	}
	if c.JournalEnabled() || c.RedisEnabled() {
		t.Fatalf("expected optional stores disabled")
	}
}

func TestValidate_ProductionRequiresHTTPSAndSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "dialer"}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "https") || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected https and sslmode errors, got %v", err)
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "dialer"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RedisDependents(t *testing.T) {
	c := validConfig()
	c.Session.Store = SessionStoreRedis
	c.Telephony.GuardSessions = true
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "SESSION_STORE") || !strings.Contains(err.Error(), "GUARD") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsBadCountryCode(t *testing.T) {
	for _, cc := range []string{"", "1", "+", "+12345", "+1a"} {
		c := validConfig()
		c.Telephony.DefaultCountryCode = cc
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %q", cc)
		}
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/api")
	t.Setenv("TELEPHONY_DIAL_MODE", "bridge")
	t.Setenv("TELEPHONY_DEFAULT_COUNTRY_CODE", "+92")
	t.Setenv("TELEPHONY_RING_TIMEOUT", "20s")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
	if c.Telephony.DialMode != DialModeBridge || c.Telephony.DefaultCountryCode != "+92" {
		t.Fatalf("unexpected telephony config: %+v", c.Telephony)
	}
	if c.Telephony.RingTimeout != 20*time.Second {
		t.Fatalf("expected 20s, got %s", c.Telephony.RingTimeout)
	}
}

func TestLoad_ReportsBadPort(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_RedisCredentials(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_DB", "2")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.RedisAddr() != "cache:6380" || c.Redis.Password != "s3cret" || c.Redis.DB != 2 {
		t.Fatalf("unexpected redis config: %+v", c.Redis)
	}
}

func TestValidate_RejectsRedisDBOutOfRange(t *testing.T) {
	c := validConfig()
	c.Redis = RedisConfig{Host: "cache", Port: 6379, DB: 16}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_DB") {
		t.Fatalf("expected REDIS_DB error, got %v", err)
	}
}
