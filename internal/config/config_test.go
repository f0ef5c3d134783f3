package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaultsPort(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
}

func TestLoadServerConfigAcceptsFullAddr(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	for _, key := range []string{"CHAT_HISTORY_LIMIT", "CHAT_TURN_TIMEOUT", "SESSION_IDLE_TIMEOUT", "SESSION_SWEEP_INTERVAL", "CHAT_PERSONA"} {
		t.Setenv(key, "")
	}

	cfg, err := loadRelayConfig()
	if err != nil {
		t.Fatalf("loadRelayConfig err: %v", err)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("unexpected history limit %d", cfg.HistoryLimit)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Fatalf("unexpected idle timeout %s", cfg.IdleTimeout)
	}
	if cfg.SweepInterval != 2*time.Minute {
		t.Fatalf("unexpected sweep interval %s", cfg.SweepInterval)
	}
	if cfg.PersonaID != "aise-assistant" {
		t.Fatalf("unexpected persona %q", cfg.PersonaID)
	}
}

func TestLoadRelayConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("CHAT_TURN_TIMEOUT", "5s")
	t.Setenv("CHAT_HISTORY_LIMIT", "4")

	cfg, err := loadRelayConfig()
	if err != nil {
		t.Fatalf("loadRelayConfig err: %v", err)
	}
	if cfg.IdleTimeout != 10*time.Minute {
		t.Fatalf("unexpected idle timeout %s", cfg.IdleTimeout)
	}
	if cfg.TurnTimeout != 5*time.Second {
		t.Fatalf("unexpected turn timeout %s", cfg.TurnTimeout)
	}
	if cfg.HistoryLimit != 4 {
		t.Fatalf("unexpected history limit %d", cfg.HistoryLimit)
	}
}

func TestLoadRelayConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "soon")
	if _, err := loadRelayConfig(); err == nil {
		t.Fatal("expected error for invalid duration")
	}

	t.Setenv("SESSION_IDLE_TIMEOUT", "-5m")
	if _, err := loadRelayConfig(); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadRelayConfigRejectsBadHistoryLimit(t *testing.T) {
	t.Setenv("CHAT_HISTORY_LIMIT", "0")
	if _, err := loadRelayConfig(); err == nil {
		t.Fatal("expected error for zero history limit")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{"api key and model", AIConfig{APIKey: "k", Model: "m"}, true},
		{"ak/sk and model", AIConfig{AccessKey: "a", SecretKey: "s", Model: "m"}, true},
		{"missing model", AIConfig{APIKey: "k"}, false},
		{"missing credentials", AIConfig{Model: "m"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Fatalf("Enabled() = %t, want %t", got, tc.want)
			}
		})
	}
}
