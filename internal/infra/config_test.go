package infra

import (
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "PUBLIC_BASE_URL", "GENERATION_API_URL", "GENERATION_TIMEOUT_SECONDS",
		"PAYPAL_API_URL", "PROXY_BASE_URL", "UNLOCK_PRICE_CENTS", "UNLOCK_CURRENCY", "LEDGER_DRIVER",
		"DATABASE_URL", "DATABASE_MAX_CONNS", "SHUTDOWN_TIMEOUT_SECONDS", "IMAGE_SOURCE_HOST_ALLOWLIST",
		"CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("PublicBaseURL mismatch: got %q", cfg.PublicBaseURL)
	}
	if cfg.ProxyBaseURL != cfg.PublicBaseURL {
		t.Fatalf("ProxyBaseURL should default to the public base url, got %q", cfg.ProxyBaseURL)
	}
	if cfg.GenerationTimeout != 2*time.Minute {
		t.Fatalf("GenerationTimeout mismatch: got %v", cfg.GenerationTimeout)
	}
	if cfg.UnlockPriceCents != 80 || cfg.UnlockCurrency != "USD" {
		t.Fatalf("price mismatch: %d %s", cfg.UnlockPriceCents, cfg.UnlockCurrency)
	}
	if cfg.LedgerDriver != LedgerMemory {
		t.Fatalf("LedgerDriver mismatch: got %q", cfg.LedgerDriver)
	}
	if cfg.PayPalAPIURL != cfg.GenerationAPIURL {
		t.Fatalf("PayPalAPIURL should default to the generation api, got %q", cfg.PayPalAPIURL)
	}
	if len(cfg.ImageSourceAllowlist) != 1 || cfg.ImageSourceAllowlist[0] != "localhost" {
		t.Fatalf("ImageSourceAllowlist mismatch: %#v", cfg.ImageSourceAllowlist)
	}
	if cfg.DatabaseMaxConns != 4 || cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("pool/shutdown defaults mismatch: %d %v", cfg.DatabaseMaxConns, cfg.ShutdownTimeout)
	}
}

func TestLoadConfigInheritsPortInPublicBaseURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "1919")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PublicBaseURL != "http://localhost:1919" {
		t.Fatalf("PublicBaseURL mismatch: got %q", cfg.PublicBaseURL)
	}
}

func TestLoadConfigMergesExplicitAllowlist(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GENERATION_API_URL", "https://gen.example.com/")
	t.Setenv("IMAGE_SOURCE_HOST_ALLOWLIST", "media.example.com, CDN.example.com ,gen.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GenerationAPIURL != "https://gen.example.com" {
		t.Fatalf("GenerationAPIURL mismatch: got %q", cfg.GenerationAPIURL)
	}
	expected := []string{"cdn.example.com", "gen.example.com", "media.example.com"}
	if len(cfg.ImageSourceAllowlist) != len(expected) {
		t.Fatalf("ImageSourceAllowlist mismatch: got %#v want %#v", cfg.ImageSourceAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.ImageSourceAllowlist[i] != host {
			t.Fatalf("ImageSourceAllowlist[%d] = %q, want %q", i, cfg.ImageSourceAllowlist[i], host)
		}
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"LEDGER_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"LEDGER_DRIVER": "mongo"}},
		{"zero price", map[string]string{"UNLOCK_PRICE_CENTS": "0"}},
		{"negative timeout", map[string]string{"GENERATION_TIMEOUT_SECONDS": "-5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfigPostgres(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LEDGER_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LedgerDriver != LedgerPostgres {
		t.Fatalf("LedgerDriver mismatch: %q", cfg.LedgerDriver)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}
