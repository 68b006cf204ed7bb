package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CONSOLE_REVALIDATE_INTERVAL", "30s")
	t.Setenv("ADMIN_USERNAME", "root")

	cfg := Load()

	if cfg.Port != "8080" || cfg.Console.Port != "8081" {
		t.Fatalf("unexpected ports: %s %s", cfg.Port, cfg.Console.Port)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Fatalf("jwt secret not read")
	}
	if cfg.TokenTTL != 8*time.Hour {
		t.Fatalf("expected 8h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.Console.RevalidateInterval != 30*time.Second {
		t.Fatalf("expected override, got %s", cfg.Console.RevalidateInterval)
	}
	if cfg.Console.CredentialTTL != 720*time.Hour || cfg.Console.SecureCookies {
		t.Fatalf("unexpected console defaults: %+v", cfg.Console)
	}
	if cfg.AdminUsername != "root" || cfg.AdminPassword != "" {
		t.Fatalf("unexpected bootstrap admin: %q %q", cfg.AdminUsername, cfg.AdminPassword)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env by default")
	}
}
