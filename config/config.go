/*
Package config loads server configuration.

PURPOSE:
  Configuration comes from three layers, later layers winning:
  1. Built-in defaults
  2. An optional TOML file (-config flag)
  3. Environment variables

  cmd/server flags can still override the listen address and database path
  for quick local runs.

KEYS:
  listen_addr   / LISTEN_ADDR   HTTP listen address (default ":8080")
  database_path / DB_PATH       SQLite path, ":memory:" for in-memory
  jwt_secret    / JWT_SECRET    HS256 secret for bearer tokens (required)
  default_role  / DEFAULT_ROLE  Role for identities never assigned one
  cors_origins  / CORS_ORIGINS  Comma-separated allowed origins
  seed_tasks    / SEED_TASKS    Seed the default catalog on startup
  bootstrap_admins / BOOTSTRAP_ADMINS  Identities granted admin on first boot
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/caffeinepub/banana-earn/ledger"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr   string   `toml:"listen_addr"`
	DatabasePath string   `toml:"database_path"`
	JWTSecret    string   `toml:"jwt_secret"`
	DefaultRole  string   `toml:"default_role"`
	CORSOrigins  []string `toml:"cors_origins"`
	SeedTasks    bool     `toml:"seed_tasks"`

	// BootstrapAdmins are identities granted the admin role on startup if
	// they have never been assigned one. Without at least one, no caller
	// could ever reach the admin operations (assignRole requires admin).
	BootstrapAdmins []string `toml:"bootstrap_admins"`
}

// Load reads configuration from the optional TOML file at path (empty path
// skips the file layer) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:   ":8080",
		DatabasePath: "banana-earn.db",
		DefaultRole:  string(ledger.DefaultRole),
		CORSOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabasePath = getEnv("DB_PATH", cfg.DatabasePath)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.DefaultRole = getEnv("DEFAULT_ROLE", cfg.DefaultRole)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("BOOTSTRAP_ADMINS"); v != "" {
		cfg.BootstrapAdmins = splitAndTrim(v)
	}
	if v := os.Getenv("SEED_TASKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SEED_TASKS: %w", err)
		}
		cfg.SeedTasks = b
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not set (config file or JWT_SECRET); required to authenticate callers")
	}
	if _, err := ledger.ParseRole(c.DefaultRole); err != nil {
		return fmt.Errorf("default_role: %w", err)
	}
	return nil
}

// Role returns the configured default role. validate() already guaranteed
// it parses.
func (c *Config) Role() ledger.Role {
	role, _ := ledger.ParseRole(c.DefaultRole)
	return role
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
