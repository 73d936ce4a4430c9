package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Addr             string
	DatabaseURL      string
	IdentityURL      string
	IdentityAPIKey   string
	OperatorToken    string
	SweepEvery       time.Duration
	StartupSeedTeams bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	_ = godotenv.Load()

	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("POOL_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:             addr,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		IdentityURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("IDENTITY_URL")), "/"),
		IdentityAPIKey:   strings.TrimSpace(os.Getenv("IDENTITY_API_KEY")),
		OperatorToken:    strings.TrimSpace(os.Getenv("POOL_OPERATOR_TOKEN")),
		SweepEvery:       envDurationDefault("POOL_SWEEP_EVERY", time.Minute),
		StartupSeedTeams: envBoolDefault("POOL_STARTUP_SEED_TEAMS", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IdentityURL == "" {
		return cfg, fmt.Errorf("IDENTITY_URL is required")
	}
	if cfg.OperatorToken == "" {
		return cfg, fmt.Errorf("POOL_OPERATOR_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	_ = godotenv.Load()
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("UPQ_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
