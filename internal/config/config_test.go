package config

import (
	"testing"
	"time"
)

func TestEnvDefault(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "")
	if got := envDefault("CFG_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("empty env: got %q want fallback", got)
	}
	t.Setenv("CFG_TEST_STR", "  set  ")
	if got := envDefault("CFG_TEST_STR", "fallback"); got != "set" {
		t.Fatalf("set env: got %q want set", got)
	}
}

func TestEnvDurationDefault(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: time.Minute},
		{value: "30s", want: 30 * time.Second},
		{value: "2m", want: 2 * time.Minute},
		{value: "not-a-duration", want: time.Minute},
	}
	for _, tc := range tests {
		t.Setenv("CFG_TEST_DUR", tc.value)
		if got := envDurationDefault("CFG_TEST_DUR", time.Minute); got != tc.want {
			t.Fatalf("value %q: got %v want %v", tc.value, got, tc.want)
		}
	}
}

func TestEnvBoolDefault(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "", want: true},
		{value: "false", want: false},
		{value: "0", want: false},
		{value: "true", want: true},
		{value: "garbage", want: true},
	}
	for _, tc := range tests {
		t.Setenv("CFG_TEST_BOOL", tc.value)
		if got := envBoolDefault("CFG_TEST_BOOL", true); got != tc.want {
			t.Fatalf("value %q: got %v want %v", tc.value, got, tc.want)
		}
	}
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("UPQ_API_BASE_URL", "http://pool.example.com/")
	cfg := LoadCLIFromEnv()
	if cfg.APIBaseURL != "http://pool.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}

	t.Setenv("UPQ_API_BASE_URL", "")
	cfg = LoadCLIFromEnv()
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("default base url: got %q", cfg.APIBaseURL)
	}
}
