package config

import (
	"os"
	"testing"
	"time"
)

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []int
		wantErr  bool
	}{
		{
			name:     "default list",
			value:    "8337,1338,1339,7777",
			expected: []int{8337, 1338, 1339, 7777},
		},
		{
			name:     "spaces and quotes",
			value:    " 8337 , '1338'",
			expected: []int{8337, 1338},
		},
		{
			name:     "invalid and duplicate entries dropped",
			value:    "8337,abc,0,70000,8337,1339",
			expected: []int{8337, 1339},
			wantErr:  true,
		},
		{
			name:     "empty",
			value:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParsePorts(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePorts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("ParsePorts() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("ParsePorts()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestGetenvPort(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"valid port", "8337", 8337},
		{"zero uses default", "0", 1337},
		{"too large uses default", "65536", 1337},
		{"not a number uses default", "port", 1337},
		{"missing uses default", "", 1337},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_PORT", tt.value)
			if result := getenvPort("TEST_PORT", 1337); result != tt.expected {
				t.Errorf("getenvPort() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != "127.0.0.1:7337" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ServiceHost != "localhost" || cfg.ServicePort != 1337 {
		t.Errorf("service endpoint = %s:%d", cfg.ServiceHost, cfg.ServicePort)
	}
	if len(cfg.FallbackPorts) != 4 || cfg.FallbackPorts[0] != 8337 {
		t.Errorf("FallbackPorts = %v", cfg.FallbackPorts)
	}
	if cfg.DownloadQuality != "flac" || !cfg.Notifications {
		t.Errorf("DownloadQuality = %q, Notifications = %v", cfg.DownloadQuality, cfg.Notifications)
	}
	if cfg.HealthInterval != 30*time.Second || cfg.RequestTimeout != 10*time.Second {
		t.Errorf("HealthInterval = %v, RequestTimeout = %v", cfg.HealthInterval, cfg.RequestTimeout)
	}
	if cfg.ServiceCancel {
		t.Error("ServiceCancel should default to false")
	}
	if cfg.RedisEnabled() || cfg.HistoryEnabled() {
		t.Error("Redis and history should be disabled by default")
	}
	if cfg.HistoryMaxAge != 30*24*time.Hour {
		t.Errorf("HistoryMaxAge = %v", cfg.HistoryMaxAge)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DLBRIDGE_SERVICE_PORT", "8337")
	t.Setenv("DLBRIDGE_FALLBACK_PORTS", "1338")
	t.Setenv("DLBRIDGE_DOWNLOAD_QUALITY", " ")
	t.Setenv("DLBRIDGE_SERVICE_CANCEL", "true")
	t.Setenv("DLBRIDGE_ALLOWED_ORIGINS", "https://www.qobuz.com, https://play.qobuz.com")
	t.Setenv("DLBRIDGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("DLBRIDGE_HISTORY_BUCKET", "mem://")

	cfg := Load()

	if cfg.ServicePort != 8337 {
		t.Errorf("ServicePort = %d, want 8337", cfg.ServicePort)
	}
	if len(cfg.FallbackPorts) != 1 || cfg.FallbackPorts[0] != 1338 {
		t.Errorf("FallbackPorts = %v", cfg.FallbackPorts)
	}
	if cfg.DownloadQuality != "flac" {
		t.Errorf("blank quality should fall back to flac, got %q", cfg.DownloadQuality)
	}
	if !cfg.ServiceCancel {
		t.Error("ServiceCancel should be true")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if !cfg.RedisEnabled() || !cfg.HistoryEnabled() {
		t.Error("Redis and history should be enabled")
	}
}

func TestLoadRequiresRedisPassword(t *testing.T) {
	t.Setenv("DLBRIDGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("DLBRIDGE_REDIS_PASSWORD_REQUIRED", "true")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked")
		}
	}()
	Load()
}
