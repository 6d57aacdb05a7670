package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      int
		expected int
	}{
		{
			name:     "valid integer",
			key:      "TEST_INT",
			value:    "42",
			def:      7,
			expected: 42,
		},
		{
			name:     "invalid integer falls back to default",
			key:      "TEST_INT_INVALID",
			value:    "not_a_number",
			def:      7,
			expected: 7,
		},
		{
			name:     "missing variable falls back to default",
			key:      "TEST_INT_MISSING",
			value:    "",
			def:      7,
			expected: 7,
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

			if result := getenvInt(tt.key, tt.def); result != tt.expected {
				t.Errorf("getenvInt() = %v, want %v", result, tt.expected)
			}
		})
	}
}

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
			key:      "TEST_DUR",
			value:    "90s",
			def:      time.Second,
			expected: 90 * time.Second,
		},
		{
			name:     "invalid duration falls back to default",
			key:      "TEST_DUR_INVALID",
			value:    "ninety",
			def:      time.Second,
			expected: time.Second,
		},
		{
			name:     "missing variable falls back to default",
			key:      "TEST_DUR_MISSING",
			value:    "",
			def:      5 * time.Minute,
			expected: 5 * time.Minute,
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

			if result := mustDuration(tt.key, tt.def); result != tt.expected {
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
		{name: "true", key: "TEST_BOOL_T", value: "true", def: false, expected: true},
		{name: "false", key: "TEST_BOOL_F", value: "false", def: true, expected: false},
		{name: "garbage falls back", key: "TEST_BOOL_G", value: "yep", def: true, expected: true},
		{name: "missing falls back", key: "TEST_BOOL_M", value: "", def: false, expected: false},
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

			if result := mustBool(tt.key, tt.def); result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSyncConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.SyncConfigured() {
		t.Error("SyncConfigured() should be false with empty remote addr")
	}
	cfg.RemoteRedisAddr = "localhost:6380"
	if !cfg.SyncConfigured() {
		t.Error("SyncConfigured() should be true with remote addr set")
	}
}
