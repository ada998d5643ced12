// Package mock provides an environment-configurable mock device for testing.
//
// The mock device serves an interactive login shell over SSH, the way an
// embedded board answers on its debug console: it prints a login prompt,
// asks for a password, then answers the mount probe commands from a
// configurable mount table.
//
// Environment Variables:
//
// Timing Control:
//   - MOCK_DEVICE_REALISTIC_TIMING: Enable realistic timing simulation (default: false)
//   - MOCK_DEVICE_SSH_LATENCY_MS: SSH session latency in ms (default: 200)
//   - MOCK_DEVICE_SSH_LATENCY_JITTER_MS: Latency jitter range in ms (default: 50)
//   - MOCK_DEVICE_PROMPT_DELAY_MS: Delay before the login prompt in ms (default: 300)
//   - MOCK_DEVICE_COMMAND_DELAY_MS: Delay before each command response in ms (default: 100)
//
// Error Injection:
//   - MOCK_DEVICE_ERROR_MODE: Error injection mode (none|ssh_timeout|login_hang|drop_after_login|command_hang)
//   - MOCK_DEVICE_ERROR_AFTER_N: Fail after N operations (default: 0 = immediate)
//
// Observability:
//   - MOCK_DEVICE_ENABLE_HISTORY: Enable command history tracking (default: true)
//   - MOCK_DEVICE_HISTORY_DEPTH: Maximum history entries (default: 100)
//   - MOCK_DEVICE_HOSTNAME: Hostname shown in prompts (default: "rk3588")
package mock

import (
	"os"
	"strconv"
)

// MockDeviceConfig holds configuration for mock device behavior
type MockDeviceConfig struct {
	// Timing control
	RealisticTiming    bool // MOCK_DEVICE_REALISTIC_TIMING (default: false)
	SSHLatencyMs       int  // MOCK_DEVICE_SSH_LATENCY_MS (default: 200)
	SSHLatencyJitterMs int  // MOCK_DEVICE_SSH_LATENCY_JITTER_MS (default: 50, gives 150-250ms range)
	PromptDelayMs      int  // MOCK_DEVICE_PROMPT_DELAY_MS (default: 300)
	CommandDelayMs     int  // MOCK_DEVICE_COMMAND_DELAY_MS (default: 100)

	// Error injection
	ErrorMode   string // MOCK_DEVICE_ERROR_MODE (none|ssh_timeout|login_hang|drop_after_login|command_hang)
	ErrorAfterN int    // MOCK_DEVICE_ERROR_AFTER_N (fail after N operations, default: 0 = immediate)

	// Observability
	EnableHistory bool   // MOCK_DEVICE_ENABLE_HISTORY (default: true)
	HistoryDepth  int    // MOCK_DEVICE_HISTORY_DEPTH (default: 100)
	Hostname      string // MOCK_DEVICE_HOSTNAME (default: "rk3588")
}

// LoadConfigFromEnv loads mock device configuration from environment variables
func LoadConfigFromEnv() MockDeviceConfig {
	return MockDeviceConfig{
		RealisticTiming:    getEnvBool("MOCK_DEVICE_REALISTIC_TIMING", false),
		SSHLatencyMs:       getEnvInt("MOCK_DEVICE_SSH_LATENCY_MS", 200),
		SSHLatencyJitterMs: getEnvInt("MOCK_DEVICE_SSH_LATENCY_JITTER_MS", 50),
		PromptDelayMs:      getEnvInt("MOCK_DEVICE_PROMPT_DELAY_MS", 300),
		CommandDelayMs:     getEnvInt("MOCK_DEVICE_COMMAND_DELAY_MS", 100),
		ErrorMode:          getEnvString("MOCK_DEVICE_ERROR_MODE", "none"),
		ErrorAfterN:        getEnvInt("MOCK_DEVICE_ERROR_AFTER_N", 0),
		EnableHistory:      getEnvBool("MOCK_DEVICE_ENABLE_HISTORY", true),
		HistoryDepth:       getEnvInt("MOCK_DEVICE_HISTORY_DEPTH", 100),
		Hostname:           getEnvString("MOCK_DEVICE_HOSTNAME", "rk3588"),
	}
}

// getEnvBool reads a boolean environment variable with a default value
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1" || val == "yes"
}

// getEnvInt reads an integer environment variable with a default value
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvString reads a string environment variable with a default value
func getEnvString(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}
