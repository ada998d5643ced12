// Package config loads emmc-mount-check settings.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (EMMCCHECK_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// With no file and no environment, the defaults reproduce the stock check:
// `adb shell`, placeholder credentials, the three emmc_mount probes and
// emmc_mount_check.log in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "EMMCCHECK"

	// appName names the per-user config directory
	appName = "emmc-mount-check"
)

// Config represents the complete check configuration.
type Config struct {
	// Bridge selects how the remote shell is opened
	Bridge BridgeConfig `mapstructure:"bridge"`

	// SSH is used only when Bridge.Transport is "ssh"
	SSH SSHConfig `mapstructure:"ssh"`

	// Login holds prompt strings and the credentials answered to them
	Login LoginConfig `mapstructure:"login"`

	// Check describes the mount path and the probe commands
	Check CheckConfig `mapstructure:"check"`

	// Log is the append-only check log
	Log LogConfig `mapstructure:"log"`

	// Metrics controls the optional Prometheus textfile
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// BridgeConfig controls the remote shell transport.
type BridgeConfig struct {
	// Transport is "adb" (spawn a local bridge command) or "ssh"
	Transport string `mapstructure:"transport" validate:"required,oneof=adb ssh"`

	// Command is the bridge command line, split with shell quoting rules
	// Example: "adb -s 0123456789ABCDEF shell"
	Command string `mapstructure:"command" validate:"required_if=Transport adb"`

	// PTY runs the bridge on a pseudo terminal instead of plain pipes
	PTY bool `mapstructure:"pty"`

	// TerminateGrace is how long cleanup waits after a graceful stop before killing
	TerminateGrace time.Duration `mapstructure:"terminate_grace" validate:"gt=0"`
}

// SSHConfig holds settings for the ssh transport.
type SSHConfig struct {
	Address string `mapstructure:"address" validate:"omitempty,hostname_rfc1123|ip"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User    string `mapstructure:"user"`

	// KeyFile is an optional private key; Login.Password is also offered
	KeyFile string `mapstructure:"key_file"`

	// KnownHosts enables host key verification when set
	KnownHosts string `mapstructure:"known_hosts"`

	// DialTimeout bounds the TCP connect, then separately the SSH handshake
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
}

// LoginConfig describes the login dialogue.
type LoginConfig struct {
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	LoginPrompt    string        `mapstructure:"login_prompt" validate:"required"`
	PasswordPrompt string        `mapstructure:"password_prompt" validate:"required"`
	ShellPrompt    string        `mapstructure:"shell_prompt" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// CheckConfig describes what is probed once logged in.
type CheckConfig struct {
	// MountPath is the mount point under test
	MountPath string `mapstructure:"mount_path" validate:"required,startswith=/"`

	// Marker is the literal searched for in command output
	Marker string `mapstructure:"marker" validate:"required"`

	// Commands are sent in order, one per line
	Commands []string `mapstructure:"commands" validate:"required,min=1,dive,required"`

	// CommandTimeout bounds the capture of each command's output
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"gt=0"`
}

// LogConfig locates the check log.
type LogConfig struct {
	File string `mapstructure:"file" validate:"required"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics in Prometheus text format
	Textfile string `mapstructure:"textfile"`
}

// Secrets returns values that must never appear in persisted text.
func (c *Config) Secrets() []string {
	return []string{c.Login.Password}
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string searches the default locations)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: EMMCCHECK_LOGIN_PASSWORD=secret
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so register
	// every leaf key for Unmarshal to see environment-only values.
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(getConfigDir())
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/emmc-mount-check, falling back to
// ~/.config/emmc-mount-check, or "." when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", appName)
}

var knownKeys = []string{
	"bridge.transport",
	"bridge.command",
	"bridge.pty",
	"bridge.terminate_grace",
	"ssh.address",
	"ssh.port",
	"ssh.user",
	"ssh.key_file",
	"ssh.known_hosts",
	"ssh.dial_timeout",
	"login.username",
	"login.password",
	"login.login_prompt",
	"login.password_prompt",
	"login.shell_prompt",
	"login.timeout",
	"check.mount_path",
	"check.marker",
	"check.commands",
	"check.command_timeout",
	"log.file",
	"metrics.textfile",
}
