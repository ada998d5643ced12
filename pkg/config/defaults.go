package config

import (
	"strings"
	"time"
)

// Defaults for the stock post-resume check.
const (
	DefaultTransport      = "adb"
	DefaultBridgeCommand  = "adb shell"
	DefaultTerminateGrace = 1 * time.Second

	DefaultSSHPort        = 22
	DefaultSSHDialTimeout = 10 * time.Second

	// Placeholder credentials; override in the config file or with
	// EMMCCHECK_LOGIN_USERNAME / EMMCCHECK_LOGIN_PASSWORD.
	DefaultUsername = "your_username"
	DefaultPassword = "your_password"

	DefaultLoginPrompt    = "login:"
	DefaultPasswordPrompt = "Password:"
	DefaultShellPrompt    = "#"
	DefaultLoginTimeout   = 3 * time.Second

	DefaultMountPath      = "/mnt/emmc_mount"
	DefaultMarker         = "emmc_mount"
	DefaultCommandTimeout = 3 * time.Second

	DefaultLogFile = "emmc_mount_check.log"
)

// DefaultCommands returns the probe commands sent after login, in order.
func DefaultCommands() []string {
	return []string{
		"df -h | grep emmc_mount || echo '/mnt/emmc_mount not found'",
		"mount | grep emmc_mount || echo '/mnt/emmc_mount not mounted'",
		"cat /proc/mounts | grep emmc_mount || true",
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values ("", 0, nil) are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyBridgeDefaults(&cfg.Bridge)
	applySSHDefaults(&cfg.SSH)
	applyLoginDefaults(&cfg.Login)
	applyCheckDefaults(&cfg.Check)

	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}
}

func applyBridgeDefaults(cfg *BridgeConfig) {
	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}
	cfg.Transport = strings.ToLower(cfg.Transport)

	if cfg.Command == "" && cfg.Transport == "adb" {
		cfg.Command = DefaultBridgeCommand
	}
	if cfg.TerminateGrace == 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
}

func applySSHDefaults(cfg *SSHConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultSSHDialTimeout
	}
}

func applyLoginDefaults(cfg *LoginConfig) {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.LoginPrompt == "" {
		cfg.LoginPrompt = DefaultLoginPrompt
	}
	if cfg.PasswordPrompt == "" {
		cfg.PasswordPrompt = DefaultPasswordPrompt
	}
	if cfg.ShellPrompt == "" {
		cfg.ShellPrompt = DefaultShellPrompt
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLoginTimeout
	}
}

func applyCheckDefaults(cfg *CheckConfig) {
	if cfg.MountPath == "" {
		cfg.MountPath = DefaultMountPath
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if len(cfg.Commands) == 0 {
		cfg.Commands = DefaultCommands()
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
}
