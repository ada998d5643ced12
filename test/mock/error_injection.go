package mock

import (
	"sync"

	"k8s.io/klog/v2"
)

// ErrorMode defines the type of error to inject
type ErrorMode int

const (
	// ErrorModeNone indicates no error injection
	ErrorModeNone ErrorMode = iota
	// ErrorModeSSHTimeout drops the connection before the SSH handshake
	ErrorModeSSHTimeout
	// ErrorModeLoginHang accepts the password but never shows the shell prompt
	ErrorModeLoginHang
	// ErrorModeDropAfterLogin closes the session right after the shell prompt
	ErrorModeDropAfterLogin
	// ErrorModeCommandHang answers commands without printing a prompt afterwards
	ErrorModeCommandHang
)

// ErrorInjector manages error injection for testing
type ErrorInjector struct {
	mode         ErrorMode
	operationNum int
	triggerAfter int
	mu           sync.Mutex // Protect operation counter
}

// NewErrorInjector creates a new error injector from configuration
func NewErrorInjector(config MockDeviceConfig) *ErrorInjector {
	mode := ParseErrorMode(config.ErrorMode)
	return &ErrorInjector{
		mode:         mode,
		triggerAfter: config.ErrorAfterN,
	}
}

// ParseErrorMode converts string error mode to ErrorMode constant
func ParseErrorMode(s string) ErrorMode {
	switch s {
	case "ssh_timeout":
		return ErrorModeSSHTimeout
	case "login_hang":
		return ErrorModeLoginHang
	case "drop_after_login":
		return ErrorModeDropAfterLogin
	case "command_hang":
		return ErrorModeCommandHang
	case "none", "":
		return ErrorModeNone
	default:
		klog.Warningf("Unknown error mode %q, using none", s)
		return ErrorModeNone
	}
}

// SetMode switches the injected error, resetting the operation counter
func (e *ErrorInjector) SetMode(mode ErrorMode, triggerAfter int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	e.triggerAfter = triggerAfter
	e.operationNum = 0
}

// ShouldFailSSHConnect returns true if the connection should be dropped
func (e *ErrorInjector) ShouldFailSSHConnect() bool {
	return e.trigger(ErrorModeSSHTimeout)
}

// ShouldHangLogin returns true if the shell prompt should be withheld
func (e *ErrorInjector) ShouldHangLogin() bool {
	return e.trigger(ErrorModeLoginHang)
}

// ShouldDropAfterLogin returns true if the session should end after login
func (e *ErrorInjector) ShouldDropAfterLogin() bool {
	return e.trigger(ErrorModeDropAfterLogin)
}

// ShouldHangCommand returns true if the prompt after a command should be withheld
func (e *ErrorInjector) ShouldHangCommand() bool {
	return e.trigger(ErrorModeCommandHang)
}

// trigger counts an operation of the given mode and reports whether it fails
func (e *ErrorInjector) trigger(mode ErrorMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != mode {
		return false
	}

	e.operationNum++
	return e.operationNum > e.triggerAfter
}

// Reset resets the operation counter for test isolation
func (e *ErrorInjector) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operationNum = 0
}
