package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSecurityEvent(t *testing.T) {
	event := NewSecurityEvent(
		EventSSHConnectionAttempt,
		CategoryAuthentication,
		SeverityInfo,
		"Test message",
	)

	if event.EventType != EventSSHConnectionAttempt {
		t.Errorf("Expected EventType %s, got %s", EventSSHConnectionAttempt, event.EventType)
	}
	if event.Category != CategoryAuthentication {
		t.Errorf("Expected Category %s, got %s", CategoryAuthentication, event.Category)
	}
	if event.Severity != SeverityInfo {
		t.Errorf("Expected Severity %s, got %s", SeverityInfo, event.Severity)
	}
	if event.Message != "Test message" {
		t.Errorf("Expected Message 'Test message', got '%s'", event.Message)
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be set, got zero time")
	}
	if event.Details == nil {
		t.Error("Expected Details map to be initialized")
	}
}

func TestSecurityEvent_WithMethods(t *testing.T) {
	event := NewSecurityEvent(EventConsoleLoginSuccess, CategoryAuthentication, SeverityInfo, "Test").
		WithOutcome(OutcomeSuccess).
		WithIdentity("root").
		WithTarget("192.168.1.50:22", "ssh").
		WithMountPath("/mnt/emmc_mount").
		WithOperation("login", 250*time.Millisecond).
		WithError(errors.New("boom")).
		WithDetail("fingerprint", "SHA256:abc")

	if event.Outcome != OutcomeSuccess {
		t.Errorf("Expected Outcome %s, got %s", OutcomeSuccess, event.Outcome)
	}
	if event.Username != "root" {
		t.Errorf("Expected username root, got %s", event.Username)
	}
	if event.Target != "192.168.1.50:22" || event.Transport != "ssh" {
		t.Errorf("WithTarget failed: got target=%s transport=%s", event.Target, event.Transport)
	}
	if event.MountPath != "/mnt/emmc_mount" {
		t.Errorf("Expected mount path /mnt/emmc_mount, got %s", event.MountPath)
	}
	if event.Operation != "login" || event.Duration != 250*time.Millisecond {
		t.Errorf("WithOperation failed: got operation=%s duration=%v", event.Operation, event.Duration)
	}
	if event.Error != "boom" {
		t.Errorf("Expected error boom, got %s", event.Error)
	}
	if event.Details["fingerprint"] != "SHA256:abc" {
		t.Errorf("Expected fingerprint detail, got %v", event.Details)
	}
}

func TestSecurityEvent_WithError_Nil(t *testing.T) {
	event := NewSecurityEvent(EventBridgeSpawnSuccess, CategoryNetworkAccess, SeverityInfo, "Test").
		WithError(nil)
	if event.Error != "" {
		t.Errorf("Expected empty error for nil, got %q", event.Error)
	}
}

func TestSecurityEvent_WithDetail_NilMap(t *testing.T) {
	event := &SecurityEvent{}
	event.WithDetail("key", "value")
	if event.Details["key"] != "value" {
		t.Errorf("Expected detail to be set on nil map, got %v", event.Details)
	}
}

func TestFormatLogMessage(t *testing.T) {
	event := NewSecurityEvent(
		EventConsoleLoginTimeout,
		CategoryAuthentication,
		SeverityWarning,
		"Device console login timed out",
	).WithIdentity("root").
		WithTarget("adb shell", "adb").
		WithMountPath("/mnt/emmc_mount").
		WithOperation("login", 3*time.Second).
		WithOutcome(OutcomeFailure).
		WithDetail("zeta", "last").
		WithDetail("alpha", "first")

	msg := formatLogMessage(event)

	expectedFields := []string{
		"[SECURITY]",
		"category=authentication",
		"type=console_login_timeout",
		"severity=warning",
		"outcome=failure",
		`msg="Device console login timed out"`,
		"username=root",
		"target=adb shell",
		"transport=adb",
		"mount_path=/mnt/emmc_mount",
		"operation=login",
		"duration_ms=3000",
		"timestamp=",
	}
	for _, field := range expectedFields {
		if !strings.Contains(msg, field) {
			t.Errorf("Log message missing field: %s\nGot: %s", field, msg)
		}
	}

	alpha := strings.Index(msg, `alpha="first"`)
	zeta := strings.Index(msg, `zeta="last"`)
	if alpha < 0 || zeta < 0 || alpha > zeta {
		t.Errorf("Expected details sorted by key, got: %s", msg)
	}
}

func TestFormatLogMessage_MinimalEvent(t *testing.T) {
	event := NewSecurityEvent(EventBridgeSpawnSuccess, CategoryNetworkAccess, SeverityInfo, "Minimal")

	msg := formatLogMessage(event)

	for _, absent := range []string{"username=", "target=", "mount_path=", "duration_ms=", "error="} {
		if strings.Contains(msg, absent) {
			t.Errorf("Minimal event should not contain %s, got: %s", absent, msg)
		}
	}
}

func TestLogger_LogEvent(t *testing.T) {
	logger := NewLogger(nil)

	logger.LogEvent(NewSecurityEvent(EventSSHConnectionAttempt, CategoryAuthentication, SeverityInfo, "Test"))
	logger.LogEvent(NewSecurityEvent(EventConsoleLoginSuccess, CategoryAuthentication, SeverityInfo, "Test").
		WithOperation("login", 100*time.Millisecond))
	logger.LogEvent(NewSecurityEvent(EventSSHHostKeyMismatch, CategorySecurityViolation, SeverityCritical, "Test"))
	logger.LogEvent(NewSecurityEvent(EventType("custom"), CategoryNetworkAccess, EventSeverity("bogus"), "Test"))

	metrics := logger.GetMetrics().Snapshot()

	if metrics.SSHConnectionAttempts != 1 {
		t.Errorf("Expected 1 SSH connection attempt, got %d", metrics.SSHConnectionAttempts)
	}
	if metrics.ConsoleLoginSuccesses != 1 {
		t.Errorf("Expected 1 console login success, got %d", metrics.ConsoleLoginSuccesses)
	}
	if metrics.SSHHostKeyMismatches != 1 {
		t.Errorf("Expected 1 host key mismatch, got %d", metrics.SSHHostKeyMismatches)
	}
	if metrics.InfoEvents != 2 {
		t.Errorf("Expected 2 info events, got %d", metrics.InfoEvents)
	}
	if metrics.CriticalEvents != 1 {
		t.Errorf("Expected 1 critical event, got %d", metrics.CriticalEvents)
	}
	if metrics.AverageLoginDuration != 100*time.Millisecond {
		t.Errorf("Expected average login duration 100ms, got %v", metrics.AverageLoginDuration)
	}
}

func TestLogger_HelperMethods(t *testing.T) {
	login := ConsoleLogin{Username: "root", Transport: "adb", MountPath: "/mnt/emmc_mount", Duration: time.Second}

	tests := []struct {
		name        string
		logFunc     func(*Logger)
		checkMetric func(Counters) int64
	}{
		{
			name:        "SSH connection attempt",
			logFunc:     func(l *Logger) { l.LogSSHConnectionAttempt("root", "10.0.0.1:22") },
			checkMetric: func(c Counters) int64 { return c.SSHConnectionAttempts },
		},
		{
			name:        "SSH connection success",
			logFunc:     func(l *Logger) { l.LogSSHConnectionSuccess("root", "10.0.0.1:22") },
			checkMetric: func(c Counters) int64 { return c.SSHConnectionSuccesses },
		},
		{
			name:        "SSH connection failure",
			logFunc:     func(l *Logger) { l.LogSSHConnectionFailure("root", "10.0.0.1:22", errors.New("refused")) },
			checkMetric: func(c Counters) int64 { return c.SSHConnectionFailures },
		},
		{
			name:        "SSH host key verified",
			logFunc:     func(l *Logger) { l.LogSSHHostKeyVerified("10.0.0.1:22", "SHA256:abc") },
			checkMetric: func(c Counters) int64 { return c.SSHHostKeyVerified },
		},
		{
			name:        "SSH host key unverified",
			logFunc:     func(l *Logger) { l.LogSSHHostKeyUnverified("10.0.0.1:22", "SHA256:abc") },
			checkMetric: func(c Counters) int64 { return c.SSHHostKeyUnverified },
		},
		{
			name:        "SSH host key mismatch",
			logFunc:     func(l *Logger) { l.LogSSHHostKeyMismatch("10.0.0.1:22", "SHA256:old", "SHA256:new") },
			checkMetric: func(c Counters) int64 { return c.SSHHostKeyMismatches },
		},
		{
			name:        "bridge spawn success",
			logFunc:     func(l *Logger) { l.LogBridgeSpawn("adb", "adb shell", nil) },
			checkMetric: func(c Counters) int64 { return c.BridgeSpawnSuccesses },
		},
		{
			name:        "bridge spawn failure",
			logFunc:     func(l *Logger) { l.LogBridgeSpawn("adb", "adb shell", errors.New("not found")) },
			checkMetric: func(c Counters) int64 { return c.BridgeSpawnFailures },
		},
		{
			name:        "console login success",
			logFunc:     func(l *Logger) { l.LogConsoleLoginSuccess(login) },
			checkMetric: func(c Counters) int64 { return c.ConsoleLoginSuccesses },
		},
		{
			name:        "console login timeout",
			logFunc:     func(l *Logger) { l.LogConsoleLoginTimeout(login) },
			checkMetric: func(c Counters) int64 { return c.ConsoleLoginTimeouts },
		},
		{
			name:        "console login aborted",
			logFunc:     func(l *Logger) { l.LogConsoleLoginAborted(login, errors.New("EOF")) },
			checkMetric: func(c Counters) int64 { return c.ConsoleLoginAborts },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(nil)
			tt.logFunc(logger)
			if got := tt.checkMetric(logger.GetMetrics().Snapshot()); got != 1 {
				t.Errorf("Expected metric to be 1, got %d", got)
			}
		})
	}
}

func TestLogger_BridgeSpawnFailureSeverity(t *testing.T) {
	logger := NewLogger(nil)

	logger.LogBridgeSpawn("ssh", "10.0.0.1:22", errors.New("dial tcp: refused"))

	metrics := logger.GetMetrics().Snapshot()
	if metrics.ErrorEvents != 1 {
		t.Errorf("Expected 1 error event, got %d", metrics.ErrorEvents)
	}
	if metrics.BridgeSpawnSuccesses != 0 {
		t.Errorf("Expected no spawn successes, got %d", metrics.BridgeSpawnSuccesses)
	}
}

func TestGetLogger_Singleton(t *testing.T) {
	logger1 := GetLogger()
	logger2 := GetLogger()

	if logger1 != logger2 {
		t.Error("GetLogger should return the same instance")
	}
	if logger1.GetMetrics() != GetMetrics() {
		t.Error("Global logger should record into the global metrics")
	}
}
