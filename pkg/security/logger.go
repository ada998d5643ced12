package security

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Logger provides centralized security event logging
type Logger struct {
	metrics *SecurityMetrics
}

// globalLogger is the global security logger instance
var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global security logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			metrics: GetMetrics(),
		}
	})
	return globalLogger
}

// NewLogger creates a security logger that records into m.
// A nil m gets a private metrics instance.
func NewLogger(m *SecurityMetrics) *Logger {
	if m == nil {
		m = &SecurityMetrics{}
	}
	return &Logger{metrics: m}
}

// severityMap maps EventSeverity to the klog function that emits it
var severityMap = map[EventSeverity]func(args ...interface{}){
	SeverityInfo:     func(args ...interface{}) { klog.V(2).Info(args...) },
	SeverityWarning:  klog.Warning,
	SeverityError:    klog.Error,
	SeverityCritical: klog.Error,
}

// LogEvent logs a security event with structured logging
func (l *Logger) LogEvent(event *SecurityEvent) {
	l.metrics.RecordEvent(event)

	logFunc, ok := severityMap[event.Severity]
	if !ok {
		logFunc = severityMap[SeverityInfo]
	}
	logFunc(formatLogMessage(event))

	// Critical events are repeated as JSON for log scrapers
	if event.Severity == SeverityCritical {
		if jsonBytes, err := json.Marshal(event); err == nil {
			klog.Errorf("CRITICAL_SECURITY_EVENT: %s", string(jsonBytes))
		}
	}
}

// formatLogMessage formats a security event as a key=value log line
func formatLogMessage(event *SecurityEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[SECURITY] category=%s type=%s severity=%s outcome=%s msg=%q",
		event.Category, event.EventType, event.Severity, event.Outcome, event.Message)

	if event.Username != "" {
		fmt.Fprintf(&b, " username=%s", event.Username)
	}
	if event.Target != "" {
		fmt.Fprintf(&b, " target=%s", event.Target)
	}
	if event.Transport != "" {
		fmt.Fprintf(&b, " transport=%s", event.Transport)
	}
	if event.MountPath != "" {
		fmt.Fprintf(&b, " mount_path=%s", event.MountPath)
	}
	if event.Operation != "" {
		fmt.Fprintf(&b, " operation=%s", event.Operation)
	}
	if event.Duration > 0 {
		fmt.Fprintf(&b, " duration_ms=%d", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		fmt.Fprintf(&b, " error=%q", event.Error)
	}

	keys := make([]string, 0, len(event.Details))
	for key := range event.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%q", key, event.Details[key])
	}

	fmt.Fprintf(&b, " timestamp=%s", event.Timestamp.Format("2006-01-02T15:04:05.000Z"))
	return b.String()
}

// Helper methods for common security events

// LogSSHConnectionAttempt logs an SSH connection attempt
func (l *Logger) LogSSHConnectionAttempt(username, address string) {
	event := NewSecurityEvent(
		EventSSHConnectionAttempt,
		CategoryAuthentication,
		SeverityInfo,
		"SSH connection attempt",
	).WithIdentity(username).
		WithTarget(address, "ssh").
		WithOutcome(OutcomeUnknown)
	l.LogEvent(event)
}

// LogSSHConnectionSuccess logs a successful SSH connection
func (l *Logger) LogSSHConnectionSuccess(username, address string) {
	event := NewSecurityEvent(
		EventSSHConnectionSuccess,
		CategoryAuthentication,
		SeverityInfo,
		"SSH connection established",
	).WithIdentity(username).
		WithTarget(address, "ssh").
		WithOutcome(OutcomeSuccess)
	l.LogEvent(event)
}

// LogSSHConnectionFailure logs a failed SSH connection
func (l *Logger) LogSSHConnectionFailure(username, address string, err error) {
	event := NewSecurityEvent(
		EventSSHConnectionFailure,
		CategoryAuthentication,
		SeverityError,
		"SSH connection failed",
	).WithIdentity(username).
		WithTarget(address, "ssh").
		WithOutcome(OutcomeFailure).
		WithError(err)
	l.LogEvent(event)
}

// LogSSHHostKeyVerified logs successful SSH host key verification
func (l *Logger) LogSSHHostKeyVerified(address, fingerprint string) {
	event := NewSecurityEvent(
		EventSSHHostKeyVerified,
		CategoryAuthentication,
		SeverityInfo,
		"SSH host key verified",
	).WithTarget(address, "ssh").
		WithDetail("fingerprint", fingerprint).
		WithOutcome(OutcomeSuccess)
	l.LogEvent(event)
}

// LogSSHHostKeyUnverified logs a host key accepted without a known_hosts check
func (l *Logger) LogSSHHostKeyUnverified(address, fingerprint string) {
	event := NewSecurityEvent(
		EventSSHHostKeyUnverified,
		CategoryAuthentication,
		SeverityWarning,
		"SSH host key accepted without verification",
	).WithTarget(address, "ssh").
		WithDetail("fingerprint", fingerprint).
		WithOutcome(OutcomeSuccess)
	l.LogEvent(event)
}

// LogSSHHostKeyMismatch logs an SSH host key mismatch (critical security event).
// An empty expectedFingerprint means the host is missing from known_hosts.
func (l *Logger) LogSSHHostKeyMismatch(address, expectedFingerprint, actualFingerprint string) {
	message := "SSH host key verification failed - possible MITM attack"
	if expectedFingerprint == "" {
		message = "SSH host key not found in known_hosts"
	}
	event := NewSecurityEvent(
		EventSSHHostKeyMismatch,
		CategorySecurityViolation,
		SeverityCritical,
		message,
	).WithTarget(address, "ssh").
		WithDetail("expected_fingerprint", expectedFingerprint).
		WithDetail("actual_fingerprint", actualFingerprint).
		WithOutcome(OutcomeDenied)
	l.LogEvent(event)
}

// LogBridgeSpawn logs the outcome of starting the remote shell bridge
func (l *Logger) LogBridgeSpawn(transport, target string, err error) {
	event := NewSecurityEvent(
		EventBridgeSpawnSuccess,
		CategoryNetworkAccess,
		SeverityInfo,
		"Remote shell bridge started",
	).WithTarget(target, transport).
		WithOutcome(OutcomeSuccess)
	if err != nil {
		event.EventType = EventBridgeSpawnFailure
		event.Severity = SeverityError
		event.Message = "Remote shell bridge failed to start"
		event.WithOutcome(OutcomeFailure).WithError(err)
	}
	l.LogEvent(event)
}

// ConsoleLogin describes one login dialogue on the device console.
// Password is never part of it.
type ConsoleLogin struct {
	Username  string
	Transport string
	MountPath string
	Duration  time.Duration
}

// LogConsoleLoginSuccess logs a login that reached the shell prompt
func (l *Logger) LogConsoleLoginSuccess(login ConsoleLogin) {
	event := NewSecurityEvent(
		EventConsoleLoginSuccess,
		CategoryAuthentication,
		SeverityInfo,
		"Device console login succeeded",
	).WithIdentity(login.Username).
		WithTarget("", login.Transport).
		WithMountPath(login.MountPath).
		WithOperation("login", login.Duration).
		WithOutcome(OutcomeSuccess)
	l.LogEvent(event)
}

// LogConsoleLoginTimeout logs a login that never reached the shell prompt
func (l *Logger) LogConsoleLoginTimeout(login ConsoleLogin) {
	event := NewSecurityEvent(
		EventConsoleLoginTimeout,
		CategoryAuthentication,
		SeverityWarning,
		"Device console login timed out",
	).WithIdentity(login.Username).
		WithTarget("", login.Transport).
		WithMountPath(login.MountPath).
		WithOperation("login", login.Duration).
		WithOutcome(OutcomeFailure)
	l.LogEvent(event)
}

// LogConsoleLoginAborted logs a login cut short by the bridge exiting or an I/O error
func (l *Logger) LogConsoleLoginAborted(login ConsoleLogin, err error) {
	event := NewSecurityEvent(
		EventConsoleLoginAborted,
		CategoryAuthentication,
		SeverityError,
		"Device console login aborted",
	).WithIdentity(login.Username).
		WithTarget("", login.Transport).
		WithMountPath(login.MountPath).
		WithOperation("login", login.Duration).
		WithOutcome(OutcomeFailure).
		WithError(err)
	l.LogEvent(event)
}

// GetMetrics returns the current security metrics
func (l *Logger) GetMetrics() *SecurityMetrics {
	return l.metrics
}
