package security

import (
	"fmt"
	"sync"
	"time"
)

// Counters holds security event counts for one process
type Counters struct {
	// SSH transport
	SSHConnectionAttempts  int64 `json:"ssh_connection_attempts"`
	SSHConnectionSuccesses int64 `json:"ssh_connection_successes"`
	SSHConnectionFailures  int64 `json:"ssh_connection_failures"`
	SSHHostKeyVerified     int64 `json:"ssh_host_key_verified"`
	SSHHostKeyUnverified   int64 `json:"ssh_host_key_unverified"`
	SSHHostKeyMismatches   int64 `json:"ssh_host_key_mismatches"`

	// Bridge
	BridgeSpawnSuccesses int64 `json:"bridge_spawn_successes"`
	BridgeSpawnFailures  int64 `json:"bridge_spawn_failures"`

	// Device console
	ConsoleLoginSuccesses int64 `json:"console_login_successes"`
	ConsoleLoginTimeouts  int64 `json:"console_login_timeouts"`
	ConsoleLoginAborts    int64 `json:"console_login_aborts"`

	// Severity counters
	InfoEvents     int64 `json:"info_events"`
	WarningEvents  int64 `json:"warning_events"`
	ErrorEvents    int64 `json:"error_events"`
	CriticalEvents int64 `json:"critical_events"`

	// Timing
	LastSSHConnection     time.Time     `json:"last_ssh_connection"`
	LastConsoleLogin      time.Time     `json:"last_console_login"`
	LastSecurityViolation time.Time     `json:"last_security_violation"`
	AverageLoginDuration  time.Duration `json:"average_login_duration_ms"`
}

// SecurityMetrics tracks security event counts
type SecurityMetrics struct {
	mu sync.RWMutex
	Counters

	totalLoginTime time.Duration
	totalLogins    int64
}

// globalMetrics is the global security metrics instance
var (
	globalMetrics *SecurityMetrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global security metrics instance
func GetMetrics() *SecurityMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &SecurityMetrics{}
	})
	return globalMetrics
}

// RecordEvent records a security event in metrics
func (m *SecurityMetrics) RecordEvent(event *SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Severity {
	case SeverityInfo:
		m.InfoEvents++
	case SeverityWarning:
		m.WarningEvents++
	case SeverityError:
		m.ErrorEvents++
	case SeverityCritical:
		m.CriticalEvents++
	}

	switch event.EventType {
	case EventSSHConnectionAttempt:
		m.SSHConnectionAttempts++
		m.LastSSHConnection = event.Timestamp
	case EventSSHConnectionSuccess:
		m.SSHConnectionSuccesses++
	case EventSSHConnectionFailure:
		m.SSHConnectionFailures++
	case EventSSHHostKeyVerified:
		m.SSHHostKeyVerified++
	case EventSSHHostKeyUnverified:
		m.SSHHostKeyUnverified++
	case EventSSHHostKeyMismatch:
		m.SSHHostKeyMismatches++
		m.LastSecurityViolation = event.Timestamp

	case EventBridgeSpawnSuccess:
		m.BridgeSpawnSuccesses++
	case EventBridgeSpawnFailure:
		m.BridgeSpawnFailures++

	case EventConsoleLoginSuccess:
		m.ConsoleLoginSuccesses++
		m.LastConsoleLogin = event.Timestamp
		m.recordLoginDuration(event.Duration)
	case EventConsoleLoginTimeout:
		m.ConsoleLoginTimeouts++
		m.LastConsoleLogin = event.Timestamp
	case EventConsoleLoginAborted:
		m.ConsoleLoginAborts++
		m.LastConsoleLogin = event.Timestamp
	}
}

// recordLoginDuration folds a successful login's duration into the average
func (m *SecurityMetrics) recordLoginDuration(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.totalLoginTime += duration
	m.totalLogins++
	m.AverageLoginDuration = m.totalLoginTime / time.Duration(m.totalLogins)
}

// Reset resets all metrics to zero
func (m *SecurityMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Counters = Counters{}
	m.totalLoginTime = 0
	m.totalLogins = 0
}

// String returns a human-readable representation of the metrics
func (m *SecurityMetrics) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fmt.Sprintf("SecurityMetrics{"+
		"SSH(attempts=%d, success=%d, failures=%d, verified=%d, unverified=%d, key_mismatches=%d), "+
		"Bridge(success=%d, failures=%d), "+
		"Login(success=%d, timeouts=%d, aborts=%d), "+
		"Severity(info=%d, warning=%d, error=%d, critical=%d), "+
		"AvgLoginDuration=%dms}",
		m.SSHConnectionAttempts, m.SSHConnectionSuccesses, m.SSHConnectionFailures, m.SSHHostKeyVerified, m.SSHHostKeyUnverified, m.SSHHostKeyMismatches,
		m.BridgeSpawnSuccesses, m.BridgeSpawnFailures,
		m.ConsoleLoginSuccesses, m.ConsoleLoginTimeouts, m.ConsoleLoginAborts,
		m.InfoEvents, m.WarningEvents, m.ErrorEvents, m.CriticalEvents,
		m.AverageLoginDuration.Milliseconds())
}

// Snapshot returns a copy of the current counters
func (m *SecurityMetrics) Snapshot() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Counters
}
