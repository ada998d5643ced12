package security

import "time"

// EventCategory represents the category of a security event
type EventCategory string

const (
	// CategoryAuthentication represents authentication-related events
	CategoryAuthentication EventCategory = "authentication"

	// CategoryNetworkAccess represents bridge and connection events
	CategoryNetworkAccess EventCategory = "network_access"

	// CategorySecurityViolation represents potential security violations
	CategorySecurityViolation EventCategory = "security_violation"
)

// EventSeverity represents the severity level of a security event
type EventSeverity string

const (
	// SeverityInfo represents informational events
	SeverityInfo EventSeverity = "info"

	// SeverityWarning represents warning events
	SeverityWarning EventSeverity = "warning"

	// SeverityError represents error events
	SeverityError EventSeverity = "error"

	// SeverityCritical represents critical security events
	SeverityCritical EventSeverity = "critical"
)

// EventOutcome represents the outcome of a security event
type EventOutcome string

const (
	// OutcomeSuccess indicates the operation succeeded
	OutcomeSuccess EventOutcome = "success"

	// OutcomeFailure indicates the operation failed
	OutcomeFailure EventOutcome = "failure"

	// OutcomeDenied indicates the operation was denied
	OutcomeDenied EventOutcome = "denied"

	// OutcomeUnknown indicates the outcome is unknown
	OutcomeUnknown EventOutcome = "unknown"
)

// EventType represents specific types of security events
type EventType string

const (
	// SSH transport events
	EventSSHConnectionAttempt EventType = "ssh_connection_attempt"
	EventSSHConnectionSuccess EventType = "ssh_connection_success"
	EventSSHConnectionFailure EventType = "ssh_connection_failure"
	EventSSHHostKeyVerified   EventType = "ssh_host_key_verified"
	EventSSHHostKeyUnverified EventType = "ssh_host_key_unverified"
	EventSSHHostKeyMismatch   EventType = "ssh_host_key_mismatch"

	// Bridge events
	EventBridgeSpawnSuccess EventType = "bridge_spawn_success"
	EventBridgeSpawnFailure EventType = "bridge_spawn_failure"

	// Device console login events
	EventConsoleLoginSuccess EventType = "console_login_success"
	EventConsoleLoginTimeout EventType = "console_login_timeout"
	EventConsoleLoginAborted EventType = "console_login_aborted"
)

// SecurityEvent represents a security-relevant event in the system
type SecurityEvent struct {
	// Core event fields
	Timestamp time.Time     `json:"timestamp"`
	EventType EventType     `json:"event_type"`
	Category  EventCategory `json:"category"`
	Severity  EventSeverity `json:"severity"`
	Outcome   EventOutcome  `json:"outcome"`
	Message   string        `json:"message"`

	// Identity fields
	Username  string `json:"username,omitempty"`
	Target    string `json:"target,omitempty"`
	Transport string `json:"transport,omitempty"`

	// Resource fields
	MountPath string `json:"mount_path,omitempty"`

	// Operation details
	Operation string            `json:"operation,omitempty"`
	Duration  time.Duration     `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewSecurityEvent creates a new security event with timestamp
func NewSecurityEvent(eventType EventType, category EventCategory, severity EventSeverity, message string) *SecurityEvent {
	return &SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Category:  category,
		Severity:  severity,
		Message:   message,
		Details:   make(map[string]string),
	}
}

// WithOutcome sets the outcome for the event
func (e *SecurityEvent) WithOutcome(outcome EventOutcome) *SecurityEvent {
	e.Outcome = outcome
	return e
}

// WithIdentity sets the user the bridge or console authenticated as
func (e *SecurityEvent) WithIdentity(username string) *SecurityEvent {
	e.Username = username
	return e
}

// WithTarget sets the device endpoint and the transport used to reach it
func (e *SecurityEvent) WithTarget(target, transport string) *SecurityEvent {
	e.Target = target
	e.Transport = transport
	return e
}

// WithMountPath sets the mount path under inspection
func (e *SecurityEvent) WithMountPath(path string) *SecurityEvent {
	e.MountPath = path
	return e
}

// WithOperation sets operation details
func (e *SecurityEvent) WithOperation(operation string, duration time.Duration) *SecurityEvent {
	e.Operation = operation
	e.Duration = duration
	return e
}

// WithError sets error information
func (e *SecurityEvent) WithError(err error) *SecurityEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDetail adds a custom detail field
func (e *SecurityEvent) WithDetail(key, value string) *SecurityEvent {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}
