package utils

import (
	"errors"
	"strings"
)

// Sentinel errors for common conditions.
// Use errors.Is() to check for these rather than string matching.
var (
	// ErrLoginTimeout indicates no shell prompt was seen before the login deadline
	ErrLoginTimeout = errors.New("login timed out")

	// ErrProcessExited indicates the bridge process ended before the session finished
	ErrProcessExited = errors.New("bridge process exited")

	// ErrNotConnected indicates an operation was attempted on a shell that was never started
	ErrNotConnected = errors.New("shell not connected")

	// ErrInvalidTransport indicates an unknown bridge transport was configured
	ErrInvalidTransport = errors.New("invalid bridge transport")
)

// redactedPlaceholder replaces secret values in messages
const redactedPlaceholder = "[REDACTED]"

// RedactSecrets replaces every occurrence of the given secrets in msg.
// Empty secrets are ignored. Longer secrets are replaced first so that a
// secret containing another one is never partially exposed.
func RedactSecrets(msg string, secrets ...string) string {
	ordered := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) == 0 {
		return msg
	}

	// insertion sort by length, descending; the list is tiny
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && len(ordered[j]) > len(ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for _, s := range ordered {
		msg = strings.ReplaceAll(msg, s, redactedPlaceholder)
	}
	return msg
}

// ErrorMessage renders err for the check log, with secrets removed.
// A nil error renders as the empty string.
func ErrorMessage(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return RedactSecrets(err.Error(), secrets...)
}
