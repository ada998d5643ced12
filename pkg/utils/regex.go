package utils

import (
	"regexp"
)

// This file contains the regex patterns used to interpret remote shell output.
// All patterns have been audited for catastrophic backtracking vulnerabilities
// (Go's RE2 engine guarantees linear time, but the patterns are kept simple anyway).

// Network filesystem markers, in the order they are evaluated.
var (
	// NFSWordPattern matches the filesystem type "nfs" as a whole word
	// ReDoS-safe: literal with word boundaries
	NFSWordPattern = regexp.MustCompile(`(?i)\bnfs\b`)

	// NFS4WordPattern matches the filesystem type "nfs4" as a whole word
	// ReDoS-safe: literal with word boundaries
	NFS4WordPattern = regexp.MustCompile(`(?i)\bnfs4\b`)

	// HostPortExportPattern matches a host:port/export style source (e.g. "server:2049/export")
	// ReDoS-safe: single bounded character class between two literals
	HostPortExportPattern = regexp.MustCompile(`(?i):[0-9]+/`)
)

// NFSPatterns returns the network filesystem markers in evaluation order.
// First match wins.
func NFSPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		NFSWordPattern,
		NFS4WordPattern,
		HostPortExportPattern,
	}
}

// Mount table line patterns - used for extracting entries from captured command output
var (
	// MountCommandLinePattern matches `mount` output lines: "<src> on <target> type <fstype> (<opts>)"
	// ReDoS-safe: \S+ runs are separated by literal keywords, options use a negated class
	MountCommandLinePattern = regexp.MustCompile(`^(\S+) on (\S+) type (\S+)(?: \(([^)]*)\))?$`)

	// ProcMountsLinePattern matches /proc/mounts lines: "<src> <target> <fstype> <opts> <dump> <pass>"
	// ReDoS-safe: fixed number of \S+ fields, anchored at both ends
	ProcMountsLinePattern = regexp.MustCompile(`^(\S+) (\S+) (\S+) (\S+) ([0-9]+) ([0-9]+)$`)
)
