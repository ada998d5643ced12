// Package mount classifies captured shell output by whether the checked
// mount point is backed by a network filesystem.
//
// Classification is a text heuristic over the whole transcript. Lines that
// look like mount table entries are also parsed into mountinfo.Info values
// for diagnostics; they never change the classification.
//
// # Logging Verbosity Convention
//
// This package follows Kubernetes logging conventions for verbosity levels:
//
//   - V(0): Always visible - programmer errors, panics
//   - V(2): Production default - classification outcome, matched entries
//     Examples: "Classified /mnt/emmc_mount as Yes (pattern (?i)\bnfs\b)"
//   - V(4): Debug level - intermediate steps, parameters, diagnostics
//   - V(5): Trace level - lines that were parsed or skipped
//
// V(3) is avoided in favor of V(2) (if actionable) or V(4) (if diagnostic).
package mount
