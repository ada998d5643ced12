// Package bridge opens interactive remote shells on the device under test.
//
// Two transports are provided: a local bridge command such as `adb shell`
// (plain pipes or a pseudo terminal) and an SSH interactive shell. Both
// expose the same Shell interface with a single combined output stream.
//
// # Logging Verbosity Convention
//
// This package follows Kubernetes logging conventions for verbosity levels:
//
//   - V(0): Always visible - spawn failures, insecure host key warnings
//   - V(2): Production default - shell started/stopped
//     Examples: "Started bridge command [adb shell] (pid 4242)"
//   - V(4): Debug level - termination steps, swallowed cleanup errors
//     Examples: "Bridge did not exit within 1s, killing"
//   - V(5): Trace level - raw writes to the remote input
//
// V(3) is avoided in favor of V(2) (if actionable) or V(4) (if diagnostic).
package bridge
