// Package session drives one interactive remote shell: it answers the login
// dialogue, sends the probe commands and captures their output.
//
// State machine:
//
//	Spawned -> AwaitingLogin -> (LoggedIn | LoginTimedOut | ProcessExited)
//	LoggedIn -> RunningCommand[1] -> ... -> RunningCommand[n] -> Done
//
// Done, LoginTimedOut and ProcessExited are terminal. Cleanup of the shell
// is the caller's job (see bridge.Stop) and runs from any state.
//
// Every character read from the shell is echoed to the console writer as it
// arrives, interleaved with prompt detection.
//
// # Logging Verbosity Convention
//
//   - V(0): Always visible - I/O failures
//   - V(2): Production default - login outcome, terminal state
//   - V(4): Debug level - prompt answers, per-command capture summaries
//   - V(5): Trace level - captured command output
package session
