// Package checklog writes the append-only check log and prints the console
// summary of a check.
//
// The log is a plain text file. It starts with a header written once when
// the file is created; every check appends one block and never touches
// existing content. There is no locking, rotation or size cap.
//
// # Logging Verbosity Convention
//
//   - V(0): Always visible - write failures
//   - V(2): Production default - file created, block appended
//   - V(4): Debug level - paths and sizes
package checklog
