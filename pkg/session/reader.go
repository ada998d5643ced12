package session

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
)

// runeReader pumps characters from the shell output into a channel so the
// driver can wait on output, deadlines and process exit at the same time.
type runeReader struct {
	runes chan rune
	err   error // set before runes is closed

	stop     chan struct{}
	stopOnce sync.Once
}

func newRuneReader(r io.Reader) *runeReader {
	rr := &runeReader{
		runes: make(chan rune, 4096),
		stop:  make(chan struct{}),
	}
	go rr.pump(bufio.NewReader(r))
	return rr
}

func (rr *runeReader) pump(br *bufio.Reader) {
	defer close(rr.runes)
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			rr.err = err
			return
		}
		select {
		case rr.runes <- c:
		case <-rr.stop:
			return
		}
	}
}

// Close stops delivering characters. The pump exits on its next read once
// the shell output is closed.
func (rr *runeReader) Close() {
	rr.stopOnce.Do(func() { close(rr.stop) })
}

// Err returns the error that ended the stream, nil for a clean end of stream.
// Only valid after the runes channel is closed.
func (rr *runeReader) Err() error {
	if isEndOfStream(rr.err) {
		return nil
	}
	return rr.err
}

// isEndOfStream treats the ways a finished shell ends its output as EOF:
// a closed pipe, or EIO from a PTY whose child exited.
func isEndOfStream(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EIO)
}
