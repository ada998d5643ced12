package session

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeShell is a scripted device: a test goroutine emits output and reads
// back the lines the driver sends.
type fakeShell struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu       sync.Mutex
	pending  string
	lines    chan string
	writeErr error

	done     chan struct{}
	doneOnce sync.Once
}

func newFakeShell() *fakeShell {
	r, w := io.Pipe()
	return &fakeShell{
		outR:  r,
		outW:  w,
		lines: make(chan string, 32),
		done:  make(chan struct{}),
	}
}

func (f *fakeShell) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.pending += string(p)
	for {
		i := strings.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		f.lines <- f.pending[:i]
		f.pending = f.pending[i+1:]
	}
	return len(p), nil
}

func (f *fakeShell) Output() io.Reader     { return f.outR }
func (f *fakeShell) CloseInput() error     { return nil }
func (f *fakeShell) Done() <-chan struct{} { return f.done }
func (f *fakeShell) Terminate() error      { f.exit(); return nil }
func (f *fakeShell) Kill() error           { f.exit(); return nil }

func (f *fakeShell) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// emit writes device output; it returns quietly once the driver stopped reading.
func (f *fakeShell) emit(s string) {
	_, _ = f.outW.Write([]byte(s))
}

// next returns the next line sent by the driver.
func (f *fakeShell) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-f.lines:
		return line
	case <-time.After(5 * time.Second):
		t.Error("timed out waiting for input from driver")
		return ""
	}
}

// exit simulates the bridge process going away.
func (f *fakeShell) exit() {
	f.doneOnce.Do(func() {
		close(f.done)
		_ = f.outW.Close()
	})
}

// exitWithTrailer reports the process gone before its last output is read,
// as a bridge does when it prints an error and exits at once.
func (f *fakeShell) exitWithTrailer(trailer string) {
	f.doneOnce.Do(func() {
		close(f.done)
		f.emit(trailer)
		_ = f.outW.Close()
	})
}

func (f *fakeShell) breakOutput(err error) {
	_ = f.outW.CloseWithError(err)
}

// syncBuffer is a console that tolerates the race detector.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var errUSBReset = errors.New("usb reset")
