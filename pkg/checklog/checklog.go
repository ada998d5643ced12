package checklog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

const (
	// TimeLayout is the check timestamp format
	TimeLayout = "2006-01-02 15:04:05"

	// Title is the first line of a new log file
	Title = "eMMC Mount Check Log"

	logRuleWidth     = 80
	summaryRuleWidth = 40
)

// Header is written once, when the log file is created.
var Header = Title + "\n" + strings.Repeat("=", logRuleWidth) + "\n"

// Record is the outcome of one check.
type Record struct {
	// Time is taken when the session starts
	Time time.Time

	// LoginStatus is Success or Failed
	LoginStatus string

	// MountResult is Yes, No, Unknown (...) or Error: ...
	MountResult string

	// CommandOutput is the labeled output of the probe commands, possibly empty
	CommandOutput string
}

// Timestamp returns the record time in log format.
func (r Record) Timestamp() string {
	return r.Time.Format(TimeLayout)
}

// FormatBlock renders the block appended to the log for r, including the
// trailing separator.
func FormatBlock(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Check Time] %s\n", r.Timestamp())
	fmt.Fprintf(&b, "[Login Status] %s\n", r.LoginStatus)
	fmt.Fprintf(&b, "[NFS Mounted] %s\n\n", r.MountResult)
	fmt.Fprintf(&b, "[Command Output]\n%s\n", r.CommandOutput)
	b.WriteString("\n" + strings.Repeat("=", logRuleWidth) + "\n")
	return b.String()
}

// Writer appends check records to a log file.
type Writer struct {
	fs   afero.Fs
	path string
}

// NewWriter creates a writer for the log at path on fs.
func NewWriter(fs afero.Fs, path string) *Writer {
	return &Writer{fs: fs, path: path}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// EnsureHeader creates the log with its header if it does not exist yet.
// An existing file is left untouched.
func (w *Writer) EnsureHeader() error {
	exists, err := afero.Exists(w.fs, w.path)
	if err != nil {
		return fmt.Errorf("failed to stat check log %s: %w", w.path, err)
	}
	if exists {
		klog.V(4).Infof("Check log %s already exists", w.path)
		return nil
	}

	if err := w.mkdirParent(); err != nil {
		return err
	}
	if err := afero.WriteFile(w.fs, w.path, []byte(Header), 0o644); err != nil {
		return fmt.Errorf("failed to create check log %s: %w", w.path, err)
	}

	klog.V(2).Infof("Created check log %s", w.path)
	return nil
}

// Append writes the block for r at the end of the log, creating the log
// with its header first if needed.
func (w *Writer) Append(r Record) error {
	if err := w.EnsureHeader(); err != nil {
		return err
	}

	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open check log %s: %w", w.path, err)
	}
	defer func() { _ = f.Close() }()

	block := FormatBlock(r)
	if _, err := io.WriteString(f, block); err != nil {
		return fmt.Errorf("failed to append to check log %s: %w", w.path, err)
	}

	klog.V(2).Infof("Appended check from %s to %s", r.Timestamp(), w.path)
	klog.V(4).Infof("Wrote %d bytes to %s", len(block), w.path)
	return nil
}

func (w *Writer) mkdirParent() error {
	dir := filepath.Dir(w.path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

// PrintSummary prints the completion notice and the bordered summary of r.
func PrintSummary(out io.Writer, path string, r Record) {
	rule := strings.Repeat("=", summaryRuleWidth)
	fmt.Fprintf(out, "\nCheck complete! Results saved to: %s\n", path)
	fmt.Fprintf(out, "\n%s\n", rule)
	fmt.Fprintf(out, "Time: %s\n", r.Timestamp())
	fmt.Fprintf(out, "Login: %s\n", r.LoginStatus)
	fmt.Fprintf(out, "NFS Mounted: %s\n", r.MountResult)
	fmt.Fprintf(out, "%s\n", rule)
}
