package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/bridge"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/config"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/utils"
)

const (
	// loginBufferLimit is the rolling login buffer size that triggers truncation
	loginBufferLimit = 100

	// loginBufferKeep is how many trailing characters survive truncation
	loginBufferKeep = 50

	// exitDrainWindow bounds echoing of output left behind by an exited bridge
	exitDrainWindow = 100 * time.Millisecond
)

// Options configures a Driver.
type Options struct {
	Username string
	Password string

	LoginPrompt    string
	PasswordPrompt string
	ShellPrompt    string
	LoginTimeout   time.Duration

	Commands       []string
	CommandTimeout time.Duration

	// MountPath is only used for the console banner after login
	MountPath string
}

// OptionsFromConfig builds driver options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Username:       cfg.Login.Username,
		Password:       cfg.Login.Password,
		LoginPrompt:    cfg.Login.LoginPrompt,
		PasswordPrompt: cfg.Login.PasswordPrompt,
		ShellPrompt:    cfg.Login.ShellPrompt,
		LoginTimeout:   cfg.Login.Timeout,
		Commands:       append([]string(nil), cfg.Check.Commands...),
		CommandTimeout: cfg.Check.CommandTimeout,
		MountPath:      cfg.Check.MountPath,
	}
}

// Transcript is what a session produced.
type Transcript struct {
	// LoginSucceeded is true once the shell prompt was seen
	LoginSucceeded bool

	// State is the last state reached
	State State

	// Output is the labeled output of every command sent, trimmed
	Output string

	// CommandsSent counts commands written to the shell
	CommandsSent int

	// LoginDuration is the time spent in the login dialogue
	LoginDuration time.Duration
}

// LoginStatus renders the login outcome for the check log.
func (t *Transcript) LoginStatus() string {
	if t != nil && t.LoginSucceeded {
		return "Success"
	}
	return "Failed"
}

// LoginErr reports why no login happened: ErrLoginTimeout or
// ErrProcessExited for those terminal states, nil otherwise.
func (t *Transcript) LoginErr() error {
	if t == nil || t.LoginSucceeded {
		return nil
	}
	switch t.State {
	case StateLoginTimedOut:
		return utils.ErrLoginTimeout
	case StateProcessExited:
		return utils.ErrProcessExited
	default:
		return nil
	}
}

// Driver runs the login dialogue and probe commands on a Shell.
type Driver struct {
	opts    Options
	console io.Writer
}

// NewDriver creates a driver echoing the live transcript to console.
func NewDriver(opts Options, console io.Writer) *Driver {
	if console == nil {
		console = io.Discard
	}
	return &Driver{opts: opts, console: console}
}

// Run drives sh until a terminal state. The returned transcript is never nil
// and holds whatever was captured, also when an error is returned. Run does
// not stop sh.
func (d *Driver) Run(ctx context.Context, sh bridge.Shell) (*Transcript, error) {
	t := &Transcript{State: StateSpawned}
	if sh == nil {
		return t, utils.ErrNotConnected
	}

	rr := newRuneReader(sh.Output())
	defer rr.Close()

	t.State = StateAwaitingLogin
	if err := d.login(ctx, sh, rr, t); err != nil {
		klog.Errorf("Login failed in state %s: %v", t.State, err)
		return t, err
	}
	if !t.LoginSucceeded {
		klog.V(2).Infof("Session ended in state %s without login", t.State)
		return t, nil
	}

	fmt.Fprintf(d.console, "\nLogin successful. Checking mount status of %s...\n", d.opts.MountPath)

	if err := d.runCommands(ctx, sh, rr, t); err != nil {
		klog.Errorf("Command %d/%d failed: %v", t.CommandsSent, len(d.opts.Commands), err)
		return t, err
	}

	klog.V(2).Infof("Session finished in state %s after %d commands", t.State, t.CommandsSent)
	return t, nil
}

// login answers prompts until the shell prompt, the deadline or process exit.
func (d *Driver) login(ctx context.Context, sh bridge.Shell, rr *runeReader, t *Transcript) error {
	started := time.Now()
	defer func() { t.LoginDuration = time.Since(started) }()

	deadline := time.NewTimer(d.opts.LoginTimeout)
	defer deadline.Stop()

	buf := make([]rune, 0, loginBufferLimit+1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			t.State = StateLoginTimedOut
			klog.V(2).Infof("No shell prompt within %v", d.opts.LoginTimeout)
			return nil

		case <-sh.Done():
			d.drain(rr)
			t.State = StateProcessExited
			klog.V(2).Info("Bridge process exited before login completed")
			return nil

		case c, ok := <-rr.runes:
			if !ok {
				if err := rr.Err(); err != nil {
					return fmt.Errorf("failed to read shell output: %w", err)
				}
				t.State = StateProcessExited
				klog.V(2).Info("Shell output ended before login completed")
				return nil
			}

			d.echo(c)
			buf = append(buf, c)

			text := string(buf)
			if strings.Contains(text, d.opts.LoginPrompt) {
				klog.V(4).Infof("Answering %q prompt", d.opts.LoginPrompt)
				if err := d.send(sh, d.opts.Username); err != nil {
					return fmt.Errorf("failed to send username: %w", err)
				}
				text = strings.ReplaceAll(text, d.opts.LoginPrompt, "")
			} else if strings.Contains(text, d.opts.PasswordPrompt) {
				klog.V(4).Infof("Answering %q prompt", d.opts.PasswordPrompt)
				if err := d.send(sh, d.opts.Password); err != nil {
					return fmt.Errorf("failed to send password: %w", err)
				}
				text = strings.ReplaceAll(text, d.opts.PasswordPrompt, "")
			}

			if strings.Contains(text, d.opts.ShellPrompt) {
				t.LoginSucceeded = true
				t.State = StateLoggedIn
				klog.V(2).Info("Login successful")
				return nil
			}

			buf = append(buf[:0], []rune(text)...)
			if len(buf) > loginBufferLimit {
				buf = append(buf[:0], buf[len(buf)-loginBufferKeep:]...)
			}
		}
	}
}

// runCommands sends each command and captures its output.
func (d *Driver) runCommands(ctx context.Context, sh bridge.Shell, rr *runeReader, t *Transcript) error {
	var all strings.Builder
	defer func() { t.Output = strings.TrimSpace(all.String()) }()

	for _, cmd := range d.opts.Commands {
		t.State = StateRunningCommand
		if err := d.send(sh, cmd); err != nil {
			return fmt.Errorf("failed to send command %q: %w", cmd, err)
		}
		t.CommandsSent++

		out, err := d.capture(ctx, rr)
		fmt.Fprintf(&all, "Command: %s\nOutput:\n%s\n\n", cmd, out)
		klog.V(5).Infof("Output of %q: %q", cmd, out)
		if err != nil {
			return err
		}
	}

	t.State = StateDone
	return nil
}

// capture reads one command's output until the shell prompt appears in it,
// the command deadline passes or the output ends.
func (d *Driver) capture(ctx context.Context, rr *runeReader) (string, error) {
	deadline := time.NewTimer(d.opts.CommandTimeout)
	defer deadline.Stop()

	var out strings.Builder
	for {
		select {
		case <-ctx.Done():
			return out.String(), ctx.Err()

		case <-deadline.C:
			klog.V(4).Infof("No prompt after command within %v, captured %d bytes", d.opts.CommandTimeout, out.Len())
			return out.String(), nil

		case c, ok := <-rr.runes:
			if !ok {
				if err := rr.Err(); err != nil {
					return out.String(), fmt.Errorf("failed to read shell output: %w", err)
				}
				klog.V(4).Info("Shell output ended during command capture")
				return out.String(), nil
			}

			d.echo(c)
			out.WriteRune(c)
			// checked per character, so the first occurrence is always a suffix
			if strings.HasSuffix(out.String(), d.opts.ShellPrompt) {
				return out.String(), nil
			}
		}
	}
}

// drain echoes output still in flight after the bridge exited, for at most
// exitDrainWindow or until the stream ends.
func (d *Driver) drain(rr *runeReader) {
	window := time.NewTimer(exitDrainWindow)
	defer window.Stop()
	for {
		select {
		case c, ok := <-rr.runes:
			if !ok {
				return
			}
			d.echo(c)
		case <-window.C:
			return
		}
	}
}

// send writes line and a newline to the shell input.
func (d *Driver) send(sh bridge.Shell, line string) error {
	_, err := io.WriteString(sh, line+"\n")
	return err
}

// echo mirrors one character to the console. Console errors are ignored.
func (d *Driver) echo(c rune) {
	_, _ = io.WriteString(d.console, string(c))
}
