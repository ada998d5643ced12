package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/google/shlex"
	"k8s.io/klog/v2"
)

// CommandSpawner starts a local bridge command (e.g. `adb shell`) and talks
// to the remote shell through its standard streams.
type CommandSpawner struct {
	argv   []string
	usePTY bool

	// execCommand is swappable for tests
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCommandSpawner parses commandLine with shell quoting rules.
func NewCommandSpawner(commandLine string, usePTY bool) (*CommandSpawner, error) {
	argv, err := shlex.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge command %q: %w", commandLine, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("bridge command is empty")
	}

	return &CommandSpawner{
		argv:        argv,
		usePTY:      usePTY,
		execCommand: exec.CommandContext,
	}, nil
}

// Argv returns the parsed bridge command.
func (s *CommandSpawner) Argv() []string {
	return append([]string(nil), s.argv...)
}

// Spawn starts the bridge command.
func (s *CommandSpawner) Spawn(ctx context.Context) (Shell, error) {
	cmd := s.execCommand(ctx, s.argv[0], s.argv[1:]...)

	var sh *commandShell
	var err error
	if s.usePTY {
		sh, err = startWithPTY(cmd)
	} else {
		sh, err = startWithPipes(cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start bridge command %v: %w", s.argv, err)
	}

	klog.V(2).Infof("Started bridge command %v (pid %d, pty=%v)", s.argv, cmd.Process.Pid, s.usePTY)

	go sh.wait()
	return sh, nil
}

// commandShell is a Shell backed by a local subprocess.
type commandShell struct {
	cmd    *exec.Cmd
	input  io.WriteCloser
	output *os.File
	pty    bool

	done    chan struct{}
	exitErr error

	closeOnce sync.Once
}

// startWithPipes wires stdin to a pipe and both stdout and stderr to a single
// pipe we own, so cmd.Wait never closes the reader under us.
func startWithPipes(cmd *exec.Cmd) (*commandShell, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// the child holds its own copy of the write end
	_ = pw.Close()

	return &commandShell{
		cmd:    cmd,
		input:  stdin,
		output: pr,
		done:   make(chan struct{}),
	}, nil
}

// startWithPTY runs the command on a pseudo terminal. Input and output share
// the PTY master.
func startWithPTY(cmd *exec.Cmd) (*commandShell, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	return &commandShell{
		cmd:    cmd,
		input:  ptmx,
		output: ptmx,
		pty:    true,
		done:   make(chan struct{}),
	}, nil
}

func (c *commandShell) wait() {
	c.exitErr = c.cmd.Wait()
	klog.V(2).Infof("Bridge command exited: %v", exitDescription(c.exitErr))
	close(c.done)
}

func exitDescription(err error) string {
	if err == nil {
		return "status 0"
	}
	return err.Error()
}

// Write implements Shell
func (c *commandShell) Write(p []byte) (int, error) {
	klog.V(5).Infof("Bridge input: %q", p)
	return c.input.Write(p)
}

// Output implements Shell
func (c *commandShell) Output() io.Reader {
	return c.output
}

// CloseInput implements Shell. On a PTY the input is the terminal itself and
// stays open until Kill.
func (c *commandShell) CloseInput() error {
	if c.pty {
		return nil
	}
	return c.input.Close()
}

// Done implements Shell
func (c *commandShell) Done() <-chan struct{} {
	return c.done
}

// ExitErr returns the result of cmd.Wait once Done is closed.
func (c *commandShell) ExitErr() error {
	<-c.done
	return c.exitErr
}

// Terminate implements Shell
func (c *commandShell) Terminate() error {
	if c.cmd.Process == nil {
		return errors.New("process not started")
	}
	return terminateProcess(c.cmd.Process)
}

// Kill implements Shell
func (c *commandShell) Kill() error {
	var err error
	if c.cmd.Process != nil {
		if kerr := c.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = kerr
		}
	}
	c.closeOnce.Do(func() {
		if cerr := c.output.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
