package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/security"
)

// SSHShellConfig holds configuration for the SSH transport
type SSHShellConfig struct {
	Address    string        // Device IP address or hostname
	Port       int           // SSH port (default 22)
	User       string        // SSH user
	Password   string        // Offered as password and keyboard-interactive auth (optional)
	PrivateKey []byte        // SSH private key content (optional)
	KnownHosts string        // known_hosts file; empty skips host key verification
	Timeout    time.Duration // Connection timeout (default 10s)
	RequestPTY bool          // Request a pseudo terminal for the shell
}

// SSHSpawner opens interactive shells over SSH.
type SSHSpawner struct {
	config          SSHShellConfig
	hostKeyCallback ssh.HostKeyCallback
	auth            []ssh.AuthMethod
}

// NewSSHSpawner creates a new SSH-based spawner
func NewSSHSpawner(config SSHShellConfig) (*SSHSpawner, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.User == "" {
		return nil, fmt.Errorf("user is required")
	}

	// Set defaults
	if config.Port == 0 {
		config.Port = 22
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	var hostKeyCallback ssh.HostKeyCallback
	if config.KnownHosts != "" {
		cb, err := knownhosts.New(config.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", config.KnownHosts, err)
		}
		hostKeyCallback = auditedHostKeyCallback(cb)
	} else {
		klog.Warning("INSECURE: Skipping SSH host key verification - set ssh.known_hosts to verify the device")
		hostKeyCallback = func(hostname string, _ net.Addr, key ssh.PublicKey) error {
			security.GetLogger().LogSSHHostKeyUnverified(hostname, ssh.FingerprintSHA256(key))
			return nil
		}
	}

	var auth []ssh.AuthMethod
	if len(config.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(config.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if config.Password != "" {
		password := config.Password
		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		// No authentication (devices with open debug access)
		klog.V(4).Info("No SSH credentials configured, attempting connection without authentication")
	}

	return &SSHSpawner{
		config:          config,
		hostKeyCallback: hostKeyCallback,
		auth:            auth,
	}, nil
}

// Spawn dials the device and starts an interactive shell.
func (s *SSHSpawner) Spawn(ctx context.Context) (Shell, error) {
	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
	klog.V(4).Infof("Connecting to %s as user %s", addr, s.config.User)
	secLogger := security.GetLogger()
	secLogger.LogSSHConnectionAttempt(s.config.User, addr)

	sshConfig := &ssh.ClientConfig{
		User:            s.config.User,
		Auth:            s.auth,
		HostKeyCallback: s.hostKeyCallback,
		Timeout:         s.config.Timeout,
	}

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		secLogger.LogSSHConnectionFailure(s.config.User, addr, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, chans, reqs, err := handshake(ctx, conn, addr, sshConfig, s.config.Timeout)
	if err != nil {
		_ = conn.Close()
		secLogger.LogSSHConnectionFailure(s.config.User, addr, err)
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	secLogger.LogSSHConnectionSuccess(s.config.User, addr)
	client := ssh.NewClient(c, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create SSH session: %w", err)
	}

	sh, err := startSSHShell(client, session, s.config.RequestPTY)
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, err
	}

	klog.V(2).Infof("Started SSH shell on %s (pty=%v)", addr, s.config.RequestPTY)
	return sh, nil
}

// handshake runs the SSH handshake on conn within timeout. Canceling ctx
// closes conn and aborts the handshake.
func handshake(ctx context.Context, conn net.Conn, addr string, config *ssh.ClientConfig, timeout time.Duration) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set handshake deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, nil, nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = c.Close()
		return nil, nil, nil, fmt.Errorf("failed to clear handshake deadline: %w", err)
	}
	return c, chans, reqs, nil
}

// auditedHostKeyCallback records the known_hosts verdict for every host key
// presented to cb.
func auditedHostKeyCallback(cb ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		actual := ssh.FingerprintSHA256(key)
		if err == nil {
			security.GetLogger().LogSSHHostKeyVerified(hostname, actual)
			return nil
		}
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) {
			expected := ""
			if len(keyErr.Want) > 0 {
				expected = ssh.FingerprintSHA256(keyErr.Want[0].Key)
			}
			security.GetLogger().LogSSHHostKeyMismatch(hostname, expected, actual)
		}
		return err
	}
}

// sshShell is a Shell backed by an SSH session.
type sshShell struct {
	client  *ssh.Client
	session *ssh.Session
	input   io.WriteCloser
	output  *io.PipeReader

	done    chan struct{}
	exitErr error

	closeOnce sync.Once
}

func startSSHShell(client *ssh.Client, session *ssh.Session, requestPTY bool) (*sshShell, error) {
	if requestPTY {
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty("xterm", 40, 200, modes); err != nil {
			return nil, fmt.Errorf("failed to request PTY: %w", err)
		}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH stdin: %w", err)
	}

	// io.Pipe serializes the concurrent stdout/stderr copiers
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	if err := session.Shell(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start remote shell: %w", err)
	}

	sh := &sshShell{
		client:  client,
		session: session,
		input:   stdin,
		output:  pr,
		done:    make(chan struct{}),
	}

	go func() {
		sh.exitErr = session.Wait()
		klog.V(2).Infof("SSH shell exited: %v", exitDescription(sh.exitErr))
		_ = pw.Close()
		close(sh.done)
	}()

	return sh, nil
}

// Write implements Shell
func (s *sshShell) Write(p []byte) (int, error) {
	klog.V(5).Infof("SSH input: %q", p)
	return s.input.Write(p)
}

// Output implements Shell
func (s *sshShell) Output() io.Reader {
	return s.output
}

// CloseInput implements Shell
func (s *sshShell) CloseInput() error {
	return s.input.Close()
}

// Done implements Shell
func (s *sshShell) Done() <-chan struct{} {
	return s.done
}

// Terminate implements Shell. Many embedded SSH servers ignore signal
// requests, so Stop falls back to Kill after the grace period.
func (s *sshShell) Terminate() error {
	return s.session.Signal(ssh.SIGTERM)
}

// Kill implements Shell
func (s *sshShell) Kill() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.session.Close()
		err = s.client.Close()
		_ = s.output.Close()
	})
	return err
}
