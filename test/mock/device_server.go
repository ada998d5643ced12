package mock

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"golang.org/x/crypto/ssh"
	"k8s.io/klog/v2"
)

// MockDevice simulates an embedded board that offers a login shell over SSH
type MockDevice struct {
	address        string
	port           int
	listener       net.Listener
	sshConfig      *ssh.ServerConfig
	config         MockDeviceConfig
	timing         *TimingSimulator
	errorInjector  *ErrorInjector
	username       string
	password       string
	mounts         []MockMount  // Mount table in /proc/mounts order
	commandHistory []CommandLog // Command execution history for debugging
	logins         int
	mu             sync.RWMutex
	shutdown       chan struct{}
}

// CommandLog represents a single command execution record
type CommandLog struct {
	Timestamp time.Time
	Command   string
	Response  string
}

// MockMount represents one entry of the device mount table
type MockMount struct {
	Source  string
	Target  string
	FSType  string
	Options string
}

// DefaultMounts is the mount table of a freshly booted board without the
// eMMC data partition
func DefaultMounts() []MockMount {
	return []MockMount{
		{Source: "/dev/root", Target: "/", FSType: "ext4", Options: "rw,relatime"},
		{Source: "proc", Target: "/proc", FSType: "proc", Options: "rw,nosuid,nodev,noexec,relatime"},
		{Source: "tmpfs", Target: "/run", FSType: "tmpfs", Options: "rw,nosuid,nodev,mode=755"},
	}
}

// NewMockDevice creates a new mock device for testing. Port 0 picks a free port.
func NewMockDevice(port int) (*MockDevice, error) {
	// Load configuration from environment
	config := LoadConfigFromEnv()

	// Authentication happens in the login dialogue, not in SSH
	sshConfig := &ssh.ServerConfig{
		NoClientAuth: true,
	}

	// Generate a temporary host key
	hostKey, err := generateHostKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	sshConfig.AddHostKey(hostKey)

	device := &MockDevice{
		address:        "127.0.0.1",
		port:           port,
		sshConfig:      sshConfig,
		config:         config,
		timing:         NewTimingSimulator(config),
		errorInjector:  NewErrorInjector(config),
		username:       "root",
		password:       "root",
		mounts:         DefaultMounts(),
		commandHistory: make([]CommandLog, 0),
		shutdown:       make(chan struct{}),
	}

	return device, nil
}

// Start starts the mock device SSH server
func (s *MockDevice) Start() error {
	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener

	// Update port if it was 0 (random port assignment)
	if s.port == 0 {
		if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
			s.port = tcpAddr.Port
		}
	}

	klog.Infof("Mock device listening on %s:%d", s.address, s.port)

	go s.acceptConnections()

	return nil
}

// Stop stops the mock device
func (s *MockDevice) Stop() error {
	close(s.shutdown)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Address returns the server address
func (s *MockDevice) Address() string {
	return s.address
}

// Port returns the server port
func (s *MockDevice) Port() int {
	return s.port
}

// SetCredentials sets the username and password the login dialogue accepts
func (s *MockDevice) SetCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// AddMount appends an entry to the mount table
func (s *MockDevice) AddMount(m MockMount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts = append(s.mounts, m)
}

// ClearMounts empties the mount table
func (s *MockDevice) ClearMounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts = nil
}

// SetErrorMode switches error injection at runtime
func (s *MockDevice) SetErrorMode(mode ErrorMode, afterN int) {
	s.errorInjector.SetMode(mode, afterN)
}

// LoginCount returns how many logins succeeded
func (s *MockDevice) LoginCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logins
}

// GetCommandHistory returns a copy of the command execution history
// Thread-safe for concurrent access during test debugging
func (s *MockDevice) GetCommandHistory() []CommandLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external modification
	history := make([]CommandLog, len(s.commandHistory))
	copy(history, s.commandHistory)
	return history
}

// ClearCommandHistory clears the command execution history
// Useful for resetting state between test cases
func (s *MockDevice) ClearCommandHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandHistory = make([]CommandLog, 0)
}

// ResetErrorInjector resets the error injector's operation counter
// Useful for test isolation between test cases
func (s *MockDevice) ResetErrorInjector() {
	s.errorInjector.Reset()
}

func (s *MockDevice) acceptConnections() {
	for {
		select {
		case <-s.shutdown:
			return
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.shutdown:
					return
				default:
					klog.Errorf("Failed to accept connection: %v", err)
					continue
				}
			}

			go s.handleConnection(conn)
		}
	}
}

func (s *MockDevice) handleConnection(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if s.errorInjector.ShouldFailSSHConnect() {
		klog.V(2).Info("MOCK ERROR INJECTION: dropping SSH connection")
		return
	}

	// Perform SSH handshake
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		klog.Errorf("Failed to handshake: %v", err)
		return
	}
	defer func() { _ = sshConn.Close() }()

	klog.V(4).Infof("New SSH connection from %s", sshConn.RemoteAddr())

	// Discard all global requests
	go ssh.DiscardRequests(reqs)

	// Handle channels
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			klog.Errorf("Could not accept channel: %v", err)
			continue
		}

		go s.handleSession(channel, requests)
	}
}

func (s *MockDevice) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	var closeOnce sync.Once
	closeChannel := func() { closeOnce.Do(func() { _ = channel.Close() }) }
	defer closeChannel()

	// Simulate SSH latency at session start
	s.timing.SimulateSSHLatency()

	for req := range requests {
		klog.V(4).Infof("Mock device received request type: %s, payload len: %d", req.Type, len(req.Payload))

		switch req.Type {
		case "pty-req", "env":
			_ = req.Reply(true, nil)

		case "shell":
			_ = req.Reply(true, nil)
			go func() {
				status := s.runShell(channel)
				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{Status: status}))
				closeChannel()
			}()

		case "signal":
			klog.V(4).Info("Mock device received signal, closing session")
			closeChannel()

		default:
			_ = req.Reply(false, nil)
		}
	}
}

// runShell plays the console: login dialogue, then a command loop.
// Returns the shell exit status.
func (s *MockDevice) runShell(rw io.ReadWriter) uint32 {
	host := s.config.Hostname
	r := bufio.NewReader(rw)
	write := func(text string) { _, _ = io.WriteString(rw, text) }

	s.timing.SimulateShellDelay("prompt")
	write(fmt.Sprintf("\r\nDebian GNU/Linux 12 %s ttyFIQ0\r\n\r\n%s login: ", host, host))

	var user string
	for {
		var err error
		if user, err = readLine(r); err != nil {
			return 1
		}
		write("Password: ")
		pass, err := readLine(r)
		if err != nil {
			return 1
		}
		if s.checkCredentials(user, pass) {
			break
		}
		klog.V(4).Infof("Mock device rejected login for %q", user)
		write(fmt.Sprintf("\r\nLogin incorrect\r\n%s login: ", host))
	}

	if s.errorInjector.ShouldHangLogin() {
		klog.V(2).Info("MOCK ERROR INJECTION: withholding shell prompt")
		_, _ = io.Copy(io.Discard, r)
		return 1
	}

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	prompt := fmt.Sprintf("%s@%s:~# ", user, host)
	write("\r\n" + prompt)

	if s.errorInjector.ShouldDropAfterLogin() {
		klog.V(2).Info("MOCK ERROR INJECTION: dropping session after login")
		return 0
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return 0
		}
		if line == "exit" {
			write("logout\r\n")
			return 0
		}

		s.timing.SimulateShellDelay("command")
		response := line + "\r\n" + s.executeCommand(line)
		if s.errorInjector.ShouldHangCommand() {
			klog.V(2).Infof("MOCK ERROR INJECTION: no prompt after %q", line)
		} else {
			response += prompt
		}
		write(response)
	}
}

func (s *MockDevice) checkCredentials(user, pass string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return user == s.username && pass == s.password
}

// readLine reads one input line without its line ending
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// executeCommand runs a command line made of simple commands joined by
// pipes to grep and "||" alternatives, which covers the mount probes.
func (s *MockDevice) executeCommand(command string) string {
	command = strings.TrimSpace(command)
	klog.V(4).Infof("Mock device executing command: %s", command)

	var lines []string
	for _, alternative := range strings.Split(command, "||") {
		var ok bool
		lines, ok = s.runPipeline(alternative)
		if ok {
			break
		}
	}

	output := ""
	if len(lines) > 0 {
		output = strings.Join(lines, "\r\n") + "\r\n"
	}

	// Record command in history for debugging
	s.recordCommand(command, output)

	return output
}

// runPipeline returns the output lines of a pipeline and whether it succeeded.
// grep fails when nothing matches, like the real one.
func (s *MockDevice) runPipeline(pipeline string) ([]string, bool) {
	stages := strings.Split(pipeline, "|")
	lines, ok := s.runSimple(stages[0])

	for _, stage := range stages[1:] {
		args, err := shlex.Split(stage)
		if err != nil || len(args) != 2 || args[0] != "grep" {
			return []string{fmt.Sprintf("sh: unsupported pipeline stage: %s", strings.TrimSpace(stage))}, false
		}
		var kept []string
		for _, l := range lines {
			if strings.Contains(l, args[1]) {
				kept = append(kept, l)
			}
		}
		lines, ok = kept, len(kept) > 0
	}

	return lines, ok
}

func (s *MockDevice) runSimple(command string) ([]string, bool) {
	args, err := shlex.Split(command)
	if err != nil || len(args) == 0 {
		return []string{"sh: syntax error"}, false
	}

	switch args[0] {
	case "df":
		return s.dfLines(), true
	case "mount":
		return s.mountLines(), true
	case "cat":
		if len(args) == 2 && args[1] == "/proc/mounts" {
			return s.procMountsLines(), true
		}
		return []string{fmt.Sprintf("cat: %s: No such file or directory", strings.Join(args[1:], " "))}, false
	case "echo":
		return []string{strings.Join(args[1:], " ")}, true
	case "true":
		return nil, true
	case "false":
		return nil, false
	default:
		return []string{fmt.Sprintf("sh: %s: not found", args[0])}, false
	}
}

func (s *MockDevice) dfLines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := []string{"Filesystem      Size  Used Avail Use% Mounted on"}
	for _, m := range s.mounts {
		if m.FSType == "proc" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-15s %4s %5s %5s %4s %s", m.Source, "29G", "1.2G", "27G", "5%", m.Target))
	}
	return lines
}

func (s *MockDevice) mountLines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]string, 0, len(s.mounts))
	for _, m := range s.mounts {
		lines = append(lines, fmt.Sprintf("%s on %s type %s (%s)", m.Source, m.Target, m.FSType, m.Options))
	}
	return lines
}

func (s *MockDevice) procMountsLines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]string, 0, len(s.mounts))
	for _, m := range s.mounts {
		lines = append(lines, fmt.Sprintf("%s %s %s %s 0 0", escapePath(m.Source), escapePath(m.Target), m.FSType, m.Options))
	}
	return lines
}

// escapePath encodes spaces the way /proc/mounts does
func escapePath(path string) string {
	return strings.ReplaceAll(path, " ", `\040`)
}

// recordCommand adds a command execution to the history log
func (s *MockDevice) recordCommand(command, response string) {
	if !s.config.EnableHistory {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Trim history if over depth limit
	if s.config.HistoryDepth > 0 && len(s.commandHistory) >= s.config.HistoryDepth {
		s.commandHistory = s.commandHistory[1:]
	}

	s.commandHistory = append(s.commandHistory, CommandLog{
		Timestamp: time.Now(),
		Command:   command,
		Response:  response,
	})
}

func generateHostKey() (ssh.Signer, error) {
	// Generate a new ed25519 key for the mock SSH server
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	return signer, nil
}
