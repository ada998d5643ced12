package mock

import (
	"math/rand"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// TimingSimulator adds realistic timing delays to mock device sessions
type TimingSimulator struct {
	enabled          bool
	sshLatency       time.Duration
	sshLatencyJitter time.Duration
	promptDelay      time.Duration
	commandDelay     time.Duration

	mu  sync.Mutex // rand.Rand is not safe for concurrent sessions
	rng *rand.Rand
}

// NewTimingSimulator creates a new timing simulator from configuration
func NewTimingSimulator(config MockDeviceConfig) *TimingSimulator {
	return &TimingSimulator{
		enabled:          config.RealisticTiming,
		sshLatency:       time.Duration(config.SSHLatencyMs) * time.Millisecond,
		sshLatencyJitter: time.Duration(config.SSHLatencyJitterMs) * time.Millisecond,
		promptDelay:      time.Duration(config.PromptDelayMs) * time.Millisecond,
		commandDelay:     time.Duration(config.CommandDelayMs) * time.Millisecond,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SimulateSSHLatency simulates SSH session latency with jitter
// Called at session start after SSH handshake completes
func (t *TimingSimulator) SimulateSSHLatency() {
	if !t.enabled || t.sshLatency == 0 {
		return
	}

	// Add jitter: base latency ± jitter (e.g., 200ms ± 50ms = 150-250ms range)
	jitter := time.Duration(0)
	if t.sshLatencyJitter > 0 {
		t.mu.Lock()
		jitter = time.Duration(t.rng.Int63n(int64(t.sshLatencyJitter*2))) - t.sshLatencyJitter
		t.mu.Unlock()
	}

	delay := t.sshLatency + jitter
	if delay < 0 {
		delay = 0
	}

	klog.V(4).Infof("Mock device timing: SSH latency simulation %dms", delay.Milliseconds())
	time.Sleep(delay)
}

// SimulateShellDelay simulates the time the device takes to print its next
// output. kind is "prompt" for the login prompt or "command" for a response.
func (t *TimingSimulator) SimulateShellDelay(kind string) {
	if !t.enabled {
		return
	}

	var delay time.Duration
	switch kind {
	case "prompt":
		delay = t.promptDelay
	case "command":
		delay = t.commandDelay
	default:
		return
	}

	if delay == 0 {
		return
	}

	klog.V(4).Infof("Mock device timing: %s delay simulation %dms", kind, delay.Milliseconds())
	time.Sleep(delay)
}
