package mock

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/bridge"
)

// TestLoadConfigFromEnv_Defaults validates default configuration values when no env vars are set
func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"MOCK_DEVICE_REALISTIC_TIMING",
		"MOCK_DEVICE_SSH_LATENCY_MS",
		"MOCK_DEVICE_SSH_LATENCY_JITTER_MS",
		"MOCK_DEVICE_PROMPT_DELAY_MS",
		"MOCK_DEVICE_COMMAND_DELAY_MS",
		"MOCK_DEVICE_ERROR_MODE",
		"MOCK_DEVICE_ERROR_AFTER_N",
		"MOCK_DEVICE_ENABLE_HISTORY",
		"MOCK_DEVICE_HISTORY_DEPTH",
		"MOCK_DEVICE_HOSTNAME",
	} {
		t.Setenv(key, "")
	}

	config := LoadConfigFromEnv()

	assert.False(t, config.RealisticTiming)
	assert.Equal(t, 200, config.SSHLatencyMs)
	assert.Equal(t, 50, config.SSHLatencyJitterMs)
	assert.Equal(t, 300, config.PromptDelayMs)
	assert.Equal(t, 100, config.CommandDelayMs)
	assert.Equal(t, "none", config.ErrorMode)
	assert.Equal(t, 0, config.ErrorAfterN)
	assert.True(t, config.EnableHistory)
	assert.Equal(t, 100, config.HistoryDepth)
	assert.Equal(t, "rk3588", config.Hostname)
}

// TestLoadConfigFromEnv_CustomValues validates that environment variables override defaults
func TestLoadConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("MOCK_DEVICE_REALISTIC_TIMING", "true")
	t.Setenv("MOCK_DEVICE_PROMPT_DELAY_MS", "50")
	t.Setenv("MOCK_DEVICE_ERROR_MODE", "command_hang")
	t.Setenv("MOCK_DEVICE_ERROR_AFTER_N", "2")
	t.Setenv("MOCK_DEVICE_ENABLE_HISTORY", "0")
	t.Setenv("MOCK_DEVICE_HISTORY_DEPTH", "not-a-number")
	t.Setenv("MOCK_DEVICE_HOSTNAME", "imx8")

	config := LoadConfigFromEnv()

	assert.True(t, config.RealisticTiming)
	assert.Equal(t, 50, config.PromptDelayMs)
	assert.Equal(t, "command_hang", config.ErrorMode)
	assert.Equal(t, 2, config.ErrorAfterN)
	assert.False(t, config.EnableHistory)
	assert.Equal(t, 100, config.HistoryDepth, "invalid value falls back to default")
	assert.Equal(t, "imx8", config.Hostname)
}

func TestParseErrorMode(t *testing.T) {
	tests := []struct {
		input string
		want  ErrorMode
	}{
		{"", ErrorModeNone},
		{"none", ErrorModeNone},
		{"ssh_timeout", ErrorModeSSHTimeout},
		{"login_hang", ErrorModeLoginHang},
		{"drop_after_login", ErrorModeDropAfterLogin},
		{"command_hang", ErrorModeCommandHang},
		{"disk_full", ErrorModeNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseErrorMode(tt.input))
		})
	}
}

func TestErrorInjector_AfterN(t *testing.T) {
	e := NewErrorInjector(MockDeviceConfig{ErrorMode: "command_hang", ErrorAfterN: 2})

	assert.False(t, e.ShouldHangLogin(), "other modes never trigger")
	assert.False(t, e.ShouldHangCommand())
	assert.False(t, e.ShouldHangCommand())
	assert.True(t, e.ShouldHangCommand())

	e.Reset()
	assert.False(t, e.ShouldHangCommand())

	e.SetMode(ErrorModeDropAfterLogin, 0)
	assert.False(t, e.ShouldHangCommand())
	assert.True(t, e.ShouldDropAfterLogin())
}

func newTestDevice(t *testing.T) *MockDevice {
	t.Helper()
	t.Setenv("MOCK_DEVICE_ERROR_MODE", "")
	t.Setenv("MOCK_DEVICE_REALISTIC_TIMING", "")
	t.Setenv("MOCK_DEVICE_HOSTNAME", "")

	device, err := NewMockDevice(0)
	require.NoError(t, err)
	return device
}

func TestExecuteCommand(t *testing.T) {
	device := newTestDevice(t)
	device.AddMount(MockMount{Source: "192.168.1.5:/export/emmc", Target: "/mnt/emmc_mount", FSType: "nfs", Options: "rw,vers=3"})

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{
			name:    "mount grep match",
			command: "mount | grep emmc_mount || echo '/mnt/emmc_mount not mounted'",
			want:    "192.168.1.5:/export/emmc on /mnt/emmc_mount type nfs (rw,vers=3)\r\n",
		},
		{
			name:    "proc mounts",
			command: "cat /proc/mounts | grep emmc_mount || true",
			want:    "192.168.1.5:/export/emmc /mnt/emmc_mount nfs rw,vers=3 0 0\r\n",
		},
		{
			name:    "df fallback",
			command: "df -h | grep sdcard || echo '/mnt/sdcard not found'",
			want:    "/mnt/sdcard not found\r\n",
		},
		{
			name:    "grep miss with true",
			command: "cat /proc/mounts | grep sdcard || true",
			want:    "",
		},
		{
			name:    "unknown command",
			command: "findmnt /mnt/emmc_mount",
			want:    "sh: findmnt: not found\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, device.executeCommand(tt.command))
		})
	}

	history := device.GetCommandHistory()
	require.Len(t, history, len(tests))
	assert.Equal(t, tests[0].command, history[0].Command)

	device.ClearCommandHistory()
	assert.Empty(t, device.GetCommandHistory())
}

func TestExecuteCommand_DfListsMounts(t *testing.T) {
	device := newTestDevice(t)
	device.ClearMounts()
	device.AddMount(MockMount{Source: "/dev/mmcblk0p1", Target: "/mnt/emmc_mount", FSType: "ext4", Options: "rw"})

	out := device.executeCommand("df -h")
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Filesystem"))
	assert.True(t, strings.HasPrefix(lines[1], "/dev/mmcblk0p1"))
	assert.True(t, strings.HasSuffix(lines[1], " /mnt/emmc_mount"))
}

func readUntil(t *testing.T, r *bufio.Reader, marker string) string {
	t.Helper()
	var sb strings.Builder
	for !strings.Contains(sb.String(), marker) {
		b, err := r.ReadByte()
		require.NoError(t, err, "reading until %q, got %q", marker, sb.String())
		sb.WriteByte(b)
	}
	return sb.String()
}

func startDevice(t *testing.T) *MockDevice {
	t.Helper()
	device := newTestDevice(t)
	require.NoError(t, device.Start())
	t.Cleanup(func() { _ = device.Stop() })
	return device
}

func spawn(t *testing.T, device *MockDevice) bridge.Shell {
	t.Helper()
	spawner, err := bridge.NewSSHSpawner(bridge.SSHShellConfig{
		Address: device.Address(),
		Port:    device.Port(),
		User:    "root",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	sh, err := spawner.Spawn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bridge.Stop(sh, 100*time.Millisecond) })
	return sh
}

func TestMockDevice_LoginDialogue(t *testing.T) {
	device := startDevice(t)
	device.SetCredentials("admin", "hunter2")
	device.AddMount(MockMount{Source: "/dev/mmcblk0p1", Target: "/mnt/emmc_mount", FSType: "ext4", Options: "rw,relatime"})

	sh := spawn(t, device)
	out := bufio.NewReader(sh.Output())

	readUntil(t, out, "rk3588 login: ")
	_, err := io.WriteString(sh, "admin\n")
	require.NoError(t, err)
	readUntil(t, out, "Password: ")
	_, err = io.WriteString(sh, "wrong\n")
	require.NoError(t, err)
	readUntil(t, out, "Login incorrect")

	readUntil(t, out, "login: ")
	_, err = io.WriteString(sh, "admin\n")
	require.NoError(t, err)
	readUntil(t, out, "Password: ")
	_, err = io.WriteString(sh, "hunter2\n")
	require.NoError(t, err)
	readUntil(t, out, "admin@rk3588:~# ")

	_, err = io.WriteString(sh, "mount | grep emmc_mount\n")
	require.NoError(t, err)
	got := readUntil(t, out, "# ")
	assert.Contains(t, got, "/dev/mmcblk0p1 on /mnt/emmc_mount type ext4 (rw,relatime)\r\n")

	assert.Equal(t, 1, device.LoginCount())
	require.Len(t, device.GetCommandHistory(), 1)
}

func TestMockDevice_DropAfterLogin(t *testing.T) {
	device := startDevice(t)
	device.SetErrorMode(ErrorModeDropAfterLogin, 0)

	sh := spawn(t, device)
	out := bufio.NewReader(sh.Output())

	readUntil(t, out, "login: ")
	_, _ = io.WriteString(sh, "root\n")
	readUntil(t, out, "Password: ")
	_, _ = io.WriteString(sh, "root\n")
	readUntil(t, out, "# ")

	select {
	case <-sh.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session should end after login")
	}
}

func TestMockDevice_SSHTimeout(t *testing.T) {
	device := startDevice(t)
	device.SetErrorMode(ErrorModeSSHTimeout, 0)

	spawner, err := bridge.NewSSHSpawner(bridge.SSHShellConfig{
		Address: device.Address(),
		Port:    device.Port(),
		User:    "root",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	_, err = spawner.Spawn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSH handshake")
}
