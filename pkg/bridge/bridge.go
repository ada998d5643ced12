package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/config"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/utils"
)

// Shell is a running interactive remote shell.
type Shell interface {
	// Write sends bytes to the remote input
	io.Writer

	// Output returns the combined output and error stream
	Output() io.Reader

	// CloseInput closes the remote input
	CloseInput() error

	// Done is closed once the underlying process or session has exited
	Done() <-chan struct{}

	// Terminate asks the shell to exit gracefully
	Terminate() error

	// Kill forcibly stops the shell and releases its resources
	Kill() error
}

// Spawner starts remote shells.
type Spawner interface {
	Spawn(ctx context.Context) (Shell, error)
}

// NewSpawner returns the Spawner for the configured transport.
func NewSpawner(cfg *config.Config) (Spawner, error) {
	switch cfg.Bridge.Transport {
	case "adb":
		return NewCommandSpawner(cfg.Bridge.Command, cfg.Bridge.PTY)
	case "ssh":
		sshCfg := SSHShellConfig{
			Address:    cfg.SSH.Address,
			Port:       cfg.SSH.Port,
			User:       cfg.SSH.User,
			Password:   cfg.Login.Password,
			KnownHosts: cfg.SSH.KnownHosts,
			Timeout:    cfg.SSH.DialTimeout,
			RequestPTY: cfg.Bridge.PTY,
		}
		if cfg.SSH.KeyFile != "" {
			key, err := os.ReadFile(cfg.SSH.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read SSH key from %s: %w", cfg.SSH.KeyFile, err)
			}
			sshCfg.PrivateKey = key
		}
		return NewSSHSpawner(sshCfg)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrInvalidTransport, cfg.Bridge.Transport)
	}
}

// Stop closes the input of sh and makes sure it is gone: if still running it
// is asked to terminate, given grace to exit, then killed. Errors are
// swallowed; Stop never fails.
func Stop(sh Shell, grace time.Duration) {
	if sh == nil {
		return
	}

	if err := sh.CloseInput(); err != nil {
		klog.V(4).Infof("Closing shell input: %v", err)
	}

	select {
	case <-sh.Done():
		klog.V(4).Info("Shell already exited")
		// still release transport resources
		if err := sh.Kill(); err != nil {
			klog.V(4).Infof("Releasing exited shell: %v", err)
		}
		return
	default:
	}

	if err := sh.Terminate(); err != nil {
		klog.V(4).Infof("Graceful terminate failed, killing: %v", err)
	} else {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-sh.Done():
			klog.V(4).Info("Shell exited after terminate")
			if err := sh.Kill(); err != nil {
				klog.V(4).Infof("Releasing exited shell: %v", err)
			}
			return
		case <-timer.C:
			klog.V(4).Infof("Shell did not exit within %v, killing", grace)
		}
	}

	if err := sh.Kill(); err != nil {
		klog.V(4).Infof("Kill failed (ignored): %v", err)
	}
}
