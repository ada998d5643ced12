// Package checker runs one eMMC mount check: it spawns the remote shell,
// drives the session, classifies the output, then records the result in the
// check log, on the console and in metrics.
//
// A check always produces a record. Failures of the bridge or the session
// become an "Error: ..." mount result; only failing to write the check log is
// returned as an error.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/bridge"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/checklog"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/config"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/mount"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/observability"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/security"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/session"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/utils"
)

// Options holds the collaborators of a Checker. Zero fields get production
// defaults.
type Options struct {
	// Spawner starts the remote shell; nil builds one from the config
	Spawner bridge.Spawner

	// Fs holds the check log; nil uses the OS filesystem
	Fs afero.Fs

	// Console receives the live transcript and the summary; nil uses stdout
	Console io.Writer

	// Metrics collects check metrics; nil creates a fresh set
	Metrics *observability.Metrics

	// Now returns the check time; nil uses time.Now
	Now func() time.Time

	// Audit receives bridge and login security events; nil uses the global logger
	Audit *security.Logger
}

// Checker runs mount checks.
type Checker struct {
	cfg        *config.Config
	spawner    bridge.Spawner
	driver     *session.Driver
	classifier *mount.Classifier
	log        *checklog.Writer
	metrics    *observability.Metrics
	console    io.Writer
	now        func() time.Time
	audit      *security.Logger
}

// New creates a checker for a validated configuration.
func New(cfg *config.Config, opts Options) *Checker {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Audit == nil {
		opts.Audit = security.GetLogger()
	}

	return &Checker{
		cfg:        cfg,
		spawner:    opts.Spawner,
		driver:     session.NewDriver(session.OptionsFromConfig(cfg), opts.Console),
		classifier: mount.NewClassifier(cfg.Check.MountPath, cfg.Check.Marker),
		log:        checklog.NewWriter(opts.Fs, cfg.Log.File),
		metrics:    opts.Metrics,
		console:    opts.Console,
		now:        opts.Now,
		audit:      opts.Audit,
	}
}

// Metrics returns the metrics the checker records into.
func (c *Checker) Metrics() *observability.Metrics {
	return c.metrics
}

// Run performs one check. The returned record is always complete; the error
// is non-nil only when the check log could not be written.
func (c *Checker) Run(ctx context.Context) (checklog.Record, error) {
	started := c.now()
	klog.V(2).Infof("Starting mount check of %s over %s", c.cfg.Check.MountPath, c.cfg.Bridge.Transport)

	tr, res := c.inspect(ctx)

	rec := checklog.Record{
		Time:          started,
		LoginStatus:   tr.LoginStatus(),
		MountResult:   res.Text,
		CommandOutput: tr.Output,
	}
	elapsed := c.now().Sub(started)

	c.metrics.RecordCheck(tr.LoginSucceeded, res.Kind.String(), started, elapsed)
	if path := c.cfg.Metrics.Textfile; path != "" {
		if err := c.metrics.WriteTextfile(path); err != nil {
			klog.Warningf("Metrics not exported: %v", err)
		} else {
			klog.V(4).Infof("Wrote metrics to %s", path)
		}
	}

	if err := c.log.Append(rec); err != nil {
		return rec, fmt.Errorf("failed to record check: %w", err)
	}
	checklog.PrintSummary(c.console, c.log.Path(), rec)

	klog.V(2).Infof("Mount check finished in %v: login=%s nfs=%s", elapsed.Round(time.Millisecond), rec.LoginStatus, rec.MountResult)
	klog.V(4).Infof("Security events: %s", c.audit.GetMetrics())
	return rec, nil
}

// inspect spawns the shell, drives the session and classifies its output.
// The shell is stopped before inspect returns. The transcript is never nil.
func (c *Checker) inspect(ctx context.Context) (*session.Transcript, mount.Result) {
	empty := &session.Transcript{}

	spawner := c.spawner
	if spawner == nil {
		var err error
		spawner, err = bridge.NewSpawner(c.cfg)
		if err != nil {
			return empty, c.failed(err)
		}
	}

	sh, err := spawner.Spawn(ctx)
	c.metrics.RecordSpawn(c.cfg.Bridge.Transport, err)
	c.audit.LogBridgeSpawn(c.cfg.Bridge.Transport, c.target(), c.redacted(err))
	if err != nil {
		return empty, c.failed(err)
	}
	defer bridge.Stop(sh, c.cfg.Bridge.TerminateGrace)

	tr, err := c.driver.Run(ctx, sh)
	if tr == nil {
		tr = empty
	}
	c.auditLogin(tr, err)
	if err != nil {
		return tr, c.failed(err)
	}

	klog.V(2).Infof("Session ended in state %s, login %s", tr.State, tr.LoginStatus())
	return tr, c.classifier.Classify(tr.Output)
}

// auditLogin records how the login dialogue ended.
func (c *Checker) auditLogin(tr *session.Transcript, err error) {
	login := security.ConsoleLogin{
		Username:  c.cfg.Login.Username,
		Transport: c.cfg.Bridge.Transport,
		MountPath: c.cfg.Check.MountPath,
		Duration:  tr.LoginDuration,
	}
	switch {
	case tr.LoginSucceeded:
		c.audit.LogConsoleLoginSuccess(login)
	case tr.State == session.StateLoginTimedOut:
		c.audit.LogConsoleLoginTimeout(login)
	default:
		if err == nil {
			err = tr.LoginErr()
		}
		c.audit.LogConsoleLoginAborted(login, c.redacted(err))
	}
}

// target names the device endpoint for audit events.
func (c *Checker) target() string {
	if c.cfg.Bridge.Transport == "ssh" {
		return net.JoinHostPort(c.cfg.SSH.Address, strconv.Itoa(c.cfg.SSH.Port))
	}
	return c.cfg.Bridge.Command
}

// redacted strips configured secrets from err before it leaves the checker.
func (c *Checker) redacted(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(utils.ErrorMessage(err, c.cfg.Secrets()...))
}

// failed reports err on the console and turns it into an error result.
func (c *Checker) failed(err error) mount.Result {
	msg := utils.ErrorMessage(err, c.cfg.Secrets()...)
	fmt.Fprintf(c.console, "\nException occurred: %s\n", msg)
	klog.Errorf("Mount check failed: %s", msg)
	return mount.ErrorResult(err, c.cfg.Secrets()...)
}
