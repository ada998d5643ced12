package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/emmc-mount-check/pkg/checker"
	"git.srvlab.io/whiskey/emmc-mount-check/pkg/config"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath  = flag.String("config", "", "Path to config file (default: ./emmc-mount-check.yaml, then $XDG_CONFIG_HOME/emmc-mount-check/emmc-mount-check.yaml)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *showVersion {
		fmt.Println("emmc-mount-check", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	klog.V(4).Infof("Using %s transport, log file %s", cfg.Bridge.Transport, cfg.Log.File)

	// Interrupts end the session early; the check is still recorded
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := checker.New(cfg, checker.Options{})
	if _, err := c.Run(ctx); err != nil {
		klog.Errorf("Check result not saved: %v", err)
	}

	klog.Flush()
}
