package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kardianos/service"
)

const (
	serviceName     = "PrintWatchAgent"
	serviceStopWait = 30 * time.Second
)

// program implements service.Interface around a blocking run function.
type program struct {
	runFn     func(ctx context.Context) error
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
	stopWait  time.Duration
}

func newProgram(runFn func(ctx context.Context) error) *program {
	return &program{runFn: runFn, stopWait: serviceStopWait}
}

func (p *program) Start(s service.Service) error {
	if s != nil {
		p.svcLogger, _ = s.Logger(nil)
	}
	p.info("PrintWatch Agent service starting")

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)
	if p.runFn == nil {
		<-p.ctx.Done()
		return
	}
	if err := p.runFn(p.ctx); err != nil && p.svcLogger != nil {
		p.svcLogger.Error(fmt.Sprintf("PrintWatch Agent exited: %v", err))
	}
	p.info("PrintWatch Agent service stopping")
}

func (p *program) Stop(s service.Service) error {
	p.info("PrintWatch Agent service stop requested")
	if p.cancel != nil {
		p.cancel()
	}
	if p.done == nil {
		return nil
	}

	select {
	case <-p.done:
		p.info("PrintWatch Agent service stopped gracefully")
	case <-time.After(p.stopWait):
		if p.svcLogger != nil {
			p.svcLogger.Warning("PrintWatch Agent service stopped with timeout")
		}
	}
	return nil
}

func (p *program) info(msg string) {
	if p.svcLogger != nil {
		p.svcLogger.Info(msg)
	}
}

// serviceBaseDir is the platform data directory used when running under a
// service manager.
func serviceBaseDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "PrintWatch")
	case "darwin":
		return "/Library/Application Support/PrintWatch"
	default:
		return "/var/lib/printwatch"
	}
}

// getServiceConfig returns the service configuration for the current platform
func getServiceConfig(configPath string) *service.Config {
	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	return &service.Config{
		Name:             serviceName,
		DisplayName:      "PrintWatch Agent",
		Description:      "Discovers SNMP printers on the local network and reports their supplies, counters and faults.",
		WorkingDirectory: serviceBaseDir(),
		Arguments:        args,
		Option: service.KeyValue{
			// Windows
			"StartType":              "automatic",
			"DelayedAutoStart":       true,
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   30,

			// systemd
			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillMode":          "mixed",
			"KillSignal":        "SIGTERM",

			// launchd
			"RunAtLoad": true,
			"KeepAlive": true,
		},
	}
}

// setupServiceDirectories creates necessary directories for service operation
func setupServiceDirectories() error {
	var dirs []string

	switch runtime.GOOS {
	case "windows":
		base := serviceBaseDir()
		dirs = []string{base, filepath.Join(base, "logs")}
	case "darwin":
		base := serviceBaseDir()
		dirs = []string{base, filepath.Join(base, "logs"), "/var/log/printwatch"}
	default:
		dirs = []string{"/var/lib/printwatch", "/var/log/printwatch", "/etc/printwatch"}
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// getServiceLogDir returns the log directory for service mode
func getServiceLogDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(serviceBaseDir(), "logs")
	}
	return "/var/log/printwatch"
}
