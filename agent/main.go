package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"printwatch/agent/scanner"
	"printwatch/common/config"
	commonutil "printwatch/common/util"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	cfgFile   string
	community string
	brand     string
	hostname  string
	batchSize int
	useMDNS   bool
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "printwatch-agent",
	Short: "PrintWatch Agent - SNMP printer discovery and status",
	Long: `PrintWatch Agent discovers SNMP printers on the local network and reads
their identity, supply levels, page counters and faults.

Run without a subcommand to start the HTTP API (equivalent to 'serve').`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan <range>...",
	Short: "Discover printers and stream events as NDJSON",
	Example: `  printwatch-agent scan 192.168.1.1-254
  printwatch-agent scan 10.0.0.10 10.0.1.1-50 --mdns`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

var queryCmd = &cobra.Command{
	Use:   "query <ip>",
	Short: "Read the full status of one printer",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var suppliesCmd = &cobra.Command{
	Use:   "supplies <ip>",
	Short: "Read supply levels and faults of one printer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSupplies,
}

var syncCmd = &cobra.Command{
	Use:   "sync <ip>",
	Short: "Refresh a known printer, following an address change by hostname",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config <path>",
	Short: "Write a default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := WriteDefaultAgentConfig(args[0]); err != nil {
			return fmt.Errorf("generate config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at %s\n", args[0])
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "PrintWatch Agent %s\n", Version)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var serviceCmd = &cobra.Command{
	Use:       "service <install|uninstall|start|stop|status|run>",
	Short:     "Manage the system service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"install", "uninstall", "start", "stop", "status", "run"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleServiceCommand(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: first config.toml on the search path)")
	rootCmd.PersistentFlags().StringVar(&community, "community", "", "SNMP community (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress informational output")

	for _, c := range []*cobra.Command{queryCmd, suppliesCmd, syncCmd} {
		c.Flags().StringVar(&brand, "brand", "", "printer brand (brother, pantum, ricoh, ...)")
	}
	syncCmd.Flags().StringVar(&hostname, "hostname", "", "last known hostname, used when the address changed")
	scanCmd.Flags().IntVar(&batchSize, "batch-size", 0, "hosts probed concurrently (default from config)")
	scanCmd.Flags().BoolVar(&useMDNS, "mdns", false, "seed the scan with printers announced over mDNS")

	rootCmd.AddCommand(serveCmd, scanCmd, queryCmd, suppliesCmd, syncCmd, generateConfigCmd, versionCmd, serviceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or the first config.toml on the search path,
// or falls back to defaults. Environment overrides apply in every case.
func loadConfig() (*AgentConfig, error) {
	path := cfgFile
	if path == "" {
		if found, _, err := config.FindConfigFile("config.toml"); err == nil {
			path = found
		}
	}

	var cfg *AgentConfig
	if path != "" {
		loaded, err := LoadAgentConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = DefaultAgentConfig()
		applyEnvOverrides(cfg)
	}

	if community != "" {
		cfg.SNMP.Community = community
		list := []string{community}
		for _, c := range cfg.SNMP.Communities {
			if c != community {
				list = append(list, c)
			}
		}
		cfg.SNMP.Communities = list
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	commonutil.SetQuietMode(quiet)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !service.Interactive() {
		return runAsService(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// oneShotConfig loads config and installs a console-only logger for the
// single-run commands.
func oneShotConfig() (*AgentConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	cfg.Logging.Dir = ""
	setupLogger(cfg.Logging, false)
	return cfg, nil
}

// oneShot returns an app with no database for the single-device commands.
func oneShot() (*app, context.Context, context.CancelFunc, error) {
	cfg, err := oneShotConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return newApp(cfg, nil, nil), ctx, stop, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := oneShotConfig()
	if err != nil {
		return err
	}
	if batchSize > 0 {
		cfg.Discovery.BatchSize = batchSize
	}
	if useMDNS {
		cfg.Discovery.MDNSEnabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a := newApp(cfg, nil, nil)
	defer a.Close()

	_, err = a.scanner.Scan(ctx, args, scanner.NewNDJSONSink(cmd.OutOrStdout()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, ctx, stop, err := oneShot()
	if err != nil {
		return err
	}
	defer stop()
	defer a.Close()

	res, err := a.engine.Query(ctx, a.target(targetRequest{IP: args[0], Brand: brand}))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runSupplies(cmd *cobra.Command, args []string) error {
	a, ctx, stop, err := oneShot()
	if err != nil {
		return err
	}
	defer stop()
	defer a.Close()

	st, err := a.engine.Supplies(ctx, a.target(targetRequest{IP: args[0], Brand: brand}))
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), st); err != nil {
		return err
	}
	if st.Status == scanner.StatusOffline {
		return fmt.Errorf("%w at %s", scanner.ErrUnreachable, args[0])
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	a, ctx, stop, err := oneShot()
	if err != nil {
		return err
	}
	defer stop()
	defer a.Close()

	res, err := a.engine.Sync(ctx, scanner.SyncRequest{
		IP:        args[0],
		Brand:     brand,
		Community: a.cfg.SNMP.Community,
		Hostname:  hostname,
	})
	if err != nil {
		var ue *scanner.UnreachableError
		if errors.As(err, &ue) && ue.Diagnosis != nil {
			_ = printJSON(cmd.OutOrStdout(), ue.Diagnosis)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// handleServiceCommand processes service install/uninstall/start/stop commands
func handleServiceCommand(action string) error {
	commonutil.SetQuietMode(quiet)
	s, err := service.New(newProgram(nil), getServiceConfig(cfgFile))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	switch action {
	case "install":
		commonutil.ShowBanner(Version, GitCommit, BuildTime, "Agent")
		if status, _ := s.Status(); status != service.StatusUnknown {
			commonutil.ShowWarning("Service already exists, removing first...")
			if status == service.StatusRunning {
				_ = s.Stop()
				time.Sleep(2 * time.Second)
			}
			if err := s.Uninstall(); err != nil && !strings.Contains(err.Error(), "marked for deletion") {
				commonutil.ShowError(fmt.Sprintf("Failed to remove existing service: %v", err))
				return err
			}
		}
		commonutil.ShowInfo("Setting up directories...")
		if err := setupServiceDirectories(); err != nil {
			commonutil.ShowError(fmt.Sprintf("Failed to setup service directories: %v", err))
			return err
		}
		if err := s.Install(); err != nil && !strings.Contains(err.Error(), "already exists") {
			commonutil.ShowError(fmt.Sprintf("Failed to install service: %v", err))
			return err
		}
		commonutil.ShowSuccess("Service installed")
		commonutil.ShowInfo("Use 'printwatch-agent service start' to start the service")

	case "uninstall":
		if err := s.Uninstall(); err != nil {
			commonutil.ShowError(fmt.Sprintf("Failed to uninstall service: %v", err))
			return err
		}
		commonutil.ShowSuccess("Service uninstalled")

	case "start":
		if err := s.Start(); err != nil {
			commonutil.ShowError(fmt.Sprintf("Failed to start service: %v", err))
			return err
		}
		commonutil.ShowSuccess("Service started")

	case "stop":
		commonutil.ShowInfo("Stopping service (may take up to 30 seconds)...")
		if err := s.Stop(); err != nil {
			commonutil.ShowError(fmt.Sprintf("Failed to stop service: %v", err))
			return err
		}
		commonutil.ShowSuccess("Service stopped")

	case "status":
		status, err := s.Status()
		if err != nil {
			commonutil.ShowWarning(fmt.Sprintf("Service status unavailable: %v", err))
			return nil
		}
		commonutil.ShowInfo("Service status: " + serviceStatusString(status))

	case "run":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runAsService(cfg)

	default:
		return fmt.Errorf("unknown service action %q", action)
	}
	return nil
}

// runAsService starts the agent under service manager control
func runAsService(cfg *AgentConfig) error {
	prg := newProgram(func(ctx context.Context) error { return serve(ctx, cfg) })
	s, err := service.New(prg, getServiceConfig(cfgFile))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return s.Run()
}

func serviceStatusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "not installed"
	}
}
