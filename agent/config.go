package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"printwatch/agent/scanner"
	"printwatch/agent/scanner/vendor"
	"printwatch/common/config"
)

// AgentConfig represents the agent configuration
type AgentConfig struct {
	SNMP      SNMPConfig            `toml:"snmp"`
	Discovery DiscoveryConfig       `toml:"discovery"`
	Web       WebConfig             `toml:"web"`
	Database  config.DatabaseConfig `toml:"database"`
	Logging   config.LoggingConfig  `toml:"logging"`
	Pantum    PantumConfig          `toml:"pantum"`
}

// SNMPConfig holds SNMP client settings
type SNMPConfig struct {
	Community              string   `toml:"community"`
	TimeoutMs              int      `toml:"timeout_ms"`
	Retries                int      `toml:"retries"`
	ProbeTimeoutMs         int      `toml:"probe_timeout_ms"`
	ExtendedProbeTimeoutMs int      `toml:"extended_probe_timeout_ms"`
	Communities            []string `toml:"communities"`
	DiagnoseOnFailure      bool     `toml:"diagnose_on_failure"`
}

// DiscoveryConfig controls range scans.
type DiscoveryConfig struct {
	BatchSize         int  `toml:"batch_size"`
	MaxAddresses      int  `toml:"max_addresses"`
	MDNSEnabled       bool `toml:"mdns_enabled"`
	MDNSBrowseSeconds int  `toml:"mdns_browse_seconds"`
	ReverseLookup     bool `toml:"reverse_lookup"`
}

// WebConfig holds HTTP API settings
type WebConfig struct {
	HTTPPort int    `toml:"http_port"`
	Bind     string `toml:"bind"`
}

// PantumConfig controls the Pantum web status fallback.
type PantumConfig struct {
	HTTPFallback  bool `toml:"http_fallback"`
	HTTPTimeoutMs int  `toml:"http_timeout_ms"`
}

// DefaultAgentConfig returns agent configuration with sensible defaults
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		SNMP: SNMPConfig{
			Community:              "public",
			TimeoutMs:              3000,
			Retries:                2,
			ProbeTimeoutMs:         int(scanner.DefaultProbeTimeout / time.Millisecond),
			ExtendedProbeTimeoutMs: int(scanner.DefaultExtendedProbeTimeout / time.Millisecond),
			Communities:            append([]string(nil), scanner.DefaultCommunities...),
			DiagnoseOnFailure:      true,
		},
		Discovery: DiscoveryConfig{
			BatchSize:         scanner.DefaultBatchSize,
			MaxAddresses:      scanner.DefaultMaxAddresses,
			MDNSEnabled:       false,
			MDNSBrowseSeconds: 3,
			ReverseLookup:     true,
		},
		Web: WebConfig{
			HTTPPort: 8080,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   "", // platform data directory
		},
		Logging: config.LoggingConfig{
			Level: "info",
		},
		Pantum: PantumConfig{
			HTTPFallback:  true,
			HTTPTimeoutMs: 5000,
		},
	}
}

// LoadAgentConfig loads configuration from TOML file with environment variable overrides.
// Returns an error if the config file does not exist or cannot be parsed.
func LoadAgentConfig(configPath string) (*AgentConfig, error) {
	cfg := DefaultAgentConfig()
	if err := config.LoadTOML(configPath, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *AgentConfig) {
	if val := os.Getenv("SNMP_COMMUNITY"); val != "" {
		cfg.SNMP.Community = val
	}
	if val := os.Getenv("SNMP_TIMEOUT_MS"); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil {
			cfg.SNMP.TimeoutMs = timeout
		}
	}
	if val := os.Getenv("SNMP_RETRIES"); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			cfg.SNMP.Retries = retries
		}
	}
	if val := os.Getenv("SNMP_COMMUNITIES"); val != "" {
		var list []string
		for _, c := range strings.Split(val, ",") {
			if c = strings.TrimSpace(c); c != "" {
				list = append(list, c)
			}
		}
		if len(list) > 0 {
			cfg.SNMP.Communities = list
		}
	}
	if val := os.Getenv("DISCOVERY_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Discovery.BatchSize = n
		}
	}
	if val := os.Getenv("DISCOVERY_MDNS"); val != "" {
		lower := strings.ToLower(val)
		cfg.Discovery.MDNSEnabled = lower == "1" || lower == "true" || lower == "yes"
	}
	if val := os.Getenv("WEB_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Web.HTTPPort = port
		}
	}

	config.ApplyDatabaseEnvOverrides(&cfg.Database)
	config.ApplyLoggingEnvOverrides(&cfg.Logging)
}

// WriteDefaultAgentConfig writes a default agent configuration file
func WriteDefaultAgentConfig(configPath string) error {
	return config.WriteDefaultTOML(configPath, DefaultAgentConfig())
}

// EngineConfig maps the SNMP and Pantum sections onto the query engine.
func (c *AgentConfig) EngineConfig() scanner.EngineConfig {
	return scanner.EngineConfig{
		Timeout:  millis(c.SNMP.TimeoutMs),
		Retries:  c.SNMP.Retries,
		Diagnose: c.SNMP.DiagnoseOnFailure,
		Vendor: vendor.Options{
			PantumHTTPFallback: c.Pantum.HTTPFallback,
			PantumHTTPTimeout:  millis(c.Pantum.HTTPTimeoutMs),
		},
	}
}

// ScanConfig maps the SNMP and discovery sections onto the scanner.
func (c *AgentConfig) ScanConfig() scanner.ScanConfig {
	sc := scanner.ScanConfig{
		Communities:          c.SNMP.Communities,
		BatchSize:            c.Discovery.BatchSize,
		ProbeTimeout:         millis(c.SNMP.ProbeTimeoutMs),
		ExtendedProbeTimeout: millis(c.SNMP.ExtendedProbeTimeoutMs),
		DisableReverseLookup: !c.Discovery.ReverseLookup,
		MaxAddresses:         c.Discovery.MaxAddresses,
	}
	if c.Discovery.MDNSEnabled && c.Discovery.MDNSBrowseSeconds > 0 {
		sc.MDNSWindow = time.Duration(c.Discovery.MDNSBrowseSeconds) * time.Second
	}
	return sc
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
