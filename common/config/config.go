// Package config provides shared configuration utilities for printwatch components
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const appDirName = "printwatch"

// FindConfigFile searches the platform search path and returns the first
// readable match.
func FindConfigFile(filename string) (string, []byte, error) {
	for _, path := range GetConfigSearchPaths(filename) {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("%s not found in any search path", filename)
}

// GetConfigSearchPaths returns an ordered list of paths to search for config files.
func GetConfigSearchPaths(filename string) []string {
	var searchPaths []string

	switch runtime.GOOS {
	case "windows":
		searchPaths = append(searchPaths, filepath.Join(os.Getenv("ProgramData"), "PrintWatch", filename))
	case "darwin":
		searchPaths = append(searchPaths, filepath.Join("/Library/Application Support", "PrintWatch", filename))
	default:
		searchPaths = append(searchPaths, filepath.Join("/etc", appDirName, filename))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "AppData", "Local", "PrintWatch", filename))
		case "darwin":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "Library", "Application Support", "PrintWatch", filename))
		default:
			searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", appDirName, filename))
		}
	}

	if exePath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exePath), filename))
	}

	searchPaths = append(searchPaths, filepath.Join(".", filename))
	return searchPaths
}

// GetDataDirectory returns (and creates) the directory for the SQLite
// database. Services use a system-wide location.
func GetDataDirectory(isService bool) (string, error) {
	var dataDir string

	if isService {
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(os.Getenv("ProgramData"), "PrintWatch")
		default:
			dataDir = filepath.Join("/var/lib", appDirName)
		}
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(homeDir, "AppData", "Local", "PrintWatch")
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "PrintWatch")
		default:
			dataDir = filepath.Join(homeDir, ".local", "share", appDirName)
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}

// WriteDefaultTOML writes a default TOML configuration file with the provided structure
func WriteDefaultTOML(configPath string, config interface{}) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadTOML loads a TOML configuration file into the provided structure
func LoadTOML(configPath string, config interface{}) error {
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}

	md, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver              string `toml:"driver"` // "sqlite" or "postgres"
	Path                string `toml:"path"`   // sqlite file; empty means the data directory default
	DSN                 string `toml:"dsn"`    // postgres connection string
	MaxOpenConns        int    `toml:"max_open_conns"`
	ConnMaxLifetimeSecs int    `toml:"conn_max_lifetime_seconds"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
	// TraceTags limits TRACE output to the named subsystems
	// (snmp_transport, discovery_probe, vendor_parse, brother_decode).
	// Empty logs every tag.
	TraceTags []string `toml:"trace_tags"`
}

// ApplyDatabaseEnvOverrides applies DB_* environment overrides.
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig) {
	if val := os.Getenv("DB_DRIVER"); val != "" {
		cfg.Driver = strings.ToLower(val)
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.Path = val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DSN = val
	}
	if val := os.Getenv("DB_MAX_OPEN_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxOpenConns = n
		}
	}
}

// ApplyLoggingEnvOverrides applies LOG_LEVEL / LOG_DIR.
func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		cfg.Dir = val
	}
	if val := os.Getenv("LOG_TRACE_TAGS"); val != "" {
		cfg.TraceTags = cfg.TraceTags[:0]
		for _, tag := range strings.Split(val, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				cfg.TraceTags = append(cfg.TraceTags, tag)
			}
		}
	}
}
