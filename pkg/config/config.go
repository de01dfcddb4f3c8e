// Package config handles local configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ramarlina/mcptastic/pkg/geoip"
)

var (
	mu         sync.RWMutex
	globalCfg  *Config
	configPath string
	configDir  string
)

// Config represents the CLI configuration.
type Config struct {
	Address        string            `json:"address"`
	Transport      string            `json:"transport"`
	DBPath         string            `json:"db_path,omitempty"`
	GeoURL         string            `json:"geo_url,omitempty"`
	ElevationURL   string            `json:"elevation_url,omitempty"`
	CustomSettings map[string]string `json:"custom,omitempty"`
}

// Default returns a config with default values.
func Default() *Config {
	return &Config{
		Address:        "meshtastic.local",
		Transport:      "tcp",
		GeoURL:         geoip.DefaultGeoURL,
		ElevationURL:   geoip.DefaultElevationURL,
		CustomSettings: make(map[string]string),
	}
}

// Load reads the configuration from disk, creating defaults if needed.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalCfg != nil {
		return globalCfg, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	configDir = filepath.Join(homeDir, ".mcptastic")
	if dir := os.Getenv("MCPTASTIC_CONFIG_DIR"); dir != "" {
		configDir = dir
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	configPath = filepath.Join(configDir, "config.json")

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config
		globalCfg = Default()
		applyEnv(globalCfg)
		if err := save(globalCfg); err != nil {
			return nil, fmt.Errorf("save default config: %w", err)
		}
		return globalCfg, nil
	}

	// Load existing config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Ensure custom settings map is initialized
	if cfg.CustomSettings == nil {
		cfg.CustomSettings = make(map[string]string)
	}

	globalCfg = &cfg
	applyEnv(globalCfg)

	return globalCfg, nil
}

// applyEnv overrides file settings from the environment.
func applyEnv(cfg *Config) {
	if addr := os.Getenv("MCPTASTIC_ADDR"); addr != "" {
		cfg.Address = addr
	}
	if tr := os.Getenv("MCPTASTIC_TRANSPORT"); tr != "" {
		cfg.Transport = tr
	}
	if db := os.Getenv("MCPTASTIC_DB"); db != "" {
		cfg.DBPath = db
	}
	if url := os.Getenv("MCPTASTIC_GEO_URL"); url != "" {
		cfg.GeoURL = url
	}
	if url := os.Getenv("MCPTASTIC_ELEVATION_URL"); url != "" {
		cfg.ElevationURL = url
	}
}

// save writes the config to disk.
func save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Save persists the current config to disk.
func Save() error {
	mu.Lock()
	defer mu.Unlock()

	if globalCfg == nil {
		return fmt.Errorf("no config loaded")
	}

	return save(globalCfg)
}

// Get retrieves a config value by key.
func Get(key string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil {
		return "", fmt.Errorf("config not loaded")
	}

	switch key {
	case "address":
		return globalCfg.Address, nil
	case "transport":
		return globalCfg.Transport, nil
	case "db_path":
		return globalCfg.DBPath, nil
	case "geo_url":
		return globalCfg.GeoURL, nil
	case "elevation_url":
		return globalCfg.ElevationURL, nil
	default:
		// Check custom settings
		if val, ok := globalCfg.CustomSettings[key]; ok {
			return val, nil
		}
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates a config value by key.
func Set(key, value string) error {
	mu.Lock()
	defer mu.Unlock()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	switch key {
	case "address":
		globalCfg.Address = value
	case "transport":
		if value != "tcp" && value != "serial" {
			return fmt.Errorf("invalid transport %q (want tcp or serial)", value)
		}
		globalCfg.Transport = value
	case "db_path":
		globalCfg.DBPath = value
	case "geo_url":
		globalCfg.GeoURL = value
	case "elevation_url":
		globalCfg.ElevationURL = value
	default:
		// Store in custom settings
		globalCfg.CustomSettings[key] = value
	}

	return save(globalCfg)
}

// List returns all config key-value pairs.
func List() (map[string]string, error) {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	result := make(map[string]string)
	result["address"] = globalCfg.Address
	result["transport"] = globalCfg.Transport
	result["db_path"] = globalCfg.DBPath
	result["geo_url"] = globalCfg.GeoURL
	result["elevation_url"] = globalCfg.ElevationURL

	// Add custom settings
	for k, v := range globalCfg.CustomSettings {
		result[k] = v
	}

	return result, nil
}

// GetAddress returns the configured device address.
func GetAddress() string {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil {
		return "meshtastic.local"
	}

	return globalCfg.Address
}

// GetTransport returns the configured transport.
func GetTransport() string {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil || globalCfg.Transport == "" {
		return "tcp"
	}

	return globalCfg.Transport
}

// GetDBPath returns the node database path, defaulting to a file next
// to the config.
func GetDBPath() string {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg != nil && globalCfg.DBPath != "" {
		return globalCfg.DBPath
	}
	if configDir != "" {
		return filepath.Join(configDir, "meshtastic.db")
	}
	return "meshtastic.db"
}

// GetGeoURL returns the IP geolocation endpoint.
func GetGeoURL() string {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil || globalCfg.GeoURL == "" {
		return geoip.DefaultGeoURL
	}
	return globalCfg.GeoURL
}

// GetElevationURL returns the elevation lookup endpoint.
func GetElevationURL() string {
	mu.RLock()
	defer mu.RUnlock()

	if globalCfg == nil || globalCfg.ElevationURL == "" {
		return geoip.DefaultElevationURL
	}
	return globalCfg.ElevationURL
}
