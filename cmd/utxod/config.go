// config.go - Configuration management for the ledger node
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Config represents the application configuration
type Config struct {
	// File paths. Relative db, export, proof and metrics paths are taken
	// from DataDir.
	DataDir         string `json:"data_dir"`
	DBPath          string `json:"db_path"`
	StateExportPath string `json:"state_export_path"`
	KeyDir          string `json:"key_dir"`
	ProofPath       string `json:"proof_path"`

	// Proving keys
	ProvingKeyPath   string `json:"proving_key_path"`
	VerifyingKeyPath string `json:"verifying_key_path"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Performance
	TimeoutSeconds int `json:"timeout_seconds"`

	// Audit
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`

	// Metrics are written in the Prometheus text format when set
	MetricsPath string `json:"metrics_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "data",
		DBPath:           "ledger.db",
		StateExportPath:  "state.json",
		KeyDir:           "keys",
		ProofPath:        "proof.json",
		ProvingKeyPath:   "keys/SignatureCircuit_pk.bin",
		VerifyingKeyPath: "keys/SignatureCircuit_vk.bin",
		LogLevel:         "info",
		LogFile:          "utxod.log",
		TimeoutSeconds:   600,
		EnableAudit:      true,
		AuditLogPath:     "audit.log",
		MetricsPath:      "metrics.prom",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		config := DefaultConfig()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DataPath places a relative path under DataDir. Absolute and empty paths
// are returned unchanged.
func (c *Config) DataPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// ResolvePaths applies DataPath to the data file paths.
func (c *Config) ResolvePaths() {
	c.DBPath = c.DataPath(c.DBPath)
	c.StateExportPath = c.DataPath(c.StateExportPath)
	c.ProofPath = c.DataPath(c.ProofPath)
	c.MetricsPath = c.DataPath(c.MetricsPath)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.KeyDir == "" {
		return fmt.Errorf("key_dir is required")
	}
	if c.ProvingKeyPath == "" || c.VerifyingKeyPath == "" {
		return fmt.Errorf("proving_key_path and verifying_key_path are required")
	}
	if c.EnableAudit && c.AuditLogPath == "" {
		return fmt.Errorf("audit_log_path is required when audit is enabled")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
