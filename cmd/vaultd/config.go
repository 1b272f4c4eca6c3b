// config.go - Configuration management for the vault daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// Server settings
	ListenAddr string `json:"listen_addr"`

	// File paths
	ProvingKeyPath   string `json:"proving_key_path"`
	VerifyingKeyPath string `json:"verifying_key_path"`
	LedgerPath       string `json:"ledger_path"`

	// Settlement channel; empty means settle locally (null submitter)
	SettlementEndpoint string `json:"settlement_endpoint"`
	SettlementTimeout  int    `json:"settlement_timeout_seconds"`

	// Logging
	LogLevel     string `json:"log_level"`
	LogFile      string `json:"log_file"`
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`

	// Rate limiting (per identity hash)
	RateLimitBurst    int `json:"rate_limit_burst"`
	RateLimitRefill   int `json:"rate_limit_refill"`
	RateLimitPeriodMs int `json:"rate_limit_period_ms"`

	// Shutdown
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:             ":8080",
		ProvingKeyPath:         "proving.key",
		VerifyingKeyPath:       "verifying.key",
		LedgerPath:             "ledger.json",
		SettlementEndpoint:     "",
		SettlementTimeout:      120,
		LogLevel:               "info",
		LogFile:                "vaultd.log",
		EnableAudit:            true,
		AuditLogPath:           "audit.log",
		RateLimitBurst:         10,
		RateLimitRefill:        1,
		RateLimitPeriodMs:      500,
		ShutdownTimeoutSeconds: 10,
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

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

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

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.ProvingKeyPath == "" || c.VerifyingKeyPath == "" {
		return fmt.Errorf("proving_key_path and verifying_key_path must be set")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must be set")
	}
	if c.SettlementTimeout <= 0 {
		return fmt.Errorf("settlement_timeout_seconds must be positive")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitRefill <= 0 || c.RateLimitPeriodMs <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("shutdown_timeout_seconds must be positive")
	}
	return nil
}
