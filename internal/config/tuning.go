package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for acquisition tuning
// parameters. Fields omitted from the JSON file retain their defaults, so
// partial configs are safe.
type TuningConfig struct {
	// Serial line params
	ConfigBaudRate *int `json:"config_baud_rate,omitempty"`
	DataBaudRate   *int `json:"data_baud_rate,omitempty"`

	// Reassembly params
	ReadCapacity *int `json:"read_capacity,omitempty"` // max bytes pulled per poll
	MaxBuffer    *int `json:"max_buffer,omitempty"`    // accumulation buffer bound

	// Poll loop params
	PollInterval *string `json:"poll_interval,omitempty"` // duration string like "10ms"

	// Config upload handshake params
	AckTimeout      *string `json:"ack_timeout,omitempty"`       // duration string like "2s"
	AckPollInterval *string `json:"ack_poll_interval,omitempty"` // duration string like "10ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfigBaudRate != nil && *c.ConfigBaudRate <= 0 {
		return fmt.Errorf("config_baud_rate must be positive, got %d", *c.ConfigBaudRate)
	}
	if c.DataBaudRate != nil && *c.DataBaudRate <= 0 {
		return fmt.Errorf("data_baud_rate must be positive, got %d", *c.DataBaudRate)
	}

	if c.ReadCapacity != nil && *c.ReadCapacity <= 0 {
		return fmt.Errorf("read_capacity must be positive, got %d", *c.ReadCapacity)
	}

	// The buffer bound must leave room for at least one read plus a frame
	// boundary straddling the read edge.
	if c.MaxBuffer != nil {
		if *c.MaxBuffer <= 0 {
			return fmt.Errorf("max_buffer must be positive, got %d", *c.MaxBuffer)
		}
		if *c.MaxBuffer < c.GetReadCapacity() {
			return fmt.Errorf("max_buffer (%d) must be at least read_capacity (%d)", *c.MaxBuffer, c.GetReadCapacity())
		}
	}

	for name, v := range map[string]*string{
		"poll_interval":     c.PollInterval,
		"ack_timeout":       c.AckTimeout,
		"ack_poll_interval": c.AckPollInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

// GetConfigBaudRate returns the config_baud_rate value or the default.
func (c *TuningConfig) GetConfigBaudRate() int {
	if c.ConfigBaudRate == nil {
		return 115200 // IWR command UART default
	}
	return *c.ConfigBaudRate
}

// GetDataBaudRate returns the data_baud_rate value or the default.
func (c *TuningConfig) GetDataBaudRate() int {
	if c.DataBaudRate == nil {
		return 921600 // IWR data UART default
	}
	return *c.DataBaudRate
}

// GetReadCapacity returns the read_capacity value or the default.
func (c *TuningConfig) GetReadCapacity() int {
	if c.ReadCapacity == nil {
		return 1024
	}
	return *c.ReadCapacity
}

// GetMaxBuffer returns the max_buffer value or the default.
func (c *TuningConfig) GetMaxBuffer() int {
	if c.MaxBuffer == nil {
		return 64 * 1024
	}
	return *c.MaxBuffer
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *TuningConfig) GetPollInterval() time.Duration {
	return c.durationOrDefault(c.PollInterval, 10*time.Millisecond)
}

// GetAckTimeout parses and returns the AckTimeout as a time.Duration.
func (c *TuningConfig) GetAckTimeout() time.Duration {
	return c.durationOrDefault(c.AckTimeout, 2*time.Second)
}

// GetAckPollInterval parses and returns the AckPollInterval as a time.Duration.
func (c *TuningConfig) GetAckPollInterval() time.Duration {
	return c.durationOrDefault(c.AckPollInterval, 10*time.Millisecond)
}

func (c *TuningConfig) durationOrDefault(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
