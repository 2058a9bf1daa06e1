// Package config provides configuration management for hash table builds
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for hash table builds
type Config struct {
	// Parallel Processing Configuration
	WorkerCount       int `json:"worker_count" yaml:"worker_count"`             // Goroutines per kernel launch (0 = auto-detect)
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum work items to trigger a parallel launch

	// Build Configuration
	SpinWarnThreshold int   `json:"spin_warn_threshold" yaml:"spin_warn_threshold"` // Spin iterations before a wait is reported
	HLLRegisterBits   int   `json:"hll_register_bits" yaml:"hll_register_bits"`     // Register index bits of distinct sketches
	InvalidSlotValue  int32 `json:"invalid_slot_value" yaml:"invalid_slot_value"`   // Sentinel of an unwritten value slot

	// Memory Configuration
	MemoryLimit int64 `json:"memory_limit" yaml:"memory_limit"` // Bytes of live table buffers (0 = unlimited)

	// Debugging Configuration
	VerboseLogging    bool `json:"verbose_logging" yaml:"verbose_logging"`       // Enable debug logging of kernel launches
	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Enable metrics collection
}

// SystemInfo contains system information for configuration validation
type SystemInfo struct {
	CPUCount     int
	Architecture string
	OSType       string
}

// ConfigValidator validates and provides recommendations for configuration
type ConfigValidator struct {
	systemInfo SystemInfo
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultParallelThreshold = 1000
	DefaultSpinWarnThreshold = 1 << 16
	DefaultHLLRegisterBits   = 11
	DefaultInvalidSlotValue  = -1
)

// Register bit bounds accepted by Validate
const (
	MinHLLRegisterBits = 4
	MaxHLLRegisterBits = 18
)

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		// Parallel Processing defaults
		WorkerCount:       0, // Auto-detect
		ParallelThreshold: DefaultParallelThreshold,

		// Build defaults
		SpinWarnThreshold: DefaultSpinWarnThreshold,
		HLLRegisterBits:   DefaultHLLRegisterBits,
		InvalidSlotValue:  DefaultInvalidSlotValue,

		// Debugging defaults (disabled)
		VerboseLogging:    false,
		MetricsCollection: false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("WorkerCount must be non-negative, got %d", c.WorkerCount)
	}

	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}

	if c.SpinWarnThreshold <= 0 {
		return fmt.Errorf("SpinWarnThreshold must be positive, got %d", c.SpinWarnThreshold)
	}

	if c.HLLRegisterBits < MinHLLRegisterBits || c.HLLRegisterBits > MaxHLLRegisterBits {
		return fmt.Errorf("HLLRegisterBits must be between %d and %d, got %d",
			MinHLLRegisterBits, MaxHLLRegisterBits, c.HLLRegisterBits)
	}

	if c.MemoryLimit < 0 {
		return fmt.Errorf("MemoryLimit must be non-negative, got %d", c.MemoryLimit)
	}

	// Zero flags non-empty buckets while a one-to-many index is built
	if c.InvalidSlotValue == 0 {
		return errors.New("InvalidSlotValue must be non-zero")
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	// Apply defaults for zero values
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}
	if c.SpinWarnThreshold == 0 {
		c.SpinWarnThreshold = defaults.SpinWarnThreshold
	}
	if c.HLLRegisterBits == 0 {
		c.HLLRegisterBits = defaults.HLLRegisterBits
	}
	if c.InvalidSlotValue == 0 {
		c.InvalidSlotValue = defaults.InvalidSlotValue
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values

	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("loading config file %s: %w", filename, err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() Config {
	config := NewConfig()

	if val := os.Getenv("JOINHASH_WORKER_COUNT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.WorkerCount = parsed
		}
	}

	if val := os.Getenv("JOINHASH_PARALLEL_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ParallelThreshold = parsed
		}
	}

	if val := os.Getenv("JOINHASH_SPIN_WARN_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.SpinWarnThreshold = parsed
		}
	}

	if val := os.Getenv("JOINHASH_HLL_REGISTER_BITS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.HLLRegisterBits = parsed
		}
	}

	if val := os.Getenv("JOINHASH_INVALID_SLOT_VALUE"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 32); err == nil {
			config.InvalidSlotValue = int32(parsed)
		}
	}

	if val := os.Getenv("JOINHASH_MEMORY_LIMIT"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.MemoryLimit = parsed
		}
	}

	if val := os.Getenv("JOINHASH_VERBOSE_LOGGING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.VerboseLogging = parsed
		}
	}

	if val := os.Getenv("JOINHASH_METRICS_COLLECTION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsCollection = parsed
		}
	}

	return config
}

// GetSystemInfo returns system information for configuration validation
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		CPUCount:     runtime.NumCPU(),
		Architecture: runtime.GOARCH,
		OSType:       runtime.GOOS,
	}
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		systemInfo: GetSystemInfo(),
	}
}

// Validate validates a configuration and provides recommendations
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	validated := config

	// Basic validation
	if err := config.Validate(); err != nil {
		return Config{}, warnings, err
	}

	// Validate worker count
	if config.WorkerCount > cv.systemInfo.CPUCount {
		warnings = append(warnings,
			fmt.Sprintf("Worker count (%d) exceeds CPU count (%d), spinning inserts may stall",
				config.WorkerCount, cv.systemInfo.CPUCount))
	}

	// Auto-adjust unset values
	if config.WorkerCount == 0 {
		validated.WorkerCount = cv.systemInfo.CPUCount
		warnings = append(warnings,
			fmt.Sprintf("Auto-setting worker count to %d (CPU count)",
				validated.WorkerCount))
	}

	return validated, warnings, nil
}
