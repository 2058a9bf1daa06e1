package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/joinhash/internal/config"
)

func TestConfig_DefaultValues(t *testing.T) {
	config := config.NewConfig()

	assert.Equal(t, 0, config.WorkerCount) // 0 means auto-detect
	assert.Equal(t, 1000, config.ParallelThreshold)
	assert.Equal(t, 1<<16, config.SpinWarnThreshold)
	assert.Equal(t, 11, config.HLLRegisterBits)
	assert.Equal(t, int32(-1), config.InvalidSlotValue)
	assert.False(t, config.VerboseLogging)
	assert.False(t, config.MetricsCollection)
	assert.Zero(t, config.MemoryLimit)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validation(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			WorkerCount:       4,
			ParallelThreshold: 500,
			SpinWarnThreshold: 100,
			HLLRegisterBits:   10,
			InvalidSlotValue:  -1,
		}
	}

	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:   "valid config",
			mutate: func(*config.Config) {},
		},
		{
			name:          "negative worker count",
			mutate:        func(c *config.Config) { c.WorkerCount = -1 },
			expectedError: "WorkerCount must be non-negative, got -1",
		},
		{
			name:          "negative parallel threshold",
			mutate:        func(c *config.Config) { c.ParallelThreshold = -1 },
			expectedError: "ParallelThreshold must be positive, got -1",
		},
		{
			name:          "zero spin threshold",
			mutate:        func(c *config.Config) { c.SpinWarnThreshold = 0 },
			expectedError: "SpinWarnThreshold must be positive, got 0",
		},
		{
			name:          "register bits too small",
			mutate:        func(c *config.Config) { c.HLLRegisterBits = 3 },
			expectedError: "HLLRegisterBits must be between 4 and 18, got 3",
		},
		{
			name:          "register bits too large",
			mutate:        func(c *config.Config) { c.HLLRegisterBits = 19 },
			expectedError: "HLLRegisterBits must be between 4 and 18, got 19",
		},
		{
			name:          "negative memory limit",
			mutate:        func(c *config.Config) { c.MemoryLimit = -1 },
			expectedError: "MemoryLimit must be non-negative, got -1",
		},
		{
			name:          "zero invalid slot value",
			mutate:        func(c *config.Config) { c.InvalidSlotValue = 0 },
			expectedError: "InvalidSlotValue must be non-zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedError)
			}
		})
	}
}

func TestConfig_LoadFromJSON(t *testing.T) {
	jsonData := `{
		"worker_count": 8,
		"parallel_threshold": 2000,
		"hll_register_bits": 14,
		"metrics_collection": true
	}`

	config, err := config.LoadFromJSON([]byte(jsonData))
	require.NoError(t, err)

	assert.Equal(t, 8, config.WorkerCount)
	assert.Equal(t, 2000, config.ParallelThreshold)
	assert.Equal(t, 14, config.HLLRegisterBits)
	assert.True(t, config.MetricsCollection)
	// Unset values get defaults
	assert.Equal(t, 1<<16, config.SpinWarnThreshold)
	assert.Equal(t, int32(-1), config.InvalidSlotValue)
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	jsonData := `{
		"parallel_threshold": 1500,
		"worker_count": 4,
		"verbose_logging": true
	}`
	require.NoError(t, os.WriteFile(path, []byte(jsonData), 0o600))

	config, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 1500, config.ParallelThreshold)
	assert.Equal(t, 4, config.WorkerCount)
	assert.True(t, config.VerboseLogging)
}

func TestConfig_LoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
worker_count: 2
parallel_threshold: 2000
spin_warn_threshold: 4096
invalid_slot_value: -7
memory_limit: 1048576
metrics_collection: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	config, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, config.WorkerCount)
	assert.Equal(t, 2000, config.ParallelThreshold)
	assert.Equal(t, 4096, config.SpinWarnThreshold)
	assert.Equal(t, int32(-7), config.InvalidSlotValue)
	assert.Equal(t, int64(1<<20), config.MemoryLimit)
	assert.Equal(t, 11, config.HLLRegisterBits)
	assert.True(t, config.MetricsCollection)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("JOINHASH_WORKER_COUNT", "12")
	t.Setenv("JOINHASH_PARALLEL_THRESHOLD", "3000")
	t.Setenv("JOINHASH_HLL_REGISTER_BITS", "16")
	t.Setenv("JOINHASH_INVALID_SLOT_VALUE", "-2")
	t.Setenv("JOINHASH_VERBOSE_LOGGING", "true")
	t.Setenv("JOINHASH_MEMORY_LIMIT", "4096")

	config := config.LoadFromEnv()

	assert.Equal(t, 12, config.WorkerCount)
	assert.Equal(t, 3000, config.ParallelThreshold)
	assert.Equal(t, 16, config.HLLRegisterBits)
	assert.Equal(t, int32(-2), config.InvalidSlotValue)
	assert.Equal(t, int64(4096), config.MemoryLimit)
	assert.True(t, config.VerboseLogging)
}

func TestConfig_EnvironmentVariableParsing(t *testing.T) {
	// Invalid values fall back to defaults
	t.Setenv("JOINHASH_PARALLEL_THRESHOLD", "invalid_number")
	t.Setenv("JOINHASH_WORKER_COUNT", "not_a_number")
	t.Setenv("JOINHASH_INVALID_SLOT_VALUE", "99999999999")
	t.Setenv("JOINHASH_METRICS_COLLECTION", "invalid_bool")

	config := config.LoadFromEnv()
	assert.Equal(t, 1000, config.ParallelThreshold)
	assert.Equal(t, 0, config.WorkerCount)
	assert.Equal(t, int32(-1), config.InvalidSlotValue)
	assert.False(t, config.MetricsCollection)
}

func TestConfig_WithDefaults(t *testing.T) {
	config := config.Config{
		ParallelThreshold: 2000,
	}

	withDefaults := config.WithDefaults()

	assert.Equal(t, 2000, withDefaults.ParallelThreshold) // Should preserve set value
	assert.Equal(t, 0, withDefaults.WorkerCount)          // Auto-detect stays zero
	assert.Equal(t, 11, withDefaults.HLLRegisterBits)
	assert.Equal(t, int32(-1), withDefaults.InvalidSlotValue)
	assert.False(t, withDefaults.VerboseLogging)
}

func TestGlobalConfig_SetAndGet(t *testing.T) {
	originalConfig := config.GetGlobalConfig()
	defer config.SetGlobalConfig(originalConfig)

	newConfig := config.NewConfig()
	newConfig.WorkerCount = 16
	newConfig.MetricsCollection = true

	config.SetGlobalConfig(newConfig)
	retrieved := config.GetGlobalConfig()

	assert.Equal(t, 16, retrieved.WorkerCount)
	assert.True(t, retrieved.MetricsCollection)
}

func TestConfig_ToJSON(t *testing.T) {
	cfg := config.NewConfig()
	cfg.WorkerCount = 8

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"worker_count":8`)
	assert.Contains(t, string(data), `"invalid_slot_value":-1`)
}

func TestConfig_UnsupportedFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count = 1"), 0o600))

	_, err := config.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}

func TestConfig_InvalidInput(t *testing.T) {
	_, err := config.LoadFromJSON([]byte(`{"parallel_threshold": "not_a_number"}`))
	assert.Error(t, err)

	_, err = config.LoadFromYAML([]byte("worker_count: [1, 2]"))
	assert.Error(t, err)

	_, err = config.LoadFromFile("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestConfig_ValidationRecommendations(t *testing.T) {
	validator := config.NewConfigValidator()

	validated, warnings, err := validator.Validate(config.NewConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Positive(t, validated.WorkerCount)

	oversubscribed := config.NewConfig()
	oversubscribed.WorkerCount = config.GetSystemInfo().CPUCount + 1
	_, warnings, err = validator.Validate(oversubscribed)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	bad := config.NewConfig()
	bad.InvalidSlotValue = 0
	_, _, err = validator.Validate(bad)
	assert.Error(t, err)
}

func TestConfig_SystemInfo(t *testing.T) {
	info := config.GetSystemInfo()

	assert.Positive(t, info.CPUCount)
	assert.NotEmpty(t, info.Architecture)
	assert.NotEmpty(t, info.OSType)
}
