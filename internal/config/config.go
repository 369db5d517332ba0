package config

import (
	"os"
	"strconv"

	"gomulm/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Inference InferenceConfig
	MaxT      MaxTConfig
	Server    ServerConfig
	Log       LogConfig
}

// InferenceConfig holds the contrast test settings
type InferenceConfig struct {
	TwoTailed bool
	PValues   bool
	Alpha     float64
}

// MaxTConfig holds permutation correction settings
type MaxTConfig struct {
	Permutations int
	Seed         int64
	Workers      int
	Family       string // "grid" or "contrast"
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string
}

// LogConfig holds logging verbosity
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it.
// A set but malformed value is an error, never a silent default.
func Load() (*Config, error) {
	inference, err := loadInferenceConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load inference configuration")
	}
	maxT, err := loadMaxTConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load maxT configuration")
	}

	config := &Config{
		Inference: *inference,
		MaxT:      *maxT,
		Server:    ServerConfig{Addr: getEnvOrDefault("MULM_ADDR", ":8080")},
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{TwoTailed: true, PValues: true, Alpha: 0.05},
		MaxT:      MaxTConfig{Permutations: 1000, Seed: 42, Workers: 4, Family: "grid"},
		Server:    ServerConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "INFO"},
	}
}

func loadInferenceConfig() (*InferenceConfig, error) {
	twoTailed, err := getEnvBoolOrDefault("MULM_TWO_TAILED", true)
	if err != nil {
		return nil, err
	}
	pValues, err := getEnvBoolOrDefault("MULM_PVALUES", true)
	if err != nil {
		return nil, err
	}
	alpha, err := getEnvFloatOrDefault("MULM_ALPHA", 0.05)
	if err != nil {
		return nil, err
	}
	return &InferenceConfig{TwoTailed: twoTailed, PValues: pValues, Alpha: alpha}, nil
}

func loadMaxTConfig() (*MaxTConfig, error) {
	permutations, err := getEnvIntOrDefault("MULM_PERMUTATIONS", 1000)
	if err != nil {
		return nil, err
	}
	seed, err := getEnvInt64OrDefault("MULM_SEED", 42)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvIntOrDefault("MULM_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	return &MaxTConfig{
		Permutations: permutations,
		Seed:         seed,
		Workers:      workers,
		Family:       getEnvOrDefault("MULM_FAMILY", "grid"),
	}, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.MaxT.Permutations < 1 {
		return errors.ConfigInvalid("permutations must be at least 1")
	}
	if c.MaxT.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if c.MaxT.Family != "grid" && c.MaxT.Family != "contrast" {
		return errors.ConfigInvalid("family must be grid or contrast")
	}
	if c.Inference.Alpha <= 0 || c.Inference.Alpha >= 1 {
		return errors.ConfigInvalid("alpha must lie strictly between 0 and 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be an integer, got " + strconv.Quote(value))
	}
	return intValue, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be an integer, got " + strconv.Quote(value))
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be a number, got " + strconv.Quote(value))
	}
	return floatValue, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(key + " must be true or false, got " + strconv.Quote(value))
	}
	return boolValue, nil
}
