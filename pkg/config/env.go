package config

import (
	"os"
	"strconv"
	"time"
)

// GetStringFromEnv returns the environment variable value or default if not set or empty.
//
// Input: environment variable key and default value
// Output: string value from environment or default
// Behavior: Returns default if env var is empty or not set
//
// Example:
//
//	backend := config.GetStringFromEnv("FILIGREE_VECTOR_BACKEND", "memory")
//	level := config.GetStringFromEnv("FILIGREE_LOG_LEVEL", "info")
func GetStringFromEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntFromEnv returns the environment variable value as int or default if not set or invalid.
//
// Input: environment variable key and default int value
// Output: int value from environment or default
// Behavior: Returns default if env var is empty, not set, or not a valid integer
//
// Example:
//
//	topK := config.GetIntFromEnv("FILIGREE_RAG_TOP_K", 10)
func GetIntFromEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetFloatFromEnv returns the environment variable value as float64 or default if not set or invalid.
//
// Input: environment variable key and default float value
// Output: float64 value from environment or default
// Behavior: Returns default if env var is empty, not set, or not a valid float
//
// Example:
//
//	threshold := config.GetFloatFromEnv("FILIGREE_FUZZY_THRESHOLD", 0.8)
func GetFloatFromEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetBoolFromEnv returns the environment variable value as bool or default if not set or invalid.
func GetBoolFromEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDurationFromEnv returns the environment variable value as duration or default if not set or invalid.
//
// Example:
//
//	timeout := config.GetDurationFromEnv("FILIGREE_RAG_TIMEOUT", 30*time.Second)
func GetDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
