package config

import "primekit/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" env:"PRIMES_LOG_LEVEL"`   // debug, info, warn, error
	Format     string          `yaml:"format" env:"PRIMES_LOG_FORMAT"` // json, console
	File       string          `yaml:"file" env:"PRIMES_LOG_FILE"`     // empty = stderr
	Categories map[string]bool `yaml:"categories"`                     // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// ToLogging converts to the logging package's config.
func (c LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
