package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLinkedIn(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLinkedIn() error {
	parsed, err := url.Parse(c.LinkedIn.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("linkedin.base_url: %q is not a valid URL", c.LinkedIn.BaseURL)
	}
	if c.LinkedIn.CharacterLimit < 1 {
		return fmt.Errorf("linkedin.character_limit: must be positive, got %d", c.LinkedIn.CharacterLimit)
	}
	return nil
}

func (c *Config) validatePublishing() error {
	if c.Publishing.BatchSize > 500 {
		return fmt.Errorf("publishing.batch_size: %d exceeds maximum of 500", c.Publishing.BatchSize)
	}
	if c.Publishing.MaxRetries > 20 {
		return fmt.Errorf("publishing.max_retries: %d exceeds maximum of 20", c.Publishing.MaxRetries)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
