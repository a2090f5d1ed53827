package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLinkedIn()
	c.normalizeInsights()
	c.normalizePublishing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLinkedIn() {
	c.LinkedIn.BaseURL = strings.TrimRight(strings.TrimSpace(c.LinkedIn.BaseURL), "/")
	if c.LinkedIn.BaseURL == "" {
		c.LinkedIn.BaseURL = defaultLinkedInBaseURL
	}
	if c.LinkedIn.RequestTimeout <= 0 {
		c.LinkedIn.RequestTimeout = defaultLinkedInTimeout
	}
	if c.LinkedIn.CharacterLimit <= 0 {
		c.LinkedIn.CharacterLimit = defaultLinkedInCharacterLimit
	}
}

func (c *Config) normalizeInsights() {
	c.Insights.APIKey = strings.TrimSpace(c.Insights.APIKey)
	c.Insights.BaseURL = strings.TrimSpace(c.Insights.BaseURL)
	if c.Insights.BaseURL == "" {
		c.Insights.BaseURL = defaultInsightsBaseURL
	}
	if strings.TrimSpace(c.Insights.Model) == "" {
		c.Insights.Model = defaultInsightsModel
	}
	if c.Insights.TimeoutSeconds <= 0 {
		c.Insights.TimeoutSeconds = defaultInsightsTimeout
	}
	if c.Insights.MaxInsights <= 0 {
		c.Insights.MaxInsights = defaultInsightsMax
	}
}

func (c *Config) normalizePublishing() {
	if c.Publishing.BatchSize <= 0 {
		c.Publishing.BatchSize = defaultPublishBatchSize
	}
	if c.Publishing.MaxRetries <= 0 {
		c.Publishing.MaxRetries = defaultPublishMaxRetries
	}
	if c.Publishing.PollInterval <= 0 {
		c.Publishing.PollInterval = defaultPublishPollInterval
	}
	if c.Publishing.ErrorRetryInterval <= 0 {
		c.Publishing.ErrorRetryInterval = defaultPublishErrorRetry
	}
	if c.Publishing.PublishTimeout <= 0 {
		c.Publishing.PublishTimeout = defaultPublishTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
