package config

const (
	defaultDataDir                = "~/.local/share/prismatic"
	defaultLogDir                 = "~/.local/share/prismatic/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLinkedInBaseURL        = "https://api.linkedin.com"
	defaultLinkedInTimeout        = 15
	defaultLinkedInCharacterLimit = 3000
	defaultInsightsBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultInsightsModel          = "anthropic/claude-sonnet-4"
	defaultInsightsReferer        = "https://github.com/HanifCarroll/prismatic"
	defaultInsightsTitle          = "Prismatic Insights"
	defaultInsightsTimeout        = 60
	defaultInsightsMax            = 10
	defaultPublishBatchSize       = 10
	defaultPublishMaxRetries      = 3
	defaultPublishPollInterval    = 30
	defaultPublishErrorRetry      = 10
	defaultPublishTimeout         = 30
	defaultNtfyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		LinkedIn: LinkedIn{
			BaseURL:        defaultLinkedInBaseURL,
			RequestTimeout: defaultLinkedInTimeout,
			CharacterLimit: defaultLinkedInCharacterLimit,
		},
		Insights: Insights{
			BaseURL:        defaultInsightsBaseURL,
			Model:          defaultInsightsModel,
			Referer:        defaultInsightsReferer,
			Title:          defaultInsightsTitle,
			TimeoutSeconds: defaultInsightsTimeout,
			MaxInsights:    defaultInsightsMax,
		},
		Publishing: Publishing{
			BatchSize:          defaultPublishBatchSize,
			MaxRetries:         defaultPublishMaxRetries,
			PollInterval:       defaultPublishPollInterval,
			ErrorRetryInterval: defaultPublishErrorRetry,
			PublishTimeout:     defaultPublishTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			StageChanges:   true,
			Publishing:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
